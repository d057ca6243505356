package statsdb

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"
)

func TestStore_RecordSession(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "stats.sqlite")

	s, err := Open(dbPath, zerolog.Nop())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.RecordSession(Session{
		ID:         "s1",
		StartedAt:  start,
		EndedAt:    start.Add(time.Hour),
		Reason:     "reload",
		Experience: 123456,
		LevelPct:   12.5,
		Kills:      42,
		Damage:     9000,
		Money:      100000,
	})
	s.RecordSession(Session{StartedAt: start.Add(2 * time.Hour), EndedAt: start.Add(3 * time.Hour), Reason: "command"})
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		t.Fatalf("sql open: %v", err)
	}
	defer db.Close()

	var (
		reason string
		kills  int64
		pct    float64
	)
	if err := db.QueryRow(`SELECT reason,kills,level_pct FROM sessions WHERE id='s1'`).Scan(&reason, &kills, &pct); err != nil {
		t.Fatalf("query: %v", err)
	}
	if reason != "reload" || kills != 42 || pct != 12.5 {
		t.Fatalf("unexpected row: reason=%q kills=%d pct=%v", reason, kills, pct)
	}
	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM sessions WHERE id <> ''`).Scan(&n); err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 2 {
		t.Fatalf("sessions=%d want 2", n)
	}
}

func TestStore_RecentSessionsNewestFirst(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "stats.sqlite")
	s, err := Open(dbPath, zerolog.Nop())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"a", "b", "c"} {
		s.RecordSession(Session{ID: id, StartedAt: base, EndedAt: base.Add(time.Duration(i+1) * time.Minute), Money: uint64(i)})
	}
	s.RecordNotification(Notification{At: base, Title: "Mu Online [Loot]", Body: "Item: Jewel of Bless"})
	_ = s.Close()

	s, err = Open(dbPath, zerolog.Nop())
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s.Close()

	got, err := s.RecentSessions(context.Background(), 2)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(got) != 2 || got[0].ID != "c" || got[1].ID != "b" {
		t.Fatalf("unexpected order: %+v", got)
	}
	if !got[0].EndedAt.Equal(base.Add(3 * time.Minute)) {
		t.Fatalf("ended_at: %v", got[0].EndedAt)
	}

	notes, err := s.RecentNotifications(context.Background(), 10)
	if err != nil {
		t.Fatalf("notifications: %v", err)
	}
	if len(notes) != 1 || notes[0].Body != "Item: Jewel of Bless" {
		t.Fatalf("notifications: %+v", notes)
	}
}

func TestStore_QueueDrops(t *testing.T) {
	s := &Store{ch: make(chan req, 1)}
	s.RecordNotification(Notification{Title: "one"})
	s.RecordNotification(Notification{Title: "two"})

	st := s.Stats()
	if st.Depth != 1 || st.Capacity != 1 {
		t.Fatalf("queue depth/capacity: %+v", st)
	}
	if st.Dropped != 1 {
		t.Fatalf("dropped=%d want 1", st.Dropped)
	}
}

func TestStore_ClosedIgnoresWrites(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "stats.sqlite"), zerolog.Nop())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	s.RecordSession(Session{ID: "late"})
	if err := s.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
}
