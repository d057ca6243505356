package statsdb

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"
)

// Session is one closed statistics session.
type Session struct {
	ID         string
	StartedAt  time.Time
	EndedAt    time.Time
	Reason     string
	Experience uint64
	LevelPct   float64
	Kills      uint64
	Damage     uint64
	Money      uint64
}

type Notification struct {
	At    time.Time
	Title string
	Body  string
}

// Store keeps session and notification history in SQLite. Writes are
// queued to a single writer goroutine and dropped when the queue is full.
type Store struct {
	db  *sql.DB
	log zerolog.Logger

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed  atomic.Bool
	dropped atomic.Uint64
}

type reqKind int

const (
	reqSession reqKind = iota + 1
	reqNotification
)

type req struct {
	kind         reqKind
	session      Session
	notification Notification
}

type QueueStats struct {
	Depth    int
	Capacity int
	Dropped  uint64
}

const queueSize = 1024

func Open(path string, log zerolog.Logger) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &Store{
		db:  db,
		log: log,
		ch:  make(chan req, queueSize),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			started_at TEXT NOT NULL,
			ended_at TEXT NOT NULL,
			reason TEXT NOT NULL,
			experience INTEGER NOT NULL,
			level_pct REAL NOT NULL,
			kills INTEGER NOT NULL,
			damage INTEGER NOT NULL,
			money INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_ended_at ON sessions(ended_at);`,
		`CREATE TABLE IF NOT EXISTS notifications (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			at TEXT NOT NULL,
			title TEXT NOT NULL,
			body TEXT NOT NULL
		);`,
		`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','1');`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

func (s *Store) enqueue(r req) {
	if s == nil || s.closed.Load() {
		return
	}
	select {
	case s.ch <- r:
	default:
		s.dropped.Add(1)
	}
}

// RecordSession queues sess. A missing id is filled in.
func (s *Store) RecordSession(sess Session) {
	if sess.ID == "" {
		sess.ID = uuid.NewString()
	}
	s.enqueue(req{kind: reqSession, session: sess})
}

func (s *Store) RecordNotification(n Notification) {
	s.enqueue(req{kind: reqNotification, notification: n})
}

func (s *Store) Stats() QueueStats {
	return QueueStats{Depth: len(s.ch), Capacity: cap(s.ch), Dropped: s.dropped.Load()}
}

func formatTime(t time.Time) string { return t.UTC().Format(time.RFC3339Nano) }

func (s *Store) loop() {
	insertSession, err := s.db.Prepare(`INSERT OR REPLACE INTO sessions(id,started_at,ended_at,reason,experience,level_pct,kills,damage,money) VALUES(?,?,?,?,?,?,?,?,?)`)
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to prepare session insert")
	}
	insertNotification, err := s.db.Prepare(`INSERT INTO notifications(at,title,body) VALUES(?,?,?)`)
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to prepare notification insert")
	}
	defer func() {
		if insertSession != nil {
			_ = insertSession.Close()
		}
		if insertNotification != nil {
			_ = insertNotification.Close()
		}
	}()

	for r := range s.ch {
		switch r.kind {
		case reqSession:
			if insertSession == nil {
				continue
			}
			ss := r.session
			if _, err := insertSession.Exec(
				ss.ID,
				formatTime(ss.StartedAt),
				formatTime(ss.EndedAt),
				ss.Reason,
				int64(ss.Experience),
				ss.LevelPct,
				int64(ss.Kills),
				int64(ss.Damage),
				int64(ss.Money),
			); err != nil {
				s.log.Warn().Err(err).Str("session", ss.ID).Msg("Failed to store session")
			}
		case reqNotification:
			if insertNotification == nil {
				continue
			}
			n := r.notification
			if _, err := insertNotification.Exec(formatTime(n.At), n.Title, n.Body); err != nil {
				s.log.Warn().Err(err).Msg("Failed to store notification")
			}
		}
	}
}

// RecentSessions returns up to n sessions, newest first.
func (s *Store) RecentSessions(ctx context.Context, n int) ([]Session, error) {
	if n <= 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx, `SELECT id,started_at,ended_at,reason,experience,level_pct,kills,damage,money FROM sessions ORDER BY ended_at DESC LIMIT ?`, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Session
	for rows.Next() {
		var (
			ss                          Session
			started, ended              string
			experience, kills, dmg, zen int64
		)
		if err := rows.Scan(&ss.ID, &started, &ended, &ss.Reason, &experience, &ss.LevelPct, &kills, &dmg, &zen); err != nil {
			return nil, err
		}
		ss.StartedAt, _ = time.Parse(time.RFC3339Nano, started)
		ss.EndedAt, _ = time.Parse(time.RFC3339Nano, ended)
		ss.Experience, ss.Kills, ss.Damage, ss.Money = uint64(experience), uint64(kills), uint64(dmg), uint64(zen)
		out = append(out, ss)
	}
	return out, rows.Err()
}

// RecentNotifications returns up to n notifications, newest first.
func (s *Store) RecentNotifications(ctx context.Context, n int) ([]Notification, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT at,title,body FROM notifications ORDER BY seq DESC LIMIT ?`, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Notification
	for rows.Next() {
		var (
			n  Notification
			at string
		)
		if err := rows.Scan(&at, &n.Title, &n.Body); err != nil {
			return nil, err
		}
		n.At, _ = time.Parse(time.RFC3339Nano, at)
		out = append(out, n)
	}
	return out, rows.Err()
}
