package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"mutool.ai/internal/app"
	"mutool.ai/internal/config"
	"mutool.ai/internal/persistence/statsdb"
)

type fakeBridge struct{}

func (fakeBridge) Connected() bool { return true }
func (fakeBridge) Dropped() uint64 { return 4 }

func TestWriteMetrics(t *testing.T) {
	rec := httptest.NewRecorder()
	writeMetrics(rec, app.Metrics{Frames: 10, Events: 3, BadPackets: 1, Modules: 7}, fakeBridge{}, nil)
	body := rec.Body.String()
	for _, want := range []string{
		"mutool_bridge_connected 1\n",
		"mutool_bridge_dropped_total 4\n",
		"mutool_modules 7\n",
		"mutool_events_total 3\n",
		"mutool_frames_total 10\n",
		"mutool_bad_packets_total 1\n",
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("missing %q in:\n%s", want, body)
		}
	}
	if strings.Contains(body, "mutool_stats_") {
		t.Fatalf("stats metrics without a store")
	}
}

func openStore(t *testing.T) *statsdb.Store {
	t.Helper()
	store, err := statsdb.Open(filepath.Join(t.TempDir(), "stats.sqlite"), zerolog.Nop())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSessionsHandler(t *testing.T) {
	store := openStore(t)
	end := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	store.RecordSession(statsdb.Session{ID: "a", StartedAt: end.Add(-time.Hour), EndedAt: end, Reason: "reload", Kills: 12})

	deadline := time.Now().Add(5 * time.Second)
	for {
		got, err := store.RecentSessions(context.Background(), 1)
		if err != nil {
			t.Fatalf("recent: %v", err)
		}
		if len(got) == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("session never written")
		}
		time.Sleep(10 * time.Millisecond)
	}

	h := sessionsHandler(store)
	req := httptest.NewRequest(http.MethodGet, "/admin/v1/sessions?n=5", nil)
	req.RemoteAddr = "127.0.0.1:5555"
	rec := httptest.NewRecorder()
	h(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}
	body := rec.Body.String()
	if !strings.Contains(body, `"id":"a"`) || !strings.Contains(body, `"ended_at":"2026-03-01T10:00:00Z"`) || !strings.Contains(body, `"kills":12`) {
		t.Fatalf("body=%s", body)
	}

	req = httptest.NewRequest(http.MethodGet, "/admin/v1/sessions?n=zero", nil)
	req.RemoteAddr = "127.0.0.1:5555"
	rec = httptest.NewRecorder()
	h(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad n status=%d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/admin/v1/sessions", nil)
	req.RemoteAddr = "10.0.0.8:5555"
	rec = httptest.NewRecorder()
	h(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("remote status=%d", rec.Code)
	}
}

func TestIsLoopbackRemote(t *testing.T) {
	for addr, want := range map[string]bool{
		"127.0.0.1:80": true,
		"[::1]:80":     true,
		"::1":          true,
		"192.168.1.2":  false,
		"not-an-ip":    false,
	} {
		if got := isLoopbackRemote(addr); got != want {
			t.Fatalf("%s: got %v want %v", addr, got, want)
		}
	}
}

func TestNotifier_RecordsNotifications(t *testing.T) {
	store := openStore(t)
	svc := notifier(config.Config{}, store, zerolog.Nop())
	if err := <-svc.Notify("Mu Online [Loot]", "Item: Jewel of Bless"); err != nil {
		t.Fatalf("notify: %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for {
		got, err := store.RecentNotifications(context.Background(), 5)
		if err != nil {
			t.Fatalf("recent: %v", err)
		}
		if len(got) == 1 {
			if got[0].Title != "Mu Online [Loot]" || got[0].Body != "Item: Jewel of Bless" {
				t.Fatalf("notification=%+v", got[0])
			}
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("notification never written")
		}
		time.Sleep(10 * time.Millisecond)
	}
}
