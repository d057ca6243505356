package main

import (
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/bytedance/sonic"

	"mutool.ai/internal/app"
	"mutool.ai/internal/persistence/statsdb"
)

type bridgeStats interface {
	Connected() bool
	Dropped() uint64
}

// writeMetrics renders a minimal Prometheus exposition.
func writeMetrics(rw http.ResponseWriter, m app.Metrics, b bridgeStats, store *statsdb.Store) {
	connected := 0
	if b.Connected() {
		connected = 1
	}
	fmt.Fprintf(rw, "# HELP mutool_bridge_connected Whether a hook is attached.\n")
	fmt.Fprintf(rw, "# TYPE mutool_bridge_connected gauge\n")
	fmt.Fprintf(rw, "mutool_bridge_connected %d\n", connected)

	fmt.Fprintf(rw, "# HELP mutool_bridge_dropped_total Inbound frames dropped because the runtime fell behind.\n")
	fmt.Fprintf(rw, "# TYPE mutool_bridge_dropped_total counter\n")
	fmt.Fprintf(rw, "mutool_bridge_dropped_total %d\n", b.Dropped())

	fmt.Fprintf(rw, "# HELP mutool_modules Loaded pipeline modules.\n")
	fmt.Fprintf(rw, "# TYPE mutool_modules gauge\n")
	fmt.Fprintf(rw, "mutool_modules %d\n", m.Modules)

	fmt.Fprintf(rw, "# HELP mutool_events_total Events dispatched to the pipeline.\n")
	fmt.Fprintf(rw, "# TYPE mutool_events_total counter\n")
	fmt.Fprintf(rw, "mutool_events_total %d\n", m.Events)

	fmt.Fprintf(rw, "# HELP mutool_frames_total Frames rendered for the hook.\n")
	fmt.Fprintf(rw, "# TYPE mutool_frames_total counter\n")
	fmt.Fprintf(rw, "mutool_frames_total %d\n", m.Frames)

	fmt.Fprintf(rw, "# HELP mutool_bad_packets_total Packets that failed to parse.\n")
	fmt.Fprintf(rw, "# TYPE mutool_bad_packets_total counter\n")
	fmt.Fprintf(rw, "mutool_bad_packets_total %d\n", m.BadPackets)

	if store == nil {
		return
	}
	s := store.Stats()
	fmt.Fprintf(rw, "# HELP mutool_stats_queue_depth Stats store write queue depth.\n")
	fmt.Fprintf(rw, "# TYPE mutool_stats_queue_depth gauge\n")
	fmt.Fprintf(rw, "mutool_stats_queue_depth %d\n", s.Depth)

	fmt.Fprintf(rw, "# HELP mutool_stats_queue_capacity Stats store write queue capacity.\n")
	fmt.Fprintf(rw, "# TYPE mutool_stats_queue_capacity gauge\n")
	fmt.Fprintf(rw, "mutool_stats_queue_capacity %d\n", s.Capacity)

	fmt.Fprintf(rw, "# HELP mutool_stats_dropped_total Stats writes dropped on a full queue.\n")
	fmt.Fprintf(rw, "# TYPE mutool_stats_dropped_total counter\n")
	fmt.Fprintf(rw, "mutool_stats_dropped_total %d\n", s.Dropped)
}

type sessionJSON struct {
	ID         string  `json:"id"`
	StartedAt  string  `json:"started_at"`
	EndedAt    string  `json:"ended_at"`
	Reason     string  `json:"reason"`
	Experience uint64  `json:"experience"`
	LevelPct   float64 `json:"level_pct"`
	Kills      uint64  `json:"kills"`
	Damage     uint64  `json:"damage"`
	Money      uint64  `json:"money"`
}

// sessionsHandler lists recent stats sessions, newest first. Local only.
func sessionsHandler(store *statsdb.Store) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		n := 20
		if v := r.URL.Query().Get("n"); v != "" {
			parsed, err := strconv.Atoi(v)
			if err != nil || parsed <= 0 || parsed > 1000 {
				http.Error(rw, "bad n", http.StatusBadRequest)
				return
			}
			n = parsed
		}
		sessions, err := store.RecentSessions(r.Context(), n)
		if err != nil {
			http.Error(rw, err.Error(), http.StatusInternalServerError)
			return
		}
		out := make([]sessionJSON, 0, len(sessions))
		for _, s := range sessions {
			out = append(out, sessionJSON{
				ID:         s.ID,
				StartedAt:  s.StartedAt.UTC().Format(time.RFC3339),
				EndedAt:    s.EndedAt.UTC().Format(time.RFC3339),
				Reason:     s.Reason,
				Experience: s.Experience,
				LevelPct:   s.LevelPct,
				Kills:      s.Kills,
				Damage:     s.Damage,
				Money:      s.Money,
			})
		}
		b, err := sonic.Marshal(out)
		if err != nil {
			http.Error(rw, err.Error(), http.StatusInternalServerError)
			return
		}
		rw.Header().Set("Content-Type", "application/json")
		_, _ = rw.Write(b)
	}
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
