// Package observability aggregates lightweight runtime telemetry for
// the gateway process.
package observability

import (
	"runtime"
	"sync/atomic"
)

// Stats is one snapshot of the gateway's live state.
type Stats struct {
	SessionsAccepted uint64 `json:"sessions_accepted"`
	SessionsRejected uint64 `json:"sessions_rejected"`
	LiveSessions     int    `json:"live_sessions"`
	Goroutines       int    `json:"goroutines"`
	AllocMemMb       uint64 `json:"alloc_mem_mb"`
	NumGC            uint32 `json:"num_gc"`
}

// Monitor collects cumulative counters through atomics; Snapshot merges
// them with Go runtime metrics. All methods are safe for concurrent use.
// The live callback reports how many sessions are currently connected;
// the presence roster holds every live session, so the registry's
// member count for it is the authoritative figure.
type Monitor struct {
	live             func() int
	sessionsAccepted atomic.Uint64
	sessionsRejected atomic.Uint64
}

func NewMonitor(live func() int) *Monitor {
	return &Monitor{live: live}
}

func (m *Monitor) SessionAccepted() {
	m.sessionsAccepted.Add(1)
}

func (m *Monitor) SessionRejected() {
	m.sessionsRejected.Add(1)
}

func (m *Monitor) Snapshot() Stats {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	return Stats{
		SessionsAccepted: m.sessionsAccepted.Load(),
		SessionsRejected: m.sessionsRejected.Load(),
		LiveSessions:     m.live(),
		Goroutines:       runtime.NumGoroutine(),
		AllocMemMb:       mem.Alloc / 1024 / 1024,
		NumGC:            mem.NumGC,
	}
}
