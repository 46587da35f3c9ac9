package workers

import (
	"context"
	"log/slog"
	"time"

	"whisper-gateway/observability"
)

// TelemetryWorker periodically logs a snapshot of the gateway's runtime
// state. It runs under the supervisor for the whole process lifetime and
// emits a final snapshot on shutdown.
type TelemetryWorker struct {
	log      *slog.Logger
	monitor  *observability.Monitor
	interval time.Duration
}

func NewTelemetryWorker(log *slog.Logger, monitor *observability.Monitor,
	interval time.Duration) *TelemetryWorker {
	return &TelemetryWorker{log: log, monitor: monitor, interval: interval}
}

func (w *TelemetryWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logStats()
			return nil
		case <-ticker.C:
			w.logStats()
		}
	}
}

func (w *TelemetryWorker) logStats() {
	stats := w.monitor.Snapshot()
	w.log.Info("Gateway telemetry",
		"live_sessions", stats.LiveSessions,
		"sessions_accepted", stats.SessionsAccepted,
		"sessions_rejected", stats.SessionsRejected,
		"goroutines", stats.Goroutines,
		"alloc_mem_mb", stats.AllocMemMb,
		"num_gc", stats.NumGC,
	)
}
