package observability

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMonitor_Snapshot(t *testing.T) {
	req := require.New(t)
	live := 3
	monitor := NewMonitor(func() int { return live })

	monitor.SessionAccepted()
	monitor.SessionAccepted()
	monitor.SessionRejected()

	stats := monitor.Snapshot()
	req.Equal(uint64(2), stats.SessionsAccepted)
	req.Equal(uint64(1), stats.SessionsRejected)
	req.Equal(3, stats.LiveSessions)
	req.Positive(stats.Goroutines)
}
