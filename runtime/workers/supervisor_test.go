package workers

import (
	"context"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"whisper-gateway/contract"
)

type funcWorker struct {
	run func(ctx context.Context) error
}

func (w *funcWorker) Run(ctx context.Context) error {
	return w.run(ctx)
}

func TestGetWorkerName_Reflects_The_Worker_Type(t *testing.T) {
	req := require.New(t)
	req.Equal(contract.WorkerName("funcWorker"), contract.GetWorkerName(&funcWorker{}))
	req.Equal(contract.WorkerName("NilWorker"), contract.GetWorkerName(nil))
}

func TestSupervisor_RestartOnPanic(t *testing.T) {
	req := require.New(t)
	var calls atomic.Int32
	worker := &funcWorker{run: func(ctx context.Context) error {
		calls.Add(1)
		panic("boom")
	}}

	sup := NewSupervisor(slog.Default(), 50*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	sup.Start(ctx, worker)

	// Waiting for panics and restarts
	sup.Wait()

	req.GreaterOrEqual(calls.Load(), int32(2))
}

func TestSupervisor_StopOnSuccess(t *testing.T) {
	req := require.New(t)
	var calls atomic.Int32
	worker := &funcWorker{run: func(ctx context.Context) error {
		calls.Add(1)
		return nil
	}}

	sup := NewSupervisor(slog.Default(), 50*time.Millisecond)
	sup.Start(context.Background(), worker)

	// Given a channel to notify when every supervised worker terminated
	done := make(chan struct{})
	go func() {
		sup.Wait()
		close(done)
	}()

	select {
	case <-done:
		// Then supervisor detected a clean finish and never restarted
	case <-time.After(500 * time.Millisecond):
		req.Fail("Supervisor should have stopped after worker success")
	}
	req.Equal(int32(1), calls.Load())
}

func TestSupervisor_StopsOnContextCancel(t *testing.T) {
	req := require.New(t)
	worker := &funcWorker{run: func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}}

	sup := NewSupervisor(slog.Default(), time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	sup.Start(ctx, worker)
	cancel()

	done := make(chan struct{})
	go func() {
		sup.Wait()
		close(done)
	}()

	select {
	case <-done:
		// Cancellation skips the restart delay
	case <-time.After(time.Second):
		req.Fail("Supervisor should stop promptly on cancellation")
	}
}
