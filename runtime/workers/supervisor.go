// Package workers contains the supervision machinery for the gateway's
// background goroutines.
package workers

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"whisper-gateway/contract"
	"whisper-gateway/errors"
)

// Supervisor runs each worker in a dedicated goroutine, recovers from
// panics, restarts crashed workers after a delay, and shuts everything
// down when the context is canceled. A failure in one worker must not
// stop the supervisor itself.
type Supervisor struct {
	wg              *sync.WaitGroup
	log             *slog.Logger
	restartInterval time.Duration
}

func NewSupervisor(log *slog.Logger, restartInterval time.Duration) *Supervisor {
	return &Supervisor{wg: &sync.WaitGroup{}, log: log, restartInterval: restartInterval}
}

// Start runs a worker under supervision. If its Run method panics the
// supervisor recovers and restarts it; a worker that returns nil is
// considered finished and never restarted.
func (s *Supervisor) Start(ctx context.Context, worker contract.Worker) {
	s.wg.Add(1)
	workerName := contract.GetWorkerName(worker)

	go func() {
		defer s.wg.Done()

		for {
			if ctx.Err() != nil {
				s.log.Info(fmt.Sprintf("Stopping : %s", workerName))
				return
			}

			err := func() (err error) {
				defer func() {
					if r := recover(); r != nil {
						err = fmt.Errorf("%w: %v", errors.ErrWorkerPanic, r)
					}
				}()
				return worker.Run(ctx)
			}()

			if err == nil {
				// Terminated properly, never restart.
				s.log.Info(fmt.Sprintf("Worker finished : %s", workerName))
				return
			}

			if ctx.Err() != nil {
				s.log.Info("Worker stopped (context canceled)", "name", workerName)
				return
			}

			s.log.Warn("Worker crashed, restarting", "name", workerName, "error", err)
			select {
			case <-ctx.Done():
				// Context canceled: priority stop, skip the restart delay.
				return
			case <-time.After(s.restartInterval):
			}
		}
	}()
}

// Wait blocks until every supervised goroutine has finished. Shutdown
// is driven by canceling the context passed to Start.
func (s *Supervisor) Wait() {
	s.wg.Wait()
}
