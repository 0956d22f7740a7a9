// Package scheduler derives the worker count and runs the FIFO worker
// pool that pulls jobs from the job store and hands each to the process
// supervisor.
package scheduler

import (
	"context"
	"errors"
	"runtime"

	"github.com/rs/zerolog"

	"github.com/five82/ffgo/internal/domain"
	"github.com/five82/ffgo/internal/jobstore"
	"github.com/five82/ffgo/internal/supervisor"
)

// Supervise runs the full process-supervisor algorithm for one claimed
// job, returning an error wrapping one of internal/supervisor's
// sentinels on failure. Injected here, rather than calling
// (*supervisor.Supervisor).Run directly, to keep construction of the
// Supervisor (tools, presets, previews dir) out of this package.
type Supervise func(ctx context.Context, job *domain.Job) error

// DeriveWorkerCount computes the worker count: if configured is 0
// (absent), use max(2, cores/2) when cores >= 4, else 1; otherwise clamp
// configured into [1, cores].
func DeriveWorkerCount(configured int, cores int) int {
	if cores < 1 {
		cores = 1
	}
	if configured == 0 {
		if cores >= 4 {
			half := cores / 2
			if half < 2 {
				half = 2
			}
			return half
		}
		return 1
	}
	if configured < 1 {
		return 1
	}
	if configured > cores {
		return cores
	}
	return configured
}

// Scheduler runs a bounded pool of workers dequeuing FIFO from the store.
type Scheduler struct {
	store     *jobstore.Store
	workers   int
	supervise Supervise
	log       zerolog.Logger
}

// New derives the worker count and returns a Scheduler.
func New(store *jobstore.Store, configuredWorkers int, supervise Supervise, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		store:     store,
		workers:   DeriveWorkerCount(configuredWorkers, runtime.NumCPU()),
		supervise: supervise,
		log:       log,
	}
}

// WorkerCount returns the derived or clamped worker count.
func (s *Scheduler) WorkerCount() int { return s.workers }

// Start spawns one long-running goroutine per worker. Each loop acquires
// a job, runs the supervisor, releases, and loops; termination is by
// process exit only, so Start does not itself stop workers
// when ctx is cancelled — cancellation is observed cooperatively inside
// the supervisor's stderr read loop.
func (s *Scheduler) Start(ctx context.Context) {
	for i := 0; i < s.workers; i++ {
		go s.runWorker(ctx)
	}
}

func (s *Scheduler) runWorker(ctx context.Context) {
	for {
		job, ok := s.store.ClaimNext()
		if !ok {
			return
		}
		if err := s.supervise(ctx, job); err != nil {
			s.logSuperviseError(job.ID, err)
		}
		s.store.ReleaseActive(job.ID)
	}
}

// logSuperviseError classifies a failed job via errors.Is against
// internal/supervisor's sentinels: precondition failures (missing
// preset, unavailable tool) are warnings since no encoder process ever
// ran, while encoder and finalize failures are errors.
func (s *Scheduler) logSuperviseError(jobID uint64, err error) {
	switch {
	case errors.Is(err, supervisor.ErrPresetMissing), errors.Is(err, supervisor.ErrToolUnavailable):
		s.log.Warn().Uint64("job", jobID).Err(err).Msg("job failed before encoding started")
	case errors.Is(err, supervisor.ErrEncoderFailed):
		s.log.Error().Uint64("job", jobID).Err(err).Msg("encoder process failed")
	case errors.Is(err, supervisor.ErrFinalizeIO):
		s.log.Error().Uint64("job", jobID).Err(err).Msg("failed to finalize output")
	default:
		s.log.Error().Uint64("job", jobID).Err(err).Msg("job failed")
	}
}
