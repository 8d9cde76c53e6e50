package roller

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"imageroller/internal/config"
)

// Roller runs one pass for one server. Satisfied by *Engine; tests
// substitute fakes.
type Roller interface {
	Roll(ctx context.Context, spec config.ServerSpec) RunResult
}

// Coordinator fans the engine out across all configured servers with
// bounded concurrency. The semaphore gates admission only; servers
// share no mutable state (each pass works a disjoint server ID), so
// the limit exists purely to respect provider rate limits.
type Coordinator struct {
	roller Roller
	limit  int64
	log    *zap.Logger
	now    func() time.Time
}

// NewCoordinator creates a Coordinator running at most concurrency
// passes in flight.
func NewCoordinator(roller Roller, concurrency int, log *zap.Logger) *Coordinator {
	if concurrency < 1 {
		concurrency = 1
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Coordinator{
		roller: roller,
		limit:  int64(concurrency),
		log:    log,
		now:    time.Now,
	}
}

// Run executes one pass per server and returns a Report whose Results
// preserve the input order regardless of completion order. One
// server's failure, however fatal, never aborts the others.
func (c *Coordinator) Run(ctx context.Context, servers []config.ServerSpec) Report {
	report := Report{
		RunID:     uuid.NewString(),
		StartedAt: c.now(),
		Results:   make([]RunResult, len(servers)),
	}
	log := c.log.With(zap.String("run_id", report.RunID))
	log.Info("starting run", zap.Int("servers", len(servers)), zap.Int64("concurrency", c.limit))

	sem := semaphore.NewWeighted(c.limit)
	var wg sync.WaitGroup

	for i, spec := range servers {
		wg.Add(1)
		go func(i int, spec config.ServerSpec) {
			defer wg.Done()

			if err := sem.Acquire(ctx, 1); err != nil {
				// Run canceled while queued; the pass never started.
				report.Results[i] = canceledResult(spec, err)
				return
			}
			defer sem.Release(1)

			report.Results[i] = c.rollSafely(ctx, spec)
		}(i, spec)
	}
	wg.Wait()

	report.FinishedAt = c.now()
	log.Info("run finished",
		zap.Duration("duration", report.FinishedAt.Sub(report.StartedAt)),
		zap.Bool("failed", report.Failed()))
	return report
}

// rollSafely isolates one server's pass: a panicking engine produces
// a Failure result for that server instead of taking down the run.
func (c *Coordinator) rollSafely(ctx context.Context, spec config.ServerSpec) (result RunResult) {
	defer func() {
		if r := recover(); r != nil {
			c.log.Error("pass panicked",
				zap.String("server", spec.DisplayName()),
				zap.Any("panic", r))
			result = RunResult{
				ServerID:       spec.ID,
				ServerName:     spec.DisplayName(),
				Policy:         spec.Retention(),
				FetchErr:       fmt.Errorf("pass panicked: %v", r),
				Classification: Failure,
			}
		}
	}()

	return c.roller.Roll(ctx, spec)
}

func canceledResult(spec config.ServerSpec, err error) RunResult {
	return RunResult{
		ServerID:       spec.ID,
		ServerName:     spec.DisplayName(),
		Policy:         spec.Retention(),
		FetchErr:       fmt.Errorf("pass not started: %w", err),
		Classification: Failure,
	}
}
