// Package runner - Iteration scheduling, the fork protocol and fork orchestration.
package runner

import (
	"context"
	"log/slog"
	"os"
	"runtime"

	"github.com/pkg/errors"

	"github.com/nvr-ai/go-mh/benchmark"
	"github.com/nvr-ai/go-mh/engine"
	"github.com/nvr-ai/go-mh/logging"
	"github.com/nvr-ai/go-mh/profiler"
)

// Job is one class run inside one process.
type Job struct {
	Class  string
	Config benchmark.Config
	Cases  []benchmark.Case
	Setup  func() error
	// Fork is the 1-based fork index recorded in the result.
	Fork  int
	RunID string
}

// Scheduler runs the warmup and measurement passes of a class in the
// current process.
type Scheduler struct {
	engine engine.Engine
	logger *slog.Logger
}

// NewScheduler creates a scheduler.
//
// Arguments:
//   - e: The timing engine.
//   - logger: Receives per-pass debug logs; nil discards them.
//
// Returns:
//   - *Scheduler: The scheduler.
func NewScheduler(e engine.Engine, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Scheduler{engine: e, logger: logger}
}

// Run executes a job: setup, warmup passes (discarded), then measurement
// passes that each produce one result per case in registration order.
//
// Arguments:
//   - ctx: Cancels the run between cases.
//   - job: The class, its resolved config and its cases.
//
// Returns:
//   - benchmark.ForkResult: The measured iterations with process env and profile.
//   - error: ErrRegistry for a class without cases, or the first engine error.
func (s *Scheduler) Run(ctx context.Context, job Job) (benchmark.ForkResult, error) {
	if len(job.Cases) == 0 {
		return benchmark.ForkResult{}, errors.Wrapf(benchmark.ErrRegistry, "class %q has no cases", job.Class)
	}
	fork := job.Fork
	if fork < 1 {
		fork = 1
	}

	if job.Setup != nil {
		if err := job.Setup(); err != nil {
			return benchmark.ForkResult{}, errors.Wrapf(engine.ErrCaseFailed, "class %q setup: %v", job.Class, err)
		}
	}

	cfg := job.Config
	rec := profiler.NewRecorder()
	log := s.logger.With("class", job.Class, "fork", fork)

	done := rec.StartOperation(profiler.PhaseWarmup)
	for i := 1; i <= cfg.Warmup.Iterations; i++ {
		for _, c := range job.Cases {
			if _, err := s.engine.RunCase(ctx, c, cfg.Warmup.Duration()); err != nil {
				done()
				return benchmark.ForkResult{}, errors.Wrapf(err, "class %q case %q warmup %d", job.Class, c.Name, i)
			}
		}
		log.Debug("warmup pass finished", "iteration", i)
	}
	done()

	rec.BeginMemory()
	done = rec.StartOperation(profiler.PhaseMeasurement)
	iterations := make([]benchmark.IterationResult, 0, cfg.Measurement.Iterations)
	for i := 1; i <= cfg.Measurement.Iterations; i++ {
		results := make([]benchmark.RunResult, 0, len(job.Cases))
		for _, c := range job.Cases {
			sample, err := s.engine.RunCase(ctx, c, cfg.Measurement.Duration())
			if err != nil {
				done()
				return benchmark.ForkResult{}, errors.Wrapf(err, "class %q case %q iteration %d", job.Class, c.Name, i)
			}
			results = append(results, ToRunResult(cfg, c.Name, sample))
		}
		iterations = append(iterations, benchmark.IterationResult{Iteration: i, Results: results})
		log.Debug("measurement pass finished", "iteration", i, "cases", len(results))
	}
	done()
	rec.EndMemory()

	return benchmark.ForkResult{
		Fork:       fork,
		Class:      job.Class,
		RunID:      job.RunID,
		Iterations: iterations,
		Env:        CurrentEnv(),
		Profile:    rec.Profile(),
	}, nil
}

// ToRunResult converts an engine sample into a result in the class's mode
// and output unit.
func ToRunResult(cfg benchmark.Config, name string, sample engine.CaseSample) benchmark.RunResult {
	r := benchmark.RunResult{
		BenchName: name,
		Mode:      cfg.Mode,
		Unit:      cfg.OutputUnit,
		RME:       sample.RelativeMarginOfError,
		Samples:   sample.SampleCount,
	}
	if cfg.Mode == benchmark.ModeThroughput {
		ops := sample.OpsPerSecond()
		r.OpsPerSecond = &ops
		return r
	}
	mean := sample.MeanSecondsPerOp * 1000 / cfg.OutputUnit.Scale()
	r.MeanValue = &mean
	return r
}

// CurrentEnv describes the running process.
func CurrentEnv() benchmark.ProcessEnv {
	return benchmark.ProcessEnv{
		GoVersion: runtime.Version(),
		GOOS:      runtime.GOOS,
		GOARCH:    runtime.GOARCH,
		PID:       os.Getpid(),
		NumCPU:    runtime.NumCPU(),
		Args:      append([]string(nil), os.Args...),
	}
}
