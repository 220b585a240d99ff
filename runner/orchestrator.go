package runner

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/pkg/errors"

	"github.com/nvr-ai/go-mh/benchmark"
	"github.com/nvr-ai/go-mh/logging"
)

// ErrForkFailed indicates a fork exited non-zero or returned unusable output.
var ErrForkFailed = errors.New("fork failed")

// ForkError describes a failed fork. Its message carries the child's
// stderr and stdout verbatim.
type ForkError struct {
	Class    string
	Fork     int
	ExitCode int
	Stdout   []byte
	Stderr   []byte
	Err      error
}

func (e *ForkError) Error() string {
	reason := fmt.Sprintf("exit code %d", e.ExitCode)
	if e.Err != nil {
		reason = e.Err.Error()
	}
	return fmt.Sprintf("fork %d of class %q failed: %s\nSTDERR:\n%s\nSTDOUT:\n%s",
		e.Fork, e.Class, reason, e.Stderr, e.Stdout)
}

// Unwrap returns the underlying cause, if any.
func (e *ForkError) Unwrap() error { return e.Err }

// Is matches ErrForkFailed.
func (e *ForkError) Is(target error) bool { return target == ErrForkFailed }

// Observer is notified after each fork that produced a valid result.
type Observer interface {
	ForkCompleted(class string, fork int, elapsed time.Duration)
}

// Orchestrator runs a class either in-process or across sequential forks
// and collects one ForkResult per fork.
type Orchestrator struct {
	Registry *benchmark.Registry
	// Local runs the class when no fork is needed.
	Local *Scheduler
	// Spawner starts forks.
	Spawner Spawner
	// Executable is re-executed for each fork.
	Executable string
	// Isolate forces a child process even for a single fork.
	Isolate bool
	// RunID identifies this run; each fork must echo it back.
	RunID string
	// Environ is the environment inherited by forks.
	Environ  []string
	Observer Observer
	Logger   *slog.Logger
}

// Execute runs one class with its resolved configuration.
//
// Arguments:
//   - ctx: Cancels the run; checked between forks.
//   - class: The class name.
//   - cfg: The resolved configuration.
//
// Returns:
//   - benchmark.AggregatedResult: Every fork result in fork order.
//   - error: ErrRegistry for a class without cases, a *ForkError (matching
//     ErrForkFailed) when any fork fails. Earlier fork results are discarded.
func (o *Orchestrator) Execute(ctx context.Context, class string, cfg benchmark.Config) (benchmark.AggregatedResult, error) {
	cases, err := o.Registry.ListCases(class)
	if err != nil {
		return benchmark.AggregatedResult{}, err
	}

	summary := benchmark.NewSummary(class, cfg)
	agg := benchmark.AggregatedResult{RunID: o.RunID, Summary: summary}

	if summary.Forks == 1 && !o.Isolate {
		start := time.Now()
		fr, err := o.Local.Run(ctx, Job{
			Class:  class,
			Config: cfg,
			Cases:  cases,
			Setup:  o.Registry.Setup(class),
			Fork:   1,
			RunID:  o.RunID,
		})
		if err != nil {
			return benchmark.AggregatedResult{}, err
		}
		o.completed(class, 1, time.Since(start))
		agg.Forks = []benchmark.ForkResult{fr}
		return agg, nil
	}

	forks := make([]benchmark.ForkResult, 0, summary.Forks)
	for i := 1; i <= summary.Forks; i++ {
		if err := ctx.Err(); err != nil {
			return benchmark.AggregatedResult{}, err
		}
		o.logger().Info("fork starting", "class", class, "fork", i, "forks", summary.Forks)

		start := time.Now()
		fr, err := o.runFork(ctx, class, i, cfg)
		if err != nil {
			return benchmark.AggregatedResult{}, err
		}
		o.completed(class, i, time.Since(start))
		forks = append(forks, fr)
	}

	agg.Forks = forks
	return agg, nil
}

// runFork spawns one child and verifies what it returned.
func (o *Orchestrator) runFork(ctx context.Context, class string, fork int, cfg benchmark.Config) (benchmark.ForkResult, error) {
	spec, err := BuildChildSpec(o.Executable, class, fork, o.RunID, cfg, o.Environ)
	if err != nil {
		return benchmark.ForkResult{}, &ForkError{Class: class, Fork: fork, Err: err}
	}

	out, err := o.Spawner.Spawn(ctx, spec)
	if err != nil {
		return benchmark.ForkResult{}, &ForkError{Class: class, Fork: fork, ExitCode: out.ExitCode, Stdout: out.Stdout, Stderr: out.Stderr, Err: err}
	}
	fail := func(err error) error {
		return &ForkError{Class: class, Fork: fork, ExitCode: out.ExitCode, Stdout: out.Stdout, Stderr: out.Stderr, Err: err}
	}
	if out.ExitCode != 0 {
		return benchmark.ForkResult{}, fail(nil)
	}

	fr, err := DecodeForkResult(out.Stdout)
	if err != nil {
		return benchmark.ForkResult{}, fail(err)
	}
	switch {
	case fr.Fork != fork:
		return benchmark.ForkResult{}, fail(errors.Wrapf(ErrDeserialization, "child reported fork %d", fr.Fork))
	case fr.RunID != o.RunID:
		return benchmark.ForkResult{}, fail(errors.Wrapf(ErrDeserialization, "child reported run %q, expected %q", fr.RunID, o.RunID))
	case fr.Class != class:
		return benchmark.ForkResult{}, fail(errors.Wrapf(ErrDeserialization, "child reported class %q", fr.Class))
	}
	if len(out.Stderr) > 0 {
		o.logger().Debug("fork stderr", "class", class, "fork", fork, "stderr", string(out.Stderr))
	}
	return fr, nil
}

func (o *Orchestrator) completed(class string, fork int, elapsed time.Duration) {
	o.logger().Debug("fork finished", "class", class, "fork", fork, "elapsed", elapsed)
	if o.Observer != nil {
		o.Observer.ForkCompleted(class, fork, elapsed)
	}
}

func (o *Orchestrator) logger() *slog.Logger {
	if o.Logger == nil {
		return logging.Discard()
	}
	return o.Logger
}
