// Package engine - Timing engine that repeatedly invokes a benchmark case and
// reports its mean time per operation.
package engine

import (
	"context"
	"math"
	"reflect"
	"time"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/nvr-ai/go-mh/benchmark"
)

var (
	// ErrAsyncUnsupported indicates a case returned a value that completes
	// asynchronously; timing it would only measure how fast it is started.
	ErrAsyncUnsupported = errors.New("asynchronous benchmarks unsupported")

	// ErrCaseFailed indicates a case panicked or could not be run.
	ErrCaseFailed = errors.New("benchmark case failed")
)

// CaseSample is the engine's result for one case in one pass.
type CaseSample struct {
	MeanSecondsPerOp      float64 `json:"meanSecondsPerOp"`
	RelativeMarginOfError float64 `json:"rme"`
	SampleCount           int     `json:"sampleCount"`
}

// OpsPerSecond returns the throughput implied by the mean.
func (s CaseSample) OpsPerSecond() float64 {
	if s.MeanSecondsPerOp <= 0 {
		return 0
	}
	return 1 / s.MeanSecondsPerOp
}

// Engine times one case for at least a minimum duration.
type Engine interface {
	RunCase(ctx context.Context, c benchmark.Case, minDuration time.Duration) (CaseSample, error)
}

// awaitable matches future-like values such as a context.Context.
type awaitable interface {
	Done() <-chan struct{}
}

// IsAsync reports whether v completes asynchronously: a channel, or a
// value exposing Done() <-chan struct{}.
func IsAsync(v any) bool {
	if v == nil {
		return false
	}
	if _, ok := v.(awaitable); ok {
		return true
	}
	return reflect.TypeOf(v).Kind() == reflect.Chan
}

// Sampler is the default Engine. It calibrates a batch size so one sample
// takes at least minDuration/MinSamples, then collects samples until both
// minDuration has elapsed and MinSamples were taken.
type Sampler struct {
	// MinSamples is the minimum number of samples per case (default 10).
	MinSamples int
	// MaxBatch caps the number of invocations per sample (default 1<<30).
	MaxBatch int
}

// NewSampler creates a sampler with default settings.
func NewSampler() *Sampler {
	return &Sampler{MinSamples: 10, MaxBatch: 1 << 30}
}

// RunCase times c.
//
// Arguments:
//   - ctx: Checked between samples.
//   - c: The case to time.
//   - minDuration: Minimum total sampling time.
//
// Returns:
//   - CaseSample: Mean seconds per op, relative margin of error and sample count.
//   - error: ErrAsyncUnsupported, ErrCaseFailed, or the context error.
func (s *Sampler) RunCase(ctx context.Context, c benchmark.Case, minDuration time.Duration) (CaseSample, error) {
	if c.Invoke == nil {
		return CaseSample{}, errors.Wrapf(ErrCaseFailed, "case %q has no function", c.Name)
	}
	if minDuration <= 0 {
		return CaseSample{}, errors.Wrapf(ErrCaseFailed, "case %q: minimum duration %v is not positive", c.Name, minDuration)
	}

	minSamples := s.MinSamples
	if minSamples < 2 {
		minSamples = 2
	}
	maxBatch := s.MaxBatch
	if maxBatch < 1 {
		maxBatch = 1 << 30
	}

	if err := probe(c); err != nil {
		return CaseSample{}, err
	}

	target := minDuration / time.Duration(minSamples)
	batch, err := calibrate(ctx, c, target, maxBatch)
	if err != nil {
		return CaseSample{}, err
	}

	samples := make([]float64, 0, minSamples)
	start := time.Now()
	for len(samples) < minSamples || time.Since(start) < minDuration {
		if err := ctx.Err(); err != nil {
			return CaseSample{}, err
		}
		elapsed, err := runBatch(c, batch)
		if err != nil {
			return CaseSample{}, err
		}
		samples = append(samples, elapsed.Seconds()/float64(batch))
	}

	return Summarize(samples), nil
}

// probe invokes the case once and rejects asynchronous results.
func probe(c benchmark.Case) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Wrapf(ErrCaseFailed, "case %q panicked: %v", c.Name, r)
		}
	}()

	v := c.Invoke()
	if IsAsync(v) {
		return errors.Wrapf(ErrAsyncUnsupported, "case %q returned %T", c.Name, v)
	}
	benchmark.Consume(v)
	return nil
}

// calibrate grows the batch size until one batch lasts at least target.
func calibrate(ctx context.Context, c benchmark.Case, target time.Duration, maxBatch int) (int, error) {
	n := 1
	for {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		elapsed, err := runBatch(c, n)
		if err != nil {
			return 0, err
		}
		if elapsed >= target || n >= maxBatch {
			return n, nil
		}

		next := n * 100
		if elapsed > 0 {
			// Aim 20% past the target, growing at most 100x per round.
			predicted := int(float64(n)*float64(target)/float64(elapsed)*1.2) + 1
			if predicted < next {
				next = predicted
			}
		}
		if next <= n {
			next = n + 1
		}
		if next > maxBatch {
			next = maxBatch
		}
		n = next
	}
}

// runBatch invokes the case n times and returns the wall time.
func runBatch(c benchmark.Case, n int) (elapsed time.Duration, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Wrapf(ErrCaseFailed, "case %q panicked: %v", c.Name, r)
		}
	}()

	start := time.Now()
	for i := 0; i < n; i++ {
		benchmark.Consume(c.Invoke())
	}
	return time.Since(start), nil
}

// Summarize reduces per-op sample times (seconds) to a CaseSample. The
// margin of error uses the two-sided 95% Student's t critical value.
func Summarize(samples []float64) CaseSample {
	n := len(samples)
	if n == 0 {
		return CaseSample{}
	}

	mean := stat.Mean(samples, nil)
	out := CaseSample{MeanSecondsPerOp: mean, SampleCount: n}
	if n < 2 || mean <= 0 {
		return out
	}

	sem := stat.StdDev(samples, nil) / math.Sqrt(float64(n))
	critical := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: float64(n - 1)}.Quantile(0.975)
	out.RelativeMarginOfError = critical * sem / mean * 100
	return out
}
