package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvr-ai/go-mh/benchmark"
	"github.com/nvr-ai/go-mh/engine"
	"github.com/nvr-ai/go-mh/report"
	"github.com/nvr-ai/go-mh/runner"
)

// fixedEngine reports 1ms/op for "slow" and 0.5ms/op for everything else.
type fixedEngine struct{}

func (fixedEngine) RunCase(_ context.Context, c benchmark.Case, _ time.Duration) (engine.CaseSample, error) {
	mean := 0.0005
	if c.Name == "slow" {
		mean = 0.001
	}
	return engine.CaseSample{MeanSecondsPerOp: mean, RelativeMarginOfError: 1, SampleCount: 10}, nil
}

// countingEngine counts RunCase calls and otherwise behaves like fixedEngine.
type countingEngine struct {
	fixedEngine
	calls int
}

func (e *countingEngine) RunCase(ctx context.Context, c benchmark.Case, d time.Duration) (engine.CaseSample, error) {
	e.calls++
	return e.fixedEngine.RunCase(ctx, c, d)
}

// failingSpawner makes every fork exit non-zero.
type failingSpawner struct{ calls int }

func (f *failingSpawner) Spawn(context.Context, runner.ChildSpec) (runner.ChildOutput, error) {
	f.calls++
	return runner.ChildOutput{Stderr: []byte("child blew up"), ExitCode: 1}, nil
}

func nothing() any { return nil }

func testRegistry(t *testing.T) *benchmark.Registry {
	t.Helper()

	reg := benchmark.NewRegistry()
	require.NoError(t, benchmark.NewClass("Local").
		WithWarmup(benchmark.Schedule{Iterations: 1, Time: 1, TimeUnit: benchmark.Milliseconds}).
		WithMeasurement(benchmark.Schedule{Iterations: 2, Time: 1, TimeUnit: benchmark.Milliseconds}).
		WithCase("slow", nothing).
		WithCase("fast", nothing).
		Register(reg))
	require.NoError(t, benchmark.NewClass("Forked").
		WithWarmup(benchmark.Schedule{Iterations: 1, Time: 1, TimeUnit: benchmark.Milliseconds}).
		WithFork(benchmark.ForkSpec{Count: 2}).
		WithCase("only", nothing).
		Register(reg))
	require.NoError(t, reg.Define("Empty"))
	reg.Seal()
	return reg
}

func execute(t *testing.T, reg *benchmark.Registry, args []string, opts ...Option) (string, string, error) {
	t.Helper()

	opts = append([]Option{WithEngine(fixedEngine{}), WithExecutable("/usr/bin/gomh")}, opts...)
	cmd := New(reg, opts...)
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func TestHelp(t *testing.T) {
	for _, args := range [][]string{{}, {"help"}, {"-h"}} {
		out, _, err := execute(t, testRegistry(t), args)
		require.NoError(t, err)
		assert.Contains(t, out, "run")
		assert.NotContains(t, out, runner.ChildCommand)
	}
}

func TestUnknownCommand(t *testing.T) {
	_, _, err := execute(t, testRegistry(t), []string{"bogus"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown command "bogus"`)
}

func TestRunRequiresGlob(t *testing.T) {
	_, _, err := execute(t, testRegistry(t), []string{"run"})
	assert.Error(t, err)
}

func TestRunInProcess(t *testing.T) {
	out, stderr, err := execute(t, testRegistry(t), []string{"run", "Local", "--log-format", "json"})
	require.NoError(t, err)

	assert.Contains(t, out, "=== gomh: Local ===")
	assert.Contains(t, out, "mode=AverageTime, unit=ms/op, forks=1, warmup=1x1ms, measurement=2x1ms")
	assert.Contains(t, out, "(relative to fastest: fast)")
	assert.Contains(t, out, "- slow: x2.000 (+100.0%)")
	assert.Contains(t, stderr, `"msg":"run finished"`)
}

func TestRunJSON(t *testing.T) {
	out, _, err := execute(t, testRegistry(t), []string{"run", "Local", "--format", "json"})
	require.NoError(t, err)

	var rep report.Report
	require.NoError(t, json.Unmarshal([]byte(out), &rep))
	assert.NotEmpty(t, rep.RunID)
	assert.Equal(t, "Local", rep.Summary.Class)
	require.Len(t, rep.Rows, 2)
	assert.Equal(t, "fast", rep.Rows[0].Name)
	assert.InDelta(t, 0.5, rep.Rows[0].Mean, 1e-9)
	assert.Equal(t, 2, rep.Rows[0].N)
}

func TestRunForkFailureProducesNoReport(t *testing.T) {
	spawner := &failingSpawner{}
	out, _, err := execute(t, testRegistry(t), []string{"run", "*"}, WithSpawner(spawner))

	require.Error(t, err)
	assert.True(t, errors.Is(err, runner.ErrForkFailed))
	assert.Contains(t, err.Error(), "child blew up")
	assert.Empty(t, out)
	assert.Equal(t, 1, spawner.calls)
}

func TestRunEmptyClassFails(t *testing.T) {
	out, _, err := execute(t, testRegistry(t), []string{"run", "*"}, WithSpawner(&failingSpawner{}))
	require.Error(t, err)
	assert.Empty(t, out)

	_, _, err = execute(t, testRegistry(t), []string{"run", "Empty"})
	assert.True(t, errors.Is(err, benchmark.ErrRegistry))
	assert.Contains(t, err.Error(), "has no cases")
}

func TestRunEmptyClassFailsBeforeTiming(t *testing.T) {
	eng := &countingEngine{}
	spawner := &failingSpawner{}
	out, _, err := execute(t, testRegistry(t), []string{"run", "*"}, WithEngine(eng), WithSpawner(spawner))

	require.Error(t, err)
	assert.True(t, errors.Is(err, benchmark.ErrRegistry))
	assert.Contains(t, err.Error(), `"Empty" has no cases`)
	assert.Zero(t, eng.calls)
	assert.Zero(t, spawner.calls)
	assert.Empty(t, out)
}

func TestRunNoMatch(t *testing.T) {
	_, _, err := execute(t, testRegistry(t), []string{"run", "Nothing*"})
	assert.True(t, errors.Is(err, benchmark.ErrRegistry))
	assert.Contains(t, err.Error(), "no benchmark classes matched")
}

func TestRunIsolateUsesSpawner(t *testing.T) {
	spawner := &failingSpawner{}
	_, _, err := execute(t, testRegistry(t), []string{"run", "Local", "--isolate"}, WithSpawner(spawner))
	assert.True(t, errors.Is(err, runner.ErrForkFailed))
	assert.Equal(t, 1, spawner.calls)
}

func TestRunWithOverridesAndMetrics(t *testing.T) {
	dir := t.TempDir()
	config := filepath.Join(dir, "overrides.yaml")
	require.NoError(t, os.WriteFile(config, []byte("classes:\n  Local:\n    measurement: 1\n    outputUnit: us\n"), 0o644))
	metricsFile := filepath.Join(dir, "gomh.prom")

	out, _, err := execute(t, testRegistry(t), []string{
		"run", "Local", "--format", "json", "--config", config, "--metrics-file", metricsFile,
	})
	require.NoError(t, err)

	var rep report.Report
	require.NoError(t, json.Unmarshal([]byte(out), &rep))
	assert.Equal(t, 1, rep.Summary.Measurement.Iterations)
	assert.Equal(t, benchmark.Microseconds, rep.Summary.Unit)
	assert.InDelta(t, 500.0, rep.Rows[0].Mean, 1e-6)

	data, err := os.ReadFile(metricsFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), `gomh_forks_total{class="Local"} 1`)
	assert.Contains(t, string(data), `gomh_case_mean{case="fast",class="Local",unit="us/op"} 500`)
}

func TestRunRejectsBadOverrides(t *testing.T) {
	config := filepath.Join(t.TempDir(), "overrides.yaml")
	require.NoError(t, os.WriteFile(config, []byte("classes:\n  Ghost:\n    measurement: 1\n"), 0o644))

	_, _, err := execute(t, testRegistry(t), []string{"run", "Local", "--config", config})
	assert.True(t, errors.Is(err, benchmark.ErrConfiguration))
}

func TestRunBadFlags(t *testing.T) {
	_, _, err := execute(t, testRegistry(t), []string{"run", "Local", "--format", "xml"})
	assert.Error(t, err)

	_, _, err = execute(t, testRegistry(t), []string{"run", "Local", "--log-level", "loud"})
	assert.Error(t, err)
}

func TestRunChild(t *testing.T) {
	reg := testRegistry(t)
	cfg, err := reg.Config("Forked")
	require.NoError(t, err)
	spec, err := runner.BuildChildSpec("/usr/bin/gomh", "Forked", 2, "run-7", cfg, nil)
	require.NoError(t, err)

	out, _, err := execute(t, reg, spec.Args, WithEnviron(spec.Env))
	require.NoError(t, err)

	fr, err := runner.DecodeForkResult([]byte(out))
	require.NoError(t, err)
	assert.Equal(t, 2, fr.Fork)
	assert.Equal(t, "run-7", fr.RunID)
	assert.Equal(t, "Forked", fr.Class)
	assert.Len(t, fr.Iterations, cfg.Measurement.Iterations)
}

func TestRunChildOutsideFork(t *testing.T) {
	_, _, err := execute(t, testRegistry(t), []string{runner.ChildCommand, "Forked"}, WithEnviron(nil))
	assert.True(t, errors.Is(err, runner.ErrNotChild))
}

func TestList(t *testing.T) {
	out, _, err := execute(t, testRegistry(t), []string{"list"})
	require.NoError(t, err)

	assert.Contains(t, out, "Local (AverageTime, ms/op, forks=1)\n  slow\n  fast\n")
	assert.Contains(t, out, "Forked (AverageTime, ms/op, forks=2)\n  only\n")
	assert.Contains(t, out, "Empty (AverageTime, ms/op, forks=1)\n  (no cases)\n")
}
