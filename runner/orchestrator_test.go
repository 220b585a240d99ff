package runner

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvr-ai/go-mh/benchmark"
	"github.com/nvr-ai/go-mh/logging"
)

// fakeSpawner plays the child in-process: it reads the markers from the
// spec's environment, runs the scheduler and encodes the result.
type fakeSpawner struct {
	registry *benchmark.Registry
	engine   *fakeEngine
	specs    []ChildSpec
	// failFork makes that fork exit non-zero.
	failFork int
	// tamper rewrites the result before it is encoded.
	tamper func(*benchmark.ForkResult)
	// stderr is what a successful child writes to its stderr.
	stderr string
}

func (f *fakeSpawner) Spawn(ctx context.Context, spec ChildSpec) (ChildOutput, error) {
	f.specs = append(f.specs, spec)

	child, err := ChildContextFromEnv(lookup(spec.Env))
	if err != nil {
		return ChildOutput{Stderr: []byte(err.Error()), ExitCode: 1}, nil
	}
	if child.Fork == f.failFork {
		return ChildOutput{Stdout: []byte("partial"), Stderr: []byte("case exploded"), ExitCode: 2}, nil
	}

	class := spec.Args[len(spec.Args)-1]
	cases, err := f.registry.ListCases(class)
	if err != nil {
		return ChildOutput{Stderr: []byte(err.Error()), ExitCode: 1}, nil
	}

	fr, err := NewScheduler(f.engine, nil).Run(ctx, Job{
		Class: class, Config: child.Config, Cases: cases, Fork: child.Fork, RunID: child.RunID,
	})
	if err != nil {
		return ChildOutput{Stderr: []byte(err.Error()), ExitCode: 1}, nil
	}
	if f.tamper != nil {
		f.tamper(&fr)
	}

	var stdout bytes.Buffer
	if err := EncodeForkResult(&stdout, fr); err != nil {
		return ChildOutput{}, err
	}
	return ChildOutput{Stdout: stdout.Bytes(), Stderr: []byte(f.stderr)}, nil
}

type observed struct {
	class string
	fork  int
}

type recordingObserver struct{ seen []observed }

func (r *recordingObserver) ForkCompleted(class string, fork int, _ time.Duration) {
	r.seen = append(r.seen, observed{class, fork})
}

func newOrchestrator(t *testing.T, forks int) (*Orchestrator, *fakeSpawner, *recordingObserver, benchmark.Config) {
	t.Helper()

	reg := benchmark.NewRegistry()
	require.NoError(t, benchmark.NewClass("Forked").
		WithWarmup(benchmark.Schedule{Iterations: 1, Time: 1, TimeUnit: benchmark.Milliseconds}).
		WithMeasurementIterations(2).
		WithFork(benchmark.ForkSpec{Count: forks, Env: map[string]string{"GOGC": "off"}}).
		WithCase("a", noop).
		WithCase("b", noop).
		Register(reg))
	reg.Seal()

	cfg, err := reg.Config("Forked")
	require.NoError(t, err)

	eng := &fakeEngine{}
	spawner := &fakeSpawner{registry: reg, engine: eng}
	obs := &recordingObserver{}
	return &Orchestrator{
		Registry:   reg,
		Local:      NewScheduler(eng, nil),
		Spawner:    spawner,
		Executable: "/usr/local/bin/gomh",
		RunID:      "run-42",
		Environ:    []string{"PATH=/bin"},
		Observer:   obs,
	}, spawner, obs, cfg
}

func TestExecuteForks(t *testing.T) {
	o, spawner, obs, cfg := newOrchestrator(t, 3)

	agg, err := o.Execute(context.Background(), "Forked", cfg)
	require.NoError(t, err)

	assert.Equal(t, "run-42", agg.RunID)
	assert.Equal(t, 3, agg.Summary.Forks)
	assert.Equal(t, "1x1ms", agg.Summary.Warmup.String())
	require.Len(t, agg.Forks, 3)
	for i, fr := range agg.Forks {
		assert.Equal(t, i+1, fr.Fork)
		assert.Len(t, fr.Iterations, 2)
	}

	require.Len(t, spawner.specs, 3)
	assert.Equal(t, []string{ChildCommand, "Forked"}, spawner.specs[0].Args)
	assert.Contains(t, spawner.specs[2].Env, EnvForkIndex+"=3")
	assert.Contains(t, spawner.specs[2].Env, "GOGC=off")

	assert.Equal(t, []observed{{"Forked", 1}, {"Forked", 2}, {"Forked", 3}}, obs.seen)
}

func TestExecuteLogsChildStderr(t *testing.T) {
	o, spawner, _, cfg := newOrchestrator(t, 2)
	spawner.stderr = "level=INFO msg=\"child says hi\"\n"

	var logs bytes.Buffer
	o.Logger = logging.New(logging.Config{Level: slog.LevelDebug, Format: logging.FormatJSON, Output: &logs})

	_, err := o.Execute(context.Background(), "Forked", cfg)
	require.NoError(t, err)

	out := logs.String()
	assert.Equal(t, 2, strings.Count(out, `"msg":"fork stderr"`))
	assert.Contains(t, out, `child says hi`)
	assert.Contains(t, out, `"fork":2`)
}

func TestExecuteSkipsEmptyChildStderr(t *testing.T) {
	o, _, _, cfg := newOrchestrator(t, 2)

	var logs bytes.Buffer
	o.Logger = logging.New(logging.Config{Level: slog.LevelDebug, Format: logging.FormatJSON, Output: &logs})

	_, err := o.Execute(context.Background(), "Forked", cfg)
	require.NoError(t, err)
	assert.NotContains(t, logs.String(), "fork stderr")
}

func TestExecuteForkFailureDiscardsResults(t *testing.T) {
	o, spawner, obs, cfg := newOrchestrator(t, 3)
	spawner.failFork = 2

	agg, err := o.Execute(context.Background(), "Forked", cfg)
	require.Error(t, err)
	assert.Empty(t, agg.Forks)
	assert.True(t, errors.Is(err, ErrForkFailed))

	var forkErr *ForkError
	require.True(t, errors.As(err, &forkErr))
	assert.Equal(t, 2, forkErr.Fork)
	assert.Equal(t, 2, forkErr.ExitCode)
	assert.Contains(t, err.Error(), "STDERR:\ncase exploded")
	assert.Contains(t, err.Error(), "STDOUT:\npartial")

	// Fork 3 is never started.
	assert.Len(t, spawner.specs, 2)
	assert.Len(t, obs.seen, 1)
}

func TestExecuteRejectsForeignResults(t *testing.T) {
	tests := map[string]func(*benchmark.ForkResult){
		"wrong run":   func(fr *benchmark.ForkResult) { fr.RunID = "other" },
		"wrong fork":  func(fr *benchmark.ForkResult) { fr.Fork = 7 },
		"wrong class": func(fr *benchmark.ForkResult) { fr.Class = "Elsewhere" },
	}
	for name, tamper := range tests {
		t.Run(name, func(t *testing.T) {
			o, spawner, _, cfg := newOrchestrator(t, 2)
			spawner.tamper = tamper

			_, err := o.Execute(context.Background(), "Forked", cfg)
			assert.True(t, errors.Is(err, ErrForkFailed))
			assert.True(t, errors.Is(err, ErrDeserialization))
		})
	}
}

func TestExecuteInProcess(t *testing.T) {
	o, spawner, obs, cfg := newOrchestrator(t, 1)

	agg, err := o.Execute(context.Background(), "Forked", cfg)
	require.NoError(t, err)
	require.Len(t, agg.Forks, 1)
	assert.Equal(t, "run-42", agg.Forks[0].RunID)
	assert.Empty(t, spawner.specs)
	assert.Len(t, obs.seen, 1)

	o.Isolate = true
	agg, err = o.Execute(context.Background(), "Forked", cfg)
	require.NoError(t, err)
	require.Len(t, agg.Forks, 1)
	assert.Len(t, spawner.specs, 1)
}

func TestExecuteUnknownOrEmptyClass(t *testing.T) {
	o, spawner, _, cfg := newOrchestrator(t, 2)

	_, err := o.Execute(context.Background(), "Missing", cfg)
	assert.True(t, errors.Is(err, benchmark.ErrRegistry))
	assert.Empty(t, spawner.specs)
}

func TestExecuteCancelled(t *testing.T) {
	o, spawner, _, cfg := newOrchestrator(t, 2)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := o.Execute(ctx, "Forked", cfg)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Empty(t, spawner.specs)
}

// TestHelperProcess is not a real test. ExecSpawner tests run the test
// binary itself as the child.
func TestHelperProcess(t *testing.T) {
	child, err := ChildContextFromEnv(os.Getenv)
	if errors.Is(err, ErrNotChild) {
		return
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if os.Getenv("GOMH_HELPER_FAIL") == "1" {
		fmt.Fprintln(os.Stderr, "helper failing on purpose")
		os.Exit(3)
	}

	v := float64(child.Fork)
	fr := benchmark.ForkResult{
		Fork:  child.Fork,
		Class: os.Args[len(os.Args)-1],
		RunID: child.RunID,
		Iterations: []benchmark.IterationResult{{Iteration: 1, Results: []benchmark.RunResult{
			{BenchName: "helper", Mode: benchmark.ModeAverageTime, Unit: child.Config.OutputUnit, MeanValue: &v},
		}}},
		Env: CurrentEnv(),
	}
	if err := EncodeForkResult(os.Stdout, fr); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	os.Exit(0)
}

func helperOrchestrator(t *testing.T, env map[string]string) (*Orchestrator, benchmark.Config) {
	t.Helper()

	reg := benchmark.NewRegistry()
	require.NoError(t, reg.Register("Helper", "helper", noop))
	cfg, err := reg.ResolveWith("Helper", benchmark.WithFork(benchmark.ForkSpec{
		Count: 2,
		Args:  []string{"-test.run=^TestHelperProcess$"},
		Env:   env,
	}))
	require.NoError(t, err)

	return &Orchestrator{
		Registry:   reg,
		Spawner:    ExecSpawner{},
		Executable: os.Args[0],
		RunID:      "exec-run",
		Environ:    os.Environ(),
	}, cfg
}

func TestExecSpawner(t *testing.T) {
	o, cfg := helperOrchestrator(t, nil)

	agg, err := o.Execute(context.Background(), "Helper", cfg)
	require.NoError(t, err)
	require.Len(t, agg.Forks, 2)
	assert.Equal(t, 2.0, *agg.Forks[1].Iterations[0].Results[0].MeanValue)
	assert.NotEqual(t, os.Getpid(), agg.Forks[0].Env.PID)
}

func TestExecSpawnerFailure(t *testing.T) {
	o, cfg := helperOrchestrator(t, map[string]string{"GOMH_HELPER_FAIL": "1"})

	_, err := o.Execute(context.Background(), "Helper", cfg)
	var forkErr *ForkError
	require.True(t, errors.As(err, &forkErr))
	assert.Equal(t, 1, forkErr.Fork)
	assert.Equal(t, 3, forkErr.ExitCode)
	assert.True(t, strings.Contains(string(forkErr.Stderr), "helper failing on purpose"))
}

func TestExecSpawnerMissingBinary(t *testing.T) {
	_, err := ExecSpawner{}.Spawn(context.Background(), ChildSpec{Executable: "/nonexistent/gomh"})
	assert.Error(t, err)
}
