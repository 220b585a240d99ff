// Package cli - The gomh command line: run benchmark classes and act as a fork child.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nvr-ai/go-mh/benchmark"
	"github.com/nvr-ai/go-mh/engine"
	"github.com/nvr-ai/go-mh/logging"
	"github.com/nvr-ai/go-mh/runner"
)

// app carries the dependencies shared by the sub-commands.
type app struct {
	registry   *benchmark.Registry
	engine     engine.Engine
	spawner    runner.Spawner
	executable string
	environ    []string
	getenv     func(string) string
	logger     *slog.Logger

	logLevel  string
	logFormat string
}

// Option customizes the command.
type Option func(*app)

// WithEngine replaces the timing engine.
func WithEngine(e engine.Engine) Option {
	return func(a *app) { a.engine = e }
}

// WithSpawner replaces how forks are started.
func WithSpawner(s runner.Spawner) Option {
	return func(a *app) { a.spawner = s }
}

// WithExecutable sets the binary re-executed for forks.
func WithExecutable(path string) Option {
	return func(a *app) { a.executable = path }
}

// WithEnviron sets the environment forks inherit and children read.
func WithEnviron(environ []string) Option {
	return func(a *app) {
		a.environ = environ
		a.getenv = lookupEnv(environ)
	}
}

// New builds the root command for a sealed registry.
//
// Arguments:
//   - reg: The benchmark classes available to run.
//   - opts: Optional overrides of the engine, spawner and environment.
//
// Returns:
//   - *cobra.Command: The root command.
func New(reg *benchmark.Registry, opts ...Option) *cobra.Command {
	a := &app{
		registry: reg,
		engine:   engine.NewSampler(),
		spawner:  runner.ExecSpawner{},
		environ:  os.Environ(),
		getenv:   os.Getenv,
	}
	for _, opt := range opts {
		opt(a)
	}

	root := &cobra.Command{
		Use:   "gomh",
		Short: "Micro-benchmark harness with forked, repeatable measurements",
		Long: `gomh runs the benchmark classes compiled into this binary.

Each class is warmed up, measured over several iterations and optionally
replicated across isolated child processes (forks). Results of every fork
are aggregated into one report per class.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.initLogger(cmd)
		},
	}

	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&a.logFormat, "log-format", string(logging.FormatAuto), "log format (auto, text, json)")

	root.AddCommand(newRunCmd(a), newChildCmd(a), newListCmd(a))
	return root
}

func (a *app) initLogger(cmd *cobra.Command) error {
	level, err := logging.ParseLevel(a.logLevel)
	if err != nil {
		return err
	}
	format, err := logging.ParseFormat(a.logFormat)
	if err != nil {
		return err
	}
	a.logger = logging.New(logging.Config{Level: level, Format: format, Output: cmd.ErrOrStderr()})
	return nil
}

// Execute runs the command line and returns the process exit code.
func Execute(reg *benchmark.Registry) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := New(reg).ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func lookupEnv(environ []string) func(string) string {
	m := make(map[string]string, len(environ))
	for _, kv := range environ {
		if k, v, ok := strings.Cut(kv, "="); ok {
			m[k] = v
		}
	}
	return func(k string) string { return m[k] }
}
