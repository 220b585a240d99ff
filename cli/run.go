package cli

import (
	"os"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/nvr-ai/go-mh/benchmark"
	"github.com/nvr-ai/go-mh/metrics"
	"github.com/nvr-ai/go-mh/report"
	"github.com/nvr-ai/go-mh/runner"
)

type runOptions struct {
	format      string
	configFile  string
	metricsFile string
	isolate     bool
}

func newRunCmd(a *app) *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run <glob>",
		Short: "Run every benchmark class whose name matches the glob",
		Example: `  gomh run '*'
  gomh run 'Sum*' --format json
  gomh run ResizeBench --config overrides.yaml --metrics-file gomh.prom`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd, args[0], opts)
		},
	}

	cmd.Flags().StringVar(&opts.format, "format", "text", "report format (text, json)")
	cmd.Flags().StringVar(&opts.configFile, "config", "", "YAML file with per-class configuration overrides")
	cmd.Flags().StringVar(&opts.metricsFile, "metrics-file", "", "write Prometheus textfile metrics to this path")
	cmd.Flags().BoolVar(&opts.isolate, "isolate", false, "run in a child process even when a class has one fork")
	return cmd
}

func (a *app) run(cmd *cobra.Command, pattern string, opts *runOptions) error {
	output, err := report.NewOutput(opts.format)
	if err != nil {
		return err
	}

	classes, err := a.registry.Match(pattern)
	if err != nil {
		return err
	}
	if len(classes) == 0 {
		return errors.Wrapf(benchmark.ErrRegistry, "no benchmark classes matched: %s", pattern)
	}

	var overrides *benchmark.Overrides
	if opts.configFile != "" {
		if overrides, err = benchmark.LoadOverrides(opts.configFile); err != nil {
			return err
		}
		if err := overrides.Check(a.registry.Classes()); err != nil {
			return err
		}
	}

	// Resolve every class up front so an empty class or a bad override fails
	// before any case is timed.
	configs := make([]benchmark.Config, len(classes))
	for i, class := range classes {
		if _, err := a.registry.ListCases(class); err != nil {
			return err
		}
		if configs[i], err = a.registry.ResolveWith(class, overrides.Directives(class)...); err != nil {
			return err
		}
	}

	executable := a.executable
	if executable == "" {
		if executable, err = os.Executable(); err != nil {
			return errors.Wrap(err, "failed to locate the gomh executable")
		}
	}

	recorder := metrics.NewRecorder()
	runID := uuid.NewString()
	orch := &runner.Orchestrator{
		Registry:   a.registry,
		Local:      runner.NewScheduler(a.engine, a.logger),
		Spawner:    a.spawner,
		Executable: executable,
		Isolate:    opts.isolate,
		RunID:      runID,
		Environ:    a.environ,
		Observer:   recorder,
		Logger:     a.logger,
	}
	a.logger.Info("run starting", "run_id", runID, "classes", len(classes))

	reports := make([]report.Report, 0, len(classes))
	for i, class := range classes {
		agg, err := orch.Execute(cmd.Context(), class, configs[i])
		if err != nil {
			return err
		}
		rep, err := report.New(agg)
		if err != nil {
			return errors.Wrapf(err, "class %q", class)
		}
		reports = append(reports, rep)
	}

	for _, rep := range reports {
		recorder.RecordRows(rep.Summary.Class, report.UnitLabel(rep.Summary), rep.Rows)
		if err := output.Output(rep, cmd.OutOrStdout()); err != nil {
			return errors.Wrap(err, "failed to write report")
		}
	}

	if opts.metricsFile != "" {
		if err := recorder.WriteTextfile(opts.metricsFile); err != nil {
			return err
		}
	}
	a.logger.Info("run finished", "run_id", runID)
	return nil
}
