package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/nvr-ai/go-mh/runner"
)

func newChildCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:    runner.ChildCommand + " <class>",
		Short:  "Run one fork of a class (internal)",
		Hidden: true,
		Args:   cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runChild(cmd, args[0])
		},
	}
}

func (a *app) runChild(cmd *cobra.Command, class string) error {
	child, err := runner.ChildContextFromEnv(a.getenv)
	if err != nil {
		return err
	}
	cases, err := a.registry.ListCases(class)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	restore := redirectStdout()
	fr, err := runner.NewScheduler(a.engine, a.logger).Run(cmd.Context(), runner.Job{
		Class:  class,
		Config: child.Config,
		Cases:  cases,
		Setup:  a.registry.Setup(class),
		Fork:   child.Fork,
		RunID:  child.RunID,
	})
	restore()
	if err != nil {
		return err
	}

	return runner.EncodeForkResult(out, fr)
}

// redirectStdout points os.Stdout at stderr so that anything a case prints
// cannot corrupt the result envelope. The returned func restores it.
func redirectStdout() func() {
	saved := os.Stdout
	os.Stdout = os.Stderr
	return func() { os.Stdout = saved }
}
