package cli

import (
	"fmt"
	"io"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func newListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list [glob]",
		Short: "List benchmark classes and their cases",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pattern := "*"
			if len(args) == 1 {
				pattern = args[0]
			}
			return a.list(cmd.OutOrStdout(), pattern)
		},
	}
}

func (a *app) list(w io.Writer, pattern string) error {
	classes, err := a.registry.Match(pattern)
	if err != nil {
		return err
	}

	for _, class := range classes {
		cfg, err := a.registry.Config(class)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "%s (%s, %s, forks=%d)\n", class, cfg.Mode, cfg.Unit(), cfg.Fork.Count); err != nil {
			return errors.Wrap(err, "failed to write class list")
		}

		cases, err := a.registry.ListCases(class)
		if err != nil {
			fmt.Fprintln(w, "  (no cases)")
			continue
		}
		for _, c := range cases {
			fmt.Fprintf(w, "  %s\n", c.Name)
		}
	}
	return nil
}
