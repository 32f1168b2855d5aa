package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"people-search/internal/display"
	"people-search/internal/probe"
)

type HealthOptions struct {
	*GlobalOptions
}

func NewCmdHealth(g *GlobalOptions) *cobra.Command {
	o := &HealthOptions{GlobalOptions: g}
	cmd := &cobra.Command{
		Use:           "health",
		Short:         "Check that the search backend is reachable",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := o.Complete(cmd, args); err != nil {
				return err
			}
			if err := o.Validate(args); err != nil {
				return err
			}
			defer o.Sync()
			return o.Run(cmd.Context(), cmd.OutOrStdout())
		},
	}
	return cmd
}

// Run probes once. The error only carries the exit status; the outcome has
// already been printed.
func (o *HealthOptions) Run(ctx context.Context, out io.Writer) error {
	res := o.NewProber(o.Client()).Probe(ctx)
	fmt.Fprintln(out, display.ProbeResult(res))
	if res.Status != probe.StatusConnected {
		return errors.New(res.Message)
	}
	return nil
}
