package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"people-search/internal/csvfile"
)

func NewCmdSample() *cobra.Command {
	return &cobra.Command{
		Use:          "sample [file]",
		Short:        "Write a sample contacts CSV ('-' for stdout)",
		Args:         cobra.MaximumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := DefaultSampleFile
			if len(args) == 1 {
				path = args[0]
			}
			if path == "-" {
				return csvfile.WriteSample(cmd.OutOrStdout())
			}
			if err := writeSampleFile(path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Wrote sample contacts to %s\n", path)
			return nil
		},
	}
}
