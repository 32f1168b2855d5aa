package cli

import (
	"github.com/spf13/cobra"
)

func NewCmdRoot() *cobra.Command {
	o := DefaultGlobalOptions()
	cmd := &cobra.Command{
		Use:   "people-search",
		Short: "Search for the people listed in a CSV file",
		Long: `Uploads a CSV of contacts (name, address, phone) to the people search backend
and shows who was found. Without a subcommand it starts an interactive shell.`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := o.Complete(cmd, args); err != nil {
				return err
			}
			if err := o.Validate(args); err != nil {
				return err
			}
			defer o.Sync()
			return runShell(cmd.Context(), o)
		},
	}
	o.Bind(cmd.PersistentFlags())

	cmd.AddCommand(NewCmdHealth(o))
	cmd.AddCommand(NewCmdUpload(o))
	cmd.AddCommand(NewCmdSample())
	return cmd
}
