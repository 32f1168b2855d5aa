package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"people-search/internal/csvfile"
	"people-search/internal/display"
	"people-search/internal/session"
)

type UploadOptions struct {
	*GlobalOptions
	exportPath string
	json       bool
}

func NewCmdUpload(g *GlobalOptions) *cobra.Command {
	o := &UploadOptions{GlobalOptions: g}
	cmd := &cobra.Command{
		Use:          "upload <file>",
		Short:        "Upload a CSV file and print the search results",
		Example:      "upload contacts.csv --export results.csv",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := o.Complete(cmd, args); err != nil {
				return err
			}
			if err := o.Validate(args); err != nil {
				return err
			}
			defer o.Sync()
			return o.Run(cmd.Context(), args[0], cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}
	o.Bind(cmd.Flags())
	return cmd
}

func (o *UploadOptions) Bind(fs *pflag.FlagSet) {
	fs.StringVarP(&o.exportPath, "export", "o", o.exportPath, "Also write the results as CSV to this path")
	fs.BoolVar(&o.json, "json", o.json, "Print the raw response as JSON")
}

// Run submits path and blocks until the search finishes. Progress goes to
// errOut, results to out.
func (o *UploadOptions) Run(ctx context.Context, path string, out, errOut io.Writer) error {
	req, err := csvfile.Load(path)
	if err != nil {
		return err
	}

	sess := o.NewSession(o.Client())
	defer sess.Close()
	states, unsubscribe := sess.Subscribe()
	defer unsubscribe()

	id, err := sess.Submit(ctx, req)
	if err != nil {
		return err
	}
	fmt.Fprintf(errOut, "[Search %s STARTED] %s\n", id, req.FileName())

	lastPercent := -1
	for {
		select {
		case st, ok := <-states:
			if !ok {
				states = nil
				continue
			}
			if st.ProgressPercent != lastPercent {
				lastPercent = st.ProgressPercent
				fmt.Fprintln(errOut, display.ProgressBar(lastPercent))
			}
		case res := <-sess.Results():
			return o.finish(res, out, errOut)
		}
	}
}

func (o *UploadOptions) finish(res session.Result, out, errOut io.Writer) error {
	if !res.Succeeded() {
		fmt.Fprintln(errOut, display.Failure(res))
		return fmt.Errorf("search %s failed", res.SubmissionID)
	}

	if o.json {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(res.Payload); err != nil {
			return err
		}
	} else {
		fmt.Fprintln(out, display.FormatResults(res.Payload))
	}
	fmt.Fprint(errOut, display.FormatSubmissionMetrics(res.Metrics))

	if o.exportPath != "" {
		if err := writeResultsFile(o.exportPath, res.Payload); err != nil {
			return err
		}
		fmt.Fprintf(errOut, "Exported %d result(s) to %s\n", len(res.Payload.People), o.exportPath)
	}
	return nil
}
