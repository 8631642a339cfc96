package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"releasewatch/internal/app"
)

func newOnceCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "once",
		Short: "Run a single poll cycle and exit",
		Long:  "Run a single poll cycle and exit. The exit code is non-zero when the page could not be fetched or parsed.",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := app.New(ctx.appOptions())
			if err != nil {
				return err
			}
			defer a.Stop(cmd.Context(), app.StopOnce)

			res, err := a.RunOnce(cmd.Context())
			if asJSON {
				if jerr := writeJSON(cmd, res); jerr != nil {
					return jerr
				}
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "entries=%d extracted=%d skipped=%d new=%d %s log=%d took=%s\n",
					res.Entries, res.Extracted, res.Diagnostics, res.New, res.Report, res.LogSize, res.Duration.Round(time.Millisecond))
			}
			return err
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the cycle result as JSON")
	return cmd
}
