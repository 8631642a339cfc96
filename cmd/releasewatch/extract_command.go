package main

import (
	"bytes"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"releasewatch/internal/app"
	"releasewatch/internal/extract"
	"releasewatch/internal/source"
)

func newExtractCommand(ctx *commandContext) *cobra.Command {
	var (
		file   string
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "extract",
		Short: "Preview what would be extracted from the release page",
		Long:  "Fetch the release page (or read --file) and print the extracted releases and skipped entries. Nothing is sent or persisted.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.parseConfig()
			if err != nil {
				return err
			}
			x, err := extract.New(app.ExtractOptions(cfg))
			if err != nil {
				return err
			}

			var body []byte
			if file != "" {
				body, err = os.ReadFile(file)
			} else {
				var sc source.Config
				if sc, err = app.SourceConfig(cfg); err == nil {
					body, err = source.New(sc).Fetch(cmd.Context())
				}
			}
			if err != nil {
				return err
			}

			res, err := x.Extract(bytes.NewReader(body))
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd, res)
			}

			out := cmd.OutOrStdout()
			rows := make([][]string, 0, len(res.Releases))
			for i, r := range res.Releases {
				rows = append(rows, []string{strconv.Itoa(i + 1), r.Title, r.Artist, r.Link, r.ImageURL})
			}
			fmt.Fprintln(out, renderTable([]string{"#", "Title", "Artist", "Link", "Image"}, rows, []columnAlignment{alignRight}))

			if len(res.Diagnostics) > 0 {
				drows := make([][]string, 0, len(res.Diagnostics))
				for _, d := range res.Diagnostics {
					drows = append(drows, []string{strconv.Itoa(d.Index), string(d.Kind), d.Reason})
				}
				fmt.Fprintln(out, renderTable([]string{"Entry", "Kind", "Reason"}, drows, []columnAlignment{alignRight}))
			}
			fmt.Fprintf(out, "%d entries, %d extracted, %d skipped\n", res.Entries, len(res.Releases), len(res.Diagnostics))
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "Read the page from a saved HTML file instead of fetching it")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the result as JSON")
	return cmd
}
