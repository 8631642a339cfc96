package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"releasewatch/internal/app"
	"releasewatch/internal/storage"
	logx "releasewatch/pkg/logx"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var (
		limit  int
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List notified releases, oldest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.parseConfig()
			if err != nil {
				return err
			}
			sc, err := app.StorageConfig(cfg, true)
			if err != nil {
				return err
			}
			store, err := storage.Open(sc, logx.Nop())
			if err != nil {
				return err
			}
			defer store.Close()

			entries, err := store.History(cmd.Context())
			if err != nil {
				return err
			}
			if limit > 0 && len(entries) > limit {
				entries = entries[len(entries)-limit:]
			}

			if asJSON {
				return writeJSON(cmd, entries)
			}
			if len(entries) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No releases notified yet")
				return nil
			}
			rows := make([][]string, 0, len(entries))
			for _, e := range entries {
				notified := "-"
				if !e.NotifiedAt.IsZero() {
					notified = e.NotifiedAt.Local().Format(time.DateTime)
				}
				rows = append(rows, []string{
					strconv.Itoa(e.Seq),
					e.Record.Title,
					e.Record.Artist,
					e.Record.Link,
					notified,
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"#", "Title", "Artist", "Link", "Notified"},
				rows,
				[]columnAlignment{alignRight},
			))
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Show only the last n entries")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print entries as JSON")
	return cmd
}
