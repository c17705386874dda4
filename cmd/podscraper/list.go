package main

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"podscraper/pkg/export"
)

func newListCommand(opts *rootOptions) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recently scraped episodes (metadata only)",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			st, err := opts.openStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close()

			episodes, err := st.ListRecent(ctx, limit)
			if err != nil {
				return err
			}

			if len(episodes) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No episodes stored yet.")
				return nil
			}

			tw := table.NewWriter()
			tw.SetOutputMirror(cmd.OutOrStdout())
			tw.SetStyle(table.StyleRounded)
			tw.AppendHeader(table.Row{"Title", "Feed", "Published", "Words", "Source", "Scraped At"})
			tw.SetColumnConfigs([]table.ColumnConfig{
				{Number: 1, WidthMax: 50},
				{Number: 2, WidthMax: 30},
				{Number: 4, Align: text.AlignRight},
			})

			for _, ep := range episodes {
				tw.AppendRow(table.Row{
					ep.Title,
					ep.FeedName,
					export.FormatDate(&ep),
					ep.WordCount,
					string(ep.Source),
					ep.ScrapedAt.Format("2006-01-02 15:04:05"),
				})
			}
			tw.Render()
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 50, "Max episodes to show")

	return cmd
}
