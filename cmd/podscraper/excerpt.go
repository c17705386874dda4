package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"podscraper/pkg/export"
)

func newExcerptCommand(opts *rootOptions) *cobra.Command {
	var excerptOpts export.ExcerptOptions

	cmd := &cobra.Command{
		Use:   "excerpt",
		Short: "Emit a size-bounded JSON excerpt payload on stdout",
		Long: `Emit a JSON payload of truncated transcript excerpts for downstream
summarization. The payload is the only content on stdout (logs go to stderr),
so it can be piped directly into another process. An empty episode list is a
valid payload, not an error.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			feedNames, err := resolveGroupFeeds(opts, excerptOpts.Group)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			st, err := opts.openStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close()

			payload, err := export.New(st).BuildExcerpts(ctx, feedNames, excerptOpts)
			if err != nil {
				return err
			}

			encoded, err := json.MarshalIndent(payload, "", "  ")
			if err != nil {
				return fmt.Errorf("encode payload: %w", err)
			}

			fmt.Fprintln(cmd.OutOrStdout(), string(encoded))
			return nil
		},
	}

	cmd.Flags().StringVarP(&excerptOpts.Group, "group", "g", "", "Feed group (default: all feeds)")
	cmd.Flags().IntVarP(&excerptOpts.LookbackHours, "lookback", "l", 168, "Lookback window in hours")
	cmd.Flags().IntVar(&excerptOpts.MaxEpisodes, "max-episodes", 10, "Total episode cap")
	cmd.Flags().IntVar(&excerptOpts.MaxPerFeed, "max-per-feed", 2, "Episode cap per feed")
	cmd.Flags().IntVar(&excerptOpts.ExcerptChars, "excerpt-chars", 2000, "Character cap per excerpt")

	return cmd
}
