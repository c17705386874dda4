package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"podscraper/pkg/export"
)

func newExportCommand(opts *rootOptions) *cobra.Command {
	var (
		group         string
		lookbackHours int
		outputPath    string
		strict        bool
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export recent transcripts to a delimited text file",
		RunE: func(cmd *cobra.Command, args []string) error {
			feedNames, err := resolveGroupFeeds(opts, group)
			if err != nil {
				return err
			}

			output := outputPath
			if output == "" {
				name := group
				if name == "" {
					name = "all"
				}
				output = fmt.Sprintf("/tmp/podcasts_%s_export.txt", name)
			}

			ctx := cmd.Context()
			st, err := opts.openStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close()

			result, err := export.New(st).WriteText(ctx, output, feedNames,
				time.Duration(lookbackHours)*time.Hour)
			if err != nil {
				return err
			}

			if result.EpisodeCount == 0 {
				if strict {
					return fmt.Errorf("no episodes found within the last %d hours", lookbackHours)
				}
				fmt.Fprintln(cmd.OutOrStdout(), "No episodes found within the lookback window.")
				return nil
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Exported %d episode(s) to %s (%d words)\n",
				result.EpisodeCount, result.OutputPath, result.TotalWords)
			return nil
		},
	}

	cmd.Flags().StringVarP(&group, "group", "g", "", "Feed group to export (default: all feeds)")
	cmd.Flags().IntVarP(&lookbackHours, "lookback", "l", 168, "Lookback window in hours")
	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Output file path")
	cmd.Flags().BoolVar(&strict, "strict", false, "Exit non-zero when the export is empty")

	return cmd
}

// resolveGroupFeeds maps a group name to its feed names; an empty group means
// all feeds (nil, so the store query is unrestricted).
func resolveGroupFeeds(opts *rootOptions, group string) ([]string, error) {
	if group == "" {
		return nil, nil
	}
	groups, err := opts.loadGroups()
	if err != nil {
		return nil, err
	}
	return groups.FeedNames(group)
}
