package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"podscraper/pkg/acquire"
	"podscraper/pkg/audiocache"
	"podscraper/pkg/feedconfig"
	"podscraper/pkg/transcribe"
)

func newScrapeCommand(opts *rootOptions) *cobra.Command {
	var (
		group       string
		maxEpisodes int
		cacheDir    string
		modelSize   string
		whisperBin  string
		workers     int
	)

	cmd := &cobra.Command{
		Use:   "scrape",
		Short: "Fetch feeds and transcribe new episodes",
		RunE: func(cmd *cobra.Command, args []string) error {
			groups, err := opts.loadGroups()
			if err != nil {
				return err
			}

			var feeds []feedconfig.Feed
			if group != "" {
				feeds, err = groups.Group(group)
				if err != nil {
					return err
				}
			} else {
				feeds = groups.AllFeeds()
			}

			ctx := cmd.Context()
			st, err := opts.openStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close()

			scraper := acquire.NewScraper(acquire.Config{
				Store:       st,
				Cache:       audiocache.New(cacheDir),
				Transcriber: transcribe.NewWhisperCLI(whisperBin),
				MaxEpisodes: maxEpisodes,
				ModelSize:   modelSize,
				Workers:     workers,
			})

			stats, err := scraper.ScrapeFeeds(ctx, feeds)
			printStats(cmd, stats)
			return err
		},
	}

	cmd.Flags().StringVarP(&group, "group", "g", "", "Feed group to scrape (default: all groups)")
	cmd.Flags().IntVarP(&maxEpisodes, "max-episodes", "n", 10,
		"Max episodes to check per feed (already-stored episodes count toward the limit)")
	cmd.Flags().StringVar(&cacheDir, "cache-dir", defaultCacheDir, "Audio cache directory")
	cmd.Flags().StringVar(&modelSize, "model-size", transcribe.DefaultModel,
		"Whisper model size (tiny/base/small/medium/large-v3)")
	cmd.Flags().StringVar(&whisperBin, "whisper-bin", "", "Whisper CLI binary")
	cmd.Flags().IntVar(&workers, "workers", 1, "Number of feeds to process in parallel")

	return cmd
}

func printStats(cmd *cobra.Command, stats acquire.RunStats) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "New episodes: %d\n", stats.NewEpisodes)
	fmt.Fprintf(out, "Skipped (already stored): %d\n", stats.Skipped)
	if stats.Unresolved > 0 {
		fmt.Fprintf(out, "Unresolvable (no transcript or audio): %d\n", stats.Unresolved)
	}
	if stats.Failed > 0 {
		fmt.Fprintf(out, "Failed: %d\n", stats.Failed)
	}
	if stats.FeedErrors > 0 {
		fmt.Fprintf(out, "Feeds unavailable: %d\n", stats.FeedErrors)
	}
}
