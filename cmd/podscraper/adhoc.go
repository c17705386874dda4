package main

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"podscraper/pkg/acquire"
	"podscraper/pkg/audiocache"
	"podscraper/pkg/export"
	"podscraper/pkg/feedconfig"
	"podscraper/pkg/transcribe"
)

func newAdhocCommand(opts *rootOptions) *cobra.Command {
	var (
		feedName    string
		maxEpisodes int
		outputPath  string
		cacheDir    string
		modelSize   string
		whisperBin  string
	)

	cmd := &cobra.Command{
		Use:   "adhoc <feed-url>",
		Short: "Scrape a one-off RSS feed URL, transcribe, and export",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			feedURL := args[0]
			name := feedName
			if name == "" {
				name = inferFeedName(feedURL)
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
			})

			stats, err := scraper.ScrapeFeeds(ctx, []feedconfig.Feed{{Name: name, FeedURL: feedURL}})
			printStats(cmd, stats)
			if err != nil {
				return err
			}
			if stats.NewEpisodes == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No new episodes to process.")
				return nil
			}

			// Export just the freshly scraped episodes.
			result, err := export.New(st).WriteText(ctx, outputPath, []string{name}, time.Hour)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Export: %s (%d episodes)\n", result.OutputPath, result.EpisodeCount)
			return nil
		},
	}

	cmd.Flags().StringVar(&feedName, "name", "", "Feed name (auto-inferred from the URL if omitted)")
	cmd.Flags().IntVarP(&maxEpisodes, "max-episodes", "n", 1, "Max episodes to check")
	cmd.Flags().StringVarP(&outputPath, "output", "o", "/tmp/podcasts_adhoc_export.txt", "Export file path")
	cmd.Flags().StringVar(&cacheDir, "cache-dir", defaultCacheDir, "Audio cache directory")
	cmd.Flags().StringVar(&modelSize, "model-size", transcribe.DefaultModel,
		"Whisper model size (tiny/base/small/medium/large-v3)")
	cmd.Flags().StringVar(&whisperBin, "whisper-bin", "", "Whisper CLI binary")

	return cmd
}

// inferFeedName derives a readable feed name from a feed URL: the first
// meaningful path segment plus the host, or the bare host.
func inferFeedName(feedURL string) string {
	parsed, err := url.Parse(feedURL)
	if err != nil {
		return feedURL
	}

	host := parsed.Hostname()
	if host == "" {
		host = "unknown"
	}
	for _, prefix := range []string{"www.", "feed.", "feeds.", "rss."} {
		if strings.HasPrefix(host, prefix) {
			host = strings.TrimPrefix(host, prefix)
			break
		}
	}

	for _, part := range strings.Split(strings.Trim(parsed.Path, "/"), "/") {
		if part == "" || part == "feed.xml" || part == "feed" || part == "rss" {
			continue
		}
		return fmt.Sprintf("%s (%s)", part, host)
	}
	return host
}
