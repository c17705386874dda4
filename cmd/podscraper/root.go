package main

import (
	"context"

	"github.com/spf13/cobra"

	"podscraper/pkg/feedconfig"
	"podscraper/pkg/logging"
	"podscraper/pkg/store"
)

const (
	defaultDBPath    = "data/podcasts.db"
	defaultFeedsPath = "feeds.yaml"
	defaultCacheDir  = "audio_cache"
)

// rootOptions carries the persistent flags shared by every command.
type rootOptions struct {
	dbDSN     string
	feedsPath string
	logLevel  string
}

func (o *rootOptions) openStore(ctx context.Context) (store.Store, error) {
	return store.Open(ctx, o.dbDSN)
}

func (o *rootOptions) loadGroups() (feedconfig.Groups, error) {
	return feedconfig.Load(o.feedsPath)
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:           "podscraper",
		Short:         "Fetch, transcribe, and export podcast episodes",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logging.Configure(logging.Config{Level: opts.logLevel})
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVar(&opts.dbDSN, "db", defaultDBPath,
		"Episode store: SQLite path (default), postgres:// or mongodb:// DSN")
	rootCmd.PersistentFlags().StringVarP(&opts.feedsPath, "feeds-file", "f", defaultFeedsPath,
		"Path to the feeds YAML file")
	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "",
		"Log level (debug, info, warn, error)")

	rootCmd.AddCommand(newScrapeCommand(opts))
	rootCmd.AddCommand(newAdhocCommand(opts))
	rootCmd.AddCommand(newExportCommand(opts))
	rootCmd.AddCommand(newExcerptCommand(opts))
	rootCmd.AddCommand(newListCommand(opts))

	return rootCmd
}
