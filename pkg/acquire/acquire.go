package acquire

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"podscraper/pkg/audiocache"
	"podscraper/pkg/domain"
	"podscraper/pkg/feedconfig"
	"podscraper/pkg/feedsource"
	"podscraper/pkg/logging"
	"podscraper/pkg/store"
	"podscraper/pkg/transcribe"
	"podscraper/pkg/transcript"
)

// Config wires the scraper dependencies.
type Config struct {
	Store       store.Store
	Cache       *audiocache.Cache
	Transcriber transcribe.Transcriber

	// MaxEpisodes bounds how many candidates are inspected per feed and run,
	// counting already-stored episodes, so feeds are never re-scanned end to
	// end on every invocation.
	MaxEpisodes int

	// ModelSize is passed through to the speech-to-text collaborator.
	ModelSize string

	// Workers > 1 processes independent feeds concurrently.
	Workers int
}

// RunStats are the per-run counters reported when a scrape finishes. They are
// owned by the run, not shared package state.
type RunStats struct {
	NewEpisodes int // stored this run
	Skipped     int // already stored
	Unresolved  int // no transcript link and no audio URL
	Failed      int // fetch or transcription failures
	FeedErrors  int // feeds that could not be fetched or parsed
}

func (s *RunStats) add(other RunStats) {
	s.NewEpisodes += other.NewEpisodes
	s.Skipped += other.Skipped
	s.Unresolved += other.Unresolved
	s.Failed += other.Failed
	s.FeedErrors += other.FeedErrors
}

// Scraper resolves feed candidates into stored transcripts: the acquisition
// strategy prefers a feed-declared transcript link and falls back to
// downloading and transcribing the audio.
type Scraper struct {
	store       store.Store
	cache       *audiocache.Cache
	transcriber transcribe.Transcriber
	transcripts *transcript.Fetcher
	source      *feedsource.Source
	maxEpisodes int
	modelSize   string
	workers     int
	logger      zerolog.Logger
}

// NewScraper creates a scraper from the given configuration.
func NewScraper(cfg Config) *Scraper {
	maxEpisodes := cfg.MaxEpisodes
	if maxEpisodes <= 0 {
		maxEpisodes = 10
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = 1
	}

	return &Scraper{
		store:       cfg.Store,
		cache:       cfg.Cache,
		transcriber: cfg.Transcriber,
		transcripts: transcript.NewFetcher(),
		source:      feedsource.New(),
		maxEpisodes: maxEpisodes,
		modelSize:   cfg.ModelSize,
		workers:     workers,
		logger:      logging.WithComponent("acquire"),
	}
}

// ScrapeFeeds processes every feed in order (or concurrently when configured
// with multiple workers). A feed that cannot be fetched fails that feed only;
// a store-level failure aborts the run, since nothing downstream is
// trustworthy without durable state.
func (s *Scraper) ScrapeFeeds(ctx context.Context, feeds []feedconfig.Feed) (RunStats, error) {
	logger := s.logger.With().Str("run_id", uuid.NewString()).Logger()

	if s.workers <= 1 {
		var stats RunStats
		for _, feed := range feeds {
			feedStats, err := s.scrapeFeed(ctx, logger, feed)
			stats.add(feedStats)
			if err != nil {
				return stats, err
			}
		}
		return stats, nil
	}

	return s.scrapeFeedsParallel(ctx, logger, feeds)
}

// scrapeFeedsParallel fans feeds out to a worker pool and aggregates results
// over a channel. Writes to distinct guids are independent, so feed workers
// need no coordination beyond the store's own atomic upsert.
func (s *Scraper) scrapeFeedsParallel(ctx context.Context, logger zerolog.Logger, feeds []feedconfig.Feed) (RunStats, error) {
	type result struct {
		stats RunStats
		err   error
	}

	jobs := make(chan feedconfig.Feed, len(feeds))
	for _, feed := range feeds {
		jobs <- feed
	}
	close(jobs)

	results := make(chan result, len(feeds))

	var wg sync.WaitGroup
	for i := 0; i < s.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for feed := range jobs {
				stats, err := s.scrapeFeed(ctx, logger, feed)
				results <- result{stats: stats, err: err}
				if err != nil {
					return
				}
			}
		}()
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	var (
		stats    RunStats
		fatalErr error
	)
	for res := range results {
		stats.add(res.stats)
		if res.err != nil && fatalErr == nil {
			fatalErr = res.err
		}
	}
	return stats, fatalErr
}

// scrapeFeed inspects up to maxEpisodes candidates from one feed. The
// returned error is non-nil only for store-level failures.
func (s *Scraper) scrapeFeed(ctx context.Context, logger zerolog.Logger, feed feedconfig.Feed) (RunStats, error) {
	var stats RunStats

	feedLogger := logger.With().Str("feed", feed.Name).Logger()

	candidates, err := s.source.Fetch(ctx, feed.Name, feed.FeedURL)
	if err != nil {
		feedLogger.Error().Err(err).Msg("feed unavailable")
		stats.FeedErrors++
		return stats, nil
	}

	feedLogger.Info().Int("candidates", len(candidates)).Msg("feed parsed")

	inspected := 0
	for _, candidate := range candidates {
		if inspected >= s.maxEpisodes {
			break
		}
		inspected++

		outcome, err := s.processCandidate(ctx, feedLogger, candidate)
		if err != nil {
			return stats, err
		}

		switch outcome {
		case outcomeStored:
			stats.NewEpisodes++
		case outcomeAlreadyStored:
			stats.Skipped++
		case outcomeUnresolved:
			stats.Unresolved++
		case outcomeFailed:
			stats.Failed++
		}
	}

	return stats, nil
}

type outcome int

const (
	outcomeStored outcome = iota
	outcomeAlreadyStored
	outcomeUnresolved
	outcomeFailed
)

// processCandidate runs the per-candidate acquisition state machine:
// already-stored, structured transcript, audio fallback, skip. Fetch and
// transcription failures skip the candidate; only store errors propagate.
func (s *Scraper) processCandidate(ctx context.Context, logger zerolog.Logger, candidate domain.EpisodeCandidate) (outcome, error) {
	candLogger := logger.With().Str("guid", candidate.GUID).Str("title", candidate.Title).Logger()

	exists, err := s.store.Exists(ctx, candidate.GUID)
	if err != nil {
		return outcomeFailed, fmt.Errorf("store: check %s: %w", candidate.GUID, err)
	}
	if exists {
		candLogger.Debug().Msg("already stored, skipping")
		return outcomeAlreadyStored, nil
	}

	var (
		text      string
		source    domain.TranscriptSource
		audioPath string
	)

	// Strategy 1: feed-declared transcript link, cheaper and higher fidelity
	// than speech-to-text.
	if candidate.TranscriptURL != "" {
		text, err = s.transcripts.Fetch(ctx, candidate.TranscriptURL)
		if err != nil {
			candLogger.Warn().Err(err).Str("step", "structured-transcript").Msg("transcript link failed, falling back to audio")
			text = ""
		} else {
			source = domain.SourceStructured
			candLogger.Info().Int("words", domain.CountWords(text)).Msg("structured transcript fetched")
		}
	}

	// Strategy 2: download the audio and hand it to the speech-to-text
	// collaborator.
	if text == "" {
		if candidate.AudioURL == "" {
			candLogger.Warn().Msg("no transcript link and no audio url, unresolvable")
			return outcomeUnresolved, nil
		}

		audioPath, err = s.cache.GetOrFetch(ctx, candidate.AudioURL)
		if err != nil {
			candLogger.Error().Err(err).Str("step", "audio-download").Msg("skipping candidate")
			return outcomeFailed, nil
		}

		text, err = s.transcriber.Transcribe(ctx, audioPath, s.modelSize)
		if err != nil {
			candLogger.Error().Err(err).Str("step", "transcription").Msg("skipping candidate")
			return outcomeFailed, nil
		}
		source = domain.SourceSpeechToText
	}

	episode := &domain.Episode{
		GUID:        candidate.GUID,
		FeedName:    candidate.FeedName,
		FeedURL:     candidate.FeedURL,
		Title:       candidate.Title,
		Published:   candidate.Published,
		PublishedAt: candidate.PublishedAt,
		AudioURL:    candidate.AudioURL,
		AudioPath:   audioPath,
		Transcript:  text,
		Source:      source,
	}

	if err := s.store.Upsert(ctx, episode); err != nil {
		return outcomeFailed, fmt.Errorf("store: upsert %s: %w", candidate.GUID, err)
	}

	candLogger.Info().
		Str("source", string(source)).
		Int("words", episode.WordCount).
		Msg("episode stored")
	return outcomeStored, nil
}
