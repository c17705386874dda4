package export

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"podscraper/pkg/domain"
	"podscraper/pkg/logging"
	"podscraper/pkg/store"
)

// Delimiter separates episodes in the plain-text export. Downstream tools
// split their input on this exact line.
const Delimiter = "---"

// Exporter reads the episode store within a lookback window and produces
// either a delimited plain-text export or a size-bounded excerpt payload.
type Exporter struct {
	store  store.Store
	logger zerolog.Logger
}

// New creates an exporter over the given store.
func New(st store.Store) *Exporter {
	return &Exporter{
		store:  st,
		logger: logging.WithComponent("export"),
	}
}

// TextResult reports what a plain-text export produced.
type TextResult struct {
	EpisodeCount int
	OutputPath   string
	TotalWords   int
}

// WriteText exports each matching episode as a header line followed by the
// full transcript, episodes separated by the delimiter line:
//
//	[Feed Name]: Episode Title (2026-02-10)
//	transcript text...
//	---
//	[Feed Name]: Another Episode (2026-02-08)
//	...
//
// Zero matching episodes is not an error; the result just reports zero and no
// file is written.
func (e *Exporter) WriteText(ctx context.Context, outputPath string, feedNames []string, lookback time.Duration) (TextResult, error) {
	result := TextResult{OutputPath: outputPath}

	episodes, err := e.store.Query(ctx, feedNames, time.Now().UTC().Add(-lookback))
	if err != nil {
		return result, err
	}

	blocks := make([]string, 0, len(episodes))
	for _, ep := range episodes {
		if ep.Transcript == "" {
			continue
		}
		header := fmt.Sprintf("[%s]: %s (%s)", ep.FeedName, ep.Title, FormatDate(&ep))
		blocks = append(blocks, header+"\n"+ep.Transcript)
		result.TotalWords += ep.WordCount
	}
	result.EpisodeCount = len(blocks)

	if result.EpisodeCount == 0 {
		e.logger.Info().Msg("no episodes found within the lookback window")
		return result, nil
	}

	if dir := filepath.Dir(outputPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return result, fmt.Errorf("create export directory: %w", err)
		}
	}

	content := strings.Join(blocks, "\n"+Delimiter+"\n") + "\n"
	if err := os.WriteFile(outputPath, []byte(content), 0o644); err != nil {
		return result, fmt.Errorf("write export file: %w", err)
	}

	e.logger.Info().
		Int("episodes", result.EpisodeCount).
		Int("total_words", result.TotalWords).
		Str("path", outputPath).
		Msg("export written")
	return result, nil
}

// ExcerptOptions are the bounds applied to an excerpt payload.
type ExcerptOptions struct {
	Group         string
	LookbackHours int
	MaxEpisodes   int // total cap across all feeds
	MaxPerFeed    int // cap per feed
	ExcerptChars  int // hard character cap per excerpt
}

// ExcerptEpisode is one bounded entry in the excerpt payload.
type ExcerptEpisode struct {
	FeedName  string `json:"feed_name"`
	Title     string `json:"title"`
	Published string `json:"published"`
	Excerpt   string `json:"excerpt"`
}

// ExcerptPayload is the size-bounded export consumed by downstream
// summarization. The applied bounds travel with the episode list so the
// consumer can tell what was trimmed.
type ExcerptPayload struct {
	Group         string           `json:"group"`
	LookbackHours int              `json:"lookback_hours"`
	MaxEpisodes   int              `json:"max_episodes"`
	MaxPerFeed    int              `json:"max_per_feed"`
	ExcerptChars  int              `json:"excerpt_chars"`
	EpisodeCount  int              `json:"episode_count"`
	Episodes      []ExcerptEpisode `json:"episodes"`
}

// BuildExcerpts builds a bounded excerpt payload: at most MaxPerFeed episodes
// per feed honoring the store's recency ordering, at most MaxEpisodes in
// total (more recent episodes win when trimming), each excerpt hard-cut to
// ExcerptChars characters. An empty episode list is a valid payload, not an
// error.
func (e *Exporter) BuildExcerpts(ctx context.Context, feedNames []string, opts ExcerptOptions) (*ExcerptPayload, error) {
	episodes, err := e.store.Query(ctx, feedNames, time.Now().UTC().Add(-time.Duration(opts.LookbackHours)*time.Hour))
	if err != nil {
		return nil, err
	}

	payload := &ExcerptPayload{
		Group:         opts.Group,
		LookbackHours: opts.LookbackHours,
		MaxEpisodes:   opts.MaxEpisodes,
		MaxPerFeed:    opts.MaxPerFeed,
		ExcerptChars:  opts.ExcerptChars,
		Episodes:      make([]ExcerptEpisode, 0),
	}

	perFeed := make(map[string]int)
	for _, ep := range episodes {
		if opts.MaxEpisodes > 0 && len(payload.Episodes) >= opts.MaxEpisodes {
			break
		}
		if ep.Transcript == "" {
			continue
		}
		if opts.MaxPerFeed > 0 && perFeed[ep.FeedName] >= opts.MaxPerFeed {
			continue
		}
		perFeed[ep.FeedName]++

		payload.Episodes = append(payload.Episodes, ExcerptEpisode{
			FeedName:  ep.FeedName,
			Title:     ep.Title,
			Published: FormatDate(&ep),
			Excerpt:   truncate(ep.Transcript, opts.ExcerptChars),
		})
	}
	payload.EpisodeCount = len(payload.Episodes)

	return payload, nil
}

// truncate hard-cuts text to at most max characters. The cut lands on a rune
// boundary so the excerpt stays valid UTF-8.
func truncate(text string, max int) string {
	if max <= 0 {
		return text
	}
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}
	return string(runes[:max])
}

// FormatDate renders a short display date for an episode: the parsed
// publication date when available, the raw feed value (clipped) otherwise.
func FormatDate(ep *domain.Episode) string {
	if ep.PublishedAt != nil {
		return ep.PublishedAt.UTC().Format("2006-01-02")
	}
	if ep.Published == "" {
		return "unknown date"
	}
	if len(ep.Published) > 20 {
		return ep.Published[:20]
	}
	return ep.Published
}
