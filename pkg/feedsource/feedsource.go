package feedsource

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
	"github.com/rs/zerolog"

	"podscraper/pkg/domain"
	"podscraper/pkg/httpclient"
	"podscraper/pkg/logging"
)

// Source fetches and parses one podcast RSS/Atom feed into episode
// candidates. A fetch or parse failure fails that feed only; the caller is
// expected to continue with its remaining feeds.
type Source struct {
	parser *gofeed.Parser
	client *httpclient.HTTPClient
	logger zerolog.Logger
}

// New creates a new feed source.
func New() *Source {
	return &Source{
		parser: gofeed.NewParser(),
		client: httpclient.NewClient(httpclient.BrowserClient),
		logger: logging.WithComponent("feedsource"),
	}
}

// Fetch downloads and parses the feed at feedURL and returns its episode
// candidates ordered newest-first. Entries without a guid are skipped and
// logged as degraded; a synthetic key could collide across rescrapes.
func (s *Source) Fetch(ctx context.Context, feedName, feedURL string) ([]domain.EpisodeCandidate, error) {
	body, _, err := s.client.FetchBytes(ctx, feedURL)
	if err != nil {
		return nil, fmt.Errorf("fetch feed %s: %w", feedURL, err)
	}

	feed, err := s.parser.ParseString(string(body))
	if err != nil {
		return nil, fmt.Errorf("parse feed %s: %w", feedURL, err)
	}
	if feed == nil || len(feed.Items) == 0 {
		return nil, fmt.Errorf("feed %s contains no items", feedURL)
	}

	items := make([]*gofeed.Item, len(feed.Items))
	copy(items, feed.Items)
	sort.SliceStable(items, func(i, j int) bool {
		return itemTimestamp(items[i]).After(itemTimestamp(items[j]))
	})

	candidates := make([]domain.EpisodeCandidate, 0, len(items))
	for _, item := range items {
		guid := strings.TrimSpace(item.GUID)
		if guid == "" {
			s.logger.Warn().
				Str("feed", feedName).
				Str("title", item.Title).
				Msg("skipping entry without guid")
			continue
		}

		title := item.Title
		if title == "" {
			title = "Untitled"
		}

		candidates = append(candidates, domain.EpisodeCandidate{
			GUID:          guid,
			FeedName:      feedName,
			FeedURL:       feedURL,
			Title:         title,
			Published:     itemDate(item),
			PublishedAt:   itemParsedDate(item),
			AudioURL:      audioURL(item),
			TranscriptURL: transcriptURL(item),
		})
	}

	return candidates, nil
}

// itemTimestamp extracts a sortable timestamp from a feed entry, falling back
// to the updated date and then the zero time.
func itemTimestamp(item *gofeed.Item) time.Time {
	if item.PublishedParsed != nil {
		return *item.PublishedParsed
	}
	if item.UpdatedParsed != nil {
		return *item.UpdatedParsed
	}
	return time.Time{}
}

// itemDate extracts the raw date string from a feed entry. The raw value is
// retained for display even when gofeed could not parse it.
func itemDate(item *gofeed.Item) string {
	if item.Published != "" {
		return item.Published
	}
	return item.Updated
}

// itemParsedDate returns the parsed publication instant, nil when the feed
// value was missing or unparseable. gofeed already accepts RFC 2822 and
// ISO-8601 style dates, which covers what feeds publish in the wild.
func itemParsedDate(item *gofeed.Item) *time.Time {
	if item.PublishedParsed != nil {
		return item.PublishedParsed
	}
	if item.UpdatedParsed != nil {
		return item.UpdatedParsed
	}
	return nil
}

var audioExtensions = []string{".mp3", ".m4a", ".ogg", ".wav"}

// audioURL extracts the audio URL from RSS enclosures (preferred) or links.
func audioURL(item *gofeed.Item) string {
	// Prefer enclosures, purpose-built for podcast audio.
	for _, enc := range item.Enclosures {
		if enc == nil || enc.URL == "" {
			continue
		}
		if strings.Contains(enc.Type, "audio") || hasAudioExt(enc.URL) {
			return enc.URL
		}
	}

	// Fallback: scan item links for audio file extensions.
	for _, link := range item.Links {
		if hasAudioExt(link) {
			return link
		}
	}

	return ""
}

func hasAudioExt(rawURL string) bool {
	p := rawURL
	if u, err := url.Parse(rawURL); err == nil {
		p = u.Path
	}
	ext := strings.ToLower(path.Ext(p))
	for _, candidate := range audioExtensions {
		if ext == candidate {
			return true
		}
	}
	return false
}

// transcriptURL checks for a Podcast 2.0 transcript element on the entry.
func transcriptURL(item *gofeed.Item) string {
	for _, key := range []string{"podcast", "podcast2"} {
		namespace, ok := item.Extensions[key]
		if !ok {
			continue
		}
		for _, extension := range namespace["transcript"] {
			if u := strings.TrimSpace(extension.Attrs["url"]); u != "" {
				return u
			}
		}
	}
	return ""
}
