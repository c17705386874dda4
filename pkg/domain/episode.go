package domain

import (
	"strings"
	"time"
)

// TranscriptSource identifies how an episode transcript was obtained.
type TranscriptSource string

const (
	// SourceStructured means the transcript came from a feed-declared
	// transcript link (Podcast 2.0 style), fetched directly.
	SourceStructured TranscriptSource = "structured-transcript"

	// SourceSpeechToText means the transcript was produced by running the
	// external speech-to-text engine over the downloaded audio.
	SourceSpeechToText TranscriptSource = "speech-to-text"
)

// EpisodeCandidate is an episode as seen in a feed, before acquisition decides
// how to obtain its transcript. Candidates are ephemeral and never persisted
// directly.
type EpisodeCandidate struct {
	// GUID is the feed-declared unique identifier. Entries without a guid are
	// skipped by the feed source and never become candidates.
	GUID     string
	FeedName string
	FeedURL  string
	Title    string

	// Published is the raw date string from the feed, kept for display even
	// when it cannot be parsed.
	Published string

	// PublishedAt is the parsed publication instant, nil when the feed value
	// was missing or unparseable. Only parsed values participate in
	// time-window comparisons.
	PublishedAt *time.Time

	// AudioURL is the enclosure audio URL, empty when the feed has none.
	AudioURL string

	// TranscriptURL is the feed-declared transcript link, empty when the feed
	// does not expose one.
	TranscriptURL string
}

// Episode is a persisted episode with its transcript, keyed by GUID.
type Episode struct {
	GUID        string           `bson:"guid" json:"guid"`
	FeedName    string           `bson:"feed_name" json:"feed_name"`
	FeedURL     string           `bson:"feed_url" json:"feed_url"`
	Title       string           `bson:"title" json:"title"`
	Published   string           `bson:"published,omitempty" json:"published,omitempty"`
	PublishedAt *time.Time       `bson:"published_at,omitempty" json:"published_at,omitempty"`
	AudioURL    string           `bson:"audio_url,omitempty" json:"audio_url,omitempty"`
	AudioPath   string           `bson:"audio_path,omitempty" json:"audio_path,omitempty"`
	Transcript  string           `bson:"transcript" json:"transcript"`
	Source      TranscriptSource `bson:"transcript_source" json:"transcript_source"`
	ScrapedAt   time.Time        `bson:"scraped_at" json:"scraped_at"`
	WordCount   int              `bson:"word_count" json:"word_count"`
}

// CountWords returns the whitespace-token count of a transcript. Stores use it
// to recompute word_count on every write so the stored value never goes stale.
func CountWords(transcript string) int {
	return len(strings.Fields(transcript))
}
