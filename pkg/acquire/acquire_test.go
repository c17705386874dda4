package acquire

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"podscraper/pkg/audiocache"
	"podscraper/pkg/domain"
	"podscraper/pkg/feedconfig"
	"podscraper/pkg/store"
)

type fakeTranscriber struct {
	text  string
	err   error
	calls int64
}

func (f *fakeTranscriber) Transcribe(ctx context.Context, audioPath, modelSize string) (string, error) {
	atomic.AddInt64(&f.calls, 1)
	return f.text, f.err
}

type testEnv struct {
	store         store.Store
	transcriber   *fakeTranscriber
	audioRequests int64
	mux           *http.ServeMux
	server        *httptest.Server
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	st, err := store.OpenSQLite(filepath.Join(t.TempDir(), "podcasts.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	env := &testEnv{
		store:       st,
		transcriber: &fakeTranscriber{text: "words produced from audio"},
		mux:         http.NewServeMux(),
	}
	env.server = httptest.NewServer(env.mux)
	t.Cleanup(env.server.Close)

	env.mux.HandleFunc("/audio/", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&env.audioRequests, 1)
		w.Header().Set("Content-Type", "audio/mpeg")
		w.Write([]byte("fake audio bytes"))
	})
	env.mux.HandleFunc("/transcripts/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("published transcript text for " + r.URL.Path))
	})

	return env
}

func (e *testEnv) newScraper(t *testing.T, maxEpisodes int) *Scraper {
	t.Helper()
	return NewScraper(Config{
		Store:       e.store,
		Cache:       audiocache.New(t.TempDir()),
		Transcriber: e.transcriber,
		MaxEpisodes: maxEpisodes,
	})
}

type feedItem struct {
	guid          string
	title         string
	audioURL      string
	transcriptURL string
}

// serveRSS registers a feed at the given path and returns its URL.
func (e *testEnv) serveRSS(path, feedTitle string, items []feedItem) string {
	body := `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0" xmlns:podcast="https://podcastindex.org/namespace/1.0">
<channel><title>` + feedTitle + `</title>`
	pub := time.Date(2026, 2, 10, 8, 0, 0, 0, time.UTC)
	for i, item := range items {
		body += fmt.Sprintf("<item><title>%s</title><guid>%s</guid><pubDate>%s</pubDate>",
			item.title, item.guid, pub.Add(-time.Duration(i)*time.Hour).Format(time.RFC1123Z))
		if item.audioURL != "" {
			body += fmt.Sprintf(`<enclosure url="%s" type="audio/mpeg" length="1000"/>`, item.audioURL)
		}
		if item.transcriptURL != "" {
			body += fmt.Sprintf(`<podcast:transcript url="%s" type="text/plain"/>`, item.transcriptURL)
		}
		body += "</item>"
	}
	body += "</channel></rss>"

	e.mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		w.Write([]byte(body))
	})
	return e.server.URL + path
}

func (e *testEnv) queryAll(t *testing.T) []domain.Episode {
	t.Helper()
	episodes, err := e.store.Query(context.Background(), nil, time.Unix(0, 0))
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	return episodes
}

func TestScrapePrefersStructuredTranscript(t *testing.T) {
	env := newTestEnv(t)
	feedURL := env.serveRSS("/feeds/structured.xml", "Structured", []feedItem{
		{
			guid:          "ep-structured",
			title:         "With Transcript Link",
			audioURL:      env.server.URL + "/audio/ep.mp3",
			transcriptURL: env.server.URL + "/transcripts/ep.txt",
		},
	})

	scraper := env.newScraper(t, 10)
	stats, err := scraper.ScrapeFeeds(context.Background(), []feedconfig.Feed{{Name: "Structured", FeedURL: feedURL}})
	if err != nil {
		t.Fatalf("ScrapeFeeds failed: %v", err)
	}

	if stats.NewEpisodes != 1 {
		t.Fatalf("expected 1 new episode, got %+v", stats)
	}
	if got := atomic.LoadInt64(&env.audioRequests); got != 0 {
		t.Errorf("expected no audio downloads when a transcript link works, got %d", got)
	}
	if got := atomic.LoadInt64(&env.transcriber.calls); got != 0 {
		t.Errorf("expected no speech-to-text invocations, got %d", got)
	}

	episodes := env.queryAll(t)
	if len(episodes) != 1 {
		t.Fatalf("expected 1 stored episode, got %d", len(episodes))
	}
	if episodes[0].Source != domain.SourceStructured {
		t.Errorf("expected structured-transcript source, got %q", episodes[0].Source)
	}
	if episodes[0].WordCount == 0 {
		t.Error("expected non-zero word count")
	}
}

func TestScrapeFallsBackToAudio(t *testing.T) {
	env := newTestEnv(t)
	feedURL := env.serveRSS("/feeds/audio-only.xml", "Audio Only", []feedItem{
		{guid: "ep-audio", title: "No Transcript Link", audioURL: env.server.URL + "/audio/ep.mp3"},
	})

	scraper := env.newScraper(t, 10)
	stats, err := scraper.ScrapeFeeds(context.Background(), []feedconfig.Feed{{Name: "Audio Only", FeedURL: feedURL}})
	if err != nil {
		t.Fatalf("ScrapeFeeds failed: %v", err)
	}

	if stats.NewEpisodes != 1 {
		t.Fatalf("expected 1 new episode, got %+v", stats)
	}
	if got := atomic.LoadInt64(&env.audioRequests); got != 1 {
		t.Errorf("expected one audio download, got %d", got)
	}
	if got := atomic.LoadInt64(&env.transcriber.calls); got != 1 {
		t.Errorf("expected one transcription, got %d", got)
	}

	episodes := env.queryAll(t)
	if episodes[0].Source != domain.SourceSpeechToText {
		t.Errorf("expected speech-to-text source, got %q", episodes[0].Source)
	}
	if episodes[0].Transcript != "words produced from audio" {
		t.Errorf("unexpected transcript: %q", episodes[0].Transcript)
	}
}

func TestScrapeBrokenTranscriptLinkFallsBack(t *testing.T) {
	env := newTestEnv(t)
	env.mux.HandleFunc("/broken-transcript.txt", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusGone)
	})
	feedURL := env.serveRSS("/feeds/broken-link.xml", "Broken Link", []feedItem{
		{
			guid:          "ep-broken",
			title:         "Dead Transcript Link",
			audioURL:      env.server.URL + "/audio/ep.mp3",
			transcriptURL: env.server.URL + "/broken-transcript.txt",
		},
	})

	scraper := env.newScraper(t, 10)
	stats, err := scraper.ScrapeFeeds(context.Background(), []feedconfig.Feed{{Name: "Broken Link", FeedURL: feedURL}})
	if err != nil {
		t.Fatalf("ScrapeFeeds failed: %v", err)
	}

	if stats.NewEpisodes != 1 {
		t.Fatalf("expected audio fallback to store the episode, got %+v", stats)
	}
	if env.queryAll(t)[0].Source != domain.SourceSpeechToText {
		t.Error("expected speech-to-text source after transcript link failure")
	}
}

func TestScrapeSkipsStoredEpisodes(t *testing.T) {
	env := newTestEnv(t)
	feedURL := env.serveRSS("/feeds/rerun.xml", "Rerun", []feedItem{
		{guid: "ep-rerun", title: "Episode", audioURL: env.server.URL + "/audio/ep.mp3"},
	})
	feeds := []feedconfig.Feed{{Name: "Rerun", FeedURL: feedURL}}

	scraper := env.newScraper(t, 10)
	if _, err := scraper.ScrapeFeeds(context.Background(), feeds); err != nil {
		t.Fatalf("first run: %v", err)
	}

	stats, err := scraper.ScrapeFeeds(context.Background(), feeds)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}

	if stats.NewEpisodes != 0 || stats.Skipped != 1 {
		t.Fatalf("expected rerun to skip the stored episode, got %+v", stats)
	}
	if got := atomic.LoadInt64(&env.audioRequests); got != 1 {
		t.Errorf("expected no new downloads on rerun, got %d total requests", got)
	}
	if got := atomic.LoadInt64(&env.transcriber.calls); got != 1 {
		t.Errorf("expected no new transcriptions on rerun, got %d total", got)
	}
}

func TestScrapeIsolatesFeedErrors(t *testing.T) {
	env := newTestEnv(t)
	env.mux.HandleFunc("/feeds/down.xml", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})
	goodURL := env.serveRSS("/feeds/up.xml", "Up", []feedItem{
		{guid: "ep-up", title: "Episode", transcriptURL: env.server.URL + "/transcripts/up.txt"},
	})

	scraper := env.newScraper(t, 10)
	stats, err := scraper.ScrapeFeeds(context.Background(), []feedconfig.Feed{
		{Name: "Down", FeedURL: env.server.URL + "/feeds/down.xml"},
		{Name: "Up", FeedURL: goodURL},
	})
	if err != nil {
		t.Fatalf("expected feed failure to be recoverable, got %v", err)
	}

	if stats.FeedErrors != 1 {
		t.Errorf("expected 1 feed error, got %+v", stats)
	}
	if stats.NewEpisodes != 1 {
		t.Errorf("expected the healthy feed to be processed, got %+v", stats)
	}
}

func TestScrapeHonorsInspectionLimit(t *testing.T) {
	env := newTestEnv(t)
	items := make([]feedItem, 5)
	for i := range items {
		items[i] = feedItem{
			guid:          fmt.Sprintf("ep-%d", i),
			title:         fmt.Sprintf("Episode %d", i),
			transcriptURL: fmt.Sprintf("%s/transcripts/ep-%d.txt", env.server.URL, i),
		}
	}
	feedURL := env.serveRSS("/feeds/deep.xml", "Deep", items)

	scraper := env.newScraper(t, 2)
	stats, err := scraper.ScrapeFeeds(context.Background(), []feedconfig.Feed{{Name: "Deep", FeedURL: feedURL}})
	if err != nil {
		t.Fatalf("ScrapeFeeds failed: %v", err)
	}

	if stats.NewEpisodes != 2 {
		t.Fatalf("expected inspection cap of 2, got %+v", stats)
	}
	if got := len(env.queryAll(t)); got != 2 {
		t.Fatalf("expected 2 stored episodes, got %d", got)
	}
}

func TestScrapeCountsUnresolvableCandidates(t *testing.T) {
	env := newTestEnv(t)
	feedURL := env.serveRSS("/feeds/bare.xml", "Bare", []feedItem{
		{guid: "ep-bare", title: "No Media At All"},
	})

	scraper := env.newScraper(t, 10)
	stats, err := scraper.ScrapeFeeds(context.Background(), []feedconfig.Feed{{Name: "Bare", FeedURL: feedURL}})
	if err != nil {
		t.Fatalf("ScrapeFeeds failed: %v", err)
	}

	if stats.Unresolved != 1 || stats.NewEpisodes != 0 {
		t.Fatalf("expected 1 unresolved candidate, got %+v", stats)
	}
	if got := len(env.queryAll(t)); got != 0 {
		t.Errorf("expected nothing stored, got %d episodes", got)
	}
}

func TestScrapeParallelWorkers(t *testing.T) {
	env := newTestEnv(t)
	var feeds []feedconfig.Feed
	for i := 0; i < 4; i++ {
		url := env.serveRSS(fmt.Sprintf("/feeds/worker-%d.xml", i), fmt.Sprintf("Worker %d", i), []feedItem{
			{
				guid:          fmt.Sprintf("ep-worker-%d", i),
				title:         "Episode",
				transcriptURL: fmt.Sprintf("%s/transcripts/worker-%d.txt", env.server.URL, i),
			},
		})
		feeds = append(feeds, feedconfig.Feed{Name: fmt.Sprintf("Worker %d", i), FeedURL: url})
	}

	scraper := NewScraper(Config{
		Store:       env.store,
		Cache:       audiocache.New(t.TempDir()),
		Transcriber: env.transcriber,
		MaxEpisodes: 10,
		Workers:     3,
	})

	stats, err := scraper.ScrapeFeeds(context.Background(), feeds)
	if err != nil {
		t.Fatalf("ScrapeFeeds failed: %v", err)
	}
	if stats.NewEpisodes != 4 {
		t.Fatalf("expected all 4 feeds processed, got %+v", stats)
	}
	if got := len(env.queryAll(t)); got != 4 {
		t.Fatalf("expected 4 stored episodes, got %d", got)
	}
}
