package audiocache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/renameio/v2"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"podscraper/pkg/httpclient"
	"podscraper/pkg/logging"
)

const downloadTimeout = 10 * time.Minute

// Cache is a content-addressed local cache of downloaded audio files, keyed
// by a hash of the audio URL. Presence of the file at the derived path means
// "already downloaded": repeated runs over the same feed never re-fetch.
type Cache struct {
	dir    string
	client *httpclient.HTTPClient
	group  singleflight.Group
	logger zerolog.Logger
}

// New creates a cache rooted at dir. The directory is created lazily on the
// first download.
func New(dir string) *Cache {
	client := httpclient.NewClient(httpclient.BrowserClient)
	client.SetTimeout(downloadTimeout)

	return &Cache{
		dir:    dir,
		client: client,
		logger: logging.WithComponent("audiocache"),
	}
}

// GetOrFetch returns the local path for the audio at audioURL, downloading it
// on a cache miss. Concurrent callers for the same URL share one download.
// The file is streamed to a temporary name and renamed into place, so a crash
// mid-download never leaves a corrupt entry at the final path.
func (c *Cache) GetOrFetch(ctx context.Context, audioURL string) (string, error) {
	localPath := filepath.Join(c.dir, FileName(audioURL))

	if _, err := os.Stat(localPath); err == nil {
		c.logger.Debug().Str("path", localPath).Msg("cache hit")
		return localPath, nil
	}

	_, err, _ := c.group.Do(localPath, func() (any, error) {
		// Re-check inside the flight: another caller may have just finished.
		if _, err := os.Stat(localPath); err == nil {
			return nil, nil
		}
		return nil, c.download(ctx, audioURL, localPath)
	})
	if err != nil {
		return "", err
	}

	return localPath, nil
}

func (c *Cache) download(ctx context.Context, audioURL, localPath string) error {
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return fmt.Errorf("create cache directory: %w", err)
	}

	c.logger.Info().Str("url", audioURL).Msg("downloading audio")

	resp, err := c.client.Get(ctx, audioURL)
	if err != nil {
		return fmt.Errorf("download audio: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("download audio %s: unexpected status code: %d", audioURL, resp.StatusCode)
	}

	pending, err := renameio.NewPendingFile(localPath, renameio.WithPermissions(0o644))
	if err != nil {
		return fmt.Errorf("create pending cache file: %w", err)
	}
	defer func() {
		// renameio removes the temp file if it was not committed.
		if cleanupErr := pending.Cleanup(); cleanupErr != nil {
			c.logger.Debug().Err(cleanupErr).Msg("cleanup pending cache file")
		}
	}()

	written, err := io.Copy(pending, resp.Body)
	if err != nil {
		return fmt.Errorf("stream audio to cache: %w", err)
	}
	if written == 0 {
		return fmt.Errorf("download audio %s: empty payload", audioURL)
	}

	if err := pending.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("commit cache file: %w", err)
	}

	c.logger.Info().
		Str("path", localPath).
		Int64("bytes", written).
		Msg("audio cached")
	return nil
}

var knownExtensions = []string{".mp3", ".m4a", ".ogg", ".wav", ".mp4"}

// FileName derives the deterministic cache filename for an audio URL: the
// first 16 hex characters of the URL's SHA-256 plus the source extension.
func FileName(audioURL string) string {
	sum := sha256.Sum256([]byte(audioURL))
	name := hex.EncodeToString(sum[:])[:16]

	ext := ".mp3"
	p := audioURL
	if u, err := url.Parse(audioURL); err == nil {
		p = u.Path
	}
	candidate := strings.ToLower(path.Ext(p))
	for _, known := range knownExtensions {
		if candidate == known {
			ext = known
			break
		}
	}

	return name + ext
}
