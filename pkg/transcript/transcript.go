package transcript

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
	"github.com/ledongthuc/pdf"

	"podscraper/pkg/httpclient"
)

var (
	// ErrUnsupportedTranscript means the transcript link served a payload
	// type this package cannot turn into text.
	ErrUnsupportedTranscript = errors.New("unsupported transcript type")

	// ErrEmptyTranscriptText means extraction succeeded structurally but
	// yielded no text.
	ErrEmptyTranscriptText = errors.New("extracted transcript text is empty")
)

// Fetcher downloads feed-declared transcript links and extracts plain text.
type Fetcher struct {
	client *httpclient.HTTPClient
}

// NewFetcher creates a transcript fetcher.
func NewFetcher() *Fetcher {
	return &Fetcher{
		client: httpclient.NewClient(httpclient.BrowserClient),
	}
}

// Fetch downloads the transcript at transcriptURL and extracts its text.
func (f *Fetcher) Fetch(ctx context.Context, transcriptURL string) (string, error) {
	body, contentType, err := f.client.FetchBytes(ctx, transcriptURL)
	if err != nil {
		return "", fmt.Errorf("fetch transcript: %w", err)
	}

	text, err := ExtractText(body, urlExt(transcriptURL), contentType)
	if err != nil {
		return "", err
	}
	return text, nil
}

// ExtractText converts a transcript payload to plain text, dispatching on the
// URL extension first and the response content type as a fallback.
//
// Plain formats (txt, srt, vtt, json) pass through as-is: downstream
// summarization tolerates timestamps and speaker tags, and dropping them here
// would discard speaker attribution some feeds only publish this way.
func ExtractText(body []byte, ext, contentType string) (string, error) {
	var (
		text string
		err  error
	)

	switch ext {
	case ".txt", ".srt", ".vtt", ".json":
		text = string(body)
	case ".html", ".htm":
		text, err = extractHTMLText(string(body))
	case ".pdf":
		text, err = extractPDFText(body)
	default:
		lct := strings.ToLower(contentType)
		switch {
		case strings.Contains(lct, "text/html"):
			text, err = extractHTMLText(string(body))
		case strings.Contains(lct, "application/pdf"):
			text, err = extractPDFText(body)
		case strings.HasPrefix(lct, "text/"),
			strings.Contains(lct, "application/json"),
			strings.Contains(lct, "application/srt"):
			text = string(body)
		default:
			return "", fmt.Errorf("%w: ext=%q content-type=%q", ErrUnsupportedTranscript, ext, contentType)
		}
	}
	if err != nil {
		return "", err
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrEmptyTranscriptText
	}
	return text, nil
}

// extractHTMLText extracts readable text from an HTML transcript page.
func extractHTMLText(htmlContent string) (string, error) {
	article, err := readability.FromReader(strings.NewReader(htmlContent), nil)
	if err == nil {
		if text := strings.TrimSpace(article.TextContent); text != "" {
			return text, nil
		}
	}

	// Fallback: whole body text via goquery.
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlContent))
	if err != nil {
		return "", fmt.Errorf("parse transcript HTML: %w", err)
	}

	text := strings.TrimSpace(doc.Find("body").First().Text())
	if text == "" {
		return "", ErrEmptyTranscriptText
	}
	return strings.Join(strings.Fields(text), " "), nil
}

// extractPDFText extracts plain text from a PDF transcript.
func extractPDFText(pdfBytes []byte) (string, error) {
	if len(pdfBytes) == 0 {
		return "", ErrEmptyTranscriptText
	}

	reader := bytes.NewReader(pdfBytes)
	doc, err := pdf.NewReader(reader, int64(len(pdfBytes)))
	if err != nil {
		return "", fmt.Errorf("parse transcript PDF: %w", err)
	}

	textReader, err := doc.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extract PDF text: %w", err)
	}

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, textReader); err != nil {
		return "", fmt.Errorf("read PDF text: %w", err)
	}

	return buf.String(), nil
}

func urlExt(rawURL string) string {
	p := rawURL
	if u, err := url.Parse(rawURL); err == nil {
		p = u.Path
	}
	return strings.ToLower(path.Ext(p))
}
