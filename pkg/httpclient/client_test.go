package httpclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func TestFetchBytesReturnsBodyAndContentType(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		w.Write([]byte("<rss/>"))
	}))
	defer server.Close()

	body, contentType, err := NewClient(BrowserClient).FetchBytes(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("FetchBytes failed: %v", err)
	}
	if string(body) != "<rss/>" {
		t.Errorf("unexpected body: %q", body)
	}
	if contentType != "application/rss+xml" {
		t.Errorf("unexpected content type: %q", contentType)
	}
}

func TestFetchBytesRejectsNon2xx(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer server.Close()

	_, _, err := NewClient(BrowserClient).FetchBytes(context.Background(), server.URL)
	if err == nil {
		t.Fatal("expected error for 403 response")
	}
	if !strings.Contains(err.Error(), "403") {
		t.Errorf("expected status code in error, got %v", err)
	}
}

func TestFetchBytesRejectsEmptyBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	if _, _, err := NewClient(BrowserClient).FetchBytes(context.Background(), server.URL); err == nil {
		t.Fatal("expected error for empty response body")
	}
}

func TestGetRetriesTransportErrors(t *testing.T) {
	var requests int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt64(&requests, 1) == 1 {
			// Drop the first connection to force a transport error.
			hj, ok := w.(http.Hijacker)
			if !ok {
				t.Fatal("server does not support hijacking")
			}
			conn, _, err := hj.Hijack()
			if err != nil {
				t.Fatalf("hijack: %v", err)
			}
			conn.Close()
			return
		}
		w.Write([]byte("ok"))
	}))
	defer server.Close()

	client := NewClient(BrowserClient)
	client.SetRetries(2)

	resp, err := client.Get(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("expected retry to succeed, got %v", err)
	}
	resp.Body.Close()

	if got := atomic.LoadInt64(&requests); got != 2 {
		t.Errorf("expected 2 attempts, got %d", got)
	}
}

func TestGetHonorsContextDuringBackoff(t *testing.T) {
	client := NewClient(BrowserClient)
	client.SetRetries(5)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	start := time.Now()
	// Nothing listens on this port, so every attempt fails fast.
	_, err := client.Get(ctx, "http://127.0.0.1:1/unreachable")
	if err == nil {
		t.Fatal("expected error for unreachable host")
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("expected cancellation to cut retries short, took %s", elapsed)
	}
}

func TestHeaderProfiles(t *testing.T) {
	var userAgent string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userAgent = r.Header.Get("User-Agent")
		w.Write([]byte("ok"))
	}))
	defer server.Close()

	resp, err := NewClient(BrowserClient).Get(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	resp.Body.Close()
	if !strings.Contains(userAgent, "Mozilla") {
		t.Errorf("expected browser profile user agent, got %q", userAgent)
	}

	resp, err = NewClient(CloudflareClient).Get(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	resp.Body.Close()
	if !strings.Contains(userAgent, "curl") {
		t.Errorf("expected curl profile user agent, got %q", userAgent)
	}
}
