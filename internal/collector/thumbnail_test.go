package collector

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestThumbnailFinderPicksFirstAbsoluteImage(t *testing.T) {
	var requested string
	fetch := func(ctx context.Context, u string, timeout time.Duration) (string, error) {
		requested = u
		return `<html><body>
<img src="data:image/gif;base64,AAAA">
<img src="/logo.png">
<img src="https://img.example.com/a.jpg">
<img src="https://img.example.com/b.jpg">
</body></html>`, nil
	}

	got, err := NewThumbnailFinder(fetch).Find(context.Background(), "rocket alert")
	if err != nil {
		t.Fatalf("Find error: %v", err)
	}
	if got != "https://img.example.com/a.jpg" {
		t.Fatalf("Find = %q, want first absolute image", got)
	}
	if !strings.Contains(requested, "q=rocket+alert") {
		t.Fatalf("search url should carry escaped title, got %q", requested)
	}
}

func TestThumbnailFinderNoImage(t *testing.T) {
	fetch := func(ctx context.Context, u string, timeout time.Duration) (string, error) {
		return `<html><body><img src="/relative.png"></body></html>`, nil
	}
	got, err := NewThumbnailFinder(fetch).Find(context.Background(), "nothing")
	if err != nil || got != "" {
		t.Fatalf("expected empty result, got %q, %v", got, err)
	}
}

func TestThumbnailFinderPropagatesFetchError(t *testing.T) {
	fetch := func(ctx context.Context, u string, timeout time.Duration) (string, error) {
		return "", &HTTPError{URL: u, Status: 429}
	}
	_, err := NewThumbnailFinder(fetch).Find(context.Background(), "blocked")
	var he *HTTPError
	if !errors.As(err, &he) {
		t.Fatalf("expected HTTPError, got %v", err)
	}
}
