package feed

import (
	"fmt"
	"log/slog"
	"time"

	readability "github.com/go-shiori/go-readability"
)

// Extractor pulls the full article body from its web page for feeds
// that only publish stubs or excerpts.
type Extractor struct {
	timeout time.Duration
}

func NewExtractor(timeout time.Duration) *Extractor {
	return &Extractor{timeout: timeout}
}

// Extract fetches the page and returns (html, plain text).
func (e *Extractor) Extract(pageURL string) (string, string, error) {
	if pageURL == "" {
		return "", "", fmt.Errorf("article URL is empty")
	}

	article, err := readability.FromURL(pageURL, e.timeout)
	if err != nil {
		return "", "", fmt.Errorf("failed to extract content: %w", err)
	}
	if article.Content == "" {
		return "", "", fmt.Errorf("no content extracted from %s", pageURL)
	}

	slog.Debug("Content extracted",
		"url", pageURL, "content_length", len(article.TextContent))

	return article.Content, article.TextContent, nil
}
