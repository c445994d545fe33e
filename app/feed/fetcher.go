package feed

import (
	"cmp"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/mmcdole/gofeed"
	"golang.org/x/text/language"

	"newsd/app/database"
)

const maxFeedBodySize = 10 << 20

// ResolveURL normalizes a user-supplied feed address. feed:// and
// scheme-less addresses become https://.
func ResolveURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("feed URL is empty")
	}

	switch {
	case strings.HasPrefix(raw, "feed://"):
		raw = "https://" + strings.TrimPrefix(raw, "feed://")
	case !strings.Contains(raw, "://"):
		raw = "https://" + raw
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid feed URL %q: %w", raw, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", fmt.Errorf("unsupported feed URL scheme %q", parsed.Scheme)
	}
	if parsed.Host == "" {
		return "", fmt.Errorf("feed URL %q has no host", raw)
	}
	return parsed.String(), nil
}

// Result is one parsed feed document.
type Result struct {
	Metadata database.FeedMetadata
	Articles []database.Article // FeedID left empty, the caller owns it
}

// Fetcher downloads and parses feed documents.
type Fetcher struct {
	client    *http.Client
	parser    *gofeed.Parser
	converter *md.Converter
	userAgent string
}

func NewFetcher(userAgent string, timeout time.Duration) *Fetcher {
	return &Fetcher{
		client:    &http.Client{Timeout: timeout},
		parser:    gofeed.NewParser(),
		converter: md.NewConverter("", true, nil),
		userAgent: userAgent,
	}
}

func (f *Fetcher) Fetch(ctx context.Context, feedURL string) (*Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("feed returned HTTP %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFeedBodySize))
	if err != nil {
		return nil, fmt.Errorf("failed to read feed body: %w", err)
	}

	parsed, err := f.parser.Parse(strings.NewReader(string(body)))
	if err != nil {
		return nil, fmt.Errorf("failed to parse feed: %w", err)
	}

	result := &Result{
		Metadata: database.FeedMetadata{
			Title:       parsed.Title,
			Description: parsed.Description,
			SiteURL:     parsed.Link,
			Language:    canonicalLanguage(parsed.Language),
		},
	}
	if parsed.Image != nil {
		result.Metadata.IconURL = parsed.Image.URL
	}

	result.Articles = make([]database.Article, 0, len(parsed.Items))
	for _, item := range parsed.Items {
		if item == nil {
			continue
		}
		result.Articles = append(result.Articles, f.normalizeItem(item))
	}
	return result, nil
}

func (f *Fetcher) normalizeItem(item *gofeed.Item) database.Article {
	a := database.Article{
		GUID:    cmp.Or(item.GUID, item.Link),
		Title:   item.Title,
		URL:     item.Link,
		Content: cmp.Or(item.Content, item.Description),
	}

	if item.PublishedParsed != nil {
		t := item.PublishedParsed.UTC()
		a.PublishedAt = &t
	}
	if item.Image != nil {
		a.ImageURL = item.Image.URL
	}
	if len(item.Authors) > 0 && item.Authors[0] != nil {
		a.Author = item.Authors[0].Name
	}

	a.PlainContent = f.plainText(a.Content)
	a.Tags = normalizeTags(item.Categories)
	return a
}

// plainText strips markup from the item body. The markdown rendering is
// close enough to plain text for length checks and prompt building.
func (f *Fetcher) plainText(html string) string {
	if html == "" {
		return ""
	}
	text, err := f.converter.ConvertString(html)
	if err != nil {
		return strings.TrimSpace(html)
	}
	return strings.TrimSpace(text)
}

func normalizeTags(categories []string) []string {
	var tags []string
	seen := make(map[string]struct{}, len(categories))
	for _, c := range categories {
		tag := strings.ToLower(strings.TrimSpace(c))
		if tag == "" {
			continue
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		tags = append(tags, tag)
	}
	return tags
}

// canonicalLanguage maps whatever the feed declares ("en_US", "EN-us")
// onto a BCP 47 tag. Unparseable values pass through untouched.
func canonicalLanguage(lang string) string {
	lang = strings.TrimSpace(lang)
	if lang == "" {
		return ""
	}
	tag, err := language.Parse(lang)
	if err != nil {
		return lang
	}
	return tag.String()
}
