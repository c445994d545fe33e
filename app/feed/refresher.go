package feed

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"newsd/app/database"
)

// FeedSource downloads and parses one feed document.
type FeedSource interface {
	Fetch(ctx context.Context, feedURL string) (*Result, error)
}

// ContentExtractor fetches the full article page when the feed body is
// too thin to work with.
type ContentExtractor interface {
	Extract(pageURL string) (html, plain string, err error)
}

// BacklogFilter scores a single article on demand. Wired to the
// relevance filter when AI is enabled, nil otherwise.
type BacklogFilter interface {
	FilterOne(ctx context.Context, a *database.Article) (bool, error)
}

type RefresherOptions struct {
	// Staleness controls smart refresh: only feeds last fetched more
	// than this long ago are refreshed. Zero refreshes everything.
	Staleness time.Duration
	// FetchDelay spaces out consecutive feed downloads.
	FetchDelay time.Duration
	// MinContentLength triggers full-page extraction for shorter bodies.
	MinContentLength int
}

// Refresher drives feed fetching: the periodic refresh pass and the
// subscribe-time initial fetch.
type Refresher struct {
	feeds     database.FeedRepository
	articles  database.ArticleRepository
	source    FeedSource
	extractor ContentExtractor
	backlog   BacklogFilter
	opts      RefresherOptions
}

func NewRefresher(feeds database.FeedRepository, articles database.ArticleRepository,
	source FeedSource, extractor ContentExtractor, backlog BacklogFilter,
	opts RefresherOptions) *Refresher {
	return &Refresher{
		feeds:     feeds,
		articles:  articles,
		source:    source,
		extractor: extractor,
		backlog:   backlog,
		opts:      opts,
	}
}

// RefreshAll fetches every due feed sequentially and returns how many
// new articles landed. A failing feed has the error recorded on its row
// and does not abort the pass.
func (r *Refresher) RefreshAll(ctx context.Context) (int, error) {
	var (
		due []database.Feed
		err error
	)
	if r.opts.Staleness > 0 {
		due, err = r.feeds.ListFeedsStale(ctx, time.Now().UTC().Add(-r.opts.Staleness))
	} else {
		due, err = r.feeds.ListFeeds(ctx)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to list feeds: %w", err)
	}

	total := 0
	for i := range due {
		if err := ctx.Err(); err != nil {
			return total, err
		}

		inserted, err := r.refreshFeed(ctx, &due[i])
		if err != nil {
			slog.Warn("Feed refresh failed", "feed", due[i].URL, "error", err)
			if dbErr := r.feeds.RecordFetchError(ctx, due[i].ID, err.Error()); dbErr != nil {
				slog.Error("Failed to record fetch error", "feed", due[i].ID, "error", dbErr)
			}
			continue
		}
		total += len(inserted)

		// Pace the downloads, but not after the last feed.
		if r.opts.FetchDelay > 0 && i < len(due)-1 {
			select {
			case <-ctx.Done():
				return total, ctx.Err()
			case <-time.After(r.opts.FetchDelay):
			}
		}
	}
	return total, nil
}

// Subscribe adds a feed and fetches its backlog inline. When a backlog
// filter is wired, the fetched articles are scored immediately so a new
// subscription does not flood the unread view.
func (r *Refresher) Subscribe(ctx context.Context, rawURL, name string) (*database.Feed, int, error) {
	resolved, err := ResolveURL(rawURL)
	if err != nil {
		return nil, 0, err
	}

	existing, err := r.feeds.GetFeedByURL(ctx, resolved)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to look up feed: %w", err)
	}
	if existing != nil {
		return nil, 0, fmt.Errorf("already subscribed to %s", resolved)
	}

	if name == "" {
		if u, err := url.Parse(resolved); err == nil {
			name = u.Host
		}
	}

	created, err := r.feeds.CreateFeed(ctx, resolved, name)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create feed: %w", err)
	}

	inserted, err := r.refreshFeed(ctx, created)
	if err != nil {
		// The subscription stands; the scheduler will retry the fetch.
		slog.Warn("Initial fetch failed", "feed", resolved, "error", err)
		if dbErr := r.feeds.RecordFetchError(ctx, created.ID, err.Error()); dbErr != nil {
			slog.Error("Failed to record fetch error", "feed", created.ID, "error", dbErr)
		}
		return created, 0, nil
	}

	if r.backlog != nil {
		r.filterBacklog(ctx, inserted)
	}
	return created, len(inserted), nil
}

func (r *Refresher) refreshFeed(ctx context.Context, fd *database.Feed) ([]database.Article, error) {
	result, err := r.source.Fetch(ctx, fd.URL)
	if err != nil {
		return nil, err
	}

	if err := r.feeds.UpdateFeedMetadata(ctx, fd.ID, result.Metadata); err != nil {
		return nil, fmt.Errorf("failed to update feed metadata: %w", err)
	}

	var inserted []database.Article
	for i := range result.Articles {
		article := &result.Articles[i]
		article.FeedID = fd.ID
		r.maybeExtract(article)

		isNew, err := r.articles.UpsertArticle(ctx, article)
		if err != nil {
			slog.Warn("Failed to store article", "feed", fd.URL, "guid", article.GUID, "error", err)
			continue
		}
		if isNew {
			inserted = append(inserted, *article)
		}
	}

	if err := r.feeds.RecordFetchSuccess(ctx, fd.ID, time.Now().UTC()); err != nil {
		return nil, fmt.Errorf("failed to record fetch success: %w", err)
	}

	slog.Info("Feed refreshed", "feed", fd.URL,
		"total", len(result.Articles), "new", len(inserted))
	return inserted, nil
}

// maybeExtract replaces a stub body with the readability extraction of
// the article page. Extraction failures keep the original body.
func (r *Refresher) maybeExtract(article *database.Article) {
	if r.extractor == nil || article.URL == "" {
		return
	}
	if len(article.PlainContent) >= r.opts.MinContentLength {
		return
	}

	html, plain, err := r.extractor.Extract(article.URL)
	if err != nil {
		slog.Debug("Content extraction failed", "url", article.URL, "error", err)
		return
	}
	article.Content = html
	article.PlainContent = plain
}

func (r *Refresher) filterBacklog(ctx context.Context, backlog []database.Article) {
	filtered := 0
	for i := range backlog {
		wasFiltered, err := r.backlog.FilterOne(ctx, &backlog[i])
		if err != nil {
			slog.Warn("Backlog filtering failed", "article", backlog[i].ID, "error", err)
			continue
		}
		if wasFiltered {
			filtered++
		}
	}
	if filtered > 0 {
		slog.Info("Backlog filtered", "total", len(backlog), "filtered", filtered)
	}
}
