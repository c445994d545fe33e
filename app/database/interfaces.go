package database

import (
	"context"
	"time"
)

// ArticleListOptions narrows ListArticles results.
type ArticleListOptions struct {
	FeedID     string
	UnreadOnly bool
	Limit      int
}

type FeedRepository interface {
	CreateFeed(ctx context.Context, url, name string) (*Feed, error)
	GetFeed(ctx context.Context, id string) (*Feed, error)
	GetFeedByURL(ctx context.Context, url string) (*Feed, error)
	ListFeeds(ctx context.Context) ([]Feed, error)
	// ListFeedsStale returns feeds never fetched or last fetched before the cutoff.
	ListFeedsStale(ctx context.Context, before time.Time) ([]Feed, error)
	UpdateFeedMetadata(ctx context.Context, id string, meta FeedMetadata) error
	RecordFetchSuccess(ctx context.Context, id string, at time.Time) error
	RecordFetchError(ctx context.Context, id string, message string) error
	DeleteFeed(ctx context.Context, id string) (bool, error)
}

type ArticleRepository interface {
	// UpsertArticle inserts the article or, when (feed_id, guid) already
	// exists, refreshes its source fields while keeping enrichment state.
	// Reports whether a new row was created; on merge a.ID is rewritten
	// to the stored row's id.
	UpsertArticle(ctx context.Context, a *Article) (bool, error)
	GetArticle(ctx context.Context, id string) (*Article, error)
	ListArticles(ctx context.Context, opts ArticleListOptions) ([]Article, error)
	SearchArticles(ctx context.Context, query, feedID string, limit int) ([]Article, error)
	SetRead(ctx context.Context, id string, read bool) error
	ToggleSaved(ctx context.Context, id string) (bool, error)
	SetSummary(ctx context.Context, id, summary string) error
	SetTags(ctx context.Context, id string, tags []string) error
	SetRelevanceScore(ctx context.Context, id string, score float64) error
	// ListNeedingSummary returns unread articles without a summary whose
	// plain content is at least minLength characters.
	ListNeedingSummary(ctx context.Context, minLength, limit int) ([]Article, error)
	// ListFilterCandidates returns unread, unscored articles that are
	// either already summarized or too short to need summarization.
	ListFilterCandidates(ctx context.Context, minLength, limit int) ([]Article, error)
	// FilterUnreadIDs narrows a candidate id set down to still-unread ids,
	// preserving the input order.
	FilterUnreadIDs(ctx context.Context, ids []string) ([]string, error)
	// ListUnclassified returns summarized articles without a style row.
	ListUnclassified(ctx context.Context, limit int) ([]Article, error)
	TagsForArticles(ctx context.Context, ids []string) (map[string][]string, error)
	// DeleteOlderThan removes unsaved articles fetched before the cutoff.
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

type BehaviorRepository interface {
	InsertEvent(ctx context.Context, e *BehaviorEvent) error
	ListEventsSince(ctx context.Context, since time.Time) ([]BehaviorEvent, error)
}

type PreferenceRepository interface {
	UpsertPreference(ctx context.Context, p *UserPreference) error
	// TopPreferences returns up to limit rows ordered by descending weight.
	TopPreferences(ctx context.Context, pt PreferenceType, w TimeWindow, limit int) ([]UserPreference, error)
	ListPreferences(ctx context.Context, pt PreferenceType, w TimeWindow) ([]UserPreference, error)
}

type StyleRepository interface {
	UpsertStyle(ctx context.Context, s *ArticleStyle) error
	GetStyle(ctx context.Context, articleID string) (*ArticleStyle, error)
}
