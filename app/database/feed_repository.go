package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var _ FeedRepository = (*feedRepository)(nil)

type feedRepository struct {
	db *DB
}

// NewFeedRepository creates the SQLite-backed feed repository.
func NewFeedRepository(db *DB) FeedRepository {
	return &feedRepository{db: db}
}

const feedColumns = `id, url, name, title, description, site_url, icon_url, language,
	last_fetched_at, fetch_error, created_at, updated_at`

func (r *feedRepository) CreateFeed(ctx context.Context, url, name string) (*Feed, error) {
	return WithRetry(ctx, func() (*Feed, error) {
		now := time.Now().UTC()
		feed := &Feed{
			ID:        uuid.NewString(),
			URL:       url,
			Name:      name,
			CreatedAt: now,
			UpdatedAt: now,
		}

		_, err := r.db.ExecContext(ctx, `
			INSERT INTO feeds (id, url, name, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?)`,
			feed.ID, feed.URL, feed.Name, feed.CreatedAt, feed.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to create feed: %w", err)
		}

		return feed, nil
	})
}

func (r *feedRepository) GetFeed(ctx context.Context, id string) (*Feed, error) {
	return WithRetry(ctx, func() (*Feed, error) {
		row := r.db.QueryRowContext(ctx,
			`SELECT `+feedColumns+` FROM feeds WHERE id = ?`, id)
		return scanFeed(row)
	})
}

func (r *feedRepository) GetFeedByURL(ctx context.Context, url string) (*Feed, error) {
	return WithRetry(ctx, func() (*Feed, error) {
		row := r.db.QueryRowContext(ctx,
			`SELECT `+feedColumns+` FROM feeds WHERE url = ?`, url)
		return scanFeed(row)
	})
}

func (r *feedRepository) ListFeeds(ctx context.Context) ([]Feed, error) {
	return WithRetry(ctx, func() ([]Feed, error) {
		rows, err := r.db.QueryContext(ctx, `
			SELECT `+feedColumns+`,
				(SELECT COUNT(*) FROM articles a WHERE a.feed_id = feeds.id AND a.read = 0)
			FROM feeds
			ORDER BY name`)
		if err != nil {
			return nil, fmt.Errorf("failed to list feeds: %w", err)
		}
		defer rows.Close()

		var feeds []Feed
		for rows.Next() {
			feed, err := scanFeedWithUnread(rows)
			if err != nil {
				return nil, err
			}
			feeds = append(feeds, *feed)
		}
		return feeds, rows.Err()
	})
}

func (r *feedRepository) ListFeedsStale(ctx context.Context, before time.Time) ([]Feed, error) {
	return WithRetry(ctx, func() ([]Feed, error) {
		rows, err := r.db.QueryContext(ctx, `
			SELECT `+feedColumns+` FROM feeds
			WHERE last_fetched_at IS NULL OR last_fetched_at < ?
			ORDER BY name`, before.UTC())
		if err != nil {
			return nil, fmt.Errorf("failed to list stale feeds: %w", err)
		}
		defer rows.Close()

		var feeds []Feed
		for rows.Next() {
			feed, err := scanFeed(rows)
			if err != nil {
				return nil, err
			}
			feeds = append(feeds, *feed)
		}
		return feeds, rows.Err()
	})
}

func (r *feedRepository) UpdateFeedMetadata(ctx context.Context, id string, meta FeedMetadata) error {
	return withRetryErr(ctx, func() error {
		_, err := r.db.ExecContext(ctx, `
			UPDATE feeds
			SET title = ?, description = ?, site_url = ?, icon_url = ?, language = ?, updated_at = ?
			WHERE id = ?`,
			meta.Title, meta.Description, meta.SiteURL, meta.IconURL, meta.Language,
			time.Now().UTC(), id)
		if err != nil {
			return fmt.Errorf("failed to update feed metadata: %w", err)
		}
		return nil
	})
}

func (r *feedRepository) RecordFetchSuccess(ctx context.Context, id string, at time.Time) error {
	return withRetryErr(ctx, func() error {
		_, err := r.db.ExecContext(ctx, `
			UPDATE feeds
			SET last_fetched_at = ?, fetch_error = '', updated_at = ?
			WHERE id = ?`,
			at.UTC(), time.Now().UTC(), id)
		if err != nil {
			return fmt.Errorf("failed to record fetch success: %w", err)
		}
		return nil
	})
}

func (r *feedRepository) RecordFetchError(ctx context.Context, id string, message string) error {
	return withRetryErr(ctx, func() error {
		_, err := r.db.ExecContext(ctx, `
			UPDATE feeds
			SET last_fetched_at = ?, fetch_error = ?, updated_at = ?
			WHERE id = ?`,
			time.Now().UTC(), message, time.Now().UTC(), id)
		if err != nil {
			return fmt.Errorf("failed to record fetch error: %w", err)
		}
		return nil
	})
}

func (r *feedRepository) DeleteFeed(ctx context.Context, id string) (bool, error) {
	return WithRetry(ctx, func() (bool, error) {
		result, err := r.db.ExecContext(ctx, `DELETE FROM feeds WHERE id = ?`, id)
		if err != nil {
			return false, fmt.Errorf("failed to delete feed: %w", err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return false, fmt.Errorf("failed to read affected rows: %w", err)
		}
		return affected > 0, nil
	})
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanFeed(row rowScanner) (*Feed, error) {
	var feed Feed
	var lastFetched sql.NullTime

	err := row.Scan(&feed.ID, &feed.URL, &feed.Name, &feed.Title, &feed.Description,
		&feed.SiteURL, &feed.IconURL, &feed.Language, &lastFetched, &feed.FetchError,
		&feed.CreatedAt, &feed.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan feed: %w", err)
	}

	if lastFetched.Valid {
		t := lastFetched.Time
		feed.LastFetchedAt = &t
	}
	return &feed, nil
}

func scanFeedWithUnread(row rowScanner) (*Feed, error) {
	var feed Feed
	var lastFetched sql.NullTime

	err := row.Scan(&feed.ID, &feed.URL, &feed.Name, &feed.Title, &feed.Description,
		&feed.SiteURL, &feed.IconURL, &feed.Language, &lastFetched, &feed.FetchError,
		&feed.CreatedAt, &feed.UpdatedAt, &feed.UnreadCount)
	if err != nil {
		return nil, fmt.Errorf("failed to scan feed: %w", err)
	}

	if lastFetched.Valid {
		t := lastFetched.Time
		feed.LastFetchedAt = &t
	}
	return &feed, nil
}
