package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

var _ StyleRepository = (*styleRepository)(nil)

type styleRepository struct {
	db *DB
}

// NewStyleRepository creates the SQLite-backed article-style repository.
func NewStyleRepository(db *DB) StyleRepository {
	return &styleRepository{db: db}
}

func (r *styleRepository) UpsertStyle(ctx context.Context, s *ArticleStyle) error {
	return withRetryErr(ctx, func() error {
		if s.ClassifiedAt.IsZero() {
			s.ClassifiedAt = time.Now().UTC()
		}
		_, err := r.db.ExecContext(ctx, `
			INSERT INTO article_styles (article_id, style_type, tone, length_bucket, classified_at)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT (article_id) DO UPDATE SET
				style_type = excluded.style_type,
				tone = excluded.tone,
				length_bucket = excluded.length_bucket,
				classified_at = excluded.classified_at`,
			s.ArticleID, s.StyleType, s.Tone, s.LengthBucket, s.ClassifiedAt.UTC())
		if err != nil {
			return fmt.Errorf("failed to upsert article style: %w", err)
		}
		return nil
	})
}

func (r *styleRepository) GetStyle(ctx context.Context, articleID string) (*ArticleStyle, error) {
	return WithRetry(ctx, func() (*ArticleStyle, error) {
		var s ArticleStyle
		err := r.db.QueryRowContext(ctx, `
			SELECT article_id, style_type, tone, length_bucket, classified_at
			FROM article_styles WHERE article_id = ?`, articleID).
			Scan(&s.ArticleID, &s.StyleType, &s.Tone, &s.LengthBucket, &s.ClassifiedAt)
		if err == sql.ErrNoRows {
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("failed to get article style: %w", err)
		}
		return &s, nil
	})
}
