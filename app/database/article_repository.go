package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

var _ ArticleRepository = (*articleRepository)(nil)

type articleRepository struct {
	db *DB
}

// NewArticleRepository creates the SQLite-backed article repository.
func NewArticleRepository(db *DB) ArticleRepository {
	return &articleRepository{db: db}
}

const articleColumns = `id, feed_id, guid, title, author, url, image_url, content, plain_content,
	summary, summarized_at, relevance_score, tags, read, read_at, saved, fetched_at, published_at`

// UpsertArticle inserts the article keyed by (feed_id, guid). On conflict
// the source fields are refreshed while enrichment state (summary, score,
// read/saved flags) is kept; image and tags only fill in when still empty.
// Reports whether a new row was created; on merge a.ID is rewritten to
// the stored row's id.
func (r *articleRepository) UpsertArticle(ctx context.Context, a *Article) (bool, error) {
	return WithRetry(ctx, func() (bool, error) {
		if a.ID == "" {
			a.ID = uuid.NewString()
		}
		if a.FetchedAt.IsZero() {
			a.FetchedAt = time.Now().UTC()
		}

		var storedID string
		err := r.db.QueryRowContext(ctx, `
			INSERT INTO articles (
				id, feed_id, guid, title, author, url, image_url,
				content, plain_content, tags, fetched_at, published_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (feed_id, guid) DO UPDATE SET
				title = excluded.title,
				author = excluded.author,
				url = excluded.url,
				image_url = CASE WHEN articles.image_url = '' THEN excluded.image_url ELSE articles.image_url END,
				content = excluded.content,
				plain_content = excluded.plain_content,
				tags = CASE WHEN articles.tags = '[]' THEN excluded.tags ELSE articles.tags END,
				published_at = COALESCE(articles.published_at, excluded.published_at)
			RETURNING id`,
			a.ID, a.FeedID, a.GUID, a.Title, a.Author, a.URL, a.ImageURL,
			a.Content, a.PlainContent, tagsToJSON(a.Tags), a.FetchedAt.UTC(),
			nullableTime(a.PublishedAt)).Scan(&storedID)
		if err != nil {
			return false, fmt.Errorf("failed to upsert article: %w", err)
		}

		inserted := storedID == a.ID
		a.ID = storedID
		return inserted, nil
	})
}

func (r *articleRepository) GetArticle(ctx context.Context, id string) (*Article, error) {
	return WithRetry(ctx, func() (*Article, error) {
		row := r.db.QueryRowContext(ctx,
			`SELECT `+articleColumns+` FROM articles WHERE id = ?`, id)
		return scanArticle(row)
	})
}

func (r *articleRepository) ListArticles(ctx context.Context, opts ArticleListOptions) ([]Article, error) {
	return WithRetry(ctx, func() ([]Article, error) {
		query := `SELECT ` + articleColumns + ` FROM articles`
		var conditions []string
		var args []any

		if opts.FeedID != "" {
			conditions = append(conditions, "feed_id = ?")
			args = append(args, opts.FeedID)
		}
		if opts.UnreadOnly {
			conditions = append(conditions, "read = 0")
		}
		if len(conditions) > 0 {
			query += " WHERE " + strings.Join(conditions, " AND ")
		}
		query += " ORDER BY COALESCE(published_at, fetched_at) DESC"
		if opts.Limit > 0 {
			query += " LIMIT ?"
			args = append(args, opts.Limit)
		}

		return r.queryArticles(ctx, query, args...)
	})
}

func (r *articleRepository) SearchArticles(ctx context.Context, query, feedID string, limit int) ([]Article, error) {
	return WithRetry(ctx, func() ([]Article, error) {
		pattern := "%" + strings.ToLower(query) + "%"
		sqlQuery := `SELECT ` + articleColumns + ` FROM articles
			WHERE (lower(title) LIKE ? OR lower(plain_content) LIKE ?)`
		args := []any{pattern, pattern}

		if feedID != "" {
			sqlQuery += " AND feed_id = ?"
			args = append(args, feedID)
		}
		sqlQuery += " ORDER BY COALESCE(published_at, fetched_at) DESC"
		if limit > 0 {
			sqlQuery += " LIMIT ?"
			args = append(args, limit)
		}

		return r.queryArticles(ctx, sqlQuery, args...)
	})
}

func (r *articleRepository) SetRead(ctx context.Context, id string, read bool) error {
	return withRetryErr(ctx, func() error {
		var readAt any
		if read {
			readAt = time.Now().UTC()
		}
		_, err := r.db.ExecContext(ctx,
			`UPDATE articles SET read = ?, read_at = ? WHERE id = ?`,
			read, readAt, id)
		if err != nil {
			return fmt.Errorf("failed to set read flag: %w", err)
		}
		return nil
	})
}

func (r *articleRepository) ToggleSaved(ctx context.Context, id string) (bool, error) {
	return WithRetry(ctx, func() (bool, error) {
		var saved bool
		err := r.db.QueryRowContext(ctx,
			`UPDATE articles SET saved = 1 - saved WHERE id = ? RETURNING saved`, id).Scan(&saved)
		if err == sql.ErrNoRows {
			return false, fmt.Errorf("article not found: %s", id)
		}
		if err != nil {
			return false, fmt.Errorf("failed to toggle saved flag: %w", err)
		}
		return saved, nil
	})
}

func (r *articleRepository) SetSummary(ctx context.Context, id, summary string) error {
	return withRetryErr(ctx, func() error {
		_, err := r.db.ExecContext(ctx,
			`UPDATE articles SET summary = ?, summarized_at = ? WHERE id = ?`,
			summary, time.Now().UTC(), id)
		if err != nil {
			return fmt.Errorf("failed to set summary: %w", err)
		}
		return nil
	})
}

func (r *articleRepository) SetTags(ctx context.Context, id string, tags []string) error {
	return withRetryErr(ctx, func() error {
		_, err := r.db.ExecContext(ctx,
			`UPDATE articles SET tags = ? WHERE id = ?`, tagsToJSON(tags), id)
		if err != nil {
			return fmt.Errorf("failed to set tags: %w", err)
		}
		return nil
	})
}

func (r *articleRepository) SetRelevanceScore(ctx context.Context, id string, score float64) error {
	return withRetryErr(ctx, func() error {
		_, err := r.db.ExecContext(ctx,
			`UPDATE articles SET relevance_score = ? WHERE id = ?`, score, id)
		if err != nil {
			return fmt.Errorf("failed to set relevance score: %w", err)
		}
		return nil
	})
}

func (r *articleRepository) ListNeedingSummary(ctx context.Context, minLength, limit int) ([]Article, error) {
	return WithRetry(ctx, func() ([]Article, error) {
		return r.queryArticles(ctx, `
			SELECT `+articleColumns+` FROM articles
			WHERE read = 0 AND summary IS NULL AND length(plain_content) >= ?
			ORDER BY fetched_at
			LIMIT ?`, minLength, limit)
	})
}

func (r *articleRepository) ListFilterCandidates(ctx context.Context, minLength, limit int) ([]Article, error) {
	return WithRetry(ctx, func() ([]Article, error) {
		return r.queryArticles(ctx, `
			SELECT `+articleColumns+` FROM articles
			WHERE read = 0 AND relevance_score IS NULL
				AND (summary IS NOT NULL OR length(plain_content) < ?)
			ORDER BY fetched_at
			LIMIT ?`, minLength, limit)
	})
}

func (r *articleRepository) FilterUnreadIDs(ctx context.Context, ids []string) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	return WithRetry(ctx, func() ([]string, error) {
		placeholders := strings.Repeat("?,", len(ids))
		placeholders = placeholders[:len(placeholders)-1]
		args := make([]any, len(ids))
		for i, id := range ids {
			args[i] = id
		}

		rows, err := r.db.QueryContext(ctx,
			`SELECT id FROM articles WHERE read = 0 AND id IN (`+placeholders+`)`, args...)
		if err != nil {
			return nil, fmt.Errorf("failed to filter unread ids: %w", err)
		}
		defer rows.Close()

		unread := make(map[string]struct{}, len(ids))
		for rows.Next() {
			var id string
			if err := rows.Scan(&id); err != nil {
				return nil, fmt.Errorf("failed to scan article id: %w", err)
			}
			unread[id] = struct{}{}
		}
		if err := rows.Err(); err != nil {
			return nil, err
		}

		// Preserve the caller's ordering.
		var result []string
		for _, id := range ids {
			if _, ok := unread[id]; ok {
				result = append(result, id)
			}
		}
		return result, nil
	})
}

func (r *articleRepository) ListUnclassified(ctx context.Context, limit int) ([]Article, error) {
	return WithRetry(ctx, func() ([]Article, error) {
		return r.queryArticles(ctx, `
			SELECT `+articleColumns+` FROM articles
			WHERE summary IS NOT NULL
				AND id NOT IN (SELECT article_id FROM article_styles)
			ORDER BY fetched_at
			LIMIT ?`, limit)
	})
}

func (r *articleRepository) TagsForArticles(ctx context.Context, ids []string) (map[string][]string, error) {
	if len(ids) == 0 {
		return map[string][]string{}, nil
	}
	return WithRetry(ctx, func() (map[string][]string, error) {
		placeholders := strings.Repeat("?,", len(ids))
		placeholders = placeholders[:len(placeholders)-1]
		args := make([]any, len(ids))
		for i, id := range ids {
			args[i] = id
		}

		rows, err := r.db.QueryContext(ctx,
			`SELECT id, tags FROM articles WHERE id IN (`+placeholders+`)`, args...)
		if err != nil {
			return nil, fmt.Errorf("failed to load article tags: %w", err)
		}
		defer rows.Close()

		result := make(map[string][]string, len(ids))
		for rows.Next() {
			var id, raw string
			if err := rows.Scan(&id, &raw); err != nil {
				return nil, fmt.Errorf("failed to scan article tags: %w", err)
			}
			result[id] = tagsFromJSON(raw)
		}
		return result, rows.Err()
	})
}

func (r *articleRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	return WithRetry(ctx, func() (int64, error) {
		result, err := r.db.ExecContext(ctx,
			`DELETE FROM articles WHERE saved = 0 AND fetched_at < ?`, cutoff.UTC())
		if err != nil {
			return 0, fmt.Errorf("failed to delete old articles: %w", err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("failed to read affected rows: %w", err)
		}
		return affected, nil
	})
}

func (r *articleRepository) queryArticles(ctx context.Context, query string, args ...any) ([]Article, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query articles: %w", err)
	}
	defer rows.Close()

	var articles []Article
	for rows.Next() {
		article, err := scanArticle(rows)
		if err != nil {
			return nil, err
		}
		articles = append(articles, *article)
	}
	return articles, rows.Err()
}

func scanArticle(row rowScanner) (*Article, error) {
	var a Article
	var summary sql.NullString
	var summarizedAt, readAt, publishedAt sql.NullTime
	var score sql.NullFloat64
	var tags string

	err := row.Scan(&a.ID, &a.FeedID, &a.GUID, &a.Title, &a.Author, &a.URL, &a.ImageURL,
		&a.Content, &a.PlainContent, &summary, &summarizedAt, &score, &tags,
		&a.Read, &readAt, &a.Saved, &a.FetchedAt, &publishedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan article: %w", err)
	}

	if summary.Valid {
		s := summary.String
		a.Summary = &s
	}
	if summarizedAt.Valid {
		t := summarizedAt.Time
		a.SummarizedAt = &t
	}
	if score.Valid {
		v := score.Float64
		a.RelevanceScore = &v
	}
	if readAt.Valid {
		t := readAt.Time
		a.ReadAt = &t
	}
	if publishedAt.Valid {
		t := publishedAt.Time
		a.PublishedAt = &t
	}
	a.Tags = tagsFromJSON(tags)

	return &a, nil
}

func tagsToJSON(tags []string) string {
	if len(tags) == 0 {
		return "[]"
	}
	data, err := json.Marshal(tags)
	if err != nil {
		return "[]"
	}
	return string(data)
}

func tagsFromJSON(raw string) []string {
	if raw == "" || raw == "[]" {
		return nil
	}
	var tags []string
	if err := json.Unmarshal([]byte(raw), &tags); err != nil {
		return nil
	}
	return tags
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}
