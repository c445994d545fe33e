package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var _ BehaviorRepository = (*behaviorRepository)(nil)

type behaviorRepository struct {
	db *DB
}

// NewBehaviorRepository creates the SQLite-backed behavior-event repository.
// The event log is append-only; nothing in the daemon mutates or deletes it.
func NewBehaviorRepository(db *DB) BehaviorRepository {
	return &behaviorRepository{db: db}
}

func (r *behaviorRepository) InsertEvent(ctx context.Context, e *BehaviorEvent) error {
	return withRetryErr(ctx, func() error {
		if e.ID == "" {
			e.ID = uuid.NewString()
		}
		if e.CreatedAt.IsZero() {
			e.CreatedAt = time.Now().UTC()
		}
		if e.TimeOfDay == "" {
			e.TimeOfDay = TimeOfDayFor(e.CreatedAt)
		}
		if e.DayOfWeek == "" {
			e.DayOfWeek = e.CreatedAt.Weekday().String()
		}
		if e.NetworkType == "" {
			e.NetworkType = "unknown"
		}

		_, err := r.db.ExecContext(ctx, `
			INSERT INTO behavior_events (
				id, article_id, feed_id, kind, duration_seconds, scroll_depth,
				time_of_day, day_of_week, network_type, created_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			e.ID, e.ArticleID, e.FeedID, string(e.Kind), e.DurationSeconds, e.ScrollDepth,
			string(e.TimeOfDay), e.DayOfWeek, e.NetworkType, e.CreatedAt.UTC())
		if err != nil {
			return fmt.Errorf("failed to insert behavior event: %w", err)
		}
		return nil
	})
}

func (r *behaviorRepository) ListEventsSince(ctx context.Context, since time.Time) ([]BehaviorEvent, error) {
	return WithRetry(ctx, func() ([]BehaviorEvent, error) {
		rows, err := r.db.QueryContext(ctx, `
			SELECT id, article_id, feed_id, kind, duration_seconds, scroll_depth,
				time_of_day, day_of_week, network_type, created_at
			FROM behavior_events
			WHERE created_at >= ?
			ORDER BY created_at`, since.UTC())
		if err != nil {
			return nil, fmt.Errorf("failed to list behavior events: %w", err)
		}
		defer rows.Close()

		var events []BehaviorEvent
		for rows.Next() {
			var e BehaviorEvent
			var articleID, feedID sql.NullString
			var duration, depth sql.NullFloat64
			var kind, timeOfDay string

			err := rows.Scan(&e.ID, &articleID, &feedID, &kind, &duration, &depth,
				&timeOfDay, &e.DayOfWeek, &e.NetworkType, &e.CreatedAt)
			if err != nil {
				return nil, fmt.Errorf("failed to scan behavior event: %w", err)
			}

			e.Kind = EventKind(kind)
			e.TimeOfDay = TimeOfDay(timeOfDay)
			if articleID.Valid {
				s := articleID.String
				e.ArticleID = &s
			}
			if feedID.Valid {
				s := feedID.String
				e.FeedID = &s
			}
			if duration.Valid {
				v := duration.Float64
				e.DurationSeconds = &v
			}
			if depth.Valid {
				v := depth.Float64
				e.ScrollDepth = &v
			}
			events = append(events, e)
		}
		return events, rows.Err()
	})
}
