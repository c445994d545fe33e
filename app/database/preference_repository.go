package database

import (
	"context"
	"fmt"
)

var _ PreferenceRepository = (*preferenceRepository)(nil)

type preferenceRepository struct {
	db *DB
}

// NewPreferenceRepository creates the SQLite-backed preference repository.
func NewPreferenceRepository(db *DB) PreferenceRepository {
	return &preferenceRepository{db: db}
}

func (r *preferenceRepository) UpsertPreference(ctx context.Context, p *UserPreference) error {
	return withRetryErr(ctx, func() error {
		_, err := r.db.ExecContext(ctx, `
			INSERT INTO user_preferences (pref_type, pref_key, time_window, weight, computed_at)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT (pref_type, pref_key, time_window) DO UPDATE SET
				weight = excluded.weight,
				computed_at = excluded.computed_at`,
			string(p.Type), p.Key, string(p.Window), p.Weight, p.ComputedAt.UTC())
		if err != nil {
			return fmt.Errorf("failed to upsert preference: %w", err)
		}
		return nil
	})
}

func (r *preferenceRepository) TopPreferences(ctx context.Context, pt PreferenceType, w TimeWindow, limit int) ([]UserPreference, error) {
	return WithRetry(ctx, func() ([]UserPreference, error) {
		rows, err := r.db.QueryContext(ctx, `
			SELECT pref_type, pref_key, time_window, weight, computed_at
			FROM user_preferences
			WHERE pref_type = ? AND time_window = ?
			ORDER BY weight DESC
			LIMIT ?`, string(pt), string(w), limit)
		if err != nil {
			return nil, fmt.Errorf("failed to query top preferences: %w", err)
		}
		defer rows.Close()
		return scanPreferences(rows)
	})
}

func (r *preferenceRepository) ListPreferences(ctx context.Context, pt PreferenceType, w TimeWindow) ([]UserPreference, error) {
	return WithRetry(ctx, func() ([]UserPreference, error) {
		rows, err := r.db.QueryContext(ctx, `
			SELECT pref_type, pref_key, time_window, weight, computed_at
			FROM user_preferences
			WHERE pref_type = ? AND time_window = ?
			ORDER BY pref_key`, string(pt), string(w))
		if err != nil {
			return nil, fmt.Errorf("failed to list preferences: %w", err)
		}
		defer rows.Close()
		return scanPreferences(rows)
	})
}

func scanPreferences(rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}) ([]UserPreference, error) {
	var prefs []UserPreference
	for rows.Next() {
		var p UserPreference
		var pt, w string
		if err := rows.Scan(&pt, &p.Key, &w, &p.Weight, &p.ComputedAt); err != nil {
			return nil, fmt.Errorf("failed to scan preference: %w", err)
		}
		p.Type = PreferenceType(pt)
		p.Window = TimeWindow(w)
		prefs = append(prefs, p)
	}
	return prefs, rows.Err()
}
