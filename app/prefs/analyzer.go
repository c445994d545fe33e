package prefs

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"newsd/app/database"
)

// Fixed weight per interaction kind; the affinity of a key is the sum of
// weights of matching events inside the window.
var eventWeights = map[database.EventKind]float64{
	database.EventExposure:     0.1,
	database.EventClick:        1.0,
	database.EventReadStart:    1.5,
	database.EventReadComplete: 3.0,
	database.EventScroll:       0.5,
	database.EventSave:         5.0,
	database.EventShare:        5.0,
	database.EventRepeatView:   4.0,
}

// Only deliberate interactions count toward the time-of-day preference.
var timePreferenceKinds = map[database.EventKind]struct{}{
	database.EventClick:        {},
	database.EventReadComplete: {},
	database.EventSave:         {},
}

const maxTagAffinities = 50

var analysisWindows = []database.TimeWindow{
	database.Window5Min,
	database.Window1Day,
	database.Window30Day,
}

// Analyzer aggregates the behavior-event log into time-windowed affinity
// scores. Run is idempotent: the same event history always produces the
// same preference rows.
type Analyzer struct {
	behavior    database.BehaviorRepository
	articles    database.ArticleRepository
	preferences database.PreferenceRepository
	now         func() time.Time
}

func NewAnalyzer(behavior database.BehaviorRepository, articles database.ArticleRepository,
	preferences database.PreferenceRepository) *Analyzer {
	return &Analyzer{
		behavior:    behavior,
		articles:    articles,
		preferences: preferences,
		now:         time.Now,
	}
}

// Run recomputes tag affinity, feed affinity and time-of-day preference
// for every window, overwriting prior rows per (type, key, window).
func (a *Analyzer) Run(ctx context.Context) error {
	now := a.now().UTC()

	events, err := a.behavior.ListEventsSince(ctx, now.Add(-database.Window30Day.Duration()))
	if err != nil {
		return fmt.Errorf("failed to load behavior events: %w", err)
	}
	if len(events) == 0 {
		slog.Debug("No behavior events, skipping preference computation")
		return nil
	}

	tagsByArticle, err := a.loadArticleTags(ctx, events)
	if err != nil {
		return err
	}

	for _, window := range analysisWindows {
		cutoff := now.Add(-window.Duration())

		tagWeights := make(map[string]float64)
		feedWeights := make(map[string]float64)
		timeCounts := make(map[database.TimeOfDay]float64)

		for _, e := range events {
			if e.CreatedAt.Before(cutoff) {
				continue
			}
			weight := eventWeights[e.Kind]

			if e.ArticleID != nil {
				for _, tag := range tagsByArticle[*e.ArticleID] {
					tagWeights[tag] += weight
				}
			}
			if e.FeedID != nil {
				feedWeights[*e.FeedID] += weight
			}
			if _, ok := timePreferenceKinds[e.Kind]; ok {
				timeCounts[e.TimeOfDay]++
			}
		}

		if err := a.storeTopTags(ctx, window, tagWeights, now); err != nil {
			return err
		}
		if err := a.storeWeights(ctx, database.PreferenceFeedAffinity, window, feedWeights, now); err != nil {
			return err
		}

		// Time preference is only meaningful beyond the 5-minute window.
		if window != database.Window5Min {
			weights := make(map[string]float64, len(timeCounts))
			for bucket, count := range timeCounts {
				weights[string(bucket)] = count
			}
			if err := a.storeWeights(ctx, database.PreferenceTimeOfDay, window, weights, now); err != nil {
				return err
			}
		}
	}

	slog.Info("Preferences recomputed", "events", len(events))
	return nil
}

// TopTags returns the highest-weight tag keys for the window. This is the
// sole read path the relevance filter depends on.
func (a *Analyzer) TopTags(ctx context.Context, window database.TimeWindow, limit int) ([]string, error) {
	prefs, err := a.preferences.TopPreferences(ctx, database.PreferenceTagAffinity, window, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load top tags: %w", err)
	}
	tags := make([]string, 0, len(prefs))
	for _, p := range prefs {
		tags = append(tags, p.Key)
	}
	return tags, nil
}

func (a *Analyzer) loadArticleTags(ctx context.Context, events []database.BehaviorEvent) (map[string][]string, error) {
	seen := make(map[string]struct{})
	var ids []string
	for _, e := range events {
		if e.ArticleID == nil {
			continue
		}
		if _, ok := seen[*e.ArticleID]; ok {
			continue
		}
		seen[*e.ArticleID] = struct{}{}
		ids = append(ids, *e.ArticleID)
	}

	tags, err := a.articles.TagsForArticles(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load article tags: %w", err)
	}
	return tags, nil
}

func (a *Analyzer) storeTopTags(ctx context.Context, window database.TimeWindow,
	weights map[string]float64, computedAt time.Time) error {

	type weighted struct {
		key    string
		weight float64
	}
	ranked := make([]weighted, 0, len(weights))
	for key, weight := range weights {
		ranked = append(ranked, weighted{key, weight})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].weight != ranked[j].weight {
			return ranked[i].weight > ranked[j].weight
		}
		return ranked[i].key < ranked[j].key
	})
	if len(ranked) > maxTagAffinities {
		ranked = ranked[:maxTagAffinities]
	}

	for _, entry := range ranked {
		err := a.preferences.UpsertPreference(ctx, &database.UserPreference{
			Type:       database.PreferenceTagAffinity,
			Key:        entry.key,
			Window:     window,
			Weight:     entry.weight,
			ComputedAt: computedAt,
		})
		if err != nil {
			return fmt.Errorf("failed to store tag affinity: %w", err)
		}
	}
	return nil
}

func (a *Analyzer) storeWeights(ctx context.Context, pt database.PreferenceType,
	window database.TimeWindow, weights map[string]float64, computedAt time.Time) error {

	for key, weight := range weights {
		err := a.preferences.UpsertPreference(ctx, &database.UserPreference{
			Type:       pt,
			Key:        key,
			Window:     window,
			Weight:     weight,
			ComputedAt: computedAt,
		})
		if err != nil {
			return fmt.Errorf("failed to store %s preference: %w", pt, err)
		}
	}
	return nil
}
