package prefs

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"newsd/app/database"
)

type testEnv struct {
	behavior    database.BehaviorRepository
	articles    database.ArticleRepository
	preferences database.PreferenceRepository
	feeds       database.FeedRepository
	analyzer    *Analyzer
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := database.NewConnection(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	_, _, err = database.RunMigrations(db)
	require.NoError(t, err)

	env := &testEnv{
		behavior:    database.NewBehaviorRepository(db),
		articles:    database.NewArticleRepository(db),
		preferences: database.NewPreferenceRepository(db),
		feeds:       database.NewFeedRepository(db),
	}
	env.analyzer = NewAnalyzer(env.behavior, env.articles, env.preferences)
	return env
}

func (env *testEnv) addArticle(t *testing.T, feedID string, tags ...string) string {
	t.Helper()
	a := &database.Article{FeedID: feedID, GUID: "guid-" + tags[0], Tags: tags}
	_, err := env.articles.UpsertArticle(context.Background(), a)
	require.NoError(t, err)
	return a.ID
}

func (env *testEnv) addEvent(t *testing.T, articleID, feedID string, kind database.EventKind, age time.Duration) {
	t.Helper()
	e := &database.BehaviorEvent{Kind: kind, CreatedAt: time.Now().UTC().Add(-age)}
	if articleID != "" {
		e.ArticleID = &articleID
	}
	if feedID != "" {
		e.FeedID = &feedID
	}
	require.NoError(t, env.behavior.InsertEvent(context.Background(), e))
}

func TestAnalyzerComputesWeightedTagAffinity(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	feed, err := env.feeds.CreateFeed(ctx, "https://example.com/feed", "Example")
	require.NoError(t, err)

	goArticle := env.addArticle(t, feed.ID, "go", "programming")
	rustArticle := env.addArticle(t, feed.ID, "rust")

	// go: save (5.0) + click (1.0) = 6.0; programming likewise.
	// rust: exposure (0.1).
	env.addEvent(t, goArticle, feed.ID, database.EventSave, time.Minute)
	env.addEvent(t, goArticle, feed.ID, database.EventClick, time.Minute)
	env.addEvent(t, rustArticle, feed.ID, database.EventExposure, time.Minute)

	require.NoError(t, env.analyzer.Run(ctx))

	prefs, err := env.preferences.TopPreferences(ctx, database.PreferenceTagAffinity, database.Window1Day, 10)
	require.NoError(t, err)
	require.Len(t, prefs, 3)
	assert.Equal(t, 6.0, prefs[0].Weight)
	assert.Equal(t, "rust", prefs[2].Key)
	assert.InDelta(t, 0.1, prefs[2].Weight, 1e-9)

	// Feed affinity sums every event against the feed: 5 + 1 + 0.1.
	feedPrefs, err := env.preferences.ListPreferences(ctx, database.PreferenceFeedAffinity, database.Window1Day)
	require.NoError(t, err)
	require.Len(t, feedPrefs, 1)
	assert.InDelta(t, 6.1, feedPrefs[0].Weight, 1e-9)
}

func TestAnalyzerWindowsExcludeOldEvents(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	feed, err := env.feeds.CreateFeed(ctx, "https://example.com/feed", "Example")
	require.NoError(t, err)
	articleID := env.addArticle(t, feed.ID, "go")

	env.addEvent(t, articleID, feed.ID, database.EventClick, time.Minute)     // all windows
	env.addEvent(t, articleID, feed.ID, database.EventClick, 2*time.Hour)    // 1d + 30d
	env.addEvent(t, articleID, feed.ID, database.EventClick, 48*time.Hour)   // 30d only
	env.addEvent(t, articleID, feed.ID, database.EventClick, 31*24*time.Hour) // outside every window

	require.NoError(t, env.analyzer.Run(ctx))

	weightFor := func(w database.TimeWindow) float64 {
		prefs, err := env.preferences.ListPreferences(ctx, database.PreferenceTagAffinity, w)
		require.NoError(t, err)
		require.Len(t, prefs, 1)
		return prefs[0].Weight
	}

	assert.Equal(t, 1.0, weightFor(database.Window5Min))
	assert.Equal(t, 2.0, weightFor(database.Window1Day))
	assert.Equal(t, 3.0, weightFor(database.Window30Day))
}

func TestAnalyzerIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	feed, err := env.feeds.CreateFeed(ctx, "https://example.com/feed", "Example")
	require.NoError(t, err)
	articleID := env.addArticle(t, feed.ID, "go")
	env.addEvent(t, articleID, feed.ID, database.EventReadComplete, time.Minute)

	require.NoError(t, env.analyzer.Run(ctx))
	first, err := env.preferences.ListPreferences(ctx, database.PreferenceTagAffinity, database.Window30Day)
	require.NoError(t, err)

	require.NoError(t, env.analyzer.Run(ctx))
	second, err := env.preferences.ListPreferences(ctx, database.PreferenceTagAffinity, database.Window30Day)
	require.NoError(t, err)

	require.Len(t, second, len(first))
	for i := range first {
		assert.Equal(t, first[i].Key, second[i].Key)
		assert.Equal(t, first[i].Weight, second[i].Weight)
	}
}

func TestAnalyzerColdStart(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	require.NoError(t, env.analyzer.Run(ctx))

	tags, err := env.analyzer.TopTags(ctx, database.Window30Day, 10)
	require.NoError(t, err)
	assert.Empty(t, tags)
}

func TestAnalyzerTimeOfDayPreference(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	feed, err := env.feeds.CreateFeed(ctx, "https://example.com/feed", "Example")
	require.NoError(t, err)
	articleID := env.addArticle(t, feed.ID, "go")

	// Scroll events never count toward time preference.
	env.addEvent(t, articleID, feed.ID, database.EventScroll, time.Minute)
	env.addEvent(t, articleID, feed.ID, database.EventClick, time.Minute)
	env.addEvent(t, articleID, feed.ID, database.EventSave, time.Minute)

	require.NoError(t, env.analyzer.Run(ctx))

	prefs, err := env.preferences.ListPreferences(ctx, database.PreferenceTimeOfDay, database.Window1Day)
	require.NoError(t, err)
	require.Len(t, prefs, 1)
	assert.Equal(t, 2.0, prefs[0].Weight)

	// The 5-minute window never carries time preference rows.
	prefs, err = env.preferences.ListPreferences(ctx, database.PreferenceTimeOfDay, database.Window5Min)
	require.NoError(t, err)
	assert.Empty(t, prefs)
}
