package database

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := NewConnection(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, _, err = RunMigrations(db)
	require.NoError(t, err)
	return db
}

func createTestFeed(t *testing.T, db *DB) *Feed {
	t.Helper()
	feed, err := NewFeedRepository(db).CreateFeed(context.Background(),
		"https://example.com/feed.xml", "Example")
	require.NoError(t, err)
	return feed
}

func mustUpsert(t *testing.T, repo ArticleRepository, a *Article) {
	t.Helper()
	_, err := repo.UpsertArticle(context.Background(), a)
	require.NoError(t, err)
}

func TestUpsertArticleDeduplicatesByFeedAndGUID(t *testing.T) {
	db := newTestDB(t)
	feed := createTestFeed(t, db)
	repo := NewArticleRepository(db)
	ctx := context.Background()

	first := &Article{
		FeedID:       feed.ID,
		GUID:         "guid-1",
		Title:        "Original title",
		Content:      "<p>original</p>",
		PlainContent: "original",
		Tags:         []string{"go"},
	}
	inserted, err := repo.UpsertArticle(ctx, first)
	require.NoError(t, err)
	assert.True(t, inserted)

	// Mark read and summarize, then re-ingest with changed content.
	require.NoError(t, repo.SetRead(ctx, first.ID, true))
	require.NoError(t, repo.SetSummary(ctx, first.ID, "a summary"))

	second := &Article{
		FeedID:       feed.ID,
		GUID:         "guid-1",
		Title:        "Updated title",
		Content:      "<p>updated</p>",
		PlainContent: "updated",
	}
	inserted, err = repo.UpsertArticle(ctx, second)
	require.NoError(t, err)
	assert.False(t, inserted, "re-ingestion is a merge, not an insert")
	assert.Equal(t, first.ID, second.ID, "merge rewrites the id to the stored row")

	articles, err := repo.ListArticles(ctx, ArticleListOptions{FeedID: feed.ID})
	require.NoError(t, err)
	require.Len(t, articles, 1, "re-ingestion must not create a second row")

	got := articles[0]
	assert.Equal(t, first.ID, got.ID)
	assert.Equal(t, "Updated title", got.Title)
	assert.Equal(t, "updated", got.PlainContent)
	assert.True(t, got.Read, "read flag survives re-ingestion")
	require.NotNil(t, got.Summary)
	assert.Equal(t, "a summary", *got.Summary)
	assert.Equal(t, []string{"go"}, got.Tags, "existing tags are kept")
}

func TestListNeedingSummaryAndFilterCandidates(t *testing.T) {
	db := newTestDB(t)
	feed := createTestFeed(t, db)
	repo := NewArticleRepository(db)
	ctx := context.Background()

	long := &Article{FeedID: feed.ID, GUID: "long", PlainContent: "this article body is long enough"}
	short := &Article{FeedID: feed.ID, GUID: "short", PlainContent: "tiny"}
	mustUpsert(t, repo, long)
	mustUpsert(t, repo, short)

	needing, err := repo.ListNeedingSummary(ctx, 10, 100)
	require.NoError(t, err)
	require.Len(t, needing, 1)
	assert.Equal(t, "long", needing[0].GUID)

	// Short articles are score candidates without ever being summarized.
	candidates, err := repo.ListFilterCandidates(ctx, 10, 100)
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, "short", candidates[0].GUID)

	require.NoError(t, repo.SetSummary(ctx, long.ID, "summary"))
	candidates, err = repo.ListFilterCandidates(ctx, 10, 100)
	require.NoError(t, err)
	assert.Len(t, candidates, 2, "summarized article joins the candidates")

	require.NoError(t, repo.SetRelevanceScore(ctx, short.ID, 0.4))
	candidates, err = repo.ListFilterCandidates(ctx, 10, 100)
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, "long", candidates[0].GUID)
}

func TestFilterUnreadIDsDropsReadAndPreservesOrder(t *testing.T) {
	db := newTestDB(t)
	feed := createTestFeed(t, db)
	repo := NewArticleRepository(db)
	ctx := context.Background()

	var ids []string
	for _, guid := range []string{"a", "b", "c"} {
		a := &Article{FeedID: feed.ID, GUID: guid}
		mustUpsert(t, repo, a)
		ids = append(ids, a.ID)
	}

	require.NoError(t, repo.SetRead(ctx, ids[1], true))

	unread, err := repo.FilterUnreadIDs(ctx, ids)
	require.NoError(t, err)
	assert.Equal(t, []string{ids[0], ids[2]}, unread)
}

func TestToggleSavedReturnsNewState(t *testing.T) {
	db := newTestDB(t)
	feed := createTestFeed(t, db)
	repo := NewArticleRepository(db)
	ctx := context.Background()

	a := &Article{FeedID: feed.ID, GUID: "g"}
	mustUpsert(t, repo, a)

	saved, err := repo.ToggleSaved(ctx, a.ID)
	require.NoError(t, err)
	assert.True(t, saved)

	saved, err = repo.ToggleSaved(ctx, a.ID)
	require.NoError(t, err)
	assert.False(t, saved)
}

func TestDeleteOlderThanKeepsSavedArticles(t *testing.T) {
	db := newTestDB(t)
	feed := createTestFeed(t, db)
	repo := NewArticleRepository(db)
	ctx := context.Background()

	old := time.Now().UTC().Add(-72 * time.Hour)
	stale := &Article{FeedID: feed.ID, GUID: "stale", FetchedAt: old}
	kept := &Article{FeedID: feed.ID, GUID: "kept", FetchedAt: old}
	fresh := &Article{FeedID: feed.ID, GUID: "fresh"}
	mustUpsert(t, repo, stale)
	mustUpsert(t, repo, kept)
	mustUpsert(t, repo, fresh)

	_, err := repo.ToggleSaved(ctx, kept.ID)
	require.NoError(t, err)

	deleted, err := repo.DeleteOlderThan(ctx, time.Now().UTC().Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	remaining, err := repo.ListArticles(ctx, ArticleListOptions{FeedID: feed.ID})
	require.NoError(t, err)
	assert.Len(t, remaining, 2)
}

func TestDeleteFeedCascadesToArticles(t *testing.T) {
	db := newTestDB(t)
	feed := createTestFeed(t, db)
	feeds := NewFeedRepository(db)
	repo := NewArticleRepository(db)
	ctx := context.Background()

	mustUpsert(t, repo, &Article{FeedID: feed.ID, GUID: "g"})

	removed, err := feeds.DeleteFeed(ctx, feed.ID)
	require.NoError(t, err)
	assert.True(t, removed)

	articles, err := repo.ListArticles(ctx, ArticleListOptions{FeedID: feed.ID})
	require.NoError(t, err)
	assert.Empty(t, articles)

	removed, err = feeds.DeleteFeed(ctx, feed.ID)
	require.NoError(t, err)
	assert.False(t, removed, "second delete removes nothing")
}

func TestSearchArticlesMatchesTitleAndContent(t *testing.T) {
	db := newTestDB(t)
	feed := createTestFeed(t, db)
	repo := NewArticleRepository(db)
	ctx := context.Background()

	mustUpsert(t, repo, &Article{
		FeedID: feed.ID, GUID: "a", Title: "Go Generics Deep Dive"})
	mustUpsert(t, repo, &Article{
		FeedID: feed.ID, GUID: "b", Title: "Weekly", PlainContent: "nothing about generics here, wait"})
	mustUpsert(t, repo, &Article{
		FeedID: feed.ID, GUID: "c", Title: "Rust news"})

	results, err := repo.SearchArticles(ctx, "GENERICS", "", 0)
	require.NoError(t, err)
	assert.Len(t, results, 2)

	results, err = repo.SearchArticles(ctx, "rust", feed.ID, 0)
	require.NoError(t, err)
	assert.Len(t, results, 1)
}
