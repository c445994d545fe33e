package feed

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSeedsFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "feeds.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadSeeds(t *testing.T) {
	path := writeSeedsFile(t, `
feeds:
  - url: https://example.com/feed.xml
    name: Example
  - url: blog.example.org/rss
  - name: missing url, skipped
`)

	seeds, err := LoadSeeds(path)
	require.NoError(t, err)
	require.Len(t, seeds, 2)
	assert.Equal(t, "Example", seeds[0].Name)
	assert.Equal(t, "blog.example.org/rss", seeds[1].URL)
}

func TestLoadSeedsRejectsBadYAML(t *testing.T) {
	path := writeSeedsFile(t, "feeds: [not closed")
	_, err := LoadSeeds(path)
	assert.Error(t, err)
}

func TestImportSeedsSkipsExistingSubscriptions(t *testing.T) {
	_, feeds, articles := newFeedTestDB(t)
	_, err := feeds.CreateFeed(context.Background(), "https://existing.example/feed", "Existing")
	require.NoError(t, err)

	source := &fakeSource{results: map[string]*Result{}}
	r := NewRefresher(feeds, articles, source, nil, nil, RefresherOptions{})

	err = ImportSeeds(context.Background(), feeds, r, []Seed{
		{URL: "existing.example/feed", Name: "Existing"},
		{URL: "new.example/feed", Name: "New"},
	})
	require.NoError(t, err)

	all, err := feeds.ListFeeds(context.Background())
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, []string{"https://new.example/feed"}, source.fetched,
		"only the new subscription is fetched")
}
