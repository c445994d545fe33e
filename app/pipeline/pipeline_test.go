package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"newsd/app/ai"
	"newsd/app/database"
)

// fakeProvider lets each test stub out just the capabilities it needs.
type fakeProvider struct {
	charLimit      int
	minContent     int
	summarizeFn    func(ctx context.Context, content string) (string, error)
	tagsFn         func(ctx context.Context, content string) ([]string, error)
	scoreFn        func(ctx context.Context, content string, interests []string) (float64, error)
	batchSummarize func(ctx context.Context, items []ai.BatchInput) (map[string]string, error)
	batchScore     func(ctx context.Context, items []ai.BatchInput, interests []string) (map[string]float64, error)
	classifyFn     func(ctx context.Context, content string) (ai.StyleResult, error)
}

var _ ai.Provider = (*fakeProvider)(nil)

func (p *fakeProvider) Name() string { return "fake" }

func (p *fakeProvider) BatchCharLimit() int {
	if p.charLimit > 0 {
		return p.charLimit
	}
	return 10000
}

func (p *fakeProvider) MinContentLength() int {
	if p.minContent > 0 {
		return p.minContent
	}
	return 10
}

func (p *fakeProvider) Summarize(ctx context.Context, content string) (string, error) {
	if p.summarizeFn != nil {
		return p.summarizeFn(ctx, content)
	}
	return "summary", nil
}

func (p *fakeProvider) ExtractTags(ctx context.Context, content string) ([]string, error) {
	if p.tagsFn != nil {
		return p.tagsFn(ctx, content)
	}
	return nil, nil
}

func (p *fakeProvider) ScoreRelevance(ctx context.Context, content string, interests []string) (float64, error) {
	if len(interests) == 0 {
		return 1.0, nil
	}
	if p.scoreFn != nil {
		return p.scoreFn(ctx, content, interests)
	}
	return 1.0, nil
}

func (p *fakeProvider) BatchSummarize(ctx context.Context, items []ai.BatchInput) (map[string]string, error) {
	if p.batchSummarize != nil {
		return p.batchSummarize(ctx, items)
	}
	result := make(map[string]string, len(items))
	for _, item := range items {
		result[item.ID] = "summary of " + item.ID
	}
	return result, nil
}

func (p *fakeProvider) BatchScoreRelevance(ctx context.Context, items []ai.BatchInput, interests []string) (map[string]float64, error) {
	if len(interests) == 0 {
		result := make(map[string]float64, len(items))
		for _, item := range items {
			result[item.ID] = 1.0
		}
		return result, nil
	}
	if p.batchScore != nil {
		return p.batchScore(ctx, items, interests)
	}
	result := make(map[string]float64, len(items))
	for _, item := range items {
		result[item.ID] = 1.0
	}
	return result, nil
}

func (p *fakeProvider) ClassifyStyle(ctx context.Context, content string) (ai.StyleResult, error) {
	if p.classifyFn != nil {
		return p.classifyFn(ctx, content)
	}
	return ai.StyleResult{StyleType: "news", Tone: "neutral", LengthBucket: "short"}, nil
}

// staticInterests is a fixed-interest InterestSource.
type staticInterests []string

func (s staticInterests) TopTags(ctx context.Context, w database.TimeWindow, limit int) ([]string, error) {
	return s, nil
}

type pipelineEnv struct {
	feeds    database.FeedRepository
	articles database.ArticleRepository
	styles   database.StyleRepository
	feedID   string
}

func newPipelineEnv(t *testing.T) *pipelineEnv {
	t.Helper()
	db, err := database.NewConnection(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	_, _, err = database.RunMigrations(db)
	require.NoError(t, err)

	env := &pipelineEnv{
		feeds:    database.NewFeedRepository(db),
		articles: database.NewArticleRepository(db),
		styles:   database.NewStyleRepository(db),
	}
	feed, err := env.feeds.CreateFeed(context.Background(), "https://example.com/feed", "Example")
	require.NoError(t, err)
	env.feedID = feed.ID
	return env
}

func (env *pipelineEnv) addArticle(t *testing.T, guid, content string) *database.Article {
	t.Helper()
	a := &database.Article{
		FeedID:       env.feedID,
		GUID:         guid,
		Title:        guid,
		PlainContent: content,
	}
	_, err := env.articles.UpsertArticle(context.Background(), a)
	require.NoError(t, err)
	return a
}
