package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"newsd/app/ai"
	"newsd/app/database"
)

const (
	// How many top tag interests the batch filter path matches against.
	topInterestTags = 10
	// How many candidates one filtering pass will consider.
	filterQueueLimit = 200

	// Blend used by the on-demand single-article path.
	profileScoreWeight = 0.4
	aiScoreWeight      = 0.6
)

// InterestSource yields the user's current top tag interests. The
// preference analyzer is the production implementation.
type InterestSource interface {
	TopTags(ctx context.Context, window database.TimeWindow, limit int) ([]string, error)
}

// Filter scores unread articles against the user's interests and
// soft-filters the ones below the threshold by marking them read. Nothing
// is ever deleted by filtering.
type Filter struct {
	articles  database.ArticleRepository
	interests InterestSource
	provider  ai.Provider
	batcher   *Batcher
	threshold float64
	minLength int
}

func NewFilter(articles database.ArticleRepository, interests InterestSource,
	provider ai.Provider, threshold float64, minLength int) *Filter {
	if minLength <= 0 {
		minLength = provider.MinContentLength()
	}
	return &Filter{
		articles:  articles,
		interests: interests,
		provider:  provider,
		batcher:   NewBatcher(provider.BatchCharLimit()),
		threshold: clamp01(threshold),
		minLength: minLength,
	}
}

// Run scores the current filter candidates (freshly summarized articles
// plus those too short to need a summary) and returns (scored, filtered).
func (f *Filter) Run(ctx context.Context) (int, int, error) {
	candidates, err := f.articles.ListFilterCandidates(ctx, f.minLength, filterQueueLimit)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to list filter candidates: %w", err)
	}
	if len(candidates) == 0 {
		return 0, 0, nil
	}

	interests, err := f.interests.TopTags(ctx, database.Window30Day, topInterestTags)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to load interests: %w", err)
	}

	byID := make(map[string]database.Article, len(candidates))
	queue := make([]ai.BatchInput, 0, len(candidates))
	for _, a := range candidates {
		byID[a.ID] = a
		queue = append(queue, ai.BatchInput{ID: a.ID, Text: f.scoringText(a)})
	}

	scored, filtered := 0, 0
	for _, batch := range f.batcher.Pack(queue) {
		if err := ctx.Err(); err != nil {
			return scored, filtered, err
		}

		scores, err := f.provider.BatchScoreRelevance(ctx, batch, interests)
		if err != nil {
			slog.Error("Batch relevance scoring failed, skipping batch",
				"size", len(batch), "error", err)
			continue
		}

		for id, score := range scores {
			if _, ok := byID[id]; !ok {
				continue
			}
			wasFiltered, err := f.apply(ctx, id, score)
			if err != nil {
				slog.Error("Failed to apply relevance score", "article", id, "error", err)
				continue
			}
			scored++
			if wasFiltered {
				filtered++
			}
		}
	}

	return scored, filtered, nil
}

// FilterOne is the on-demand single-article path: a 40/60 blend of
// profile tag overlap and AI score, applied outside the batch pipeline.
// It reports whether the article was soft-filtered.
func (f *Filter) FilterOne(ctx context.Context, a *database.Article) (bool, error) {
	interests, err := f.interests.TopTags(ctx, database.Window30Day, topInterestTags)
	if err != nil {
		return false, fmt.Errorf("failed to load interests: %w", err)
	}

	aiScore, err := f.provider.ScoreRelevance(ctx, f.scoringText(*a), interests)
	if err != nil {
		return false, fmt.Errorf("failed to score article: %w", err)
	}

	score := profileScoreWeight*profileScore(a.Tags, interests) + aiScoreWeight*aiScore
	return f.apply(ctx, a.ID, score)
}

// apply persists the score unconditionally (observability) and marks the
// article read when it falls below the threshold. A score exactly at the
// threshold passes.
func (f *Filter) apply(ctx context.Context, id string, score float64) (bool, error) {
	score = clamp01(score)
	if err := f.articles.SetRelevanceScore(ctx, id, score); err != nil {
		return false, err
	}
	if score >= f.threshold {
		return false, nil
	}
	if err := f.articles.SetRead(ctx, id, true); err != nil {
		return false, err
	}
	return true, nil
}

// scoringText prefers the summary when one exists: it is shorter and
// denser than the raw body.
func (f *Filter) scoringText(a database.Article) string {
	if a.Summary != nil && *a.Summary != "" {
		return a.Title + "\n" + *a.Summary
	}
	return a.Title + "\n" + a.PlainContent
}

// profileScore is the tag-overlap share; 1.0 passes everything through
// when there is no profile or no tags to match yet.
func profileScore(tags, interests []string) float64 {
	if len(interests) == 0 || len(tags) == 0 {
		return 1.0
	}
	interested := make(map[string]struct{}, len(interests))
	for _, tag := range interests {
		interested[tag] = struct{}{}
	}
	matched := 0
	for _, tag := range tags {
		if _, ok := interested[tag]; ok {
			matched++
		}
	}
	return float64(matched) / float64(len(tags))
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
