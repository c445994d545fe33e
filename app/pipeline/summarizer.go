package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"newsd/app/ai"
	"newsd/app/database"
)

// How many pending articles one summarization pass will consider.
const summarizeQueueLimit = 200

// Summarizer drives the batch summarization stage. Between batches the
// pending set is re-validated against storage so articles the user
// dismissed while a batch was in flight are dropped instead of wasting
// provider budget.
type Summarizer struct {
	articles  database.ArticleRepository
	provider  ai.Provider
	batcher   *Batcher
	minLength int
}

func NewSummarizer(articles database.ArticleRepository, provider ai.Provider, minLength int) *Summarizer {
	if minLength <= 0 {
		minLength = provider.MinContentLength()
	}
	return &Summarizer{
		articles:  articles,
		provider:  provider,
		batcher:   NewBatcher(provider.BatchCharLimit()),
		minLength: minLength,
	}
}

// Run summarizes every pending article and returns how many summaries
// were stored. Provider failures skip the affected batch; the loop keeps
// going with the rest.
func (s *Summarizer) Run(ctx context.Context) (int, error) {
	pending, err := s.articles.ListNeedingSummary(ctx, s.minLength, summarizeQueueLimit)
	if err != nil {
		return 0, fmt.Errorf("failed to list articles needing summary: %w", err)
	}
	if len(pending) == 0 {
		return 0, nil
	}

	byID := make(map[string]database.Article, len(pending))
	queue := make([]ai.BatchInput, 0, len(pending))
	for _, a := range pending {
		byID[a.ID] = a
		queue = append(queue, ai.BatchInput{ID: a.ID, Text: a.PlainContent})
	}

	summarized := 0
	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return summarized, err
		}

		// Re-validate membership before building each batch: anything no
		// longer unread was dismissed mid-flight and must not be sent.
		queue, err = s.pruneStale(ctx, queue)
		if err != nil {
			return summarized, err
		}
		if len(queue) == 0 {
			break
		}

		var batch []ai.BatchInput
		batch, queue = s.batcher.Next(queue)

		summaries, err := s.provider.BatchSummarize(ctx, batch)
		if err != nil {
			slog.Error("Batch summarization failed, skipping batch",
				"size", len(batch), "error", err)
			continue
		}

		for id, summary := range summaries {
			article, ok := byID[id]
			if !ok || summary == "" {
				continue
			}
			if err := s.articles.SetSummary(ctx, id, summary); err != nil {
				slog.Error("Failed to store summary", "article", id, "error", err)
				continue
			}
			summarized++

			if len(article.Tags) == 0 {
				s.fillTags(ctx, article)
			}
		}
	}

	return summarized, nil
}

func (s *Summarizer) pruneStale(ctx context.Context, queue []ai.BatchInput) ([]ai.BatchInput, error) {
	ids := make([]string, len(queue))
	for i, item := range queue {
		ids[i] = item.ID
	}

	alive, err := s.articles.FilterUnreadIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to re-validate pending articles: %w", err)
	}

	aliveSet := make(map[string]struct{}, len(alive))
	for _, id := range alive {
		aliveSet[id] = struct{}{}
	}

	pruned := queue[:0]
	for _, item := range queue {
		if _, ok := aliveSet[item.ID]; ok {
			pruned = append(pruned, item)
		}
	}
	return pruned, nil
}

// fillTags backfills tags for feeds that publish no categories. Failures
// are logged and skipped; tags are an enrichment, not a requirement.
func (s *Summarizer) fillTags(ctx context.Context, article database.Article) {
	tags, err := s.provider.ExtractTags(ctx, article.PlainContent)
	if err != nil {
		slog.Warn("Tag extraction failed", "article", article.ID, "error", err)
		return
	}
	if len(tags) == 0 {
		return
	}
	if err := s.articles.SetTags(ctx, article.ID, tags); err != nil {
		slog.Warn("Failed to store tags", "article", article.ID, "error", err)
	}
}
