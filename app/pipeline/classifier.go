package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"newsd/app/ai"
	"newsd/app/database"
)

// How many articles one classification pass will handle.
const classifyBatchLimit = 20

// Classifier assigns one style record (style type, tone, length bucket)
// to each summarized article.
type Classifier struct {
	articles database.ArticleRepository
	styles   database.StyleRepository
	provider ai.Provider
}

func NewClassifier(articles database.ArticleRepository, styles database.StyleRepository,
	provider ai.Provider) *Classifier {
	return &Classifier{
		articles: articles,
		styles:   styles,
		provider: provider,
	}
}

// Run classifies pending articles and returns how many style rows were
// stored. A failing article is logged and skipped; it stays eligible for
// the next pass.
func (c *Classifier) Run(ctx context.Context) (int, error) {
	pending, err := c.articles.ListUnclassified(ctx, classifyBatchLimit)
	if err != nil {
		return 0, fmt.Errorf("failed to list unclassified articles: %w", err)
	}

	classified := 0
	for _, article := range pending {
		if err := ctx.Err(); err != nil {
			return classified, err
		}

		result, err := c.provider.ClassifyStyle(ctx, c.classificationText(article))
		if err != nil {
			slog.Warn("Style classification failed, skipping article",
				"article", article.ID, "error", err)
			continue
		}

		style := &database.ArticleStyle{
			ArticleID:    article.ID,
			StyleType:    result.StyleType,
			Tone:         result.Tone,
			LengthBucket: result.LengthBucket,
		}
		if err := c.styles.UpsertStyle(ctx, style); err != nil {
			slog.Warn("Failed to store article style",
				"article", article.ID, "error", err)
			continue
		}
		classified++
	}

	return classified, nil
}

func (c *Classifier) classificationText(a database.Article) string {
	if a.Summary != nil && *a.Summary != "" {
		return a.Title + "\n" + *a.Summary
	}
	return a.Title + "\n" + a.PlainContent
}
