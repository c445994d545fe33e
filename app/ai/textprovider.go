package ai

import (
	"context"
	"strings"
)

// textProvider implements the full capability surface on top of a
// backend's single generate primitive.
type textProvider struct {
	name             string
	gen              generator
	batchCharLimit   int
	minContentLength int
}

func (p *textProvider) Name() string {
	return p.name
}

func (p *textProvider) BatchCharLimit() int {
	return p.batchCharLimit
}

func (p *textProvider) MinContentLength() int {
	return p.minContentLength
}

func (p *textProvider) Summarize(ctx context.Context, content string) (string, error) {
	raw, err := p.gen.generate(ctx, summaryPrompt(content), false)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(raw), nil
}

func (p *textProvider) ExtractTags(ctx context.Context, content string) ([]string, error) {
	raw, err := p.gen.generate(ctx, tagsPrompt(content), true)
	if err != nil {
		return nil, err
	}
	return parseTags(raw)
}

func (p *textProvider) ScoreRelevance(ctx context.Context, content string, interests []string) (float64, error) {
	if len(interests) == 0 {
		return 1.0, nil
	}
	raw, err := p.gen.generate(ctx, scorePrompt(content, interests), true)
	if err != nil {
		return 0, err
	}
	return parseScore(raw)
}

func (p *textProvider) BatchSummarize(ctx context.Context, items []BatchInput) (map[string]string, error) {
	if len(items) == 0 {
		return map[string]string{}, nil
	}
	raw, err := p.gen.generate(ctx, batchSummaryPrompt(items), true)
	if err != nil {
		return nil, err
	}
	return parseBatchSummaries(raw)
}

func (p *textProvider) BatchScoreRelevance(ctx context.Context, items []BatchInput, interests []string) (map[string]float64, error) {
	if len(items) == 0 {
		return map[string]float64{}, nil
	}
	if len(interests) == 0 {
		scores := make(map[string]float64, len(items))
		for _, item := range items {
			scores[item.ID] = 1.0
		}
		return scores, nil
	}
	raw, err := p.gen.generate(ctx, batchScorePrompt(items, interests), true)
	if err != nil {
		return nil, err
	}
	return parseBatchScores(raw)
}

func (p *textProvider) ClassifyStyle(ctx context.Context, content string) (StyleResult, error) {
	raw, err := p.gen.generate(ctx, classifyPrompt(content), true)
	if err != nil {
		return StyleResult{}, err
	}
	return parseStyle(raw)
}
