package ai

import (
	"context"
	"fmt"
	"time"
)

// requestTimeout bounds every outbound provider call so a hung backend
// cannot stall a pipeline stage indefinitely.
const requestTimeout = 30 * time.Second

// BatchInput is one article's worth of text addressed by its id. Batch
// results are keyed by the same id, never by position.
type BatchInput struct {
	ID   string
	Text string
}

// StyleResult is a per-article classification drawn from the fixed
// vocabularies below.
type StyleResult struct {
	StyleType    string
	Tone         string
	LengthBucket string
}

// Fixed classification vocabularies.
var (
	StyleTypes    = []string{"news", "analysis", "opinion", "tutorial", "interview", "review"}
	Tones         = []string{"neutral", "optimistic", "critical", "technical", "casual"}
	LengthBuckets = []string{"short", "medium", "long"}
)

// Provider is the capability interface every AI backend implements. The
// pipeline is written entirely against this interface; the concrete
// backend is selected once at daemon startup.
type Provider interface {
	Name() string
	Summarize(ctx context.Context, content string) (string, error)
	ExtractTags(ctx context.Context, content string) ([]string, error)
	// ScoreRelevance returns a [0,1] estimate of how well content matches
	// the interests. With no interests there is nothing to filter against
	// and the pass-through score 1.0 is returned without a backend call.
	ScoreRelevance(ctx context.Context, content string, interests []string) (float64, error)
	BatchSummarize(ctx context.Context, items []BatchInput) (map[string]string, error)
	BatchScoreRelevance(ctx context.Context, items []BatchInput, interests []string) (map[string]float64, error)
	ClassifyStyle(ctx context.Context, content string) (StyleResult, error)
	// BatchCharLimit is the provider's per-request character budget.
	BatchCharLimit() int
	// MinContentLength is the content size below which summarization is
	// not worthwhile for this backend.
	MinContentLength() int
}

// Options carries backend connection settings.
type Options struct {
	OllamaHost   string
	OllamaModel  string
	CohereAPIKey string
	CohereModel  string
}

// Select picks the configured backend by name.
func Select(name string, opts Options) (Provider, error) {
	switch name {
	case "ollama":
		return NewOllama(opts.OllamaHost, opts.OllamaModel), nil
	case "cohere":
		if opts.CohereAPIKey == "" {
			return nil, fmt.Errorf("cohere backend requires an API key")
		}
		return NewCohere(opts.CohereAPIKey, opts.CohereModel), nil
	}
	return nil, fmt.Errorf("unknown AI provider: %q", name)
}
