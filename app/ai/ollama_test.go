package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newOllamaTestServer(t *testing.T, respond func(req ollamaGenerateRequest) string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/generate", r.URL.Path)

		var req ollamaGenerateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.False(t, req.Stream)

		json.NewEncoder(w).Encode(ollamaGenerateResponse{Response: respond(req)})
	}))
	t.Cleanup(server.Close)
	return server
}

func TestOllamaSummarize(t *testing.T) {
	server := newOllamaTestServer(t, func(req ollamaGenerateRequest) string {
		assert.Empty(t, req.Format, "plain-text summaries must not force JSON output")
		return "  A short summary.\n"
	})

	provider := NewOllama(server.URL, "test-model")
	summary, err := provider.Summarize(context.Background(), "long article body")
	require.NoError(t, err)
	assert.Equal(t, "A short summary.", summary)
}

func TestOllamaBatchSummarizeKeyedByID(t *testing.T) {
	server := newOllamaTestServer(t, func(req ollamaGenerateRequest) string {
		assert.Equal(t, "json", req.Format)
		return `{"id-2": "second", "id-1": "first"}`
	})

	provider := NewOllama(server.URL, "test-model")
	summaries, err := provider.BatchSummarize(context.Background(), []BatchInput{
		{ID: "id-1", Text: "one"},
		{ID: "id-2", Text: "two"},
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"id-1": "first", "id-2": "second"}, summaries)
}

func TestOllamaScoreRelevanceClampsAndParses(t *testing.T) {
	server := newOllamaTestServer(t, func(req ollamaGenerateRequest) string {
		return `{"score": 1.7}`
	})

	provider := NewOllama(server.URL, "test-model")
	score, err := provider.ScoreRelevance(context.Background(), "body", []string{"go"})
	require.NoError(t, err)
	assert.Equal(t, 1.0, score)
}

func TestScoreRelevancePassThroughWithoutInterests(t *testing.T) {
	// No server: an empty interest list must not reach the backend at all.
	provider := NewOllama("http://127.0.0.1:1", "test-model")

	score, err := provider.ScoreRelevance(context.Background(), "body", nil)
	require.NoError(t, err)
	assert.Equal(t, 1.0, score)

	scores, err := provider.BatchScoreRelevance(context.Background(),
		[]BatchInput{{ID: "a", Text: "x"}, {ID: "b", Text: "y"}}, nil)
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"a": 1.0, "b": 1.0}, scores)
}

func TestOllamaAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	t.Cleanup(server.Close)

	provider := NewOllama(server.URL, "missing")
	_, err := provider.Summarize(context.Background(), "body")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 404")
}

func TestParseStyleNormalizesVocabulary(t *testing.T) {
	style, err := parseStyle("```json\n{\"style\": \"Tutorial\", \"tone\": \"TECHNICAL\", \"length\": \"epic\"}\n```")
	require.NoError(t, err)
	assert.Equal(t, "tutorial", style.StyleType)
	assert.Equal(t, "technical", style.Tone)
	assert.Equal(t, "short", style.LengthBucket, "off-vocabulary answers fall back to the first entry")
}

func TestParseScoreBareNumber(t *testing.T) {
	score, err := parseScore("0.42")
	require.NoError(t, err)
	assert.Equal(t, 0.42, score)

	_, err = parseScore("no idea")
	require.Error(t, err)
}

func TestParseTagsNormalizes(t *testing.T) {
	tags, err := parseTags(`["Go", " distributed-systems ", ""]`)
	require.NoError(t, err)
	assert.Equal(t, []string{"go", "distributed-systems"}, tags)
}
