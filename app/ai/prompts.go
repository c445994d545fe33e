package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// generator is the single backend-specific primitive: run one prompt,
// return the raw completion. jsonOutput hints backends that can force
// structured output (Ollama's format parameter).
type generator interface {
	generate(ctx context.Context, prompt string, jsonOutput bool) (string, error)
}

func summaryPrompt(content string) string {
	return "Summarize the following article in two to three plain sentences. " +
		"Respond with the summary only, no preamble.\n\n" + content
}

func tagsPrompt(content string) string {
	return "Extract three to six topical tags for the following article. " +
		"Respond with a JSON array of lowercase single-word or hyphenated tags " +
		"and nothing else.\n\n" + content
}

func scorePrompt(content string, interests []string) string {
	return fmt.Sprintf("The reader is interested in: %s.\n"+
		"Rate how relevant the following article is to those interests "+
		"on a scale from 0.0 to 1.0. Respond with JSON of the form "+
		"{\"score\": 0.0} and nothing else.\n\n%s",
		strings.Join(interests, ", "), content)
}

func classifyPrompt(content string) string {
	return fmt.Sprintf("Classify the following article. Respond with JSON of the form "+
		"{\"style\": ..., \"tone\": ..., \"length\": ...} and nothing else, where "+
		"style is one of %s, tone is one of %s and length is one of %s.\n\n%s",
		strings.Join(StyleTypes, "|"), strings.Join(Tones, "|"),
		strings.Join(LengthBuckets, "|"), content)
}

func batchSummaryPrompt(items []BatchInput) string {
	var b strings.Builder
	b.WriteString("Summarize each of the following articles in two to three plain sentences. ")
	b.WriteString("Respond with a single JSON object mapping each article id to its summary ")
	b.WriteString("and nothing else.\n")
	for _, item := range items {
		fmt.Fprintf(&b, "\n=== article %s ===\n%s\n", item.ID, item.Text)
	}
	return b.String()
}

func batchScorePrompt(items []BatchInput, interests []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "The reader is interested in: %s.\n", strings.Join(interests, ", "))
	b.WriteString("Rate how relevant each of the following articles is to those interests ")
	b.WriteString("on a scale from 0.0 to 1.0. Respond with a single JSON object mapping ")
	b.WriteString("each article id to its score and nothing else.\n")
	for _, item := range items {
		fmt.Fprintf(&b, "\n=== article %s ===\n%s\n", item.ID, item.Text)
	}
	return b.String()
}

// stripCodeFence removes a ```json ... ``` wrapper some models insist on.
func stripCodeFence(raw string) string {
	raw = strings.TrimSpace(raw)
	if !strings.HasPrefix(raw, "```") {
		return raw
	}
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(strings.TrimSpace(raw), "```")
	return strings.TrimSpace(raw)
}

func parseTags(raw string) ([]string, error) {
	var tags []string
	if err := json.Unmarshal([]byte(stripCodeFence(raw)), &tags); err != nil {
		return nil, fmt.Errorf("malformed tags response: %w", err)
	}
	normalized := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.ToLower(strings.TrimSpace(tag))
		if tag != "" {
			normalized = append(normalized, tag)
		}
	}
	return normalized, nil
}

func parseScore(raw string) (float64, error) {
	cleaned := stripCodeFence(raw)

	var wrapper struct {
		Score float64 `json:"score"`
	}
	if err := json.Unmarshal([]byte(cleaned), &wrapper); err == nil {
		return clampScore(wrapper.Score), nil
	}

	// Some models answer with the bare number.
	if v, err := strconv.ParseFloat(strings.TrimSpace(cleaned), 64); err == nil {
		return clampScore(v), nil
	}
	return 0, fmt.Errorf("malformed score response: %q", raw)
}

func parseBatchSummaries(raw string) (map[string]string, error) {
	var result map[string]string
	if err := json.Unmarshal([]byte(stripCodeFence(raw)), &result); err != nil {
		return nil, fmt.Errorf("malformed batch summary response: %w", err)
	}
	return result, nil
}

func parseBatchScores(raw string) (map[string]float64, error) {
	var result map[string]float64
	if err := json.Unmarshal([]byte(stripCodeFence(raw)), &result); err != nil {
		return nil, fmt.Errorf("malformed batch score response: %w", err)
	}
	for id, score := range result {
		result[id] = clampScore(score)
	}
	return result, nil
}

func parseStyle(raw string) (StyleResult, error) {
	var wrapper struct {
		Style  string `json:"style"`
		Tone   string `json:"tone"`
		Length string `json:"length"`
	}
	if err := json.Unmarshal([]byte(stripCodeFence(raw)), &wrapper); err != nil {
		return StyleResult{}, fmt.Errorf("malformed style response: %w", err)
	}
	return StyleResult{
		StyleType:    pickVocab(wrapper.Style, StyleTypes),
		Tone:         pickVocab(wrapper.Tone, Tones),
		LengthBucket: pickVocab(wrapper.Length, LengthBuckets),
	}, nil
}

// pickVocab normalizes a model answer onto the fixed vocabulary, falling
// back to the first entry when the answer is off-vocabulary.
func pickVocab(answer string, vocab []string) string {
	answer = strings.ToLower(strings.TrimSpace(answer))
	for _, v := range vocab {
		if answer == v {
			return v
		}
	}
	return vocab[0]
}

func clampScore(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
