package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const (
	defaultOllamaHost  = "http://localhost:11434"
	defaultOllamaModel = "llama3.2"

	// Local models choke on oversized prompts well before any API limit.
	ollamaBatchCharLimit   = 12000
	ollamaMinContentLength = 280
)

var _ Provider = (*Ollama)(nil)

// Ollama talks to a local Ollama server over its HTTP generate API.
type Ollama struct {
	textProvider
	host   string
	model  string
	client *http.Client
}

// NewOllama creates the Ollama backend. Empty host/model fall back to the
// local defaults.
func NewOllama(host, model string) *Ollama {
	if host == "" {
		host = defaultOllamaHost
	}
	if model == "" {
		model = defaultOllamaModel
	}

	o := &Ollama{
		host:   strings.TrimSuffix(host, "/"),
		model:  model,
		client: &http.Client{},
	}
	o.textProvider = textProvider{
		name:             "ollama",
		gen:              o,
		batchCharLimit:   ollamaBatchCharLimit,
		minContentLength: ollamaMinContentLength,
	}
	return o
}

type ollamaGenerateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
	Format string `json:"format,omitempty"`
}

type ollamaGenerateResponse struct {
	Response string `json:"response"`
}

func (o *Ollama) generate(ctx context.Context, prompt string, jsonOutput bool) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	reqBody := ollamaGenerateRequest{
		Model:  o.model,
		Prompt: prompt,
		Stream: false,
	}
	if jsonOutput {
		reqBody.Format = "json"
	}

	data, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		o.host+"/api/generate", bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("ollama request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("ollama API error (status %d): %s", resp.StatusCode, string(body))
	}

	var genResp ollamaGenerateResponse
	if err := json.NewDecoder(resp.Body).Decode(&genResp); err != nil {
		return "", fmt.Errorf("failed to decode ollama response: %w", err)
	}

	return genResp.Response, nil
}
