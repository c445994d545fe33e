package ai

import (
	"context"
	"fmt"

	cohere "github.com/cohere-ai/cohere-go/v2"
	cohereclient "github.com/cohere-ai/cohere-go/v2/client"
)

const (
	defaultCohereModel = "command-r-08-2024"

	cohereBatchCharLimit   = 60000
	cohereMinContentLength = 280
)

var _ Provider = (*Cohere)(nil)

// Cohere implements the provider interface on the hosted Cohere chat API.
type Cohere struct {
	textProvider
	client *cohereclient.Client
	model  string
}

// NewCohere creates the Cohere backend.
func NewCohere(apiKey, model string) *Cohere {
	if model == "" {
		model = defaultCohereModel
	}

	c := &Cohere{
		client: cohereclient.NewClient(cohereclient.WithToken(apiKey)),
		model:  model,
	}
	c.textProvider = textProvider{
		name:             "cohere",
		gen:              c,
		batchCharLimit:   cohereBatchCharLimit,
		minContentLength: cohereMinContentLength,
	}
	return c
}

func (c *Cohere) generate(ctx context.Context, prompt string, jsonOutput bool) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	temperature := 0.2
	resp, err := c.client.Chat(ctx, &cohere.ChatRequest{
		Message:     prompt,
		Model:       &c.model,
		Temperature: &temperature,
	})
	if err != nil {
		return "", fmt.Errorf("cohere request failed: %w", err)
	}
	if resp == nil {
		return "", fmt.Errorf("cohere returned an empty response")
	}

	return resp.Text, nil
}
