package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// ErrEmptyResponse is returned when the model produces no text.
var ErrEmptyResponse = errors.New("gemini returned no text")

// Client is a thin wrapper over one Gemini generative model.
type Client struct {
	client *genai.Client
	model  *genai.GenerativeModel
	name   string
}

func NewClient(ctx context.Context, apiKey, model string) (*Client, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &Client{
		client: client,
		model:  client.GenerativeModel(model),
		name:   model,
	}, nil
}

func (c *Client) Model() string { return c.name }

// Generate sends a single text prompt and joins the text parts of every
// returned candidate.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := c.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}

	var b strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if text, ok := part.(genai.Text); ok {
				b.WriteString(string(text))
			}
		}
	}
	if b.Len() == 0 {
		return "", ErrEmptyResponse
	}
	return b.String(), nil
}

func (c *Client) Close() error {
	return c.client.Close()
}
