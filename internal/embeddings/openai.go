package embeddings

import (
	"context"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	oaioption "github.com/openai/openai-go/option"
)

// OpenAI embeds through any OpenAI-compatible /embeddings endpoint.
type OpenAI struct {
	client openai.Client
	model  string
}

func NewOpenAI(apiKey, baseURL, model string) *OpenAI {
	opts := []oaioption.RequestOption{oaioption.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, oaioption.WithBaseURL(strings.TrimRight(baseURL, "/")+"/"))
	}
	return &OpenAI{
		client: openai.NewClient(opts...),
		model:  model,
	}
}

func (o *OpenAI) Name() string  { return "openai" }
func (o *OpenAI) Model() string { return o.model }

// Embed sends all texts in one request and reorders the response by index.
func (o *OpenAI) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	resp, err := o.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
		Model: openai.EmbeddingModel(o.model),
	})
	if err != nil {
		return nil, fmt.Errorf("openai embed request: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("openai returned %d embeddings for %d inputs", len(resp.Data), len(texts))
	}

	out := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || int(d.Index) >= len(out) {
			return nil, fmt.Errorf("openai returned embedding index %d out of range", d.Index)
		}
		vec := make([]float32, len(d.Embedding))
		for i, f := range d.Embedding {
			vec[i] = float32(f)
		}
		out[d.Index] = vec
	}
	for i, v := range out {
		if v == nil {
			return nil, fmt.Errorf("openai returned no embedding for input %d", i)
		}
	}
	return out, nil
}

// Healthy reports whether the configured model can be retrieved.
func (o *OpenAI) Healthy(ctx context.Context) bool {
	_, err := o.client.Models.Get(ctx, o.model)
	return err == nil
}
