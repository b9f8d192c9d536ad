package embeddings

import "context"

// Embedder maps a batch of texts to one vector per text, in order.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Backend is an Embedder that can describe itself for status reporting.
type Backend interface {
	Embedder
	Name() string
	Model() string
	Healthy(ctx context.Context) bool
}

// embedRequest is the request body for Ollama's /api/embed endpoint.
type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

// embedResponse is the response from Ollama's /api/embed endpoint.
type embedResponse struct {
	Model      string      `json:"model"`
	Embeddings [][]float32 `json:"embeddings"`
}
