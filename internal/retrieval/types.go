package retrieval

import (
	"context"

	"github.com/aryannaik/tubechat/internal/transcript"
)

// Embedder maps a batch of texts to one vector per text, in order.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// EmbedFunc adapts a plain function to Embedder.
type EmbedFunc func(ctx context.Context, texts []string) ([][]float32, error)

func (f EmbedFunc) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	return f(ctx, texts)
}

// VideoContext is the embedded index for one video. It is never mutated after
// BuildIndex returns; accessors hand out copies.
type VideoContext struct {
	windows    []transcript.Window
	embeddings [][]float32
	transcript []transcript.Entry
}

// Len returns the number of indexed windows.
func (vc *VideoContext) Len() int {
	if vc == nil {
		return 0
	}
	return len(vc.windows)
}

// Windows returns the indexed windows in transcript order.
func (vc *VideoContext) Windows() []transcript.Window {
	if vc == nil {
		return nil
	}
	return append([]transcript.Window(nil), vc.windows...)
}

// Transcript returns the raw entries the index was built from.
func (vc *VideoContext) Transcript() []transcript.Entry {
	if vc == nil {
		return nil
	}
	return append([]transcript.Entry(nil), vc.transcript...)
}

// Dimension returns the vector size, or 0 for an empty context.
func (vc *VideoContext) Dimension() int {
	if vc.Len() == 0 {
		return 0
	}
	return len(vc.embeddings[0])
}

// Match is a scored window.
type Match struct {
	Window     transcript.Window `json:"window"`
	Index      int               `json:"index"`
	Confidence float32           `json:"confidence"`
}
