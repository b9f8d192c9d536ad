package retrieval

import (
	"context"
	"fmt"
	"sort"

	"github.com/aryannaik/tubechat/internal/transcript"
)

// BuildIndex embeds every window in a single embedder call and pairs each
// vector with its window. On any error nothing is returned, so a caller that
// only stores successful results keeps its previous index.
func BuildIndex(ctx context.Context, entries []transcript.Entry, windows []transcript.Window, embedder Embedder) (*VideoContext, error) {
	vc := &VideoContext{
		windows:    append([]transcript.Window(nil), windows...),
		transcript: append([]transcript.Entry(nil), entries...),
	}
	if len(windows) == 0 {
		return vc, nil
	}

	texts := make([]string, len(windows))
	for i, w := range windows {
		texts[i] = w.Text
	}

	vecs, err := embedder.Embed(ctx, texts)
	if err != nil {
		return nil, &EmbeddingError{Op: "windows", Err: err}
	}
	if len(vecs) != len(texts) {
		return nil, &EmbeddingError{
			Op:  "windows",
			Err: fmt.Errorf("got %d vectors for %d windows: %w", len(vecs), len(texts), ErrLengthMismatch),
		}
	}

	dim := len(vecs[0])
	vc.embeddings = make([][]float32, len(vecs))
	for i, v := range vecs {
		if len(v) == 0 || len(v) != dim {
			return nil, &EmbeddingError{
				Op:  "windows",
				Err: fmt.Errorf("window %d has %d dimensions, want %d: %w", i, len(v), dim, ErrDimensionMismatch),
			}
		}
		vc.embeddings[i] = append([]float32(nil), v...)
	}

	return vc, nil
}

// Query embeds the question and returns the window with the highest dot
// product. Ties go to the earliest window.
func Query(ctx context.Context, vc *VideoContext, question string, embedder Embedder) (Match, error) {
	matches, err := Rank(ctx, vc, question, embedder, 1)
	if err != nil {
		return Match{}, err
	}
	return matches[0], nil
}

// Rank returns the k best windows for the question in descending score order.
// Equal scores keep transcript order. k <= 0 or k > Len returns every window.
func Rank(ctx context.Context, vc *VideoContext, question string, embedder Embedder, k int) ([]Match, error) {
	if vc.Len() == 0 {
		return nil, ErrEmptyIndex
	}

	vecs, err := embedder.Embed(ctx, []string{question})
	if err != nil {
		return nil, &EmbeddingError{Op: "query", Err: err}
	}
	if len(vecs) != 1 {
		return nil, &EmbeddingError{
			Op:  "query",
			Err: fmt.Errorf("got %d vectors for 1 query: %w", len(vecs), ErrLengthMismatch),
		}
	}
	qv := vecs[0]
	if len(qv) != vc.Dimension() {
		return nil, &EmbeddingError{
			Op:  "query",
			Err: fmt.Errorf("query has %d dimensions, index has %d: %w", len(qv), vc.Dimension(), ErrDimensionMismatch),
		}
	}

	matches := make([]Match, len(vc.windows))
	for i, w := range vc.windows {
		matches[i] = Match{
			Window:     w,
			Index:      i,
			Confidence: dot(qv, vc.embeddings[i]),
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Confidence > matches[j].Confidence
	})

	if k > 0 && k < len(matches) {
		matches = matches[:k]
	}
	return matches, nil
}

// dot assumes equal lengths. Vectors are expected to be normalized by the
// embedder, so this is cosine similarity for well-behaved models.
func dot(a, b []float32) float32 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return float32(sum)
}
