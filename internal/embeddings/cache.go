package embeddings

import (
	"context"
	"fmt"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Cached remembers vectors per exact text in a bounded LRU so repeated
// questions and re-fetched videos skip the backend.
type Cached struct {
	Backend
	cache  *lru.Cache[string, []float32]
	hits   atomic.Int64
	misses atomic.Int64
}

func NewCached(next Backend, size int) (*Cached, error) {
	cache, err := lru.New[string, []float32](size)
	if err != nil {
		return nil, fmt.Errorf("create embedding cache: %w", err)
	}
	return &Cached{Backend: next, cache: cache}, nil
}

// Embed serves cached texts from memory and sends the rest to the backend in
// a single batch.
func (c *Cached) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	var (
		missTexts []string
		missIdx   []int
	)
	for i, t := range texts {
		if v, ok := c.cache.Get(t); ok {
			out[i] = v
			continue
		}
		missTexts = append(missTexts, t)
		missIdx = append(missIdx, i)
	}
	c.hits.Add(int64(len(texts) - len(missTexts)))
	c.misses.Add(int64(len(missTexts)))

	if len(missTexts) == 0 {
		return out, nil
	}

	vecs, err := c.Backend.Embed(ctx, missTexts)
	if err != nil {
		return nil, err
	}
	if len(vecs) != len(missTexts) {
		return nil, fmt.Errorf("backend returned %d embeddings for %d inputs", len(vecs), len(missTexts))
	}
	for j, v := range vecs {
		out[missIdx[j]] = v
		c.cache.Add(missTexts[j], v)
	}
	return out, nil
}

// Stats returns cache hit and miss counters.
func (c *Cached) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}
