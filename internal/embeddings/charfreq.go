package embeddings

import (
	"context"
	"math"
	"unicode"
)

const charFreqDim = 36

// CharFreq is a deterministic offline embedder: letter and digit counts,
// L2-normalized. Good enough for tests and running without a model.
type CharFreq struct{}

func (CharFreq) Name() string                 { return "charfreq" }
func (CharFreq) Model() string                { return "charfreq-36" }
func (CharFreq) Healthy(context.Context) bool { return true }

func (CharFreq) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = charFreq(t)
	}
	return out, nil
}

func charFreq(text string) []float32 {
	counts := make([]float64, charFreqDim)
	for _, r := range text {
		r = unicode.ToLower(r)
		switch {
		case r >= 'a' && r <= 'z':
			counts[r-'a']++
		case r >= '0' && r <= '9':
			counts[26+r-'0']++
		}
	}

	var norm float64
	for _, c := range counts {
		norm += c * c
	}
	norm = math.Sqrt(norm)

	vec := make([]float32, charFreqDim)
	if norm == 0 {
		return vec
	}
	for i, c := range counts {
		vec[i] = float32(c / norm)
	}
	return vec
}
