package gemini

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aryannaik/tubechat/internal/transcript"
)

// DefaultPrompt is used when the caller does not supply one.
const DefaultPrompt = "Summarize the following YouTube video transcript in a few concise bullet points."

const defaultMaxChars = 30000

// Generator turns a prompt into text.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Summarizer runs a caller prompt over a transcript. Transcripts longer than
// MaxChars are summarized part by part and the partial summaries combined.
type Summarizer struct {
	gen      Generator
	MaxChars int
}

func NewSummarizer(gen Generator) *Summarizer {
	return &Summarizer{gen: gen, MaxChars: defaultMaxChars}
}

func (s *Summarizer) Summarize(ctx context.Context, prompt string, entries []transcript.Entry) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		prompt = DefaultPrompt
	}
	text := transcript.Text(entries)
	if text == "" {
		return "", fmt.Errorf("summarize empty transcript: %w", transcript.ErrInvalidInput)
	}

	parts := splitText(text, s.MaxChars)
	if len(parts) == 1 {
		return s.gen.Generate(ctx, prompt+"\n\nTranscript:\n"+text)
	}

	slog.Info("gemini: summarizing in parts", slog.Int("parts", len(parts)), slog.Int("chars", len(text)))

	partials := make([]string, len(parts))
	for i, p := range parts {
		out, err := s.gen.Generate(ctx, fmt.Sprintf(
			"Summarize part %d of %d of a video transcript. Keep names, numbers and key claims.\n\nTranscript:\n%s",
			i+1, len(parts), p))
		if err != nil {
			return "", fmt.Errorf("summarize part %d: %w", i+1, err)
		}
		partials[i] = out
	}

	return s.gen.Generate(ctx, prompt+"\n\nTranscript (summarized in parts):\n"+strings.Join(partials, "\n\n"))
}

// splitText breaks text on word boundaries into pieces of at most maxChars.
// A single word longer than maxChars becomes its own piece.
func splitText(text string, maxChars int) []string {
	if maxChars <= 0 || len(text) <= maxChars {
		return []string{text}
	}

	var (
		parts []string
		b     strings.Builder
	)
	for _, w := range strings.Fields(text) {
		if b.Len() > 0 && b.Len()+1+len(w) > maxChars {
			parts = append(parts, b.String())
			b.Reset()
		}
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(w)
	}
	if b.Len() > 0 {
		parts = append(parts, b.String())
	}
	return parts
}
