package transcript

import (
	"fmt"
	"math"
	"strings"
)

// Segmenter groups transcript entries into windows of at least MinWords words.
type Segmenter struct {
	MinWords int
	Policy   StartPolicy
}

// Segment splits entries into windows using the default start policy.
func Segment(entries []Entry, minWords int) ([]Window, error) {
	return Segmenter{MinWords: minWords}.Segment(entries)
}

// Segment accumulates entries in order and closes a window each time the
// running word count reaches MinWords. Leftover words form a trailing window.
// Entries with blank text contribute nothing and are skipped.
func (s Segmenter) Segment(entries []Entry) ([]Window, error) {
	if s.MinWords < 1 {
		return nil, fmt.Errorf("min words per window %d: %w", s.MinWords, ErrInvalidInput)
	}
	if len(entries) == 0 {
		return []Window{}, nil
	}
	if err := Validate(entries); err != nil {
		return nil, err
	}

	var (
		windows []Window
		parts   []string
		words   int
		first   int
	)

	flush := func(start float64) {
		windows = append(windows, Window{
			Text:      strings.Join(parts, " "),
			StartTime: start,
		})
		parts = parts[:0]
		words = 0
	}

	for i, e := range entries {
		text := strings.TrimSpace(e.Text)
		n := len(strings.Fields(text))
		if n == 0 {
			continue
		}
		if len(parts) == 0 {
			first = i
		}
		parts = append(parts, text)
		words += n

		if words >= s.MinWords {
			start := entries[first].Start
			if s.Policy == LegacyIndexed {
				start = entries[len(windows)].Start
			}
			flush(start)
		}
	}

	if len(parts) > 0 {
		start := entries[first].Start
		if s.Policy == LegacyIndexed {
			start = entries[len(entries)-1].Start
		}
		flush(start)
	}

	if len(windows) == 0 {
		return nil, fmt.Errorf("transcript of %d entries has no words: %w", len(entries), ErrInvalidInput)
	}
	return windows, nil
}

// Validate checks that every entry has a finite, non-negative start and
// duration and that starts never go backwards.
func Validate(entries []Entry) error {
	prev := 0.0
	for i, e := range entries {
		if !finite(e.Start) || e.Start < 0 {
			return fmt.Errorf("entry %d: start %v: %w", i, e.Start, ErrInvalidInput)
		}
		if !finite(e.Duration) || e.Duration < 0 {
			return fmt.Errorf("entry %d: duration %v: %w", i, e.Duration, ErrInvalidInput)
		}
		if i > 0 && e.Start < prev {
			return fmt.Errorf("entry %d: start %v before previous %v: %w", i, e.Start, prev, ErrInvalidInput)
		}
		prev = e.Start
	}
	return nil
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
