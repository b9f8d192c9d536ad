package transcript

import (
	"errors"
	"fmt"
)

// DefaultMinWords is the word threshold at which a window is closed.
const DefaultMinWords = 100

// ErrInvalidInput reports a transcript or threshold that cannot be segmented.
var ErrInvalidInput = errors.New("invalid transcript input")

// Entry is one timed caption line as returned by the transcript source.
type Entry struct {
	Text     string  `json:"text"`
	Start    float64 `json:"start"`
	Duration float64 `json:"duration,omitempty"`
}

// Window is a run of consecutive entries joined into one embeddable text.
type Window struct {
	Text      string  `json:"text"`
	StartTime float64 `json:"start_time"`
}

// StartPolicy decides which timestamp a window carries.
type StartPolicy int

const (
	// StartOfFirstEntry tags every window with the start of its first entry.
	StartOfFirstEntry StartPolicy = iota

	// LegacyIndexed tags the n-th closed window with entries[n].Start and the
	// trailing window with the start of the last entry.
	LegacyIndexed
)

func (p StartPolicy) String() string {
	switch p {
	case LegacyIndexed:
		return "legacy"
	default:
		return "first-entry"
	}
}

// ParseStartPolicy maps a config value to a StartPolicy.
func ParseStartPolicy(s string) (StartPolicy, error) {
	switch s {
	case "", "first-entry":
		return StartOfFirstEntry, nil
	case "legacy":
		return LegacyIndexed, nil
	}
	return StartOfFirstEntry, fmt.Errorf("unknown window start policy %q", s)
}
