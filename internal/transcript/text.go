package transcript

import (
	"fmt"
	"math"
	"strings"
)

// MaxTimestamp caps rendered offsets at roughly 68 years.
const MaxTimestamp = math.MaxInt32

// Text joins the text of all entries into a single space-separated string.
func Text(entries []Entry) string {
	var b strings.Builder
	for _, e := range entries {
		t := strings.TrimSpace(e.Text)
		if t == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(t)
	}
	return b.String()
}

// WordCount returns the number of whitespace-separated words across entries.
func WordCount(entries []Entry) int {
	n := 0
	for _, e := range entries {
		n += len(strings.Fields(e.Text))
	}
	return n
}

// FormatTimestamp renders seconds as m:ss, or h:mm:ss past the hour.
func FormatTimestamp(seconds float64) string {
	total := ClampSeconds(seconds)
	h, m, s := total/3600, (total%3600)/60, total%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

// ClampSeconds truncates seconds to a whole number in [0, MaxTimestamp].
// NaN maps to 0.
func ClampSeconds(seconds float64) int {
	switch {
	case math.IsNaN(seconds) || seconds < 0:
		return 0
	case seconds > MaxTimestamp:
		return MaxTimestamp
	}
	return int(seconds)
}
