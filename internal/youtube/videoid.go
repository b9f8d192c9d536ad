package youtube

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/aryannaik/tubechat/internal/transcript"
)

var videoIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)

// ParseVideoID extracts the 11-character video id from a watch, short, embed
// or youtu.be URL. A bare id is returned as-is.
func ParseVideoID(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if videoIDPattern.MatchString(raw) {
		return raw, nil
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}

	host := strings.ToLower(u.Hostname())
	host = strings.TrimPrefix(host, "www.")
	host = strings.TrimPrefix(host, "m.")

	var id string
	segs := strings.Split(strings.Trim(u.Path, "/"), "/")
	switch host {
	case "youtu.be":
		id = segs[0]
	case "youtube.com", "music.youtube.com", "youtube-nocookie.com":
		if v := u.Query().Get("v"); v != "" {
			id = v
		} else if len(segs) >= 2 {
			switch segs[0] {
			case "shorts", "embed", "live", "v":
				id = segs[1]
			}
		}
	}

	if !videoIDPattern.MatchString(id) {
		return "", fmt.Errorf("%w: %q", ErrInvalidURL, raw)
	}
	return id, nil
}

// WatchURL links to a video, optionally starting at the given second.
func WatchURL(videoID string, seconds float64) string {
	u := "https://www.youtube.com/watch?v=" + videoID
	if s := transcript.ClampSeconds(seconds); s > 0 {
		u += fmt.Sprintf("&t=%ds", s)
	}
	return u
}
