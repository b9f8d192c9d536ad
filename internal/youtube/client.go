package youtube

import (
	"bytes"
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"html"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/time/rate"

	"github.com/aryannaik/tubechat/internal/transcript"
)

const (
	DefaultBaseURL = "https://www.youtube.com"
	maxBodyBytes   = 8 << 20
)

var tagPattern = regexp.MustCompile(`<[^>]*>`)

type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	maxRetries uint64
	newBackOff func() backoff.BackOff
}

// NewClient builds a caption client. rps caps outbound requests per second;
// zero or less disables the limit.
func NewClient(baseURL string, rps float64) *Client {
	limit := rate.Inf
	if rps > 0 {
		limit = rate.Limit(rps)
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		limiter:    rate.NewLimiter(limit, 1),
		maxRetries: 3,
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 500 * time.Millisecond
			b.MaxInterval = 5 * time.Second
			return b
		},
	}
}

// Fetch returns the transcript for a video. An empty lang picks the first
// manually created track, falling back to auto-generated captions.
func (c *Client) Fetch(ctx context.Context, videoID, lang string) ([]transcript.Entry, error) {
	tracks, _, err := c.Tracks(ctx, videoID)
	if err != nil {
		return nil, err
	}
	track, err := pickTrack(tracks, lang)
	if err != nil {
		return nil, fmt.Errorf("video %s: %w", videoID, err)
	}
	return c.fetchTrack(ctx, track.baseURL)
}

// Translate returns YouTube's machine translation of the video's default
// caption track into targetLang.
func (c *Client) Translate(ctx context.Context, videoID, targetLang string) ([]transcript.Entry, error) {
	tracks, langs, err := c.Tracks(ctx, videoID)
	if err != nil {
		return nil, err
	}
	track, err := pickTrack(tracks, "")
	if err != nil {
		return nil, fmt.Errorf("video %s: %w", videoID, err)
	}
	if track.LanguageCode == targetLang {
		return c.fetchTrack(ctx, track.baseURL)
	}
	if !track.IsTranslatable {
		return nil, fmt.Errorf("video %s: track %s is not translatable: %w", videoID, track.LanguageCode, ErrLanguageUnavailable)
	}
	if len(langs) > 0 && !slices.Contains(langs, targetLang) {
		return nil, fmt.Errorf("video %s: translation to %q: %w", videoID, targetLang, ErrLanguageUnavailable)
	}

	return c.fetchTrack(ctx, track.baseURL+"&tlang="+url.QueryEscape(targetLang))
}

// Tracks lists the caption tracks and translation languages for a video.
func (c *Client) Tracks(ctx context.Context, videoID string) ([]Track, []string, error) {
	page, err := c.get(ctx, c.baseURL+"/watch?v="+url.QueryEscape(videoID))
	if err != nil {
		return nil, nil, fmt.Errorf("fetch watch page %s: %w", videoID, err)
	}

	captions, err := extractCaptions(page)
	if err != nil {
		return nil, nil, fmt.Errorf("video %s: %w", videoID, err)
	}

	renderer := captions.PlayerCaptionsTracklistRenderer
	tracks := make([]Track, 0, len(renderer.CaptionTracks))
	for _, t := range renderer.CaptionTracks {
		tracks = append(tracks, Track{
			LanguageCode:   t.LanguageCode,
			Name:           t.Name.String(),
			Generated:      t.Kind == "asr",
			IsTranslatable: t.IsTranslatable,
			baseURL:        t.BaseURL,
		})
	}
	if len(tracks) == 0 {
		return nil, nil, fmt.Errorf("video %s: %w", videoID, ErrNoCaptions)
	}

	langs := make([]string, 0, len(renderer.TranslationLanguages))
	for _, l := range renderer.TranslationLanguages {
		langs = append(langs, l.LanguageCode)
	}

	slog.Debug("youtube: caption tracks",
		slog.String("video_id", videoID),
		slog.Int("tracks", len(tracks)),
		slog.Int("translations", len(langs)),
	)
	return tracks, langs, nil
}

func extractCaptions(page []byte) (*captionsJSON, error) {
	_, rest, found := bytes.Cut(page, []byte(`"captions":`))
	if !found {
		switch {
		case bytes.Contains(page, []byte(`class="g-recaptcha"`)):
			return nil, ErrTooManyRequests
		case !bytes.Contains(page, []byte(`"playabilityStatus":{"status":"OK"`)):
			return nil, ErrVideoUnavailable
		default:
			return nil, ErrNoCaptions
		}
	}

	raw, _, found := bytes.Cut(rest, []byte(`,"videoDetails`))
	if !found {
		return nil, fmt.Errorf("captions block not terminated: %w", ErrNoCaptions)
	}

	var captions captionsJSON
	if err := json.Unmarshal(raw, &captions); err != nil {
		return nil, fmt.Errorf("decode captions: %w", err)
	}
	return &captions, nil
}

func pickTrack(tracks []Track, lang string) (Track, error) {
	var fallback *Track
	for i, t := range tracks {
		if lang != "" && t.LanguageCode != lang {
			continue
		}
		if !t.Generated {
			return t, nil
		}
		if fallback == nil {
			fallback = &tracks[i]
		}
	}
	if fallback != nil {
		return *fallback, nil
	}
	return Track{}, fmt.Errorf("no %q track: %w", lang, ErrLanguageUnavailable)
}

func (c *Client) fetchTrack(ctx context.Context, trackURL string) ([]transcript.Entry, error) {
	data, err := c.get(ctx, trackURL)
	if err != nil {
		return nil, fmt.Errorf("fetch caption track: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, ErrNoCaptions
	}

	var doc timedText
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode caption track: %w", err)
	}

	entries := make([]transcript.Entry, 0, len(doc.Texts))
	for _, t := range doc.Texts {
		text := html.UnescapeString(t.Body)
		text = tagPattern.ReplaceAllString(text, "")
		entries = append(entries, transcript.Entry{
			Text:     strings.TrimSpace(text),
			Start:    t.Start,
			Duration: t.Dur,
		})
	}
	return entries, nil
}

// get issues a rate-limited GET, retrying 429 and 5xx responses with
// exponential backoff.
func (c *Client) get(ctx context.Context, rawURL string) ([]byte, error) {
	var body []byte

	op := func() error {
		if err := c.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Accept-Language", "en-US,en;q=0.9")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(err)
			}
			return err
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			return ErrTooManyRequests
		case resp.StatusCode >= 500:
			return fmt.Errorf("status %d", resp.StatusCode)
		case resp.StatusCode == http.StatusNotFound:
			return backoff.Permanent(ErrVideoUnavailable)
		case resp.StatusCode != http.StatusOK:
			return backoff.Permanent(fmt.Errorf("status %d", resp.StatusCode))
		}

		body, err = io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
		if err != nil {
			return fmt.Errorf("read body: %w", err)
		}
		return nil
	}

	notify := func(err error, wait time.Duration) {
		slog.Warn("youtube: retrying request",
			slog.String("url", rawURL),
			slog.Duration("wait", wait),
			slog.Any("error", err),
		)
	}

	b := backoff.WithContext(backoff.WithMaxRetries(c.newBackOff(), c.maxRetries), ctx)
	if err := backoff.RetryNotify(op, b, notify); err != nil {
		return nil, err
	}
	return body, nil
}
