package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aryannaik/tubechat/internal/chat"
	"github.com/aryannaik/tubechat/internal/embeddings"
	"github.com/aryannaik/tubechat/internal/retrieval"
	"github.com/aryannaik/tubechat/internal/transcript"
	"github.com/aryannaik/tubechat/internal/youtube"
)

const maxRequestBytes = 1 << 20

// Summarizer runs a prompt over a transcript. Nil disables /api/summarize.
type Summarizer interface {
	Summarize(ctx context.Context, prompt string, entries []transcript.Entry) (string, error)
}

type Handlers struct {
	chat       *chat.Service
	summarizer Summarizer
	backend    embeddings.Backend
}

func NewHandlers(svc *chat.Service, summarizer Summarizer, backend embeddings.Backend) *Handlers {
	return &Handlers{
		chat:       svc,
		summarizer: summarizer,
		backend:    backend,
	}
}

type transcriptRequest struct {
	URL  string `json:"url"`
	Lang string `json:"lang"`
}

type transcriptResponse struct {
	VideoID    string             `json:"videoId"`
	EntryCount int                `json:"entryCount"`
	Windows    int                `json:"windows"`
	Transcript []transcript.Entry `json:"transcript"`
}

func (h *Handlers) HandleTranscript(w http.ResponseWriter, r *http.Request) {
	var req transcriptRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	videoID, err := youtube.ParseVideoID(req.URL)
	if err != nil {
		writeError(w, r, err, http.StatusBadRequest)
		return
	}

	vc, err := h.chat.Load(r.Context(), videoID, req.Lang)
	if err != nil {
		writeError(w, r, err, http.StatusBadGateway)
		return
	}

	entries := vc.Transcript()
	writeJSON(w, http.StatusOK, transcriptResponse{
		VideoID:    videoID,
		EntryCount: len(entries),
		Windows:    vc.Len(),
		Transcript: entries,
	})
}

type translateRequest struct {
	VideoID    string `json:"video_id"`
	URL        string `json:"url"`
	TargetLang string `json:"target_lang"`
	Index      bool   `json:"index"`
}

func (h *Handlers) HandleTranslate(w http.ResponseWriter, r *http.Request) {
	var req translateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.TargetLang == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing field 'target_lang'"})
		return
	}

	raw := req.VideoID
	if raw == "" {
		raw = req.URL
	}
	videoID, err := youtube.ParseVideoID(raw)
	if err != nil {
		writeError(w, r, err, http.StatusBadRequest)
		return
	}

	entries, err := h.chat.Translate(r.Context(), videoID, req.TargetLang, req.Index)
	if err != nil {
		writeError(w, r, err, http.StatusBadGateway)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"videoId":    videoID,
		"targetLang": req.TargetLang,
		"reindexed":  req.Index,
		"transcript": entries,
	})
}

type summarizeRequest struct {
	VideoID string `json:"video_id"`
	Prompt  string `json:"prompt"`
}

func (h *Handlers) HandleSummarize(w http.ResponseWriter, r *http.Request) {
	if h.summarizer == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "summarization disabled: GOOGLE_API_KEY not set"})
		return
	}

	var req summarizeRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	videoID, err := youtube.ParseVideoID(req.VideoID)
	if err != nil {
		writeError(w, r, err, http.StatusBadRequest)
		return
	}

	entries, err := h.chat.Transcript(videoID)
	if err != nil {
		writeError(w, r, err, http.StatusInternalServerError)
		return
	}

	summary, err := h.summarizer.Summarize(r.Context(), req.Prompt, entries)
	if err != nil {
		writeError(w, r, err, http.StatusBadGateway)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"videoId": videoID,
		"summary": summary,
	})
}

type askRequest struct {
	VideoID  string `json:"video_id"`
	Question string `json:"question"`
	TopK     int    `json:"top_k"`
}

type answer struct {
	Index      int     `json:"index"`
	Text       string  `json:"text"`
	StartTime  float64 `json:"startTime"`
	Timestamp  string  `json:"timestamp"`
	Confidence float32 `json:"confidence"`
	URL        string  `json:"url"`
}

func (h *Handlers) HandleAsk(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing field 'question'"})
		return
	}

	videoID, err := youtube.ParseVideoID(req.VideoID)
	if err != nil {
		writeError(w, r, err, http.StatusBadRequest)
		return
	}

	matches, err := h.chat.Ask(r.Context(), videoID, req.Question, req.TopK)
	if err != nil {
		writeError(w, r, err, http.StatusInternalServerError)
		return
	}

	answers := make([]answer, len(matches))
	for i, m := range matches {
		answers[i] = answer{
			Index:      m.Index,
			Text:       m.Window.Text,
			StartTime:  m.Window.StartTime,
			Timestamp:  transcript.FormatTimestamp(m.Window.StartTime),
			Confidence: m.Confidence,
			URL:        youtube.WatchURL(videoID, m.Window.StartTime),
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"videoId":      videoID,
		"question":     req.Question,
		"answer":       answers[0],
		"alternatives": answers[1:],
	})
}

type statusResponse struct {
	Loaded      int    `json:"loaded"`
	Provider    string `json:"provider"`
	Model       string `json:"model"`
	EmbedOK     bool   `json:"embedOk"`
	CacheHits   int64  `json:"cacheHits"`
	CacheMisses int64  `json:"cacheMisses"`
	Summarizer  bool   `json:"summarizer"`
}

func (h *Handlers) HandleStatus(w http.ResponseWriter, r *http.Request) {
	resp := statusResponse{
		Loaded:     h.chat.Loaded(),
		Provider:   h.backend.Name(),
		Model:      h.backend.Model(),
		EmbedOK:    h.backend.Healthy(r.Context()),
		Summarizer: h.summarizer != nil,
	}
	if c, ok := h.backend.(interface{ Stats() (int64, int64) }); ok {
		resp.CacheHits, resp.CacheMisses = c.Stats()
	}
	writeJSON(w, http.StatusOK, resp)
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error, fallback int) int {
	var embErr *retrieval.EmbeddingError
	switch {
	case errors.Is(err, transcript.ErrInvalidInput),
		errors.Is(err, youtube.ErrInvalidURL):
		return http.StatusBadRequest
	case errors.Is(err, chat.ErrVideoNotLoaded),
		errors.Is(err, youtube.ErrVideoUnavailable),
		errors.Is(err, youtube.ErrNoCaptions),
		errors.Is(err, youtube.ErrLanguageUnavailable):
		return http.StatusNotFound
	case errors.Is(err, retrieval.ErrEmptyIndex):
		return http.StatusUnprocessableEntity
	case errors.Is(err, chat.ErrTranslationUnsupported):
		return http.StatusNotImplemented
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.As(err, &embErr),
		errors.Is(err, youtube.ErrTooManyRequests):
		return http.StatusBadGateway
	}
	return fallback
}

func writeError(w http.ResponseWriter, r *http.Request, err error, fallback int) {
	status := statusFor(err, fallback)
	if status >= http.StatusInternalServerError {
		slog.Error("server: request failed",
			slog.String("path", r.URL.Path),
			slog.Int("status", status),
			slog.Any("error", err),
		)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes))
	if err := dec.Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": fmt.Sprintf("invalid request body: %v", err)})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
