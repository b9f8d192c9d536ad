package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/aryannaik/tubechat/internal/retrieval"
	"github.com/aryannaik/tubechat/internal/transcript"
)

var (
	// ErrVideoNotLoaded is returned when asking about a video that was never fetched.
	ErrVideoNotLoaded = errors.New("video not loaded")

	// ErrTranslationUnsupported means the transcript source cannot translate.
	ErrTranslationUnsupported = errors.New("transcript source does not support translation")
)

// TranscriptSource returns the ordered caption entries for a video.
type TranscriptSource interface {
	Fetch(ctx context.Context, videoID, lang string) ([]transcript.Entry, error)
}

// Translator returns a machine-translated transcript.
type Translator interface {
	Translate(ctx context.Context, videoID, targetLang string) ([]transcript.Entry, error)
}

// loadTimeout bounds a shared load, which no single caller can cancel.
const loadTimeout = 5 * time.Minute

// Service fetches, indexes and answers questions about videos. Loads of the
// same video and language are collapsed into one fetch and one embed call.
type Service struct {
	source    TranscriptSource
	embedder  retrieval.Embedder
	store     retrieval.Store
	segmenter transcript.Segmenter
	loads     singleflight.Group

	mu        sync.Mutex
	seq       uint64
	committed map[string]uint64
}

func NewService(source TranscriptSource, embedder retrieval.Embedder, store retrieval.Store, segmenter transcript.Segmenter) *Service {
	return &Service{
		source:    source,
		embedder:  embedder,
		store:     store,
		segmenter: segmenter,
		committed: make(map[string]uint64),
	}
}

// Load fetches a video's transcript and replaces its index. A failure at any
// step leaves the previously stored index in place.
//
// The fetch runs detached from any one caller: a caller whose ctx ends gets
// ctx.Err() back while the load carries on for everyone else waiting on it.
func (s *Service) Load(ctx context.Context, videoID, lang string) (*retrieval.VideoContext, error) {
	ch := s.loads.DoChan(videoID+"\x00"+lang, func() (interface{}, error) {
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), loadTimeout)
		defer cancel()

		seq := s.begin()
		start := time.Now()
		entries, err := s.source.Fetch(loadCtx, videoID, lang)
		if err != nil {
			return nil, fmt.Errorf("fetch transcript %s: %w", videoID, err)
		}
		slog.Info("chat: transcript fetched",
			slog.String("video_id", videoID),
			slog.Int("entries", len(entries)),
			slog.Duration("took", time.Since(start)),
		)
		return s.index(loadCtx, videoID, entries, seq)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		if res.Shared {
			slog.Debug("chat: load shared with concurrent caller", slog.String("video_id", videoID))
		}
		return res.Val.(*retrieval.VideoContext), nil
	}
}

// Index segments and embeds entries, then stores the result under videoID.
func (s *Service) Index(ctx context.Context, videoID string, entries []transcript.Entry) (*retrieval.VideoContext, error) {
	return s.index(ctx, videoID, entries, s.begin())
}

// begin stamps an index build. Builds are committed in the order they began,
// so a slow load cannot overwrite an index started after it.
func (s *Service) begin() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	return s.seq
}

func (s *Service) index(ctx context.Context, videoID string, entries []transcript.Entry, seq uint64) (*retrieval.VideoContext, error) {
	windows, err := s.segmenter.Segment(entries)
	if err != nil {
		return nil, fmt.Errorf("segment %s: %w", videoID, err)
	}

	start := time.Now()
	vc, err := retrieval.BuildIndex(ctx, entries, windows, s.embedder)
	if err != nil {
		return nil, fmt.Errorf("index %s: %w", videoID, err)
	}

	s.mu.Lock()
	stale := seq < s.committed[videoID]
	if !stale {
		s.committed[videoID] = seq
		s.store.Put(videoID, vc)
	}
	s.mu.Unlock()

	if stale {
		slog.Info("chat: newer index already stored, discarding",
			slog.String("video_id", videoID),
		)
		return vc, nil
	}

	slog.Info("chat: video indexed",
		slog.String("video_id", videoID),
		slog.Int("windows", vc.Len()),
		slog.Int("dimension", vc.Dimension()),
		slog.Duration("took", time.Since(start)),
	)
	return vc, nil
}

// Ask returns the best window for the question, followed by up to topK-1
// runners-up when topK > 1.
func (s *Service) Ask(ctx context.Context, videoID, question string, topK int) ([]retrieval.Match, error) {
	vc, ok := s.store.Get(videoID)
	if !ok {
		return nil, fmt.Errorf("%s: %w", videoID, ErrVideoNotLoaded)
	}

	if topK <= 1 {
		m, err := retrieval.Query(ctx, vc, question, s.embedder)
		if err != nil {
			return nil, fmt.Errorf("query %s: %w", videoID, err)
		}
		return []retrieval.Match{m}, nil
	}

	matches, err := retrieval.Rank(ctx, vc, question, s.embedder, topK)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", videoID, err)
	}
	return matches, nil
}

// Translate fetches a translated transcript. With reindex set, the video's
// index is rebuilt from the translated text.
func (s *Service) Translate(ctx context.Context, videoID, targetLang string, reindex bool) ([]transcript.Entry, error) {
	tr, ok := s.source.(Translator)
	if !ok {
		return nil, ErrTranslationUnsupported
	}

	seq := s.begin()
	entries, err := tr.Translate(ctx, videoID, targetLang)
	if err != nil {
		return nil, fmt.Errorf("translate %s to %s: %w", videoID, targetLang, err)
	}
	if reindex {
		if _, err := s.index(ctx, videoID, entries, seq); err != nil {
			return nil, err
		}
	}
	return entries, nil
}

// Transcript returns the entries a loaded video was indexed from.
func (s *Service) Transcript(videoID string) ([]transcript.Entry, error) {
	vc, ok := s.store.Get(videoID)
	if !ok {
		return nil, fmt.Errorf("%s: %w", videoID, ErrVideoNotLoaded)
	}
	return vc.Transcript(), nil
}

// Loaded returns how many videos are indexed.
func (s *Service) Loaded() int {
	return s.store.Len()
}
