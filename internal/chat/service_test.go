package chat

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aryannaik/tubechat/internal/embeddings"
	"github.com/aryannaik/tubechat/internal/retrieval"
	"github.com/aryannaik/tubechat/internal/transcript"
)

type fakeSource struct {
	mu         sync.Mutex
	transcript map[string][]transcript.Entry
	translated []transcript.Entry
	err        error
	calls      atomic.Int32
	gate       chan struct{}
}

func (f *fakeSource) Fetch(ctx context.Context, videoID, _ string) ([]transcript.Entry, error) {
	f.calls.Add(1)
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.transcript[videoID], nil
}

func (f *fakeSource) Translate(context.Context, string, string) ([]transcript.Entry, error) {
	return f.translated, nil
}

func (f *fakeSource) set(videoID string, entries []transcript.Entry) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.transcript[videoID] = entries
}

// fetchOnly hides Translate.
type fetchOnly struct{ src *fakeSource }

func (f fetchOnly) Fetch(ctx context.Context, videoID, lang string) ([]transcript.Entry, error) {
	return f.src.Fetch(ctx, videoID, lang)
}

var cooking = []transcript.Entry{
	{Text: "first we chop the onions finely", Start: 0},
	{Text: "then we heat the olive oil", Start: 4},
	{Text: "finally we season with salt and pepper", Start: 9},
}

func newService(src TranscriptSource, e retrieval.Embedder) *Service {
	return NewService(src, e, retrieval.NewMemoryStore(), transcript.Segmenter{MinWords: 6})
}

func TestService_LoadAndAsk(t *testing.T) {
	src := &fakeSource{transcript: map[string][]transcript.Entry{"vid": cooking}}
	svc := newService(src, embeddings.CharFreq{})
	ctx := context.Background()

	vc, err := svc.Load(ctx, "vid", "")
	require.NoError(t, err)
	require.Equal(t, 3, vc.Len())
	assert.Equal(t, 1, svc.Loaded())

	matches, err := svc.Ask(ctx, "vid", "then we heat the olive oil", 1)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, 1, matches[0].Index)
	assert.Equal(t, 4.0, matches[0].Window.StartTime)

	matches, err = svc.Ask(ctx, "vid", "then we heat the olive oil", 3)
	require.NoError(t, err)
	require.Len(t, matches, 3)
	assert.Equal(t, 1, matches[0].Index)

	entries, err := svc.Transcript("vid")
	require.NoError(t, err)
	assert.Equal(t, cooking, entries)
}

func TestService_AskUnknownVideo(t *testing.T) {
	svc := newService(&fakeSource{}, embeddings.CharFreq{})

	_, err := svc.Ask(context.Background(), "nope", "hello", 1)
	assert.ErrorIs(t, err, ErrVideoNotLoaded)

	_, err = svc.Transcript("nope")
	assert.ErrorIs(t, err, ErrVideoNotLoaded)
}

func TestService_AskEmptyTranscript(t *testing.T) {
	src := &fakeSource{transcript: map[string][]transcript.Entry{"silent": nil}}
	svc := newService(src, embeddings.CharFreq{})

	_, err := svc.Load(context.Background(), "silent", "")
	require.NoError(t, err)

	_, err = svc.Ask(context.Background(), "silent", "anything", 1)
	assert.ErrorIs(t, err, retrieval.ErrEmptyIndex)
}

func TestService_SourceErrorSurfaces(t *testing.T) {
	noCaptions := errors.New("no captions")
	svc := newService(&fakeSource{err: noCaptions}, embeddings.CharFreq{})

	_, err := svc.Load(context.Background(), "vid", "")
	assert.ErrorIs(t, err, noCaptions)
	assert.Zero(t, svc.Loaded())
}

func TestService_FailedRebuildKeepsPreviousIndex(t *testing.T) {
	src := &fakeSource{transcript: map[string][]transcript.Entry{"vid": cooking}}
	var failing atomic.Bool
	e := retrieval.EmbedFunc(func(ctx context.Context, texts []string) ([][]float32, error) {
		if failing.Load() {
			return nil, errors.New("embedding service down")
		}
		return embeddings.CharFreq{}.Embed(ctx, texts)
	})
	svc := newService(src, e)
	ctx := context.Background()

	first, err := svc.Load(ctx, "vid", "")
	require.NoError(t, err)

	src.set("vid", []transcript.Entry{{Text: "completely different content here now", Start: 0}})
	failing.Store(true)

	_, err = svc.Load(ctx, "vid", "")
	var embErr *retrieval.EmbeddingError
	require.ErrorAs(t, err, &embErr)

	failing.Store(false)
	matches, err := svc.Ask(ctx, "vid", "first we chop the onions finely", 1)
	require.NoError(t, err)
	assert.Equal(t, first.Windows()[0], matches[0].Window)
}

func TestService_InvalidTranscriptKeepsPreviousIndex(t *testing.T) {
	src := &fakeSource{transcript: map[string][]transcript.Entry{"vid": cooking}}
	svc := newService(src, embeddings.CharFreq{})
	ctx := context.Background()

	_, err := svc.Load(ctx, "vid", "")
	require.NoError(t, err)

	src.set("vid", []transcript.Entry{{Text: "backwards", Start: 5}, {Text: "time", Start: 1}})
	_, err = svc.Load(ctx, "vid", "")
	assert.ErrorIs(t, err, transcript.ErrInvalidInput)

	entries, err := svc.Transcript("vid")
	require.NoError(t, err)
	assert.Equal(t, cooking, entries)
}

func TestService_ReloadReplaces(t *testing.T) {
	src := &fakeSource{transcript: map[string][]transcript.Entry{"vid": cooking}}
	svc := newService(src, embeddings.CharFreq{})
	ctx := context.Background()

	_, err := svc.Load(ctx, "vid", "")
	require.NoError(t, err)

	replacement := []transcript.Entry{{Text: "a brand new video about astronomy and stars", Start: 0}}
	src.set("vid", replacement)
	_, err = svc.Load(ctx, "vid", "")
	require.NoError(t, err)

	matches, err := svc.Ask(ctx, "vid", "first we chop the onions finely", 1)
	require.NoError(t, err)
	assert.Equal(t, "a brand new video about astronomy and stars", matches[0].Window.Text)
}

func TestService_ConcurrentLoadsShareOneFetch(t *testing.T) {
	src := &fakeSource{
		transcript: map[string][]transcript.Entry{"vid": cooking},
		gate:       make(chan struct{}),
	}
	svc := newService(src, embeddings.CharFreq{})

	const callers = 5
	var wg, started sync.WaitGroup
	results := make([]*retrieval.VideoContext, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		started.Add(1)
		go func(i int) {
			defer wg.Done()
			started.Done()
			vc, err := svc.Load(context.Background(), "vid", "")
			assert.NoError(t, err)
			results[i] = vc
		}(i)
	}

	started.Wait()
	require.Eventually(t, func() bool { return src.calls.Load() == 1 }, time.Second, time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	close(src.gate)
	wg.Wait()

	assert.Equal(t, int32(1), src.calls.Load())
	for _, vc := range results {
		assert.Same(t, results[0], vc)
	}
}

func TestService_CanceledCallerDoesNotFailSharedLoad(t *testing.T) {
	src := &fakeSource{
		transcript: map[string][]transcript.Entry{"vid": cooking},
		gate:       make(chan struct{}),
	}
	svc := newService(src, embeddings.CharFreq{})

	ctxA, cancelA := context.WithCancel(context.Background())
	errA := make(chan error, 1)
	go func() {
		_, err := svc.Load(ctxA, "vid", "")
		errA <- err
	}()
	require.Eventually(t, func() bool { return src.calls.Load() == 1 }, time.Second, time.Millisecond)

	type result struct {
		vc  *retrieval.VideoContext
		err error
	}
	resB := make(chan result, 1)
	go func() {
		vc, err := svc.Load(context.Background(), "vid", "")
		resB <- result{vc, err}
	}()
	time.Sleep(50 * time.Millisecond)

	cancelA()
	select {
	case err := <-errA:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("canceled caller did not return")
	}

	close(src.gate)
	b := <-resB
	require.NoError(t, b.err)
	assert.Equal(t, 3, b.vc.Len())
	assert.Equal(t, int32(1), src.calls.Load())

	entries, err := svc.Transcript("vid")
	require.NoError(t, err)
	assert.Equal(t, cooking, entries)
}

func TestService_SlowLoadDoesNotOverwriteLaterTranslation(t *testing.T) {
	src := &fakeSource{
		transcript: map[string][]transcript.Entry{"vid": cooking},
		translated: []transcript.Entry{{Text: "zuerst die zwiebeln schneiden", Start: 0}},
		gate:       make(chan struct{}),
	}
	svc := newService(src, embeddings.CharFreq{})
	ctx := context.Background()

	loaded := make(chan error, 1)
	go func() {
		_, err := svc.Load(ctx, "vid", "")
		loaded <- err
	}()
	require.Eventually(t, func() bool { return src.calls.Load() == 1 }, time.Second, time.Millisecond)

	_, err := svc.Translate(ctx, "vid", "de", true)
	require.NoError(t, err)

	close(src.gate)
	require.NoError(t, <-loaded)

	entries, err := svc.Transcript("vid")
	require.NoError(t, err)
	assert.Equal(t, src.translated, entries)

	_, err = svc.Load(ctx, "vid", "")
	require.NoError(t, err)
	entries, _ = svc.Transcript("vid")
	assert.Equal(t, cooking, entries, "a load started afterwards replaces the translation")
}

func TestService_Translate(t *testing.T) {
	src := &fakeSource{
		transcript: map[string][]transcript.Entry{"vid": cooking},
		translated: []transcript.Entry{{Text: "zuerst die zwiebeln schneiden", Start: 0}},
	}
	svc := newService(src, embeddings.CharFreq{})
	ctx := context.Background()

	_, err := svc.Load(ctx, "vid", "")
	require.NoError(t, err)

	got, err := svc.Translate(ctx, "vid", "de", false)
	require.NoError(t, err)
	assert.Equal(t, src.translated, got)

	entries, _ := svc.Transcript("vid")
	assert.Equal(t, cooking, entries, "index untouched without reindex")

	_, err = svc.Translate(ctx, "vid", "de", true)
	require.NoError(t, err)
	entries, _ = svc.Transcript("vid")
	assert.Equal(t, src.translated, entries)
}

func TestService_TranslateUnsupported(t *testing.T) {
	svc := newService(fetchOnly{src: &fakeSource{}}, embeddings.CharFreq{})
	_, err := svc.Translate(context.Background(), "vid", "de", false)
	assert.ErrorIs(t, err, ErrTranslationUnsupported)
}
