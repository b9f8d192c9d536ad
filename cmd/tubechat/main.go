package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/aryannaik/tubechat/internal/chat"
	"github.com/aryannaik/tubechat/internal/embeddings"
	"github.com/aryannaik/tubechat/internal/gemini"
	"github.com/aryannaik/tubechat/internal/retrieval"
	"github.com/aryannaik/tubechat/internal/server"
	"github.com/aryannaik/tubechat/internal/transcript"
	"github.com/aryannaik/tubechat/internal/youtube"
)

type config struct {
	Port          string
	StaticDir     string
	EmbedProvider string
	OllamaHost    string
	EmbedModel    string
	OpenAIKey     string
	OpenAIBaseURL string
	GoogleAPIKey  string
	GeminiModel   string
	MinWords      int
	StartPolicy   transcript.StartPolicy
	CacheSize     int
	YouTubeRPS    float64
	LogLevel      string
	LogFormat     string
}

func loadConfig() (config, error) {
	_ = godotenv.Load()

	cfg := config{
		Port:          envOrDefault("PORT", "8990"),
		StaticDir:     envOrDefault("STATIC_DIR", "static"),
		EmbedProvider: envOrDefault("EMBED_PROVIDER", "ollama"),
		OllamaHost:    envOrDefault("OLLAMA_HOST", "http://localhost:11434"),
		OpenAIKey:     os.Getenv("OPENAI_API_KEY"),
		OpenAIBaseURL: os.Getenv("OPENAI_BASE_URL"),
		GoogleAPIKey:  os.Getenv("GOOGLE_API_KEY"),
		GeminiModel:   envOrDefault("GEMINI_MODEL", "gemini-1.5-flash"),
		LogLevel:      envOrDefault("LOG_LEVEL", "info"),
		LogFormat:     envOrDefault("LOG_FORMAT", "text"),
	}

	defaultModel := "nomic-embed-text"
	if cfg.EmbedProvider == "openai" {
		defaultModel = "text-embedding-3-small"
	}
	cfg.EmbedModel = envOrDefault("EMBED_MODEL", defaultModel)

	var err error
	if cfg.MinWords, err = envInt("MIN_WORDS_PER_WINDOW", transcript.DefaultMinWords); err != nil {
		return cfg, err
	}
	if cfg.MinWords < 1 {
		return cfg, fmt.Errorf("MIN_WORDS_PER_WINDOW must be at least 1, got %d", cfg.MinWords)
	}
	if cfg.StartPolicy, err = transcript.ParseStartPolicy(os.Getenv("WINDOW_START_POLICY")); err != nil {
		return cfg, fmt.Errorf("WINDOW_START_POLICY: %w", err)
	}
	if cfg.CacheSize, err = envInt("QUERY_CACHE_SIZE", 512); err != nil {
		return cfg, err
	}
	if cfg.YouTubeRPS, err = envFloat("YOUTUBE_RPS", 2); err != nil {
		return cfg, err
	}

	switch cfg.EmbedProvider {
	case "ollama", "charfreq":
	case "openai":
		if cfg.OpenAIKey == "" {
			return cfg, fmt.Errorf("OPENAI_API_KEY is required when EMBED_PROVIDER=openai")
		}
	default:
		return cfg, fmt.Errorf("unknown EMBED_PROVIDER %q", cfg.EmbedProvider)
	}

	return cfg, nil
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func envFloat(key string, def float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return f, nil
}

func setupLogging(level, format string) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: lvl}

	var h slog.Handler
	if strings.EqualFold(format, "json") {
		h = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		h = slog.NewTextHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(h))
}

func newBackend(cfg config) embeddings.Backend {
	switch cfg.EmbedProvider {
	case "openai":
		return embeddings.NewOpenAI(cfg.OpenAIKey, cfg.OpenAIBaseURL, cfg.EmbedModel)
	case "charfreq":
		return embeddings.CharFreq{}
	}
	return embeddings.NewOllama(cfg.OllamaHost, cfg.EmbedModel)
}

func main() {
	videoFlag := flag.String("video", "", "YouTube URL or video id to load at start-up")
	langFlag := flag.String("lang", "", "Caption language for -video (default: first manual track)")
	askFlag := flag.String("ask", "", "Answer one question about -video and exit")
	flag.Parse()

	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	setupLogging(cfg.LogLevel, cfg.LogFormat)

	backend, err := embeddings.NewCached(newBackend(cfg), cfg.CacheSize)
	if err != nil {
		slog.Error("embedding cache", slog.Any("error", err))
		os.Exit(1)
	}

	svc := chat.NewService(
		youtube.NewClient(youtube.DefaultBaseURL, cfg.YouTubeRPS),
		backend,
		retrieval.NewMemoryStore(),
		transcript.Segmenter{MinWords: cfg.MinWords, Policy: cfg.StartPolicy},
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *askFlag != "" && *videoFlag == "" {
		fmt.Fprintln(os.Stderr, "-ask requires -video")
		os.Exit(2)
	}

	var videoID string
	if *videoFlag != "" {
		videoID, err = youtube.ParseVideoID(*videoFlag)
		if err != nil {
			slog.Error("parse -video", slog.Any("error", err))
			os.Exit(1)
		}
		if _, err := svc.Load(ctx, videoID, *langFlag); err != nil {
			slog.Error("load video", slog.String("video_id", videoID), slog.Any("error", err))
			os.Exit(1)
		}
	}

	if *askFlag != "" {
		if err := answerOnce(ctx, svc, videoID, *askFlag); err != nil {
			slog.Error("ask", slog.Any("error", err))
			os.Exit(1)
		}
		return
	}

	var summarizer server.Summarizer
	if cfg.GoogleAPIKey != "" {
		gc, err := gemini.NewClient(ctx, cfg.GoogleAPIKey, cfg.GeminiModel)
		if err != nil {
			slog.Error("gemini client", slog.Any("error", err))
			os.Exit(1)
		}
		defer gc.Close()
		summarizer = gemini.NewSummarizer(gc)
	} else {
		slog.Warn("GOOGLE_API_KEY not set, summarization disabled")
	}

	slog.Info("embedder configured",
		slog.String("provider", backend.Name()),
		slog.String("model", backend.Model()),
		slog.Bool("healthy", backend.Healthy(ctx)),
	)

	srv := server.New(cfg.Port, cfg.StaticDir, server.NewHandlers(svc, summarizer, backend))

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server stopped", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown", slog.Any("error", err))
	}

	slog.Info("goodbye")
}

func answerOnce(ctx context.Context, svc *chat.Service, videoID, question string) error {
	matches, err := svc.Ask(ctx, videoID, question, 1)
	if err != nil {
		return err
	}
	m := matches[0]
	fmt.Printf("[%s] %s\n%s\n(confidence %.3f)\n",
		transcript.FormatTimestamp(m.Window.StartTime),
		youtube.WatchURL(videoID, m.Window.StartTime),
		m.Window.Text,
		m.Confidence,
	)
	return nil
}
