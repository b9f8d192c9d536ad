package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
)

func New(port string, staticDir string, handlers *Handlers) *http.Server {
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           logRequests(Routes(staticDir, handlers)),
		ReadHeaderTimeout: 10 * time.Second,
	}

	slog.Info("server listening", slog.String("url", "http://localhost:"+port))
	return srv
}

// Routes registers the API and the static UI on a new mux.
func Routes(staticDir string, handlers *Handlers) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/transcript", handlers.HandleTranscript)
	mux.HandleFunc("POST /api/translate", handlers.HandleTranslate)
	mux.HandleFunc("POST /api/summarize", handlers.HandleSummarize)
	mux.HandleFunc("POST /api/ask", handlers.HandleAsk)
	mux.HandleFunc("GET /api/status", handlers.HandleStatus)
	mux.Handle("/", http.FileServer(http.Dir(staticDir)))
	return mux
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// logRequests tags every request with an X-Request-ID and logs it once served.
func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r)

		slog.Info("http request",
			slog.String("request_id", id),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", rec.status),
			slog.Duration("took", time.Since(start)),
		)
	})
}
