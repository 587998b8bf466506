package router

import (
	"log/slog"
	"net/http"
	"time"

	"task-management/internal/http/handlers"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func New(handler *handlers.TaskHandler, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/tasks", handler.Create)
	mux.HandleFunc("GET /api/tasks", handler.List)
	mux.HandleFunc("GET /api/tasks/stats", handler.Stats)
	mux.HandleFunc("GET /api/tasks/status/{status}", handler.ListByStatus)
	mux.HandleFunc("GET /api/tasks/priority/{priority}", handler.ListByPriority)
	mux.HandleFunc("GET /api/tasks/{id}", handler.Get)
	mux.HandleFunc("PUT /api/tasks/{id}", handler.Update)
	mux.HandleFunc("DELETE /api/tasks/{id}", handler.Delete)
	mux.HandleFunc("POST /api/tasks/{id}/start", handler.Start)
	mux.HandleFunc("POST /api/tasks/{id}/complete", handler.Complete)
	mux.HandleFunc("POST /api/tasks/{id}/cancel", handler.Cancel)
	mux.HandleFunc("GET /healthz", handler.Health)

	if logger == nil {
		logger = slog.Default()
	}
	return otelhttp.NewHandler(accessLog(logger, mux), "tasks-api")
}

type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	n, err := r.ResponseWriter.Write(b)
	r.bytes += n
	return n, err
}

func accessLog(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w}

		next.ServeHTTP(rec, r)

		if rec.status == 0 {
			rec.status = http.StatusOK
		}
		logger.InfoContext(r.Context(), "http request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", rec.status),
			slog.Int("bytes", rec.bytes),
			slog.Duration("duration", time.Since(start)))
	})
}
