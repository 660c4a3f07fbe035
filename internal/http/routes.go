package httpx

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/target/taskflow/internal/service"
)

// RouterServices holds the services needed by the HTTP router.
type RouterServices struct {
	Jobs   *service.JobService
	Logger *slog.Logger // Logger for request failures (optional)
}

// NewRouter creates and configures the API router. Middleware (logging,
// panic recovery) is applied by the caller so tests can exercise routes
// without it.
func NewRouter(services RouterServices) http.Handler {
	mux := http.NewServeMux()

	jobHandlers := &JobHandlers{Svc: services.Jobs, Logger: services.Logger}

	registerJobRoutes(mux, jobHandlers)
	registerQueueRoutes(mux, jobHandlers)
	mux.Handle("GET /healthz", http.HandlerFunc(healthHandler))
	mux.Handle("HEAD /healthz", http.HandlerFunc(healthHandler))

	return mux
}

func registerJobRoutes(mux *http.ServeMux, h *JobHandlers) {
	mux.HandleFunc("POST /api/jobs", h.Create)
	mux.HandleFunc("GET /api/jobs/{id}", h.GetByID)
	mux.HandleFunc("GET /api/jobs/{id}/attempts", h.ListAttempts)
}

func registerQueueRoutes(mux *http.ServeMux, h *JobHandlers) {
	mux.HandleFunc("GET /api/queues/{queue}/stats", h.QueueStats)
}

const healthResponse = `{"status":"ok"}`

// healthHandler returns a simple 200 OK status for readiness/liveness checks.
func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if r.Method == http.MethodHead {
		return
	}
	if _, err := io.WriteString(w, healthResponse); err != nil {
		// Nothing more to do if the client connection is gone.
		return
	}
}
