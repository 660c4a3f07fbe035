// Package httpx provides the HTTP submission API for the taskflow job broker.
package httpx

import (
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/target/taskflow/internal/domain/model"
	apperrors "github.com/target/taskflow/internal/errors"
	"github.com/target/taskflow/internal/service"
)

// JobHandlers provides HTTP handlers for job submission and inspection.
type JobHandlers struct {
	Svc    *service.JobService
	Logger *slog.Logger
}

// Create handles POST /api/jobs. The body is a ScheduleJobCommand; the
// response is the created job resource.
func (h *JobHandlers) Create(w http.ResponseWriter, r *http.Request) {
	var cmd model.ScheduleJobCommand
	if !DecodeJSON(w, r, &cmd) {
		return
	}

	job, err := h.Svc.Schedule(r.Context(), cmd)
	if err != nil {
		h.renderError(w, r, err)
		return
	}

	WriteJSON(w, http.StatusCreated, job)
}

// GetByID handles GET /api/jobs/{id}.
func (h *JobHandlers) GetByID(w http.ResponseWriter, r *http.Request) {
	id, ok := jobIDFromPath(w, r)
	if !ok {
		return
	}

	job, err := h.Svc.GetByID(r.Context(), id)
	if err != nil {
		h.renderError(w, r, err)
		return
	}

	WriteJSON(w, http.StatusOK, job)
}

// ListAttempts handles GET /api/jobs/{id}/attempts. Attempts are returned
// oldest first; a job with no attempts yet returns an empty list.
func (h *JobHandlers) ListAttempts(w http.ResponseWriter, r *http.Request) {
	id, ok := jobIDFromPath(w, r)
	if !ok {
		return
	}

	attempts, err := h.Svc.ListAttempts(r.Context(), id)
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	if attempts == nil {
		attempts = []model.JobAttempt{}
	}

	WriteJSON(w, http.StatusOK, attempts)
}

// QueueStats handles GET /api/queues/{queue}/stats.
func (h *JobHandlers) QueueStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Svc.QueueStats(r.Context(), r.PathValue("queue"))
	if err != nil {
		h.renderError(w, r, err)
		return
	}

	WriteJSON(w, http.StatusOK, stats)
}

// renderError writes the error envelope, logging failures the client
// cannot act on.
func (h *JobHandlers) renderError(w http.ResponseWriter, r *http.Request, err error) {
	if h.Logger != nil && statusForCode(apperrors.GetCode(err)) >= http.StatusInternalServerError {
		h.Logger.ErrorContext(r.Context(), "request failed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Any("error", err),
		)
	}
	WriteAppError(w, err)
}

// jobIDFromPath parses the {id} path segment. A malformed id is a
// validation failure, not a 404: the route matched, the input did not
// parse.
func jobIDFromPath(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		WriteAppError(w, apperrors.ValidationField("id", "id must be a valid UUID"))
		return uuid.Nil, false
	}
	return id, true
}
