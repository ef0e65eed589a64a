package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/video-stream/summarizer/internal/db"
	"github.com/video-stream/summarizer/internal/job"
	"github.com/video-stream/summarizer/internal/service"
)

type JobHandler struct {
	queue    *job.JobQueue
	database *db.Database
}

func NewJobHandler(queue *job.JobQueue, database *db.Database) *JobHandler {
	return &JobHandler{queue: queue, database: database}
}

// EnqueueUpscale validates an upscale request and queues it. The response
// is the pending job; poll GetJob for the result.
func (h *JobHandler) EnqueueUpscale(w http.ResponseWriter, r *http.Request) {
	var req upscaleRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.VideoURL == "" {
		writeServiceError(w, r, service.ErrMissingURL)
		return
	}

	params := req.params(loadDefaults(h.database))
	if _, err := service.UpscaleOptions(params); err != nil {
		writeServiceError(w, r, err)
		return
	}

	j, err := h.queue.Enqueue(job.JobUpscale, params.VideoURL, params)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	jsonResponse(w, j, http.StatusAccepted)
}

// ListJobs returns all jobs, optionally filtered by ?status=
func (h *JobHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	status := job.JobStatus(r.URL.Query().Get("status"))
	switch status {
	case "", job.StatusPending, job.StatusRunning, job.StatusCompleted, job.StatusFailed, job.StatusCancelled:
	default:
		jsonError(w, "invalid status filter", http.StatusBadRequest)
		return
	}

	jobs, err := h.queue.ListJobs(status)
	if err != nil {
		jsonError(w, "failed to list jobs: "+err.Error(), http.StatusInternalServerError)
		return
	}
	if jobs == nil {
		jobs = []*job.Job{}
	}
	jsonResponse(w, jobs, http.StatusOK)
}

// GetJob returns a single job by ID
func (h *JobHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	j, err := h.queue.GetJob(chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	jsonResponse(w, j, http.StatusOK)
}

// CancelJob cancels a pending or running job, or removes a finished one
func (h *JobHandler) CancelJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	j, err := h.queue.GetJob(id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	if j.Status.Terminal() {
		err = h.queue.DeleteJob(id)
	} else {
		err = h.queue.CancelJob(id)
	}
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// RetryJob re-queues a failed or cancelled job
func (h *JobHandler) RetryJob(w http.ResponseWriter, r *http.Request) {
	j, err := h.queue.RetryJob(chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	jsonResponse(w, j, http.StatusOK)
}
