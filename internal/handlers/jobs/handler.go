package jobs

import (
	"net/http"

	"github.com/gorilla/mux"

	"gitlab.com/baseline-2025.net/internal/core/ports/primary"
	"gitlab.com/baseline-2025.net/internal/core/services/job"
	"gitlab.com/baseline-2025.net/internal/handlers"
	"gitlab.com/baseline-2025.net/internal/handlers/response"
	"gitlab.com/baseline-2025.net/internal/static/errs"
)

// JobHandler handles comparison job API requests
type JobHandler struct {
	queue  job.IJobQueue
	logger primary.Logger
}

var _ job.IJobQueue = &job.JobQueue{}

// NewJobHandler creates a new job handler
func NewJobHandler(queue job.IJobQueue, logger primary.Logger) *JobHandler {
	return &JobHandler{
		queue:  queue,
		logger: logger,
	}
}

// RegisterRoutes registers the API routes for JobHandler
func (h *JobHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/jobs/{jobId}", h.GetJob).Methods("GET")
	router.HandleFunc("/api/batches/{batchId}/jobs", h.ListJobs).Methods("GET")
}

// GetJob handles job retrieval requests
func (h *JobHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	jobID, err := handlers.PathUUID(r, "jobId")
	if err != nil {
		response.FromError(w, err)
		return
	}

	j, err := h.queue.GetJob(r.Context(), jobID)
	if err != nil {
		response.FromError(w, err)
		return
	}
	if j == nil {
		response.FromError(w, errs.JobNotFound)
		return
	}
	response.WriteSuccess(w, j)
}

// ListJobs lists the comparison jobs of a batch with a status summary
func (h *JobHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	batchID, err := handlers.PathUUID(r, "batchId")
	if err != nil {
		response.FromError(w, err)
		return
	}

	list, err := h.queue.ListJobs(r.Context(), batchID)
	if err != nil {
		response.FromError(w, err)
		return
	}
	resp := JobListResponse{Jobs: list, Counts: map[string]int{}}
	for _, j := range list {
		resp.Counts[string(j.Status)]++
	}
	response.WriteSuccess(w, resp)
}
