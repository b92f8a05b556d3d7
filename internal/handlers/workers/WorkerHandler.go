package workers

import (
	"net/http"

	"github.com/gorilla/mux"

	"gitlab.com/baseline-2025.net/internal/core/services/worker"
	"gitlab.com/baseline-2025.net/internal/domain"
	"gitlab.com/baseline-2025.net/internal/handlers"
)

type ApiHandler struct {
	WorkerService worker.IWorkerRegistrationService
}

func NewHandler(WorkerService worker.IWorkerRegistrationService) *ApiHandler {
	return &ApiHandler{
		WorkerService: WorkerService,
	}
}

func (api *ApiHandler) Register(r *mux.Router) {
	r.HandleFunc("/api/workers", api.GetWorkers).Methods("GET")
}

// GetWorkers lists registered workers; ?type= restricts to available workers of a type
func (api *ApiHandler) GetWorkers(w http.ResponseWriter, r *http.Request) {
	var (
		list []*domain.WorkerInfo
		err  error
	)
	if workerType := r.URL.Query().Get("type"); workerType != "" {
		list, err = api.WorkerService.GetAvailableWorkers(r.Context(), workerType)
	} else {
		list, err = api.WorkerService.GetAllWorkers(r.Context())
	}
	if err != nil {
		handlers.ResponseError(w, "Failed to get workers", http.StatusInternalServerError)
		return
	}

	handlers.ResponseWithJson(w, http.StatusOK, map[string][]*domain.WorkerInfo{"workers": list})
}
