package batches

import (
	"net/http"

	"github.com/gorilla/mux"

	"gitlab.com/baseline-2025.net/internal/core/ports/primary"
	"gitlab.com/baseline-2025.net/internal/core/services/batch"
	"gitlab.com/baseline-2025.net/internal/core/services/suite"
	"gitlab.com/baseline-2025.net/internal/domain"
	"gitlab.com/baseline-2025.net/internal/handlers"
	"gitlab.com/baseline-2025.net/internal/handlers/response"
)

// BatchHandler exposes the batch lifecycle and its query views
type BatchHandler struct {
	batches batch.IBatchService
	suites  suite.ISuiteService
	logger  primary.Logger
}

func NewBatchHandler(batches batch.IBatchService, suites suite.ISuiteService, logger primary.Logger) *BatchHandler {
	return &BatchHandler{
		batches: batches,
		suites:  suites,
		logger:  logger,
	}
}

func (h *BatchHandler) RegisterRoutes(public, operator *mux.Router) {
	public.HandleFunc("/api/batches/{batchId}", h.GetBatch).Methods("GET")
	public.HandleFunc("/api/batches/{batchId}/overview", h.GetOverview).Methods("GET")
	public.HandleFunc("/api/batches/{batchId}/elements", h.ListElements).Methods("GET")
	public.HandleFunc("/api/elements/{elementId}/comparison", h.GetComparison).Methods("GET")

	operator.HandleFunc("/api/batches/{batchId}/seal", h.Seal).Methods("POST")
	operator.HandleFunc("/api/batches/{batchId}/promote", h.Promote).Methods("POST")
	operator.HandleFunc("/api/batches/{batchId}/archive", h.Archive).Methods("POST")
	operator.HandleFunc("/api/batches/{batchId}", h.Remove).Methods("DELETE")
}

func (h *BatchHandler) GetBatch(w http.ResponseWriter, r *http.Request) {
	b, ok := h.load(w, r)
	if ok {
		response.WriteSuccess(w, b)
	}
}

func (h *BatchHandler) GetOverview(w http.ResponseWriter, r *http.Request) {
	batchID, err := handlers.PathUUID(r, "batchId")
	if err != nil {
		response.FromError(w, err)
		return
	}
	overview, err := h.batches.GetBatchOverview(r.Context(), batchID)
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.WriteSuccess(w, overview)
}

func (h *BatchHandler) ListElements(w http.ResponseWriter, r *http.Request) {
	batchID, err := handlers.PathUUID(r, "batchId")
	if err != nil {
		response.FromError(w, err)
		return
	}
	elements, err := h.batches.ListElements(r.Context(), batchID)
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.WriteSuccess(w, map[string][]*domain.Element{"elements": elements})
}

func (h *BatchHandler) GetComparison(w http.ResponseWriter, r *http.Request) {
	elementID, err := handlers.PathUUID(r, "elementId")
	if err != nil {
		response.FromError(w, err)
		return
	}
	comparison, err := h.batches.GetComparisonResult(r.Context(), elementID)
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.WriteSuccess(w, comparison)
}

func (h *BatchHandler) Seal(w http.ResponseWriter, r *http.Request) {
	b, ok := h.authorize(w, r)
	if !ok {
		return
	}
	sealed, err := h.batches.RequestSeal(r.Context(), b.ID)
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.WriteStatus(w, http.StatusAccepted, sealed)
}

func (h *BatchHandler) Promote(w http.ResponseWriter, r *http.Request) {
	b, ok := h.authorize(w, r)
	if !ok {
		return
	}
	promoted, err := h.batches.RequestPromotion(r.Context(), b.ID, handlers.Actor(r))
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.WriteStatus(w, http.StatusAccepted, promoted)
}

func (h *BatchHandler) Archive(w http.ResponseWriter, r *http.Request) {
	b, ok := h.authorize(w, r)
	if !ok {
		return
	}
	archived, err := h.batches.ArchiveBatch(r.Context(), b.ID)
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.WriteSuccess(w, archived)
}

func (h *BatchHandler) Remove(w http.ResponseWriter, r *http.Request) {
	b, ok := h.authorize(w, r)
	if !ok {
		return
	}
	if err := h.batches.RemoveBatch(r.Context(), b.ID, handlers.Actor(r)); err != nil {
		response.FromError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *BatchHandler) load(w http.ResponseWriter, r *http.Request) (*domain.Batch, bool) {
	batchID, err := handlers.PathUUID(r, "batchId")
	if err != nil {
		response.FromError(w, err)
		return nil, false
	}
	b, err := h.batches.GetBatch(r.Context(), batchID)
	if err != nil {
		response.FromError(w, err)
		return nil, false
	}
	return b, true
}

// authorize loads the batch and checks the caller's team owns its suite
func (h *BatchHandler) authorize(w http.ResponseWriter, r *http.Request) (*domain.Batch, bool) {
	b, ok := h.load(w, r)
	if !ok {
		return nil, false
	}
	s, err := h.suites.GetSuite(r.Context(), b.SuiteID)
	if err != nil {
		response.FromError(w, err)
		return nil, false
	}
	if !handlers.CanAccessTeam(r, s.TeamSlug) {
		response.WriteError(w, response.ErrorMessage{Message: "Forbidden", StatusCode: http.StatusForbidden})
		return nil, false
	}
	return b, true
}
