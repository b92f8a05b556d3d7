package suites

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"gitlab.com/baseline-2025.net/internal/core/ports/primary"
	"gitlab.com/baseline-2025.net/internal/core/services/batch"
	"gitlab.com/baseline-2025.net/internal/core/services/suite"
	"gitlab.com/baseline-2025.net/internal/domain"
	"gitlab.com/baseline-2025.net/internal/handlers"
	"gitlab.com/baseline-2025.net/internal/handlers/response"
)

type SuiteHandler struct {
	suites  suite.ISuiteService
	batches batch.IBatchService
	logger  primary.Logger
}

func NewSuiteHandler(suites suite.ISuiteService, batches batch.IBatchService, logger primary.Logger) *SuiteHandler {
	return &SuiteHandler{
		suites:  suites,
		batches: batches,
		logger:  logger,
	}
}

// RegisterRoutes mounts reads on public and mutations on operator
func (h *SuiteHandler) RegisterRoutes(public, operator *mux.Router) {
	public.HandleFunc("/api/teams/{team}/suites", h.ListSuites).Methods("GET")
	public.HandleFunc("/api/teams/{team}/suites/{suite}", h.GetSuite).Methods("GET")
	public.HandleFunc("/api/teams/{team}/suites/{suite}/batches", h.ListBatches).Methods("GET")
	public.HandleFunc("/api/teams/{team}/suites/{suite}/promotions", h.ListPromotions).Methods("GET")

	operator.HandleFunc("/api/teams/{team}/suites", h.CreateSuite).Methods("POST")
	operator.HandleFunc("/api/teams/{team}/suites/{suite}", h.RemoveSuite).Methods("DELETE")
	operator.HandleFunc("/api/teams/{team}/suites/{suite}/subscribers/{subscriber}", h.Subscribe).Methods("PUT")
	operator.HandleFunc("/api/teams/{team}/suites/{suite}/subscribers/{subscriber}", h.Unsubscribe).Methods("DELETE")
}

type CreateSuiteRequest struct {
	Slug string `json:"slug"`
	Name string `json:"name"`
}

func (h *SuiteHandler) CreateSuite(w http.ResponseWriter, r *http.Request) {
	team := mux.Vars(r)["team"]
	if !h.authorized(w, r, team) {
		return
	}
	var req CreateSuiteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Error("Failed to decode request", "error", err)
		response.WriteError(w, response.ErrorMessage{Message: "Invalid request", StatusCode: http.StatusBadRequest})
		return
	}

	created, err := h.suites.CreateSuite(r.Context(), team, req.Slug, req.Name)
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.WriteStatus(w, http.StatusCreated, created)
}

func (h *SuiteHandler) ListSuites(w http.ResponseWriter, r *http.Request) {
	list, err := h.suites.ListSuites(r.Context(), mux.Vars(r)["team"])
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.WriteSuccess(w, map[string][]*domain.Suite{"suites": list})
}

func (h *SuiteHandler) lookup(w http.ResponseWriter, r *http.Request) (*domain.Suite, bool) {
	vars := mux.Vars(r)
	s, err := h.suites.GetSuiteBySlug(r.Context(), vars["team"], vars["suite"])
	if err != nil {
		response.FromError(w, err)
		return nil, false
	}
	return s, true
}

func (h *SuiteHandler) authorized(w http.ResponseWriter, r *http.Request, team string) bool {
	if handlers.CanAccessTeam(r, team) {
		return true
	}
	response.WriteError(w, response.ErrorMessage{Message: "Forbidden", StatusCode: http.StatusForbidden})
	return false
}

func (h *SuiteHandler) GetSuite(w http.ResponseWriter, r *http.Request) {
	if s, ok := h.lookup(w, r); ok {
		response.WriteSuccess(w, s)
	}
}

func (h *SuiteHandler) ListBatches(w http.ResponseWriter, r *http.Request) {
	s, ok := h.lookup(w, r)
	if !ok {
		return
	}
	list, err := h.batches.ListBatches(r.Context(), s.ID)
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.WriteSuccess(w, map[string][]*domain.Batch{"batches": list})
}

func (h *SuiteHandler) ListPromotions(w http.ResponseWriter, r *http.Request) {
	s, ok := h.lookup(w, r)
	if !ok {
		return
	}
	records, err := h.suites.ListPromotions(r.Context(), s.ID)
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.WriteSuccess(w, map[string][]*domain.PromotionRecord{"promotions": records})
}

func (h *SuiteHandler) RemoveSuite(w http.ResponseWriter, r *http.Request) {
	if !h.authorized(w, r, mux.Vars(r)["team"]) {
		return
	}
	s, ok := h.lookup(w, r)
	if !ok {
		return
	}
	if err := h.batches.RemoveSuite(r.Context(), s.ID, handlers.Actor(r)); err != nil {
		response.FromError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *SuiteHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	h.subscription(w, r, h.suites.Subscribe)
}

func (h *SuiteHandler) Unsubscribe(w http.ResponseWriter, r *http.Request) {
	h.subscription(w, r, h.suites.Unsubscribe)
}

type subscriptionFunc func(ctx context.Context, suiteID uuid.UUID, subscriber string) (*domain.Suite, error)

func (h *SuiteHandler) subscription(w http.ResponseWriter, r *http.Request, apply subscriptionFunc) {
	if !h.authorized(w, r, mux.Vars(r)["team"]) {
		return
	}
	s, ok := h.lookup(w, r)
	if !ok {
		return
	}
	updated, err := apply(r.Context(), s.ID, mux.Vars(r)["subscriber"])
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.WriteSuccess(w, updated)
}
