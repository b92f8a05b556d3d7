package submit

import (
	"io"
	"net/http"

	"github.com/gorilla/mux"

	"gitlab.com/baseline-2025.net/internal/core/ports/primary"
	"gitlab.com/baseline-2025.net/internal/core/services/submit"
	"gitlab.com/baseline-2025.net/internal/domain"
	"gitlab.com/baseline-2025.net/internal/handlers/response"
)

// maxPayloadBytes caps one testcase message
const maxPayloadBytes = 8 << 20

// IntakeHandler accepts testcase results from client libraries
type IntakeHandler struct {
	intake submit.IIntakeService
	logger primary.Logger
}

func NewIntakeHandler(intake submit.IIntakeService, logger primary.Logger) *IntakeHandler {
	return &IntakeHandler{
		intake: intake,
		logger: logger,
	}
}

func (h *IntakeHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/teams/{team}/suites/{suite}/versions/{version}/testcases/{testcase}", h.Submit).Methods("POST")
}

// Submit stores the request body as the testcase message
func (h *IntakeHandler) Submit(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxPayloadBytes))
	if err != nil {
		h.logger.Error("Failed to read submission", "error", err)
		response.WriteError(w, response.ErrorMessage{Message: "Invalid request", StatusCode: http.StatusBadRequest})
		return
	}

	element, err := h.intake.Submit(r.Context(), domain.Submission{
		TeamSlug:  vars["team"],
		SuiteSlug: vars["suite"],
		Version:   vars["version"],
		Testcase:  vars["testcase"],
		Payload:   payload,
	})
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.WriteStatus(w, http.StatusAccepted, element)
}
