package response

import (
	"encoding/json"
	"errors"
	"net/http"

	"gitlab.com/baseline-2025.net/internal/static/errs"
)

type ErrorMessage struct {
	Message    string `json:"message"`
	StatusCode int    `json:"status_code"`
}

func WriteError(w http.ResponseWriter, err ErrorMessage) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(err.StatusCode)
	_ = json.NewEncoder(w).Encode(err)
}

func WriteSuccess(w http.ResponseWriter, data interface{}) {
	WriteStatus(w, http.StatusOK, data)
}

func WriteStatus(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(data)
}

// StatusOf maps a service error to its HTTP status
func StatusOf(err error) int {
	switch {
	case errors.Is(err, errs.InvalidArgument), errors.Is(err, errs.MalformedPayload):
		return http.StatusBadRequest
	case errors.Is(err, errs.SuiteNotFound), errors.Is(err, errs.BatchNotFound),
		errors.Is(err, errs.ElementNotFound), errors.Is(err, errs.JobNotFound):
		return http.StatusNotFound
	case errors.Is(err, errs.BatchNotOpen), errors.Is(err, errs.InvalidTransition),
		errors.Is(err, errs.ConcurrentUpdate), errors.Is(err, errs.BaselineMisconfiguration):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// FromError writes err with its mapped status. Internal errors are not echoed.
func FromError(w http.ResponseWriter, err error) {
	status := StatusOf(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = http.StatusText(status)
	}
	WriteError(w, ErrorMessage{Message: msg, StatusCode: status})
}
