package apihttp

import (
	"encoding/json"
	"errors"
	"net/http"

	"adpipeline/internal/domain"
)

type errorEnvelope struct {
	Error errorPayload `json:"error"`
}

type errorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorEnvelope{Error: errorPayload{Code: code, Message: message}})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// writeJobError classifies a pipeline or repository error onto an HTTP
// status using its domain.ErrorKind.
func writeJobError(w http.ResponseWriter, err error) {
	if errors.Is(err, domain.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not_found", "job not found")
		return
	}
	if errors.Is(err, domain.ErrForbidden) {
		writeError(w, http.StatusForbidden, "forbidden", "not the owner of this job")
		return
	}
	var stageErr *domain.StageError
	if errors.As(err, &stageErr) {
		if stageErr.Kind == domain.ErrorKindInvalidInput {
			writeError(w, http.StatusBadRequest, "invalid_request", stageErr.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, string(stageErr.Kind), stageErr.Error())
		return
	}
	writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
}
