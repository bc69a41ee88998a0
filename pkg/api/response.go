package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"approval-ledger/pkg/logging"
	"approval-ledger/pkg/workflow"

	"go.uber.org/zap"
)

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Message string `json:"message"`
	Error   string `json:"error"`
	Field   string `json:"field,omitempty"`
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeMessage writes {"message": msg}.
func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"message": msg})
}

// writeError maps a workflow error to its status code. resource names the
// record kind in not-found messages, e.g. "Transaction".
func writeError(w http.ResponseWriter, r *http.Request, err error, resource string) {
	status, body := errorResponse(err, resource)

	log := logging.FromContext(r.Context())
	if status >= http.StatusInternalServerError {
		log.Error("request failed", zap.Int("status", status), zap.Error(err))
	} else {
		log.Debug("request rejected", zap.Int("status", status), zap.Error(err))
	}

	writeJSON(w, status, body)
}

func errorResponse(err error, resource string) (int, errorBody) {
	var verr *workflow.ValidationError
	switch {
	case errors.As(err, &verr):
		msg := verr.Error()
		if verr.Field == "" {
			msg = verr.Message
		}
		return http.StatusBadRequest, errorBody{Message: msg, Error: "validation_failed", Field: verr.Field}
	case errors.Is(err, errBodyTooLarge):
		return http.StatusRequestEntityTooLarge, errorBody{Message: "Request body too large", Error: err.Error()}
	case errors.Is(err, workflow.ErrNotFound):
		return http.StatusNotFound, errorBody{Message: resource + " not found", Error: err.Error()}
	case errors.Is(err, workflow.ErrForbidden):
		return http.StatusForbidden, errorBody{Message: "Not allowed to modify this " + lower(resource), Error: err.Error()}
	case errors.Is(err, workflow.ErrInvalidTransition):
		return http.StatusConflict, errorBody{Message: resource + " has already been decided", Error: err.Error()}
	default:
		return http.StatusInternalServerError, errorBody{Message: "Internal server error", Error: err.Error()}
	}
}

func lower(s string) string {
	b := []byte(s)
	if len(b) > 0 && b[0] >= 'A' && b[0] <= 'Z' {
		b[0] += 'a' - 'A'
	}
	return string(b)
}
