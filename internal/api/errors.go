package api

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/nhatai1995/DreamSight-AI/internal/logging"
)

// ErrorResponse is the error envelope. Detail is either a message string or
// a structured object (quota errors carry an upgrade hint).
type ErrorResponse struct {
	Detail any `json:"detail"`
}

// oracleBusyMessage is served for any unexpected downstream failure.
const oracleBusyMessage = "The Oracle is meditating (Service busy). Please try again."

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logging.Named(logging.CategoryAPI).Error("failed to encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, detail any) {
	writeJSON(w, status, ErrorResponse{Detail: detail})
}
