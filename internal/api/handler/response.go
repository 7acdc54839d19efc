package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// JSON writes data as an application/json response. Nil data writes the
// status line alone.
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data == nil {
		return
	}

	if err := json.NewEncoder(w).Encode(data); err != nil {
		// The status line is already out, so the client gets a truncated
		// body. Nothing useful is left to send.
		slog.Error("failed to encode response", "error", err)
	}
}

// ErrorResponse is the wire shape of every error the API returns.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// Error writes a machine-readable error code plus a human-readable message.
func Error(w http.ResponseWriter, status int, code string, message string) {
	JSON(w, status, ErrorResponse{Error: code, Message: message})
}
