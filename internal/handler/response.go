package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/templui/feedbackloop/internal/ctxkeys"
	"github.com/templui/feedbackloop/internal/service"
)

type errorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	err := json.NewEncoder(w).Encode(v)
	if err != nil {
		slog.Error("failed to write response", "error", err)
	}
}

// writeError maps a pipeline error to its status and a stable JSON body.
// Internal causes are only exposed as details in development.
func writeError(w http.ResponseWriter, r *http.Request, err error, isDev bool) {
	kind := service.KindOf(err)
	status := kind.HTTPStatus()

	resp := errorResponse{Error: "Internal server error"}
	var serr *service.Error
	if errors.As(err, &serr) {
		resp.Error = serr.Message
	}

	requestID := ctxkeys.RequestID(r.Context())
	if status >= http.StatusInternalServerError {
		slog.Error("request failed", "error", err, "kind", kind, "request_id", requestID)
		if isDev {
			resp.Details = err.Error()
		}
	} else {
		slog.Info("request rejected", "kind", kind, "reason", resp.Error, "request_id", requestID)
	}

	writeJSON(w, status, resp)
}

// NotFound is the JSON fallback for unknown routes.
func NotFound(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, errorResponse{Error: "Not found"})
}

// MethodNotAllowed answers known paths hit with the wrong method.
func MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Allow", "POST, OPTIONS")
	writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "Method not allowed"})
}
