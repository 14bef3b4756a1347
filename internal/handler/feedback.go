package handler

import (
	"net/http"

	"github.com/templui/feedbackloop/internal/service"
)

// ProjectKeyHeader carries the project API key on widget submissions.
const ProjectKeyHeader = "X-Project-Key"

type feedbackHandler struct {
	ingestService *service.IngestService
	isDev         bool
}

func NewFeedbackHandler(ingestService *service.IngestService, isDev bool) *feedbackHandler {
	return &feedbackHandler{
		ingestService: ingestService,
		isDev:         isDev,
	}
}

type submitResponse struct {
	Success       bool   `json:"success"`
	ID            string `json:"id"`
	Message       string `json:"message"`
	MediaUploaded int    `json:"mediaUploaded"`
}

// Submit ingests one widget submission. The body is only read after the
// project key checks out.
func (h *feedbackHandler) Submit(w http.ResponseWriter, r *http.Request) {
	cfg := h.ingestService.Config()
	r.Body = http.MaxBytesReader(w, r.Body, cfg.MaxBodySize())

	result, err := h.ingestService.Submit(r.Context(), service.IngestRequest{
		APIKey:      r.Header.Get(ProjectKeyHeader),
		Origin:      r.Header.Get("Origin"),
		ContentType: r.Header.Get("Content-Type"),
		UserAgent:   r.UserAgent(),
		Body:        r.Body,
	})
	if err != nil {
		writeError(w, r, err, h.isDev)
		return
	}

	writeJSON(w, http.StatusOK, submitResponse{
		Success:       true,
		ID:            result.FeedbackID,
		Message:       "Feedback submitted successfully",
		MediaUploaded: result.MediaUploaded,
	})
}
