package handler

import (
	"context"
	"net/http"

	"github.com/go-employment-verify/internal/application/outreach"
	"github.com/go-employment-verify/internal/domain"
	"github.com/go-employment-verify/internal/pkg/validate"
)

type callReporter interface {
	HandleCallReport(ctx context.Context, report domain.CallReport) (*outreach.CallOutcome, error)
}

// WebhookHandler receives call completion callbacks from the call service.
type WebhookHandler struct {
	calls callReporter
}

func NewWebhookHandler(calls callReporter) *WebhookHandler {
	return &WebhookHandler{calls: calls}
}

func (h *WebhookHandler) Call(w http.ResponseWriter, r *http.Request) {
	var report domain.CallReport
	if !decodeJSON(w, r, &report) {
		return
	}
	if err := validate.Struct(report); err != nil {
		writeServiceError(w, r, err)
		return
	}
	out, err := h.calls.HandleCallReport(r.Context(), report)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}
