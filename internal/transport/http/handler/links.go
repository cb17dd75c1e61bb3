package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-employment-verify/internal/application/consent"
	"github.com/go-employment-verify/internal/application/outreach"
	"github.com/go-employment-verify/internal/application/verification"
)

type consentRecorder interface {
	RecordDecision(ctx context.Context, token string, decision consent.Decision) (*consent.Outcome, error)
}

type employerResponder interface {
	ProcessEmailResponse(ctx context.Context, token, response string) (*outreach.EmailOutcome, error)
}

type workEmailConfirmer interface {
	ConfirmWorkEmail(ctx context.Context, token string) (*verification.EvidenceOutcome, error)
}

// LinkHandler serves the public single-use links sent by email. Each accepts
// GET (a click) and POST (a form), reading the choice from the query or form.
// The choice is only checked for links that are still pending, so reusing a
// link always reports already_processed.
type LinkHandler struct {
	consent   consentRecorder
	responses employerResponder
	workEmail workEmailConfirmer
}

func NewLinkHandler(c consentRecorder, resp employerResponder, we workEmailConfirmer) *LinkHandler {
	return &LinkHandler{consent: c, responses: resp, workEmail: we}
}

func (h *LinkHandler) Consent(w http.ResponseWriter, r *http.Request) {
	decision := consent.Decision(r.FormValue("decision"))
	out, err := h.consent.RecordDecision(r.Context(), chi.URLParam(r, "token"), decision)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, LinkEnvelope{
		Status:         linkStatus(out.AlreadyProcessed),
		VerificationID: out.VerificationID,
		Outcome:        string(out.Status),
	})
}

func (h *LinkHandler) EmployerResponse(w http.ResponseWriter, r *http.Request) {
	out, err := h.responses.ProcessEmailResponse(r.Context(), chi.URLParam(r, "token"), r.FormValue("response"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, LinkEnvelope{
		Status:         linkStatus(out.AlreadyProcessed),
		VerificationID: out.VerificationID,
		Outcome:        string(out.Status),
		Message:        "thank you, your response has been recorded",
	})
}

func (h *LinkHandler) WorkEmail(w http.ResponseWriter, r *http.Request) {
	out, err := h.workEmail.ConfirmWorkEmail(r.Context(), chi.URLParam(r, "token"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, LinkEnvelope{
		Status:         linkStatus(out.AlreadyProcessed),
		VerificationID: out.VerificationID,
		Outcome:        string(out.Status),
	})
}
