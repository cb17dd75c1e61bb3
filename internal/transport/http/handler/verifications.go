package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-employment-verify/internal/application/verification"
	"github.com/go-employment-verify/internal/domain"
	"github.com/go-employment-verify/internal/transport/http/middleware"
)

// VerificationHandler serves the authenticated verification endpoints.
type VerificationHandler struct {
	svc verification.Service
}

func NewVerificationHandler(svc verification.Service) *VerificationHandler {
	return &VerificationHandler{svc: svc}
}

func (h *VerificationHandler) Create(w http.ResponseWriter, r *http.Request) {
	req, ok := requester(w, r)
	if !ok {
		return
	}
	var in domain.CreateVerificationRequest
	if !decodeJSON(w, r, &in) {
		return
	}
	v, err := h.svc.Create(r.Context(), req, in)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, v)
}

func (h *VerificationHandler) List(w http.ResponseWriter, r *http.Request) {
	req, ok := requester(w, r)
	if !ok {
		return
	}
	f, err := parseListFilter(r)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	list, err := h.svc.List(r.Context(), req, f)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if list == nil {
		list = []domain.Verification{}
	}
	writeJSON(w, http.StatusOK, ListEnvelope{Count: len(list), Data: list})
}

func (h *VerificationHandler) Get(w http.ResponseWriter, r *http.Request) {
	req, ok := requester(w, r)
	if !ok {
		return
	}
	view, err := h.svc.Get(r.Context(), req, chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *VerificationHandler) RetryOutreach(w http.ResponseWriter, r *http.Request) {
	req, ok := requester(w, r)
	if !ok {
		return
	}
	if err := h.svc.RetryOutreach(r.Context(), req, chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, MessageEnvelope{Message: "outreach enqueued"})
}

func (h *VerificationHandler) RequestWorkEmail(w http.ResponseWriter, r *http.Request) {
	req, ok := requester(w, r)
	if !ok {
		return
	}
	var in domain.WorkEmailRequest
	if !decodeJSON(w, r, &in) {
		return
	}
	e, err := h.svc.RequestWorkEmail(r.Context(), req, chi.URLParam(r, "id"), in)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, e)
}

func (h *VerificationHandler) UploadDocument(w http.ResponseWriter, r *http.Request) {
	req, ok := requester(w, r)
	if !ok {
		return
	}
	var in domain.DocumentUploadRequest
	if !decodeJSON(w, r, &in) {
		return
	}
	e, err := h.svc.UploadDocument(r.Context(), req, chi.URLParam(r, "id"), in)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, e)
}

// UploadResume seeds verifications from a resume. When the quota blocks every
// employer the partial result is still returned alongside the 402.
func (h *VerificationHandler) UploadResume(w http.ResponseWriter, r *http.Request) {
	req, ok := requester(w, r)
	if !ok {
		return
	}
	var in domain.ResumeUploadRequest
	if !decodeJSON(w, r, &in) {
		return
	}
	res, err := h.svc.SeedFromResume(r.Context(), req, in)
	if err != nil {
		if res != nil && errors.Is(err, domain.ErrQuotaExceeded) {
			writeJSON(w, http.StatusPaymentRequired, res)
			return
		}
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func requester(w http.ResponseWriter, r *http.Request) (domain.Requester, bool) {
	req, ok := middleware.RequesterFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
	}
	return req, ok
}

func parseListFilter(r *http.Request) (domain.ListFilter, error) {
	q := r.URL.Query()
	var f domain.ListFilter
	if s := strings.TrimSpace(q.Get("status")); s != "" {
		f.Status = domain.Status(strings.ToUpper(s))
	}
	if s := strings.TrimSpace(q.Get("final_result")); s != "" {
		res, ok := domain.ParseResult(s)
		if !ok {
			return f, fmt.Errorf("unknown final_result %q: %w", s, domain.ErrBadRequest)
		}
		f.FinalResult = res
	}
	if s := q.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			return f, fmt.Errorf("limit must be a non-negative integer: %w", domain.ErrBadRequest)
		}
		f.Limit = n
	}
	return f, nil
}
