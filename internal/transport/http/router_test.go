package http

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-employment-verify/internal/config"
	"github.com/go-employment-verify/internal/obs"
	"github.com/stretchr/testify/assert"
)

func TestRouter_PublicAndGuardedRoutes(t *testing.T) {
	obs.Init()
	cfg := &config.Config{AllowedOrigins: []string{"*"}, WebhookSecret: "s3cret"}
	h := NewRouter(cfg, &Deps{})

	tests := []struct {
		name   string
		method string
		path   string
		header map[string]string
		want   int
	}{
		{"health", http.MethodGet, "/v1/health-check/ping", nil, http.StatusOK},
		{"metrics", http.MethodGet, "/metrics", nil, http.StatusOK},
		{"verifications need auth", http.MethodGet, "/v1/verifications", nil, http.StatusUnauthorized},
		{"webhook needs secret", http.MethodPost, "/v1/webhooks/calls", nil, http.StatusUnauthorized},
		{"webhook with secret reaches handler", http.MethodPost, "/v1/webhooks/calls",
			map[string]string{"X-Webhook-Secret": "s3cret"}, http.StatusBadRequest},
		{"consent link method", http.MethodPut, "/v1/consent/tok", nil, http.StatusMethodNotAllowed},
		{"unknown route", http.MethodGet, "/v1/nope", nil, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			for k, v := range tt.header {
				req.Header.Set(k, v)
			}
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, req)
			assert.Equal(t, tt.want, rr.Code)
		})
	}
}
