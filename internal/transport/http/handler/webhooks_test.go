package handler

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-employment-verify/internal/application/outreach"
	"github.com/go-employment-verify/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestCallWebhook(t *testing.T) {
	t.Run("completes call", func(t *testing.T) {
		o := &mockOutreach{}
		report := domain.CallReport{ExternalCallID: "ext-1", Ended: true, Result: "YES"}
		o.On("HandleCallReport", mock.Anything, report).
			Return(&outreach.CallOutcome{VerificationID: "v1", CallID: "c1", Result: domain.ResultYes, Ended: true}, nil)

		rr := serve("/v1/webhooks/calls", NewWebhookHandler(o).Call,
			httptest.NewRequest(http.MethodPost, "/v1/webhooks/calls", jsonBody(t, report)), nil)

		require.Equal(t, http.StatusOK, rr.Code)
		got := decodeBody[outreach.CallOutcome](t, rr)
		assert.Equal(t, domain.ResultYes, got.Result)
		assert.True(t, got.Ended)
	})

	t.Run("missing call id", func(t *testing.T) {
		o := &mockOutreach{}
		rr := serve("/v1/webhooks/calls", NewWebhookHandler(o).Call,
			httptest.NewRequest(http.MethodPost, "/v1/webhooks/calls", bytes.NewBufferString(`{"ended":true}`)), nil)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		o.AssertNotCalled(t, "HandleCallReport", mock.Anything, mock.Anything)
	})

	t.Run("unknown call", func(t *testing.T) {
		o := &mockOutreach{}
		report := domain.CallReport{ExternalCallID: "ext-x", Ended: true}
		o.On("HandleCallReport", mock.Anything, report).Return(nil, domain.ErrNotFound)

		rr := serve("/v1/webhooks/calls", NewWebhookHandler(o).Call,
			httptest.NewRequest(http.MethodPost, "/v1/webhooks/calls", jsonBody(t, report)), nil)
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})
}
