package functions

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-employment-verify/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, "secret", time.Second)
}

func TestPlaceCall_SendsAuthAndPayload(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/functions/place-call", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		var req domain.CallRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "+14155550100", req.PhoneNumber)
		_, _ = w.Write([]byte(`{"callId":"call_123"}`))
	})

	id, err := c.PlaceCall(context.Background(), domain.CallRequest{PhoneNumber: "+14155550100"})
	require.NoError(t, err)
	assert.Equal(t, "call_123", id)
}

func TestPlaceCall_ServerErrorIsExternal(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	})
	_, err := c.PlaceCall(context.Background(), domain.CallRequest{})
	assert.ErrorIs(t, err, domain.ErrExternalService)
	assert.ErrorContains(t, err, "boom")
}

func TestGetCallStatus_MapsEnded(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"status":"ended","verificationResult":"yes","transcript":"hi","attestationCreated":true,"attestationUid":"0xabc"}`))
	})
	st, err := c.GetCallStatus(context.Background(), "call_123")
	require.NoError(t, err)
	assert.True(t, st.Ended)
	assert.Equal(t, "yes", st.VerificationResult)
	assert.Equal(t, "0xabc", st.AttestationUID)
}

func TestDiscoverHRContact_NotFound(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"found":false}`))
	})
	info, err := c.DiscoverHRContact(context.Background(), "Acme", "acme.com")
	require.NoError(t, err)
	assert.Nil(t, info)
}

func TestDiscoverHRContact_Found(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"found":true,"contact":{"email":"hr@acme.com","confidence":0.8,"source":"registry"}}`))
	})
	info, err := c.DiscoverHRContact(context.Background(), "Acme", "acme.com")
	require.NoError(t, err)
	require.NotNil(t, info)
	assert.Equal(t, "hr@acme.com", info.Email)
}

func TestCreateAttestation_EmptyUID(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	})
	_, err := c.CreateAttestation(context.Background(), domain.AttestationRequest{Result: domain.ResultYes})
	assert.ErrorIs(t, err, domain.ErrExternalService)
}

func TestAnalyzeResume(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"candidateName":"Ada","candidateEmail":"ada@example.com","employers":[{"companyName":"Acme","jobTitle":"Engineer"}]}`))
	})
	a, err := c.AnalyzeResume(context.Background(), domain.ResumeInput{FileURL: "https://x/cv.pdf"})
	require.NoError(t, err)
	require.Len(t, a.Employers, 1)
	assert.Equal(t, "Acme", a.Employers[0].CompanyName)
}
