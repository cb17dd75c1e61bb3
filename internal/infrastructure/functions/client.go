package functions

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-employment-verify/internal/domain"
)

// Function names served by the backend functions API.
const (
	fnAnalyzeResume     = "analyze-resume"
	fnDiscoverHRContact = "discover-hr-contact"
	fnPlaceCall         = "place-call"
	fnGetCallStatus     = "get-call-status"
	fnCreateAttestation = "create-attestation"
)

// Client calls the external functions used by the workflow: resume analysis,
// HR contact discovery, call placement and attestation.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: timeout},
	}
}

func (c *Client) AnalyzeResume(ctx context.Context, in domain.ResumeInput) (*domain.ResumeAnalysis, error) {
	var out domain.ResumeAnalysis
	if err := c.post(ctx, fnAnalyzeResume, in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DiscoverHRContact returns nil without error when nothing was found.
func (c *Client) DiscoverHRContact(ctx context.Context, companyName, companyDomain string) (*domain.ContactInfo, error) {
	payload := map[string]string{"companyName": companyName, "domain": companyDomain}
	var out struct {
		Found   bool               `json:"found"`
		Contact domain.ContactInfo `json:"contact"`
	}
	if err := c.post(ctx, fnDiscoverHRContact, payload, &out); err != nil {
		return nil, err
	}
	if !out.Found || out.Contact.Empty() {
		return nil, nil
	}
	return &out.Contact, nil
}

// PlaceCall starts an outbound call and returns the call service's id.
func (c *Client) PlaceCall(ctx context.Context, req domain.CallRequest) (string, error) {
	var out struct {
		CallID string `json:"callId"`
	}
	if err := c.post(ctx, fnPlaceCall, req, &out); err != nil {
		return "", err
	}
	if out.CallID == "" {
		return "", fmt.Errorf("%s: empty call id: %w", fnPlaceCall, domain.ErrExternalService)
	}
	return out.CallID, nil
}

func (c *Client) GetCallStatus(ctx context.Context, externalCallID string) (*domain.CallState, error) {
	var out struct {
		Status             string `json:"status"`
		VerificationResult string `json:"verificationResult"`
		EndedReason        string `json:"endedReason"`
		Transcript         string `json:"transcript"`
		RecordingURL       string `json:"recordingUrl"`
		AttestationCreated bool   `json:"attestationCreated"`
		AttestationUID     string `json:"attestationUid"`
	}
	if err := c.post(ctx, fnGetCallStatus, map[string]string{"callId": externalCallID}, &out); err != nil {
		return nil, err
	}
	return &domain.CallState{
		Ended:              out.Status == "ended",
		VerificationResult: out.VerificationResult,
		EndedReason:        out.EndedReason,
		Transcript:         out.Transcript,
		RecordingURL:       out.RecordingURL,
		AttestationCreated: out.AttestationCreated,
		AttestationUID:     out.AttestationUID,
	}, nil
}

// CreateAttestation records the verification outcome and returns its UID.
func (c *Client) CreateAttestation(ctx context.Context, req domain.AttestationRequest) (string, error) {
	var out struct {
		UID string `json:"attestationUid"`
	}
	if err := c.post(ctx, fnCreateAttestation, req, &out); err != nil {
		return "", err
	}
	if out.UID == "" {
		return "", fmt.Errorf("%s: empty attestation uid: %w", fnCreateAttestation, domain.ErrExternalService)
	}
	return out.UID, nil
}

func (c *Client) post(ctx context.Context, name string, payload any, v any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/functions/"+name, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %v: %w", name, err, domain.ErrExternalService)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s: unexpected status %s: %s: %w", name, resp.Status, bytes.TrimSpace(msg), domain.ErrExternalService)
	}
	if v == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("%s: decode response: %v: %w", name, err, domain.ErrExternalService)
	}
	return nil
}
