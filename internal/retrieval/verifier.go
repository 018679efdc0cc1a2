package retrieval

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// HTTPEmailVerifier implements EmailVerifier by calling the verification
// service's POST /verify_email endpoint (spec §4.4).
type HTTPEmailVerifier struct {
	BaseURL    string
	HTTPClient *http.Client
}

type verifyEmailRequest struct {
	Email string `json:"email"`
}

type verifyEmailResponse struct {
	DomainVerified bool `json:"domain_verified"`
	UserVerified   bool `json:"user_verified"`
}

// Trusted reports whether email is domain- or user-verified.
func (v *HTTPEmailVerifier) Trusted(ctx context.Context, email string) (bool, error) {
	client := v.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}

	body, err := json.Marshal(verifyEmailRequest{Email: email})
	if err != nil {
		return false, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.BaseURL+"/verify_email", bytes.NewReader(body))
	if err != nil {
		return false, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("verify_email: unexpected status %d", resp.StatusCode)
	}

	var out verifyEmailResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return false, err
	}
	return out.DomainVerified || out.UserVerified, nil
}
