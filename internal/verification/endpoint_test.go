package verification_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gitlab-triage/event-triage-pipeline/internal/verification"
)

// richTrustList reports domain_verified and user_verified independently, the
// shape *trust.List actually satisfies.
type richTrustList struct {
	domainVerified map[string]bool
	userVerified   map[string]bool
}

func (l *richTrustList) Trusted(email string) bool {
	return l.domainVerified[email] || l.userVerified[email]
}

func (l *richTrustList) DomainVerified(email string) bool { return l.domainVerified[email] }
func (l *richTrustList) UserVerified(email string) bool   { return l.userVerified[email] }

// narrowTrustList only exposes the combined decision, exercising the
// handler's fallback branch.
type narrowTrustList struct {
	trusted map[string]bool
}

func (l *narrowTrustList) Trusted(email string) bool { return l.trusted[email] }

func postVerifyEmail(t *testing.T, handler http.Handler, email string) verifyEmailResponse {
	t.Helper()
	body := strings.NewReader(`{"email":"` + email + `"}`)
	req := httptest.NewRequest(http.MethodPost, "/verify_email", body)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var resp verifyEmailResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	return resp
}

type verifyEmailResponse struct {
	Email          string `json:"email"`
	DomainVerified bool   `json:"domain_verified"`
	UserVerified   bool   `json:"user_verified"`
}

func TestVerifyEmailHandler_ReportsFieldsIndependently(t *testing.T) {
	list := &richTrustList{
		domainVerified: map[string]bool{"alice@trusted-corp.com": true},
		userVerified:   map[string]bool{},
	}
	handler := &verification.VerifyEmailHandler{TrustList: list}

	resp := postVerifyEmail(t, handler, "alice@trusted-corp.com")
	assert.True(t, resp.DomainVerified)
	assert.False(t, resp.UserVerified)
}

func TestVerifyEmailHandler_UserVerifiedWithoutDomain(t *testing.T) {
	list := &richTrustList{
		domainVerified: map[string]bool{},
		userVerified:   map[string]bool{"bob@example.com": true},
	}
	handler := &verification.VerifyEmailHandler{TrustList: list}

	resp := postVerifyEmail(t, handler, "bob@example.com")
	assert.False(t, resp.DomainVerified)
	assert.True(t, resp.UserVerified)
}

func TestVerifyEmailHandler_NarrowTrustList_CollapsesToCombinedValue(t *testing.T) {
	list := &narrowTrustList{trusted: map[string]bool{"carol@example.com": true}}
	handler := &verification.VerifyEmailHandler{TrustList: list}

	resp := postVerifyEmail(t, handler, "carol@example.com")
	assert.True(t, resp.DomainVerified)
	assert.True(t, resp.UserVerified)
}

func TestVerifyEmailHandler_RejectsNonPOST(t *testing.T) {
	handler := &verification.VerifyEmailHandler{TrustList: &narrowTrustList{trusted: map[string]bool{}}}
	req := httptest.NewRequest(http.MethodGet, "/verify_email", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}
