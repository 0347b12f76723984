package protocol

import (
	"net/http"
	"strings"
	"time"
)

// ExpiryWindow is how far ahead of its expiry a bearer token is treated as
// already expired.
const ExpiryWindow = 24 * time.Hour

// OAuth2Credentials authenticate against the REST service. The adapter only
// reads them.
type OAuth2Credentials struct {
	Username    string
	BearerToken string
	// ExpiresAt is zero when the expiry is unknown; such tokens never count as
	// expired.
	ExpiresAt time.Time
}

// Validate checks that both the username and the token are present.
func (c *OAuth2Credentials) Validate() error {
	if strings.TrimSpace(c.Username) == "" {
		return &CredentialError{Reason: "username is required for OAuth2 credentials"}
	}
	if strings.TrimSpace(c.BearerToken) == "" {
		return &CredentialError{Reason: "bearer token is required for OAuth2 credentials"}
	}
	return nil
}

// IsExpired reports whether the token has expired or expires within
// ExpiryWindow of now.
func (c *OAuth2Credentials) IsExpired(now time.Time) bool {
	if c.ExpiresAt.IsZero() {
		return false
	}
	return !c.ExpiresAt.After(now.Add(ExpiryWindow))
}

// SetAuthHeaders writes the identity and bearer headers. The service uses its
// own header names rather than Authorization.
func (c *OAuth2Credentials) SetAuthHeaders(h http.Header) {
	h.Set("UserID", strings.TrimSpace(c.Username))
	h.Set("Authentication", "Bearer "+strings.TrimSpace(c.BearerToken))
}

func (c *OAuth2Credentials) String() string {
	return "OAuth2Credentials(username=" + mask(c.Username) + ", token=" + mask(c.BearerToken) + ")"
}

// WebserviceCredentials authenticate against the legacy service.
type WebserviceCredentials struct {
	Username string
	Password string
}

func (c *WebserviceCredentials) Validate() error {
	if strings.TrimSpace(c.Username) == "" {
		return &CredentialError{Reason: "username is required for webservice credentials"}
	}
	if c.Password == "" {
		return &CredentialError{Reason: "password is required for webservice credentials"}
	}
	return nil
}

func (c *WebserviceCredentials) String() string {
	return "WebserviceCredentials(username=" + mask(c.Username) + ", password=" + mask(c.Password) + ")"
}

func mask(s string) string {
	if len(s) <= 2 {
		return strings.Repeat("*", len(s))
	}
	return s[:1] + strings.Repeat("*", len(s)-2) + s[len(s)-1:]
}
