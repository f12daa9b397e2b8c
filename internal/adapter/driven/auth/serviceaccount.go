package auth

import (
	"context"
	"fmt"
	"os"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/ericfisherdev/gosheets/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.TokenProvider = (*ServiceAccount)(nil)

// ServiceAccount is a TokenProvider backed by a service-account key. Tokens are
// minted through the JWT bearer flow and cached until they expire.
type ServiceAccount struct {
	email  string
	scopes []string
	source oauth2.TokenSource
}

// LoadServiceAccount reads a service-account JSON key file and binds it to scopes.
func LoadServiceAccount(ctx context.Context, filename string, scopes []string) (*ServiceAccount, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("reading service account file: %w", err)
	}
	return NewServiceAccount(ctx, data, scopes)
}

// NewServiceAccount builds a ServiceAccount from the contents of a JSON key file.
// The key itself is only parsed when the first token is requested. ctx supplies
// values such as oauth2.HTTPClient; its cancellation does not end the token
// source, which outlives the call.
func NewServiceAccount(ctx context.Context, keyJSON []byte, scopes []string) (*ServiceAccount, error) {
	cfg, err := google.JWTConfigFromJSON(keyJSON, scopes...)
	if err != nil {
		return nil, fmt.Errorf("parsing service account key: %w", err)
	}

	s := make([]string, len(scopes))
	copy(s, scopes)

	return &ServiceAccount{
		email:  cfg.Email,
		scopes: s,
		source: cfg.TokenSource(context.WithoutCancel(ctx)),
	}, nil
}

// Email returns the service account's client email.
func (s *ServiceAccount) Email() string {
	return s.email
}

// Token returns a valid access token, fetching a new one when the cached token
// has expired.
func (s *ServiceAccount) Token(context.Context) (string, error) {
	tok, err := s.source.Token()
	if err != nil {
		return "", fmt.Errorf("fetching service account token for %s: %w", s.email, err)
	}
	return tok.AccessToken, nil
}

// Scopes returns a copy of the bound scopes.
func (s *ServiceAccount) Scopes() []string {
	out := make([]string, len(s.scopes))
	copy(out, s.scopes)
	return out
}
