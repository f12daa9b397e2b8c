package auth

import (
	"fmt"
	"net/http"

	"github.com/ericfisherdev/gosheets/internal/domain/port/driven"
)

// Transport sets a bearer Authorization header from Tokens on every request.
type Transport struct {
	Tokens driven.TokenProvider
	Base   http.RoundTripper
}

// NewHTTPClient returns an http.Client that authorizes every request with
// tokens before handing it to base.
func NewHTTPClient(tokens driven.TokenProvider, base http.RoundTripper) *http.Client {
	return &http.Client{Transport: &Transport{Tokens: tokens, Base: base}}
}

// RoundTrip authorizes a clone of req; the caller's request is left untouched.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	token, err := t.Tokens.Token(req.Context())
	if err != nil {
		if req.Body != nil {
			_ = req.Body.Close()
		}
		return nil, fmt.Errorf("authorizing request: %w", err)
	}

	authorized := req.Clone(req.Context())
	authorized.Header.Set("Authorization", "Bearer "+token)

	return t.base().RoundTrip(authorized)
}

func (t *Transport) base() http.RoundTripper {
	if t.Base == nil {
		return http.DefaultTransport
	}
	return t.Base
}
