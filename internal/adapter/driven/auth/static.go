// Package auth provides TokenProvider implementations and the transport that
// presents their tokens on outbound requests.
package auth

import (
	"context"

	"github.com/ericfisherdev/gosheets/internal/domain/model"
	"github.com/ericfisherdev/gosheets/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.TokenProvider = StaticCredential{}

// StaticCredential is a TokenProvider that always returns the same token.
type StaticCredential struct {
	cred model.Credential
}

// NewStaticCredential returns a StaticCredential for token bound to scopes.
func NewStaticCredential(token string, scopes []string) StaticCredential {
	return StaticCredential{cred: model.NewCredential(token, scopes)}
}

// NewDummyCredential returns the stand-in credential used for replayed test
// runs. Its token is model.DummyAccessToken, the same value recorded
// Authorization headers are redacted to.
func NewDummyCredential() StaticCredential {
	return NewStaticCredential(model.DummyAccessToken, model.DefaultScopes)
}

// Token returns the static token.
func (c StaticCredential) Token(context.Context) (string, error) {
	return c.cred.Token(), nil
}

// Scopes returns the credential's scopes.
func (c StaticCredential) Scopes() []string {
	return c.cred.Scopes()
}
