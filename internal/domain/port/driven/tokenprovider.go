package driven

import "context"

// TokenProvider supplies the access token presented with every outbound request.
type TokenProvider interface {
	// Token returns the current access token.
	Token(ctx context.Context) (string, error)

	// Scopes returns the scope set the token is bound to.
	Scopes() []string
}
