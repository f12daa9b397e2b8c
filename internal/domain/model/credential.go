package model

// DummyAccessToken is the token carried by the stand-in credential and the value
// written in place of recorded Authorization headers.
const DummyAccessToken = "<ACCESS_TOKEN>"

// DefaultScopes is the scope set every session credential is bound to.
var DefaultScopes = []string{
	"https://spreadsheets.google.com/feeds",
	"https://www.googleapis.com/auth/drive.file",
}

// Credential is an opaque authorization token bound to a fixed scope set.
// It is immutable once constructed; use NewCredential to build one.
type Credential struct {
	token  string
	scopes []string
}

// NewCredential returns a Credential holding token and a private copy of scopes.
func NewCredential(token string, scopes []string) Credential {
	s := make([]string, len(scopes))
	copy(s, scopes)
	return Credential{token: token, scopes: s}
}

// Token returns the raw access token.
func (c Credential) Token() string {
	return c.token
}

// Scopes returns a copy of the scopes the credential is bound to.
func (c Credential) Scopes() []string {
	s := make([]string, len(c.scopes))
	copy(s, c.scopes)
	return s
}
