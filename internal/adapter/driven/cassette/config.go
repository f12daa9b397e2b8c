// Package cassette records outbound HTTP interactions and replays them, so that
// tests can run against previously captured API traffic.
package cassette

import (
	"maps"
	"net/http"
	"net/url"
	"slices"
	"strings"

	vcr "gopkg.in/dnaeon/go-vcr.v4/pkg/cassette"

	"github.com/ericfisherdev/gosheets/internal/domain/model"
)

// Matcher reports whether an outgoing request matches a recorded one.
type Matcher = vcr.MatcherFunc

// Config controls how interactions are matched and what is persisted.
type Config struct {
	// MatchOn lists the matchers that must all agree for a recorded interaction
	// to be replayed for a request.
	MatchOn []Matcher

	// DecodeCompressedResponse stores response bodies decoded, so cassettes
	// stay readable.
	DecodeCompressedResponse bool

	// PathTransformer maps a cassette name to its file name in a FileStore.
	PathTransformer func(name string) string

	// IgnoreHosts lists hosts whose requests bypass the recorder entirely.
	IgnoreHosts []string

	// FilterHeaders maps lower-case request header names to the value written in
	// their place before persistence. An empty replacement drops the header.
	FilterHeaders map[string]string

	// AllowPlaybackRepeats lets an interaction be replayed more than once.
	AllowPlaybackRepeats bool
}

// DefaultConfig matches on URI and method, keeps bodies decoded, writes JSON
// files, never records token-exchange traffic and hides the access token.
func DefaultConfig() Config {
	return Config{
		MatchOn:                  []Matcher{MatchURI, MatchMethod},
		DecodeCompressedResponse: true,
		PathTransformer:          EnsureSuffix(".json"),
		IgnoreHosts:              []string{"oauth2.googleapis.com"},
		FilterHeaders: map[string]string{
			"authorization": model.DummyAccessToken,
		},
	}
}

// EnsureSuffix returns a path transformer that appends suffix when missing.
func EnsureSuffix(suffix string) func(string) string {
	return func(name string) string {
		if strings.HasSuffix(name, suffix) {
			return name
		}
		return name + suffix
	}
}

// MatchURI matches on the full request URI.
func MatchURI(req *http.Request, recorded vcr.Request) bool {
	return req.URL.String() == recorded.URL
}

// MatchMethod matches on the HTTP method.
func MatchMethod(req *http.Request, recorded vcr.Request) bool {
	return strings.EqualFold(req.Method, recorded.Method)
}

// MatchPath matches on the URL path only.
func MatchPath(req *http.Request, recorded vcr.Request) bool {
	u, err := url.Parse(recorded.URL)
	if err != nil {
		return false
	}
	return req.URL.Path == u.Path
}

// MatchQuery matches on the query parameters regardless of their order.
func MatchQuery(req *http.Request, recorded vcr.Request) bool {
	u, err := url.Parse(recorded.URL)
	if err != nil {
		return false
	}
	return req.URL.Query().Encode() == u.Query().Encode()
}

func (c Config) ignored(hostname string) bool {
	for _, ignored := range c.IgnoreHosts {
		if strings.EqualFold(ignored, hostname) {
			return true
		}
	}
	return false
}

// matcher combines MatchOn into the single matcher go-vcr takes.
func (c Config) matcher() vcr.MatcherFunc {
	matchOn := slices.Clone(c.MatchOn)
	return func(req *http.Request, recorded vcr.Request) bool {
		for _, m := range matchOn {
			if !m(req, recorded) {
				return false
			}
		}
		return true
	}
}

// filterHeaders returns a copy of h with the configured headers replaced or dropped.
func (c Config) filterHeaders(h http.Header) http.Header {
	out := h.Clone()
	if out == nil {
		out = http.Header{}
	}
	for name, replacement := range c.FilterHeaders {
		key := http.CanonicalHeaderKey(name)
		if _, ok := out[key]; !ok {
			continue
		}
		if replacement == "" {
			out.Del(key)
			continue
		}
		out[key] = []string{replacement}
	}
	return out
}

// Scrub applies the header filters to every request already stored in cas. It
// returns the number of interactions that changed.
func (c Config) Scrub(cas *model.Cassette) int {
	changed := 0
	for i := range cas.Interactions {
		req := &cas.Interactions[i].Request
		filtered := c.filterHeaders(req.Headers)
		if !headersEqual(req.Headers, filtered) {
			req.Headers = filtered
			changed++
		}
	}
	return changed
}

func headersEqual(a, b http.Header) bool {
	return maps.EqualFunc(a, b, slices.Equal[[]string])
}
