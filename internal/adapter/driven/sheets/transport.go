package sheets

import (
	"fmt"
	"net/http"

	"github.com/gregjones/httpcache"
	"golang.org/x/time/rate"
)

// TransportOptions configures the unauthenticated transport stack built by
// NewTransport.
type TransportOptions struct {
	// Base is the innermost transport. Defaults to http.DefaultTransport.
	Base http.RoundTripper

	// RequestsPerSecond throttles outgoing requests client-side. Zero disables it.
	RequestsPerSecond float64

	// DisableCache turns off the ETag caching layer.
	DisableCache bool
}

// NewTransport builds the transport stack below the authorization layer, from
// outermost to innermost:
//  1. client-side throttle (x/time/rate), when RequestsPerSecond > 0
//  2. httpcache (ETag-based conditional request caching)
//  3. Base
//
// 429 responses pass through unchanged; retrying them is the dispatcher's job.
func NewTransport(opts TransportOptions) http.RoundTripper {
	base := opts.Base
	if base == nil {
		base = http.DefaultTransport
	}

	rt := base

	if !opts.DisableCache {
		cacheTransport := httpcache.NewMemoryCacheTransport()
		cacheTransport.Transport = rt
		rt = cacheTransport
	}

	if opts.RequestsPerSecond > 0 {
		rt = &throttledTransport{
			limiter: rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1),
			next:    rt,
		}
	}

	return rt
}

// throttledTransport waits for a limiter token before each request.
type throttledTransport struct {
	limiter *rate.Limiter
	next    http.RoundTripper
}

func (t *throttledTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if err := t.limiter.Wait(req.Context()); err != nil {
		return nil, fmt.Errorf("waiting for request throttle: %w", err)
	}
	return t.next.RoundTrip(req)
}
