// Package driven defines secondary port interfaces for external adapters.
package driven

import (
	"context"

	"github.com/ericfisherdev/gosheets/internal/domain/model"
)

// Requester issues a single API request. Implementations return a
// *model.APIError for responses the API reports as failed.
type Requester interface {
	Request(ctx context.Context, req model.Request) (*model.Response, error)
}

// RequesterFunc adapts an ordinary function to the Requester interface.
type RequesterFunc func(ctx context.Context, req model.Request) (*model.Response, error)

// Request calls f(ctx, req).
func (f RequesterFunc) Request(ctx context.Context, req model.Request) (*model.Response, error) {
	return f(ctx, req)
}
