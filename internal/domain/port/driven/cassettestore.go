package driven

import (
	"context"
	"errors"

	"github.com/ericfisherdev/gosheets/internal/domain/model"
)

// ErrCassetteNotFound is returned by CassetteStore.Load when no cassette with
// the requested name has been saved.
var ErrCassetteNotFound = errors.New("cassette not found")

// CassetteStore defines the driven port for recorded-interaction persistence.
type CassetteStore interface {
	// Load returns the named cassette, or ErrCassetteNotFound.
	Load(ctx context.Context, name string) (*model.Cassette, error)

	// Save stores the cassette, replacing any previous cassette with the same name.
	Save(ctx context.Context, c *model.Cassette) error

	// List returns the names of all stored cassettes, sorted.
	List(ctx context.Context) ([]string, error)

	// Delete removes the named cassette. Deleting a missing cassette is not an error.
	Delete(ctx context.Context, name string) error
}
