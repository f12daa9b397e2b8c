package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/ericfisherdev/gosheets/internal/domain/model"
	"github.com/ericfisherdev/gosheets/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.CassetteStore = (*CassetteRepo)(nil)

// CassetteRepo is the SQLite implementation of the CassetteStore port interface.
type CassetteRepo struct {
	db *DB
}

// NewCassetteRepo creates a new CassetteRepo backed by the given DB.
func NewCassetteRepo(db *DB) *CassetteRepo {
	return &CassetteRepo{db: db}
}

// Load returns the named cassette with its interactions in recorded order.
func (r *CassetteRepo) Load(ctx context.Context, name string) (*model.Cassette, error) {
	var exists int
	err := r.db.Reader.QueryRowContext(ctx, `SELECT 1 FROM cassettes WHERE name = ?`, name).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", driven.ErrCassetteNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("query cassette %q: %w", name, err)
	}

	const query = `
		SELECT id, method, uri, request_headers, request_body,
		       status_code, status, response_headers, response_body, recorded_at
		FROM interactions
		WHERE cassette_name = ?
		ORDER BY position
	`

	rows, err := r.db.Reader.QueryContext(ctx, query, name)
	if err != nil {
		return nil, fmt.Errorf("query interactions for %q: %w", name, err)
	}
	defer rows.Close()

	cas := &model.Cassette{Name: name, Interactions: []model.Interaction{}}
	for rows.Next() {
		in, err := scanInteraction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan interaction for %q: %w", name, err)
		}
		cas.Interactions = append(cas.Interactions, in)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate interactions for %q: %w", name, err)
	}

	return cas, nil
}

// Save atomically replaces the cassette and all of its interactions.
func (r *CassetteRepo) Save(ctx context.Context, cas *model.Cassette) error {
	if cas.Name == "" {
		return errors.New("cassette name is required")
	}

	tx, err := r.db.Writer.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // Rollback after commit is a no-op.

	const upsertCassette = `
		INSERT INTO cassettes (name, updated_at) VALUES (?, ?)
		ON CONFLICT(name) DO UPDATE SET updated_at = excluded.updated_at
	`
	if _, err := tx.ExecContext(ctx, upsertCassette, cas.Name, time.Now().UTC()); err != nil {
		return fmt.Errorf("upsert cassette %q: %w", cas.Name, err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM interactions WHERE cassette_name = ?`, cas.Name); err != nil {
		return fmt.Errorf("delete interactions for %q: %w", cas.Name, err)
	}

	const insertQuery = `
		INSERT INTO interactions (
			cassette_name, position, id, method, uri, request_headers, request_body,
			status_code, status, response_headers, response_body, recorded_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	for i, in := range cas.Interactions {
		reqHeaders, err := marshalHeader(in.Request.Headers)
		if err != nil {
			return fmt.Errorf("encode request headers of interaction %d: %w", i, err)
		}
		respHeaders, err := marshalHeader(in.Response.Headers)
		if err != nil {
			return fmt.Errorf("encode response headers of interaction %d: %w", i, err)
		}

		if _, err := tx.ExecContext(ctx, insertQuery,
			cas.Name, i, in.ID, in.Request.Method, in.Request.URI, reqHeaders, in.Request.Body,
			in.Response.StatusCode, in.Response.Status, respHeaders, in.Response.Body,
			in.RecordedAt.UTC().Format(time.RFC3339Nano),
		); err != nil {
			return fmt.Errorf("insert interaction %d for %q: %w", i, cas.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit cassette %q: %w", cas.Name, err)
	}

	return nil
}

// List returns all cassette names in alphabetical order.
func (r *CassetteRepo) List(ctx context.Context) ([]string, error) {
	rows, err := r.db.Reader.QueryContext(ctx, `SELECT name FROM cassettes ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list cassettes: %w", err)
	}
	defer rows.Close()

	names := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan cassette name: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cassettes: %w", err)
	}

	return names, nil
}

// Delete removes the cassette. Its interactions are removed by cascade.
func (r *CassetteRepo) Delete(ctx context.Context, name string) error {
	if _, err := r.db.Writer.ExecContext(ctx, `DELETE FROM cassettes WHERE name = ?`, name); err != nil {
		return fmt.Errorf("delete cassette %q: %w", name, err)
	}
	return nil
}

// CountInteractions returns the number of stored interactions per method for a
// URI prefix, across all cassettes.
func (r *CassetteRepo) CountInteractions(ctx context.Context, uriPrefix string) (map[string]int, error) {
	const query = `
		SELECT method, COUNT(*)
		FROM interactions
		WHERE substr(uri, 1, length(?)) = ?
		GROUP BY method
	`

	rows, err := r.db.Reader.QueryContext(ctx, query, uriPrefix, uriPrefix)
	if err != nil {
		return nil, fmt.Errorf("count interactions: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var method string
		var n int
		if err := rows.Scan(&method, &n); err != nil {
			return nil, fmt.Errorf("scan interaction count: %w", err)
		}
		counts[method] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate interaction counts: %w", err)
	}

	return counts, nil
}

func scanInteraction(rows *sql.Rows) (model.Interaction, error) {
	var (
		in                      model.Interaction
		reqHeaders, respHeaders string
		recordedAt              string
	)

	if err := rows.Scan(
		&in.ID, &in.Request.Method, &in.Request.URI, &reqHeaders, &in.Request.Body,
		&in.Response.StatusCode, &in.Response.Status, &respHeaders, &in.Response.Body, &recordedAt,
	); err != nil {
		return model.Interaction{}, err
	}

	var err error
	if in.Request.Headers, err = unmarshalHeader(reqHeaders); err != nil {
		return model.Interaction{}, fmt.Errorf("decode request headers: %w", err)
	}
	if in.Response.Headers, err = unmarshalHeader(respHeaders); err != nil {
		return model.Interaction{}, fmt.Errorf("decode response headers: %w", err)
	}
	if in.RecordedAt, err = time.Parse(time.RFC3339Nano, recordedAt); err != nil {
		return model.Interaction{}, fmt.Errorf("parse recorded_at %q: %w", recordedAt, err)
	}

	return in, nil
}

func marshalHeader(h http.Header) (string, error) {
	if h == nil {
		return "{}", nil
	}
	b, err := json.Marshal(h)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func unmarshalHeader(s string) (http.Header, error) {
	h := http.Header{}
	if s == "" {
		return h, nil
	}
	if err := json.Unmarshal([]byte(s), &h); err != nil {
		return nil, err
	}
	return h, nil
}
