package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/ericfisherdev/gosheets/internal/domain/model"
	"github.com/ericfisherdev/gosheets/internal/domain/port/driven"
)

const defaultSweepConcurrency = 4

// Sweeper deletes spreadsheets left behind by interrupted test runs.
type Sweeper struct {
	client      driven.SheetsClient
	concurrency int
	logger      *slog.Logger
}

// NewSweeper creates a Sweeper. A concurrency below 1 falls back to the default of 4.
func NewSweeper(client driven.SheetsClient, concurrency int, logger *slog.Logger) *Sweeper {
	if concurrency < 1 {
		concurrency = defaultSweepConcurrency
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{client: client, concurrency: concurrency, logger: logger}
}

// Candidates returns the spreadsheets whose name starts with prefix.
func (s *Sweeper) Candidates(ctx context.Context, prefix string) ([]model.SpreadsheetFile, error) {
	if prefix == "" {
		return nil, errors.New("sweep prefix must not be empty")
	}

	files, err := s.client.ListSpreadsheetFiles(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("listing spreadsheets: %w", err)
	}

	matched := make([]model.SpreadsheetFile, 0, len(files))
	for _, f := range files {
		if strings.HasPrefix(f.Name, prefix) {
			matched = append(matched, f)
		}
	}
	return matched, nil
}

// Sweep deletes every spreadsheet whose name starts with prefix and returns
// the IDs it deleted, sorted. Deletion stops at the first failure.
func (s *Sweeper) Sweep(ctx context.Context, prefix string) ([]string, error) {
	files, err := s.Candidates(ctx, prefix)
	if err != nil {
		return nil, err
	}

	var (
		mu      sync.Mutex
		deleted = make([]string, 0, len(files))
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for _, f := range files {
		g.Go(func() error {
			if err := s.client.DeleteSpreadsheet(gctx, f.ID); err != nil {
				return fmt.Errorf("deleting %q (%s): %w", f.Name, f.ID, err)
			}
			s.logger.Info("deleted leftover spreadsheet", "id", f.ID, "name", f.Name)

			mu.Lock()
			deleted = append(deleted, f.ID)
			mu.Unlock()
			return nil
		})
	}

	err = g.Wait()
	slices.Sort(deleted)
	return deleted, err
}
