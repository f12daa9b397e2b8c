// Package cli implements the gosheets command line: cassette maintenance and
// cleanup of spreadsheets left behind by interrupted test runs.
package cli

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/ericfisherdev/gosheets/internal/config"
	"github.com/ericfisherdev/gosheets/internal/domain/port/driven"
	"github.com/ericfisherdev/gosheets/internal/session"
)

type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	jsonOut bool
}

// NewRootCommand builds the gosheets command tree around cfg.
func NewRootCommand(cfg *config.Config, logger *slog.Logger) *cobra.Command {
	if logger == nil {
		logger = slog.Default()
	}
	a := &app{cfg: cfg, logger: logger}

	root := &cobra.Command{
		Use:   "gosheets",
		Short: "Maintain recorded API cassettes and clean up test spreadsheets",
		Long: `gosheets manages the cassettes that integration tests record against the
spreadsheet API, and deletes spreadsheets that interrupted recordings left behind.

Configuration is read from the environment:
  - GS_CREDS_FILENAME:      service-account key file, required for live calls
  - GOSHEETS_CASSETTE_DIR:  directory of JSON cassettes (default testdata/cassettes)
  - GOSHEETS_CASSETTE_DB:   SQLite cassette database, used instead of the directory`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().BoolVar(&a.jsonOut, "json", false, "Output in JSON format")

	root.AddCommand(a.cassetteCommand(), a.sweepCommand())
	return root
}

// withStore opens the configured cassette store for the duration of fn.
func (a *app) withStore(ctx context.Context, fn func(driven.CassetteStore) error) (err error) {
	store, closeStore, err := session.OpenStore(ctx, a.cfg)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := closeStore(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return fn(store)
}
