package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/ericfisherdev/gosheets/internal/application"
	"github.com/ericfisherdev/gosheets/internal/domain/model"
	"github.com/ericfisherdev/gosheets/internal/session"
)

type sweepResult struct {
	Prefix  string                  `json:"prefix"`
	DryRun  bool                    `json:"dry_run"`
	Matched []model.SpreadsheetFile `json:"matched,omitempty"`
	Deleted []string                `json:"deleted,omitempty"`
}

func (a *app) sweepCommand() *cobra.Command {
	var (
		prefix string
		dryRun bool
	)

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Delete spreadsheets left behind by interrupted recordings",
		Long: `Delete every spreadsheet whose name starts with --prefix. Recording a test
suite creates spreadsheets titled "Test <suite>"; a run that is killed before its
cleanup leaves them in the account.

Examples:
  # See what would be removed
  gosheets sweep --prefix "Test " --dry-run

  # Remove them
  gosheets sweep --prefix "Test "`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !a.cfg.HasServiceAccount() {
				a.logger.Warn("GS_CREDS_FILENAME is not set; sweeping with the stand-in credential")
			}

			client, err := session.NewClient(cmd.Context(), a.cfg, session.WithLogger(a.logger))
			if err != nil {
				return err
			}
			sweeper := application.NewSweeper(client, a.cfg.SweepConcurrency, a.logger)

			res := sweepResult{Prefix: prefix, DryRun: dryRun}
			var sweepErr error
			if dryRun {
				res.Matched, err = sweeper.Candidates(cmd.Context(), prefix)
				if err != nil {
					return err
				}
			} else {
				// Report whatever was deleted before a failure.
				res.Deleted, sweepErr = sweeper.Sweep(cmd.Context(), prefix)
			}

			out := a.printer(cmd)
			if out.jsonOut {
				return errors.Join(out.writeJSON(res), sweepErr)
			}
			for _, f := range res.Matched {
				out.linef("would delete %s %q", f.ID, f.Name)
			}
			for _, id := range res.Deleted {
				out.linef("deleted %s", id)
			}
			if !dryRun {
				out.linef("%d spreadsheets deleted", len(res.Deleted))
			}
			return sweepErr
		},
	}
	cmd.Flags().StringVar(&prefix, "prefix", "", "Delete spreadsheets whose name starts with this prefix (required)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "List matching spreadsheets without deleting them")
	_ = cmd.MarkFlagRequired("prefix")
	return cmd
}
