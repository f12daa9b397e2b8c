package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gosuri/uitable"
	"github.com/spf13/cobra"

	"github.com/ericfisherdev/gosheets/internal/adapter/driven/cassette"
	"github.com/ericfisherdev/gosheets/internal/adapter/driving/report"
	"github.com/ericfisherdev/gosheets/internal/domain/model"
	"github.com/ericfisherdev/gosheets/internal/domain/port/driven"
)

func (a *app) printer(cmd *cobra.Command) printer {
	return printer{w: cmd.OutOrStdout(), jsonOut: a.jsonOut}
}

func (a *app) cassetteCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cassette",
		Short: "Inspect and maintain recorded cassettes",
	}
	cmd.AddCommand(
		a.cassetteListCommand(),
		a.cassetteInspectCommand(),
		a.cassetteReportCommand(),
		a.cassetteScrubCommand(),
		a.cassetteImportCommand(),
		a.cassetteExportCommand(),
	)
	return cmd
}

func (a *app) cassetteListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored cassettes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withStore(cmd.Context(), func(store driven.CassetteStore) error {
				names, err := store.List(cmd.Context())
				if err != nil {
					return fmt.Errorf("listing cassettes: %w", err)
				}

				out := a.printer(cmd)
				if out.jsonOut {
					return out.writeJSON(names)
				}
				for _, name := range names {
					out.linef("%s", name)
				}
				return nil
			})
		},
	}
}

func (a *app) cassetteInspectCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <name>",
		Short: "Show the interactions recorded in a cassette",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(cmd.Context(), func(store driven.CassetteStore) error {
				cas, err := store.Load(cmd.Context(), args[0])
				if err != nil {
					return err
				}

				out := a.printer(cmd)
				if out.jsonOut {
					return out.writeJSON(report.Summarize(cas))
				}
				out.linef("%s: %d interactions", cas.Name, len(cas.Interactions))
				if len(cas.Interactions) == 0 {
					return nil
				}

				table := uitable.New()
				table.MaxColWidth = 100
				table.AddRow("#", "METHOD", "URI", "STATUS", "BYTES")
				for i, in := range cas.Interactions {
					table.AddRow(i+1, in.Request.Method, in.Request.URI, in.Response.StatusCode, len(in.Response.Body))
				}
				out.linef("%s", table)
				return nil
			})
		},
	}
}

func (a *app) cassetteReportCommand() *cobra.Command {
	var asHTML bool

	cmd := &cobra.Command{
		Use:   "report <name>",
		Short: "Render a Markdown or HTML report of a cassette",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(cmd.Context(), func(store driven.CassetteStore) error {
				cas, err := store.Load(cmd.Context(), args[0])
				if err != nil {
					return err
				}

				out := a.printer(cmd)
				switch {
				case out.jsonOut:
					return out.writeJSON(report.Summarize(cas))
				case asHTML:
					err = report.HTML(out.w, cas)
				default:
					_, err = fmt.Fprint(out.w, report.Markdown(cas))
				}
				return err
			})
		},
	}
	cmd.Flags().BoolVar(&asHTML, "html", false, "Render sanitized HTML instead of Markdown")
	return cmd
}

func (a *app) cassetteScrubCommand() *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "scrub <name>",
		Short: "Redact credentials from the requests stored in a cassette",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(cmd.Context(), func(store driven.CassetteStore) error {
				cas, err := store.Load(cmd.Context(), args[0])
				if err != nil {
					return err
				}

				changed := cassette.DefaultConfig().Scrub(cas)
				if changed > 0 && !dryRun {
					if err := store.Save(cmd.Context(), cas); err != nil {
						return fmt.Errorf("saving scrubbed cassette: %w", err)
					}
					a.logger.Info("scrubbed cassette", "cassette", cas.Name, "interactions", changed)
				}

				out := a.printer(cmd)
				if out.jsonOut {
					return out.writeJSON(map[string]any{"name": cas.Name, "changed": changed, "dry_run": dryRun})
				}
				out.linef("%s: %d interactions scrubbed", cas.Name, changed)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Report what would change without saving")
	return cmd
}

func (a *app) cassetteImportCommand() *cobra.Command {
	var name string

	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Store a cassette from a JSON file, redacting credentials",
		Long: `Store a cassette from a JSON file. The cassette is named after --name, then
the name recorded in the file, then the file name without its extension.
Credentials are redacted before the cassette is saved.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cas, err := readCassetteFile(args[0])
			if err != nil {
				return err
			}
			if name != "" {
				cas.Name = name
			}
			cassette.DefaultConfig().Scrub(cas)

			return a.withStore(cmd.Context(), func(store driven.CassetteStore) error {
				if err := store.Save(cmd.Context(), cas); err != nil {
					return fmt.Errorf("saving cassette %q: %w", cas.Name, err)
				}

				out := a.printer(cmd)
				if out.jsonOut {
					return out.writeJSON(report.Summarize(cas))
				}
				out.linef("imported %s (%d interactions)", cas.Name, len(cas.Interactions))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "Name to store the cassette under")
	return cmd
}

func (a *app) cassetteExportCommand() *cobra.Command {
	var outPath string

	cmd := &cobra.Command{
		Use:   "export <name>",
		Short: "Write a stored cassette as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(cmd.Context(), func(store driven.CassetteStore) error {
				cas, err := store.Load(cmd.Context(), args[0])
				if err != nil {
					return err
				}

				if outPath == "" {
					return a.printer(cmd).writeJSON(cas)
				}

				data, err := json.MarshalIndent(cas, "", "  ")
				if err != nil {
					return fmt.Errorf("encoding cassette: %w", err)
				}
				if err := os.WriteFile(outPath, append(data, '\n'), 0o644); err != nil {
					return fmt.Errorf("writing %s: %w", outPath, err)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "Write to this file instead of stdout")
	return cmd
}

func readCassetteFile(path string) (*model.Cassette, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading cassette file: %w", err)
	}

	var cas model.Cassette
	if err := json.Unmarshal(data, &cas); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}
	if cas.Name == "" {
		base := filepath.Base(path)
		cas.Name = strings.TrimSuffix(base, filepath.Ext(base))
	}
	if cas.Name == "" || cas.Name == "." {
		return nil, errors.New("cassette has no name; pass --name")
	}
	return &cas, nil
}
