package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/manphil/backoffice/services/reservation-service/internal/audit"
	"github.com/manphil/backoffice/services/reservation-service/internal/availability"
	"github.com/manphil/backoffice/services/reservation-service/internal/imports"
	"github.com/manphil/backoffice/services/reservation-service/internal/migrate"
	"github.com/manphil/backoffice/services/reservation-service/internal/outbox"
	"github.com/manphil/backoffice/services/reservation-service/internal/storage"
	"github.com/spf13/cobra"
)

func newMigrateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			pool, err := a.openPool(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			applied, err := migrate.Up(ctx, pool)
			if err != nil {
				return err
			}
			if len(applied) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "schema up to date")
				return nil
			}
			for _, f := range applied {
				fmt.Fprintf(cmd.OutOrStdout(), "applied %s\n", f)
			}
			return nil
		},
	}
}

func newCheckCmd(a *app) *cobra.Command {
	var (
		propertyID string
		start      string
		end        string
		excludeID  string
		advanced   bool
		graceHours float64
		suggest    bool
	)

	c := &cobra.Command{
		Use:   "check",
		Short: "Check whether a property is free for a date range",
		RunE: func(cmd *cobra.Command, args []string) error {
			rng, err := parseRange(start, end)
			if err != nil {
				return err
			}
			if graceHours < 0 {
				return availability.ErrInvalidGracePeriod
			}
			if graceHours > 0 || suggest {
				advanced = true
			}
			q := availability.Query{
				PropertyID:           strings.TrimSpace(propertyID),
				Range:                rng,
				ExcludeReservationID: strings.TrimSpace(excludeID),
			}

			ctx := cmd.Context()
			store, closeStore, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer closeStore()

			checker := availability.NewChecker(store)
			if !advanced {
				res, err := checker.Check(ctx, q)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), res)
			}
			res, err := checker.CheckAdvanced(ctx, availability.AdvancedQuery{
				Query:               q,
				GracePeriod:         time.Duration(graceHours * float64(time.Hour)),
				SuggestAlternatives: suggest,
			})
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	}

	c.Flags().StringVar(&propertyID, "property", "", "property id (uuid)")
	c.Flags().StringVar(&start, "start", "", "range start (RFC 3339 or YYYY-MM-DD)")
	c.Flags().StringVar(&end, "end", "", "range end, exclusive (RFC 3339 or YYYY-MM-DD)")
	c.Flags().StringVar(&excludeID, "exclude", "", "reservation id to ignore, e.g. when rescheduling it")
	c.Flags().BoolVar(&advanced, "advanced", false, "classify conflicts and scan the surrounding window")
	c.Flags().Float64Var(&graceHours, "grace-hours", 0, "minimum turnover gap in hours (implies --advanced)")
	c.Flags().BoolVar(&suggest, "suggest", false, "suggest alternative ranges on conflict (implies --advanced)")
	_ = c.MarkFlagRequired("property")
	_ = c.MarkFlagRequired("start")
	_ = c.MarkFlagRequired("end")
	return c
}

func newImportCmd(a *app) *cobra.Command {
	var (
		file  string
		actor string
	)

	c := &cobra.Command{
		Use:   "import",
		Short: "Bulk import reservations from a JSON file",
		RunE: func(cmd *cobra.Command, args []string) error {
			var in io.Reader = cmd.InOrStdin()
			if file != "-" {
				f, err := os.Open(file)
				if err != nil {
					return err
				}
				defer f.Close()
				in = f
			}
			rows, err := readRows(in)
			if err != nil {
				return err
			}
			if len(rows) == 0 {
				return imports.ErrEmptyBatch
			}

			ctx := cmd.Context()
			pool, err := a.openPool(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			logger := stderrLogger(cmd.ErrOrStderr())
			repo := storage.NewReservationRepository(pool)
			importer := imports.NewImporter(repo, outbox.NewRepository(), audit.NewRepository(pool), logger)
			summary, err := importer.Run(ctx, rows, actor)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), summary)
		},
	}

	c.Flags().StringVarP(&file, "file", "f", "", "JSON file with a row array or {\"rows\": [...]}; - reads stdin")
	c.Flags().StringVar(&actor, "actor", "reservationctl", "actor recorded in the audit trail")
	_ = c.MarkFlagRequired("file")
	return c
}

func newPropertyCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "property",
		Short: "Manage properties",
	}
	cmd.AddCommand(newPropertyAddCmd(a))
	return cmd
}

func newPropertyAddCmd(a *app) *cobra.Command {
	var name string

	c := &cobra.Command{
		Use:   "add",
		Short: "Register a property and print its id",
		RunE: func(cmd *cobra.Command, args []string) error {
			name = strings.TrimSpace(name)
			if name == "" {
				return errors.New("--name is required")
			}
			ctx := cmd.Context()
			pool, err := a.openPool(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			p, err := storage.NewReservationRepository(pool).CreateProperty(ctx, name)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), map[string]any{
				"id":         p.ID,
				"name":       p.Name,
				"created_at": p.CreatedAt.UTC(),
			})
		},
	}

	c.Flags().StringVar(&name, "name", "", "property name")
	return c
}

// readRows accepts either a bare JSON array of rows or the API's {"rows": [...]} body.
func readRows(r io.Reader) ([]imports.Row, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, imports.ErrEmptyBatch
	}
	if raw[0] == '[' {
		var rows []imports.Row
		if err := json.Unmarshal(raw, &rows); err != nil {
			return nil, fmt.Errorf("parse rows: %w", err)
		}
		return rows, nil
	}
	var body struct {
		Rows []imports.Row `json:"rows"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, fmt.Errorf("parse rows: %w", err)
	}
	return body.Rows, nil
}

func parseTime(field, raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC(), nil
	}
	if t, err := time.Parse("2006-01-02", raw); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("invalid --%s %q (want RFC 3339 or YYYY-MM-DD)", field, raw)
}

func parseRange(start, end string) (availability.DateRange, error) {
	s, err := parseTime("start", start)
	if err != nil {
		return availability.DateRange{}, err
	}
	e, err := parseTime("end", end)
	if err != nil {
		return availability.DateRange{}, err
	}
	return availability.NewDateRange(s, e)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
