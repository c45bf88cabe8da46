package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/manphil/backoffice/libs/config"
	"github.com/manphil/backoffice/libs/db"
	"github.com/manphil/backoffice/libs/runtime"
	"github.com/manphil/backoffice/services/reservation-service/internal/availability"
	"github.com/manphil/backoffice/services/reservation-service/internal/storage"
	"github.com/spf13/cobra"
)

var (
	Version   = "dev"
	CommitSHA = "none"
	BuildDate = "unknown"
)

// app holds the connections commands need. Tests swap in fakes.
type app struct {
	openPool  func(ctx context.Context) (*db.Pool, error)
	openStore func(ctx context.Context) (availability.Store, func(), error)
}

func defaultApp() *app {
	a := &app{}
	a.openPool = func(ctx context.Context) (*db.Pool, error) {
		url, err := config.RequiredString("DATABASE_URL")
		if err != nil {
			return nil, err
		}
		return db.Open(ctx, url)
	}
	a.openStore = func(ctx context.Context) (availability.Store, func(), error) {
		pool, err := a.openPool(ctx)
		if err != nil {
			return nil, nil, err
		}
		return storage.NewReservationRepository(pool), pool.Close, nil
	}
	return a
}

func NewRootCmd() *cobra.Command {
	return newRootCmd(defaultApp())
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "reservationctl",
		Short:         "Operate the reservation service: migrations, availability checks and bulk imports",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newVersionCmd())
	root.AddCommand(newMigrateCmd(a))
	root.AddCommand(newCheckCmd(a))
	root.AddCommand(newImportCmd(a))
	root.AddCommand(newPropertyCmd(a))

	return root
}

func Execute() {
	ctx, stop := runtime.SignalContext()
	defer stop()
	if err := NewRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version info",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "reservationctl %s (commit=%s, built=%s)\n", Version, CommitSHA, BuildDate)
		},
	}
}

// stderrLogger keeps log lines off stdout, which carries command output.
func stderrLogger(w io.Writer) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: runtime.ParseLevel(os.Getenv("LOG_LEVEL")),
	})).With("service", "reservationctl")
}
