// Package cli implements zoozctl, the operator tool that works directly on
// the database file.
package cli

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/dukerupert/zooz/internal/catalog"
	"github.com/dukerupert/zooz/internal/config"
	"github.com/dukerupert/zooz/internal/database"
	"github.com/dukerupert/zooz/internal/keylock"
	"github.com/dukerupert/zooz/internal/ledger"
	"github.com/dukerupert/zooz/internal/model"
	"github.com/dukerupert/zooz/internal/store"
)

// Exit codes for zoozctl.
const (
	ExitSuccess      = 0
	ExitFailure      = 1 // reconcile mismatch and similar findings
	ExitCommandError = 2
)

// ExitError carries the process exit code for a failed command.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string { return e.Err.Error() }
func (e *ExitError) Unwrap() error { return e.Err }

// ExitCode extracts the exit code from an error returned by Execute.
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitCommandError
}

var validFormats = []string{"text", "json"}

// RootOptions holds the global flags.
type RootOptions struct {
	DBPath string
	Format string
}

// app is the set of stores and services a command works with. The CLI acts
// as an admin for authorization checks.
type app struct {
	cfg     *config.Config
	db      *sql.DB
	users   *store.UserStore
	ledger  *ledger.Service
	catalog *catalog.Service
	out     printer
	logger  *slog.Logger
}

func (o *RootOptions) open(cmd *cobra.Command) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if o.DBPath != "" {
		cfg.DBPath = o.DBPath
	}
	db, err := database.Open(cfg.DBPath)
	if err != nil {
		return nil, err
	}
	users := store.NewUserStore(db)
	return &app{
		cfg:     cfg,
		db:      db,
		users:   users,
		ledger:  ledger.NewService(store.NewLedgerStore(db), users, keylock.New()),
		catalog: catalog.NewService(store.NewActivityStore(db), users),
		out:     printer{w: cmd.OutOrStdout(), json: o.Format == "json"},
		logger:  slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: slog.LevelWarn})),
	}, nil
}

func (a *app) Close() error { return a.db.Close() }

var operator = model.User{ID: "zoozctl", DisplayName: "zoozctl", Role: model.RoleAdmin}

// NewRootCommand creates the zoozctl command tree.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "zoozctl",
		Short: "Operate a Zooz database",
		Long:  "Administrative commands for Zooz: users, balances, ledger history, reconciliation and snapshots.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			for _, f := range validFormats {
				if f == opts.Format {
					return nil
				}
			}
			return &ExitError{Code: ExitCommandError, Err: fmt.Errorf("invalid format %q: must be one of %v", opts.Format, validFormats)}
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&opts.DBPath, "db", "", "database path (default $ZOOZ_DB_PATH or zooz.db)")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(newUserCommand(opts))
	cmd.AddCommand(newBalanceCommand(opts))
	cmd.AddCommand(newHistoryCommand(opts))
	cmd.AddCommand(newAdjustCommand(opts))
	cmd.AddCommand(newReconcileCommand(opts))
	cmd.AddCommand(newTemplateCommand(opts))
	cmd.AddCommand(newSnapshotCommand(opts))

	return cmd
}
