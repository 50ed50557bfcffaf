// Package cli exposes the archival services as a cobra command tree.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Auriora/admin-assistant-sub001/internal/domain/errors"
	"github.com/Auriora/admin-assistant-sub001/internal/domain/user"
	"github.com/Auriora/admin-assistant-sub001/internal/service/archiver"
	"github.com/Auriora/admin-assistant-sub001/internal/service/recovery"
	"github.com/Auriora/admin-assistant-sub001/internal/service/scheduler"
)

// ReversalRecorder counts reversal outcomes for the metrics endpoint.
type ReversalRecorder interface {
	RecordReversal(status string)
}

// App carries the services the commands run against. Out defaults to
// os.Stdout, ErrOut to os.Stderr, Logger to a no-op, and Now to time.Now.
type App struct {
	Users     archiver.UserRepository
	Configs   archiver.ConfigurationRepository
	Archiver  archiver.Service
	Recovery  recovery.Service
	Scheduler *scheduler.Pool
	Reversals ReversalRecorder
	Logger    *zap.Logger
	Out       io.Writer
	ErrOut    io.Writer
	Now       func() time.Time
}

func (a *App) out() io.Writer {
	if a.Out != nil {
		return a.Out
	}
	return os.Stdout
}

func (a *App) errOut() io.Writer {
	if a.ErrOut != nil {
		return a.ErrOut
	}
	return os.Stderr
}

func (a *App) now() time.Time {
	if a.Now != nil {
		return a.Now()
	}
	return time.Now()
}

func (a *App) logger() *zap.Logger {
	if a.Logger != nil {
		return a.Logger
	}
	return zap.NewNop()
}

func (a *App) recordReversal(status string) {
	if a.Reversals != nil {
		a.Reversals.RecordReversal(status)
	}
}

// rootOptions holds the persistent flags every subcommand shares.
type rootOptions struct {
	User string
	Date string
}

// NewRootCommand builds the admin-assistant command tree.
func NewRootCommand(app *App) *cobra.Command {
	opts := &rootOptions{Date: "yesterday"}

	cmd := &cobra.Command{
		Use:   "admin-assistant",
		Short: "Archive calendars and manage archival operations",
		Long: `admin-assistant moves appointments from a source calendar into an archive
calendar, resolving overlaps on the way and recording every write so runs can
be audited and reversed.

Examples:
  # Archive yesterday's appointments under the "work-archive" configuration
  admin-assistant archive work-archive --user alice@example.com

  # Build last week's timesheet, keeping travel entries
  admin-assistant timesheet billing --user alice --date "last week" --travel

  # Inspect and undo a recorded run
  admin-assistant recovery list --user alice
  admin-assistant recovery reverse 6a9c... --user alice --reason "wrong range"`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&opts.User, "user", "",
		"user the command acts for (email, username, or id)")
	cmd.PersistentFlags().StringVar(&opts.Date, "date", opts.Date,
		`date range to operate on ("yesterday", "last 7 days", "1-6-2025 to 7-6-2025", ...)`)

	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return errors.NewValidationError("INVALID_ARGUMENTS", err.Error())
	})

	cmd.AddCommand(
		newArchiveCommand(app, opts),
		newTimesheetCommand(app, opts),
		newBatchCommand(app, opts),
		newRecoveryCommand(app, opts),
		newConfigsCommand(app, opts),
	)
	return cmd
}

// Execute runs the command tree against args and returns the process exit
// code: 0 on success, 2 for argument and validation problems, 1 for
// everything else.
func Execute(ctx context.Context, app *App, args []string) int {
	cmd := NewRootCommand(app)
	cmd.SetArgs(args)
	cmd.SetOut(app.out())
	cmd.SetErr(app.errOut())

	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(app.errOut(), "Error: %s\n", err)
		return ExitCode(err)
	}
	return 0
}

// ExitCode maps a command error to the documented exit codes.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.IsType(err, errors.ErrorTypeValidation):
		return 2
	default:
		return 1
	}
}

// exactArgs mirrors cobra.ExactArgs but fails with a typed validation error
// so argument mistakes exit with code 2.
func exactArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if len(args) != n {
			return errors.NewValidationError("INVALID_ARGUMENTS",
				fmt.Sprintf("%s takes exactly %d argument(s), got %d", cmd.Name(), n, len(args)))
		}
		return nil
	}
}

func resolveUser(ctx context.Context, app *App, identifier string) (*user.User, error) {
	if strings.TrimSpace(identifier) == "" {
		return nil, errors.NewValidationError("MISSING_USER", "--user is required")
	}
	return app.Users.GetByIdentifier(ctx, identifier)
}
