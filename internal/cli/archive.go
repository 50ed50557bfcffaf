package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Auriora/admin-assistant-sub001/internal/cli/daterange"
	"github.com/Auriora/admin-assistant-sub001/internal/service/archiver"
)

func newArchiveCommand(app *App, root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "archive <config-name>",
		Short: "Archive a calendar's appointments for a date range",
		Long: `Archive runs the named configuration over the --date range: appointments
are read from the configuration's source calendar, overlaps are resolved,
and the survivors are written to its archive calendar. Residual conflicts
become manual-action tasks instead of blocking the run.

Examples:
  admin-assistant archive work-archive --user alice@example.com
  admin-assistant archive work-archive --user alice --date "last 7 days"
  admin-assistant archive work-archive --user alice --date "1-6-2025 to 7-6-2025"`,
		Args: exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runArchive(cmd.Context(), app, root, args[0], archiver.TypeGeneral, false)
		},
	}
}

func newTimesheetCommand(app *App, root *rootOptions) *cobra.Command {
	var travel bool

	cmd := &cobra.Command{
		Use:   "timesheet <config-name>",
		Short: "Archive only billable appointments for a date range",
		Long: `Timesheet runs the named configuration like archive, but keeps only
appointments whose category marks them billable or non-billable work.
Travel entries are dropped unless --travel is given.

Examples:
  admin-assistant timesheet billing --user alice --date "last month"
  admin-assistant timesheet billing --user alice --date "last week" --travel`,
		Args: exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runArchive(cmd.Context(), app, root, args[0], archiver.TypeTimesheet, travel)
		},
	}

	cmd.Flags().BoolVar(&travel, "travel", false, "keep travel appointments in the timesheet")
	return cmd
}

func runArchive(ctx context.Context, app *App, root *rootOptions, configName string, archiveType archiver.ArchiveType, travel bool) error {
	usr, err := resolveUser(ctx, app, root.User)
	if err != nil {
		return err
	}
	cfg, err := app.Configs.GetByName(ctx, usr.ID, configName)
	if err != nil {
		return err
	}
	rng, err := daterange.Parse(root.Date, app.now())
	if err != nil {
		return err
	}

	app.logger().Info("starting archival run",
		zap.String("user", usr.Username),
		zap.String("configuration", cfg.Name),
		zap.String("period", rng.String()),
		zap.String("archive_type", string(archiveType)))

	result, err := app.Archiver.Archive(ctx, archiver.Request{
		User:          usr,
		Config:        cfg,
		Start:         rng.Start,
		End:           rng.End,
		Type:          archiveType,
		IncludeTravel: travel,
	})
	if err != nil {
		return err
	}

	printResult(app.out(), cfg.Name, rng, result)
	if result.Status != archiver.StatusSuccess {
		return fmt.Errorf("run finished with status %s", result.Status)
	}
	return nil
}

func printResult(w io.Writer, configName string, rng daterange.Range, result *archiver.Result) {
	fmt.Fprintf(w, "Archive %q (%s) %s\n", configName, result.ArchiveType, rng)
	fmt.Fprintf(w, "  status:      %s\n", result.Status)
	fmt.Fprintf(w, "  archived:    %d\n", result.ArchivedCount)

	if stats := result.ResolutionStats; stats.TotalOverlaps > 0 {
		fmt.Fprintf(w, "  overlaps:    %d detected, %d auto-resolved, %d left for manual action\n",
			stats.TotalOverlaps, stats.AutoResolved, stats.RemainingConflicts)
	}
	if result.CategoryIssueCount > 0 {
		fmt.Fprintf(w, "  categories:  %d appointment(s) with category issues\n", result.CategoryIssueCount)
	}
	if ts := result.TimesheetStats; ts != nil {
		fmt.Fprintf(w, "  timesheet:   kept %d of %d, billable %sh, non-billable %sh, travel %sh\n",
			ts.Included, ts.TotalExamined, ts.BillableHours, ts.NonBillableHours, ts.TravelHours)
	}
	if result.OperationID != nil {
		fmt.Fprintf(w, "  operation:   %s\n", result.OperationID)
	}
	fmt.Fprintf(w, "  correlation: %s\n", result.CorrelationID)
	for _, msg := range result.Errors {
		fmt.Fprintf(w, "  error:       %s\n", msg)
	}
}
