package cli

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/Auriora/admin-assistant-sub001/internal/cli/daterange"
	"github.com/Auriora/admin-assistant-sub001/internal/domain/errors"
	"github.com/Auriora/admin-assistant-sub001/internal/domain/user"
	"github.com/Auriora/admin-assistant-sub001/internal/service/archiver"
	"github.com/Auriora/admin-assistant-sub001/internal/service/scheduler"
)

func newBatchCommand(app *App, root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "batch",
		Short: "Archive every active configuration through the worker pool",
		Long: `Batch archives the --date range for every active configuration of every
active user, fanning the runs over a bounded worker pool. A per-configuration
run lock skips configurations already being archived by another process, so
overlapping cron schedules are safe.

With --user the batch covers only that user's configurations.

Examples:
  admin-assistant batch
  admin-assistant batch --date "last 7 days"
  admin-assistant batch --user alice@example.com --date yesterday`,
		Args: exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBatch(cmd.Context(), app, root)
		},
	}
}

func runBatch(ctx context.Context, app *App, root *rootOptions) error {
	if app.Scheduler == nil {
		return errors.NewInternalError("scheduler pool is not configured")
	}
	rng, err := daterange.Parse(root.Date, app.now())
	if err != nil {
		return err
	}

	var users []*user.User
	if strings.TrimSpace(root.User) != "" {
		usr, err := app.Users.GetByIdentifier(ctx, root.User)
		if err != nil {
			return err
		}
		users = []*user.User{usr}
	} else {
		users, err = app.Users.List(ctx)
		if err != nil {
			return err
		}
	}

	var jobs []scheduler.Job
	for _, usr := range users {
		if !usr.IsActive {
			continue
		}
		cfgs, err := app.Configs.ListByUser(ctx, usr.ID, true)
		if err != nil {
			return err
		}
		for _, cfg := range cfgs {
			jobs = append(jobs, scheduler.Job{
				User:   usr,
				Config: cfg,
				Start:  rng.Start,
				End:    rng.End,
			})
		}
	}
	if len(jobs) == 0 {
		fmt.Fprintln(app.out(), "No active configurations to archive.")
		return nil
	}

	results, err := app.Scheduler.Run(ctx, jobs)
	if err != nil {
		return err
	}

	fmt.Fprintf(app.out(), "Batch %s\n", rng)

	var failed int
	tw := tabwriter.NewWriter(app.out(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "USER\tCONFIG\tOUTCOME")
	for _, res := range results {
		if !jobSucceeded(res) {
			failed++
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n",
			res.Job.User.Username, res.Job.Config.Name, describeJobOutcome(res))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(app.out(), "%d job(s): %d ok, %d failed\n", len(results), len(results)-failed, failed)
	if failed > 0 {
		return fmt.Errorf("%d of %d job(s) failed", failed, len(results))
	}
	return nil
}

// jobSucceeded treats a lock skip as success: another process owns the run.
func jobSucceeded(res scheduler.JobResult) bool {
	if res.Skipped {
		return true
	}
	if res.Err != nil {
		return false
	}
	return res.Result != nil && res.Result.Status == archiver.StatusSuccess
}

func describeJobOutcome(res scheduler.JobResult) string {
	switch {
	case res.Skipped:
		return "skipped (already running elsewhere)"
	case res.Err != nil:
		return "failed: " + res.Err.Error()
	case res.Result == nil:
		return "failed: no result"
	case res.Result.Status == archiver.StatusSuccess:
		return fmt.Sprintf("archived %d", res.Result.ArchivedCount)
	default:
		return fmt.Sprintf("%s: archived %d with %d error(s)",
			res.Result.Status, res.Result.ArchivedCount, len(res.Result.Errors))
	}
}
