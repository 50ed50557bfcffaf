package cli

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/Auriora/admin-assistant-sub001/internal/domain/errors"
	"github.com/Auriora/admin-assistant-sub001/internal/domain/reversible"
	"github.com/Auriora/admin-assistant-sub001/internal/service/recovery"
)

func newRecoveryCommand(app *App, root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "recovery",
		Short: "Inspect and reverse recorded archival operations",
	}
	cmd.AddCommand(
		newRecoveryListCommand(app, root),
		newRecoveryShowCommand(app),
		newRecoveryReverseCommand(app, root),
	)
	return cmd
}

func newRecoveryListCommand(app *App, root *rootOptions) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List a user's reversible operations, newest first",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			usr, err := resolveUser(cmd.Context(), app, root.User)
			if err != nil {
				return err
			}
			ops, err := app.Recovery.ListOperations(cmd.Context(), usr.ID, limit)
			if err != nil {
				return err
			}
			if len(ops) == 0 {
				fmt.Fprintln(app.out(), "No operations recorded.")
				return nil
			}

			tw := tabwriter.NewWriter(app.out(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tTYPE\tNAME\tCREATED\tSTATE\tITEMS")
			for _, op := range ops {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%d\n",
					op.ID, op.OperationType, op.OperationName,
					op.CreatedAt.UTC().Format(time.RFC3339), operationState(op), len(op.Items))
			}
			return tw.Flush()
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of operations to list")
	return cmd
}

func newRecoveryShowCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "show <operation-id>",
		Short: "Show one operation with its captured items",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseOperationID(args[0])
			if err != nil {
				return err
			}
			op, err := app.Recovery.GetOperation(cmd.Context(), id)
			if err != nil {
				return err
			}
			printOperation(app.out(), op)
			return nil
		},
	}
}

func newRecoveryReverseCommand(app *App, root *rootOptions) *cobra.Command {
	var (
		reason string
		dryRun bool
	)

	cmd := &cobra.Command{
		Use:   "reverse <operation-id>",
		Short: "Undo an operation's recorded changes",
		Long: `Reverse undoes every item captured under one operation: appointments the
run created are removed and appointments it changed are restored from their
captured state. With --dry-run the planned actions are printed without
touching anything.`,
		Args: exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseOperationID(args[0])
			if err != nil {
				return err
			}
			usr, err := resolveUser(cmd.Context(), app, root.User)
			if err != nil {
				return err
			}

			res, err := app.Recovery.Reverse(cmd.Context(), id, usr.ID, reason, dryRun)
			if err != nil {
				return err
			}

			printReverseResult(app.out(), id, res)
			if !res.DryRun {
				if res.Success {
					app.recordReversal("success")
				} else {
					app.recordReversal("failed")
				}
			}
			if !res.Success {
				return fmt.Errorf("reversal of %s did not complete", id)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&reason, "reason", "", "why the operation is being reversed")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print the planned actions without executing them")
	return cmd
}

func parseOperationID(s string) (uuid.UUID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, errors.NewValidationError("INVALID_OPERATION_ID",
			fmt.Sprintf("%q is not a valid operation id", s))
	}
	return id, nil
}

func operationState(op *reversible.Operation) string {
	switch {
	case op.IsReversed:
		return "reversed"
	case !op.IsReversible:
		return "not-reversible"
	default:
		return "reversible"
	}
}

func printOperation(w io.Writer, op *reversible.Operation) {
	fmt.Fprintf(w, "Operation %s\n", op.ID)
	fmt.Fprintf(w, "  type:        %s\n", op.OperationType)
	if op.OperationName != "" {
		fmt.Fprintf(w, "  name:        %s\n", op.OperationName)
	}
	fmt.Fprintf(w, "  user:        %s\n", op.UserID)
	fmt.Fprintf(w, "  correlation: %s\n", op.CorrelationID)
	fmt.Fprintf(w, "  created:     %s\n", op.CreatedAt.UTC().Format(time.RFC3339))
	fmt.Fprintf(w, "  state:       %s\n", operationState(op))
	if op.IsReversed && op.ReversedAt != nil {
		fmt.Fprintf(w, "  reversed:    %s", op.ReversedAt.UTC().Format(time.RFC3339))
		if op.ReversedByUserID != nil {
			fmt.Fprintf(w, " by %s", op.ReversedByUserID)
		}
		fmt.Fprintln(w)
	}
	if op.ReverseReason != "" {
		fmt.Fprintf(w, "  reason:      %s\n", op.ReverseReason)
	}
	if len(op.Blocks) > 0 {
		fmt.Fprintf(w, "  blocked by:  %s\n", joinIDs(op.Blocks))
	}

	if len(op.Items) == 0 {
		return
	}
	fmt.Fprintf(w, "  items (%d):\n", len(op.Items))
	for _, item := range op.Items {
		ref := item.ExternalID
		if ref == "" {
			ref = item.ItemID
		}
		line := fmt.Sprintf("    %s %s %s", item.ReverseAction, item.ItemType, ref)
		switch {
		case item.IsReversed:
			line += " (reversed)"
		case item.ReverseError != "":
			line += " (failed: " + item.ReverseError + ")"
		}
		fmt.Fprintln(w, line)
	}
}

func printReverseResult(w io.Writer, id uuid.UUID, res *recovery.ReverseResult) {
	if res.DryRun {
		fmt.Fprintf(w, "Dry run: %d item(s) would be reversed for %s\n", res.ItemsToReverse, id)
		for _, plan := range res.ReverseActions {
			fmt.Fprintf(w, "  %s %s %s\n", plan.Action, plan.ItemType, plan.ItemID)
		}
		return
	}

	if res.Success {
		fmt.Fprintf(w, "Reversed %d item(s) for %s\n", res.ReversedItems, id)
		return
	}

	if len(res.Reasons) > 0 {
		fmt.Fprintf(w, "Operation %s cannot be reversed:\n", id)
		for _, reason := range res.Reasons {
			fmt.Fprintf(w, "  %s\n", reason)
		}
		return
	}

	fmt.Fprintf(w, "Reversed %d item(s), %d failed for %s\n", res.ReversedItems, res.FailedItems, id)
	for _, msg := range res.Errors {
		fmt.Fprintf(w, "  error: %s\n", msg)
	}
}

func joinIDs(ids []uuid.UUID) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = id.String()
	}
	return strings.Join(parts, ", ")
}
