package recovery

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Auriora/admin-assistant-sub001/internal/domain/audit"
	"github.com/Auriora/admin-assistant-sub001/internal/domain/errors"
	"github.com/Auriora/admin-assistant-sub001/internal/domain/reversible"
	"github.com/Auriora/admin-assistant-sub001/internal/service/auditing"
)

// Service records operations that can later be undone and drives their
// reversal. Reversal works item by item: one failed item never aborts the
// rest, and a partially reversed operation stays unreversed so it can be
// retried.
type Service interface {
	// StartOperation opens a reversible operation before its side effects run.
	StartOperation(ctx context.Context, userID uuid.UUID, operationType, operationName, correlationID string, auditLogID *uuid.UUID) (*reversible.Operation, error)
	// CaptureItems appends captured state for items the operation touched.
	CaptureItems(ctx context.Context, op *reversible.Operation, items ...*reversible.Item) error
	// CompleteOperation persists the operation after its side effects finished.
	CompleteOperation(ctx context.Context, op *reversible.Operation) error
	// FailOperation marks a failed operation as permanently non-reversible.
	FailOperation(ctx context.Context, op *reversible.Operation) error
	// CancelOperation marks an interrupted operation as permanently non-reversible.
	CancelOperation(ctx context.Context, op *reversible.Operation) error
	// Reverse undoes an operation's items. With dryRun it only previews the
	// planned actions, in execution order, without touching any state.
	Reverse(ctx context.Context, operationID, requestedBy uuid.UUID, reason string, dryRun bool) (*ReverseResult, error)
	// GetOperation retrieves one operation with its items.
	GetOperation(ctx context.Context, id uuid.UUID) (*reversible.Operation, error)
	// ListOperations returns a user's operations, newest first.
	ListOperations(ctx context.Context, userID uuid.UUID, limit int) ([]*reversible.Operation, error)
}

const (
	reasonFailed    = "Operation failed - cannot reverse"
	reasonCancelled = "Operation cancelled mid-flight"
)

type service struct {
	repo      OperationRepository
	audit     auditing.Service
	reversers map[string]ItemReverser
	logger    *zap.Logger
}

// NewService creates a recovery service. The reversers map binds each item
// type to the component that knows how to undo it.
func NewService(repo OperationRepository, auditSvc auditing.Service, reversers map[string]ItemReverser, logger *zap.Logger) (Service, error) {
	if repo == nil {
		return nil, errors.NewInternalError("operation repository is required")
	}
	if auditSvc == nil {
		return nil, errors.NewInternalError("audit service is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if reversers == nil {
		reversers = make(map[string]ItemReverser)
	}
	return &service{repo: repo, audit: auditSvc, reversers: reversers, logger: logger}, nil
}

func (s *service) StartOperation(ctx context.Context, userID uuid.UUID, operationType, operationName, correlationID string, auditLogID *uuid.UUID) (*reversible.Operation, error) {
	op, err := reversible.NewOperation(userID, operationType, operationName, correlationID)
	if err != nil {
		return nil, err
	}
	op.AuditLogID = auditLogID
	if err := s.repo.Create(ctx, op); err != nil {
		return nil, errors.NewInternalError("failed to open reversible operation").WithCause(err)
	}
	return op, nil
}

func (s *service) CaptureItems(ctx context.Context, op *reversible.Operation, items ...*reversible.Item) error {
	for _, item := range items {
		if item.OperationID != op.ID {
			return errors.NewValidationError("ITEM_OPERATION_MISMATCH",
				fmt.Sprintf("item %s belongs to operation %s", item.ID, item.OperationID))
		}
		if err := s.repo.CreateItem(ctx, item); err != nil {
			return errors.NewInternalError("failed to capture operation item").WithCause(err)
		}
		op.Items = append(op.Items, item)
	}
	return nil
}

func (s *service) CompleteOperation(ctx context.Context, op *reversible.Operation) error {
	if err := s.repo.Update(ctx, op); err != nil {
		return errors.NewInternalError("failed to persist operation").WithCause(err)
	}
	return nil
}

func (s *service) FailOperation(ctx context.Context, op *reversible.Operation) error {
	op.MarkNotReversible(reasonFailed)
	return s.CompleteOperation(ctx, op)
}

func (s *service) CancelOperation(ctx context.Context, op *reversible.Operation) error {
	op.MarkNotReversible(reasonCancelled)
	return s.CompleteOperation(ctx, op)
}

func (s *service) GetOperation(ctx context.Context, id uuid.UUID) (*reversible.Operation, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *service) ListOperations(ctx context.Context, userID uuid.UUID, limit int) ([]*reversible.Operation, error) {
	return s.repo.ListByUser(ctx, userID, limit)
}

func (s *service) Reverse(ctx context.Context, operationID, requestedBy uuid.UUID, reason string, dryRun bool) (*ReverseResult, error) {
	op, err := s.repo.GetByID(ctx, operationID)
	if err != nil {
		return nil, err
	}
	if op.UserID != requestedBy {
		return nil, errors.NewUnauthorizedError(
			fmt.Sprintf("operation %s belongs to another user", op.ID))
	}

	if reasons := s.reverseBlockers(ctx, op); len(reasons) > 0 {
		return &ReverseResult{Success: false, Reasons: reasons}, nil
	}

	pending := pendingItems(op)
	if dryRun {
		plans := make([]ReversePlan, 0, len(pending))
		for _, item := range pending {
			plans = append(plans, ReversePlan{
				Action:   string(item.ReverseAction),
				ItemType: item.ItemType,
				ItemID:   itemRef(item),
			})
		}
		return &ReverseResult{
			Success:        true,
			DryRun:         true,
			ItemsToReverse: len(pending),
			ReverseActions: plans,
		}, nil
	}

	scope := s.beginAudit(ctx, requestedBy, op)

	var reversed, failed int
	var errStrings []string
	for _, item := range pending {
		if ctxErr := ctx.Err(); ctxErr != nil {
			item.MarkReverseFailed("reversal cancelled before this item")
			failed++
			errStrings = append(errStrings, fmt.Sprintf("%s %s: reversal cancelled", item.ItemType, itemRef(item)))
			s.persistItem(ctx, item)
			continue
		}

		if err := s.reverseItem(ctx, op.UserID, item); err != nil {
			item.MarkReverseFailed(err.Error())
			failed++
			errStrings = append(errStrings, fmt.Sprintf("%s %s: %v", item.ItemType, itemRef(item), err))
		} else {
			item.MarkReversed()
			reversed++
		}
		s.persistItem(ctx, item)
	}

	if failed == 0 {
		if err := op.MarkReversed(requestedBy, reason); err != nil {
			s.endAudit(ctx, scope, audit.StatusFailure, err.Error(), err)
			return nil, err
		}
		if err := s.repo.Update(ctx, op); err != nil {
			s.endAudit(ctx, scope, audit.StatusFailure, "failed to persist reversed operation", err)
			return nil, errors.NewInternalError("failed to persist reversed operation").WithCause(err)
		}
		s.endAudit(ctx, scope, audit.StatusSuccess,
			fmt.Sprintf("reversed %d item(s)", reversed), nil)
		return &ReverseResult{Success: true, ReversedItems: reversed}, nil
	}

	if err := s.repo.Update(ctx, op); err != nil {
		s.logger.Warn("failed to persist partially reversed operation",
			zap.String("operation_id", op.ID.String()), zap.Error(err))
	}
	s.endAudit(ctx, scope, audit.StatusPartial,
		fmt.Sprintf("reversed %d of %d item(s)", reversed, reversed+failed), nil)
	return &ReverseResult{
		Success:       false,
		ReversedItems: reversed,
		FailedItems:   failed,
		Errors:        errStrings,
	}, nil
}

// reverseBlockers collects every reason the operation cannot be reversed now.
func (s *service) reverseBlockers(ctx context.Context, op *reversible.Operation) []string {
	var reasons []string
	if op.IsReversed {
		reasons = append(reasons, "Operation has already been reversed")
	}
	if !op.IsReversible {
		reason := "Operation is not reversible"
		if op.ReverseReason != "" {
			reason = fmt.Sprintf("%s: %s", reason, op.ReverseReason)
		}
		reasons = append(reasons, reason)
	}
	var blocking []string
	for _, blockerID := range op.Blocks {
		blocker, err := s.repo.GetByID(ctx, blockerID)
		if err != nil {
			blocking = append(blocking, blockerID.String())
			continue
		}
		if !blocker.IsReversed {
			name := blocker.OperationName
			if name == "" {
				name = blocker.ID.String()
			}
			blocking = append(blocking, name)
		}
	}
	if len(blocking) > 0 {
		reasons = append(reasons,
			"Dependent operations must be reversed first: "+strings.Join(blocking, ", "))
	}
	return reasons
}

// pendingItems returns the items still to undo, newest captured first.
func pendingItems(op *reversible.Operation) []*reversible.Item {
	pending := make([]*reversible.Item, 0, len(op.Items))
	for i := len(op.Items) - 1; i >= 0; i-- {
		if !op.Items[i].IsReversed {
			pending = append(pending, op.Items[i])
		}
	}
	return pending
}

func (s *service) reverseItem(ctx context.Context, userID uuid.UUID, item *reversible.Item) error {
	reverser, ok := s.reversers[item.ItemType]
	if !ok {
		return errors.NewValidationError("NO_REVERSER",
			fmt.Sprintf("no reverser registered for item type %q", item.ItemType))
	}
	switch item.ReverseAction {
	case reversible.ActionRestore:
		return reverser.Restore(ctx, userID, item)
	case reversible.ActionDelete:
		return reverser.Delete(ctx, userID, item)
	case reversible.ActionUpdate:
		return reverser.Update(ctx, userID, item)
	default:
		return errors.NewValidationError("INVALID_REVERSE_ACTION",
			fmt.Sprintf("unknown reverse action %q", item.ReverseAction))
	}
}

func (s *service) persistItem(ctx context.Context, item *reversible.Item) {
	if err := s.repo.UpdateItem(ctx, item); err != nil {
		s.logger.Warn("failed to persist item reversal state",
			zap.String("item_id", item.ID.String()), zap.Error(err))
	}
}

// beginAudit opens the reversal's audit scope. Audit failures are logged and
// swallowed so they cannot block the reversal itself.
func (s *service) beginAudit(ctx context.Context, requestedBy uuid.UUID, op *reversible.Operation) *auditing.Context {
	scope, err := s.audit.Begin(ctx, requestedBy, audit.ActionTypeReverse, "reverse_operation", op.CorrelationID)
	if err != nil {
		s.logger.Warn("failed to open reversal audit scope",
			zap.String("operation_id", op.ID.String()), zap.Error(err))
		return nil
	}
	scope.SetResource("ReversibleOperation", op.ID.String())
	return scope
}

func (s *service) endAudit(ctx context.Context, scope *auditing.Context, status audit.Status, message string, runErr error) {
	if scope == nil {
		return
	}
	if runErr != nil {
		scope.End(ctx, runErr)
		return
	}
	scope.EndWithStatus(ctx, status, message, nil)
}

func itemRef(item *reversible.Item) string {
	if item.ExternalID != "" {
		return item.ExternalID
	}
	if item.ItemID != "" {
		return item.ItemID
	}
	return item.ID.String()
}
