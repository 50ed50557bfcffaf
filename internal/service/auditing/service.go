package auditing

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Auriora/admin-assistant-sub001/internal/domain/audit"
	"github.com/Auriora/admin-assistant-sub001/internal/domain/errors"
)

// Service records the audit trail for archive, timesheet and reversal runs.
// Entries written through a Context share one correlation id and form a tree
// rooted at the entry with no parent.
type Service interface {
	// Begin opens an audited unit of work and persists its started entry.
	Begin(ctx context.Context, userID uuid.UUID, actionType audit.ActionType, operation string, correlationID string) (*Context, error)
	// Record writes a single already-terminal entry outside any scope.
	Record(ctx context.Context, userID uuid.UUID, actionType audit.ActionType, operation string, status audit.Status, correlationID string, details map[string]interface{}) (*audit.Entry, error)
	// LogDataModification writes a success entry carrying the field-level diff
	// between two sanitized snapshots of the same resource.
	LogDataModification(ctx context.Context, userID uuid.UUID, correlationID string, resourceType, resourceID string, oldState, newState map[string]interface{}) (*audit.Entry, error)
	// Trail returns the entries of one logical action, oldest first.
	Trail(ctx context.Context, correlationID string) ([]*audit.Entry, error)
}

type service struct {
	repo   Repository
	logger *zap.Logger
	mu     sync.RWMutex
}

// NewService creates an audit service backed by the given repository.
func NewService(repo Repository, logger *zap.Logger) (Service, error) {
	if repo == nil {
		return nil, errors.NewInternalError("audit repository is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &service{repo: repo, logger: logger}, nil
}

func (s *service) Begin(ctx context.Context, userID uuid.UUID, actionType audit.ActionType, operation string, correlationID string) (*Context, error) {
	if correlationID == "" {
		correlationID = audit.NewCorrelationID()
	}
	entry, err := audit.NewEntry(userID, actionType, operation, correlationID)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, entry); err != nil {
		return nil, errors.NewInternalError("failed to open audit scope").WithCause(err)
	}
	return newContext(s, entry), nil
}

func (s *service) Record(ctx context.Context, userID uuid.UUID, actionType audit.ActionType, operation string, status audit.Status, correlationID string, details map[string]interface{}) (*audit.Entry, error) {
	if correlationID == "" {
		correlationID = audit.NewCorrelationID()
	}
	entry, err := audit.NewEntry(userID, actionType, operation, correlationID)
	if err != nil {
		return nil, err
	}
	entry.Details = audit.SanitizeMap(details)
	if err := entry.Close(status, "", 0); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, entry); err != nil {
		return nil, errors.NewInternalError("failed to record audit entry").WithCause(err)
	}
	return entry, nil
}

func (s *service) LogDataModification(ctx context.Context, userID uuid.UUID, correlationID string, resourceType, resourceID string, oldState, newState map[string]interface{}) (*audit.Entry, error) {
	diff := audit.ComputeDiff(oldState, newState)
	details := map[string]interface{}{
		"changes":       diff,
		"changed_count": len(diff),
	}
	entry, err := audit.NewEntry(userID, audit.ActionTypeSystem, "data_modification", correlationID)
	if err != nil {
		return nil, err
	}
	entry.WithResource(resourceType, resourceID)
	entry.Details = audit.SanitizeMap(details)
	if err := entry.Close(audit.StatusSuccess, fmt.Sprintf("%d field(s) changed", len(diff)), 0); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, entry); err != nil {
		return nil, errors.NewInternalError("failed to record data modification").WithCause(err)
	}
	return entry, nil
}

func (s *service) Trail(ctx context.Context, correlationID string) ([]*audit.Entry, error) {
	if correlationID == "" {
		return nil, errors.NewValidationError("MISSING_CORRELATION_ID", "correlation id is required")
	}
	return s.repo.ListByCorrelation(ctx, correlationID)
}
