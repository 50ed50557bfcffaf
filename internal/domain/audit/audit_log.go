package audit

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Auriora/admin-assistant-sub001/internal/domain/errors"
)

// Status is the lifecycle of one audit record.
type Status string

const (
	StatusStarted    Status = "started"
	StatusInProgress Status = "in_progress"
	StatusSuccess    Status = "success"
	StatusPartial    Status = "partial"
	StatusFailure    Status = "failure"
)

// IsTerminal reports whether the status closes the record.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusSuccess, StatusPartial, StatusFailure:
		return true
	default:
		return false
	}
}

// ActionType groups audit records by the user-visible action they serve.
type ActionType string

const (
	ActionTypeArchive   ActionType = "archive"
	ActionTypeTimesheet ActionType = "timesheet"
	ActionTypeReverse   ActionType = "reverse"
	ActionTypeBatch     ActionType = "batch"
	ActionTypeSystem    ActionType = "system"
)

// Entry is one audit record. Entries under a shared correlation id form a
// tree via ParentAuditID; the root reconstructs one logical user action.
type Entry struct {
	ID            uuid.UUID              `json:"id"`
	UserID        uuid.UUID              `json:"user_id"`
	ActionType    ActionType             `json:"action_type"`
	Operation     string                 `json:"operation"`
	ResourceType  string                 `json:"resource_type,omitempty"`
	ResourceID    string                 `json:"resource_id,omitempty"`
	Status        Status                 `json:"status"`
	Message       string                 `json:"message,omitempty"`
	Details       map[string]interface{} `json:"details,omitempty"`
	RequestData   map[string]interface{} `json:"request_data,omitempty"`
	ResponseData  map[string]interface{} `json:"response_data,omitempty"`
	DurationMS    *int64                 `json:"duration_ms,omitempty"`
	CorrelationID string                 `json:"correlation_id"`
	ParentAuditID *uuid.UUID             `json:"parent_audit_id,omitempty"`
	CreatedAt     time.Time              `json:"created_at"`
}

// NewEntry creates an open audit record with status started.
func NewEntry(userID uuid.UUID, actionType ActionType, operation, correlationID string) (*Entry, error) {
	if userID == uuid.Nil {
		return nil, errors.NewValidationError("MISSING_USER_ID", "audit entry requires a user")
	}
	if operation == "" {
		return nil, errors.NewValidationError("MISSING_OPERATION", "audit entry requires an operation name")
	}
	if correlationID == "" {
		return nil, errors.NewValidationError("MISSING_CORRELATION_ID", "audit entry requires a correlation id")
	}

	return &Entry{
		ID:            uuid.New(),
		UserID:        userID,
		ActionType:    actionType,
		Operation:     operation,
		Status:        StatusStarted,
		Details:       make(map[string]interface{}),
		CorrelationID: correlationID,
		CreatedAt:     time.Now().UTC(),
	}, nil
}

// NewCorrelationID allocates the opaque id that links every record of one run.
func NewCorrelationID() string {
	return uuid.New().String()
}

func (e *Entry) WithParent(parentID uuid.UUID) *Entry {
	e.ParentAuditID = &parentID
	return e
}

func (e *Entry) WithResource(resourceType, resourceID string) *Entry {
	e.ResourceType = resourceType
	e.ResourceID = resourceID
	return e
}

// Close finalizes the record with a terminal status and a wall-clock duration.
func (e *Entry) Close(status Status, message string, duration time.Duration) error {
	if !status.IsTerminal() {
		return errors.NewValidationError("NON_TERMINAL_STATUS",
			fmt.Sprintf("cannot close audit entry with status %s", status))
	}
	ms := duration.Milliseconds()
	e.Status = status
	e.Message = message
	e.DurationMS = &ms
	return nil
}

// ModelType implements the model projection contract.
func (e *Entry) ModelType() string { return "AuditEntry" }

// TableName implements the model projection contract.
func (e *Entry) TableName() string { return "audit_log" }

// IdentityFields implements the model projection contract.
func (e *Entry) IdentityFields() map[string]interface{} {
	return map[string]interface{}{
		"id":             e.ID.String(),
		"operation":      e.Operation,
		"correlation_id": e.CorrelationID,
		"status":         string(e.Status),
	}
}
