package task

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Auriora/admin-assistant-sub001/internal/domain/errors"
)

// EventType classifies why a task needs human attention. Open set; the
// constants cover the kinds the pipeline emits today.
type EventType string

const (
	EventTypeOverlap            EventType = "overlap"
	EventTypeCategoryValidation EventType = "category_validation"
	EventTypeArchiveError       EventType = "archive_error"
)

// State is the review lifecycle of a task. Transitions only move forward.
type State int

const (
	StateOpen State = iota
	StateNeedsUserAction
	StateResolved
	StateArchived
)

func (s State) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateNeedsUserAction:
		return "needs_user_action"
	case StateResolved:
		return "resolved"
	case StateArchived:
		return "archived"
	default:
		return "unknown"
	}
}

func ParseState(s string) (State, error) {
	switch s {
	case "open":
		return StateOpen, nil
	case "needs_user_action":
		return StateNeedsUserAction, nil
	case "resolved":
		return StateResolved, nil
	case "archived":
		return StateArchived, nil
	default:
		return StateOpen, errors.NewValidationError("INVALID_TASK_STATE", fmt.Sprintf("unknown task state %q", s))
	}
}

// ActionLog is a manual-resolution task, typically an unresolvable overlap
// or an invalid category, surfaced to the user for review.
type ActionLog struct {
	ID          uuid.UUID              `json:"id"`
	UserID      uuid.UUID              `json:"user_id"`
	EventType   EventType              `json:"event_type"`
	State       State                  `json:"state"`
	Description string                 `json:"description"`
	Details     map[string]interface{} `json:"details,omitempty"`

	// Recommendations carries optional AI-generated resolution hints.
	Recommendations []string `json:"recommendations,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func NewActionLog(userID uuid.UUID, eventType EventType, description string) (*ActionLog, error) {
	if userID == uuid.Nil {
		return nil, errors.NewValidationError("MISSING_USER_ID", "task requires an owning user")
	}
	if eventType == "" {
		return nil, errors.NewValidationError("MISSING_EVENT_TYPE", "task requires an event type")
	}
	if description == "" {
		return nil, errors.NewValidationError("MISSING_DESCRIPTION", "task requires a description")
	}

	now := time.Now().UTC()
	return &ActionLog{
		ID:          uuid.New(),
		UserID:      userID,
		EventType:   eventType,
		State:       StateOpen,
		Description: description,
		Details:     make(map[string]interface{}),
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// AddDetail stores one structured fact about the task.
func (a *ActionLog) AddDetail(key string, value interface{}) {
	if a.Details == nil {
		a.Details = make(map[string]interface{})
	}
	a.Details[key] = value
}

// TransitionTo advances the lifecycle. Moving backwards is rejected;
// repeating the current state is a no-op.
func (a *ActionLog) TransitionTo(next State) error {
	if next < a.State {
		return errors.NewValidationError("TASK_STATE_REGRESSION",
			fmt.Sprintf("cannot move task from %s back to %s", a.State, next))
	}
	if next == a.State {
		return nil
	}
	a.State = next
	a.UpdatedAt = time.Now().UTC()
	return nil
}

func (a *ActionLog) RequireUserAction() error { return a.TransitionTo(StateNeedsUserAction) }
func (a *ActionLog) Resolve() error           { return a.TransitionTo(StateResolved) }
func (a *ActionLog) Archive() error           { return a.TransitionTo(StateArchived) }

// ModelType implements the audit model projection contract.
func (a *ActionLog) ModelType() string { return "ActionLog" }

// TableName implements the audit model projection contract.
func (a *ActionLog) TableName() string { return "action_log" }

// IdentityFields implements the audit model projection contract.
func (a *ActionLog) IdentityFields() map[string]interface{} {
	return map[string]interface{}{
		"id":         a.ID.String(),
		"event_type": string(a.EventType),
		"state":      a.State.String(),
	}
}
