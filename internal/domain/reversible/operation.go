package reversible

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Auriora/admin-assistant-sub001/internal/domain/errors"
)

// ReverseAction names how one captured item is undone.
type ReverseAction string

const (
	// ActionRestore recreates a deleted or overwritten item from before_state.
	ActionRestore ReverseAction = "restore"
	// ActionDelete removes an item the operation created.
	ActionDelete ReverseAction = "delete"
	// ActionUpdate writes before_state back over a mutated item.
	ActionUpdate ReverseAction = "update"
)

func ParseReverseAction(s string) (ReverseAction, error) {
	switch ReverseAction(s) {
	case ActionRestore, ActionDelete, ActionUpdate:
		return ReverseAction(s), nil
	default:
		return "", errors.NewValidationError("INVALID_REVERSE_ACTION", fmt.Sprintf("unknown reverse action %q", s))
	}
}

// Operation is one logical reversible action: a completed side-effectful
// step together with enough captured state to undo it.
type Operation struct {
	ID            uuid.UUID  `json:"id"`
	AuditLogID    *uuid.UUID `json:"audit_log_id,omitempty"`
	UserID        uuid.UUID  `json:"user_id"`
	OperationType string     `json:"operation_type"`
	OperationName string     `json:"operation_name"`
	CorrelationID string     `json:"correlation_id"`

	// DependsOn is informational lineage; Blocks gates reversal. Every
	// operation listed in Blocks must be reversed before this one.
	DependsOn []uuid.UUID `json:"depends_on,omitempty"`
	Blocks    []uuid.UUID `json:"blocks,omitempty"`

	IsReversible     bool       `json:"is_reversible"`
	IsReversed       bool       `json:"is_reversed"`
	ReverseReason    string     `json:"reverse_reason,omitempty"`
	ReversedAt       *time.Time `json:"reversed_at,omitempty"`
	ReversedByUserID *uuid.UUID `json:"reversed_by_user_id,omitempty"`

	Items []*Item `json:"items,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func NewOperation(userID uuid.UUID, operationType, operationName, correlationID string) (*Operation, error) {
	if userID == uuid.Nil {
		return nil, errors.NewValidationError("MISSING_USER_ID", "reversible operation requires an owning user")
	}
	if operationType == "" {
		return nil, errors.NewValidationError("MISSING_OPERATION_TYPE", "reversible operation requires a type")
	}
	if correlationID == "" {
		return nil, errors.NewValidationError("MISSING_CORRELATION_ID", "reversible operation requires a correlation id")
	}

	now := time.Now().UTC()
	return &Operation{
		ID:            uuid.New(),
		UserID:        userID,
		OperationType: operationType,
		OperationName: operationName,
		CorrelationID: correlationID,
		IsReversible:  true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

// MarkNotReversible permanently disables reversal, recording why.
func (o *Operation) MarkNotReversible(reason string) {
	o.IsReversible = false
	o.ReverseReason = reason
	o.UpdatedAt = time.Now().UTC()
}

// MarkReversed finalizes a completed reversal. The is_reversed flag implies
// is_reversible, so an operation disabled for reversal can never carry it.
func (o *Operation) MarkReversed(by uuid.UUID, reason string) error {
	if !o.IsReversible {
		return errors.NewValidationError("NOT_REVERSIBLE",
			fmt.Sprintf("operation %s is not reversible: %s", o.ID, o.ReverseReason))
	}
	if o.IsReversed {
		return errors.NewConflictError(fmt.Sprintf("operation %s is already reversed", o.ID))
	}
	now := time.Now().UTC()
	o.IsReversed = true
	o.ReverseReason = reason
	o.ReversedAt = &now
	o.ReversedByUserID = &by
	o.UpdatedAt = now
	return nil
}

// AddBlocker records that blocker must be reversed before this operation.
func (o *Operation) AddBlocker(blocker uuid.UUID) {
	for _, b := range o.Blocks {
		if b == blocker {
			return
		}
	}
	o.Blocks = append(o.Blocks, blocker)
	o.UpdatedAt = time.Now().UTC()
}

// AddDependency records lineage to an earlier operation.
func (o *Operation) AddDependency(dep uuid.UUID) {
	for _, d := range o.DependsOn {
		if d == dep {
			return
		}
	}
	o.DependsOn = append(o.DependsOn, dep)
	o.UpdatedAt = time.Now().UTC()
}

// ModelType implements the audit model projection contract.
func (o *Operation) ModelType() string { return "ReversibleOperation" }

// TableName implements the audit model projection contract.
func (o *Operation) TableName() string { return "reversible_operations" }

// IdentityFields implements the audit model projection contract.
func (o *Operation) IdentityFields() map[string]interface{} {
	return map[string]interface{}{
		"id":             o.ID.String(),
		"operation_type": o.OperationType,
		"correlation_id": o.CorrelationID,
		"is_reversed":    o.IsReversed,
	}
}

// Item is one unit of captured state inside an operation.
type Item struct {
	ID          uuid.UUID `json:"id"`
	OperationID uuid.UUID `json:"operation_id"`
	ItemType    string    `json:"item_type"`
	ItemID      string    `json:"item_id,omitempty"`
	ExternalID  string    `json:"external_id,omitempty"`

	BeforeState map[string]interface{} `json:"before_state,omitempty"`
	AfterState  map[string]interface{} `json:"after_state,omitempty"`

	ReverseAction ReverseAction          `json:"reverse_action"`
	ReverseData   map[string]interface{} `json:"reverse_data,omitempty"`

	IsReversed   bool   `json:"is_reversed"`
	ReverseError string `json:"reverse_error,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

func NewItem(operationID uuid.UUID, itemType string, action ReverseAction) (*Item, error) {
	if operationID == uuid.Nil {
		return nil, errors.NewValidationError("MISSING_OPERATION_ID", "item requires an operation")
	}
	if itemType == "" {
		return nil, errors.NewValidationError("MISSING_ITEM_TYPE", "item requires a type")
	}
	if _, err := ParseReverseAction(string(action)); err != nil {
		return nil, err
	}

	return &Item{
		ID:            uuid.New(),
		OperationID:   operationID,
		ItemType:      itemType,
		ReverseAction: action,
		CreatedAt:     time.Now().UTC(),
	}, nil
}

func (i *Item) WithItemID(id string) *Item {
	i.ItemID = id
	return i
}

func (i *Item) WithExternalID(externalID string) *Item {
	i.ExternalID = externalID
	return i
}

func (i *Item) WithBeforeState(state map[string]interface{}) *Item {
	i.BeforeState = state
	return i
}

func (i *Item) WithReverseData(data map[string]interface{}) *Item {
	i.ReverseData = data
	return i
}

// MarkReversed records a successful undo of this item.
func (i *Item) MarkReversed() {
	i.IsReversed = true
	i.ReverseError = ""
}

// MarkReverseFailed records a per-item failure without aborting the driver.
func (i *Item) MarkReverseFailed(reason string) {
	i.IsReversed = false
	i.ReverseError = reason
}

// AllItemsSettled reports whether every item is reversed or carries an
// explicit failure. The operation-level reversed flag requires it.
func (o *Operation) AllItemsSettled() bool {
	for _, item := range o.Items {
		if !item.IsReversed && item.ReverseError == "" {
			return false
		}
	}
	return true
}
