package recovery

import (
	"context"

	"github.com/google/uuid"

	"github.com/Auriora/admin-assistant-sub001/internal/domain/appointment"
	"github.com/Auriora/admin-assistant-sub001/internal/domain/reversible"
)

// OperationRepository stores reversible operations and their items.
type OperationRepository interface {
	// Create persists a new operation
	Create(ctx context.Context, op *reversible.Operation) error
	// Update rewrites an operation's mutable fields
	Update(ctx context.Context, op *reversible.Operation) error
	// GetByID retrieves an operation with its items
	GetByID(ctx context.Context, id uuid.UUID) (*reversible.Operation, error)
	// ListByUser returns a user's operations, newest first
	ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]*reversible.Operation, error)
	// GetByCorrelation returns the operations recorded under one correlation id
	GetByCorrelation(ctx context.Context, correlationID string) ([]*reversible.Operation, error)
	// CreateItem persists one captured item under its operation
	CreateItem(ctx context.Context, item *reversible.Item) error
	// UpdateItem rewrites an item's reversal outcome
	UpdateItem(ctx context.Context, item *reversible.Item) error
}

// ArchiveStore is the slice of an appointment store the reversers need to
// undo archived changes.
type ArchiveStore interface {
	// GetByExternalID retrieves one stored appointment
	GetByExternalID(ctx context.Context, userID uuid.UUID, externalID string) (*appointment.Appointment, error)
	// Restore recreates an appointment from a prior snapshot
	Restore(ctx context.Context, userID uuid.UUID, appt *appointment.Appointment) error
	// Overwrite replaces a stored appointment with a prior snapshot
	Overwrite(ctx context.Context, userID uuid.UUID, appt *appointment.Appointment) error
	// Remove deletes a stored appointment
	Remove(ctx context.Context, userID uuid.UUID, externalID string) error
}

// ItemReverser undoes the recorded change of one item type.
type ItemReverser interface {
	// Restore recreates an item deleted by the operation
	Restore(ctx context.Context, userID uuid.UUID, item *reversible.Item) error
	// Delete removes an item created by the operation
	Delete(ctx context.Context, userID uuid.UUID, item *reversible.Item) error
	// Update writes an item's before state back over the current state
	Update(ctx context.Context, userID uuid.UUID, item *reversible.Item) error
}

// ReversePlan previews one item reversal of a dry run.
type ReversePlan struct {
	Action   string `json:"action"`
	ItemType string `json:"item_type"`
	ItemID   string `json:"item_id"`
}

// ReverseResult reports the outcome of a reversal attempt.
type ReverseResult struct {
	Success        bool          `json:"success"`
	ItemsToReverse int           `json:"items_to_reverse,omitempty"`
	ReverseActions []ReversePlan `json:"reverse_actions,omitempty"`
	ReversedItems  int           `json:"reversed_items,omitempty"`
	FailedItems    int           `json:"failed_items,omitempty"`
	Errors         []string      `json:"errors,omitempty"`
	Reasons        []string      `json:"reasons,omitempty"`
	DryRun         bool          `json:"dry_run,omitempty"`
}
