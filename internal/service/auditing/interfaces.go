package auditing

import (
	"context"

	"github.com/google/uuid"

	"github.com/Auriora/admin-assistant-sub001/internal/domain/audit"
)

// Repository defines the audit ledger storage interface
type Repository interface {
	// Create persists a new audit entry
	Create(ctx context.Context, entry *audit.Entry) error
	// Update rewrites an existing audit entry
	Update(ctx context.Context, entry *audit.Entry) error
	// GetByID retrieves one audit entry
	GetByID(ctx context.Context, id uuid.UUID) (*audit.Entry, error)
	// ListByCorrelation returns every entry of one logical action, oldest first
	ListByCorrelation(ctx context.Context, correlationID string) ([]*audit.Entry, error)
	// ListByUser returns a user's entries, newest first
	ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]*audit.Entry, error)
}
