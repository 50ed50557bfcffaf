package database

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/Auriora/admin-assistant-sub001/internal/domain/errors"
	"github.com/Auriora/admin-assistant-sub001/internal/domain/reversible"
)

const operationColumns = `
	id, audit_log_id, user_id, operation_type, operation_name,
	correlation_id, depends_on, blocks, is_reversible, is_reversed,
	reverse_reason, reversed_at, reversed_by_user_id, created_at, updated_at`

const operationItemColumns = `
	id, operation_id, item_type, item_id, external_id, before_state,
	after_state, reverse_action, reverse_data, is_reversed, reverse_error,
	created_at`

// ReversibleRepository persists reversible operations and their captured
// items.
type ReversibleRepository struct {
	db Querier
}

func NewReversibleRepository(db Querier) *ReversibleRepository {
	return &ReversibleRepository{db: db}
}

// Create persists a new operation. Items are captured separately as the run
// produces them.
func (r *ReversibleRepository) Create(ctx context.Context, op *reversible.Operation) error {
	query := `
		INSERT INTO reversible_operations (` + operationColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`

	_, err := r.db.Exec(ctx, query,
		op.ID,
		op.AuditLogID,
		op.UserID,
		op.OperationType,
		op.OperationName,
		op.CorrelationID,
		uuidSlice(op.DependsOn),
		uuidSlice(op.Blocks),
		op.IsReversible,
		op.IsReversed,
		op.ReverseReason,
		toDBPtr(op.ReversedAt),
		op.ReversedByUserID,
		toDB(op.CreatedAt),
		toDB(op.UpdatedAt),
	)
	if err != nil {
		return errors.NewInternalError("failed to create reversible operation").WithCause(err)
	}
	return nil
}

// Update rewrites an operation's reversal outcome and dependency links.
func (r *ReversibleRepository) Update(ctx context.Context, op *reversible.Operation) error {
	query := `
		UPDATE reversible_operations
		SET depends_on = $2, blocks = $3, is_reversible = $4, is_reversed = $5,
		    reverse_reason = $6, reversed_at = $7, reversed_by_user_id = $8,
		    updated_at = $9
		WHERE id = $1`

	tag, err := r.db.Exec(ctx, query,
		op.ID,
		uuidSlice(op.DependsOn),
		uuidSlice(op.Blocks),
		op.IsReversible,
		op.IsReversed,
		op.ReverseReason,
		toDBPtr(op.ReversedAt),
		op.ReversedByUserID,
		toDB(time.Now()),
	)
	if err != nil {
		return errors.NewInternalError("failed to update reversible operation").WithCause(err)
	}
	if tag.RowsAffected() == 0 {
		return errors.ErrOperationNotFound
	}
	return nil
}

// GetByID retrieves an operation together with its items.
func (r *ReversibleRepository) GetByID(ctx context.Context, id uuid.UUID) (*reversible.Operation, error) {
	query := `SELECT ` + operationColumns + ` FROM reversible_operations WHERE id = $1`
	op, err := scanOperation(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if noRows(err) {
			return nil, errors.ErrOperationNotFound
		}
		return nil, errors.NewInternalError("failed to get reversible operation").WithCause(err)
	}

	if err := r.loadItems(ctx, []*reversible.Operation{op}); err != nil {
		return nil, err
	}
	return op, nil
}

// ListByUser returns a user's operations with their items, newest first.
func (r *ReversibleRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]*reversible.Operation, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT ` + operationColumns + `
		FROM reversible_operations
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2`

	rows, err := r.db.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, errors.NewInternalError("failed to list reversible operations").WithCause(err)
	}
	defer rows.Close()

	ops, err := scanOperations(rows)
	if err != nil {
		return nil, err
	}
	if err := r.loadItems(ctx, ops); err != nil {
		return nil, err
	}
	return ops, nil
}

// GetByCorrelation returns the operations recorded under one correlation id,
// oldest first.
func (r *ReversibleRepository) GetByCorrelation(ctx context.Context, correlationID string) ([]*reversible.Operation, error) {
	query := `
		SELECT ` + operationColumns + `
		FROM reversible_operations
		WHERE correlation_id = $1
		ORDER BY created_at, id`

	rows, err := r.db.Query(ctx, query, correlationID)
	if err != nil {
		return nil, errors.NewInternalError("failed to list reversible operations").WithCause(err)
	}
	defer rows.Close()

	ops, err := scanOperations(rows)
	if err != nil {
		return nil, err
	}
	if err := r.loadItems(ctx, ops); err != nil {
		return nil, err
	}
	return ops, nil
}

// CreateItem persists one captured item under its operation.
func (r *ReversibleRepository) CreateItem(ctx context.Context, item *reversible.Item) error {
	beforeState, err := marshalJSONMap(item.BeforeState)
	if err != nil {
		return errors.NewInternalError("failed to marshal item before state").WithCause(err)
	}
	afterState, err := marshalJSONMap(item.AfterState)
	if err != nil {
		return errors.NewInternalError("failed to marshal item after state").WithCause(err)
	}
	reverseData, err := marshalJSONMap(item.ReverseData)
	if err != nil {
		return errors.NewInternalError("failed to marshal item reverse data").WithCause(err)
	}

	query := `
		INSERT INTO reversible_operation_items (` + operationItemColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	_, err = r.db.Exec(ctx, query,
		item.ID,
		item.OperationID,
		item.ItemType,
		item.ItemID,
		item.ExternalID,
		beforeState,
		afterState,
		string(item.ReverseAction),
		reverseData,
		item.IsReversed,
		item.ReverseError,
		toDB(item.CreatedAt),
	)
	if err != nil {
		return errors.NewInternalError("failed to create operation item").WithCause(err)
	}
	return nil
}

// UpdateItem rewrites an item's reversal outcome.
func (r *ReversibleRepository) UpdateItem(ctx context.Context, item *reversible.Item) error {
	query := `
		UPDATE reversible_operation_items
		SET is_reversed = $2, reverse_error = $3
		WHERE id = $1`

	tag, err := r.db.Exec(ctx, query, item.ID, item.IsReversed, item.ReverseError)
	if err != nil {
		return errors.NewInternalError("failed to update operation item").WithCause(err)
	}
	if tag.RowsAffected() == 0 {
		return errors.NewNotFoundError("operation item")
	}
	return nil
}

// loadItems attaches items to their operations in one query.
func (r *ReversibleRepository) loadItems(ctx context.Context, ops []*reversible.Operation) error {
	if len(ops) == 0 {
		return nil
	}

	byID := make(map[uuid.UUID]*reversible.Operation, len(ops))
	ids := make([]uuid.UUID, 0, len(ops))
	for _, op := range ops {
		op.Items = nil
		byID[op.ID] = op
		ids = append(ids, op.ID)
	}

	query := `
		SELECT ` + operationItemColumns + `
		FROM reversible_operation_items
		WHERE operation_id = ANY($1)
		ORDER BY created_at, id`

	rows, err := r.db.Query(ctx, query, ids)
	if err != nil {
		return errors.NewInternalError("failed to list operation items").WithCause(err)
	}
	defer rows.Close()

	for rows.Next() {
		item, err := scanOperationItem(rows)
		if err != nil {
			return errors.NewInternalError("failed to scan operation item").WithCause(err)
		}
		if op, ok := byID[item.OperationID]; ok {
			op.Items = append(op.Items, item)
		}
	}
	if err := rows.Err(); err != nil {
		return errors.NewInternalError("failed to read operation items").WithCause(err)
	}
	return nil
}

func scanOperation(row rowScanner) (*reversible.Operation, error) {
	var (
		op        reversible.Operation
		dependsOn []uuid.UUID
		blocks    []uuid.UUID
	)
	err := row.Scan(
		&op.ID,
		&op.AuditLogID,
		&op.UserID,
		&op.OperationType,
		&op.OperationName,
		&op.CorrelationID,
		&dependsOn,
		&blocks,
		&op.IsReversible,
		&op.IsReversed,
		&op.ReverseReason,
		&op.ReversedAt,
		&op.ReversedByUserID,
		&op.CreatedAt,
		&op.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(dependsOn) > 0 {
		op.DependsOn = dependsOn
	}
	if len(blocks) > 0 {
		op.Blocks = blocks
	}
	op.ReversedAt = fromDBPtr(op.ReversedAt)
	op.CreatedAt = fromDB(op.CreatedAt)
	op.UpdatedAt = fromDB(op.UpdatedAt)
	return &op, nil
}

func scanOperations(rows pgx.Rows) ([]*reversible.Operation, error) {
	var ops []*reversible.Operation
	for rows.Next() {
		op, err := scanOperation(rows)
		if err != nil {
			return nil, errors.NewInternalError("failed to scan reversible operation").WithCause(err)
		}
		ops = append(ops, op)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternalError("failed to read reversible operations").WithCause(err)
	}
	return ops, nil
}

func scanOperationItem(row rowScanner) (*reversible.Item, error) {
	var (
		item          reversible.Item
		beforeState   []byte
		afterState    []byte
		reverseAction string
		reverseData   []byte
	)
	err := row.Scan(
		&item.ID,
		&item.OperationID,
		&item.ItemType,
		&item.ItemID,
		&item.ExternalID,
		&beforeState,
		&afterState,
		&reverseAction,
		&reverseData,
		&item.IsReversed,
		&item.ReverseError,
		&item.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	item.ReverseAction = reversible.ReverseAction(reverseAction)
	item.CreatedAt = fromDB(item.CreatedAt)
	if item.BeforeState, err = unmarshalJSONMap(beforeState); err != nil {
		return nil, err
	}
	if item.AfterState, err = unmarshalJSONMap(afterState); err != nil {
		return nil, err
	}
	if item.ReverseData, err = unmarshalJSONMap(reverseData); err != nil {
		return nil, err
	}
	return &item, nil
}

// uuidSlice normalizes a uuid list for a uuid[] column, mapping nil to the
// empty array so scans round-trip.
func uuidSlice(ids []uuid.UUID) []uuid.UUID {
	if ids == nil {
		return []uuid.UUID{}
	}
	return ids
}
