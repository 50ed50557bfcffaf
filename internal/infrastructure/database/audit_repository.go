package database

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/Auriora/admin-assistant-sub001/internal/domain/audit"
	"github.com/Auriora/admin-assistant-sub001/internal/domain/errors"
)

const auditColumns = `
	id, user_id, action_type, operation, resource_type, resource_id, status,
	message, details, request_data, response_data, duration_ms,
	correlation_id, parent_audit_id, created_at`

// AuditRepository persists the audit ledger. Entries are written outside the
// run's other transactions so a failure record survives a rolled-back run.
type AuditRepository struct {
	db Querier
}

func NewAuditRepository(db Querier) *AuditRepository {
	return &AuditRepository{db: db}
}

// Create persists a new audit entry.
func (r *AuditRepository) Create(ctx context.Context, entry *audit.Entry) error {
	details, err := marshalJSONMap(entry.Details)
	if err != nil {
		return errors.NewInternalError("failed to marshal audit details").WithCause(err)
	}
	requestData, err := marshalJSONMap(entry.RequestData)
	if err != nil {
		return errors.NewInternalError("failed to marshal audit request data").WithCause(err)
	}
	responseData, err := marshalJSONMap(entry.ResponseData)
	if err != nil {
		return errors.NewInternalError("failed to marshal audit response data").WithCause(err)
	}

	query := `
		INSERT INTO audit_log (` + auditColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`

	_, err = r.db.Exec(ctx, query,
		entry.ID,
		entry.UserID,
		string(entry.ActionType),
		entry.Operation,
		entry.ResourceType,
		entry.ResourceID,
		string(entry.Status),
		entry.Message,
		details,
		requestData,
		responseData,
		entry.DurationMS,
		entry.CorrelationID,
		entry.ParentAuditID,
		toDB(entry.CreatedAt),
	)
	if err != nil {
		return errors.NewInternalError("failed to create audit entry").WithCause(err)
	}
	return nil
}

// Update rewrites an entry's outcome fields after its span closes.
func (r *AuditRepository) Update(ctx context.Context, entry *audit.Entry) error {
	details, err := marshalJSONMap(entry.Details)
	if err != nil {
		return errors.NewInternalError("failed to marshal audit details").WithCause(err)
	}
	responseData, err := marshalJSONMap(entry.ResponseData)
	if err != nil {
		return errors.NewInternalError("failed to marshal audit response data").WithCause(err)
	}

	query := `
		UPDATE audit_log
		SET status = $2, message = $3, details = $4, response_data = $5,
		    duration_ms = $6
		WHERE id = $1`

	tag, err := r.db.Exec(ctx, query,
		entry.ID,
		string(entry.Status),
		entry.Message,
		details,
		responseData,
		entry.DurationMS,
	)
	if err != nil {
		return errors.NewInternalError("failed to update audit entry").WithCause(err)
	}
	if tag.RowsAffected() == 0 {
		return errors.NewNotFoundError("audit entry")
	}
	return nil
}

// GetByID retrieves one audit entry.
func (r *AuditRepository) GetByID(ctx context.Context, id uuid.UUID) (*audit.Entry, error) {
	query := `SELECT ` + auditColumns + ` FROM audit_log WHERE id = $1`
	entry, err := scanAuditEntry(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if noRows(err) {
			return nil, errors.NewNotFoundError("audit entry")
		}
		return nil, errors.NewInternalError("failed to get audit entry").WithCause(err)
	}
	return entry, nil
}

// ListByCorrelation returns every entry of one logical action, oldest first.
func (r *AuditRepository) ListByCorrelation(ctx context.Context, correlationID string) ([]*audit.Entry, error) {
	query := `
		SELECT ` + auditColumns + `
		FROM audit_log
		WHERE correlation_id = $1
		ORDER BY created_at, id`

	rows, err := r.db.Query(ctx, query, correlationID)
	if err != nil {
		return nil, errors.NewInternalError("failed to list audit entries").WithCause(err)
	}
	defer rows.Close()

	return scanAuditEntries(rows)
}

// ListByUser returns a user's entries, newest first.
func (r *AuditRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]*audit.Entry, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `
		SELECT ` + auditColumns + `
		FROM audit_log
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2`

	rows, err := r.db.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, errors.NewInternalError("failed to list audit entries").WithCause(err)
	}
	defer rows.Close()

	return scanAuditEntries(rows)
}

func scanAuditEntry(row rowScanner) (*audit.Entry, error) {
	var (
		entry        audit.Entry
		actionType   string
		status       string
		details      []byte
		requestData  []byte
		responseData []byte
	)
	err := row.Scan(
		&entry.ID,
		&entry.UserID,
		&actionType,
		&entry.Operation,
		&entry.ResourceType,
		&entry.ResourceID,
		&status,
		&entry.Message,
		&details,
		&requestData,
		&responseData,
		&entry.DurationMS,
		&entry.CorrelationID,
		&entry.ParentAuditID,
		&entry.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	entry.ActionType = audit.ActionType(actionType)
	entry.Status = audit.Status(status)
	entry.CreatedAt = fromDB(entry.CreatedAt)
	if entry.Details, err = unmarshalJSONMap(details); err != nil {
		return nil, err
	}
	if entry.RequestData, err = unmarshalJSONMap(requestData); err != nil {
		return nil, err
	}
	if entry.ResponseData, err = unmarshalJSONMap(responseData); err != nil {
		return nil, err
	}
	return &entry, nil
}

func scanAuditEntries(rows pgx.Rows) ([]*audit.Entry, error) {
	var entries []*audit.Entry
	for rows.Next() {
		entry, err := scanAuditEntry(rows)
		if err != nil {
			return nil, errors.NewInternalError("failed to scan audit entry").WithCause(err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternalError("failed to read audit entries").WithCause(err)
	}
	return entries, nil
}

// marshalJSONMap encodes a detail map for a jsonb column, mapping empty to
// NULL.
func marshalJSONMap(m map[string]interface{}) ([]byte, error) {
	if len(m) == 0 {
		return nil, nil
	}
	return json.Marshal(m)
}

func unmarshalJSONMap(data []byte) (map[string]interface{}, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var m map[string]interface{}
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return m, nil
}
