package database

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/Auriora/admin-assistant-sub001/internal/domain/errors"
	"github.com/Auriora/admin-assistant-sub001/internal/domain/task"
)

const taskColumns = `
	id, user_id, event_type, state, description, details, recommendations,
	created_at, updated_at`

// TaskRepository persists follow-up work items raised during archival.
type TaskRepository struct {
	db Querier
}

func NewTaskRepository(db Querier) *TaskRepository {
	return &TaskRepository{db: db}
}

// Create persists a new task.
func (r *TaskRepository) Create(ctx context.Context, log *task.ActionLog) error {
	details, err := marshalJSONMap(log.Details)
	if err != nil {
		return errors.NewInternalError("failed to marshal task details").WithCause(err)
	}
	recommendations, err := marshalJSONSlice(log.Recommendations)
	if err != nil {
		return errors.NewInternalError("failed to marshal task recommendations").WithCause(err)
	}

	query := `
		INSERT INTO action_log (` + taskColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err = r.db.Exec(ctx, query,
		log.ID,
		log.UserID,
		string(log.EventType),
		log.State.String(),
		log.Description,
		details,
		recommendations,
		toDB(log.CreatedAt),
		toDB(log.UpdatedAt),
	)
	if err != nil {
		return errors.NewInternalError("failed to create task").WithCause(err)
	}
	return nil
}

// Update rewrites a task's state, details, and recommendations.
func (r *TaskRepository) Update(ctx context.Context, log *task.ActionLog) error {
	details, err := marshalJSONMap(log.Details)
	if err != nil {
		return errors.NewInternalError("failed to marshal task details").WithCause(err)
	}
	recommendations, err := marshalJSONSlice(log.Recommendations)
	if err != nil {
		return errors.NewInternalError("failed to marshal task recommendations").WithCause(err)
	}

	query := `
		UPDATE action_log
		SET state = $2, description = $3, details = $4, recommendations = $5,
		    updated_at = $6
		WHERE id = $1`

	tag, err := r.db.Exec(ctx, query,
		log.ID,
		log.State.String(),
		log.Description,
		details,
		recommendations,
		toDB(time.Now()),
	)
	if err != nil {
		return errors.NewInternalError("failed to update task").WithCause(err)
	}
	if tag.RowsAffected() == 0 {
		return errors.NewNotFoundError("task")
	}
	return nil
}

// GetByID retrieves one task.
func (r *TaskRepository) GetByID(ctx context.Context, id uuid.UUID) (*task.ActionLog, error) {
	query := `SELECT ` + taskColumns + ` FROM action_log WHERE id = $1`
	log, err := scanTask(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if noRows(err) {
			return nil, errors.NewNotFoundError("task")
		}
		return nil, errors.NewInternalError("failed to get task").WithCause(err)
	}
	return log, nil
}

// ListByUser returns a user's tasks, newest first, filtered by state when
// state is non-nil.
func (r *TaskRepository) ListByUser(ctx context.Context, userID uuid.UUID, state *task.State, limit int) ([]*task.ActionLog, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT ` + taskColumns + `
		FROM action_log
		WHERE user_id = $1 AND ($2::text IS NULL OR state = $2)
		ORDER BY created_at DESC, id DESC
		LIMIT $3`

	var stateFilter *string
	if state != nil {
		s := state.String()
		stateFilter = &s
	}

	rows, err := r.db.Query(ctx, query, userID, stateFilter, limit)
	if err != nil {
		return nil, errors.NewInternalError("failed to list tasks").WithCause(err)
	}
	defer rows.Close()

	var logs []*task.ActionLog
	for rows.Next() {
		log, err := scanTask(rows)
		if err != nil {
			return nil, errors.NewInternalError("failed to scan task").WithCause(err)
		}
		logs = append(logs, log)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternalError("failed to read tasks").WithCause(err)
	}
	return logs, nil
}

func scanTask(row rowScanner) (*task.ActionLog, error) {
	var (
		log             task.ActionLog
		eventType       string
		state           string
		details         []byte
		recommendations []byte
	)
	err := row.Scan(
		&log.ID,
		&log.UserID,
		&eventType,
		&state,
		&log.Description,
		&details,
		&recommendations,
		&log.CreatedAt,
		&log.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	log.EventType = task.EventType(eventType)
	parsed, err := task.ParseState(state)
	if err != nil {
		return nil, err
	}
	log.State = parsed
	log.CreatedAt = fromDB(log.CreatedAt)
	log.UpdatedAt = fromDB(log.UpdatedAt)
	if log.Details, err = unmarshalJSONMap(details); err != nil {
		return nil, err
	}
	if len(recommendations) > 0 {
		if err := json.Unmarshal(recommendations, &log.Recommendations); err != nil {
			return nil, err
		}
	}
	return &log, nil
}

// marshalJSONSlice encodes a string list for a jsonb column, mapping empty
// to NULL.
func marshalJSONSlice(s []string) ([]byte, error) {
	if len(s) == 0 {
		return nil, nil
	}
	return json.Marshal(s)
}
