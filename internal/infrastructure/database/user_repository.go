package database

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/Auriora/admin-assistant-sub001/internal/domain/errors"
	"github.com/Auriora/admin-assistant-sub001/internal/domain/user"
)

const userColumns = `id, email, username, full_name, is_active, created_at`

// UserRepository looks up archive users.
type UserRepository struct {
	db Querier
}

func NewUserRepository(db Querier) *UserRepository {
	return &UserRepository{db: db}
}

// Create persists a new user.
func (r *UserRepository) Create(ctx context.Context, u *user.User) error {
	query := `
		INSERT INTO users (` + userColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := r.db.Exec(ctx, query,
		u.ID,
		strings.ToLower(u.Email),
		u.Username,
		u.FullName,
		u.IsActive,
		toDB(u.CreatedAt),
	)
	if err != nil {
		if isUniqueViolation(err, "") {
			return errors.NewConflictError("email or username already in use")
		}
		return errors.NewInternalError("failed to create user").WithCause(err)
	}
	return nil
}

// GetByID retrieves one user.
func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (*user.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	u, err := scanUser(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if noRows(err) {
			return nil, errors.ErrUserNotFound
		}
		return nil, errors.NewInternalError("failed to get user").WithCause(err)
	}
	return u, nil
}

// GetByIdentifier accepts an email, a username, or a uuid string. Emails
// match case-insensitively; usernames match exactly.
func (r *UserRepository) GetByIdentifier(ctx context.Context, identifier string) (*user.User, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return nil, errors.NewValidationError("MISSING_IDENTIFIER", "user identifier is required")
	}

	if id, err := uuid.Parse(identifier); err == nil {
		return r.GetByID(ctx, id)
	}

	var (
		query string
		arg   string
	)
	if strings.Contains(identifier, "@") {
		query = `SELECT ` + userColumns + ` FROM users WHERE lower(email) = $1`
		arg = strings.ToLower(identifier)
	} else {
		query = `SELECT ` + userColumns + ` FROM users WHERE username = $1`
		arg = identifier
	}

	u, err := scanUser(r.db.QueryRow(ctx, query, arg))
	if err != nil {
		if noRows(err) {
			return nil, errors.ErrUserNotFound
		}
		return nil, errors.NewInternalError("failed to get user").WithCause(err)
	}
	return u, nil
}

// List returns every user, ordered by username.
func (r *UserRepository) List(ctx context.Context) ([]*user.User, error) {
	query := `SELECT ` + userColumns + ` FROM users ORDER BY username`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, errors.NewInternalError("failed to list users").WithCause(err)
	}
	defer rows.Close()

	var users []*user.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, errors.NewInternalError("failed to scan user").WithCause(err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternalError("failed to read users").WithCause(err)
	}
	return users, nil
}

func scanUser(row rowScanner) (*user.User, error) {
	var u user.User
	err := row.Scan(
		&u.ID,
		&u.Email,
		&u.Username,
		&u.FullName,
		&u.IsActive,
		&u.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	u.CreatedAt = fromDB(u.CreatedAt)
	return &u, nil
}
