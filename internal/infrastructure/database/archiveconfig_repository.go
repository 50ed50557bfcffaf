package database

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/Auriora/admin-assistant-sub001/internal/domain/archivecfg"
	"github.com/Auriora/admin-assistant-sub001/internal/domain/errors"
)

const configurationColumns = `
	id, user_id, name, source_uri, destination_uri, is_active, timezone,
	allow_overlaps, archive_purpose, created_at, updated_at`

// ConfigurationRepository persists archive configurations.
type ConfigurationRepository struct {
	db Querier
}

func NewConfigurationRepository(db Querier) *ConfigurationRepository {
	return &ConfigurationRepository{db: db}
}

// Create persists a new configuration. Names are unique per user.
func (r *ConfigurationRepository) Create(ctx context.Context, cfg *archivecfg.Configuration) error {
	query := `
		INSERT INTO archive_configurations (` + configurationColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err := r.db.Exec(ctx, query,
		cfg.ID,
		cfg.UserID,
		cfg.Name,
		cfg.SourceURI,
		cfg.DestinationURI,
		cfg.IsActive,
		cfg.Timezone,
		cfg.AllowOverlaps,
		string(cfg.ArchivePurpose),
		toDB(cfg.CreatedAt),
		toDB(cfg.UpdatedAt),
	)
	if err != nil {
		if isUniqueViolation(err, "uq_archive_configurations_user_name") {
			return errors.NewConflictError("configuration name already in use")
		}
		return errors.NewInternalError("failed to create configuration").WithCause(err)
	}
	return nil
}

// Update rewrites a configuration.
func (r *ConfigurationRepository) Update(ctx context.Context, cfg *archivecfg.Configuration) error {
	query := `
		UPDATE archive_configurations
		SET name = $2, source_uri = $3, destination_uri = $4, is_active = $5,
		    timezone = $6, allow_overlaps = $7, archive_purpose = $8,
		    updated_at = $9
		WHERE id = $1`

	tag, err := r.db.Exec(ctx, query,
		cfg.ID,
		cfg.Name,
		cfg.SourceURI,
		cfg.DestinationURI,
		cfg.IsActive,
		cfg.Timezone,
		cfg.AllowOverlaps,
		string(cfg.ArchivePurpose),
		toDB(time.Now()),
	)
	if err != nil {
		if isUniqueViolation(err, "uq_archive_configurations_user_name") {
			return errors.NewConflictError("configuration name already in use")
		}
		return errors.NewInternalError("failed to update configuration").WithCause(err)
	}
	if tag.RowsAffected() == 0 {
		return errors.ErrConfigurationNotFound
	}
	return nil
}

// GetByID retrieves one configuration.
func (r *ConfigurationRepository) GetByID(ctx context.Context, id uuid.UUID) (*archivecfg.Configuration, error) {
	query := `SELECT ` + configurationColumns + ` FROM archive_configurations WHERE id = $1`
	cfg, err := scanConfiguration(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if noRows(err) {
			return nil, errors.ErrConfigurationNotFound
		}
		return nil, errors.NewInternalError("failed to get configuration").WithCause(err)
	}
	return cfg, nil
}

// GetByName retrieves a user's configuration by its unique name.
func (r *ConfigurationRepository) GetByName(ctx context.Context, userID uuid.UUID, name string) (*archivecfg.Configuration, error) {
	query := `
		SELECT ` + configurationColumns + `
		FROM archive_configurations
		WHERE user_id = $1 AND name = $2`

	cfg, err := scanConfiguration(r.db.QueryRow(ctx, query, userID, name))
	if err != nil {
		if noRows(err) {
			return nil, errors.ErrConfigurationNotFound
		}
		return nil, errors.NewInternalError("failed to get configuration").WithCause(err)
	}
	return cfg, nil
}

// ListByUser returns a user's configurations, optionally only active ones.
func (r *ConfigurationRepository) ListByUser(ctx context.Context, userID uuid.UUID, activeOnly bool) ([]*archivecfg.Configuration, error) {
	query := `
		SELECT ` + configurationColumns + `
		FROM archive_configurations
		WHERE user_id = $1 AND ($2 = FALSE OR is_active)
		ORDER BY name`

	rows, err := r.db.Query(ctx, query, userID, activeOnly)
	if err != nil {
		return nil, errors.NewInternalError("failed to list configurations").WithCause(err)
	}
	defer rows.Close()

	var cfgs []*archivecfg.Configuration
	for rows.Next() {
		cfg, err := scanConfiguration(rows)
		if err != nil {
			return nil, errors.NewInternalError("failed to scan configuration").WithCause(err)
		}
		cfgs = append(cfgs, cfg)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternalError("failed to read configurations").WithCause(err)
	}
	return cfgs, nil
}

func scanConfiguration(row rowScanner) (*archivecfg.Configuration, error) {
	var (
		cfg     archivecfg.Configuration
		purpose string
	)
	err := row.Scan(
		&cfg.ID,
		&cfg.UserID,
		&cfg.Name,
		&cfg.SourceURI,
		&cfg.DestinationURI,
		&cfg.IsActive,
		&cfg.Timezone,
		&cfg.AllowOverlaps,
		&purpose,
		&cfg.CreatedAt,
		&cfg.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	cfg.ArchivePurpose = archivecfg.Purpose(purpose)
	cfg.CreatedAt = fromDB(cfg.CreatedAt)
	cfg.UpdatedAt = fromDB(cfg.UpdatedAt)
	return &cfg, nil
}
