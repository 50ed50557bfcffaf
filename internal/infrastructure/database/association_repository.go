package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/Auriora/admin-assistant-sub001/internal/domain/association"
	"github.com/Auriora/admin-assistant-sub001/internal/domain/errors"
)

const associationColumns = `
	id, source_type, source_id, target_type, target_id, association_type,
	details, created_at`

// AssociationRepository persists typed links between entities, such as the
// link from an overlap task to the appointments it concerns.
type AssociationRepository struct {
	db Querier
}

func NewAssociationRepository(db Querier) *AssociationRepository {
	return &AssociationRepository{db: db}
}

// Create persists a link. An existing identical tuple is a conflict.
func (r *AssociationRepository) Create(ctx context.Context, assoc *association.Association) error {
	details, err := marshalJSONMap(assoc.Details)
	if err != nil {
		return errors.NewInternalError("failed to marshal association details").WithCause(err)
	}

	query := `
		INSERT INTO entity_association (` + associationColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err = r.db.Exec(ctx, query,
		assoc.ID,
		string(assoc.SourceType),
		assoc.SourceID,
		string(assoc.TargetType),
		assoc.TargetID,
		string(assoc.AssociationType),
		details,
		toDB(assoc.CreatedAt),
	)
	if err != nil {
		if isUniqueViolation(err, "uq_entity_association_tuple") {
			return errors.ErrDuplicateAssociation
		}
		return errors.NewInternalError("failed to create association").WithCause(err)
	}
	return nil
}

// Delete removes a link by id. Deleting an absent link is not an error.
func (r *AssociationRepository) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM entity_association WHERE id = $1`, id); err != nil {
		return errors.NewInternalError("failed to delete association").WithCause(err)
	}
	return nil
}

// ListBySource returns the links originating at one entity.
func (r *AssociationRepository) ListBySource(ctx context.Context, kind association.EntityKind, sourceID string) ([]*association.Association, error) {
	query := `
		SELECT ` + associationColumns + `
		FROM entity_association
		WHERE source_type = $1 AND source_id = $2
		ORDER BY created_at, id`

	rows, err := r.db.Query(ctx, query, string(kind), sourceID)
	if err != nil {
		return nil, errors.NewInternalError("failed to list associations").WithCause(err)
	}
	defer rows.Close()

	return scanAssociations(rows)
}

// ListByTarget returns the links pointing at one entity.
func (r *AssociationRepository) ListByTarget(ctx context.Context, kind association.EntityKind, targetID string) ([]*association.Association, error) {
	query := `
		SELECT ` + associationColumns + `
		FROM entity_association
		WHERE target_type = $1 AND target_id = $2
		ORDER BY created_at, id`

	rows, err := r.db.Query(ctx, query, string(kind), targetID)
	if err != nil {
		return nil, errors.NewInternalError("failed to list associations").WithCause(err)
	}
	defer rows.Close()

	return scanAssociations(rows)
}

// GetRelatedEntities returns the links touching one entity from either side,
// optionally narrowed to one association type.
func (r *AssociationRepository) GetRelatedEntities(ctx context.Context, kind association.EntityKind, entityID string, assocType *association.Type) ([]*association.Association, error) {
	query := `
		SELECT ` + associationColumns + `
		FROM entity_association
		WHERE ((source_type = $1 AND source_id = $2) OR (target_type = $1 AND target_id = $2))
		  AND ($3::text IS NULL OR association_type = $3)
		ORDER BY created_at, id`

	var typeFilter *string
	if assocType != nil {
		s := string(*assocType)
		typeFilter = &s
	}

	rows, err := r.db.Query(ctx, query, string(kind), entityID, typeFilter)
	if err != nil {
		return nil, errors.NewInternalError("failed to list related entities").WithCause(err)
	}
	defer rows.Close()

	return scanAssociations(rows)
}

func scanAssociations(rows pgx.Rows) ([]*association.Association, error) {
	var assocs []*association.Association
	for rows.Next() {
		var (
			assoc      association.Association
			sourceType string
			targetType string
			assocType  string
			details    []byte
		)
		err := rows.Scan(
			&assoc.ID,
			&sourceType,
			&assoc.SourceID,
			&targetType,
			&assoc.TargetID,
			&assocType,
			&details,
			&assoc.CreatedAt,
		)
		if err != nil {
			return nil, errors.NewInternalError("failed to scan association").WithCause(err)
		}

		assoc.SourceType = association.EntityKind(sourceType)
		assoc.TargetType = association.EntityKind(targetType)
		assoc.AssociationType = association.Type(assocType)
		assoc.CreatedAt = fromDB(assoc.CreatedAt)
		if assoc.Details, err = unmarshalJSONMap(details); err != nil {
			return nil, errors.NewInternalError("failed to decode association details").WithCause(err)
		}
		assocs = append(assocs, &assoc)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternalError("failed to read associations").WithCause(err)
	}
	return assocs, nil
}
