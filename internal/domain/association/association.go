package association

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Auriora/admin-assistant-sub001/internal/domain/errors"
)

// Type names the relationship an edge carries.
type Type string

const (
	TypeOverlap   Type = "overlap"
	TypeAuditLink Type = "audit_link"
	TypeTaskLink  Type = "task_link"
	TypeChatLink  Type = "chat_link"
)

// EntityKind names the table-level kind of either endpoint.
type EntityKind string

const (
	KindAppointment EntityKind = "appointment"
	KindActionLog   EntityKind = "action_log"
	KindAuditLog    EntityKind = "audit_log"
	KindOperation   EntityKind = "reversible_operation"
	KindChatSession EntityKind = "chat_session"
)

// Association is a typed edge between two heterogeneous entities. The edge
// is stored directed but queried from both ends; identity is the full tuple.
type Association struct {
	ID              uuid.UUID              `json:"id"`
	SourceType      EntityKind             `json:"source_type"`
	SourceID        string                 `json:"source_id"`
	TargetType      EntityKind             `json:"target_type"`
	TargetID        string                 `json:"target_id"`
	AssociationType Type                   `json:"association_type"`
	Details         map[string]interface{} `json:"details,omitempty"`
	CreatedAt       time.Time              `json:"created_at"`
}

func New(sourceType EntityKind, sourceID string, targetType EntityKind, targetID string, assocType Type) (*Association, error) {
	if sourceType == "" || targetType == "" {
		return nil, errors.NewValidationError("MISSING_ENTITY_TYPE", "association requires source and target types")
	}
	if sourceID == "" || targetID == "" {
		return nil, errors.NewValidationError("MISSING_ENTITY_ID", "association requires source and target ids")
	}
	if assocType == "" {
		return nil, errors.NewValidationError("MISSING_ASSOCIATION_TYPE", "association requires a type")
	}
	if sourceType == targetType && sourceID == targetID {
		return nil, errors.NewValidationError("SELF_ASSOCIATION", "association cannot link an entity to itself")
	}

	return &Association{
		ID:              uuid.New(),
		SourceType:      sourceType,
		SourceID:        sourceID,
		TargetType:      targetType,
		TargetID:        targetID,
		AssociationType: assocType,
		CreatedAt:       time.Now().UTC(),
	}, nil
}

// AddDetail attaches free-form context to the edge. Details are not part of
// the uniqueness tuple.
func (a *Association) AddDetail(key string, value interface{}) {
	if a.Details == nil {
		a.Details = make(map[string]interface{})
	}
	a.Details[key] = value
}

// TupleKey is the uniqueness identity of the edge.
func (a *Association) TupleKey() string {
	return fmt.Sprintf("%s:%s:%s:%s:%s", a.SourceType, a.SourceID, a.TargetType, a.TargetID, a.AssociationType)
}

// ModelType implements the audit model projection contract.
func (a *Association) ModelType() string { return "EntityAssociation" }

// TableName implements the audit model projection contract.
func (a *Association) TableName() string { return "entity_association" }

// IdentityFields implements the audit model projection contract.
func (a *Association) IdentityFields() map[string]interface{} {
	return map[string]interface{}{
		"id":               a.ID.String(),
		"source_type":      string(a.SourceType),
		"source_id":        a.SourceID,
		"target_type":      string(a.TargetType),
		"target_id":        a.TargetID,
		"association_type": string(a.AssociationType),
	}
}
