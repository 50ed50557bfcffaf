package archivecfg

import (
	stderrors "errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/Auriora/admin-assistant-sub001/internal/domain/errors"
)

// Purpose selects the archival flavor a configuration drives.
type Purpose string

const (
	PurposeGeneral   Purpose = "general"
	PurposeTimesheet Purpose = "timesheet"
	PurposeBilling   Purpose = "billing"
	PurposeTravel    Purpose = "travel"
)

func ParsePurpose(s string) (Purpose, error) {
	switch Purpose(s) {
	case PurposeGeneral, PurposeTimesheet, PurposeBilling, PurposeTravel:
		return Purpose(s), nil
	default:
		return "", errors.NewValidationError("INVALID_ARCHIVE_PURPOSE", fmt.Sprintf("unknown archive purpose %q", s))
	}
}

// Configuration describes one archival pairing: where to read appointments
// from, where the immutable copy lives, and how overlaps are treated.
type Configuration struct {
	ID             uuid.UUID `json:"id"`
	UserID         uuid.UUID `json:"user_id" validate:"required"`
	Name           string    `json:"name" validate:"required,max=255"`
	SourceURI      string    `json:"source_uri" validate:"required"`
	DestinationURI string    `json:"destination_uri" validate:"required"`
	IsActive       bool      `json:"is_active"`
	Timezone       string    `json:"timezone" validate:"required,timezone"`
	AllowOverlaps  bool      `json:"allow_overlaps"`
	ArchivePurpose Purpose   `json:"archive_purpose" validate:"required,oneof=general timesheet billing travel"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

var validate = validator.New()

func New(userID uuid.UUID, name, sourceURI, destinationURI, timezone string, purpose Purpose) (*Configuration, error) {
	now := time.Now().UTC()
	cfg := &Configuration{
		ID:             uuid.New(),
		UserID:         userID,
		Name:           name,
		SourceURI:      sourceURI,
		DestinationURI: destinationURI,
		IsActive:       true,
		Timezone:       timezone,
		ArchivePurpose: purpose,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate runs structural checks and converts the first violation into a
// typed validation error.
func (c *Configuration) Validate() error {
	if err := validate.Struct(c); err != nil {
		var fieldErrs validator.ValidationErrors
		if stderrors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			return errors.NewValidationError("INVALID_ARCHIVE_CONFIGURATION",
				fmt.Sprintf("field %s failed %s validation", fe.Field(), fe.Tag()))
		}
		return errors.NewValidationError("INVALID_ARCHIVE_CONFIGURATION", err.Error())
	}
	return nil
}

// Location resolves the configured timezone.
func (c *Configuration) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, errors.NewValidationError("INVALID_TIMEZONE",
			fmt.Sprintf("cannot load timezone %q", c.Timezone)).WithCause(err)
	}
	return loc, nil
}

// ModelType implements the audit model projection contract.
func (c *Configuration) ModelType() string { return "ArchiveConfiguration" }

// TableName implements the audit model projection contract.
func (c *Configuration) TableName() string { return "archive_configurations" }

// IdentityFields implements the audit model projection contract.
func (c *Configuration) IdentityFields() map[string]interface{} {
	return map[string]interface{}{
		"id":              c.ID.String(),
		"name":            c.Name,
		"archive_purpose": string(c.ArchivePurpose),
	}
}
