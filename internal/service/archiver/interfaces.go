package archiver

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Auriora/admin-assistant-sub001/internal/domain/appointment"
	"github.com/Auriora/admin-assistant-sub001/internal/domain/archivecfg"
	"github.com/Auriora/admin-assistant-sub001/internal/domain/association"
	"github.com/Auriora/admin-assistant-sub001/internal/domain/category"
	"github.com/Auriora/admin-assistant-sub001/internal/domain/task"
	"github.com/Auriora/admin-assistant-sub001/internal/domain/user"
	"github.com/Auriora/admin-assistant-sub001/internal/pipeline/resolution"
)

// CalendarReader fetches appointments from one calendar backend.
type CalendarReader interface {
	// ListForPeriod returns the appointments intersecting [start, end).
	ListForPeriod(ctx context.Context, userID uuid.UUID, calendarID string, start, end time.Time) ([]*appointment.Appointment, error)
}

// CalendarWriter stores appointments into one calendar backend.
type CalendarWriter interface {
	// Add stores one appointment and returns the stored copy with its
	// backend-assigned external id.
	Add(ctx context.Context, userID uuid.UUID, calendarID string, appt *appointment.Appointment) (*appointment.Appointment, error)
}

// BulkCalendarWriter is the optional batch capability of a CalendarWriter.
type BulkCalendarWriter interface {
	// AddBulk stores many appointments in one round trip. Per-item failures
	// come back in the result; the error covers whole-batch failures only.
	AddBulk(ctx context.Context, userID uuid.UUID, calendarID string, appts []*appointment.Appointment) (*BulkWriteResult, error)
}

// DuplicateChecker is the optional capability of writers that can compare
// candidates against what the destination already holds.
type DuplicateChecker interface {
	// CheckForDuplicates returns the candidates not yet present on the
	// calendar within [start, end).
	CheckForDuplicates(ctx context.Context, userID uuid.UUID, calendarID string, candidates []*appointment.Appointment, start, end time.Time) ([]*appointment.Appointment, error)
}

// ImmutableMarker is the optional capability of stores that flag archived
// rows against later mutation.
type ImmutableMarker interface {
	MakeImmutable(ctx context.Context, userID uuid.UUID, ids []uuid.UUID) error
}

// BulkWriteResult splits a batch write into stored copies and per-item
// failures.
type BulkWriteResult struct {
	Added  []*appointment.Appointment
	Failed []BulkWriteFailure
}

// BulkWriteFailure pairs a rejected appointment with its cause.
type BulkWriteFailure struct {
	Appointment *appointment.Appointment
	Err         error
}

// TaskRepository stores follow-up work items raised during archival.
type TaskRepository interface {
	Create(ctx context.Context, log *task.ActionLog) error
	Update(ctx context.Context, log *task.ActionLog) error
	GetByID(ctx context.Context, id uuid.UUID) (*task.ActionLog, error)
	// ListByUser filters by state when state is non-nil, newest first.
	ListByUser(ctx context.Context, userID uuid.UUID, state *task.State, limit int) ([]*task.ActionLog, error)
}

// AssociationRepository stores typed links between entities.
type AssociationRepository interface {
	// Create persists a link; an existing identical tuple is a conflict.
	Create(ctx context.Context, assoc *association.Association) error
	// Delete removes a link by id. Deleting an absent link is not an error.
	Delete(ctx context.Context, id uuid.UUID) error
	ListBySource(ctx context.Context, kind association.EntityKind, sourceID string) ([]*association.Association, error)
}

// ConfigurationRepository stores archive configurations.
type ConfigurationRepository interface {
	Create(ctx context.Context, cfg *archivecfg.Configuration) error
	Update(ctx context.Context, cfg *archivecfg.Configuration) error
	GetByID(ctx context.Context, id uuid.UUID) (*archivecfg.Configuration, error)
	GetByName(ctx context.Context, userID uuid.UUID, name string) (*archivecfg.Configuration, error)
	ListByUser(ctx context.Context, userID uuid.UUID, activeOnly bool) ([]*archivecfg.Configuration, error)
}

// UserRepository looks up archive users.
type UserRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*user.User, error)
	// GetByIdentifier accepts an email, a username, or a uuid string.
	GetByIdentifier(ctx context.Context, identifier string) (*user.User, error)
	List(ctx context.Context) ([]*user.User, error)
}

// MetricsCollector records run-level observability counters.
type MetricsCollector interface {
	RecordRun(archiveType, status string, archived int, duration time.Duration)
	RecordOverlaps(detected, autoResolved, conflicts int)
	RecordCategoryIssues(count int)
}

// Status is the overall outcome of an archival run.
type Status string

const (
	StatusSuccess Status = "success"
	StatusPartial Status = "partial"
	StatusError   Status = "error"
)

// ArchiveType selects the pipeline flavor.
type ArchiveType string

const (
	TypeGeneral   ArchiveType = "general"
	TypeTimesheet ArchiveType = "timesheet"
)

// Request describes one archival run.
type Request struct {
	User   *user.User
	Config *archivecfg.Configuration
	// Start and End are inclusive dates; times of day are ignored.
	Start time.Time
	End   time.Time
	// Type defaults from the configuration's purpose when empty.
	Type ArchiveType
	// IncludeTravel keeps travel-subject appointments in timesheet runs.
	IncludeTravel bool
	// CorrelationID is generated when empty.
	CorrelationID string
}

// TimesheetStats summarizes the billing filter of a timesheet run.
type TimesheetStats struct {
	TotalExamined    int             `json:"total_examined"`
	Included         int             `json:"included"`
	Excluded         int             `json:"excluded"`
	ExclusionRate    float64         `json:"exclusion_rate"`
	BillableHours    decimal.Decimal `json:"billable_hours"`
	NonBillableHours decimal.Decimal `json:"non_billable_hours"`
	TravelHours      decimal.Decimal `json:"travel_hours"`
}

// Result is the outcome of one archival run.
type Result struct {
	Status              Status           `json:"status"`
	ArchiveType         ArchiveType      `json:"archive_type"`
	ArchivedCount       int              `json:"archived_count"`
	OverlapCount        int              `json:"overlap_count"`
	ResolutionStats     resolution.Stats `json:"resolution_stats"`
	CategoryStats       *category.Stats  `json:"category_stats"`
	CategoryIssueCount  int              `json:"category_issue_count"`
	ModificationCount   int              `json:"modification_count"`
	PrivacyAppliedCount int              `json:"privacy_applied_count"`
	TimesheetStats      *TimesheetStats  `json:"timesheet_stats,omitempty"`
	Errors              []string         `json:"errors,omitempty"`
	CorrelationID       string           `json:"correlation_id"`
	OperationID         *uuid.UUID       `json:"operation_id,omitempty"`
}
