package appointment

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Auriora/admin-assistant-sub001/internal/domain/errors"
)

// Appointment is a single calendar entry. Instants are stored in UTC;
// Timezone preserves the wall-clock zone the entry was authored in so
// recurrence expansion can keep the original time of day.
type Appointment struct {
	ID         uuid.UUID `json:"id"`
	ExternalID string    `json:"external_id,omitempty"`
	UserID     uuid.UUID `json:"user_id"`
	CalendarID string    `json:"calendar_id,omitempty"`

	Subject   string    `json:"subject"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
	Timezone  string    `json:"timezone,omitempty"`

	// Recurrence holds the RFC 5545 RRULE text, nil for a single occurrence.
	Recurrence *string  `json:"recurrence,omitempty"`
	Categories []string `json:"categories,omitempty"`

	ShowAs      ShowAs      `json:"show_as"`
	Sensitivity Sensitivity `json:"sensitivity"`
	Importance  Importance  `json:"importance"`

	IsArchived bool `json:"is_archived"`

	// ProviderPayload is the raw upstream representation, kept verbatim so a
	// reversed archive can recreate the entry exactly.
	ProviderPayload json.RawMessage `json:"provider_payload,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type ShowAs int

const (
	ShowAsUnknown ShowAs = iota
	ShowAsFree
	ShowAsTentative
	ShowAsBusy
	ShowAsOOF
	ShowAsWorkingElsewhere
)

func (s ShowAs) String() string {
	switch s {
	case ShowAsFree:
		return "free"
	case ShowAsTentative:
		return "tentative"
	case ShowAsBusy:
		return "busy"
	case ShowAsOOF:
		return "oof"
	case ShowAsWorkingElsewhere:
		return "working_elsewhere"
	default:
		return "unknown"
	}
}

// ParseShowAs accepts both internal names and provider camel-case forms.
func ParseShowAs(s string) ShowAs {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "free":
		return ShowAsFree
	case "tentative":
		return ShowAsTentative
	case "busy":
		return ShowAsBusy
	case "oof", "out_of_office", "outofoffice":
		return ShowAsOOF
	case "working_elsewhere", "workingelsewhere", "working-elsewhere":
		return ShowAsWorkingElsewhere
	default:
		return ShowAsUnknown
	}
}

type Sensitivity int

const (
	SensitivityNormal Sensitivity = iota
	SensitivityPersonal
	SensitivityPrivate
	SensitivityConfidential
)

func (s Sensitivity) String() string {
	switch s {
	case SensitivityPersonal:
		return "personal"
	case SensitivityPrivate:
		return "private"
	case SensitivityConfidential:
		return "confidential"
	default:
		return "normal"
	}
}

func ParseSensitivity(s string) Sensitivity {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "personal":
		return SensitivityPersonal
	case "private":
		return SensitivityPrivate
	case "confidential":
		return SensitivityConfidential
	default:
		return SensitivityNormal
	}
}

type Importance int

const (
	ImportanceNormal Importance = iota
	ImportanceLow
	ImportanceHigh
)

func (i Importance) String() string {
	switch i {
	case ImportanceLow:
		return "low"
	case ImportanceHigh:
		return "high"
	default:
		return "normal"
	}
}

func ParseImportance(s string) Importance {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "low":
		return ImportanceLow
	case "high":
		return ImportanceHigh
	default:
		return ImportanceNormal
	}
}

// NewAppointment creates an appointment with validation. Start and end are
// normalized to UTC. Equal start and end is legal because modification
// side-records can be zero length before merging.
func NewAppointment(userID uuid.UUID, subject string, start, end time.Time) (*Appointment, error) {
	if userID == uuid.Nil {
		return nil, errors.NewValidationError("MISSING_USER_ID", "appointment requires an owning user")
	}
	if start.IsZero() || end.IsZero() {
		return nil, errors.NewValidationError("MISSING_TIME", "appointment requires start and end times")
	}

	start = ToUTC(start)
	end = ToUTC(end)
	if end.Before(start) {
		return nil, errors.NewValidationError("END_BEFORE_START",
			fmt.Sprintf("appointment end %s precedes start %s", end.Format(time.RFC3339), start.Format(time.RFC3339)))
	}

	now := clock.Now()
	return &Appointment{
		ID:          uuid.New(),
		UserID:      userID,
		Subject:     subject,
		StartTime:   start,
		EndTime:     end,
		ShowAs:      ShowAsBusy,
		Sensitivity: SensitivityNormal,
		Importance:  ImportanceNormal,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// ToUTC converts an instant to UTC. A zero-offset location is treated as
// already canonical so naive database values round-trip unchanged.
func ToUTC(t time.Time) time.Time {
	return t.UTC()
}

func (a *Appointment) Duration() time.Duration {
	return a.EndTime.Sub(a.StartTime)
}

func (a *Appointment) IsRecurring() bool {
	return a.Recurrence != nil && strings.TrimSpace(*a.Recurrence) != ""
}

// InstanceKey identifies one expanded occurrence of a recurring series.
func (a *Appointment) InstanceKey() string {
	return fmt.Sprintf("%s:%s", a.ExternalID, a.StartTime.UTC().Format("2006-01-02"))
}

// DuplicateKey is the identity used for exact-duplicate collapsing.
func (a *Appointment) DuplicateKey() string {
	return fmt.Sprintf("%s|%d|%d", a.Subject, a.StartTime.UTC().Unix(), a.EndTime.UTC().Unix())
}

// EnsureMutableBy rejects mutation of an archived appointment by anyone
// except its owner.
func (a *Appointment) EnsureMutableBy(actorID uuid.UUID) error {
	if a.IsArchived && actorID != a.UserID {
		return errors.NewImmutableAppointmentError(
			fmt.Sprintf("appointment %s is archived and may only be modified by its owner", a.ID))
	}
	return nil
}

// SetPeriod rewrites the appointment's interval, keeping UTC canonical form.
func (a *Appointment) SetPeriod(start, end time.Time) error {
	start = ToUTC(start)
	end = ToUTC(end)
	if end.Before(start) {
		return errors.NewValidationError("END_BEFORE_START", "appointment end precedes start")
	}
	a.StartTime = start
	a.EndTime = end
	a.UpdatedAt = clock.Now()
	return nil
}

// MarkPrivate flips sensitivity to private. Used by the privacy pass for
// appointments with no categories.
func (a *Appointment) MarkPrivate() {
	a.Sensitivity = SensitivityPrivate
	a.UpdatedAt = clock.Now()
}

func (a *Appointment) MarkArchived() {
	a.IsArchived = true
	a.UpdatedAt = clock.Now()
}

// Clone returns a deep copy, used for before-state capture and for emitting
// recurrence instances without aliasing the series record.
func (a *Appointment) Clone() *Appointment {
	cp := *a
	if a.Recurrence != nil {
		r := *a.Recurrence
		cp.Recurrence = &r
	}
	if a.Categories != nil {
		cp.Categories = append([]string(nil), a.Categories...)
	}
	if a.ProviderPayload != nil {
		cp.ProviderPayload = append(json.RawMessage(nil), a.ProviderPayload...)
	}
	return &cp
}

// StateSnapshot captures every observable field as a JSON-safe map. Reverse
// handlers rebuild the appointment from this shape.
func (a *Appointment) StateSnapshot() map[string]interface{} {
	snap := map[string]interface{}{
		"id":          a.ID.String(),
		"external_id": a.ExternalID,
		"user_id":     a.UserID.String(),
		"calendar_id": a.CalendarID,
		"subject":     a.Subject,
		"start_time":  a.StartTime.UTC().Format(time.RFC3339),
		"end_time":    a.EndTime.UTC().Format(time.RFC3339),
		"timezone":    a.Timezone,
		"show_as":     a.ShowAs.String(),
		"sensitivity": a.Sensitivity.String(),
		"importance":  a.Importance.String(),
		"is_archived": a.IsArchived,
		"categories":  append([]string(nil), a.Categories...),
	}
	if a.Recurrence != nil {
		snap["recurrence"] = *a.Recurrence
	}
	if len(a.ProviderPayload) > 0 {
		snap["provider_payload"] = string(a.ProviderPayload)
	}
	return snap
}

// FromSnapshot rebuilds an appointment from a StateSnapshot map. Snapshots
// may have round-tripped through JSON storage, so list values arrive as
// []interface{} and all numbers as float64.
func FromSnapshot(state map[string]interface{}) (*Appointment, error) {
	if state == nil {
		return nil, errors.NewValidationError("MISSING_STATE", "snapshot is empty")
	}

	userID, err := snapshotUUID(state, "user_id")
	if err != nil {
		return nil, err
	}
	start, err := snapshotTime(state, "start_time")
	if err != nil {
		return nil, err
	}
	end, err := snapshotTime(state, "end_time")
	if err != nil {
		return nil, err
	}

	a, err := NewAppointment(userID, snapshotString(state, "subject"), start, end)
	if err != nil {
		return nil, err
	}
	if id, idErr := snapshotUUID(state, "id"); idErr == nil {
		a.ID = id
	}
	a.ExternalID = snapshotString(state, "external_id")
	a.CalendarID = snapshotString(state, "calendar_id")
	if tz := snapshotString(state, "timezone"); tz != "" {
		a.Timezone = tz
	}
	a.ShowAs = ParseShowAs(snapshotString(state, "show_as"))
	a.Sensitivity = ParseSensitivity(snapshotString(state, "sensitivity"))
	a.Importance = ParseImportance(snapshotString(state, "importance"))
	if archived, ok := state["is_archived"].(bool); ok {
		a.IsArchived = archived
	}
	if rec := snapshotString(state, "recurrence"); rec != "" {
		a.Recurrence = &rec
	}
	if payload := snapshotString(state, "provider_payload"); payload != "" {
		a.ProviderPayload = json.RawMessage(payload)
	}
	a.Categories = snapshotStrings(state, "categories")
	return a, nil
}

func snapshotString(state map[string]interface{}, key string) string {
	s, _ := state[key].(string)
	return s
}

func snapshotUUID(state map[string]interface{}, key string) (uuid.UUID, error) {
	s := snapshotString(state, key)
	if s == "" {
		return uuid.Nil, errors.NewValidationError("MISSING_STATE_FIELD",
			fmt.Sprintf("snapshot is missing %q", key))
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, errors.NewValidationError("INVALID_STATE_FIELD",
			fmt.Sprintf("snapshot field %q is not a uuid: %v", key, err))
	}
	return id, nil
}

func snapshotTime(state map[string]interface{}, key string) (time.Time, error) {
	s := snapshotString(state, key)
	if s == "" {
		return time.Time{}, errors.NewValidationError("MISSING_STATE_FIELD",
			fmt.Sprintf("snapshot is missing %q", key))
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, errors.NewValidationError("INVALID_STATE_FIELD",
			fmt.Sprintf("snapshot field %q is not an RFC3339 time: %v", key, err))
	}
	return t.UTC(), nil
}

func snapshotStrings(state map[string]interface{}, key string) []string {
	switch v := state[key].(type) {
	case []string:
		return append([]string(nil), v...)
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

// ModelType implements the audit model projection contract.
func (a *Appointment) ModelType() string { return "Appointment" }

// TableName implements the audit model projection contract.
func (a *Appointment) TableName() string { return "appointments" }

// IdentityFields implements the audit model projection contract.
func (a *Appointment) IdentityFields() map[string]interface{} {
	return map[string]interface{}{
		"id":          a.ID.String(),
		"external_id": a.ExternalID,
		"subject":     a.Subject,
		"start_time":  a.StartTime.UTC().Format(time.RFC3339),
	}
}
