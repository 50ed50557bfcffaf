package fixtures

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/Auriora/admin-assistant-sub001/internal/domain/appointment"
)

// AppointmentBuilder builds test Appointment entities
type AppointmentBuilder struct {
	t           *testing.T
	id          uuid.UUID
	externalID  string
	userID      uuid.UUID
	calendarID  string
	subject     string
	start       time.Time
	end         time.Time
	timezone    string
	recurrence  *string
	categories  []string
	showAs      appointment.ShowAs
	sensitivity appointment.Sensitivity
	importance  appointment.Importance
	archived    bool
}

// NewAppointmentBuilder creates a new AppointmentBuilder with defaults
func NewAppointmentBuilder(t *testing.T) *AppointmentBuilder {
	t.Helper()
	id, err := uuid.NewRandom()
	require.NoError(t, err)
	userID, err := uuid.NewRandom()
	require.NoError(t, err)

	start := time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)
	return &AppointmentBuilder{
		t:           t,
		id:          id,
		externalID:  "AAMk" + uuid.New().String()[:8],
		userID:      userID,
		calendarID:  "primary",
		subject:     "Weekly sync",
		start:       start,
		end:         start.Add(time.Hour),
		timezone:    "UTC",
		showAs:      appointment.ShowAsBusy,
		sensitivity: appointment.SensitivityNormal,
		importance:  appointment.ImportanceNormal,
	}
}

// WithID sets the appointment ID
func (b *AppointmentBuilder) WithID(id uuid.UUID) *AppointmentBuilder {
	b.id = id
	return b
}

// WithExternalID sets the provider-assigned ID
func (b *AppointmentBuilder) WithExternalID(externalID string) *AppointmentBuilder {
	b.externalID = externalID
	return b
}

// WithUserID sets the owning user
func (b *AppointmentBuilder) WithUserID(userID uuid.UUID) *AppointmentBuilder {
	b.userID = userID
	return b
}

// WithCalendarID sets the calendar the entry lives on
func (b *AppointmentBuilder) WithCalendarID(calendarID string) *AppointmentBuilder {
	b.calendarID = calendarID
	return b
}

// WithSubject sets the subject line
func (b *AppointmentBuilder) WithSubject(subject string) *AppointmentBuilder {
	b.subject = subject
	return b
}

// WithPeriod sets start and end instants
func (b *AppointmentBuilder) WithPeriod(start, end time.Time) *AppointmentBuilder {
	b.start = start
	b.end = end
	return b
}

// WithTimes sets start and end on the default day from clock strings like "09:30"
func (b *AppointmentBuilder) WithTimes(start, end string) *AppointmentBuilder {
	b.t.Helper()
	day := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)
	s, err := time.Parse("15:04", start)
	require.NoError(b.t, err)
	e, err := time.Parse("15:04", end)
	require.NoError(b.t, err)
	b.start = day.Add(time.Duration(s.Hour())*time.Hour + time.Duration(s.Minute())*time.Minute)
	b.end = day.Add(time.Duration(e.Hour())*time.Hour + time.Duration(e.Minute())*time.Minute)
	return b
}

// WithTimezone sets the authored wall-clock zone
func (b *AppointmentBuilder) WithTimezone(tz string) *AppointmentBuilder {
	b.timezone = tz
	return b
}

// WithRecurrence sets the RFC 5545 rule text
func (b *AppointmentBuilder) WithRecurrence(rule string) *AppointmentBuilder {
	b.recurrence = &rule
	return b
}

// WithCategories sets the category list
func (b *AppointmentBuilder) WithCategories(categories ...string) *AppointmentBuilder {
	b.categories = categories
	return b
}

// WithShowAs sets the availability marker
func (b *AppointmentBuilder) WithShowAs(showAs appointment.ShowAs) *AppointmentBuilder {
	b.showAs = showAs
	return b
}

// WithSensitivity sets the sensitivity level
func (b *AppointmentBuilder) WithSensitivity(s appointment.Sensitivity) *AppointmentBuilder {
	b.sensitivity = s
	return b
}

// WithImportance sets the importance level
func (b *AppointmentBuilder) WithImportance(i appointment.Importance) *AppointmentBuilder {
	b.importance = i
	return b
}

// Archived marks the appointment as already archived
func (b *AppointmentBuilder) Archived() *AppointmentBuilder {
	b.archived = true
	return b
}

// Build creates the Appointment entity
func (b *AppointmentBuilder) Build() *appointment.Appointment {
	now := time.Now().UTC()
	return &appointment.Appointment{
		ID:          b.id,
		ExternalID:  b.externalID,
		UserID:      b.userID,
		CalendarID:  b.calendarID,
		Subject:     b.subject,
		StartTime:   b.start.UTC(),
		EndTime:     b.end.UTC(),
		Timezone:    b.timezone,
		Recurrence:  b.recurrence,
		Categories:  b.categories,
		ShowAs:      b.showAs,
		Sensitivity: b.sensitivity,
		Importance:  b.importance,
		IsArchived:  b.archived,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// AppointmentScenarios provides common appointment test scenarios
type AppointmentScenarios struct {
	t      *testing.T
	userID uuid.UUID
}

// NewAppointmentScenarios creates a new AppointmentScenarios helper bound to one user
func NewAppointmentScenarios(t *testing.T) *AppointmentScenarios {
	t.Helper()
	return &AppointmentScenarios{t: t, userID: uuid.New()}
}

// UserID returns the owning user shared by all scenario appointments
func (as *AppointmentScenarios) UserID() uuid.UUID {
	return as.userID
}

// BillableMeeting creates a categorized work appointment
func (as *AppointmentScenarios) BillableMeeting(subject string, start, end string) *appointment.Appointment {
	return NewAppointmentBuilder(as.t).
		WithUserID(as.userID).
		WithSubject(subject).
		WithTimes(start, end).
		WithCategories("Acme Corp - billable").
		Build()
}

// AdminBlock creates an internal non-billable appointment
func (as *AppointmentScenarios) AdminBlock(start, end string) *appointment.Appointment {
	return NewAppointmentBuilder(as.t).
		WithUserID(as.userID).
		WithSubject("Weekly admin").
		WithTimes(start, end).
		WithCategories("Admin - non-billable").
		Build()
}

// PersonalEntry creates an uncategorized personal appointment
func (as *AppointmentScenarios) PersonalEntry(subject string, start, end string) *appointment.Appointment {
	return NewAppointmentBuilder(as.t).
		WithUserID(as.userID).
		WithSubject(subject).
		WithTimes(start, end).
		Build()
}

// FreeBlock creates a show-as-free placeholder
func (as *AppointmentScenarios) FreeBlock(start, end string) *appointment.Appointment {
	return NewAppointmentBuilder(as.t).
		WithUserID(as.userID).
		WithSubject("Focus time").
		WithTimes(start, end).
		WithShowAs(appointment.ShowAsFree).
		Build()
}

// DailyStandup creates a recurring appointment with a daily rule
func (as *AppointmentScenarios) DailyStandup() *appointment.Appointment {
	return NewAppointmentBuilder(as.t).
		WithUserID(as.userID).
		WithSubject("Standup").
		WithTimes("08:45", "09:00").
		WithRecurrence("FREQ=DAILY").
		WithCategories("Acme Corp - billable").
		Build()
}
