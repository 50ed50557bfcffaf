package appointment_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Auriora/admin-assistant-sub001/internal/domain/appointment"
	"github.com/Auriora/admin-assistant-sub001/internal/domain/errors"
	"github.com/Auriora/admin-assistant-sub001/internal/testutil/fixtures"
)

func TestNewAppointment(t *testing.T) {
	userID := uuid.New()
	start := time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		userID   uuid.UUID
		subject  string
		start    time.Time
		end      time.Time
		wantErr  string
		validate func(t *testing.T, a *appointment.Appointment)
	}{
		{
			name:    "creates appointment with valid data",
			userID:  userID,
			subject: "Planning session",
			start:   start,
			end:     start.Add(time.Hour),
			validate: func(t *testing.T, a *appointment.Appointment) {
				assert.NotEqual(t, uuid.Nil, a.ID)
				assert.Equal(t, userID, a.UserID)
				assert.Equal(t, "Planning session", a.Subject)
				assert.Equal(t, appointment.ShowAsBusy, a.ShowAs)
				assert.Equal(t, appointment.SensitivityNormal, a.Sensitivity)
				assert.Equal(t, appointment.ImportanceNormal, a.Importance)
				assert.False(t, a.IsArchived)
				assert.False(t, a.IsRecurring())
			},
		},
		{
			name:    "normalizes zoned times to UTC",
			userID:  userID,
			subject: "Zoned",
			start:   mustInZone(t, "2025-06-02T11:00:00", "Europe/Berlin"),
			end:     mustInZone(t, "2025-06-02T12:00:00", "Europe/Berlin"),
			validate: func(t *testing.T, a *appointment.Appointment) {
				assert.Equal(t, time.UTC, a.StartTime.Location())
				assert.Equal(t, 9, a.StartTime.Hour())
				assert.Equal(t, 10, a.EndTime.Hour())
			},
		},
		{
			name:    "allows zero-length interval",
			userID:  userID,
			subject: "Extended",
			start:   start,
			end:     start,
			validate: func(t *testing.T, a *appointment.Appointment) {
				assert.Equal(t, time.Duration(0), a.Duration())
			},
		},
		{
			name:    "rejects end before start",
			userID:  userID,
			subject: "Backwards",
			start:   start,
			end:     start.Add(-time.Minute),
			wantErr: "END_BEFORE_START",
		},
		{
			name:    "rejects missing user",
			userID:  uuid.Nil,
			subject: "Orphan",
			start:   start,
			end:     start.Add(time.Hour),
			wantErr: "MISSING_USER_ID",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := appointment.NewAppointment(tt.userID, tt.subject, tt.start, tt.end)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Equal(t, tt.wantErr, errors.GetCode(err))
				return
			}
			require.NoError(t, err)
			require.NotNil(t, a)
			tt.validate(t, a)
		})
	}
}

func TestAppointment_EnsureMutableBy(t *testing.T) {
	owner := uuid.New()
	stranger := uuid.New()

	tests := []struct {
		name     string
		archived bool
		actor    uuid.UUID
		wantErr  bool
	}{
		{name: "unarchived is mutable by anyone", archived: false, actor: stranger, wantErr: false},
		{name: "archived is mutable by owner", archived: true, actor: owner, wantErr: false},
		{name: "archived rejects non-owner", archived: true, actor: stranger, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := fixtures.NewAppointmentBuilder(t).WithUserID(owner)
			if tt.archived {
				b = b.Archived()
			}
			a := b.Build()

			err := a.EnsureMutableBy(tt.actor)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.IsType(err, errors.ErrorTypeImmutable))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestAppointment_Clone(t *testing.T) {
	orig := fixtures.NewAppointmentBuilder(t).
		WithCategories("Acme Corp - billable").
		WithRecurrence("FREQ=DAILY").
		Build()

	cp := orig.Clone()
	require.NotSame(t, orig, cp)

	cp.Categories[0] = "mutated"
	*cp.Recurrence = "FREQ=WEEKLY"
	cp.Subject = "changed"

	assert.Equal(t, "Acme Corp - billable", orig.Categories[0])
	assert.Equal(t, "FREQ=DAILY", *orig.Recurrence)
	assert.NotEqual(t, orig.Subject, cp.Subject)
}

func TestAppointment_StateSnapshot(t *testing.T) {
	a := fixtures.NewAppointmentBuilder(t).
		WithSubject("Review").
		WithCategories("Acme Corp - billable").
		Build()

	snap := a.StateSnapshot()

	assert.Equal(t, a.ID.String(), snap["id"])
	assert.Equal(t, "Review", snap["subject"])
	assert.Equal(t, a.StartTime.Format(time.RFC3339), snap["start_time"])
	assert.Equal(t, "busy", snap["show_as"])
	assert.Equal(t, false, snap["is_archived"])
	assert.Equal(t, []string{"Acme Corp - billable"}, snap["categories"])
	_, hasRecurrence := snap["recurrence"]
	assert.False(t, hasRecurrence)
}

func TestAppointment_DuplicateKey(t *testing.T) {
	start := time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)
	a := fixtures.NewAppointmentBuilder(t).WithSubject("Sync").WithPeriod(start, start.Add(time.Hour)).Build()
	b := fixtures.NewAppointmentBuilder(t).WithSubject("Sync").WithPeriod(start, start.Add(time.Hour)).Build()
	c := fixtures.NewAppointmentBuilder(t).WithSubject("Sync").WithPeriod(start.Add(time.Minute), start.Add(time.Hour)).Build()

	assert.Equal(t, a.DuplicateKey(), b.DuplicateKey())
	assert.NotEqual(t, a.DuplicateKey(), c.DuplicateKey())
}

func TestParseShowAs(t *testing.T) {
	tests := []struct {
		in   string
		want appointment.ShowAs
	}{
		{"free", appointment.ShowAsFree},
		{"Tentative", appointment.ShowAsTentative},
		{"busy", appointment.ShowAsBusy},
		{"oof", appointment.ShowAsOOF},
		{"workingElsewhere", appointment.ShowAsWorkingElsewhere},
		{"working-elsewhere", appointment.ShowAsWorkingElsewhere},
		{"", appointment.ShowAsUnknown},
		{"garbage", appointment.ShowAsUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, appointment.ParseShowAs(tt.in))
		})
	}
}

func mustInZone(t *testing.T, value, zone string) time.Time {
	t.Helper()
	loc, err := time.LoadLocation(zone)
	require.NoError(t, err)
	ts, err := time.ParseInLocation("2006-01-02T15:04:05", value, loc)
	require.NoError(t, err)
	return ts
}
