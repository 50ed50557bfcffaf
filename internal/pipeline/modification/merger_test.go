package modification_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Auriora/admin-assistant-sub001/internal/domain/appointment"
	"github.com/Auriora/admin-assistant-sub001/internal/pipeline/modification"
	"github.com/Auriora/admin-assistant-sub001/internal/testutil/fixtures"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		subject string
		want    modification.Type
	}{
		{"Extended", modification.TypeExtension},
		{"extended", modification.TypeExtension},
		{"Meeting Extended", modification.TypeNone},
		{"Meeting shortened", modification.TypeShortened},
		{"SHORTENED by 15", modification.TypeShortened},
		{"unshortened", modification.TypeNone},
		{"early start", modification.TypeEarlyStart},
		{"Early  Start today", modification.TypeEarlyStart},
		{"late start", modification.TypeLateStart},
		{"Late start for standup", modification.TypeLateStart},
		{"Regular meeting", modification.TypeNone},
	}
	for _, tt := range tests {
		t.Run(tt.subject, func(t *testing.T) {
			assert.Equal(t, tt.want, modification.Classify(tt.subject))
		})
	}
}

func TestMerge_Extension(t *testing.T) {
	m := modification.NewMerger(nil)

	orig := fixtures.NewAppointmentBuilder(t).
		WithSubject("Client call").
		WithTimes("10:00", "11:00").
		WithCategories("Acme Corp - billable").
		Build()
	mod := fixtures.NewAppointmentBuilder(t).
		WithSubject("Extended").
		WithTimes("11:00", "11:15").
		WithCategories("Acme Corp - billable").
		Build()

	res := m.Merge([]*appointment.Appointment{orig, mod})

	require.Len(t, res.Appointments, 1)
	assert.Equal(t, 1, res.MergedCount)
	assert.Equal(t, 0, res.OrphanCount)
	assert.Equal(t, "Client call", res.Appointments[0].Subject)
	assert.Equal(t, 10, res.Appointments[0].StartTime.Hour())
	assert.Equal(t, 11, res.Appointments[0].EndTime.Hour())
	assert.Equal(t, 15, res.Appointments[0].EndTime.Minute())
}

func TestMerge_Shortened(t *testing.T) {
	m := modification.NewMerger(nil)

	orig := fixtures.NewAppointmentBuilder(t).
		WithSubject("Workshop").
		WithTimes("14:00", "16:00").
		Build()
	mod := fixtures.NewAppointmentBuilder(t).
		WithSubject("Workshop shortened").
		WithTimes("15:30", "16:00").
		Build()

	res := m.Merge([]*appointment.Appointment{orig, mod})

	require.Len(t, res.Appointments, 1)
	assert.Equal(t, 1, res.MergedCount)
	got := res.Appointments[0]
	assert.Equal(t, "15:30", got.EndTime.Format("15:04"))
}

func TestMerge_ShortenedClampsToMinimumLength(t *testing.T) {
	m := modification.NewMerger(nil)

	orig := fixtures.NewAppointmentBuilder(t).
		WithSubject("Quick sync").
		WithTimes("14:00", "14:30").
		Build()
	mod := fixtures.NewAppointmentBuilder(t).
		WithSubject("shortened").
		WithTimes("14:00", "14:29").
		Build()

	res := m.Merge([]*appointment.Appointment{orig, mod})

	require.Equal(t, 1, res.MergedCount)
	got := res.Appointments[0]
	assert.Equal(t, time.Minute, got.Duration(), "clamped to one minute")
}

func TestMerge_EarlyStart(t *testing.T) {
	m := modification.NewMerger(nil)

	orig := fixtures.NewAppointmentBuilder(t).
		WithSubject("Board meeting").
		WithTimes("10:00", "11:00").
		Build()
	mod := fixtures.NewAppointmentBuilder(t).
		WithSubject("early start").
		WithTimes("09:45", "10:00").
		Build()

	res := m.Merge([]*appointment.Appointment{orig, mod})

	require.Equal(t, 1, res.MergedCount)
	got := res.Appointments[0]
	assert.Equal(t, "09:45", got.StartTime.Format("15:04"))
	assert.Equal(t, "11:00", got.EndTime.Format("15:04"))
}

func TestMerge_LateStart(t *testing.T) {
	m := modification.NewMerger(nil)

	orig := fixtures.NewAppointmentBuilder(t).
		WithSubject("Standup").
		WithTimes("09:00", "09:30").
		Build()
	mod := fixtures.NewAppointmentBuilder(t).
		WithSubject("late start").
		WithTimes("09:00", "09:10").
		Build()

	res := m.Merge([]*appointment.Appointment{orig, mod})

	require.Equal(t, 1, res.MergedCount)
	got := res.Appointments[0]
	assert.Equal(t, "09:10", got.StartTime.Format("15:04"))
	assert.Equal(t, "09:30", got.EndTime.Format("15:04"))
}

func TestMerge_LateStartClamp(t *testing.T) {
	m := modification.NewMerger(nil)

	orig := fixtures.NewAppointmentBuilder(t).
		WithSubject("Standup").
		WithTimes("09:00", "09:15").
		Build()
	mod := fixtures.NewAppointmentBuilder(t).
		WithSubject("late start").
		WithTimes("09:00", "09:20").
		Build()

	res := m.Merge([]*appointment.Appointment{orig, mod})

	require.Equal(t, 1, res.MergedCount)
	got := res.Appointments[0]
	assert.Equal(t, "09:14", got.StartTime.Format("15:04"), "clamped to one minute before end")
}

func TestMerge_OrphanDropped(t *testing.T) {
	m := modification.NewMerger(nil)

	keeper := fixtures.NewAppointmentBuilder(t).
		WithSubject("Unrelated").
		WithTimes("09:00", "10:00").
		Build()
	orphan := fixtures.NewAppointmentBuilder(t).
		WithSubject("Meeting shortened").
		WithTimes("14:30", "14:45").
		Build()

	res := m.Merge([]*appointment.Appointment{keeper, orphan})

	require.Len(t, res.Appointments, 1)
	assert.Same(t, keeper, res.Appointments[0])
	assert.Equal(t, 0, res.MergedCount)
	assert.Equal(t, 1, res.OrphanCount)
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "orphan shortened modification")
}

func TestMerge_CategoryMismatchPreventsPairing(t *testing.T) {
	m := modification.NewMerger(nil)

	orig := fixtures.NewAppointmentBuilder(t).
		WithSubject("Client call").
		WithTimes("10:00", "11:00").
		WithCategories("Acme Corp - billable").
		Build()
	mod := fixtures.NewAppointmentBuilder(t).
		WithSubject("Extended").
		WithTimes("11:00", "11:15").
		WithCategories("Initech - billable").
		Build()

	res := m.Merge([]*appointment.Appointment{orig, mod})

	assert.Equal(t, 0, res.MergedCount)
	assert.Equal(t, 1, res.OrphanCount)
	assert.Equal(t, "11:00", res.Appointments[0].EndTime.Format("15:04"), "original untouched")
}

func TestMerge_ExtensionTieBreaksOnSmallestDelta(t *testing.T) {
	m := modification.NewMerger(nil)

	near := fixtures.NewAppointmentBuilder(t).
		WithSubject("Near").
		WithTimes("10:00", "11:00").
		Build()
	far := fixtures.NewAppointmentBuilder(t).
		WithSubject("Far").
		WithTimes("09:00", "10:58").
		Build()
	mod := fixtures.NewAppointmentBuilder(t).
		WithSubject("Extended").
		WithTimes("11:00", "11:30").
		Build()

	res := m.Merge([]*appointment.Appointment{far, near, mod})

	require.Equal(t, 1, res.MergedCount)
	for _, a := range res.Appointments {
		if a.Subject == "Near" {
			assert.Equal(t, "11:30", a.EndTime.Format("15:04"))
		}
		if a.Subject == "Far" {
			assert.Equal(t, "10:58", a.EndTime.Format("15:04"))
		}
	}
}
