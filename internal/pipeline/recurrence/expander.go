package recurrence

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/teambition/rrule-go"
	"go.uber.org/zap"

	"github.com/Auriora/admin-assistant-sub001/internal/domain/appointment"
)

// Expander materializes recurring appointments into concrete instances over
// a date window. Expansion is a pure pass over the input list.
type Expander struct {
	logger *zap.Logger
}

func NewExpander(logger *zap.Logger) *Expander {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Expander{logger: logger}
}

// Expand walks the window one day at a time. Non-recurring appointments are
// kept when their start date falls inside [startDate, endDate]. Recurring
// ones emit a fresh instance for every day the rule fires, pinned to the
// original wall-clock time of day in the original timezone, with the
// original duration. Instances carry no recurrence rule; their identity is
// (external id, instance date).
func (e *Expander) Expand(appts []*appointment.Appointment, startDate, endDate time.Time) []*appointment.Appointment {
	startDate = dateOnly(startDate)
	endDate = dateOnly(endDate)

	var out []*appointment.Appointment
	for _, a := range appts {
		if !a.IsRecurring() {
			d := dateOnly(a.StartTime.UTC())
			if !d.Before(startDate) && !d.After(endDate) {
				out = append(out, a)
			}
			continue
		}
		out = append(out, e.expandSeries(a, startDate, endDate)...)
	}
	return out
}

func (e *Expander) expandSeries(series *appointment.Appointment, startDate, endDate time.Time) []*appointment.Appointment {
	loc := seriesLocation(series)
	localStart := series.StartTime.In(loc)

	rule, err := buildRule(*series.Recurrence, localStart)
	if err != nil {
		e.logger.Warn("unparseable recurrence rule, treating series as single occurrence",
			zap.String("external_id", series.ExternalID),
			zap.String("rule", *series.Recurrence),
			zap.Error(err))
		d := dateOnly(series.StartTime.UTC())
		if !d.Before(startDate) && !d.After(endDate) {
			single := series.Clone()
			single.Recurrence = nil
			return []*appointment.Appointment{single}
		}
		return nil
	}

	duration := series.Duration()
	var out []*appointment.Appointment
	for day := startDate; !day.After(endDate); day = day.AddDate(0, 0, 1) {
		dayStart := day
		dayEnd := day.Add(24*time.Hour - time.Nanosecond)
		if len(rule.Between(dayStart, dayEnd, true)) == 0 {
			continue
		}

		instStart := time.Date(day.Year(), day.Month(), day.Day(),
			localStart.Hour(), localStart.Minute(), localStart.Second(), 0, loc).UTC()

		inst := series.Clone()
		inst.ID = uuid.New()
		inst.Recurrence = nil
		inst.StartTime = instStart
		inst.EndTime = instStart.Add(duration)
		out = append(out, inst)
	}
	return out
}

// buildRule parses RFC 5545 rule text, tolerating an RRULE: prefix, and
// anchors it at the series start.
func buildRule(text string, dtstart time.Time) (*rrule.RRule, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "RRULE:")

	opts, err := rrule.StrToROption(text)
	if err != nil {
		return nil, err
	}
	opts.Dtstart = dtstart
	return rrule.NewRRule(*opts)
}

func seriesLocation(a *appointment.Appointment) *time.Location {
	if a.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(a.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
