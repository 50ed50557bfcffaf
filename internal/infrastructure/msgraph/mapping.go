package msgraph

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Auriora/admin-assistant-sub001/internal/domain/appointment"
	"github.com/Auriora/admin-assistant-sub001/internal/domain/errors"
)

// graphTimeLayout is the wall-clock shape Graph uses inside start and end.
// Fractional seconds vary in width, so parsing trims them first.
const graphTimeLayout = "2006-01-02T15:04:05"

// graphEvent is the slice of the Graph event shape this service reads. The
// full event stays in ProviderPayload for reversal.
type graphEvent struct {
	ID             string        `json:"id"`
	Subject        string        `json:"subject"`
	Type           string        `json:"type"`
	SeriesMasterID string        `json:"seriesMasterId"`
	Start          graphDateTime `json:"start"`
	End            graphDateTime `json:"end"`
	ShowAs         string        `json:"showAs"`
	Sensitivity    string        `json:"sensitivity"`
	Importance     string        `json:"importance"`
	Categories     []string      `json:"categories"`
	CreatedAt      time.Time     `json:"createdDateTime"`
	UpdatedAt      time.Time     `json:"lastModifiedDateTime"`
}

type graphDateTime struct {
	DateTime string `json:"dateTime"`
	TimeZone string `json:"timeZone"`
}

func (g graphDateTime) parse() (time.Time, error) {
	raw := g.DateTime
	if i := strings.IndexByte(raw, '.'); i >= 0 {
		raw = raw[:i]
	}

	loc := time.UTC
	if g.TimeZone != "" && !strings.EqualFold(g.TimeZone, "UTC") {
		l, err := time.LoadLocation(g.TimeZone)
		if err != nil {
			return time.Time{}, errors.NewValidationError("INVALID_EVENT_TIME",
				fmt.Sprintf("unrecognized event time zone %q", g.TimeZone))
		}
		loc = l
	}

	t, err := time.ParseInLocation(graphTimeLayout, raw, loc)
	if err != nil {
		return time.Time{}, errors.NewValidationError("INVALID_EVENT_TIME",
			fmt.Sprintf("unparseable event time %q", g.DateTime))
	}
	return t.UTC(), nil
}

// eventToAppointment maps one Graph event onto the domain shape. Expanded
// occurrences keep their series master's id as the external id so instance
// keys stay stable across fetches.
func eventToAppointment(raw json.RawMessage, userID uuid.UUID, calendarID string) (*appointment.Appointment, error) {
	var ev graphEvent
	if err := json.Unmarshal(raw, &ev); err != nil {
		return nil, errors.NewFetchError("undecodable graph event", err)
	}

	start, err := ev.Start.parse()
	if err != nil {
		return nil, err
	}
	end, err := ev.End.parse()
	if err != nil {
		return nil, err
	}

	appt, err := appointment.NewAppointment(userID, ev.Subject, start, end)
	if err != nil {
		return nil, err
	}
	appt.CalendarID = calendarID
	appt.ExternalID = ev.ID
	if (ev.Type == "occurrence" || ev.Type == "exception") && ev.SeriesMasterID != "" {
		appt.ExternalID = ev.SeriesMasterID
	}
	if ev.Start.TimeZone != "" {
		appt.Timezone = ev.Start.TimeZone
	}
	appt.ShowAs = appointment.ParseShowAs(ev.ShowAs)
	appt.Sensitivity = appointment.ParseSensitivity(ev.Sensitivity)
	appt.Importance = appointment.ParseImportance(ev.Importance)
	appt.Categories = ev.Categories
	appt.ProviderPayload = raw
	if !ev.CreatedAt.IsZero() {
		appt.CreatedAt = ev.CreatedAt.UTC()
	}
	if !ev.UpdatedAt.IsZero() {
		appt.UpdatedAt = ev.UpdatedAt.UTC()
	}
	return appt, nil
}

// eventPayload builds the Graph representation for create and update calls.
// Times are always written as UTC wall clock.
func eventPayload(appt *appointment.Appointment) map[string]interface{} {
	payload := map[string]interface{}{
		"subject": appt.Subject,
		"start": map[string]string{
			"dateTime": appt.StartTime.UTC().Format(graphTimeLayout),
			"timeZone": "UTC",
		},
		"end": map[string]string{
			"dateTime": appt.EndTime.UTC().Format(graphTimeLayout),
			"timeZone": "UTC",
		},
		"showAs":      graphShowAs(appt.ShowAs),
		"sensitivity": appt.Sensitivity.String(),
		"importance":  appt.Importance.String(),
	}
	if len(appt.Categories) > 0 {
		payload["categories"] = appt.Categories
	}
	return payload
}

// graphShowAs renders ShowAs in Graph's camel-case vocabulary.
func graphShowAs(s appointment.ShowAs) string {
	switch s {
	case appointment.ShowAsWorkingElsewhere:
		return "workingElsewhere"
	case appointment.ShowAsUnknown:
		return "unknown"
	default:
		return s.String()
	}
}
