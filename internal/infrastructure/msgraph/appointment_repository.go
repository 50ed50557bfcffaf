package msgraph

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Auriora/admin-assistant-sub001/internal/domain/appointment"
	"github.com/Auriora/admin-assistant-sub001/internal/domain/errors"
	"github.com/Auriora/admin-assistant-sub001/internal/service/archiver"
	"github.com/Auriora/admin-assistant-sub001/internal/service/calendars"
)

// AppointmentRepository adapts the Graph calendar API to the archive
// contracts. The client's token decides whose mailbox is touched; userID
// only stamps ownership on the returned appointments.
type AppointmentRepository struct {
	client *Client
	logger *zap.Logger
}

func NewAppointmentRepository(client *Client, logger *zap.Logger) *AppointmentRepository {
	return &AppointmentRepository{client: client, logger: logger}
}

type eventPage struct {
	NextLink string            `json:"@odata.nextLink"`
	Value    []json.RawMessage `json:"value"`
}

// ListForPeriod reads the calendar view, which expands recurring series
// server-side into concrete occurrences.
func (r *AppointmentRepository) ListForPeriod(ctx context.Context, userID uuid.UUID, calendarID string, start, end time.Time) ([]*appointment.Appointment, error) {
	query := url.Values{}
	query.Set("startDateTime", start.UTC().Format(time.RFC3339))
	query.Set("endDateTime", end.UTC().Format(time.RFC3339))
	query.Set("$top", strconv.Itoa(r.client.pageSize))
	query.Set("$orderby", "start/dateTime")

	next := r.client.url(calendarViewPath(calendarID), query)
	var appts []*appointment.Appointment
	for next != "" {
		var page eventPage
		if err := r.client.getJSON(ctx, next, &page); err != nil {
			return nil, err
		}
		for _, raw := range page.Value {
			appt, err := eventToAppointment(raw, userID, calendarID)
			if err != nil {
				return nil, err
			}
			// The view is inclusive at its edges; trim to the half-open window.
			if !appt.StartTime.Before(end) || !appt.EndTime.After(start) {
				continue
			}
			appts = append(appts, appt)
		}
		next = page.NextLink
	}

	r.logger.Debug("listed graph calendar view",
		zap.String("calendar_id", calendarID),
		zap.Int("count", len(appts)))
	return appts, nil
}

// Add creates one event and returns the stored copy carrying the id Graph
// assigned to it.
func (r *AppointmentRepository) Add(ctx context.Context, userID uuid.UUID, calendarID string, appt *appointment.Appointment) (*appointment.Appointment, error) {
	var created json.RawMessage
	if err := r.client.postJSON(ctx, eventsPath(calendarID), eventPayload(appt), &created); err != nil {
		return nil, err
	}
	return eventToAppointment(created, userID, calendarID)
}

// AddBulk stores events through the batch endpoint, batchLimit at a time.
// Graph may answer sub-requests out of order, so responses are matched back
// to their appointments by request id.
func (r *AppointmentRepository) AddBulk(ctx context.Context, userID uuid.UUID, calendarID string, appts []*appointment.Appointment) (*archiver.BulkWriteResult, error) {
	result := &archiver.BulkWriteResult{}
	path := eventsPath(calendarID)

	for offset := 0; offset < len(appts); offset += batchLimit {
		chunk := appts[offset:min(offset+batchLimit, len(appts))]

		requests := make([]batchRequest, len(chunk))
		for i, appt := range chunk {
			requests[i] = batchRequest{
				ID:      strconv.Itoa(i + 1),
				Method:  http.MethodPost,
				URL:     path,
				Body:    eventPayload(appt),
				Headers: map[string]string{"Content-Type": "application/json"},
			}
		}

		responses, err := r.client.batch(ctx, requests)
		if err != nil {
			return nil, err
		}
		byID := make(map[string]batchResponse, len(responses))
		for _, resp := range responses {
			byID[resp.ID] = resp
		}

		for i, appt := range chunk {
			resp, ok := byID[strconv.Itoa(i+1)]
			if !ok {
				result.Failed = append(result.Failed, archiver.BulkWriteFailure{
					Appointment: appt,
					Err:         errors.NewExternalError("graph", "batch response missing for request"),
				})
				continue
			}
			if resp.Status < 200 || resp.Status > 299 {
				result.Failed = append(result.Failed, archiver.BulkWriteFailure{
					Appointment: appt,
					Err:         mapStatus(resp.Status, resp.Body),
				})
				continue
			}
			stored, err := eventToAppointment(resp.Body, userID, calendarID)
			if err != nil {
				result.Failed = append(result.Failed, archiver.BulkWriteFailure{Appointment: appt, Err: err})
				continue
			}
			result.Added = append(result.Added, stored)
		}
	}
	return result, nil
}

// CheckForDuplicates drops candidates whose subject and exact period already
// exist on the calendar.
func (r *AppointmentRepository) CheckForDuplicates(ctx context.Context, userID uuid.UUID, calendarID string, candidates []*appointment.Appointment, start, end time.Time) ([]*appointment.Appointment, error) {
	existing, err := r.ListForPeriod(ctx, userID, calendarID, start, end)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(existing))
	for _, appt := range existing {
		seen[appt.DuplicateKey()] = struct{}{}
	}
	kept := make([]*appointment.Appointment, 0, len(candidates))
	for _, appt := range candidates {
		if _, dup := seen[appt.DuplicateKey()]; dup {
			continue
		}
		kept = append(kept, appt)
	}
	return kept, nil
}

type calendarPage struct {
	NextLink string `json:"@odata.nextLink"`
	Value    []struct {
		ID        string `json:"id"`
		Name      string `json:"name"`
		IsDefault bool   `json:"isDefaultCalendar"`
	} `json:"value"`
}

// ListCalendars implements the calendar directory used by URI resolution.
func (r *AppointmentRepository) ListCalendars(ctx context.Context, userID uuid.UUID) ([]calendars.CalendarInfo, error) {
	query := url.Values{}
	query.Set("$select", "id,name,isDefaultCalendar")
	query.Set("$top", strconv.Itoa(r.client.pageSize))

	next := r.client.url("/me/calendars", query)
	var infos []calendars.CalendarInfo
	for next != "" {
		var page calendarPage
		if err := r.client.getJSON(ctx, next, &page); err != nil {
			return nil, err
		}
		for _, cal := range page.Value {
			infos = append(infos, calendars.CalendarInfo{
				ID:        cal.ID,
				Name:      cal.Name,
				IsPrimary: cal.IsDefault,
			})
		}
		next = page.NextLink
	}
	return infos, nil
}

// GetByExternalID fetches one event by its Graph id.
func (r *AppointmentRepository) GetByExternalID(ctx context.Context, userID uuid.UUID, externalID string) (*appointment.Appointment, error) {
	var raw json.RawMessage
	if err := r.client.getJSON(ctx, r.client.url(eventPath(externalID), nil), &raw); err != nil {
		return nil, notFoundAsAppointment(err)
	}
	return eventToAppointment(raw, userID, "")
}

// Restore recreates a deleted event. Graph mints a fresh event id, so the
// restored copy does not keep the captured external id.
func (r *AppointmentRepository) Restore(ctx context.Context, userID uuid.UUID, appt *appointment.Appointment) error {
	return r.client.postJSON(ctx, eventsPath(appt.CalendarID), eventPayload(appt), nil)
}

// Overwrite patches a stored event back to a prior snapshot.
func (r *AppointmentRepository) Overwrite(ctx context.Context, userID uuid.UUID, appt *appointment.Appointment) error {
	if err := r.client.patchJSON(ctx, eventPath(appt.ExternalID), eventPayload(appt), nil); err != nil {
		return notFoundAsAppointment(err)
	}
	return nil
}

// Remove deletes a stored event.
func (r *AppointmentRepository) Remove(ctx context.Context, userID uuid.UUID, externalID string) error {
	if err := r.client.delete(ctx, eventPath(externalID)); err != nil {
		return notFoundAsAppointment(err)
	}
	return nil
}

func eventsPath(calendarID string) string {
	if calendarID == "" {
		return "/me/events"
	}
	return "/me/calendars/" + url.PathEscape(calendarID) + "/events"
}

func calendarViewPath(calendarID string) string {
	if calendarID == "" {
		return "/me/calendarView"
	}
	return "/me/calendars/" + url.PathEscape(calendarID) + "/calendarView"
}

func eventPath(externalID string) string {
	return "/me/events/" + url.PathEscape(externalID)
}

func notFoundAsAppointment(err error) error {
	if errors.IsType(err, errors.ErrorTypeNotFound) {
		return errors.ErrAppointmentNotFound
	}
	return err
}
