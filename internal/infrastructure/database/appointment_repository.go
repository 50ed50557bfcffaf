package database

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/Auriora/admin-assistant-sub001/internal/domain/appointment"
	"github.com/Auriora/admin-assistant-sub001/internal/domain/errors"
	"github.com/Auriora/admin-assistant-sub001/internal/service/archiver"
	"github.com/Auriora/admin-assistant-sub001/internal/service/calendars"
)

const appointmentColumns = `
	id, external_id, user_id, calendar_id, subject, start_time, end_time,
	timezone, recurrence, categories, show_as, sensitivity, importance,
	is_archived, provider_payload, created_at, updated_at`

// AppointmentRepository is the local calendar backend. It serves as both an
// archive source and an archive destination, and as the store reversals are
// applied to.
type AppointmentRepository struct {
	db     Querier
	logger *zap.Logger
}

// NewAppointmentRepository creates a repository bound to a pool or an open
// transaction.
func NewAppointmentRepository(db Querier, logger *zap.Logger) *AppointmentRepository {
	return &AppointmentRepository{db: db, logger: logger}
}

// ListForPeriod returns the user's appointments intersecting [start, end) on
// one calendar. The empty calendar id addresses the default calendar.
func (r *AppointmentRepository) ListForPeriod(ctx context.Context, userID uuid.UUID, calendarID string, start, end time.Time) ([]*appointment.Appointment, error) {
	query := `
		SELECT ` + appointmentColumns + `
		FROM appointments
		WHERE user_id = $1 AND calendar_id = $2
		  AND start_time < $3 AND end_time > $4
		ORDER BY start_time, end_time, id`

	rows, err := r.db.Query(ctx, query, userID, calendarID, toDB(end), toDB(start))
	if err != nil {
		return nil, errors.NewFetchError("failed to list appointments", err)
	}
	defer rows.Close()

	return scanAppointments(rows)
}

// Add stores one archived copy. The copy keeps the source's external id so
// provenance survives the move; a copy with no external id gets the row id.
func (r *AppointmentRepository) Add(ctx context.Context, userID uuid.UUID, calendarID string, appt *appointment.Appointment) (*appointment.Appointment, error) {
	stored := appt.Clone()
	stored.UserID = userID
	stored.CalendarID = calendarID
	if stored.ID == uuid.Nil {
		stored.ID = uuid.New()
	}
	if stored.ExternalID == "" {
		stored.ExternalID = stored.ID.String()
	}
	now := time.Now().UTC()
	stored.CreatedAt = now
	stored.UpdatedAt = now

	query := `
		INSERT INTO appointments (` + appointmentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`

	_, err := r.db.Exec(ctx, query,
		stored.ID,
		stored.ExternalID,
		stored.UserID,
		stored.CalendarID,
		stored.Subject,
		toDB(stored.StartTime),
		toDB(stored.EndTime),
		stored.Timezone,
		stored.Recurrence,
		stored.Categories,
		string(stored.ShowAs),
		string(stored.Sensitivity),
		string(stored.Importance),
		stored.IsArchived,
		rawJSON(stored.ProviderPayload),
		toDB(stored.CreatedAt),
		toDB(stored.UpdatedAt),
	)
	if err != nil {
		if isUniqueViolation(err, "uq_appointments_identity") {
			return nil, errors.NewDuplicateAppointmentError("appointment already archived for this period")
		}
		return nil, errors.NewAddError("failed to store appointment", err)
	}

	return stored, nil
}

// AddBulk stores many copies, reporting failures per item. A failed item
// never aborts the rest of the batch.
func (r *AppointmentRepository) AddBulk(ctx context.Context, userID uuid.UUID, calendarID string, appts []*appointment.Appointment) (*archiver.BulkWriteResult, error) {
	result := &archiver.BulkWriteResult{}
	for _, appt := range appts {
		if err := ctx.Err(); err != nil {
			return result, errors.NewCancelledError("bulk add interrupted").WithCause(err)
		}
		stored, err := r.Add(ctx, userID, calendarID, appt)
		if err != nil {
			result.Failed = append(result.Failed, archiver.BulkWriteFailure{Appointment: appt, Err: err})
			continue
		}
		result.Added = append(result.Added, stored)
	}
	return result, nil
}

// CheckForDuplicates filters out candidates whose subject and period already
// exist on the destination calendar within [start, end).
func (r *AppointmentRepository) CheckForDuplicates(ctx context.Context, userID uuid.UUID, calendarID string, candidates []*appointment.Appointment, start, end time.Time) ([]*appointment.Appointment, error) {
	existing, err := r.ListForPeriod(ctx, userID, calendarID, start, end)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(existing))
	for _, e := range existing {
		seen[e.DuplicateKey()] = struct{}{}
	}

	kept := make([]*appointment.Appointment, 0, len(candidates))
	for _, c := range candidates {
		if _, dup := seen[c.DuplicateKey()]; dup {
			continue
		}
		kept = append(kept, c)
	}
	return kept, nil
}

// MakeImmutable flags archived rows against later mutation by anyone but
// their owner.
func (r *AppointmentRepository) MakeImmutable(ctx context.Context, userID uuid.UUID, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	query := `
		UPDATE appointments
		SET is_archived = TRUE, updated_at = $3
		WHERE user_id = $1 AND id = ANY($2)`

	_, err := r.db.Exec(ctx, query, userID, ids, toDB(time.Now()))
	if err != nil {
		return errors.NewInternalError("failed to mark appointments immutable").WithCause(err)
	}
	return nil
}

// GetByID retrieves one appointment.
func (r *AppointmentRepository) GetByID(ctx context.Context, id uuid.UUID) (*appointment.Appointment, error) {
	query := `SELECT ` + appointmentColumns + ` FROM appointments WHERE id = $1`
	appt, err := scanAppointment(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if noRows(err) {
			return nil, errors.ErrAppointmentNotFound
		}
		return nil, errors.NewFetchError("failed to get appointment", err)
	}
	return appt, nil
}

// GetByExternalID retrieves the newest stored copy carrying one external id.
func (r *AppointmentRepository) GetByExternalID(ctx context.Context, userID uuid.UUID, externalID string) (*appointment.Appointment, error) {
	query := `
		SELECT ` + appointmentColumns + `
		FROM appointments
		WHERE user_id = $1 AND external_id = $2
		ORDER BY created_at DESC
		LIMIT 1`

	appt, err := scanAppointment(r.db.QueryRow(ctx, query, userID, externalID))
	if err != nil {
		if noRows(err) {
			return nil, errors.ErrAppointmentNotFound
		}
		return nil, errors.NewFetchError("failed to get appointment", err)
	}
	return appt, nil
}

// Update rewrites an appointment's mutable fields. Archived rows reject
// every actor but their owner.
func (r *AppointmentRepository) Update(ctx context.Context, actorID uuid.UUID, appt *appointment.Appointment) error {
	current, err := r.GetByID(ctx, appt.ID)
	if err != nil {
		return err
	}
	if err := current.EnsureMutableBy(actorID); err != nil {
		return err
	}

	query := `
		UPDATE appointments
		SET subject = $2, start_time = $3, end_time = $4, timezone = $5,
		    recurrence = $6, categories = $7, show_as = $8, sensitivity = $9,
		    importance = $10, is_archived = $11, provider_payload = $12,
		    updated_at = $13
		WHERE id = $1`

	_, err = r.db.Exec(ctx, query,
		appt.ID,
		appt.Subject,
		toDB(appt.StartTime),
		toDB(appt.EndTime),
		appt.Timezone,
		appt.Recurrence,
		appt.Categories,
		string(appt.ShowAs),
		string(appt.Sensitivity),
		string(appt.Importance),
		appt.IsArchived,
		rawJSON(appt.ProviderPayload),
		toDB(time.Now()),
	)
	if err != nil {
		return errors.NewInternalError("failed to update appointment").WithCause(err)
	}
	return nil
}

// Delete removes an appointment, honoring the archived mutation gate.
func (r *AppointmentRepository) Delete(ctx context.Context, actorID uuid.UUID, id uuid.UUID) error {
	current, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := current.EnsureMutableBy(actorID); err != nil {
		return err
	}

	if _, err := r.db.Exec(ctx, `DELETE FROM appointments WHERE id = $1`, id); err != nil {
		return errors.NewInternalError("failed to delete appointment").WithCause(err)
	}
	return nil
}

// Restore recreates an appointment from a prior snapshot. Reversals call
// this to undo a delete.
func (r *AppointmentRepository) Restore(ctx context.Context, userID uuid.UUID, appt *appointment.Appointment) error {
	restored := appt.Clone()
	restored.UserID = userID
	if restored.ID == uuid.Nil {
		restored.ID = uuid.New()
	}

	query := `
		INSERT INTO appointments (` + appointmentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		ON CONFLICT (id) DO NOTHING`

	_, err := r.db.Exec(ctx, query,
		restored.ID,
		restored.ExternalID,
		restored.UserID,
		restored.CalendarID,
		restored.Subject,
		toDB(restored.StartTime),
		toDB(restored.EndTime),
		restored.Timezone,
		restored.Recurrence,
		restored.Categories,
		string(restored.ShowAs),
		string(restored.Sensitivity),
		string(restored.Importance),
		restored.IsArchived,
		rawJSON(restored.ProviderPayload),
		toDB(restored.CreatedAt),
		toDB(time.Now()),
	)
	if err != nil {
		return errors.NewAddError("failed to restore appointment", err)
	}
	return nil
}

// Overwrite writes a snapshot back over the stored copy sharing its external
// id. Reversals call this to undo an update.
func (r *AppointmentRepository) Overwrite(ctx context.Context, userID uuid.UUID, appt *appointment.Appointment) error {
	query := `
		UPDATE appointments
		SET subject = $3, start_time = $4, end_time = $5, timezone = $6,
		    recurrence = $7, categories = $8, show_as = $9, sensitivity = $10,
		    importance = $11, is_archived = $12, provider_payload = $13,
		    updated_at = $14
		WHERE user_id = $1 AND external_id = $2`

	tag, err := r.db.Exec(ctx, query,
		userID,
		appt.ExternalID,
		appt.Subject,
		toDB(appt.StartTime),
		toDB(appt.EndTime),
		appt.Timezone,
		appt.Recurrence,
		appt.Categories,
		string(appt.ShowAs),
		string(appt.Sensitivity),
		string(appt.Importance),
		appt.IsArchived,
		rawJSON(appt.ProviderPayload),
		toDB(time.Now()),
	)
	if err != nil {
		return errors.NewInternalError("failed to overwrite appointment").WithCause(err)
	}
	if tag.RowsAffected() == 0 {
		return errors.ErrAppointmentNotFound
	}
	return nil
}

// Remove deletes the stored copies carrying one external id. Reversals call
// this to undo an add.
func (r *AppointmentRepository) Remove(ctx context.Context, userID uuid.UUID, externalID string) error {
	tag, err := r.db.Exec(ctx,
		`DELETE FROM appointments WHERE user_id = $1 AND external_id = $2`,
		userID, externalID)
	if err != nil {
		return errors.NewInternalError("failed to remove appointment").WithCause(err)
	}
	if tag.RowsAffected() == 0 {
		return errors.ErrAppointmentNotFound
	}
	return nil
}

// ListCalendars reports the calendars present in the local store for a user.
// The default calendar is the empty id.
func (r *AppointmentRepository) ListCalendars(ctx context.Context, userID uuid.UUID) ([]calendars.CalendarInfo, error) {
	rows, err := r.db.Query(ctx,
		`SELECT DISTINCT calendar_id FROM appointments WHERE user_id = $1 ORDER BY calendar_id`,
		userID)
	if err != nil {
		return nil, errors.NewFetchError("failed to list calendars", err)
	}
	defer rows.Close()

	infos := []calendars.CalendarInfo{{ID: "", Name: "Calendar", IsPrimary: true}}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, errors.NewInternalError("failed to scan calendar id").WithCause(err)
		}
		if id == "" {
			continue
		}
		infos = append(infos, calendars.CalendarInfo{ID: id, Name: id})
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewFetchError("failed to list calendars", err)
	}
	return infos, nil
}

// rawJSON passes raw provider payloads to a jsonb parameter, mapping empty
// to NULL.
func rawJSON(raw json.RawMessage) []byte {
	if len(raw) == 0 {
		return nil
	}
	return []byte(raw)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAppointment(row rowScanner) (*appointment.Appointment, error) {
	var (
		appt        appointment.Appointment
		showAs      string
		sensitivity string
		importance  string
		payload     []byte
	)
	err := row.Scan(
		&appt.ID,
		&appt.ExternalID,
		&appt.UserID,
		&appt.CalendarID,
		&appt.Subject,
		&appt.StartTime,
		&appt.EndTime,
		&appt.Timezone,
		&appt.Recurrence,
		&appt.Categories,
		&showAs,
		&sensitivity,
		&importance,
		&appt.IsArchived,
		&payload,
		&appt.CreatedAt,
		&appt.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	appt.StartTime = fromDB(appt.StartTime)
	appt.EndTime = fromDB(appt.EndTime)
	appt.CreatedAt = fromDB(appt.CreatedAt)
	appt.UpdatedAt = fromDB(appt.UpdatedAt)
	appt.ShowAs = appointment.ParseShowAs(showAs)
	appt.Sensitivity = appointment.ParseSensitivity(sensitivity)
	appt.Importance = appointment.ParseImportance(importance)
	if len(payload) > 0 {
		appt.ProviderPayload = json.RawMessage(payload)
	}
	return &appt, nil
}

func scanAppointments(rows pgx.Rows) ([]*appointment.Appointment, error) {
	var appts []*appointment.Appointment
	for rows.Next() {
		appt, err := scanAppointment(rows)
		if err != nil {
			return nil, errors.NewInternalError("failed to scan appointment").WithCause(err)
		}
		appts = append(appts, appt)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewFetchError("failed to read appointments", err)
	}
	return appts, nil
}
