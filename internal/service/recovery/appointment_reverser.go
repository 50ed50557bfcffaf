package recovery

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/Auriora/admin-assistant-sub001/internal/domain/appointment"
	"github.com/Auriora/admin-assistant-sub001/internal/domain/errors"
	"github.com/Auriora/admin-assistant-sub001/internal/domain/reversible"
)

// AppointmentReverser undoes archived appointment changes against the store
// the original operation wrote to. Items carry the destination scheme in
// their reverse data; items without one go to the default store.
type AppointmentReverser struct {
	stores        map[string]ArchiveStore
	defaultScheme string
}

func NewAppointmentReverser(defaultScheme string, stores map[string]ArchiveStore) *AppointmentReverser {
	return &AppointmentReverser{stores: stores, defaultScheme: defaultScheme}
}

func (r *AppointmentReverser) Restore(ctx context.Context, userID uuid.UUID, item *reversible.Item) error {
	store, err := r.storeFor(item)
	if err != nil {
		return err
	}
	appt, err := r.fromBeforeState(item)
	if err != nil {
		return err
	}
	return store.Restore(ctx, userID, appt)
}

func (r *AppointmentReverser) Delete(ctx context.Context, userID uuid.UUID, item *reversible.Item) error {
	store, err := r.storeFor(item)
	if err != nil {
		return err
	}
	ref := item.ExternalID
	if ref == "" {
		ref = item.ItemID
	}
	if ref == "" {
		return errors.NewValidationError("MISSING_ITEM_REF",
			fmt.Sprintf("item %s has no identifier to delete", item.ID))
	}
	return store.Remove(ctx, userID, ref)
}

func (r *AppointmentReverser) Update(ctx context.Context, userID uuid.UUID, item *reversible.Item) error {
	store, err := r.storeFor(item)
	if err != nil {
		return err
	}
	appt, err := r.fromBeforeState(item)
	if err != nil {
		return err
	}
	return store.Overwrite(ctx, userID, appt)
}

func (r *AppointmentReverser) storeFor(item *reversible.Item) (ArchiveStore, error) {
	scheme := r.defaultScheme
	if item.ReverseData != nil {
		if s, ok := item.ReverseData["scheme"].(string); ok && s != "" {
			scheme = s
		}
	}
	store, ok := r.stores[scheme]
	if !ok {
		return nil, errors.NewCalendarServiceError(
			fmt.Sprintf("no archive store for scheme %q", scheme), nil)
	}
	return store, nil
}

func (r *AppointmentReverser) fromBeforeState(item *reversible.Item) (*appointment.Appointment, error) {
	if len(item.BeforeState) == 0 {
		return nil, errors.NewValidationError("MISSING_BEFORE_STATE",
			fmt.Sprintf("item %s has no before state to restore", item.ID))
	}
	return appointment.FromSnapshot(item.BeforeState)
}
