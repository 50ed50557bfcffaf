package calendars

import (
	"context"

	"github.com/google/uuid"

	"github.com/Auriora/admin-assistant-sub001/internal/domain/resource"
)

// CalendarInfo is one calendar visible to a user on a backend.
type CalendarInfo struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	IsPrimary bool   `json:"is_primary"`
}

// Directory lists the calendars a user can reach on one backend.
type Directory interface {
	ListCalendars(ctx context.Context, userID uuid.UUID) ([]CalendarInfo, error)
}

// Resolution is the outcome of resolving a calendar URI for a user. An empty
// CalendarID addresses the backend's default calendar.
type Resolution struct {
	URI        resource.ParsedURI
	CalendarID string
	Matched    bool
}
