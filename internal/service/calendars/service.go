package calendars

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/Auriora/admin-assistant-sub001/internal/domain/errors"
	"github.com/Auriora/admin-assistant-sub001/internal/domain/resource"
	"github.com/Auriora/admin-assistant-sub001/internal/domain/user"
)

// Service resolves calendar URIs to backend calendar ids for a user. The
// identifier inside a URI may be an opaque backend id, a calendar name, or a
// historical name form; resolution tries them in that order.
type Service interface {
	Resolve(ctx context.Context, u *user.User, rawURI string) (*Resolution, error)
}

type service struct {
	directories map[resource.Scheme]Directory
	logger      *zap.Logger
}

// NewService creates a resolver over per-scheme calendar directories.
func NewService(directories map[resource.Scheme]Directory, logger *zap.Logger) (Service, error) {
	if len(directories) == 0 {
		return nil, errors.NewInternalError("at least one calendar directory is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &service{directories: directories, logger: logger}, nil
}

func (s *service) Resolve(ctx context.Context, u *user.User, rawURI string) (*Resolution, error) {
	parsed, err := resource.Parse(rawURI)
	if err != nil {
		return nil, err
	}
	if err := resource.ValidateAccount(u, parsed.Account); err != nil {
		return nil, err
	}

	directory, ok := s.directories[parsed.Scheme]
	if !ok {
		return nil, errors.NewURIValidationError(
			fmt.Sprintf("no calendar backend registered for scheme %q", parsed.Scheme))
	}

	if !parsed.UserFriendly && parsed.Identifier == resource.PrimaryIdentifier {
		return &Resolution{URI: parsed, CalendarID: "", Matched: true}, nil
	}

	calendars, err := directory.ListCalendars(ctx, u.ID)
	if err != nil {
		return nil, errors.NewCalendarServiceError(
			fmt.Sprintf("failed to list calendars for %s", parsed.Scheme), err)
	}

	if id, matched := matchCalendar(calendars, parsed.Identifier); matched {
		return &Resolution{URI: parsed, CalendarID: id, Matched: true}, nil
	}

	s.logger.Warn("calendar identifier not found in directory, using verbatim",
		zap.String("identifier", parsed.Identifier),
		zap.String("scheme", string(parsed.Scheme)),
		zap.String("user_id", u.ID.String()))
	return &Resolution{URI: parsed, CalendarID: parsed.Identifier, Matched: false}, nil
}

// matchCalendar tries id equality, then exact name, then the normalized and
// legacy name keys that older stored URIs may carry.
func matchCalendar(calendars []CalendarInfo, identifier string) (string, bool) {
	for _, c := range calendars {
		if c.ID == identifier {
			return c.ID, true
		}
	}
	for _, c := range calendars {
		if strings.EqualFold(c.Name, identifier) {
			return c.ID, true
		}
	}
	normalized := resource.NormalizeKey(identifier)
	for _, c := range calendars {
		if resource.NormalizeKey(c.Name) == normalized {
			return c.ID, true
		}
	}
	legacy := resource.LegacyKey(identifier)
	for _, c := range calendars {
		if resource.LegacyKey(c.Name) == legacy {
			return c.ID, true
		}
	}
	return "", false
}
