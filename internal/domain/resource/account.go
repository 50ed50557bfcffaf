package resource

import (
	"fmt"

	"github.com/Auriora/admin-assistant-sub001/internal/domain/errors"
	"github.com/Auriora/admin-assistant-sub001/internal/domain/user"
)

// ValidateAccount checks that a URI's account component refers to the
// invoking user. An absent account is permitted for stored legacy URIs and
// is not validated.
func ValidateAccount(u *user.User, account string) error {
	if account == "" {
		return nil
	}
	if u == nil {
		return errors.NewCalendarResolutionError("no user in scope for account validation")
	}
	if !u.MatchesAccount(account) {
		return errors.NewCalendarResolutionError(
			fmt.Sprintf("URI account %q does not match user %q", account, u.Email))
	}
	return nil
}
