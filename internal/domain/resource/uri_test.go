package resource_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Auriora/admin-assistant-sub001/internal/domain/errors"
	"github.com/Auriora/admin-assistant-sub001/internal/domain/resource"
	"github.com/Auriora/admin-assistant-sub001/internal/domain/user"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name         string
		uri          string
		want         resource.ParsedURI
		wantErrType  errors.ErrorType
	}{
		{
			name: "canonical with account",
			uri:  "msgraph://bruce@company.com/calendars/primary",
			want: resource.ParsedURI{
				Scheme:     resource.SchemeMSGraph,
				Account:    "bruce@company.com",
				Namespace:  "calendars",
				Identifier: "primary",
			},
		},
		{
			name: "canonical without account",
			uri:  "msgraph://calendars/primary",
			want: resource.ParsedURI{
				Scheme:     resource.SchemeMSGraph,
				Namespace:  "calendars",
				Identifier: "primary",
			},
		},
		{
			name: "quoted friendly name",
			uri:  `msgraph://bruce@company.com/calendars/"Activity Archive"`,
			want: resource.ParsedURI{
				Scheme:       resource.SchemeMSGraph,
				Account:      "bruce@company.com",
				Namespace:    "calendars",
				Identifier:   "Activity Archive",
				UserFriendly: true,
			},
		},
		{
			name: "percent-encoded friendly name",
			uri:  "msgraph://calendars/Activity%20Archive",
			want: resource.ParsedURI{
				Scheme:       resource.SchemeMSGraph,
				Namespace:    "calendars",
				Identifier:   "Activity Archive",
				UserFriendly: true,
			},
		},
		{
			name: "backslash-escaped friendly name",
			uri:  `msgraph://calendars/Activity\ Archive`,
			want: resource.ParsedURI{
				Scheme:       resource.SchemeMSGraph,
				Namespace:    "calendars",
				Identifier:   "Activity Archive",
				UserFriendly: true,
			},
		},
		{
			name: "legacy identifier-only form is migrated",
			uri:  `msgraph://"Activity Archive"`,
			want: resource.ParsedURI{
				Scheme:       resource.SchemeMSGraph,
				Namespace:    "calendars",
				Identifier:   "Activity Archive",
				UserFriendly: true,
			},
		},
		{
			name: "local scheme technical id",
			uri:  "local://calendars/archive-main",
			want: resource.ParsedURI{
				Scheme:     resource.SchemeLocal,
				Namespace:  "calendars",
				Identifier: "archive-main",
			},
		},
		{name: "empty input", uri: "", wantErrType: errors.ErrorTypeValidation},
		{name: "missing scheme", uri: "calendars/primary", wantErrType: errors.ErrorTypeValidation},
		{name: "missing path", uri: "msgraph://", wantErrType: errors.ErrorTypeValidation},
		{name: "double scheme separator", uri: "msgraph://foo://bar", wantErrType: errors.ErrorTypeValidation},
		{name: "double slash in path", uri: "msgraph://bruce@company.com//primary", wantErrType: errors.ErrorTypeValidation},
		{name: "unknown namespace", uri: "msgraph://bruce@company.com/contacts/primary", wantErrType: errors.ErrorTypeValidation},
		{name: "unknown scheme", uri: "gopher://calendars/primary", wantErrType: errors.ErrorTypeValidation},
		{name: "invalid account syntax", uri: `msgraph://b ruce/calendars/primary`, wantErrType: errors.ErrorTypeValidation},
		{name: "unterminated quote", uri: `msgraph://calendars/"Activity`, wantErrType: errors.ErrorTypeValidation},
		{name: "too many segments", uri: "msgraph://a/calendars/b/c", wantErrType: errors.ErrorTypeValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := resource.Parse(tt.uri)
			if tt.wantErrType != "" {
				require.Error(t, err)
				assert.True(t, errors.IsType(err, tt.wantErrType), "got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want.Scheme, got.Scheme)
			assert.Equal(t, tt.want.Account, got.Account)
			assert.Equal(t, tt.want.Namespace, got.Namespace)
			assert.Equal(t, tt.want.Identifier, got.Identifier)
			assert.Equal(t, tt.want.UserFriendly, got.UserFriendly)
		})
	}
}

func TestConstructParseRoundTrip(t *testing.T) {
	cases := []struct {
		scheme       resource.Scheme
		identifier   string
		account      string
		userFriendly bool
	}{
		{resource.SchemeMSGraph, "primary", "", false},
		{resource.SchemeMSGraph, "primary", "bruce@company.com", false},
		{resource.SchemeMSGraph, "Activity Archive", "bruce@company.com", true},
		{resource.SchemeMSGraph, `He said "hi"`, "bruce", true},
		{resource.SchemeLocal, "archive-main", "42", false},
		{resource.SchemeLocal, "Time & Billing", "", true},
	}

	for _, c := range cases {
		t.Run(c.identifier, func(t *testing.T) {
			uri := resource.Construct(c.scheme, resource.NamespaceCalendars, c.identifier, c.account, c.userFriendly)
			parsed, err := resource.Parse(uri)
			require.NoError(t, err, "uri %q", uri)
			assert.Equal(t, c.scheme, parsed.Scheme)
			assert.Equal(t, resource.NamespaceCalendars, parsed.Namespace)
			assert.Equal(t, c.identifier, parsed.Identifier)
			assert.Equal(t, c.account, parsed.Account)
		})
	}
}

func TestNormalizeKey(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Activity Archive", "activity-archive"},
		{"  Activity   Archive  ", "activity-archive"},
		{"Time & Billing", "time-billing"},
		{"already-normal_key", "already-normal_key"},
		{"CAFÉ", "caf"},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, resource.NormalizeKey(tt.in))
		})
	}
}

func TestValidateAccount(t *testing.T) {
	u, err := user.New("bruce@company.com", "bruce")
	require.NoError(t, err)

	tests := []struct {
		name    string
		account string
		wantErr bool
	}{
		{name: "absent account is permitted", account: "", wantErr: false},
		{name: "email matches case-insensitively", account: "Bruce@Company.COM", wantErr: false},
		{name: "username matches case-sensitively", account: "bruce", wantErr: false},
		{name: "username case mismatch rejected", account: "BRUCE", wantErr: true},
		{name: "id string matches", account: u.ID.String(), wantErr: false},
		{name: "foreign account rejected", account: "jane@company.com", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := resource.ValidateAccount(u, tt.account)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.IsType(err, errors.ErrorTypeResolution))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
