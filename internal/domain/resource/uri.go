package resource

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/Auriora/admin-assistant-sub001/internal/domain/errors"
)

// Scheme selects the repository backend a URI addresses.
type Scheme string

const (
	SchemeMSGraph Scheme = "msgraph"
	SchemeLocal   Scheme = "local"
)

// NamespaceCalendars is the only namespace the grammar admits today.
const NamespaceCalendars = "calendars"

// PrimaryIdentifier addresses the user's default calendar. It resolves to an
// empty backend id on providers that treat the default calendar implicitly.
const PrimaryIdentifier = "primary"

// ParsedURI is the canonical decomposition of a resource URI:
//
//	scheme "://" [ account "/" ] namespace "/" identifier
//
// Identifier is stored decoded. UserFriendly records whether the identifier
// arrived quoted, escaped or percent-encoded, meaning it names a calendar by
// its display name rather than a technical id.
type ParsedURI struct {
	Scheme       Scheme `json:"scheme"`
	Account      string `json:"account,omitempty"`
	Namespace    string `json:"namespace"`
	Identifier   string `json:"identifier"`
	UserFriendly bool   `json:"user_friendly"`

	// Raw preserves the input for diagnostics; legacy inputs keep their
	// original text here even though the parsed form is canonical.
	Raw string `json:"raw,omitempty"`
}

// String renders the canonical form. Friendly identifiers are double-quoted.
func (p ParsedURI) String() string {
	return Construct(p.Scheme, p.Namespace, p.Identifier, p.Account, p.UserFriendly)
}

var accountPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._@+\-]*$`)

// Parse decomposes a resource URI. Legacy forms without account and
// namespace are migrated to the canonical grammar here; callers never see a
// legacy shape. Malformed input fails with a URI parse error.
func Parse(raw string) (ParsedURI, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ParsedURI{}, errors.NewURIParseError("empty resource URI")
	}
	if strings.Count(trimmed, "://") > 1 {
		return ParsedURI{}, errors.NewURIParseError(fmt.Sprintf("multiple scheme separators in %q", raw))
	}

	schemeStr, path, found := strings.Cut(trimmed, "://")
	if !found || schemeStr == "" {
		return ParsedURI{}, errors.NewURIParseError(fmt.Sprintf("missing scheme in %q", raw))
	}
	if path == "" {
		return ParsedURI{}, errors.NewURIParseError(fmt.Sprintf("missing path in %q", raw))
	}

	scheme, err := parseScheme(schemeStr)
	if err != nil {
		return ParsedURI{}, err
	}

	segments, err := splitPath(raw, path)
	if err != nil {
		return ParsedURI{}, err
	}

	parsed := ParsedURI{Scheme: scheme, Namespace: NamespaceCalendars, Raw: raw}
	switch len(segments) {
	case 1:
		// Legacy form: just an identifier. Migrate to the canonical grammar.
		parsed.Identifier, parsed.UserFriendly, err = decodeIdentifier(segments[0])
	case 2:
		if segments[0] != NamespaceCalendars {
			return ParsedURI{}, errors.NewURIParseError(
				fmt.Sprintf("unknown namespace %q in %q", segments[0], raw))
		}
		parsed.Identifier, parsed.UserFriendly, err = decodeIdentifier(segments[1])
	case 3:
		if !accountPattern.MatchString(segments[0]) {
			return ParsedURI{}, errors.NewURIParseError(
				fmt.Sprintf("invalid account syntax %q in %q", segments[0], raw))
		}
		if segments[1] != NamespaceCalendars {
			return ParsedURI{}, errors.NewURIParseError(
				fmt.Sprintf("unknown namespace %q in %q", segments[1], raw))
		}
		parsed.Account = segments[0]
		parsed.Identifier, parsed.UserFriendly, err = decodeIdentifier(segments[2])
	default:
		return ParsedURI{}, errors.NewURIParseError(fmt.Sprintf("too many path segments in %q", raw))
	}
	if err != nil {
		return ParsedURI{}, err
	}
	if parsed.Identifier == "" {
		return ParsedURI{}, errors.NewURIParseError(fmt.Sprintf("empty identifier in %q", raw))
	}
	return parsed, nil
}

func parseScheme(s string) (Scheme, error) {
	switch Scheme(strings.ToLower(s)) {
	case SchemeMSGraph:
		return SchemeMSGraph, nil
	case SchemeLocal:
		return SchemeLocal, nil
	default:
		return "", errors.NewURIValidationError(fmt.Sprintf("unsupported scheme %q", s))
	}
}

// splitPath splits on "/" while honoring quoted and escaped identifiers so a
// calendar name may contain slashes. Bare double slashes are rejected.
func splitPath(raw, path string) ([]string, error) {
	var segments []string
	var cur strings.Builder
	inQuotes := false
	escaped := false

	for _, r := range path {
		switch {
		case escaped:
			cur.WriteRune('\\')
			cur.WriteRune(r)
			escaped = false
		case r == '\\':
			escaped = true
		case r == '"':
			inQuotes = !inQuotes
			cur.WriteRune(r)
		case r == '/' && !inQuotes:
			segments = append(segments, cur.String())
			cur.Reset()
		default:
			cur.WriteRune(r)
		}
	}
	if escaped {
		cur.WriteRune('\\')
	}
	segments = append(segments, cur.String())

	if inQuotes {
		return nil, errors.NewURIParseError(fmt.Sprintf("unterminated quote in %q", raw))
	}
	for _, seg := range segments {
		if seg == "" {
			return nil, errors.NewURIParseError(fmt.Sprintf("double slash in path of %q", raw))
		}
	}
	return segments, nil
}

// decodeIdentifier unwraps quoting, backslash escapes and percent encoding.
// The friendly flag is set when any decoding applied or the decoded name
// contains whitespace, because technical ids never do.
func decodeIdentifier(seg string) (string, bool, error) {
	friendly := false

	if len(seg) >= 2 && strings.HasPrefix(seg, `"`) && strings.HasSuffix(seg, `"`) {
		seg = seg[1 : len(seg)-1]
		friendly = true
	}

	if strings.Contains(seg, `\`) {
		var b strings.Builder
		esc := false
		for _, r := range seg {
			if esc {
				b.WriteRune(r)
				esc = false
				continue
			}
			if r == '\\' {
				esc = true
				continue
			}
			b.WriteRune(r)
		}
		seg = b.String()
		friendly = true
	}

	if strings.Contains(seg, "%") {
		decoded, err := url.PathUnescape(seg)
		if err != nil {
			return "", false, errors.NewURIParseError(fmt.Sprintf("bad percent encoding in %q", seg))
		}
		if decoded != seg {
			friendly = true
		}
		seg = decoded
	}

	if strings.ContainsAny(seg, " \t") {
		friendly = true
	}
	return seg, friendly, nil
}

// Construct renders a canonical URI from parts. Friendly identifiers are
// double-quoted with embedded quotes escaped; technical ids pass through.
func Construct(scheme Scheme, namespace, identifier, account string, userFriendly bool) string {
	id := identifier
	if userFriendly {
		id = `"` + strings.ReplaceAll(identifier, `"`, `\"`) + `"`
	}
	if account != "" {
		return fmt.Sprintf("%s://%s/%s/%s", scheme, account, namespace, id)
	}
	return fmt.Sprintf("%s://%s/%s", scheme, namespace, id)
}

// NormalizeKey produces the lookup key used for friendly-name matching:
// lowercase, trimmed, whitespace runs collapsed to single hyphens, and
// everything outside [a-z0-9-_] dropped.
func NormalizeKey(name string) string {
	lower := strings.ToLower(strings.TrimSpace(name))
	var b strings.Builder
	lastHyphen := false
	for _, r := range lower {
		switch {
		case r == ' ' || r == '\t' || r == '\n':
			if !lastHyphen && b.Len() > 0 {
				b.WriteRune('-')
				lastHyphen = true
			}
		case (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' || r == '_':
			b.WriteRune(r)
			lastHyphen = r == '-'
		default:
			// dropped
		}
	}
	return strings.TrimRight(b.String(), "-")
}

// LegacyKey is the older space-to-hyphen key kept for stored URIs that
// predate NormalizeKey.
func LegacyKey(name string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), " ", "-")
}
