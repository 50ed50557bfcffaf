package modification

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Auriora/admin-assistant-sub001/internal/domain/appointment"
)

// MatchTolerance is the pairing window between a modification side-record
// and its original appointment.
const MatchTolerance = 300 * time.Second

// minRemaining keeps a merged appointment at least this long after clamping.
const minRemaining = time.Minute

// Type classifies a modification side-record from its subject line.
type Type int

const (
	TypeNone Type = iota
	TypeExtension
	TypeShortened
	TypeEarlyStart
	TypeLateStart
)

func (t Type) String() string {
	switch t {
	case TypeExtension:
		return "extension"
	case TypeShortened:
		return "shortened"
	case TypeEarlyStart:
		return "early_start"
	case TypeLateStart:
		return "late_start"
	default:
		return "none"
	}
}

var (
	extensionPattern  = regexp.MustCompile(`(?i)^extended$`)
	shortenedPattern  = regexp.MustCompile(`(?i)\bshortened\b`)
	earlyStartPattern = regexp.MustCompile(`(?i)\bearly\s+start\b`)
	lateStartPattern  = regexp.MustCompile(`(?i)\blate\s+start\b`)
)

// Classify inspects a subject line. Precedence is fixed so a subject that
// matches several patterns resolves deterministically.
func Classify(subject string) Type {
	s := strings.TrimSpace(subject)
	switch {
	case extensionPattern.MatchString(s):
		return TypeExtension
	case shortenedPattern.MatchString(s):
		return TypeShortened
	case earlyStartPattern.MatchString(s):
		return TypeEarlyStart
	case lateStartPattern.MatchString(s):
		return TypeLateStart
	default:
		return TypeNone
	}
}

// Result reports the outcome of one merge pass.
type Result struct {
	Appointments []*appointment.Appointment `json:"-"`
	MergedCount  int                        `json:"merged_count"`
	OrphanCount  int                        `json:"orphan_count"`
	Warnings     []string                   `json:"warnings,omitempty"`
}

// Merger folds modification side-records into their originals.
type Merger struct {
	logger *zap.Logger
}

func NewMerger(logger *zap.Logger) *Merger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Merger{logger: logger}
}

// Merge applies every modification to its best-matching original and drops
// the side-records. Orphan modifications are dropped with a warning; they
// are neither merged nor passed through.
func (m *Merger) Merge(appts []*appointment.Appointment) Result {
	var originals []*appointment.Appointment
	type pendingMod struct {
		appt *appointment.Appointment
		typ  Type
	}
	var mods []pendingMod

	for _, a := range appts {
		if t := Classify(a.Subject); t != TypeNone {
			mods = append(mods, pendingMod{appt: a, typ: t})
			continue
		}
		originals = append(originals, a)
	}

	result := Result{Appointments: originals}
	for _, mod := range mods {
		target := findOriginal(originals, mod.appt, mod.typ)
		if target == nil {
			warning := fmt.Sprintf("orphan %s modification %q at %s dropped",
				mod.typ, mod.appt.Subject, mod.appt.StartTime.Format(time.RFC3339))
			m.logger.Warn("modification has no matching original",
				zap.String("type", mod.typ.String()),
				zap.String("subject", mod.appt.Subject),
				zap.Time("start", mod.appt.StartTime))
			result.Warnings = append(result.Warnings, warning)
			result.OrphanCount++
			continue
		}
		if err := apply(target, mod.appt, mod.typ); err != nil {
			warning := fmt.Sprintf("cannot apply %s modification %q to %q: %v",
				mod.typ, mod.appt.Subject, target.Subject, err)
			m.logger.Warn("modification apply failed",
				zap.String("type", mod.typ.String()),
				zap.String("original", target.Subject),
				zap.Error(err))
			result.Warnings = append(result.Warnings, warning)
			result.OrphanCount++
			continue
		}
		result.MergedCount++
	}
	return result
}

// findOriginal selects the candidate the pairing policy prefers, or nil.
func findOriginal(candidates []*appointment.Appointment, mod *appointment.Appointment, typ Type) *appointment.Appointment {
	var best *appointment.Appointment
	var bestScore time.Duration
	betterThan := func(score, current time.Duration) bool { return score < current }
	if typ == TypeShortened {
		// Shortening prefers the largest interval overlap.
		betterThan = func(score, current time.Duration) bool { return score > current }
	}

	for _, cand := range candidates {
		if !categoriesCompatible(cand, mod) {
			continue
		}
		score, ok := pairScore(cand, mod, typ)
		if !ok {
			continue
		}
		if best == nil || betterThan(score, bestScore) {
			best = cand
			bestScore = score
		}
	}
	return best
}

// pairScore evaluates one candidate against the per-type policy. The score
// is a time delta for proximity-matched types and an overlap length for
// shortenings.
func pairScore(cand, mod *appointment.Appointment, typ Type) (time.Duration, bool) {
	switch typ {
	case TypeExtension:
		delta := absDuration(cand.EndTime.Sub(mod.StartTime))
		return delta, delta <= MatchTolerance
	case TypeShortened:
		ov := intervalOverlap(cand, mod)
		return ov, ov > 0
	case TypeEarlyStart:
		if cand.StartTime.Before(mod.StartTime) {
			return 0, false
		}
		delta := absDuration(cand.StartTime.Sub(mod.EndTime))
		return delta, delta <= MatchTolerance
	case TypeLateStart:
		delta := absDuration(cand.StartTime.Sub(mod.StartTime))
		return delta, delta <= MatchTolerance
	default:
		return 0, false
	}
}

// apply rewrites the original's interval per the modification semantics.
func apply(orig, mod *appointment.Appointment, typ Type) error {
	modDur := mod.Duration()
	switch typ {
	case TypeExtension:
		return orig.SetPeriod(orig.StartTime, orig.EndTime.Add(modDur))
	case TypeShortened:
		newEnd := orig.EndTime.Add(-modDur)
		if floor := orig.StartTime.Add(minRemaining); newEnd.Before(floor) {
			newEnd = floor
		}
		return orig.SetPeriod(orig.StartTime, newEnd)
	case TypeEarlyStart:
		return orig.SetPeriod(mod.StartTime, orig.EndTime)
	case TypeLateStart:
		newStart := orig.StartTime.Add(modDur)
		if ceil := orig.EndTime.Add(-minRemaining); newStart.After(ceil) {
			newStart = ceil
		}
		if newStart.Before(orig.StartTime) {
			newStart = orig.StartTime
		}
		return orig.SetPeriod(newStart, orig.EndTime)
	default:
		return fmt.Errorf("not a modification type: %v", typ)
	}
}

// categoriesCompatible enforces the pairing constraint: when both records
// carry categories they must carry the same set.
func categoriesCompatible(a, b *appointment.Appointment) bool {
	if len(a.Categories) == 0 || len(b.Categories) == 0 {
		return true
	}
	if len(a.Categories) != len(b.Categories) {
		return false
	}
	as := append([]string(nil), a.Categories...)
	bs := append([]string(nil), b.Categories...)
	sort.Strings(as)
	sort.Strings(bs)
	for i := range as {
		if !strings.EqualFold(as[i], bs[i]) {
			return false
		}
	}
	return true
}

func intervalOverlap(a, b *appointment.Appointment) time.Duration {
	start := a.StartTime
	if b.StartTime.After(start) {
		start = b.StartTime
	}
	end := a.EndTime
	if b.EndTime.Before(end) {
		end = b.EndTime
	}
	if !end.After(start) {
		return 0
	}
	return end.Sub(start)
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
