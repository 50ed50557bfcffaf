package resolution

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/Auriora/admin-assistant-sub001/internal/domain/appointment"
)

// Outcome partitions one overlap group. Every member of the input group
// lands in exactly one of Resolved, Conflicts or Filtered.
type Outcome struct {
	Resolved  []*appointment.Appointment `json:"-"`
	Conflicts []*appointment.Appointment `json:"-"`
	Filtered  []*appointment.Appointment `json:"-"`
	Log       []string                   `json:"log"`
}

// Stats aggregates engine outcomes across one run, shaped for the archival
// result's resolution_stats block.
type Stats struct {
	TotalOverlaps        int `json:"total_overlaps"`
	AutoResolved         int `json:"auto_resolved"`
	RemainingConflicts   int `json:"remaining_conflicts"`
	FilteredAppointments int `json:"filtered_appointments"`
}

// RunResult is the aggregate of resolving every detected group. Conflicts
// keep their group structure so each residue group can become one set of
// manual-resolution tasks.
type RunResult struct {
	Resolved  []*appointment.Appointment
	Conflicts [][]*appointment.Appointment
	Filtered  []*appointment.Appointment
	Log       []string
	Stats     Stats
}

// Engine applies the three-stage automatic overlap policy: free filter,
// tentative versus confirmed, then importance priority.
type Engine struct {
	logger *zap.Logger
}

func NewEngine(logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{logger: logger}
}

// ResolveAll resolves each group independently and folds the outcomes.
func (e *Engine) ResolveAll(groups [][]*appointment.Appointment) RunResult {
	res := RunResult{Stats: Stats{TotalOverlaps: len(groups)}}
	for i, g := range groups {
		out := e.ResolveGroup(g)
		res.Resolved = append(res.Resolved, out.Resolved...)
		res.Filtered = append(res.Filtered, out.Filtered...)
		if len(out.Conflicts) > 0 {
			res.Conflicts = append(res.Conflicts, out.Conflicts)
			res.Stats.RemainingConflicts++
		} else {
			res.Stats.AutoResolved++
		}
		res.Stats.FilteredAppointments += len(out.Filtered)
		for _, line := range out.Log {
			res.Log = append(res.Log, fmt.Sprintf("group %d: %s", i+1, line))
		}
	}
	return res
}

// ResolveGroup runs the staged policy over one overlap group.
func (e *Engine) ResolveGroup(group []*appointment.Appointment) Outcome {
	var out Outcome

	// Stage 1: drop free appointments.
	working := make([]*appointment.Appointment, 0, len(group))
	var freed []*appointment.Appointment
	for _, a := range group {
		if a.ShowAs == appointment.ShowAsFree {
			freed = append(freed, a)
			continue
		}
		working = append(working, a)
	}
	out.Filtered = append(out.Filtered, freed...)
	out.Log = append(out.Log, fmt.Sprintf("free filter: removed %d of %d (%s)",
		len(freed), len(group), subjects(freed)))
	if len(working) <= 1 {
		out.Resolved = working
		out.Log = append(out.Log, fmt.Sprintf("resolved after free filter: %s", subjects(working)))
		return out
	}

	// Stage 2: a confirmed appointment displaces every tentative one.
	var tentative, confirmed []*appointment.Appointment
	for _, a := range working {
		if a.ShowAs == appointment.ShowAsTentative {
			tentative = append(tentative, a)
		} else {
			confirmed = append(confirmed, a)
		}
	}
	if len(confirmed) > 0 && len(tentative) > 0 {
		out.Filtered = append(out.Filtered, tentative...)
		out.Log = append(out.Log, fmt.Sprintf("tentative filter: removed %d tentative (%s), kept %d confirmed",
			len(tentative), subjects(tentative), len(confirmed)))
		working = confirmed
		if len(working) == 1 {
			out.Resolved = working
			out.Log = append(out.Log, fmt.Sprintf("resolved after tentative filter: %s", subjects(working)))
			return out
		}
	} else {
		out.Log = append(out.Log, "tentative filter: no confirmed/tentative split")
	}

	// Stage 3: importance priority, unique maximum wins.
	maxScore := 0
	for _, a := range working {
		if s := priorityScore(a); s > maxScore {
			maxScore = s
		}
	}
	var winners, losers []*appointment.Appointment
	for _, a := range working {
		if priorityScore(a) == maxScore {
			winners = append(winners, a)
		} else {
			losers = append(losers, a)
		}
	}
	out.Filtered = append(out.Filtered, losers...)

	if len(winners) == 1 {
		out.Resolved = winners
		out.Log = append(out.Log, fmt.Sprintf("priority filter: %s wins at priority %d, removed %d (%s)",
			winners[0].Subject, maxScore, len(losers), subjects(losers)))
		return out
	}

	out.Conflicts = winners
	out.Log = append(out.Log, fmt.Sprintf("priority tie at %d between %s, manual resolution required",
		maxScore, subjects(winners)))
	e.logger.Debug("overlap group escalated to manual resolution",
		zap.Int("group_size", len(group)),
		zap.Int("tied", len(winners)))
	return out
}

// priorityScore maps importance to the staged policy's ranking. Unmarked
// appointments rank as normal.
func priorityScore(a *appointment.Appointment) int {
	switch a.Importance {
	case appointment.ImportanceHigh:
		return 3
	case appointment.ImportanceLow:
		return 1
	default:
		return 2
	}
}

func subjects(appts []*appointment.Appointment) string {
	if len(appts) == 0 {
		return "none"
	}
	parts := make([]string, len(appts))
	for i, a := range appts {
		parts[i] = a.Subject
	}
	return strings.Join(parts, ", ")
}
