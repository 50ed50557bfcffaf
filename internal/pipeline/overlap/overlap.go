package overlap

import (
	"fmt"
	"sort"
	"time"

	"github.com/Auriora/admin-assistant-sub001/internal/domain/appointment"
	"github.com/Auriora/admin-assistant-sub001/internal/domain/errors"
)

// MergeDuplicates collapses exact duplicates keyed on (subject, start, end).
// The first occurrence wins and input order is otherwise preserved.
func MergeDuplicates(appts []*appointment.Appointment) []*appointment.Appointment {
	seen := make(map[string]struct{}, len(appts))
	out := make([]*appointment.Appointment, 0, len(appts))
	for _, a := range appts {
		key := a.DuplicateKey()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, a)
	}
	return out
}

// DetectOverlaps sorts by start and sweeps the timeline, grouping every
// appointment that starts strictly before the running group's latest end.
// Boundary-touching intervals do not overlap. Only groups of two or more
// are returned.
func DetectOverlaps(appts []*appointment.Appointment) ([][]*appointment.Appointment, error) {
	for _, a := range appts {
		if a.StartTime.IsZero() || a.EndTime.IsZero() {
			return nil, errors.NewValidationError("MISSING_TIME",
				fmt.Sprintf("appointment %q has no usable start or end", a.Subject))
		}
	}
	if len(appts) < 2 {
		return nil, nil
	}

	sorted := make([]*appointment.Appointment, len(appts))
	copy(sorted, appts)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].StartTime.Before(sorted[j].StartTime)
	})

	var groups [][]*appointment.Appointment
	group := []*appointment.Appointment{sorted[0]}
	maxEnd := sorted[0].EndTime

	for _, a := range sorted[1:] {
		if a.StartTime.Before(maxEnd) {
			group = append(group, a)
			if a.EndTime.After(maxEnd) {
				maxEnd = a.EndTime
			}
			continue
		}
		if len(group) >= 2 {
			groups = append(groups, group)
		}
		group = []*appointment.Appointment{a}
		maxEnd = a.EndTime
	}
	if len(group) >= 2 {
		groups = append(groups, group)
	}
	return groups, nil
}

// GroupMetadata augments one overlap group with parallel attribute lists
// for display layers.
type GroupMetadata struct {
	Appointments []*appointment.Appointment `json:"-"`
	Subjects     []string                   `json:"subjects"`
	ShowAs       []string                   `json:"show_as"`
	Importance   []string                   `json:"importance"`
	Sensitivity  []string                   `json:"sensitivity"`
	Starts       []time.Time                `json:"starts"`
	Ends         []time.Time                `json:"ends"`
	Size         int                        `json:"size"`
}

// DetectOverlapsWithMetadata runs DetectOverlaps and decorates each group.
func DetectOverlapsWithMetadata(appts []*appointment.Appointment) ([]GroupMetadata, error) {
	groups, err := DetectOverlaps(appts)
	if err != nil {
		return nil, err
	}
	out := make([]GroupMetadata, 0, len(groups))
	for _, g := range groups {
		md := GroupMetadata{
			Appointments: g,
			Subjects:     make([]string, 0, len(g)),
			ShowAs:       make([]string, 0, len(g)),
			Importance:   make([]string, 0, len(g)),
			Sensitivity:  make([]string, 0, len(g)),
			Starts:       make([]time.Time, 0, len(g)),
			Ends:         make([]time.Time, 0, len(g)),
			Size:         len(g),
		}
		for _, a := range g {
			md.Subjects = append(md.Subjects, a.Subject)
			md.ShowAs = append(md.ShowAs, a.ShowAs.String())
			md.Importance = append(md.Importance, a.Importance.String())
			md.Sensitivity = append(md.Sensitivity, a.Sensitivity.String())
			md.Starts = append(md.Starts, a.StartTime)
			md.Ends = append(md.Ends, a.EndTime)
		}
		out = append(out, md)
	}
	return out, nil
}
