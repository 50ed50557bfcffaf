package resolution_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Auriora/admin-assistant-sub001/internal/domain/appointment"
	"github.com/Auriora/admin-assistant-sub001/internal/pipeline/resolution"
	"github.com/Auriora/admin-assistant-sub001/internal/testutil/fixtures"
)

func build(t *testing.T, subject string, showAs appointment.ShowAs, imp appointment.Importance) *appointment.Appointment {
	t.Helper()
	return fixtures.NewAppointmentBuilder(t).
		WithSubject(subject).
		WithShowAs(showAs).
		WithImportance(imp).
		Build()
}

func TestResolveGroup_FreeFilter(t *testing.T) {
	e := resolution.NewEngine(nil)

	busy := build(t, "Busy", appointment.ShowAsBusy, appointment.ImportanceNormal)
	free := build(t, "Focus", appointment.ShowAsFree, appointment.ImportanceNormal)

	out := e.ResolveGroup([]*appointment.Appointment{busy, free})

	assert.Equal(t, []*appointment.Appointment{busy}, out.Resolved)
	assert.Equal(t, []*appointment.Appointment{free}, out.Filtered)
	assert.Empty(t, out.Conflicts)
	require.NotEmpty(t, out.Log)
	assert.Contains(t, out.Log[0], "free filter")
}

func TestResolveGroup_AllFree(t *testing.T) {
	e := resolution.NewEngine(nil)

	a := build(t, "Hold A", appointment.ShowAsFree, appointment.ImportanceNormal)
	b := build(t, "Hold B", appointment.ShowAsFree, appointment.ImportanceNormal)

	out := e.ResolveGroup([]*appointment.Appointment{a, b})

	assert.Empty(t, out.Resolved)
	assert.Empty(t, out.Conflicts)
	assert.Len(t, out.Filtered, 2)
}

func TestResolveGroup_TentativeVersusConfirmed(t *testing.T) {
	e := resolution.NewEngine(nil)

	confirmed := build(t, "Confirmed", appointment.ShowAsBusy, appointment.ImportanceNormal)
	tentA := build(t, "Maybe A", appointment.ShowAsTentative, appointment.ImportanceNormal)
	tentB := build(t, "Maybe B", appointment.ShowAsTentative, appointment.ImportanceHigh)

	out := e.ResolveGroup([]*appointment.Appointment{tentA, confirmed, tentB})

	assert.Equal(t, []*appointment.Appointment{confirmed}, out.Resolved)
	assert.ElementsMatch(t, []*appointment.Appointment{tentA, tentB}, out.Filtered)
	assert.Empty(t, out.Conflicts)
}

func TestResolveGroup_AllTentativeFallsThroughToPriority(t *testing.T) {
	e := resolution.NewEngine(nil)

	low := build(t, "Maybe low", appointment.ShowAsTentative, appointment.ImportanceLow)
	high := build(t, "Maybe high", appointment.ShowAsTentative, appointment.ImportanceHigh)

	out := e.ResolveGroup([]*appointment.Appointment{low, high})

	assert.Equal(t, []*appointment.Appointment{high}, out.Resolved)
	assert.Equal(t, []*appointment.Appointment{low}, out.Filtered)
}

func TestResolveGroup_PriorityWinner(t *testing.T) {
	e := resolution.NewEngine(nil)

	normal := build(t, "A", appointment.ShowAsBusy, appointment.ImportanceNormal)
	high := build(t, "B", appointment.ShowAsBusy, appointment.ImportanceHigh)

	out := e.ResolveGroup([]*appointment.Appointment{normal, high})

	assert.Equal(t, []*appointment.Appointment{high}, out.Resolved)
	assert.Equal(t, []*appointment.Appointment{normal}, out.Filtered)
	assert.Empty(t, out.Conflicts)
}

func TestResolveGroup_PriorityTie(t *testing.T) {
	e := resolution.NewEngine(nil)

	a := build(t, "A", appointment.ShowAsBusy, appointment.ImportanceHigh)
	b := build(t, "B", appointment.ShowAsBusy, appointment.ImportanceHigh)
	low := build(t, "C", appointment.ShowAsBusy, appointment.ImportanceLow)

	out := e.ResolveGroup([]*appointment.Appointment{a, b, low})

	assert.Empty(t, out.Resolved)
	assert.ElementsMatch(t, []*appointment.Appointment{a, b}, out.Conflicts)
	assert.Equal(t, []*appointment.Appointment{low}, out.Filtered)

	joined := strings.Join(out.Log, "\n")
	assert.Contains(t, joined, "priority tie")
	assert.Contains(t, joined, "manual resolution required")
}

func TestResolveGroup_Partition(t *testing.T) {
	e := resolution.NewEngine(nil)

	group := []*appointment.Appointment{
		build(t, "A", appointment.ShowAsFree, appointment.ImportanceNormal),
		build(t, "B", appointment.ShowAsTentative, appointment.ImportanceNormal),
		build(t, "C", appointment.ShowAsBusy, appointment.ImportanceHigh),
		build(t, "D", appointment.ShowAsBusy, appointment.ImportanceHigh),
		build(t, "E", appointment.ShowAsBusy, appointment.ImportanceLow),
	}

	out := e.ResolveGroup(group)

	counts := map[*appointment.Appointment]int{}
	for _, a := range out.Resolved {
		counts[a]++
	}
	for _, a := range out.Conflicts {
		counts[a]++
	}
	for _, a := range out.Filtered {
		counts[a]++
	}

	require.Len(t, counts, len(group), "no element lost")
	for a, n := range counts {
		assert.Equal(t, 1, n, "%s appears exactly once", a.Subject)
	}
}

func TestResolveAll_Stats(t *testing.T) {
	e := resolution.NewEngine(nil)

	resolvable := []*appointment.Appointment{
		build(t, "A", appointment.ShowAsBusy, appointment.ImportanceNormal),
		build(t, "B", appointment.ShowAsBusy, appointment.ImportanceHigh),
	}
	tied := []*appointment.Appointment{
		build(t, "C", appointment.ShowAsBusy, appointment.ImportanceNormal),
		build(t, "D", appointment.ShowAsBusy, appointment.ImportanceNormal),
	}

	res := e.ResolveAll([][]*appointment.Appointment{resolvable, tied})

	assert.Equal(t, 2, res.Stats.TotalOverlaps)
	assert.Equal(t, 1, res.Stats.AutoResolved)
	assert.Equal(t, 1, res.Stats.RemainingConflicts)
	assert.Equal(t, 1, res.Stats.FilteredAppointments)

	require.Len(t, res.Conflicts, 1)
	assert.Len(t, res.Conflicts[0], 2)
	require.Len(t, res.Resolved, 1)
	assert.Equal(t, "B", res.Resolved[0].Subject)

	for _, line := range res.Log {
		assert.Regexp(t, `^group \d+: `, line)
	}
}
