package daterange

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Auriora/admin-assistant-sub001/internal/domain/errors"
)

// A Wednesday afternoon, so relative words have unambiguous answers.
var wednesday = time.Date(2025, 6, 18, 15, 30, 0, 0, time.UTC)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestParse_RelativeExpressions(t *testing.T) {
	tests := []struct {
		expr  string
		start time.Time
		end   time.Time
	}{
		{"today", day(2025, 6, 18), day(2025, 6, 18)},
		{"Today", day(2025, 6, 18), day(2025, 6, 18)},
		{"yesterday", day(2025, 6, 17), day(2025, 6, 17)},
		{"last 7 days", day(2025, 6, 11), day(2025, 6, 17)},
		{"last 30 days", day(2025, 5, 19), day(2025, 6, 17)},
		{"last 1 day", day(2025, 6, 17), day(2025, 6, 17)},
		{"LAST WEEK", day(2025, 6, 9), day(2025, 6, 15)},
		{"last month", day(2025, 5, 1), day(2025, 5, 31)},
		{"  last   week  ", day(2025, 6, 9), day(2025, 6, 15)},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			got, err := Parse(tt.expr, wednesday)
			require.NoError(t, err)
			assert.True(t, got.Start.Equal(tt.start), "start: got %s want %s", got.Start, tt.start)
			assert.True(t, got.End.Equal(tt.end), "end: got %s want %s", got.End, tt.end)
		})
	}
}

func TestParse_LastWeekSpansPreviousMondayToSunday(t *testing.T) {
	// From a Monday, last week is still the full previous calendar week.
	monday := time.Date(2025, 6, 16, 8, 0, 0, 0, time.UTC)
	got, err := Parse("last week", monday)
	require.NoError(t, err)
	assert.Equal(t, day(2025, 6, 9), got.Start)
	assert.Equal(t, day(2025, 6, 15), got.End)

	// From a Sunday, the week in progress is not part of last week.
	sunday := time.Date(2025, 6, 22, 8, 0, 0, 0, time.UTC)
	got, err = Parse("last week", sunday)
	require.NoError(t, err)
	assert.Equal(t, day(2025, 6, 9), got.Start)
	assert.Equal(t, day(2025, 6, 15), got.End)
}

func TestParse_LastMonthAcrossYearBoundary(t *testing.T) {
	january := time.Date(2025, 1, 10, 12, 0, 0, 0, time.UTC)
	got, err := Parse("last month", january)
	require.NoError(t, err)
	assert.Equal(t, day(2024, 12, 1), got.Start)
	assert.Equal(t, day(2024, 12, 31), got.End)
}

func TestParse_DateLiterals(t *testing.T) {
	tests := []struct {
		expr string
		want time.Time
	}{
		{"2025-06-02", day(2025, 6, 2)},
		{"2-6-2025", day(2025, 6, 2)},
		{"02-06-2025", day(2025, 6, 2)},
		{"2-Jun-2025", day(2025, 6, 2)},
		{"2-June-2025", day(2025, 6, 2)},
		{"2-Jun", day(2025, 6, 2)},
		{"2/6/2025", day(2025, 6, 2)},
		{"2.6.2025", day(2025, 6, 2)},
		{"2 6 2025", day(2025, 6, 2)},
		{"2 June 2025", day(2025, 6, 2)},
		{"2 june", day(2025, 6, 2)},
		{"31 Dec", day(2025, 12, 31)},
		{"29-2-2024", day(2024, 2, 29)},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			got, err := Parse(tt.expr, wednesday)
			require.NoError(t, err)
			assert.True(t, got.Start.Equal(tt.want), "got %s want %s", got.Start, tt.want)
			assert.True(t, got.End.Equal(tt.want), "single date covers exactly one day")
		})
	}
}

func TestParse_ExplicitRanges(t *testing.T) {
	tests := []struct {
		expr  string
		start time.Time
		end   time.Time
	}{
		{"2025-06-01 to 2025-06-07", day(2025, 6, 1), day(2025, 6, 7)},
		{"1-6-2025 to 7-6-2025", day(2025, 6, 1), day(2025, 6, 7)},
		{"1 June - 7 June", day(2025, 6, 1), day(2025, 6, 7)},
		{"1/6/2025 - 7/6/2025", day(2025, 6, 1), day(2025, 6, 7)},
		{"30 Dec 2024 to 2 Jan 2025", day(2024, 12, 30), day(2025, 1, 2)},
		{"2-6-2025 to 2-6-2025", day(2025, 6, 2), day(2025, 6, 2)},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			got, err := Parse(tt.expr, wednesday)
			require.NoError(t, err)
			assert.True(t, got.Start.Equal(tt.start), "start: got %s want %s", got.Start, tt.start)
			assert.True(t, got.End.Equal(tt.end), "end: got %s want %s", got.End, tt.end)
		})
	}
}

func TestParse_Rejections(t *testing.T) {
	tests := []struct {
		name string
		expr string
	}{
		{"empty", ""},
		{"blank", "   "},
		{"gibberish", "sometime soon"},
		{"single component", "2025"},
		{"too many components", "1-2-3-4"},
		{"month out of range", "2-13-2025"},
		{"day out of range", "32-1-2025"},
		{"nonexistent day", "31-2-2025"},
		{"nonexistent leap day", "29-2-2025"},
		{"unknown month name", "2-Juno-2025"},
		{"bad year", "2-6-20255"},
		{"reversed range", "7-6-2025 to 1-6-2025"},
		{"zero days", "last 0 days"},
		{"half range", "2025-06-01 to"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.expr, wednesday)
			require.Error(t, err)
			assert.True(t, errors.IsType(err, errors.ErrorTypeValidation), "got %v", err)
			assert.Equal(t, "INVALID_DATE_RANGE", errors.GetCode(err))
		})
	}
}

func TestRange_String(t *testing.T) {
	assert.Equal(t, "2025-06-02", Range{Start: day(2025, 6, 2), End: day(2025, 6, 2)}.String())
	assert.Equal(t, "2025-06-01 to 2025-06-07", Range{Start: day(2025, 6, 1), End: day(2025, 6, 7)}.String())
}
