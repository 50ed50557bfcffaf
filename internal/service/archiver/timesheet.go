package archiver

import (
	"regexp"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Auriora/admin-assistant-sub001/internal/domain/appointment"
	"github.com/Auriora/admin-assistant-sub001/internal/domain/category"
)

// travelPattern matches subjects that describe getting to or from work.
// Timesheet runs only keep these when travel inclusion is requested.
var travelPattern = regexp.MustCompile(`(?i)\b(travel|driving|drive|flight|flying|commute|commuting|transit|transport|journey|trip|departure|arrival|airport|station|highway|route)\b`)

// IsTravelSubject reports whether a subject line describes travel.
func IsTravelSubject(subject string) bool {
	return travelPattern.MatchString(subject)
}

// filterTimesheet keeps the appointments a timesheet cares about: billable
// and non-billable client work, plus travel when requested. Free slots,
// personal entries, online-billed and miscategorized work all drop out.
func filterTimesheet(appts []*appointment.Appointment, includeTravel bool) ([]*appointment.Appointment, *TimesheetStats) {
	stats := &TimesheetStats{
		TotalExamined:    len(appts),
		BillableHours:    decimal.Zero,
		NonBillableHours: decimal.Zero,
		TravelHours:      decimal.Zero,
	}
	kept := make([]*appointment.Appointment, 0, len(appts))
	for _, a := range appts {
		if a.ShowAs == appointment.ShowAsFree {
			continue
		}
		info := category.Extract(a)
		switch {
		case info.IsValid && (info.BillingType == category.BillingTypeBillable || info.BillingType == category.BillingTypeNonBillable):
			kept = append(kept, a)
			if info.BillingType == category.BillingTypeBillable {
				stats.BillableHours = stats.BillableHours.Add(durationHours(a.Duration()))
			} else {
				stats.NonBillableHours = stats.NonBillableHours.Add(durationHours(a.Duration()))
			}
		case includeTravel && IsTravelSubject(a.Subject):
			kept = append(kept, a)
			stats.TravelHours = stats.TravelHours.Add(durationHours(a.Duration()))
		}
	}
	stats.Included = len(kept)
	stats.Excluded = stats.TotalExamined - stats.Included
	if stats.TotalExamined > 0 {
		stats.ExclusionRate = float64(stats.Excluded) / float64(stats.TotalExamined)
	}
	return kept, stats
}

// durationHours converts a duration to decimal hours with minute precision.
func durationHours(d time.Duration) decimal.Decimal {
	minutes := int64(d / time.Minute)
	return decimal.NewFromInt(minutes).Div(decimal.NewFromInt(60))
}
