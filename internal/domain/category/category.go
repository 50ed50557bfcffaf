package category

import (
	"fmt"
	"strings"

	"github.com/Auriora/admin-assistant-sub001/internal/domain/appointment"
)

// BillingType classifies how an appointment is charged.
type BillingType string

const (
	BillingTypeBillable    BillingType = "billable"
	BillingTypeNonBillable BillingType = "non-billable"
	BillingTypeOnline      BillingType = "online"
)

const separator = " - "

// Parsed is the outcome of parsing a single category string.
type Parsed struct {
	Customer    string      `json:"customer"`
	BillingType BillingType `json:"billing_type"`
	Valid       bool        `json:"valid"`
	Raw         string      `json:"raw"`
}

// Parse splits a category of the form "<customer> - <billing type>" in either
// token order. Unparseable input returns Valid=false with empty fields.
//
// Special forms: "admin - non-billable" and "break - non-billable" are
// internal work categories, and the single token "online" maps to customer
// "Online" with its own billing type.
func Parse(raw string) Parsed {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return Parsed{Raw: raw}
	}

	switch strings.ToLower(trimmed) {
	case "admin - non-billable":
		return Parsed{Customer: "Admin", BillingType: BillingTypeNonBillable, Valid: true, Raw: raw}
	case "break - non-billable":
		return Parsed{Customer: "Break", BillingType: BillingTypeNonBillable, Valid: true, Raw: raw}
	case "online":
		return Parsed{Customer: "Online", BillingType: BillingTypeOnline, Valid: true, Raw: raw}
	}

	parts := strings.Split(trimmed, separator)
	if len(parts) != 2 {
		return Parsed{Raw: raw}
	}

	first := strings.TrimSpace(parts[0])
	second := strings.TrimSpace(parts[1])

	// The billing token identifies itself; whatever remains is the customer.
	if bt, ok := parseBillingToken(second); ok {
		if first == "" {
			return Parsed{Raw: raw}
		}
		return Parsed{Customer: first, BillingType: bt, Valid: true, Raw: raw}
	}
	if bt, ok := parseBillingToken(first); ok {
		if second == "" {
			return Parsed{Raw: raw}
		}
		return Parsed{Customer: second, BillingType: bt, Valid: true, Raw: raw}
	}
	return Parsed{Raw: raw}
}

func parseBillingToken(tok string) (BillingType, bool) {
	switch strings.ToLower(tok) {
	case "billable":
		return BillingTypeBillable, true
	case "non-billable":
		return BillingTypeNonBillable, true
	default:
		return "", false
	}
}

// Info summarizes the category state of one appointment.
type Info struct {
	Customer    string      `json:"customer,omitempty"`
	BillingType BillingType `json:"billing_type,omitempty"`
	IsValid     bool        `json:"is_valid"`
	IsPersonal  bool        `json:"is_personal"`
	Issues      []string    `json:"issues,omitempty"`
}

// Extract classifies an appointment from its category list. An appointment
// with no categories at all is personal; one whose categories all fail to
// parse is misconfigured work, not personal.
func Extract(appt *appointment.Appointment) Info {
	if len(appt.Categories) == 0 {
		return Info{IsPersonal: true}
	}

	var info Info
	var valid []Parsed
	for _, raw := range appt.Categories {
		p := Parse(raw)
		if p.Valid {
			valid = append(valid, p)
			continue
		}
		info.Issues = append(info.Issues,
			fmt.Sprintf("Invalid category format %q on appointment %q", raw, appt.Subject))
	}

	if len(valid) == 0 {
		info.Issues = append(info.Issues,
			fmt.Sprintf("No valid category on appointment %q", appt.Subject))
		return info
	}

	info.Customer = valid[0].Customer
	info.BillingType = valid[0].BillingType
	info.IsValid = true
	if len(valid) > 1 {
		info.Issues = append(info.Issues,
			fmt.Sprintf("Multiple valid categories on appointment %q, using %q", appt.Subject, valid[0].Raw))
	}
	return info
}

// ShouldMarkPrivate reports whether the privacy pass should flip the
// appointment's sensitivity. True exactly for personal appointments.
func ShouldMarkPrivate(appt *appointment.Appointment) bool {
	return len(appt.Categories) == 0
}

// Stats aggregates category outcomes across one archival run.
type Stats struct {
	ValidCategories      int            `json:"valid_categories"`
	InvalidCategories    int            `json:"invalid_categories"`
	PersonalAppointments int            `json:"personal_appointments"`
	Customers            []string       `json:"customers"`
	BillingTypes         map[string]int `json:"billing_types"`
	Issues               []string       `json:"issues"`
}

func NewStats() *Stats {
	return &Stats{
		Customers:    []string{},
		BillingTypes: map[string]int{},
		Issues:       []string{},
	}
}

// Observe folds one appointment's classification into the totals. Customers
// keep first-appearance order.
func (s *Stats) Observe(info Info) {
	switch {
	case info.IsPersonal:
		s.PersonalAppointments++
	case info.IsValid:
		s.ValidCategories++
		if !containsString(s.Customers, info.Customer) {
			s.Customers = append(s.Customers, info.Customer)
		}
		s.BillingTypes[string(info.BillingType)]++
	default:
		s.InvalidCategories++
	}
	s.Issues = append(s.Issues, info.Issues...)
}

func containsString(xs []string, x string) bool {
	for _, v := range xs {
		if v == x {
			return true
		}
	}
	return false
}
