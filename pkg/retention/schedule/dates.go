// Package schedule derives the concrete transition dates of a retention
// process from its origin date and resolved rule snapshot. All computations
// are pure functions of their inputs so they stay independently testable and
// reproducible for audit replay.
package schedule

import (
	"fmt"
	"time"

	"mercator-hq/saturn/pkg/retention"
)

const (
	// DefaultLeadDays is the alert lead time applied when none is configured.
	DefaultLeadDays = 30

	// MinLeadDays and MaxLeadDays bound the configurable alert lead time.
	MinLeadDays = 1
	MaxLeadDays = 3650
)

// Dates are the computed transition dates for a retention process.
type Dates struct {
	// ManagementExpiry is origin + management years, calendar arithmetic.
	ManagementExpiry time.Time

	// CentralExpiry is ManagementExpiry + central years, or nil ("never")
	// when the disposition action is total conservation.
	CentralExpiry *time.Time

	// AlertLeadDate is ManagementExpiry minus the alert lead time.
	AlertLeadDate time.Time
}

// Compute derives the transition dates from the origin date, the rule
// snapshot, and the alert lead time in days. Year offsets use calendar-year
// arithmetic, not fixed 365-day increments.
func Compute(origin time.Time, rule retention.RuleSnapshot, leadDays int) (Dates, error) {
	if origin.IsZero() {
		return Dates{}, fmt.Errorf("origin date cannot be zero")
	}
	if leadDays < MinLeadDays || leadDays > MaxLeadDays {
		return Dates{}, fmt.Errorf("alert lead days %d outside [%d, %d]", leadDays, MinLeadDays, MaxLeadDays)
	}
	if rule.ManagementYears < 0 || rule.CentralYears < 0 {
		return Dates{}, fmt.Errorf("retention years cannot be negative (management=%d, central=%d)",
			rule.ManagementYears, rule.CentralYears)
	}

	d := Dates{
		ManagementExpiry: origin.AddDate(rule.ManagementYears, 0, 0),
	}
	d.AlertLeadDate = d.ManagementExpiry.AddDate(0, 0, -leadDays)

	if rule.Action != retention.ActionConservacionTotal {
		central := d.ManagementExpiry.AddDate(rule.CentralYears, 0, 0)
		d.CentralExpiry = &central
	}

	return d, nil
}

// Apply writes the computed dates onto a process.
func (d Dates) Apply(p *retention.RetentionProcess) {
	p.ManagementExpiry = d.ManagementExpiry
	p.CentralExpiry = d.CentralExpiry
	p.AlertLeadDate = d.AlertLeadDate
}
