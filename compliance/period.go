package compliance

// =============================================================================
// PAY PERIOD - the boundary an audit is computed for
// =============================================================================

// PayPeriod is an inclusive range of civil dates.
//
// Examples:
//   - Fortnight: 2025-03-03 .. 2025-03-16
//   - Calendar month: 2025-03-01 .. 2025-03-31
type PayPeriod struct {
	ID    PayPeriodID `json:"id"`
	Start Date        `json:"start"`
	End   Date        `json:"end"`
}

// Contains returns true if d is within [Start, End].
func (p PayPeriod) Contains(d Date) bool {
	return !d.Before(p.Start) && !d.After(p.End)
}

// Validate rejects periods that end before they start.
func (p PayPeriod) Validate() error {
	if p.ID == "" {
		return ErrInvalidPeriod
	}
	if p.End.Before(p.Start) {
		return ErrInvalidPeriod
	}
	return nil
}

// Days returns every date in the period.
func (p PayPeriod) Days() []Date {
	var days []Date
	for d := p.Start; !d.After(p.End); d = d.AddDays(1) {
		days = append(days, d)
	}
	return days
}

func (p PayPeriod) String() string {
	return string(p.ID) + " [" + p.Start.String() + ", " + p.End.String() + "]"
}

