package compliance

import (
	"fmt"
	"time"
)

// =============================================================================
// DATE - civil date without a clock component
// =============================================================================

type Date struct {
	Year  int
	Month time.Month
	Day   int
}

func NewDate(year int, month time.Month, day int) Date {
	return DateOf(time.Date(year, month, day, 0, 0, 0, 0, time.UTC))
}

// DateOf returns the civil date of t in t's own location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// ParseDate parses "2006-01-02".
func ParseDate(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return DateOf(t), nil
}

// In returns midnight of the date in loc.
func (d Date) In(loc *time.Location) time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, loc)
}

func (d Date) Before(o Date) bool        { return d.In(time.UTC).Before(o.In(time.UTC)) }
func (d Date) After(o Date) bool         { return d.In(time.UTC).After(o.In(time.UTC)) }
func (d Date) AddDays(n int) Date        { return DateOf(d.In(time.UTC).AddDate(0, 0, n)) }
func (d Date) Weekday() time.Weekday     { return d.In(time.UTC).Weekday() }
func (d Date) IsZero() bool              { return d.Year == 0 && d.Month == 0 && d.Day == 0 }
func (d Date) IsWeekend() bool           { wd := d.Weekday(); return wd == time.Saturday || wd == time.Sunday }
func (d Date) String() string            { return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Day) }
func (d Date) BeforeOrEqual(o Date) bool { return !d.After(o) }

func (d Date) MarshalText() ([]byte, error) { return []byte(d.String()), nil }

func (d *Date) UnmarshalText(b []byte) error {
	parsed, err := ParseDate(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// =============================================================================
// CLOCK TIME - minutes since midnight, used for window boundaries
// =============================================================================

// ClockTime is a time of day in minutes since midnight. 1440 means end of day.
type ClockTime int

const EndOfDay ClockTime = 24 * 60

// ParseClock parses "HH:MM". "24:00" is accepted as end of day.
func ParseClock(s string) (ClockTime, error) {
	var h, m int
	if _, err := fmt.Sscanf(s, "%d:%d", &h, &m); err != nil {
		return 0, fmt.Errorf("invalid clock time %q: %w", s, err)
	}
	if h < 0 || h > 24 || m < 0 || m > 59 || (h == 24 && m != 0) {
		return 0, fmt.Errorf("invalid clock time %q", s)
	}
	return ClockTime(h*60 + m), nil
}

func (c ClockTime) String() string { return fmt.Sprintf("%02d:%02d", int(c)/60, int(c)%60) }

// On returns the instant the wall clock in loc reads c on the given day.
// EndOfDay is midnight at the start of the next day. A clock time skipped by
// a daylight saving change lands after the gap.
func (c ClockTime) On(d Date, loc *time.Location) time.Time {
	return time.Date(d.Year, d.Month, d.Day, int(c)/60, int(c)%60, 0, 0, loc)
}

// clockOf returns the clock time of t in its own location.
func clockOf(t time.Time) ClockTime {
	return ClockTime(t.Hour()*60 + t.Minute())
}

// =============================================================================
// HOLIDAY CALENDAR
// =============================================================================

// Holiday is a public holiday that changes the day type of work performed on it.
type Holiday struct {
	ID     string `json:"id,omitempty"`
	Region string `json:"region,omitempty"` // empty = applies everywhere
	Date   Date   `json:"date"`
	Name   string `json:"name"`
}

// HolidayCalendar answers public-holiday lookups.
type HolidayCalendar interface {
	IsHoliday(date Date) bool
}

// NoHolidays is a calendar without public holidays.
type NoHolidays struct{}

func (NoHolidays) IsHoliday(Date) bool { return false }

// HolidaySet is an in-memory calendar keyed by date.
type HolidaySet map[Date]Holiday

// NewHolidaySet builds a calendar from a holiday list.
func NewHolidaySet(holidays ...Holiday) HolidaySet {
	s := make(HolidaySet, len(holidays))
	for _, h := range holidays {
		s[h.Date] = h
	}
	return s
}

func (s HolidaySet) IsHoliday(d Date) bool {
	_, ok := s[d]
	return ok
}

// DayTypeOf classifies a date. Public holidays override weekends.
func DayTypeOf(d Date, cal HolidayCalendar) DayType {
	if cal != nil && cal.IsHoliday(d) {
		return DayPublicHoliday
	}
	switch d.Weekday() {
	case time.Saturday:
		return DaySaturday
	case time.Sunday:
		return DaySunday
	default:
		return DayWeekday
	}
}

// AddBusinessDays moves forward n working days from t, skipping weekends and
// calendar holidays. The clock time of t is preserved.
func AddBusinessDays(t time.Time, n int, cal HolidayCalendar) time.Time {
	out := t
	for added := 0; added < n; {
		out = out.AddDate(0, 0, 1)
		d := DateOf(out)
		if d.IsWeekend() || (cal != nil && cal.IsHoliday(d)) {
			continue
		}
		added++
	}
	return out
}

// BusinessDaysBetween counts working days in (from, to].
func BusinessDaysBetween(from, to time.Time, cal HolidayCalendar) int {
	n := 0
	for d := DateOf(from).AddDays(1); d.BeforeOrEqual(DateOf(to)); d = d.AddDays(1) {
		if d.IsWeekend() || (cal != nil && cal.IsHoliday(d)) {
			continue
		}
		n++
	}
	return n
}
