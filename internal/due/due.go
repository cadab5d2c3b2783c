// Package due converts date-only values into deadline evaluations.
//
// A date-only value is a calendar date with no time component, canonically
// "YYYY-MM-DD" in the local calendar. The corresponding due instant is the
// end of that calendar day (23:59:59.999 local time), not its start.
package due

import (
	"math"
	"time"
)

// DateLayout is the canonical wire format for date-only values.
const DateLayout = "2006-01-02"

// dueSoonWindow is how long before the due instant an item counts as
// "due soon".
const dueSoonWindow = 24 * time.Hour

// Info is the derived deadline evaluation for a single item.
// It is computed on demand and never persisted.
type Info struct {
	// Overdue is true once the due instant has passed.
	Overdue bool

	// DueSoon is true only in the window (0h, 24h] before the due
	// instant. It is mutually exclusive with Overdue.
	DueSoon bool

	// HoursLeft is the number of whole hours until the due instant,
	// rounded up. It is 0 when overdue and nil when there is no
	// deadline or the item is completed.
	HoursLeft *int
}

// datetimeLayouts are the accepted representations for stored due dates,
// tried in order. Older records mixed full ISO timestamps with bare
// date-only strings depending on which code path wrote them.
var datetimeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	DateLayout,
}

// Normalize coerces an arbitrary stored date representation to a canonical
// date-only string in the local calendar. Unparseable values and nil
// normalize to nil rather than surfacing a parse error.
func Normalize(value *string) *string {
	return NormalizeIn(value, time.Local)
}

// NormalizeIn is Normalize anchored to an explicit location. The calendar
// date is taken from the parsed instant's year/month/day in loc, not from
// its UTC fields, which would be off by one day for users west of UTC.
func NormalizeIn(value *string, loc *time.Location) *string {
	if value == nil || *value == "" {
		return nil
	}
	for _, layout := range datetimeLayouts {
		t, err := time.Parse(layout, *value)
		if err != nil {
			continue
		}
		if layout == DateLayout {
			// Already date-only; keep the named day as-is.
			d := t.Format(DateLayout)
			return &d
		}
		d := t.In(loc).Format(DateLayout)
		return &d
	}
	return nil
}

// Instant returns the due instant for a date-only value: the last
// millisecond of that calendar day in loc. The date must be in canonical
// "YYYY-MM-DD" form; anything else yields the zero time.
func Instant(date string, loc *time.Location) time.Time {
	t, err := time.ParseInLocation(DateLayout, date, loc)
	if err != nil {
		return time.Time{}
	}
	// Wall-clock end of day, not midnight plus 24h: a DST transition
	// makes those differ.
	return time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, 999_000_000, loc)
}

// Evaluate computes the deadline state of an item at the given moment.
// A completed item is never overdue or due soon, regardless of its date.
// The day boundary is resolved in now's location.
func Evaluate(date *string, completed bool, now time.Time) Info {
	if date == nil || completed {
		return Info{}
	}
	instant := Instant(*date, now.Location())
	if instant.IsZero() {
		return Info{}
	}
	delta := instant.Sub(now)
	if delta <= 0 {
		zero := 0
		return Info{Overdue: true, HoursLeft: &zero}
	}
	hours := int(math.Ceil(delta.Hours()))
	return Info{
		DueSoon:   delta <= dueSoonWindow,
		HoursLeft: &hours,
	}
}
