package domain

import "time"

// CycleMode tells how a usage window was anchored.
type CycleMode string

const (
	CycleModeCalendar    CycleMode = "calendar"
	CycleModeAnniversary CycleMode = "anniversary"
)

// Cycle is the usage-counting window a user is currently in.
// Start is inclusive; End is the next cycle boundary.
type Cycle struct {
	Mode  CycleMode `json:"mode"`
	Start time.Time `json:"cycle_start"`
	End   time.Time `json:"cycle_end"`
}

// ResolveCycle returns the current cycle for now.
//
// Without a subscription start date the cycle is the calendar month of now.
// Otherwise it is start + k calendar months, k being the largest count that
// does not pass now. A start date in the future is returned as-is.
// All values are in UTC.
func ResolveCycle(now time.Time, subscriptionStart *time.Time) Cycle {
	now = now.UTC()

	if subscriptionStart == nil {
		start := MonthStart(now)
		return Cycle{
			Mode:  CycleModeCalendar,
			Start: start,
			End:   start.AddDate(0, 1, 0),
		}
	}

	anchor := subscriptionStart.UTC()
	if anchor.After(now) {
		return Cycle{
			Mode:  CycleModeAnniversary,
			Start: anchor,
			End:   AddMonths(anchor, 1),
		}
	}

	k := (now.Year()-anchor.Year())*12 + int(now.Month()) - int(anchor.Month())
	for k > 0 && AddMonths(anchor, k).After(now) {
		k--
	}

	return Cycle{
		Mode:  CycleModeAnniversary,
		Start: AddMonths(anchor, k),
		End:   AddMonths(anchor, k+1),
	}
}

// CycleStart returns the start of the current usage window.
func CycleStart(now time.Time, subscriptionStart *time.Time) time.Time {
	return ResolveCycle(now, subscriptionStart).Start
}

// MonthStart returns the first instant of t's month in UTC.
func MonthStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// AddMonths adds n calendar months to t, clamping the day to the last day of
// the target month (Jan 31 + 1 month = Feb 28 or 29).
func AddMonths(t time.Time, n int) time.Time {
	total := int(t.Month()) - 1 + n
	year := t.Year() + total/12
	month := total % 12
	if month < 0 {
		month += 12
		year--
	}

	day := t.Day()
	if last := daysIn(year, time.Month(month+1)); day > last {
		day = last
	}

	return time.Date(year, time.Month(month+1), day,
		t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
