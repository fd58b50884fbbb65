package task

import (
	"iter"
	"time"
)

// DayLayout formats the day keys of a calendar.
const DayLayout = "2006-01-02"

const secondsPerDay = 24 * 60 * 60

// Days yields every calendar day from start to end, both included, as DayLayout keys.
// Days are counted in the location of start; end is converted to it first.
// Nothing is yielded when end falls on a day before start.
func Days(start, end time.Time) iter.Seq[string] {
	first := startOfDay(start)
	last := startOfDay(end.In(start.Location()))
	return func(yield func(string) bool) {
		for d := first; !d.After(last); d = d.AddDate(0, 0, 1) {
			if !yield(d.Format(DayLayout)) {
				return
			}
		}
	}
}

// DayCount is the number of days Days would yield.
func DayCount(start, end time.Time) int {
	end = end.In(start.Location())
	// civil dates compared in UTC are immune to DST shifts
	y1, m1, d1 := start.Date()
	y2, m2, d2 := end.Date()
	from := time.Date(y1, m1, d1, 0, 0, 0, 0, time.UTC)
	to := time.Date(y2, m2, d2, 0, 0, 0, 0, time.UTC)
	if to.Before(from) {
		return 0
	}
	// Unix seconds, not Sub: a Duration saturates after ~292 years
	return int((to.Unix()-from.Unix())/secondsPerDay) + 1
}

// ParseDay parses a DayLayout key as midnight in loc.
func ParseDay(s string, loc *time.Location) (time.Time, error) {
	return time.ParseInLocation(DayLayout, s, loc)
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
