package task

import (
	"sort"
)

// DayBuckets maps a DayLayout key to the tasks active on that day.
type DayBuckets map[string][]Task

// Bucket places every task under each day of its range. Within a day, incomplete tasks come
// first; the input order is kept otherwise. Tasks ending before they start appear nowhere.
func Bucket(tasks []Task) DayBuckets {
	buckets := make(DayBuckets)
	for _, t := range tasks {
		for day := range Days(t.StartDate, t.EndDate) {
			buckets[day] = append(buckets[day], t)
		}
	}
	for _, dayTasks := range buckets {
		sort.SliceStable(dayTasks, func(i, j int) bool {
			return !dayTasks[i].Completed && dayTasks[j].Completed
		})
	}
	return buckets
}

// Days returns the keys of b in chronological order.
func (b DayBuckets) Days() []string {
	days := make([]string, 0, len(b))
	for day := range b {
		days = append(days, day)
	}
	sort.Strings(days)
	return days
}

// Window keeps the days between from and to, both included. An empty bound is open.
func (b DayBuckets) Window(from, to string) DayBuckets {
	win := make(DayBuckets)
	for day, tasks := range b {
		// DayLayout keys sort chronologically
		if (from != "" && day < from) || (to != "" && day > to) {
			continue
		}
		win[day] = tasks
	}
	return win
}
