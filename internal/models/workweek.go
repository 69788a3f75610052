package models

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Weekday index, Monday first. Work bills run Monday through Sunday, so
// time.Weekday's Sunday-first ordering is not used.
type Weekday int

const (
	Monday Weekday = iota
	Tuesday
	Wednesday
	Thursday
	Friday
	Saturday
	Sunday
)

var weekdayNames = [...]string{"monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday"}

func (d Weekday) String() string {
	if d < Monday || d > Sunday {
		return fmt.Sprintf("weekday(%d)", int(d))
	}
	return weekdayNames[d]
}

// ParseWeekday accepts full names and three-letter prefixes, case-insensitive.
func ParseWeekday(s string) (Weekday, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for i, full := range weekdayNames {
		if name == full || (len(name) == 3 && strings.HasPrefix(full, name)) {
			return Weekday(i), nil
		}
	}
	return 0, fmt.Errorf("unknown day of week %q", s)
}

// WorkDay is one labor day inside a vendor's work week.
type WorkDay struct {
	Day      Weekday `json:"day"`
	Quantity float64 `json:"quantity"`
	Item     string  `json:"item"`
	Job      string  `json:"job,omitempty"`
	Cost     float64 `json:"cost"`
	Desc     string  `json:"description,omitempty"`
}

// WorkWeek holds a vendor's unposted labor days for one ISO week.
// At most one entry per weekday.
type WorkWeek struct {
	Vendor  string              `json:"vendor"`
	WeekRef string              `json:"week"` // ISO week, e.g. "2026-W35"
	Days    map[Weekday]WorkDay `json:"days"`
}

// SortedDays returns the entries ordered Monday through Sunday.
func (w *WorkWeek) SortedDays() []WorkDay {
	days := make([]WorkDay, 0, len(w.Days))
	for _, d := range w.Days {
		days = append(days, d)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Day < days[j].Day })
	return days
}

// Total is the sum of per-day costs.
func (w *WorkWeek) Total() float64 {
	var total float64
	for _, d := range w.Days {
		total += d.Cost * d.Quantity
	}
	return total
}

// ISOWeekRef formats t's ISO week as "YYYY-Www".
func ISOWeekRef(t time.Time) string {
	year, week := t.ISOWeek()
	return fmt.Sprintf("%d-W%02d", year, week)
}

// WeekStart returns the Monday of the ISO week containing t.
func WeekStart(t time.Time) time.Time {
	offset := (int(t.Weekday()) + 6) % 7
	day := t.AddDate(0, 0, -offset)
	return time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, t.Location())
}

// ParseWeekRef parses "YYYY-Www" back into the Monday of that week.
func ParseWeekRef(ref string) (time.Time, error) {
	var year, week int
	if _, err := fmt.Sscanf(ref, "%d-W%d", &year, &week); err != nil {
		return time.Time{}, fmt.Errorf("invalid week reference %q, expected YYYY-Www", ref)
	}
	if week < 1 || week > 53 {
		return time.Time{}, fmt.Errorf("invalid week number %d in %q", week, ref)
	}
	// January 4th is always in ISO week 1.
	jan4 := time.Date(year, time.January, 4, 0, 0, 0, 0, time.UTC)
	return WeekStart(jan4).AddDate(0, 0, (week-1)*7), nil
}
