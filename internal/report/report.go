// Package report reduces clock sessions into hour totals and the CSV rows
// managers export.
package report

import (
	"fmt"
	"io"
	"time"

	"shiftly/timeclock/internal/model"
)

type Period string

const (
	PeriodWeek  Period = "week"
	PeriodMonth Period = "month"
	PeriodAll   Period = "all"
)

func ParsePeriod(value string) (Period, error) {
	switch Period(value) {
	case PeriodWeek, PeriodMonth, PeriodAll:
		return Period(value), nil
	case "":
		return PeriodAll, nil
	}
	return "", fmt.Errorf("invalid period %q", value)
}

type Summary struct {
	Period         Period                 `json:"period"`
	Entries        []model.TimeClockEntry `json:"entries"`
	TotalHours     float64                `json:"totalHours"`
	OvertimeHours  float64                `json:"overtimeHours"`
	AvgHoursPerDay float64                `json:"avgHoursPerDay"`
}

// PeriodBounds returns the [from, to) clock-in window for a period relative
// to now: the ISO week (Monday start) or the calendar month containing now.
// PeriodAll has no bounds.
func PeriodBounds(period Period, now time.Time) (from, to *time.Time) {
	switch period {
	case PeriodWeek:
		start := startOfWeek(now)
		end := start.AddDate(0, 0, 7)
		return &start, &end
	case PeriodMonth:
		start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
		end := start.AddDate(0, 1, 0)
		return &start, &end
	}
	return nil, nil
}

// Monday as start.
func startOfWeek(t time.Time) time.Time {
	w := int(t.Weekday())
	if w == 0 {
		w = 7
	}
	return time.Date(t.Year(), t.Month(), t.Day()-w+1, 0, 0, 0, 0, t.Location())
}

// Filter keeps entries whose clock-in falls inside the period. Input order
// is preserved.
func Filter(entries []model.TimeClockEntry, period Period, now time.Time) []model.TimeClockEntry {
	from, to := PeriodBounds(period, now)
	if from == nil && to == nil {
		return entries
	}
	filtered := make([]model.TimeClockEntry, 0, len(entries))
	for _, entry := range entries {
		if entry.ClockIn.Before(*from) || !entry.ClockIn.Before(*to) {
			continue
		}
		filtered = append(filtered, entry)
	}
	return filtered
}

// Summarize filters and totals the entries. Open entries contribute zero to
// the sums but stay visible in the itemized listing.
func Summarize(entries []model.TimeClockEntry, period Period, now time.Time) Summary {
	filtered := Filter(entries, period, now)
	summary := Summary{Period: period, Entries: filtered}
	for _, entry := range filtered {
		if entry.TotalHours != nil {
			summary.TotalHours += *entry.TotalHours
		}
		if entry.OvertimeHours != nil {
			summary.OvertimeHours += *entry.OvertimeHours
		}
	}
	if len(filtered) > 0 {
		summary.AvgHoursPerDay = summary.TotalHours / float64(len(filtered))
	}
	return summary
}

// WriteCSV renders one row per entry in input order, a blank line, then the
// totals row. Callers supply entries pre-sorted by clock-in ascending.
func WriteCSV(w io.Writer, entries []model.TimeClockEntry) error {
	if _, err := fmt.Fprintln(w, "Date,Clock In,Clock Out,Break Duration,Total Hours,Overtime"); err != nil {
		return err
	}
	var totalSum, overtimeSum float64
	for _, entry := range entries {
		clockOut := ""
		if entry.ClockOut != nil {
			clockOut = entry.ClockOut.Format("15:04")
		}
		total := ""
		if entry.TotalHours != nil {
			total = fmt.Sprintf("%.2f", *entry.TotalHours)
			totalSum += *entry.TotalHours
		}
		overtime := ""
		if entry.OvertimeHours != nil {
			overtime = fmt.Sprintf("%.2f", *entry.OvertimeHours)
			overtimeSum += *entry.OvertimeHours
		}
		if _, err := fmt.Fprintf(w, "%s,%s,%s,%d min,%s,%s\n",
			entry.ClockIn.Format("2006-01-02"),
			entry.ClockIn.Format("15:04"),
			clockOut,
			int(entry.BreakMinutes()),
			total,
			overtime,
		); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(w, "\nTotal Hours,,,,%.2f,%.2f\n", totalSum, overtimeSum)
	return err
}
