package report

import (
	"strings"
	"testing"
	"time"

	"shiftly/timeclock/internal/model"
)

func floatPtr(f float64) *float64    { return &f }
func timePtr(t time.Time) *time.Time { return &t }

func entryAt(clockIn time.Time, hours float64, overtime float64) model.TimeClockEntry {
	out := clockIn.Add(time.Duration(hours * float64(time.Hour)))
	return model.TimeClockEntry{
		ID:            "entry-" + clockIn.Format("0102"),
		EmployeeID:    "emp-1",
		ClockIn:       clockIn,
		ClockOut:      &out,
		TotalHours:    floatPtr(hours),
		OvertimeHours: floatPtr(overtime),
	}
}

func TestSummarizeTotals(t *testing.T) {
	// 2026-03-04 is a Wednesday.
	now := time.Date(2026, 3, 4, 12, 0, 0, 0, time.UTC)
	entries := []model.TimeClockEntry{
		entryAt(time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC), 8, 0),
		entryAt(time.Date(2026, 3, 3, 9, 0, 0, 0, time.UTC), 9, 1),
	}
	summary := Summarize(entries, PeriodWeek, now)
	if summary.TotalHours != 17 {
		t.Fatalf("expected 17 total hours, got %v", summary.TotalHours)
	}
	if summary.OvertimeHours != 1 {
		t.Fatalf("expected 1 overtime hour, got %v", summary.OvertimeHours)
	}
	if summary.AvgHoursPerDay != 8.5 {
		t.Fatalf("expected 8.5 avg, got %v", summary.AvgHoursPerDay)
	}
}

func TestWeekFilterMondayStart(t *testing.T) {
	now := time.Date(2026, 3, 4, 12, 0, 0, 0, time.UTC)
	entries := []model.TimeClockEntry{
		// Sunday before the week starts.
		entryAt(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC), 4, 0),
		// Monday, in range.
		entryAt(time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC), 8, 0),
		// Next Monday, out of range.
		entryAt(time.Date(2026, 3, 9, 9, 0, 0, 0, time.UTC), 8, 0),
	}
	filtered := Filter(entries, PeriodWeek, now)
	if len(filtered) != 1 || !filtered[0].ClockIn.Equal(entries[1].ClockIn) {
		t.Fatalf("expected only the Monday entry, got %d entries", len(filtered))
	}
}

func TestMonthFilter(t *testing.T) {
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	entries := []model.TimeClockEntry{
		entryAt(time.Date(2026, 2, 28, 9, 0, 0, 0, time.UTC), 8, 0),
		entryAt(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC), 8, 0),
		entryAt(time.Date(2026, 3, 31, 9, 0, 0, 0, time.UTC), 8, 0),
		entryAt(time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC), 8, 0),
	}
	filtered := Filter(entries, PeriodMonth, now)
	if len(filtered) != 2 {
		t.Fatalf("expected two March entries, got %d", len(filtered))
	}
}

func TestOpenEntriesContributeZeroButRemainListed(t *testing.T) {
	now := time.Date(2026, 3, 4, 12, 0, 0, 0, time.UTC)
	open := model.TimeClockEntry{
		ID:         "entry-open",
		EmployeeID: "emp-1",
		ClockIn:    time.Date(2026, 3, 4, 9, 0, 0, 0, time.UTC),
	}
	entries := []model.TimeClockEntry{
		entryAt(time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC), 8, 0),
		open,
	}
	summary := Summarize(entries, PeriodWeek, now)
	if summary.TotalHours != 8 {
		t.Fatalf("open entry must contribute 0, got %v total", summary.TotalHours)
	}
	if len(summary.Entries) != 2 {
		t.Fatalf("open entry must stay listed, got %d entries", len(summary.Entries))
	}
	// Average divides by entry count, open entries included.
	if summary.AvgHoursPerDay != 4 {
		t.Fatalf("expected 4 avg, got %v", summary.AvgHoursPerDay)
	}
}

func TestSummarizeIdempotentAcrossOrdering(t *testing.T) {
	now := time.Date(2026, 3, 4, 12, 0, 0, 0, time.UTC)
	a := entryAt(time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC), 8, 0)
	b := entryAt(time.Date(2026, 3, 3, 9, 0, 0, 0, time.UTC), 9.25, 1.25)

	first := Summarize([]model.TimeClockEntry{a, b}, PeriodWeek, now)
	second := Summarize([]model.TimeClockEntry{b, a}, PeriodWeek, now)
	if first.TotalHours != second.TotalHours || first.OvertimeHours != second.OvertimeHours || first.AvgHoursPerDay != second.AvgHoursPerDay {
		t.Fatalf("totals must not depend on input order: %+v vs %+v", first, second)
	}
	// Export row order follows input order.
	if !first.Entries[0].ClockIn.Equal(a.ClockIn) || !second.Entries[0].ClockIn.Equal(b.ClockIn) {
		t.Fatalf("listing must preserve input order")
	}
}

func TestWriteCSV(t *testing.T) {
	clockIn := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	breakStart := clockIn.Add(3 * time.Hour)
	breakEnd := breakStart.Add(30 * time.Minute)
	entry := model.TimeClockEntry{
		ID:            "entry-1",
		EmployeeID:    "emp-1",
		ClockIn:       clockIn,
		ClockOut:      timePtr(time.Date(2026, 3, 2, 17, 0, 0, 0, time.UTC)),
		BreakStart:    &breakStart,
		BreakEnd:      &breakEnd,
		TotalHours:    floatPtr(7.5),
		OvertimeHours: floatPtr(0),
	}
	open := model.TimeClockEntry{
		ID:         "entry-2",
		EmployeeID: "emp-1",
		ClockIn:    time.Date(2026, 3, 3, 9, 0, 0, 0, time.UTC),
	}

	var buf strings.Builder
	if err := WriteCSV(&buf, []model.TimeClockEntry{entry, open}); err != nil {
		t.Fatalf("csv error: %v", err)
	}
	expected := "Date,Clock In,Clock Out,Break Duration,Total Hours,Overtime\n" +
		"2026-03-02,09:00,17:00,30 min,7.50,0.00\n" +
		"2026-03-03,09:00,,0 min,,\n" +
		"\n" +
		"Total Hours,,,,7.50,0.00\n"
	if buf.String() != expected {
		t.Fatalf("unexpected csv:\n%q\nwant:\n%q", buf.String(), expected)
	}
}

func TestParsePeriod(t *testing.T) {
	for _, value := range []string{"week", "month", "all", ""} {
		if _, err := ParsePeriod(value); err != nil {
			t.Fatalf("expected %q to parse, got %v", value, err)
		}
	}
	if _, err := ParsePeriod("fortnight"); err == nil {
		t.Fatalf("expected invalid period to error")
	}
}
