package model

import (
	"errors"
	"time"
)

type ShiftStatus string

const (
	ShiftScheduled ShiftStatus = "scheduled"
	ShiftActive    ShiftStatus = "active"
	ShiftCompleted ShiftStatus = "completed"
	ShiftMissed    ShiftStatus = "missed"
	ShiftCancelled ShiftStatus = "cancelled"
)

// Shift is a scheduled work interval assigned to one employee. The engine
// only reads shifts; status and time edits are a manager concern handled by
// the backing store.
type Shift struct {
	ID         string      `json:"id"`
	EmployeeID string      `json:"employeeId"`
	CompanyID  string      `json:"companyId"`
	StartTime  time.Time   `json:"startTime"`
	EndTime    time.Time   `json:"endTime"`
	Status     ShiftStatus `json:"status"`
	Notes      *string     `json:"notes,omitempty"`
}

// TimeClockEntry links one employee to one shift. An entry with a clock-in
// and no clock-out is "open"; at most one open entry may exist per employee.
type TimeClockEntry struct {
	ID            string     `json:"id"`
	ShiftID       string     `json:"shiftId"`
	EmployeeID    string     `json:"employeeId"`
	ClockIn       time.Time  `json:"clockIn"`
	ClockOut      *time.Time `json:"clockOut,omitempty"`
	BreakStart    *time.Time `json:"breakStart,omitempty"`
	BreakEnd      *time.Time `json:"breakEnd,omitempty"`
	TotalHours    *float64   `json:"totalHours,omitempty"`
	OvertimeHours *float64   `json:"overtimeHours,omitempty"`
}

func (e TimeClockEntry) Open() bool {
	return e.ClockOut == nil
}

func (e TimeClockEntry) OnBreak() bool {
	return e.Open() && e.BreakStart != nil && e.BreakEnd == nil
}

// BreakMinutes is the completed break length, zero while a break is still
// open or when no break was taken.
func (e TimeClockEntry) BreakMinutes() float64 {
	if e.BreakStart == nil || e.BreakEnd == nil {
		return 0
	}
	minutes := e.BreakEnd.Sub(*e.BreakStart).Minutes()
	if minutes < 0 {
		return 0
	}
	return minutes
}

// ErrOpenEntryExists is returned by the store when a second open entry would
// violate the one-open-entry-per-employee constraint.
var ErrOpenEntryExists = errors.New("open entry exists")
