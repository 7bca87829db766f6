package jobs

import (
	"context"
	"log"
	"time"

	"shiftly/timeclock/internal/config"
	"shiftly/timeclock/internal/model"
	"shiftly/timeclock/internal/timeclock"
)

// EntryStore is the slice of the repository the janitor consumes.
type EntryStore interface {
	ListStaleOpenEntries(ctx context.Context, cutoff time.Time) ([]model.TimeClockEntry, error)
	CloseEntry(ctx context.Context, entryID string, clockOut time.Time, breakEnd *time.Time, totalHours, overtimeHours float64) error
}

// StartEntryCloseJob force-closes entries whose shift ran past the maximum
// duration, so a device that died while clocked in cannot leave an open entry
// forever. The synthetic clock-out lands at clock-in plus the maximum, not at
// job time.
func StartEntryCloseJob(ctx context.Context, cfg config.Config, store EntryStore) {
	if !cfg.EntryCloseJobEnabled {
		return
	}
	interval := cfg.EntryCloseJobInterval
	if interval <= 0 {
		interval = time.Minute
	}
	timeout := cfg.EntryCloseJobTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	maxDuration := cfg.MaxShiftDuration
	if maxDuration <= 0 {
		maxDuration = 14 * time.Hour
	}

	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				tickCtx, cancel := context.WithTimeout(ctx, timeout)
				closed, err := closeStaleEntries(tickCtx, store, maxDuration, cfg.OvertimeThresholdHours)
				cancel()
				if err != nil {
					log.Printf("entry close job error: %v", err)
					continue
				}
				if closed > 0 {
					log.Printf("entry close job closed %d stale entries", closed)
				}
			}
		}
	}()
}

func closeStaleEntries(ctx context.Context, store EntryStore, maxDuration time.Duration, thresholdHours float64) (int, error) {
	cutoff := time.Now().UTC().Add(-maxDuration)
	stale, err := store.ListStaleOpenEntries(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	closed := 0
	for _, entry := range stale {
		clockOut := entry.ClockIn.Add(maxDuration)
		var breakEnd *time.Time
		if entry.BreakStart != nil && entry.BreakEnd == nil {
			// Cap the open break at the synthetic clock-out.
			end := clockOut
			if entry.BreakStart.After(end) {
				end = *entry.BreakStart
			}
			breakEnd = &end
			entry.BreakEnd = breakEnd
		}
		totalHours, overtimeHours := timeclock.ComputeTotals(entry, clockOut, thresholdHours)
		if err := store.CloseEntry(ctx, entry.ID, clockOut, breakEnd, totalHours, overtimeHours); err != nil {
			log.Printf("entry close job: close %s failed: %v", entry.ID, err)
			continue
		}
		closed++
	}
	return closed, nil
}
