// Package notify holds the device-local persisted notification state: the
// capped "already shown" key log and the dismissed-shift snapshot. Both are
// scoped to one employee+device pair and never synchronized across devices.
package notify

import (
	"context"
	"time"

	"shiftly/timeclock/internal/model"
)

// Snapshot is the single persisted copy of the shift the user last dismissed
// a notification for. It is overwritten on each dismissal and purged on
// shift start or once the validity window past shift start has elapsed.
type Snapshot struct {
	Shift       model.Shift `json:"shift"`
	DismissedAt time.Time   `json:"dismissed_at"`
}

// Valid reports whether the snapshot may still restore banner state: until
// ttl past the dismissed shift's start.
func (s Snapshot) Valid(now time.Time, ttl time.Duration) bool {
	return now.Before(s.Shift.StartTime.Add(ttl))
}

type Store interface {
	// HasBeenShown reports whether key is present in the shown log.
	HasBeenShown(ctx context.Context, key string) (bool, error)
	// RecordShown appends key to the log, evicting the oldest entry once the
	// cap is exceeded.
	RecordShown(ctx context.Context, key string) error

	SaveDismissed(ctx context.Context, snap Snapshot) error
	// LoadDismissed returns the snapshot if one is stored. Unparseable data
	// is treated as absent and discarded, never surfaced as an error.
	LoadDismissed(ctx context.Context) (Snapshot, bool, error)
	ClearDismissed(ctx context.Context) error
}

// ShownKey is the "alerted today" de-duplication key for a shift. The date
// component makes yesterday's key inert even if it survives eviction.
func ShownKey(shiftID string, day time.Time) string {
	return shiftID + "-" + day.Format("2006-01-02")
}

// DismissedKey marks a shift alert the user explicitly dismissed.
func DismissedKey(shiftID string) string {
	return shiftID + "-dismissed"
}
