package slot

import (
	"errors"
	"time"
)

// ErrDataUnavailable is returned when a snapshot could not be loaded. Callers
// treat the accompanying empty snapshot as "zero players available".
var ErrDataUnavailable = errors.New("availability data unavailable")

// HalfHoursPerDay is the number of bookable slots in one day.
const HalfHoursPerDay = 48

// ID identifies a half-hour slot within a week on the UTC timeline.
type ID struct {
	Day      time.Weekday
	HalfHour int // 0..47
}

// Week identifies an ISO week.
type Week struct {
	Year   int
	Number int
}

// Snapshot is one team's availability for one week.
type Snapshot struct {
	TeamID    string
	Week      Week
	Available map[ID]map[string]struct{}
	Away      map[ID]map[string]struct{}
	LoadedAt  time.Time
}

// Key addresses a snapshot in caches and subscriptions.
type Key struct {
	TeamID string
	Week   Week
}
