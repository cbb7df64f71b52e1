package slot

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

var dayNames = [...]string{"sun", "mon", "tue", "wed", "thu", "fri", "sat"}

// dayOrder is Monday-first, matching ISO weeks.
var dayOrder = [...]time.Weekday{
	time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday, time.Saturday, time.Sunday,
}

// ParseID parses identifiers such as "mon_2100".
func ParseID(s string) (ID, error) {
	day, clock, ok := strings.Cut(s, "_")
	if !ok || len(clock) != 4 {
		return ID{}, fmt.Errorf("invalid slot id %q", s)
	}
	weekday := -1
	for i, name := range dayNames {
		if name == day {
			weekday = i
			break
		}
	}
	if weekday < 0 {
		return ID{}, fmt.Errorf("invalid slot day in %q", s)
	}
	hour, err := strconv.Atoi(clock[:2])
	if err != nil {
		return ID{}, fmt.Errorf("invalid slot hour in %q: %w", s, err)
	}
	minute, err := strconv.Atoi(clock[2:])
	if err != nil {
		return ID{}, fmt.Errorf("invalid slot minute in %q: %w", s, err)
	}
	if hour < 0 || hour > 23 || (minute != 0 && minute != 30) {
		return ID{}, fmt.Errorf("slot time out of range in %q", s)
	}
	return ID{Day: time.Weekday(weekday), HalfHour: hour*2 + minute/30}, nil
}

// MustParseID is ParseID for constants and tests.
func MustParseID(s string) ID {
	id, err := ParseID(s)
	if err != nil {
		panic(err)
	}
	return id
}

func (id ID) String() string {
	return fmt.Sprintf("%s_%02d%02d", dayNames[id.Day], id.HalfHour/2, (id.HalfHour%2)*30)
}

// Valid reports whether id lies inside the slot universe.
func (id ID) Valid() bool {
	return id.Day >= time.Sunday && id.Day <= time.Saturday && id.HalfHour >= 0 && id.HalfHour < HalfHoursPerDay
}

// Index is the chronological position of id within its week, Monday 00:00 being 0.
func (id ID) Index() int {
	day := (int(id.Day) + 6) % 7
	return day*HalfHoursPerDay + id.HalfHour
}

// Before orders slots chronologically within a week.
func (id ID) Before(other ID) bool {
	return id.Index() < other.Index()
}

// In returns the UTC start instant of id in week w.
func (id ID) In(w Week) time.Time {
	return w.Start().Add(time.Duration(id.Index()) * 30 * time.Minute)
}

// MarshalText encodes id in its string form so it can key JSON maps.
func (id ID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

func (id *ID) UnmarshalText(b []byte) error {
	parsed, err := ParseID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// Universe returns every slot of a week in chronological order.
func Universe() []ID {
	ids := make([]ID, 0, len(dayOrder)*HalfHoursPerDay)
	for _, day := range dayOrder {
		for hh := 0; hh < HalfHoursPerDay; hh++ {
			ids = append(ids, ID{Day: day, HalfHour: hh})
		}
	}
	return ids
}

// Sort orders ids chronologically in place.
func Sort(ids []ID) {
	sort.Slice(ids, func(i, j int) bool { return ids[i].Before(ids[j]) })
}
