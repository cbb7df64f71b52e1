package slot

import (
	"fmt"
	"time"
)

// WeekOf returns the ISO week containing t (evaluated in UTC).
func WeekOf(t time.Time) Week {
	year, number := t.UTC().ISOWeek()
	return Week{Year: year, Number: number}
}

// ParseWeek parses identifiers such as "2026-W42".
func ParseWeek(s string) (Week, error) {
	var w Week
	if _, err := fmt.Sscanf(s, "%d-W%d", &w.Year, &w.Number); err != nil {
		return Week{}, fmt.Errorf("invalid week id %q: %w", s, err)
	}
	if w.Number < 1 || w.Number > 53 {
		return Week{}, fmt.Errorf("week number out of range in %q", s)
	}
	if WeekOf(w.Start()) != w {
		return Week{}, fmt.Errorf("week %q does not exist", s)
	}
	return w, nil
}

// MustParseWeek is ParseWeek for constants and tests.
func MustParseWeek(s string) Week {
	w, err := ParseWeek(s)
	if err != nil {
		panic(err)
	}
	return w
}

func (w Week) String() string {
	return fmt.Sprintf("%04d-W%02d", w.Year, w.Number)
}

// Start returns Monday 00:00 UTC of the week.
func (w Week) Start() time.Time {
	// January 4th is always in ISO week 1.
	jan4 := time.Date(w.Year, time.January, 4, 0, 0, 0, 0, time.UTC)
	offset := (int(jan4.Weekday()) + 6) % 7
	monday := jan4.AddDate(0, 0, -offset)
	return monday.AddDate(0, 0, (w.Number-1)*7)
}

// Next returns the following week.
func (w Week) Next() Week {
	return WeekOf(w.Start().AddDate(0, 0, 7))
}

func (w Week) MarshalText() ([]byte, error) {
	return []byte(w.String()), nil
}

func (w *Week) UnmarshalText(b []byte) error {
	parsed, err := ParseWeek(string(b))
	if err != nil {
		return err
	}
	*w = parsed
	return nil
}
