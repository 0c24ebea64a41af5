package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/civil"
)

// ClockTime is a time of day expressed in seconds since midnight. The value 86400
// represents the end of the day ("24:00").
type ClockTime int

const (
	secondsPerMinute = 60
	secondsPerHour   = 60 * secondsPerMinute
	// EndOfDay is the latest representable clock time.
	EndOfDay ClockTime = 24 * secondsPerHour
)

// NewClockTime builds a ClockTime from its components.
func NewClockTime(hour, minute, second int) ClockTime {
	return ClockTime(hour*secondsPerHour + minute*secondsPerMinute + second)
}

// ParseClockTime accepts HH:MM or HH:MM:SS. 24:00 is accepted as the end of day.
func ParseClockTime(raw string) (ClockTime, error) {
	parts := strings.Split(strings.TrimSpace(raw), ":")
	if len(parts) != 2 && len(parts) != 3 {
		return 0, fmt.Errorf("invalid time %q: expected HH:MM or HH:MM:SS", raw)
	}
	values := make([]int, 3)
	for i, part := range parts {
		if len(part) != 2 {
			return 0, fmt.Errorf("invalid time %q", raw)
		}
		n, err := strconv.Atoi(part)
		if err != nil || n < 0 {
			return 0, fmt.Errorf("invalid time %q", raw)
		}
		values[i] = n
	}
	hour, minute, second := values[0], values[1], values[2]
	if hour == 24 && minute == 0 && second == 0 {
		return EndOfDay, nil
	}
	if hour > 23 || minute > 59 || second > 59 {
		return 0, fmt.Errorf("invalid time %q: out of range", raw)
	}
	return NewClockTime(hour, minute, second), nil
}

// Valid reports whether the value lies within a day.
func (t ClockTime) Valid() bool {
	return t >= 0 && t <= EndOfDay
}

// Add returns t shifted by d, truncated to whole seconds.
func (t ClockTime) Add(d time.Duration) ClockTime {
	return t + ClockTime(d/time.Second)
}

// Sub returns the duration t-u.
func (t ClockTime) Sub(u ClockTime) time.Duration {
	return time.Duration(t-u) * time.Second
}

// Components splits the value into hour, minute and second.
func (t ClockTime) Components() (hour, minute, second int) {
	v := int(t)
	return v / secondsPerHour, (v % secondsPerHour) / secondsPerMinute, v % secondsPerMinute
}

// String renders HH:MM:SS.
func (t ClockTime) String() string {
	h, m, s := t.Components()
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

// Short renders HH:MM when seconds are zero and HH:MM:SS otherwise.
func (t ClockTime) Short() string {
	h, m, s := t.Components()
	if s == 0 {
		return fmt.Sprintf("%02d:%02d", h, m)
	}
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

// On combines the clock time with a civil date in loc.
func (t ClockTime) On(d civil.Date, loc *time.Location) time.Time {
	h, m, s := t.Components()
	return time.Date(d.Year, d.Month, d.Day, h, m, s, 0, loc)
}

// MarshalJSON implements json.Marshaler.
func (t ClockTime) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.Short())
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *ClockTime) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("time must be a string: %w", err)
	}
	parsed, err := ParseClockTime(raw)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Value implements driver.Valuer for PostgreSQL TIME columns.
func (t ClockTime) Value() (driver.Value, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("clock time %d out of range", int(t))
	}
	return t.String(), nil
}

// Scan implements sql.Scanner. lib/pq decodes TIME into a time.Time on 0000-01-01
// (24:00 lands on the following day); text forms are parsed directly.
func (t *ClockTime) Scan(src interface{}) error {
	switch v := src.(type) {
	case time.Time:
		if v.Year() == 0 && v.Day() > 1 {
			*t = EndOfDay
			return nil
		}
		*t = NewClockTime(v.Hour(), v.Minute(), v.Second())
		return nil
	case []byte:
		return t.scanText(string(v))
	case string:
		return t.scanText(v)
	default:
		return fmt.Errorf("cannot scan %T into ClockTime", src)
	}
}

func (t *ClockTime) scanText(raw string) error {
	// Postgres may append fractional seconds.
	if idx := strings.IndexByte(raw, '.'); idx >= 0 {
		raw = raw[:idx]
	}
	parsed, err := ParseClockTime(raw)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}
