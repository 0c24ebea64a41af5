package models

import (
	"database/sql/driver"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/civil"
)

// Weekday names a day of the week. Availability recurs on weekdays, never on
// calendar dates.
type Weekday string

const (
	Monday    Weekday = "Monday"
	Tuesday   Weekday = "Tuesday"
	Wednesday Weekday = "Wednesday"
	Thursday  Weekday = "Thursday"
	Friday    Weekday = "Friday"
	Saturday  Weekday = "Saturday"
	Sunday    Weekday = "Sunday"
)

var weekdayOrder = []Weekday{Monday, Tuesday, Wednesday, Thursday, Friday, Saturday, Sunday}

// ParseWeekday resolves a weekday name case-insensitively.
func ParseWeekday(raw string) (Weekday, error) {
	trimmed := strings.TrimSpace(raw)
	for _, day := range weekdayOrder {
		if strings.EqualFold(trimmed, string(day)) {
			return day, nil
		}
	}
	return "", fmt.Errorf("invalid weekday %q", raw)
}

// WeekdayOf converts a time.Weekday.
func WeekdayOf(d time.Weekday) Weekday {
	// time.Sunday == 0
	return weekdayOrder[(int(d)+6)%7]
}

// Valid reports whether the value is one of the seven names.
func (w Weekday) Valid() bool {
	return w.Index() >= 0
}

// Index orders weekdays starting from Monday; -1 when invalid.
func (w Weekday) Index() int {
	for i, day := range weekdayOrder {
		if day == w {
			return i
		}
	}
	return -1
}

// Scan implements sql.Scanner and rejects unknown names.
func (w *Weekday) Scan(src interface{}) error {
	var raw string
	switch v := src.(type) {
	case string:
		raw = v
	case []byte:
		raw = string(v)
	default:
		return fmt.Errorf("cannot scan %T into Weekday", src)
	}
	parsed, err := ParseWeekday(raw)
	if err != nil {
		return err
	}
	*w = parsed
	return nil
}

// Value implements driver.Valuer.
func (w Weekday) Value() (driver.Value, error) {
	if !w.Valid() {
		return nil, fmt.Errorf("invalid weekday %q", string(w))
	}
	return string(w), nil
}

// Date is a civil calendar date stored in PostgreSQL DATE columns. It carries no
// time of day and no timezone.
type Date struct {
	civil.Date
}

// NewDate builds a Date.
func NewDate(year int, month time.Month, day int) Date {
	return Date{civil.Date{Year: year, Month: month, Day: day}}
}

// ParseDate parses YYYY-MM-DD.
func ParseDate(raw string) (Date, error) {
	d, err := civil.ParseDate(strings.TrimSpace(raw))
	if err != nil {
		return Date{}, err
	}
	return Date{d}, nil
}

// DateIn returns the civil date of t as observed in loc.
func DateIn(t time.Time, loc *time.Location) Date {
	if loc != nil {
		t = t.In(loc)
	}
	return Date{civil.DateOf(t)}
}

// Weekday derives the weekday from the civil date alone.
func (d Date) Weekday() Weekday {
	return WeekdayOf(d.Date.In(time.UTC).Weekday())
}

// Value implements driver.Valuer.
func (d Date) Value() (driver.Value, error) {
	if !d.IsValid() {
		return nil, fmt.Errorf("invalid date %s", d.String())
	}
	return d.String(), nil
}

// Scan implements sql.Scanner.
func (d *Date) Scan(src interface{}) error {
	switch v := src.(type) {
	case time.Time:
		d.Date = civil.DateOf(v)
		return nil
	case []byte:
		return d.scanText(string(v))
	case string:
		return d.scanText(v)
	default:
		return fmt.Errorf("cannot scan %T into Date", src)
	}
}

func (d *Date) scanText(raw string) error {
	if len(raw) > 10 {
		raw = raw[:10]
	}
	parsed, err := civil.ParseDate(raw)
	if err != nil {
		return err
	}
	d.Date = parsed
	return nil
}
