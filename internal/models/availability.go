package models

import (
	"fmt"
	"time"
)

// SlotLength is the fixed duration of a bookable consultation slot.
const SlotLength = 30 * time.Minute

// AvailabilityWindow is a teacher's standing weekly block of bookable time.
type AvailabilityWindow struct {
	ID        string    `db:"id" json:"id"`
	TeacherID string    `db:"teacher_id" json:"teacherId"`
	DayOfWeek Weekday   `db:"day_of_week" json:"dayOfWeek"`
	StartTime ClockTime `db:"start_time" json:"startTime"`
	EndTime   ClockTime `db:"end_time" json:"endTime"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// Validate checks the weekday and that the window is non-empty.
func (w AvailabilityWindow) Validate() error {
	if !w.DayOfWeek.Valid() {
		return fmt.Errorf("invalid weekday %q", string(w.DayOfWeek))
	}
	if !w.StartTime.Valid() || !w.EndTime.Valid() {
		return fmt.Errorf("time out of range")
	}
	if w.StartTime >= w.EndTime {
		return fmt.Errorf("%s window start %s must be before end %s", w.DayOfWeek, w.StartTime.Short(), w.EndTime.Short())
	}
	return nil
}

// Contains reports whether [start, end) lies entirely inside the window.
func (w AvailabilityWindow) Contains(start, end ClockTime) bool {
	return start >= w.StartTime && end <= w.EndTime
}

// BookedInterval is a date-specific range claimed by a pending or approved
// consultation.
type BookedInterval struct {
	TeacherID string    `db:"teacher_id" json:"teacherId"`
	Date      Date      `db:"date" json:"date"`
	StartTime ClockTime `db:"start_time" json:"startTime"`
	EndTime   ClockTime `db:"end_time" json:"endTime"`
}

// Overlaps uses half-open semantics: touching intervals do not overlap.
func (b BookedInterval) Overlaps(start, end ClockTime) bool {
	return start < b.EndTime && b.StartTime < end
}

// Slot is a bookable 30-minute unit.
type Slot struct {
	Day       Weekday   `json:"day"`
	StartTime ClockTime `json:"startTime"`
	EndTime   ClockTime `json:"endTime"`
}
