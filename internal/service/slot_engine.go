package service

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/noah-isme/sma-consultation-api/internal/models"
)

// ComputeSlots derives the free 30-minute slots of day from the teacher's windows
// minus the booked intervals. Each window is walked from its start; a trailing
// remainder shorter than a slot is not offered. Windows for other weekdays are
// ignored, overlapping windows yield each (start, end) pair once, and the result
// is ordered by start time.
func ComputeSlots(day models.Weekday, windows []models.AvailabilityWindow, booked []models.BookedInterval) []models.Slot {
	slots := make([]models.Slot, 0)
	seen := make(map[[2]models.ClockTime]struct{})

	for _, window := range windows {
		if window.DayOfWeek != day {
			continue
		}
		for start := window.StartTime; start.Add(models.SlotLength) <= window.EndTime; start = start.Add(models.SlotLength) {
			end := start.Add(models.SlotLength)
			if overlapsAny(booked, start, end) {
				continue
			}
			key := [2]models.ClockTime{start, end}
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			slots = append(slots, models.Slot{Day: day, StartTime: start, EndTime: end})
		}
	}

	sort.Slice(slots, func(i, j int) bool {
		if slots[i].StartTime != slots[j].StartTime {
			return slots[i].StartTime < slots[j].StartTime
		}
		return slots[i].EndTime < slots[j].EndTime
	})
	return slots
}

func overlapsAny(booked []models.BookedInterval, start, end models.ClockTime) bool {
	for _, b := range booked {
		if b.Overlaps(start, end) {
			return true
		}
	}
	return false
}

// ResolveDate turns user input into a civil date in loc. YYYY-MM-DD is taken as
// is; an RFC3339 timestamp is converted into loc before its date is taken.
func ResolveDate(raw string, loc *time.Location) (models.Date, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return models.Date{}, fmt.Errorf("date is required")
	}
	if d, err := models.ParseDate(trimmed); err == nil {
		return d, nil
	}
	ts, err := time.Parse(time.RFC3339, trimmed)
	if err != nil {
		return models.Date{}, fmt.Errorf("invalid date %q: expected YYYY-MM-DD or RFC3339", raw)
	}
	return models.DateIn(ts, loc), nil
}
