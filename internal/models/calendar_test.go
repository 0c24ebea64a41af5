package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseWeekday(t *testing.T) {
	day, err := ParseWeekday("monday")
	require.NoError(t, err)
	assert.Equal(t, Monday, day)

	day, err = ParseWeekday(" SUNDAY ")
	require.NoError(t, err)
	assert.Equal(t, Sunday, day)

	_, err = ParseWeekday("Mon")
	assert.Error(t, err)
}

func TestWeekdayOfAndIndex(t *testing.T) {
	assert.Equal(t, Sunday, WeekdayOf(time.Sunday))
	assert.Equal(t, Monday, WeekdayOf(time.Monday))
	assert.Equal(t, Saturday, WeekdayOf(time.Saturday))
	assert.Equal(t, 0, Monday.Index())
	assert.Equal(t, 6, Sunday.Index())
	assert.Equal(t, -1, Weekday("Funday").Index())
}

func TestWeekdayScanRejectsUnknown(t *testing.T) {
	var day Weekday
	require.NoError(t, day.Scan([]byte("Friday")))
	assert.Equal(t, Friday, day)
	assert.Error(t, day.Scan("Caturday"))
	assert.Error(t, day.Scan(5))
}

func TestDateWeekdayIgnoresTimezone(t *testing.T) {
	// 2024-01-01 is a Monday.
	d := NewDate(2024, time.January, 1)
	assert.Equal(t, Monday, d.Weekday())

	jakarta := time.FixedZone("WIB", 7*3600)
	// 20:00 UTC on Sunday is already Monday morning in UTC+7.
	instant := time.Date(2023, time.December, 31, 20, 0, 0, 0, time.UTC)
	assert.Equal(t, d, DateIn(instant, jakarta))
	assert.Equal(t, Sunday, DateIn(instant, time.UTC).Weekday())
}

func TestDateScanAndJSON(t *testing.T) {
	var d Date
	require.NoError(t, d.Scan(time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, "2024-03-04", d.String())

	require.NoError(t, d.Scan([]byte("2024-03-05T00:00:00Z")))
	assert.Equal(t, "2024-03-05", d.String())

	payload, err := json.Marshal(struct {
		D Date `json:"d"`
	}{D: NewDate(2024, 3, 6)})
	require.NoError(t, err)
	assert.JSONEq(t, `{"d":"2024-03-06"}`, string(payload))

	var decoded struct {
		D Date `json:"d"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"d":"2024-03-07"}`), &decoded))
	assert.Equal(t, NewDate(2024, 3, 7), decoded.D)
}
