package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseClockTime(t *testing.T) {
	cases := map[string]ClockTime{
		"08:00":    NewClockTime(8, 0, 0),
		"08:30:15": NewClockTime(8, 30, 15),
		"00:00":    0,
		"24:00":    EndOfDay,
		"24:00:00": EndOfDay,
	}
	for raw, want := range cases {
		got, err := ParseClockTime(raw)
		require.NoError(t, err, raw)
		assert.Equal(t, want, got, raw)
	}

	for _, raw := range []string{"", "8:00", "25:00", "24:01", "12:60", "aa:bb", "12:00:00:00"} {
		_, err := ParseClockTime(raw)
		assert.Error(t, err, raw)
	}
}

func TestClockTimeFormatting(t *testing.T) {
	tm := NewClockTime(9, 5, 0)
	assert.Equal(t, "09:05:00", tm.String())
	assert.Equal(t, "09:05", tm.Short())
	assert.Equal(t, "09:05:07", NewClockTime(9, 5, 7).Short())
	assert.Equal(t, NewClockTime(9, 35, 0), tm.Add(30*time.Minute))
	assert.Equal(t, 30*time.Minute, NewClockTime(9, 35, 0).Sub(tm))
}

func TestClockTimeJSON(t *testing.T) {
	payload, err := json.Marshal(struct {
		At ClockTime `json:"at"`
	}{At: NewClockTime(14, 0, 0)})
	require.NoError(t, err)
	assert.JSONEq(t, `{"at":"14:00"}`, string(payload))

	var decoded struct {
		At ClockTime `json:"at"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"at":"07:45:30"}`), &decoded))
	assert.Equal(t, NewClockTime(7, 45, 30), decoded.At)
	assert.Error(t, json.Unmarshal([]byte(`{"at":745}`), &decoded))
}

func TestClockTimeScan(t *testing.T) {
	var tm ClockTime
	require.NoError(t, tm.Scan(time.Date(0, 1, 1, 10, 30, 0, 0, time.UTC)))
	assert.Equal(t, NewClockTime(10, 30, 0), tm)

	require.NoError(t, tm.Scan(time.Date(0, 1, 2, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, EndOfDay, tm)

	require.NoError(t, tm.Scan([]byte("11:15:00.000000")))
	assert.Equal(t, NewClockTime(11, 15, 0), tm)

	require.NoError(t, tm.Scan("12:00:00"))
	assert.Equal(t, NewClockTime(12, 0, 0), tm)

	assert.Error(t, tm.Scan(int64(3600)))

	value, err := NewClockTime(8, 0, 0).Value()
	require.NoError(t, err)
	assert.Equal(t, "08:00:00", value)
	_, err = ClockTime(-1).Value()
	assert.Error(t, err)
}
