package export

import (
	"fmt"
	"time"
)

// Column describes one field of an export. Width is a relative weight used by
// the PDF layout; zero means 1.
type Column struct {
	Key   string
	Title string
	Width float64
}

// Dataset defines tabular export content.
type Dataset struct {
	Title       string
	Columns     []Column
	Rows        []map[string]string
	GeneratedAt time.Time
}

func (d Dataset) validate(format string) error {
	if len(d.Columns) == 0 {
		return fmt.Errorf("%s requires at least one column", format)
	}
	return nil
}

func (d Dataset) titles() []string {
	out := make([]string, len(d.Columns))
	for i, col := range d.Columns {
		out[i] = col.Title
		if out[i] == "" {
			out[i] = col.Key
		}
	}
	return out
}
