package repository

import (
	"errors"

	"github.com/lib/pq"
)

// ErrIntervalTaken is returned when a booking would overlap an active consultation
// of the same teacher on the same date.
var ErrIntervalTaken = errors.New("requested interval overlaps an active consultation")

const pqExclusionViolation = "23P01"

func isExclusionViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == pqExclusionViolation
	}
	return false
}
