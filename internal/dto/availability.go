package dto

// AvailabilityWindowInput is one recurring window in a schedule submission.
type AvailabilityWindowInput struct {
	DayOfWeek string `json:"dayOfWeek" validate:"required"`
	StartTime string `json:"startTime" validate:"required"`
	EndTime   string `json:"endTime" validate:"required"`
}

// ReplaceAvailabilityRequest carries a teacher's full weekly schedule. An empty
// list clears the schedule.
type ReplaceAvailabilityRequest struct {
	Windows []AvailabilityWindowInput `json:"windows" validate:"max=100,dive"`
}
