package dto

// CreateConsultationRequest is submitted by a student to book a slot.
type CreateConsultationRequest struct {
	TeacherID string `json:"teacherId" validate:"required"`
	Date      string `json:"date" validate:"required"`
	StartTime string `json:"startTime" validate:"required"`
	EndTime   string `json:"endTime" validate:"required"`
	Purpose   string `json:"purpose" validate:"required,max=500"`
	// AutoReschedule asks the server to take the next free slot of the same day
	// when the requested one was taken concurrently.
	AutoReschedule bool `json:"autoReschedule"`
}

// StatusActionRequest optionally annotates an approve, reject or cancel action.
type StatusActionRequest struct {
	Note *string `json:"note" validate:"omitempty,max=500"`
}

// ConsultationQuery holds list and export filters bound from the query string.
type ConsultationQuery struct {
	Status    string `form:"status"`
	TeacherID string `form:"teacherId"`
	StudentID string `form:"studentId"`
	DateFrom  string `form:"dateFrom"`
	DateTo    string `form:"dateTo"`
	Page      int    `form:"page"`
	PageSize  int    `form:"pageSize"`
	SortOrder string `form:"sortOrder"`
}

// StatusAction names a consultation transition.
type StatusAction string

const (
	ActionApprove StatusAction = "approve"
	ActionReject  StatusAction = "reject"
	ActionCancel  StatusAction = "cancel"
)
