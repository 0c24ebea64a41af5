package models

import "time"

// ConsultationStatus tracks the lifecycle of a booking.
type ConsultationStatus string

const (
	ConsultationPending   ConsultationStatus = "pending"
	ConsultationApproved  ConsultationStatus = "approved"
	ConsultationRejected  ConsultationStatus = "rejected"
	ConsultationCancelled ConsultationStatus = "cancelled"
)

// ActiveConsultationStatuses are the statuses that reserve a slot.
var ActiveConsultationStatuses = []ConsultationStatus{ConsultationPending, ConsultationApproved}

// Valid returns true when the status is a supported value.
func (s ConsultationStatus) Valid() bool {
	switch s {
	case ConsultationPending, ConsultationApproved, ConsultationRejected, ConsultationCancelled:
		return true
	default:
		return false
	}
}

// Active reports whether the status holds its slot.
func (s ConsultationStatus) Active() bool {
	return s == ConsultationPending || s == ConsultationApproved
}

// Consultation is a student's booking of a teacher's time.
type Consultation struct {
	ID        string             `db:"id" json:"id"`
	TeacherID string             `db:"teacher_id" json:"teacherId"`
	StudentID string             `db:"student_id" json:"studentId"`
	Date      Date               `db:"date" json:"date"`
	StartTime ClockTime          `db:"start_time" json:"startTime"`
	EndTime   ClockTime          `db:"end_time" json:"endTime"`
	Purpose   string             `db:"purpose" json:"purpose"`
	Status    ConsultationStatus `db:"status" json:"status"`
	Note      *string            `db:"note" json:"note,omitempty"`
	CreatedAt time.Time          `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time          `db:"updated_at" json:"updatedAt"`
}

// Interval projects the consultation onto the teacher's booked time.
func (c Consultation) Interval() BookedInterval {
	return BookedInterval{TeacherID: c.TeacherID, Date: c.Date, StartTime: c.StartTime, EndTime: c.EndTime}
}

// ConsultationDetail adds participant names for listings and reports.
type ConsultationDetail struct {
	Consultation
	TeacherName string `db:"teacher_name" json:"teacherName"`
	StudentName string `db:"student_name" json:"studentName"`
}

// ConsultationFilter scopes listing queries.
type ConsultationFilter struct {
	TeacherID string
	StudentID string
	Status    *ConsultationStatus
	DateFrom  *Date
	DateTo    *Date
	Page      int
	PageSize  int
	SortOrder string
}
