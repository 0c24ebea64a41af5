package models

// Teacher is the public view of a user holding the TEACHER role.
type Teacher struct {
	ID       string `db:"id" json:"id"`
	Email    string `db:"email" json:"email"`
	FullName string `db:"full_name" json:"full_name"`
	Active   bool   `db:"active" json:"active"`
}

// TeacherFilter captures filtering options for listing teachers.
type TeacherFilter struct {
	Search   string
	Page     int
	PageSize int
}
