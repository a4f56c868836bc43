package models

import "time"

// Teacher represents an instructor record (guru).
type Teacher struct {
	ID        string    `db:"id" json:"id"`
	NIP       string    `db:"nip" json:"nip"`
	Email     string    `db:"email" json:"email"`
	FullName  string    `db:"full_name" json:"full_name"`
	Phone     *string   `db:"phone" json:"phone,omitempty"`
	Active    bool      `db:"active" json:"active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// TeacherFilter captures filtering options for listing teachers.
type TeacherFilter struct {
	Search    string
	Active    *bool
	SubjectID string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// TeacherSubject represents a qualification: the teacher may teach the
// subject.
type TeacherSubject struct {
	ID        string    `db:"id" json:"id"`
	TeacherID string    `db:"teacher_id" json:"teacher_id"`
	SubjectID string    `db:"subject_id" json:"subject_id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// QualifiedTeacher joins a qualification row with the teacher record for
// selector consumption.
type QualifiedTeacher struct {
	Teacher
	SubjectID string `db:"subject_id" json:"subject_id"`
}
