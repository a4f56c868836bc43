package models

import "time"

// Class represents a class group (kelas): one cohort of students sharing
// a timetable.
type Class struct {
	ID                string    `db:"id" json:"id"`
	Name              string    `db:"name" json:"name"`
	Grade             int       `db:"grade" json:"grade"`
	Track             string    `db:"track" json:"track"`
	Capacity          int       `db:"capacity" json:"capacity"`
	Room              *string   `db:"room" json:"room,omitempty"`
	HomeroomTeacherID *string   `db:"homeroom_teacher_id" json:"homeroom_teacher_id,omitempty"`
	Active            bool      `db:"active" json:"active"`
	CreatedAt         time.Time `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time `db:"updated_at" json:"updated_at"`
}

// ClassDetail extends Class with optional homeroom teacher information.
type ClassDetail struct {
	Class
	HomeroomTeacherName *string `db:"homeroom_teacher_name" json:"homeroom_teacher_name,omitempty"`
}

// ClassFilter defines filter criteria for listing classes.
type ClassFilter struct {
	Grade     string
	Track     string
	Active    *bool
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
