package models

import "time"

// Semester identifies the half of a school year a schedule belongs to.
type Semester string

const (
	SemesterOdd  Semester = "ODD"
	SemesterEven Semester = "EVEN"
)

// Valid reports whether the semester is one of the two legal values.
func (s Semester) Valid() bool {
	return s == SemesterOdd || s == SemesterEven
}

// ScheduleScope keys every uniqueness invariant and regeneration
// operation: the (school year, semester) pair.
type ScheduleScope struct {
	SchoolYear string   `json:"school_year"`
	Semester   Semester `json:"semester"`
}

// ScheduleAssignment binds one class, subject, teacher, weekday and
// period slot inside a scope (jadwal).
type ScheduleAssignment struct {
	ID           string    `db:"id" json:"id"`
	ClassID      string    `db:"class_id" json:"class_id"`
	SubjectID    string    `db:"subject_id" json:"subject_id"`
	TeacherID    string    `db:"teacher_id" json:"teacher_id"`
	DayOfWeek    Weekday   `db:"day_of_week" json:"day_of_week"`
	PeriodSlotID string    `db:"period_slot_id" json:"period_slot_id"`
	Room         *string   `db:"room" json:"room,omitempty"`
	SchoolYear   string    `db:"school_year" json:"school_year"`
	Semester     Semester  `db:"semester" json:"semester"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// AssignmentView is the joined representation consumed by weekly views
// and exports.
type AssignmentView struct {
	ID            string   `db:"id" json:"id"`
	ClassID       string   `db:"class_id" json:"class_id"`
	ClassName     string   `db:"class_name" json:"class_name"`
	SubjectID     string   `db:"subject_id" json:"subject_id"`
	SubjectCode   string   `db:"subject_code" json:"subject_code"`
	SubjectName   string   `db:"subject_name" json:"subject_name"`
	TeacherID     string   `db:"teacher_id" json:"teacher_id"`
	TeacherName   string   `db:"teacher_name" json:"teacher_name"`
	DayOfWeek     Weekday  `db:"day_of_week" json:"day_of_week"`
	PeriodSlotID  string   `db:"period_slot_id" json:"period_slot_id"`
	SlotName      string   `db:"slot_name" json:"slot_name"`
	SlotSequence  int      `db:"slot_sequence" json:"slot_sequence"`
	SlotStartTime string   `db:"slot_start_time" json:"slot_start_time"`
	SlotEndTime   string   `db:"slot_end_time" json:"slot_end_time"`
	Room          *string  `db:"room" json:"room,omitempty"`
	SchoolYear    string   `db:"school_year" json:"school_year"`
	Semester      Semester `db:"semester" json:"semester"`
}

// AssignmentFilter describes query params for listing assignments.
type AssignmentFilter struct {
	SchoolYear string
	Semester   string
	ClassID    string
	TeacherID  string
	SubjectID  string
	DayOfWeek  string
	Page       int
	PageSize   int
	SortBy     string
	SortOrder  string
}

// WeekdayCount aggregates assignments per weekday.
type WeekdayCount struct {
	DayOfWeek Weekday `db:"day_of_week" json:"day_of_week"`
	Total     int     `db:"total" json:"total"`
}

// ClassCount aggregates assignments per class.
type ClassCount struct {
	ClassID   string `db:"class_id" json:"class_id"`
	ClassName string `db:"class_name" json:"class_name"`
	Total     int    `db:"total" json:"total"`
}

// TeacherLoad aggregates assignments per teacher.
type TeacherLoad struct {
	TeacherID   string `db:"teacher_id" json:"teacher_id"`
	TeacherName string `db:"teacher_name" json:"teacher_name"`
	TotalHours  int    `db:"total_hours" json:"total_hours"`
}

// AssignmentConflictError is returned when a manual edit would violate
// the teacher or class exclusivity invariant.
type AssignmentConflictError struct {
	Dimension string              `json:"dimension"`
	Message   string              `json:"message"`
	Existing  *ScheduleAssignment `json:"existing,omitempty"`
}

// Error implements the error interface.
func (e *AssignmentConflictError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return e.Message
}
