package dto

import "github.com/noah-isme/sma-timetable-api/internal/models"

// Conflict event types emitted by the generator. All of them are
// recoverable: the run keeps going and reports them alongside the result.
const (
	ConflictNoSubjects        = "no_subjects"
	ConflictNoTeacher         = "no_teacher"
	ConflictInsufficientSlots = "insufficient_slots"
)

// GenerateScheduleRequest scopes a generation run.
type GenerateScheduleRequest struct {
	SchoolYear string `json:"school_year" validate:"required"`
	Semester   string `json:"semester" validate:"required,oneof=ODD EVEN"`
}

// ConflictEvent records a per-item shortfall discovered during a run.
// Required and Assigned are pointers so an insufficient_slots event can
// carry assigned=0 without the field disappearing from the payload.
type ConflictEvent struct {
	Type        string `json:"type"`
	ClassID     string `json:"class_id,omitempty"`
	ClassName   string `json:"class_name,omitempty"`
	SubjectID   string `json:"subject_id,omitempty"`
	SubjectName string `json:"subject_name,omitempty"`
	Message     string `json:"message"`
	Required    *int   `json:"required,omitempty"`
	Assigned    *int   `json:"assigned,omitempty"`
}

// GenerateStatistics aggregates the outcome of a generation run.
type GenerateStatistics struct {
	TotalScheduled     int     `json:"total_scheduled"`
	ShortfallCount     int     `json:"shortfall_count"`
	SuccessRatePercent float64 `json:"success_rate_percent"`
}

// GenerateScheduleResult is the engine's top-level outcome. Success means
// the run completed; a completed run may still carry conflicts.
type GenerateScheduleResult struct {
	Success    bool               `json:"success"`
	Message    string             `json:"message"`
	Statistics GenerateStatistics `json:"statistics"`
	Conflicts  []ConflictEvent    `json:"conflicts"`
}

// ClearScheduleRequest scopes a bulk delete.
type ClearScheduleRequest struct {
	SchoolYear string `json:"school_year" validate:"required"`
	Semester   string `json:"semester" validate:"required,oneof=ODD EVEN"`
}

// ClearScheduleResult reports how many assignments were removed.
type ClearScheduleResult struct {
	DeletedCount int64 `json:"deleted_count"`
}

// WeeklySchedule groups assignments by weekday. Monday through Friday are
// always present as keys, even when empty.
type WeeklySchedule map[models.Weekday][]models.AssignmentView

// ScheduleStatistics summarises the persisted schedule for a scope.
type ScheduleStatistics struct {
	TotalAssignments int                    `json:"total_assignments"`
	ByWeekday        map[models.Weekday]int `json:"by_weekday"`
	ByClass          []models.ClassCount    `json:"by_class"`
	TeacherLoad      []models.TeacherLoad   `json:"teacher_load"`
}

// UpdateAssignmentRequest carries a manual admin override for a single
// assignment.
type UpdateAssignmentRequest struct {
	TeacherID    *string `json:"teacher_id" validate:"omitempty,uuid4"`
	PeriodSlotID *string `json:"period_slot_id" validate:"omitempty,uuid4"`
	DayOfWeek    *string `json:"day_of_week" validate:"omitempty,oneof=MONDAY TUESDAY WEDNESDAY THURSDAY FRIDAY SATURDAY"`
	Room         *string `json:"room" validate:"omitempty,max=50"`
}
