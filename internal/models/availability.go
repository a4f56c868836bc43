package models

import "time"

// TeacherAvailability records whether a teacher can teach at a given
// (weekday, period slot). The absence of a record means available; only
// an explicit record with Available=false blocks scheduling.
type TeacherAvailability struct {
	ID           string    `db:"id" json:"id"`
	TeacherID    string    `db:"teacher_id" json:"teacher_id"`
	DayOfWeek    Weekday   `db:"day_of_week" json:"day_of_week"`
	PeriodSlotID string    `db:"period_slot_id" json:"period_slot_id"`
	Available    bool      `db:"available" json:"available"`
	Note         *string   `db:"note" json:"note,omitempty"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// AvailabilityDetail joins an availability record with its slot metadata.
type AvailabilityDetail struct {
	TeacherAvailability
	SlotName     string `db:"slot_name" json:"slot_name"`
	SlotSequence int    `db:"slot_sequence" json:"slot_sequence"`
}
