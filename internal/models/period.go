package models

import "time"

// PeriodSlot represents one named time unit in the daily timetable
// (jam pelajaran). Slots flagged as breaks are never scheduled.
type PeriodSlot struct {
	ID              string    `db:"id" json:"id"`
	Name            string    `db:"name" json:"name"`
	Sequence        int       `db:"sequence" json:"sequence"`
	StartTime       string    `db:"start_time" json:"start_time"`
	EndTime         string    `db:"end_time" json:"end_time"`
	DurationMinutes int       `db:"duration_minutes" json:"duration_minutes"`
	IsBreak         bool      `db:"is_break" json:"is_break"`
	Active          bool      `db:"active" json:"active"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time `db:"updated_at" json:"updated_at"`
}

// PeriodSlotFilter captures filters for listing period slots.
type PeriodSlotFilter struct {
	IsBreak   *bool
	Active    *bool
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
