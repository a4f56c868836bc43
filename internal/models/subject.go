package models

import "time"

// SubjectCategory classifies how a subject applies to classes.
type SubjectCategory string

const (
	// SubjectCategoryCore subjects apply to every class.
	SubjectCategoryCore SubjectCategory = "CORE"
	// SubjectCategorySpecialization subjects apply only to classes on a
	// matching track.
	SubjectCategorySpecialization SubjectCategory = "SPECIALIZATION"
	// SubjectCategoryLocalContent subjects apply to every class.
	SubjectCategoryLocalContent SubjectCategory = "LOCAL_CONTENT"
)

// Subject represents a teachable unit (mata pelajaran).
type Subject struct {
	ID          string          `db:"id" json:"id"`
	Code        string          `db:"code" json:"code"`
	Name        string          `db:"name" json:"name"`
	WeeklyHours int             `db:"weekly_hours" json:"weekly_hours"`
	Category    SubjectCategory `db:"category" json:"category"`
	Description *string         `db:"description" json:"description,omitempty"`
	Active      bool            `db:"active" json:"active"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time       `db:"updated_at" json:"updated_at"`
}

// SubjectFilter captures supported filters for listing subjects.
type SubjectFilter struct {
	Category  string
	Active    *bool
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
