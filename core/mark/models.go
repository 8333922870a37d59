package mark

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/alama/core"
)

// Key identifies the marks of a student for one unit in one semester.
type Key struct {
	StudentID  string `json:"student_id" db:"student_id" query:"student_id"`
	UnitID     string `json:"unit_id" db:"unit_id" query:"unit_id"`
	SemesterID string `json:"semester_id" db:"semester_id" query:"semester_id"`
}

func (k Key) String() string {
	return k.StudentID + "/" + k.UnitID + "/" + k.SemesterID
}

// Mark is the raw score of a student for one assessment component.
type Mark struct {
	ID          string      `json:"id" db:"id"`
	StudentID   string      `json:"student_id" db:"student_id"`
	UnitID      string      `json:"unit_id" db:"unit_id"`
	SemesterID  string      `json:"semester_id" db:"semester_id"`
	ComponentID string      `json:"component_id" db:"component_id"`
	Score       float64     `json:"score" db:"score"`
	Remarks     null.String `json:"remarks" db:"remarks"`
	EnteredBy   string      `json:"entered_by" db:"entered_by"`
	CreatedAt   time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at" db:"updated_at"`
}

func (m Mark) Key() Key {
	return Key{StudentID: m.StudentID, UnitID: m.UnitID, SemesterID: m.SemesterID}
}

// Lock freezes the marks of a unit for one semester, pending approval.
type Lock struct {
	UnitID     string    `json:"unit_id" db:"unit_id"`
	SemesterID string    `json:"semester_id" db:"semester_id"`
	LockedBy   string    `json:"locked_by" db:"locked_by"`
	LockedAt   time.Time `json:"locked_at" db:"locked_at"`
}

// NewMark contains information needed to record a Mark.
type NewMark struct {
	StudentID   string   `json:"student_id" validate:"required"`
	UnitID      string   `json:"unit_id" validate:"required"`
	SemesterID  string   `json:"semester_id" validate:"required"`
	ComponentID string   `json:"component_id" validate:"required"`
	Score       *float64 `json:"score" validate:"required,gte=0"`
	Remarks     string   `json:"remarks" validate:"max=500"`
}

func (nm *NewMark) Key() Key {
	return Key{StudentID: nm.StudentID, UnitID: nm.UnitID, SemesterID: nm.SemesterID}
}

func (nm *NewMark) Validate(validate *validator.Validate) error {
	nm.StudentID = core.CleanString(nm.StudentID)
	nm.UnitID = core.CleanString(nm.UnitID)
	nm.SemesterID = core.CleanString(nm.SemesterID)
	nm.ComponentID = core.CleanString(nm.ComponentID)
	nm.Remarks = core.CleanString(nm.Remarks)
	return validate.Struct(nm)
}

// ImportRow is one CSV line of a bulk mark import.
type ImportRow struct {
	RegistrationNumber string `csv:"registration_number"`
	UnitCode           string `csv:"unit_code"`
	SemesterID         string `csv:"semester_id"`
	ComponentID        string `csv:"component_id"`
	Score              string `csv:"score"`
	Remarks            string `csv:"remarks"`
}

type RowError struct {
	Row   int    `json:"row"` // 1-based, header excluded
	Error string `json:"error"`
}

type ImportReport struct {
	Recorded int        `json:"recorded"`
	Failed   []RowError `json:"failed"`
}
