package academic

import (
	"time"

	"github.com/volatiletech/null/v8"
)

type EnrollmentStatus string

const (
	StatusEnrolled  EnrollmentStatus = "ENROLLED"
	StatusDropped   EnrollmentStatus = "DROPPED"
	StatusCompleted EnrollmentStatus = "COMPLETED"
	StatusFailed    EnrollmentStatus = "FAILED"
)

// PromotionRules are the programme thresholds applied at year-end progression.
type PromotionRules struct {
	MinUnitsPassed int     `json:"min_units_passed" yaml:"min_units_passed" db:"min_units_passed" validate:"gte=0"`
	MinGPA         float64 `json:"min_gpa" yaml:"min_gpa" db:"min_gpa" validate:"gte=0,lte=4"`
	MaxRetakes     int     `json:"max_retakes" yaml:"max_retakes" db:"max_retakes" validate:"gte=0"`
	// ExclusionGPA is the GPA below which a student is not eligible to continue at all.
	ExclusionGPA float64 `json:"exclusion_gpa" yaml:"exclusion_gpa" db:"exclusion_gpa" validate:"gte=0,ltefield=MinGPA"`
}

type Programme struct {
	ID             string `json:"id" db:"id"`
	Code           string `json:"code" db:"code"`
	Name           string `json:"name" db:"name"`
	PromotionRules `json:"rules"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}

type ProgrammeUnit struct {
	ProgrammeID string `json:"programme_id" db:"programme_id"`
	UnitID      string `json:"unit_id" db:"unit_id"`
	YearOfStudy int    `json:"year_of_study" db:"year_of_study"`
}

type AcademicYear struct {
	ID        string    `json:"id" db:"id"`
	Code      string    `json:"code" db:"code"` // eg. 2024/2025
	StartDate time.Time `json:"start_date" db:"start_date"`
	EndDate   time.Time `json:"end_date" db:"end_date"`
}

type Semester struct {
	ID             string    `json:"id" db:"id"`
	AcademicYearID string    `json:"academic_year_id" db:"academic_year_id"`
	Number         int       `json:"number" db:"number"` // 1..3
	StartDate      time.Time `json:"start_date" db:"start_date"`
	EndDate        time.Time `json:"end_date" db:"end_date"`
}

type Unit struct {
	ID      string `json:"id" db:"id"`
	Code    string `json:"code" db:"code"`
	Name    string `json:"name" db:"name"`
	Credits int    `json:"credits" db:"credits"`
}

type Student struct {
	ID                 string      `json:"id" db:"id"`
	UserID             null.String `json:"user_id" db:"user_id"`
	RegistrationNumber string      `json:"registration_number" db:"registration_number"`
	Name               string      `json:"name" db:"name"`
	Email              string      `json:"email" db:"email"`
	ProgrammeID        string      `json:"programme_id" db:"programme_id"`
	CurrentYear        int         `json:"current_year" db:"current_year"`
	IsActive           bool        `json:"is_active" db:"is_active"`
	CreatedAt          time.Time   `json:"created_at" db:"created_at"`
}

type Enrollment struct {
	ID         string           `json:"id" db:"id"`
	StudentID  string           `json:"student_id" db:"student_id"`
	UnitID     string           `json:"unit_id" db:"unit_id"`
	SemesterID string           `json:"semester_id" db:"semester_id"`
	Status     EnrollmentStatus `json:"status" db:"status"`
	EnrolledAt time.Time        `json:"enrolled_at" db:"enrolled_at"`
}

func (e Enrollment) IsDropped() bool {
	return e.Status == StatusDropped
}

// Allocation grants a lecturer grading authority over a unit for one semester.
type Allocation struct {
	ID         string `json:"id" db:"id"`
	LecturerID string `json:"lecturer_id" db:"lecturer_id"`
	UnitID     string `json:"unit_id" db:"unit_id"`
	SemesterID string `json:"semester_id" db:"semester_id"`
}

type EnrollmentFilter struct {
	StudentID      string
	SemesterIDs    []string
	IncludeDropped bool
}
