package academic

// Catalog describes academic records to import in bulk. Records are referenced by their codes.
type Catalog struct {
	Units         []CatalogUnit       `yaml:"units" validate:"dive"`
	Programmes    []CatalogProgramme  `yaml:"programmes" validate:"dive"`
	AcademicYears []CatalogYear       `yaml:"academic_years" validate:"dive"`
	Students      []CatalogStudent    `yaml:"students" validate:"dive"`
	Enrollments   []CatalogEnrollment `yaml:"enrollments" validate:"dive"`
	Allocations   []CatalogAllocation `yaml:"allocations" validate:"dive"`
}

type CatalogUnit struct {
	Code    string `yaml:"code" validate:"required,code"`
	Name    string `yaml:"name" validate:"required"`
	Credits int    `yaml:"credits" validate:"gte=1"`
}

type CatalogProgramme struct {
	Code  string                 `yaml:"code" validate:"required,code"`
	Name  string                 `yaml:"name" validate:"required"`
	Rules PromotionRules         `yaml:"rules"`
	Units []CatalogProgrammeUnit `yaml:"units" validate:"dive"`
}

type CatalogProgrammeUnit struct {
	Code string `yaml:"code" validate:"required,code"`
	Year int    `yaml:"year" validate:"gte=1"`
}

type CatalogYear struct {
	Code      string            `yaml:"code" validate:"required,code"`
	StartDate string            `yaml:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate   string            `yaml:"end_date" validate:"required,datetime=2006-01-02"`
	Semesters []CatalogSemester `yaml:"semesters" validate:"dive"`
}

type CatalogSemester struct {
	Number    int    `yaml:"number" validate:"gte=1,lte=3"`
	StartDate string `yaml:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate   string `yaml:"end_date" validate:"required,datetime=2006-01-02"`
}

type CatalogStudent struct {
	RegistrationNumber string `yaml:"registration_number" validate:"required,code"`
	Name               string `yaml:"name" validate:"required"`
	Email              string `yaml:"email" validate:"omitempty,email"`
	Programme          string `yaml:"programme" validate:"required"`
	CurrentYear        int    `yaml:"current_year" validate:"gte=1"`
	Username           string `yaml:"username"` // optional account link
	Inactive           bool   `yaml:"inactive"`
}

type CatalogEnrollment struct {
	Student  string           `yaml:"student" validate:"required"` // registration number
	Unit     string           `yaml:"unit" validate:"required"`
	Year     string           `yaml:"year" validate:"required"`
	Semester int              `yaml:"semester" validate:"gte=1,lte=3"`
	Status   EnrollmentStatus `yaml:"status" validate:"omitempty,oneof=ENROLLED DROPPED COMPLETED FAILED"`
}

type CatalogAllocation struct {
	Lecturer string `yaml:"lecturer" validate:"required"` // username or email
	Unit     string `yaml:"unit" validate:"required"`
	Year     string `yaml:"year" validate:"required"`
	Semester int    `yaml:"semester" validate:"gte=1,lte=3"`
}

// ImportSummary counts the records created by an import. Existing records are reused.
type ImportSummary struct {
	Units         int `json:"units"`
	Programmes    int `json:"programmes"`
	AcademicYears int `json:"academic_years"`
	Semesters     int `json:"semesters"`
	Students      int `json:"students"`
	Enrollments   int `json:"enrollments"`
	Allocations   int `json:"allocations"`
}
