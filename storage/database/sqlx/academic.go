package sqlxrepos

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/trezcool/alama/core"
	"github.com/trezcool/alama/core/academic"
)

const (
	programmeColumns  = `id, code, name, min_units_passed, min_gpa, max_retakes, exclusion_gpa, created_at`
	yearColumns       = `id, code, start_date, end_date`
	semesterColumns   = `id, academic_year_id, number, start_date, end_date`
	unitColumns       = `id, code, name, credits`
	studentColumns    = `id, user_id, registration_number, name, email, programme_id, current_year, is_active, created_at`
	enrollmentColumns = `id, student_id, unit_id, semester_id, status, enrolled_at`
)

type academicRepository struct {
	base
}

var _ academic.Repository = (*academicRepository)(nil)

func NewAcademicRepository(db *sqlx.DB) academic.Repository {
	return &academicRepository{base{db: db}}
}

func (repo *academicRepository) CreateProgramme(ctx context.Context, prog academic.Programme, exec ...core.DBExecutor) (academic.Programme, error) {
	q := `INSERT INTO programmes (` + programmeColumns + `)
		VALUES (:id, :code, :name, :min_units_passed, :min_gpa, :max_retakes, :exclusion_gpa, :created_at)`
	if _, err := sqlx.NamedExecContext(ctx, repo.getExec(exec), q, prog); err != nil {
		return academic.Programme{}, errors.Wrap(err, "inserting programme")
	}
	return prog, nil
}

func (repo *academicRepository) GetProgramme(ctx context.Context, id string, exec ...core.DBExecutor) (academic.Programme, error) {
	var prog academic.Programme
	err := sqlx.GetContext(ctx, repo.getExec(exec), &prog, `SELECT `+programmeColumns+` FROM programmes WHERE id = $1`, id)
	if err != nil {
		return academic.Programme{}, trapNoRowsErr(err, academic.ErrProgrammeNotFound, "finding programme")
	}
	return prog, nil
}

func (repo *academicRepository) GetProgrammeByCode(ctx context.Context, code string, exec ...core.DBExecutor) (academic.Programme, error) {
	var prog academic.Programme
	err := sqlx.GetContext(ctx, repo.getExec(exec), &prog, `SELECT `+programmeColumns+` FROM programmes WHERE code = $1`, code)
	if err != nil {
		return academic.Programme{}, trapNoRowsErr(err, academic.ErrProgrammeNotFound, "finding programme by code")
	}
	return prog, nil
}

func (repo *academicRepository) AddProgrammeUnit(ctx context.Context, pu academic.ProgrammeUnit, exec ...core.DBExecutor) error {
	q := `INSERT INTO programme_units (programme_id, unit_id, year_of_study)
		VALUES (:programme_id, :unit_id, :year_of_study) ON CONFLICT (programme_id, unit_id) DO NOTHING`
	if _, err := sqlx.NamedExecContext(ctx, repo.getExec(exec), q, pu); err != nil {
		return errors.Wrap(err, "inserting programme unit")
	}
	return nil
}

func (repo *academicRepository) CreateAcademicYear(ctx context.Context, year academic.AcademicYear, exec ...core.DBExecutor) (academic.AcademicYear, error) {
	q := `INSERT INTO academic_years (` + yearColumns + `) VALUES (:id, :code, :start_date, :end_date)`
	if _, err := sqlx.NamedExecContext(ctx, repo.getExec(exec), q, year); err != nil {
		return academic.AcademicYear{}, errors.Wrap(err, "inserting academic year")
	}
	return year, nil
}

func (repo *academicRepository) GetAcademicYear(ctx context.Context, id string, exec ...core.DBExecutor) (academic.AcademicYear, error) {
	var year academic.AcademicYear
	err := sqlx.GetContext(ctx, repo.getExec(exec), &year, `SELECT `+yearColumns+` FROM academic_years WHERE id = $1`, id)
	if err != nil {
		return academic.AcademicYear{}, trapNoRowsErr(err, academic.ErrAcademicYearNotFound, "finding academic year")
	}
	return year, nil
}

func (repo *academicRepository) GetAcademicYearByCode(ctx context.Context, code string, exec ...core.DBExecutor) (academic.AcademicYear, error) {
	var year academic.AcademicYear
	err := sqlx.GetContext(ctx, repo.getExec(exec), &year, `SELECT `+yearColumns+` FROM academic_years WHERE code = $1`, code)
	if err != nil {
		return academic.AcademicYear{}, trapNoRowsErr(err, academic.ErrAcademicYearNotFound, "finding academic year by code")
	}
	return year, nil
}

func (repo *academicRepository) CreateSemester(ctx context.Context, sem academic.Semester, exec ...core.DBExecutor) (academic.Semester, error) {
	q := `INSERT INTO semesters (` + semesterColumns + `) VALUES (:id, :academic_year_id, :number, :start_date, :end_date)`
	if _, err := sqlx.NamedExecContext(ctx, repo.getExec(exec), q, sem); err != nil {
		return academic.Semester{}, errors.Wrap(err, "inserting semester")
	}
	return sem, nil
}

func (repo *academicRepository) GetSemester(ctx context.Context, id string, exec ...core.DBExecutor) (academic.Semester, error) {
	var sem academic.Semester
	err := sqlx.GetContext(ctx, repo.getExec(exec), &sem, `SELECT `+semesterColumns+` FROM semesters WHERE id = $1`, id)
	if err != nil {
		return academic.Semester{}, trapNoRowsErr(err, academic.ErrSemesterNotFound, "finding semester")
	}
	return sem, nil
}

func (repo *academicRepository) QuerySemesters(ctx context.Context, yearID string, exec ...core.DBExecutor) ([]academic.Semester, error) {
	sems := make([]academic.Semester, 0)
	err := sqlx.SelectContext(ctx, repo.getExec(exec), &sems,
		`SELECT `+semesterColumns+` FROM semesters WHERE academic_year_id = $1 ORDER BY number`, yearID)
	if err != nil {
		return nil, errors.Wrap(err, "querying semesters")
	}
	return sems, nil
}

func (repo *academicRepository) CreateUnit(ctx context.Context, unit academic.Unit, exec ...core.DBExecutor) (academic.Unit, error) {
	q := `INSERT INTO units (` + unitColumns + `) VALUES (:id, :code, :name, :credits)`
	if _, err := sqlx.NamedExecContext(ctx, repo.getExec(exec), q, unit); err != nil {
		return academic.Unit{}, errors.Wrap(err, "inserting unit")
	}
	return unit, nil
}

func (repo *academicRepository) GetUnit(ctx context.Context, id string, exec ...core.DBExecutor) (academic.Unit, error) {
	var unit academic.Unit
	err := sqlx.GetContext(ctx, repo.getExec(exec), &unit, `SELECT `+unitColumns+` FROM units WHERE id = $1`, id)
	if err != nil {
		return academic.Unit{}, trapNoRowsErr(err, academic.ErrUnitNotFound, "finding unit")
	}
	return unit, nil
}

func (repo *academicRepository) GetUnitByCode(ctx context.Context, code string, exec ...core.DBExecutor) (academic.Unit, error) {
	var unit academic.Unit
	err := sqlx.GetContext(ctx, repo.getExec(exec), &unit, `SELECT `+unitColumns+` FROM units WHERE code = $1`, code)
	if err != nil {
		return academic.Unit{}, trapNoRowsErr(err, academic.ErrUnitNotFound, "finding unit by code")
	}
	return unit, nil
}

func (repo *academicRepository) CreateStudent(ctx context.Context, std academic.Student, exec ...core.DBExecutor) (academic.Student, error) {
	q := `INSERT INTO students (` + studentColumns + `)
		VALUES (:id, :user_id, :registration_number, :name, :email, :programme_id, :current_year, :is_active, :created_at)`
	if _, err := sqlx.NamedExecContext(ctx, repo.getExec(exec), q, std); err != nil {
		return academic.Student{}, errors.Wrap(err, "inserting student")
	}
	return std, nil
}

func (repo *academicRepository) GetStudent(ctx context.Context, id string, exec ...core.DBExecutor) (academic.Student, error) {
	var std academic.Student
	err := sqlx.GetContext(ctx, repo.getExec(exec), &std, `SELECT `+studentColumns+` FROM students WHERE id = $1`, id)
	if err != nil {
		return academic.Student{}, trapNoRowsErr(err, academic.ErrStudentNotFound, "finding student")
	}
	return std, nil
}

func (repo *academicRepository) GetStudentByRegistrationNumber(ctx context.Context, regNo string, exec ...core.DBExecutor) (academic.Student, error) {
	var std academic.Student
	err := sqlx.GetContext(ctx, repo.getExec(exec), &std,
		`SELECT `+studentColumns+` FROM students WHERE registration_number = $1`, regNo)
	if err != nil {
		return academic.Student{}, trapNoRowsErr(err, academic.ErrStudentNotFound, "finding student by registration number")
	}
	return std, nil
}

func (repo *academicRepository) CreateEnrollment(ctx context.Context, enr academic.Enrollment, exec ...core.DBExecutor) (academic.Enrollment, error) {
	q := `INSERT INTO unit_enrollments (` + enrollmentColumns + `)
		VALUES (:id, :student_id, :unit_id, :semester_id, :status, :enrolled_at)`
	if _, err := sqlx.NamedExecContext(ctx, repo.getExec(exec), q, enr); err != nil {
		return academic.Enrollment{}, errors.Wrap(err, "inserting enrollment")
	}
	return enr, nil
}

func (repo *academicRepository) GetEnrollment(ctx context.Context, studentID, unitID, semesterID string, exec ...core.DBExecutor) (academic.Enrollment, error) {
	var enr academic.Enrollment
	q := `SELECT ` + enrollmentColumns + ` FROM unit_enrollments
		WHERE student_id = $1 AND unit_id = $2 AND semester_id = $3`
	if err := sqlx.GetContext(ctx, repo.getExec(exec), &enr, q, studentID, unitID, semesterID); err != nil {
		return academic.Enrollment{}, trapNoRowsErr(err, academic.ErrEnrollmentNotFound, "finding enrollment")
	}
	return enr, nil
}

func (repo *academicRepository) QueryEnrollments(ctx context.Context, filter academic.EnrollmentFilter, exec ...core.DBExecutor) ([]academic.Enrollment, error) {
	q := `SELECT ` + enrollmentColumns + ` FROM unit_enrollments
		WHERE ($1 = '' OR student_id = $1)
		AND (cardinality($2::text[]) = 0 OR semester_id = ANY($2))
		AND ($3 OR status <> $4)
		ORDER BY enrolled_at, id`
	enrs := make([]academic.Enrollment, 0)
	err := sqlx.SelectContext(ctx, repo.getExec(exec), &enrs, q,
		filter.StudentID, pq.Array(filter.SemesterIDs), filter.IncludeDropped, academic.StatusDropped)
	if err != nil {
		return nil, errors.Wrap(err, "querying enrollments")
	}
	return enrs, nil
}

func (repo *academicRepository) CreateAllocation(ctx context.Context, alloc academic.Allocation, exec ...core.DBExecutor) (academic.Allocation, error) {
	q := `INSERT INTO unit_allocations (id, lecturer_id, unit_id, semester_id)
		VALUES (:id, :lecturer_id, :unit_id, :semester_id)`
	if _, err := sqlx.NamedExecContext(ctx, repo.getExec(exec), q, alloc); err != nil {
		return academic.Allocation{}, errors.Wrap(err, "inserting allocation")
	}
	return alloc, nil
}

func (repo *academicRepository) HasAllocation(ctx context.Context, lecturerID, unitID, semesterID string, exec ...core.DBExecutor) (bool, error) {
	var exists bool
	q := `SELECT EXISTS (SELECT 1 FROM unit_allocations WHERE lecturer_id = $1 AND unit_id = $2 AND semester_id = $3)`
	if err := sqlx.GetContext(ctx, repo.getExec(exec), &exists, q, lecturerID, unitID, semesterID); err != nil {
		return false, errors.Wrap(err, "checking allocation")
	}
	return exists, nil
}
