package academic

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/alama/core"
	"github.com/trezcool/alama/core/user"
)

var (
	// errors
	ErrProgrammeNotFound    = core.NewNotFoundError("programme")
	ErrAcademicYearNotFound = core.NewNotFoundError("academic year")
	ErrSemesterNotFound     = core.NewNotFoundError("semester")
	ErrUnitNotFound         = core.NewNotFoundError("unit")
	ErrStudentNotFound      = core.NewNotFoundError("student")
	ErrEnrollmentNotFound   = core.NewNotFoundError("enrollment")
)

type (
	Repository interface {
		CreateProgramme(ctx context.Context, prog Programme, exec ...core.DBExecutor) (Programme, error)
		GetProgramme(ctx context.Context, id string, exec ...core.DBExecutor) (Programme, error)
		GetProgrammeByCode(ctx context.Context, code string, exec ...core.DBExecutor) (Programme, error)
		// AddProgrammeUnit links a unit to a programme; linking twice is a no-op.
		AddProgrammeUnit(ctx context.Context, pu ProgrammeUnit, exec ...core.DBExecutor) error

		CreateAcademicYear(ctx context.Context, year AcademicYear, exec ...core.DBExecutor) (AcademicYear, error)
		GetAcademicYear(ctx context.Context, id string, exec ...core.DBExecutor) (AcademicYear, error)
		GetAcademicYearByCode(ctx context.Context, code string, exec ...core.DBExecutor) (AcademicYear, error)

		CreateSemester(ctx context.Context, sem Semester, exec ...core.DBExecutor) (Semester, error)
		GetSemester(ctx context.Context, id string, exec ...core.DBExecutor) (Semester, error)
		// QuerySemesters returns the semesters of an academic year ordered by number.
		QuerySemesters(ctx context.Context, yearID string, exec ...core.DBExecutor) ([]Semester, error)

		CreateUnit(ctx context.Context, unit Unit, exec ...core.DBExecutor) (Unit, error)
		GetUnit(ctx context.Context, id string, exec ...core.DBExecutor) (Unit, error)
		GetUnitByCode(ctx context.Context, code string, exec ...core.DBExecutor) (Unit, error)

		CreateStudent(ctx context.Context, std Student, exec ...core.DBExecutor) (Student, error)
		GetStudent(ctx context.Context, id string, exec ...core.DBExecutor) (Student, error)
		GetStudentByRegistrationNumber(ctx context.Context, regNo string, exec ...core.DBExecutor) (Student, error)

		CreateEnrollment(ctx context.Context, enr Enrollment, exec ...core.DBExecutor) (Enrollment, error)
		GetEnrollment(ctx context.Context, studentID, unitID, semesterID string, exec ...core.DBExecutor) (Enrollment, error)
		QueryEnrollments(ctx context.Context, filter EnrollmentFilter, exec ...core.DBExecutor) ([]Enrollment, error)

		CreateAllocation(ctx context.Context, alloc Allocation, exec ...core.DBExecutor) (Allocation, error)
		HasAllocation(ctx context.Context, lecturerID, unitID, semesterID string, exec ...core.DBExecutor) (bool, error)
	}

	Service interface {
		// CanGrade reports whether usr holds grading authority for the unit in the semester.
		CanGrade(ctx context.Context, usr user.User, unitID, semesterID string) (bool, error)

		GetProgramme(ctx context.Context, id string) (Programme, error)
		GetAcademicYear(ctx context.Context, id string) (AcademicYear, error)
		GetSemester(ctx context.Context, id string) (Semester, error)
		QuerySemesters(ctx context.Context, yearID string) ([]Semester, error)
		GetUnit(ctx context.Context, id string) (Unit, error)
		GetUnitByCode(ctx context.Context, code string) (Unit, error)
		GetStudent(ctx context.Context, id string) (Student, error)
		GetStudentByRegistrationNumber(ctx context.Context, regNo string) (Student, error)
		GetEnrollment(ctx context.Context, studentID, unitID, semesterID string) (Enrollment, error)
		QueryEnrollments(ctx context.Context, filter EnrollmentFilter) ([]Enrollment, error)

		// Import creates the catalog records that do not exist yet, in a single transaction.
		Import(ctx context.Context, cat Catalog) (ImportSummary, error)
	}

	service struct {
		repo     Repository
		txr      core.Transactor
		usrSvc   user.Service
		validate *validator.Validate
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, txr core.Transactor, usrSvc user.Service, validate *validator.Validate) Service {
	return &service{
		repo:     repo,
		txr:      txr,
		usrSvc:   usrSvc,
		validate: validate,
	}
}

func (svc *service) CanGrade(ctx context.Context, usr user.User, unitID, semesterID string) (bool, error) {
	if !usr.IsActive {
		return false, nil
	}
	if usr.IsAdmin() {
		return true, nil
	}
	if !usr.IsLecturer() {
		return false, nil
	}
	ok, err := svc.repo.HasAllocation(ctx, usr.ID, unitID, semesterID)
	return ok, errors.Wrap(err, "checking allocation")
}

func (svc *service) GetProgramme(ctx context.Context, id string) (Programme, error) {
	return svc.repo.GetProgramme(ctx, id)
}

func (svc *service) GetAcademicYear(ctx context.Context, id string) (AcademicYear, error) {
	return svc.repo.GetAcademicYear(ctx, id)
}

func (svc *service) GetSemester(ctx context.Context, id string) (Semester, error) {
	return svc.repo.GetSemester(ctx, id)
}

func (svc *service) QuerySemesters(ctx context.Context, yearID string) ([]Semester, error) {
	return svc.repo.QuerySemesters(ctx, yearID)
}

func (svc *service) GetUnit(ctx context.Context, id string) (Unit, error) {
	return svc.repo.GetUnit(ctx, id)
}

func (svc *service) GetUnitByCode(ctx context.Context, code string) (Unit, error) {
	return svc.repo.GetUnitByCode(ctx, core.CleanString(code))
}

func (svc *service) GetStudent(ctx context.Context, id string) (Student, error) {
	return svc.repo.GetStudent(ctx, id)
}

func (svc *service) GetStudentByRegistrationNumber(ctx context.Context, regNo string) (Student, error) {
	return svc.repo.GetStudentByRegistrationNumber(ctx, core.CleanString(regNo))
}

func (svc *service) GetEnrollment(ctx context.Context, studentID, unitID, semesterID string) (Enrollment, error) {
	return svc.repo.GetEnrollment(ctx, studentID, unitID, semesterID)
}

func (svc *service) QueryEnrollments(ctx context.Context, filter EnrollmentFilter) ([]Enrollment, error) {
	return svc.repo.QueryEnrollments(ctx, filter)
}

func (svc *service) Import(ctx context.Context, cat Catalog) (ImportSummary, error) {
	var sum ImportSummary
	if err := svc.validate.Struct(cat); err != nil {
		return sum, err
	}

	err := svc.txr.InTx(ctx, func(exec core.DBExecutor) error {
		imp := importer{ctx: ctx, svc: svc, exec: exec, sum: &sum}
		return imp.run(cat)
	})
	return sum, err
}

// importer resolves catalog codes against the records created so far in the transaction.
type importer struct {
	ctx  context.Context
	svc  *service
	exec core.DBExecutor
	sum  *ImportSummary
}

func (imp importer) run(cat Catalog) error {
	for _, cu := range cat.Units {
		if err := imp.unit(cu); err != nil {
			return errors.Wrapf(err, "importing unit %s", cu.Code)
		}
	}
	for _, cp := range cat.Programmes {
		if err := imp.programme(cp); err != nil {
			return errors.Wrapf(err, "importing programme %s", cp.Code)
		}
	}
	for _, cy := range cat.AcademicYears {
		if err := imp.academicYear(cy); err != nil {
			return errors.Wrapf(err, "importing academic year %s", cy.Code)
		}
	}
	for _, cs := range cat.Students {
		if err := imp.student(cs); err != nil {
			return errors.Wrapf(err, "importing student %s", cs.RegistrationNumber)
		}
	}
	for _, ce := range cat.Enrollments {
		if err := imp.enrollment(ce); err != nil {
			return errors.Wrapf(err, "importing enrollment %s/%s", ce.Student, ce.Unit)
		}
	}
	for _, ca := range cat.Allocations {
		if err := imp.allocation(ca); err != nil {
			return errors.Wrapf(err, "importing allocation %s/%s", ca.Lecturer, ca.Unit)
		}
	}
	return nil
}

func (imp importer) unit(cu CatalogUnit) error {
	repo := imp.svc.repo
	code := core.CleanString(cu.Code)
	if _, err := repo.GetUnitByCode(imp.ctx, code, imp.exec); err == nil {
		return nil
	} else if errors.Cause(err) != ErrUnitNotFound {
		return err
	}
	unit := Unit{ID: uuid.New().String(), Code: code, Name: core.CleanString(cu.Name), Credits: cu.Credits}
	if _, err := repo.CreateUnit(imp.ctx, unit, imp.exec); err != nil {
		return err
	}
	imp.sum.Units++
	return nil
}

func (imp importer) programme(cp CatalogProgramme) error {
	repo := imp.svc.repo
	code := core.CleanString(cp.Code)
	prog, err := repo.GetProgrammeByCode(imp.ctx, code, imp.exec)
	switch {
	case errors.Cause(err) == ErrProgrammeNotFound:
		prog = Programme{
			ID:             uuid.New().String(),
			Code:           code,
			Name:           core.CleanString(cp.Name),
			PromotionRules: cp.Rules,
			CreatedAt:      time.Now().UTC(),
		}
		if prog, err = repo.CreateProgramme(imp.ctx, prog, imp.exec); err != nil {
			return err
		}
		imp.sum.Programmes++
	case err != nil:
		return err
	}

	for _, cpu := range cp.Units {
		unit, err := repo.GetUnitByCode(imp.ctx, core.CleanString(cpu.Code), imp.exec)
		if err != nil {
			return err
		}
		pu := ProgrammeUnit{ProgrammeID: prog.ID, UnitID: unit.ID, YearOfStudy: cpu.Year}
		if err = repo.AddProgrammeUnit(imp.ctx, pu, imp.exec); err != nil {
			return err
		}
	}
	return nil
}

func (imp importer) academicYear(cy CatalogYear) error {
	repo := imp.svc.repo
	code := core.CleanString(cy.Code)
	start, end, err := parseDateRange(cy.StartDate, cy.EndDate)
	if err != nil {
		return err
	}

	year, err := repo.GetAcademicYearByCode(imp.ctx, code, imp.exec)
	switch {
	case errors.Cause(err) == ErrAcademicYearNotFound:
		year = AcademicYear{ID: uuid.New().String(), Code: code, StartDate: start, EndDate: end}
		if year, err = repo.CreateAcademicYear(imp.ctx, year, imp.exec); err != nil {
			return err
		}
		imp.sum.AcademicYears++
	case err != nil:
		return err
	}

	existing, err := repo.QuerySemesters(imp.ctx, year.ID, imp.exec)
	if err != nil {
		return err
	}
	numbers := make(map[int]bool, len(existing))
	for _, sem := range existing {
		numbers[sem.Number] = true
	}
	for _, cs := range cy.Semesters {
		if numbers[cs.Number] {
			continue
		}
		start, end, err := parseDateRange(cs.StartDate, cs.EndDate)
		if err != nil {
			return err
		}
		if start.Before(year.StartDate) || end.After(year.EndDate) {
			return core.NewFieldValidationError("semesters", fmt.Sprintf("semester %d is outside of the academic year", cs.Number))
		}
		sem := Semester{ID: uuid.New().String(), AcademicYearID: year.ID, Number: cs.Number, StartDate: start, EndDate: end}
		if _, err = repo.CreateSemester(imp.ctx, sem, imp.exec); err != nil {
			return err
		}
		numbers[cs.Number] = true
		imp.sum.Semesters++
	}
	return nil
}

func (imp importer) student(cs CatalogStudent) error {
	repo := imp.svc.repo
	regNo := core.CleanString(cs.RegistrationNumber)
	if _, err := repo.GetStudentByRegistrationNumber(imp.ctx, regNo, imp.exec); err == nil {
		return nil
	} else if errors.Cause(err) != ErrStudentNotFound {
		return err
	}

	prog, err := repo.GetProgrammeByCode(imp.ctx, core.CleanString(cs.Programme), imp.exec)
	if err != nil {
		return err
	}
	std := Student{
		ID:                 uuid.New().String(),
		RegistrationNumber: regNo,
		Name:               core.CleanString(cs.Name),
		Email:              core.CleanString(cs.Email, true /* lower */),
		ProgrammeID:        prog.ID,
		CurrentYear:        cs.CurrentYear,
		IsActive:           !cs.Inactive,
		CreatedAt:          time.Now().UTC(),
	}
	if cs.Username != "" {
		usr, err := imp.svc.usrSvc.GetByUsernameOrEmail(imp.ctx, cs.Username)
		if err != nil {
			return err
		}
		std.UserID = null.StringFrom(usr.ID)
	}
	if _, err = repo.CreateStudent(imp.ctx, std, imp.exec); err != nil {
		return err
	}
	imp.sum.Students++
	return nil
}

func (imp importer) semester(yearCode string, number int) (Semester, error) {
	repo := imp.svc.repo
	year, err := repo.GetAcademicYearByCode(imp.ctx, core.CleanString(yearCode), imp.exec)
	if err != nil {
		return Semester{}, err
	}
	sems, err := repo.QuerySemesters(imp.ctx, year.ID, imp.exec)
	if err != nil {
		return Semester{}, err
	}
	for _, sem := range sems {
		if sem.Number == number {
			return sem, nil
		}
	}
	return Semester{}, ErrSemesterNotFound
}

func (imp importer) enrollment(ce CatalogEnrollment) error {
	repo := imp.svc.repo
	std, err := repo.GetStudentByRegistrationNumber(imp.ctx, core.CleanString(ce.Student), imp.exec)
	if err != nil {
		return err
	}
	unit, err := repo.GetUnitByCode(imp.ctx, core.CleanString(ce.Unit), imp.exec)
	if err != nil {
		return err
	}
	sem, err := imp.semester(ce.Year, ce.Semester)
	if err != nil {
		return err
	}

	if _, err = repo.GetEnrollment(imp.ctx, std.ID, unit.ID, sem.ID, imp.exec); err == nil {
		return nil
	} else if errors.Cause(err) != ErrEnrollmentNotFound {
		return err
	}

	status := ce.Status
	if status == "" {
		status = StatusEnrolled
	}
	enr := Enrollment{
		ID:         uuid.New().String(),
		StudentID:  std.ID,
		UnitID:     unit.ID,
		SemesterID: sem.ID,
		Status:     status,
		EnrolledAt: time.Now().UTC(),
	}
	if _, err = repo.CreateEnrollment(imp.ctx, enr, imp.exec); err != nil {
		return err
	}
	imp.sum.Enrollments++
	return nil
}

func (imp importer) allocation(ca CatalogAllocation) error {
	repo := imp.svc.repo
	lecturer, err := imp.svc.usrSvc.GetByUsernameOrEmail(imp.ctx, ca.Lecturer)
	if err != nil {
		return err
	}
	if !lecturer.IsLecturer() {
		return core.NewFieldValidationError("lecturer", fmt.Sprintf("%s is not a lecturer", ca.Lecturer))
	}
	unit, err := repo.GetUnitByCode(imp.ctx, core.CleanString(ca.Unit), imp.exec)
	if err != nil {
		return err
	}
	sem, err := imp.semester(ca.Year, ca.Semester)
	if err != nil {
		return err
	}

	ok, err := repo.HasAllocation(imp.ctx, lecturer.ID, unit.ID, sem.ID, imp.exec)
	if err != nil || ok {
		return err
	}
	alloc := Allocation{ID: uuid.New().String(), LecturerID: lecturer.ID, UnitID: unit.ID, SemesterID: sem.ID}
	if _, err = repo.CreateAllocation(imp.ctx, alloc, imp.exec); err != nil {
		return err
	}
	imp.sum.Allocations++
	return nil
}

func parseDateRange(startStr, endStr string) (time.Time, time.Time, error) {
	start, err := core.ParseDate(startStr)
	if err != nil {
		return time.Time{}, time.Time{}, core.NewFieldValidationError("start_date", err.Error())
	}
	end, err := core.ParseDate(endStr)
	if err != nil {
		return time.Time{}, time.Time{}, core.NewFieldValidationError("end_date", err.Error())
	}
	if !end.After(start) {
		return time.Time{}, time.Time{}, core.NewFieldValidationError("end_date", "must be after start_date")
	}
	return start, end, nil
}
