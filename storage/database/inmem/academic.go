package inmemdb

import (
	"context"
	"sort"

	"github.com/trezcool/alama/core"
	"github.com/trezcool/alama/core/academic"
)

type academicRepository struct {
	db *DB
}

var _ academic.Repository = (*academicRepository)(nil)

func NewAcademicRepository(db *DB) academic.Repository {
	return &academicRepository{db: db}
}

func (repo *academicRepository) CreateProgramme(_ context.Context, prog academic.Programme, _ ...core.DBExecutor) (academic.Programme, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()
	repo.db.programmes[prog.ID] = prog
	return prog, nil
}

func (repo *academicRepository) GetProgramme(_ context.Context, id string, _ ...core.DBExecutor) (academic.Programme, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	if prog, ok := repo.db.programmes[id]; ok {
		return prog, nil
	}
	return academic.Programme{}, academic.ErrProgrammeNotFound
}

func (repo *academicRepository) GetProgrammeByCode(_ context.Context, code string, _ ...core.DBExecutor) (academic.Programme, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	for _, prog := range repo.db.programmes {
		if prog.Code == code {
			return prog, nil
		}
	}
	return academic.Programme{}, academic.ErrProgrammeNotFound
}

func (repo *academicRepository) AddProgrammeUnit(_ context.Context, pu academic.ProgrammeUnit, _ ...core.DBExecutor) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()
	for _, existing := range repo.db.programmeUnits {
		if existing.ProgrammeID == pu.ProgrammeID && existing.UnitID == pu.UnitID {
			return nil
		}
	}
	repo.db.programmeUnits = append(repo.db.programmeUnits, pu)
	return nil
}

func (repo *academicRepository) CreateAcademicYear(_ context.Context, year academic.AcademicYear, _ ...core.DBExecutor) (academic.AcademicYear, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()
	repo.db.years[year.ID] = year
	return year, nil
}

func (repo *academicRepository) GetAcademicYear(_ context.Context, id string, _ ...core.DBExecutor) (academic.AcademicYear, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	if year, ok := repo.db.years[id]; ok {
		return year, nil
	}
	return academic.AcademicYear{}, academic.ErrAcademicYearNotFound
}

func (repo *academicRepository) GetAcademicYearByCode(_ context.Context, code string, _ ...core.DBExecutor) (academic.AcademicYear, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	for _, year := range repo.db.years {
		if year.Code == code {
			return year, nil
		}
	}
	return academic.AcademicYear{}, academic.ErrAcademicYearNotFound
}

func (repo *academicRepository) CreateSemester(_ context.Context, sem academic.Semester, _ ...core.DBExecutor) (academic.Semester, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()
	repo.db.semesters[sem.ID] = sem
	return sem, nil
}

func (repo *academicRepository) GetSemester(_ context.Context, id string, _ ...core.DBExecutor) (academic.Semester, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	if sem, ok := repo.db.semesters[id]; ok {
		return sem, nil
	}
	return academic.Semester{}, academic.ErrSemesterNotFound
}

func (repo *academicRepository) QuerySemesters(_ context.Context, yearID string, _ ...core.DBExecutor) ([]academic.Semester, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	sems := make([]academic.Semester, 0)
	for _, sem := range repo.db.semesters {
		if sem.AcademicYearID == yearID {
			sems = append(sems, sem)
		}
	}
	sort.Slice(sems, func(i, j int) bool { return sems[i].Number < sems[j].Number })
	return sems, nil
}

func (repo *academicRepository) CreateUnit(_ context.Context, unit academic.Unit, _ ...core.DBExecutor) (academic.Unit, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()
	repo.db.units[unit.ID] = unit
	return unit, nil
}

func (repo *academicRepository) GetUnit(_ context.Context, id string, _ ...core.DBExecutor) (academic.Unit, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	if unit, ok := repo.db.units[id]; ok {
		return unit, nil
	}
	return academic.Unit{}, academic.ErrUnitNotFound
}

func (repo *academicRepository) GetUnitByCode(_ context.Context, code string, _ ...core.DBExecutor) (academic.Unit, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	for _, unit := range repo.db.units {
		if unit.Code == code {
			return unit, nil
		}
	}
	return academic.Unit{}, academic.ErrUnitNotFound
}

func (repo *academicRepository) CreateStudent(_ context.Context, std academic.Student, _ ...core.DBExecutor) (academic.Student, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()
	repo.db.students[std.ID] = std
	return std, nil
}

func (repo *academicRepository) GetStudent(_ context.Context, id string, _ ...core.DBExecutor) (academic.Student, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	if std, ok := repo.db.students[id]; ok {
		return std, nil
	}
	return academic.Student{}, academic.ErrStudentNotFound
}

func (repo *academicRepository) GetStudentByRegistrationNumber(_ context.Context, regNo string, _ ...core.DBExecutor) (academic.Student, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	for _, std := range repo.db.students {
		if std.RegistrationNumber == regNo {
			return std, nil
		}
	}
	return academic.Student{}, academic.ErrStudentNotFound
}

func (repo *academicRepository) CreateEnrollment(_ context.Context, enr academic.Enrollment, _ ...core.DBExecutor) (academic.Enrollment, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()
	repo.db.enrollments[enr.ID] = enr
	return enr, nil
}

func (repo *academicRepository) GetEnrollment(_ context.Context, studentID, unitID, semesterID string, _ ...core.DBExecutor) (academic.Enrollment, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	for _, enr := range repo.db.enrollments {
		if enr.StudentID == studentID && enr.UnitID == unitID && enr.SemesterID == semesterID {
			return enr, nil
		}
	}
	return academic.Enrollment{}, academic.ErrEnrollmentNotFound
}

func (repo *academicRepository) QueryEnrollments(_ context.Context, filter academic.EnrollmentFilter, _ ...core.DBExecutor) ([]academic.Enrollment, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	semesters := make(map[string]bool, len(filter.SemesterIDs))
	for _, id := range filter.SemesterIDs {
		semesters[id] = true
	}
	enrs := make([]academic.Enrollment, 0)
	for _, enr := range repo.db.enrollments {
		if filter.StudentID != "" && enr.StudentID != filter.StudentID {
			continue
		}
		if len(semesters) > 0 && !semesters[enr.SemesterID] {
			continue
		}
		if enr.IsDropped() && !filter.IncludeDropped {
			continue
		}
		enrs = append(enrs, enr)
	}
	sort.Slice(enrs, func(i, j int) bool {
		if enrs[i].EnrolledAt.Equal(enrs[j].EnrolledAt) {
			return enrs[i].ID < enrs[j].ID
		}
		return enrs[i].EnrolledAt.Before(enrs[j].EnrolledAt)
	})
	return enrs, nil
}

func (repo *academicRepository) CreateAllocation(_ context.Context, alloc academic.Allocation, _ ...core.DBExecutor) (academic.Allocation, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()
	repo.db.allocations[alloc.ID] = alloc
	return alloc, nil
}

func (repo *academicRepository) HasAllocation(_ context.Context, lecturerID, unitID, semesterID string, _ ...core.DBExecutor) (bool, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	for _, alloc := range repo.db.allocations {
		if alloc.LecturerID == lecturerID && alloc.UnitID == unitID && alloc.SemesterID == semesterID {
			return true, nil
		}
	}
	return false, nil
}
