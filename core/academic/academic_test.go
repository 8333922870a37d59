package academic_test

import (
	"context"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/alama/core"
	"github.com/trezcool/alama/core/academic"
	"github.com/trezcool/alama/core/user"
	"github.com/trezcool/alama/tests"
)

func catalog() academic.Catalog {
	return academic.Catalog{
		Units: []academic.CatalogUnit{
			{Code: "MA101", Name: "Calculus", Credits: 3},
			{Code: "MA102", Name: "Linear Algebra", Credits: 2},
		},
		Programmes: []academic.CatalogProgramme{{
			Code:  "BSC-MA",
			Name:  "BSc Mathematics",
			Rules: academic.PromotionRules{MinUnitsPassed: 1, MinGPA: 2, MaxRetakes: 1, ExclusionGPA: 1},
			Units: []academic.CatalogProgrammeUnit{{Code: "MA101", Year: 1}, {Code: "MA102", Year: 1}},
		}},
		AcademicYears: []academic.CatalogYear{{
			Code:      "2024/2025",
			StartDate: "2024-09-01",
			EndDate:   "2025-06-30",
			Semesters: []academic.CatalogSemester{
				{Number: 1, StartDate: "2024-09-02", EndDate: "2024-12-20"},
				{Number: 2, StartDate: "2025-01-13", EndDate: "2025-04-30"},
			},
		}},
		Students: []academic.CatalogStudent{
			{RegistrationNumber: "MA/001/2024", Name: "Ada", Email: "ADA@test.cd", Programme: "BSC-MA", CurrentYear: 1, Username: "ada"},
			{RegistrationNumber: "MA/002/2024", Name: "Bob", Programme: "BSC-MA", CurrentYear: 1, Inactive: true},
		},
		Enrollments: []academic.CatalogEnrollment{
			{Student: "MA/001/2024", Unit: "MA101", Year: "2024/2025", Semester: 1},
			{Student: "MA/001/2024", Unit: "MA102", Year: "2024/2025", Semester: 1, Status: academic.StatusDropped},
		},
		Allocations: []academic.CatalogAllocation{
			{Lecturer: "prof@test.cd", Unit: "MA101", Year: "2024/2025", Semester: 1},
		},
	}
}

func TestService_Import(t *testing.T) {
	env := testutil.NewEnv()
	ctx := context.Background()
	ada := testutil.CreateUser(t, env.UsrRepo, "Ada", "ada", "ada@test.cd", "", []string{user.RoleStudent}, true)
	prof := testutil.CreateUser(t, env.UsrRepo, "Prof", "prof", "prof@test.cd", "", []string{user.RoleLecturer}, true)

	sum, err := env.AcadSvc.Import(ctx, catalog())
	require.NoError(t, err)
	assert.Equal(t, academic.ImportSummary{
		Units:         2,
		Programmes:    1,
		AcademicYears: 1,
		Semesters:     2,
		Students:      2,
		Enrollments:   2,
		Allocations:   1,
	}, sum)

	std, err := env.AcadSvc.GetStudentByRegistrationNumber(ctx, "MA/001/2024")
	require.NoError(t, err)
	assert.Equal(t, "ada@test.cd", std.Email)
	assert.Equal(t, ada.ID, std.UserID.String)
	assert.True(t, std.IsActive)

	bob, err := env.AcadSvc.GetStudentByRegistrationNumber(ctx, "MA/002/2024")
	require.NoError(t, err)
	assert.False(t, bob.IsActive)
	assert.False(t, bob.UserID.Valid)

	prog, err := env.AcadSvc.GetProgramme(ctx, std.ProgrammeID)
	require.NoError(t, err)
	assert.Equal(t, "BSC-MA", prog.Code)
	assert.Equal(t, 2.0, prog.MinGPA)

	unit, err := env.AcadSvc.GetUnitByCode(ctx, "MA101")
	require.NoError(t, err)
	assert.Equal(t, 3, unit.Credits)

	enrs, err := env.AcadSvc.QueryEnrollments(ctx, academic.EnrollmentFilter{StudentID: std.ID})
	require.NoError(t, err)
	require.Len(t, enrs, 1)
	assert.Equal(t, unit.ID, enrs[0].UnitID)
	sem, err := env.AcadSvc.GetSemester(ctx, enrs[0].SemesterID)
	require.NoError(t, err)
	assert.Equal(t, 1, sem.Number)
	enrs, err = env.AcadSvc.QueryEnrollments(ctx, academic.EnrollmentFilter{StudentID: std.ID, IncludeDropped: true})
	require.NoError(t, err)
	assert.Len(t, enrs, 2)

	sems, err := env.AcadSvc.QuerySemesters(ctx, sem.AcademicYearID)
	require.NoError(t, err)
	require.Len(t, sems, 2)
	assert.Equal(t, 1, sems[0].Number)
	assert.Equal(t, 2, sems[1].Number)

	ok, err := env.AcadSvc.CanGrade(ctx, prof, unit.ID, sems[0].ID)
	require.NoError(t, err)
	assert.True(t, ok)

	// importing again reuses every existing record
	cat := catalog()
	cat.Units = append(cat.Units, academic.CatalogUnit{Code: "MA201", Name: "Analysis", Credits: 4})
	sum, err = env.AcadSvc.Import(ctx, cat)
	require.NoError(t, err)
	assert.Equal(t, academic.ImportSummary{Units: 1}, sum)
}

func TestService_Import_errors(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name     string
		mutate   func(cat *academic.Catalog)
		wantErr  error
		wantTag  string
		wantText string
	}{
		{name: "missing unit name", mutate: func(cat *academic.Catalog) { cat.Units[0].Name = "" }, wantTag: "required"},
		{name: "bad unit code", mutate: func(cat *academic.Catalog) { cat.Units[0].Code = "MA 101" }, wantTag: "code"},
		{name: "bad registration number", mutate: func(cat *academic.Catalog) { cat.Students[0].RegistrationNumber = "MA.001" }, wantTag: "code"},
		{name: "bad semester number", mutate: func(cat *academic.Catalog) { cat.AcademicYears[0].Semesters[0].Number = 4 }, wantTag: "lte"},
		{name: "bad status", mutate: func(cat *academic.Catalog) { cat.Enrollments[0].Status = "lol" }, wantTag: "oneof"},
		{
			name:     "semester outside of the year",
			mutate:   func(cat *academic.Catalog) { cat.AcademicYears[0].Semesters[1].EndDate = "2025-07-31" },
			wantText: "semester 2 is outside of the academic year",
		},
		{
			name:     "year ending before it starts",
			mutate:   func(cat *academic.Catalog) { cat.AcademicYears[0].EndDate = "2024-08-31" },
			wantText: "must be after start_date",
		},
		{name: "unknown unit", mutate: func(cat *academic.Catalog) { cat.Programmes[0].Units[0].Code = "lol" }, wantErr: academic.ErrUnitNotFound},
		{name: "unknown programme", mutate: func(cat *academic.Catalog) { cat.Students[0].Programme = "lol" }, wantErr: academic.ErrProgrammeNotFound},
		{name: "unknown account", mutate: func(cat *academic.Catalog) { cat.Students[0].Username = "lol" }, wantErr: user.ErrNotFound},
		{name: "unknown semester", mutate: func(cat *academic.Catalog) { cat.Enrollments[0].Semester = 3 }, wantErr: academic.ErrSemesterNotFound},
		{name: "unknown student", mutate: func(cat *academic.Catalog) { cat.Enrollments[0].Student = "lol" }, wantErr: academic.ErrStudentNotFound},
		{name: "unknown year", mutate: func(cat *academic.Catalog) { cat.Enrollments[0].Year = "lol" }, wantErr: academic.ErrAcademicYearNotFound},
		{name: "unknown lecturer", mutate: func(cat *academic.Catalog) { cat.Allocations[0].Lecturer = "lol" }, wantErr: user.ErrNotFound},
		{name: "not a lecturer", mutate: func(cat *academic.Catalog) { cat.Allocations[0].Lecturer = "ada" }, wantText: "ada is not a lecturer"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			env := testutil.NewEnv()
			testutil.CreateUser(t, env.UsrRepo, "Ada", "ada", "ada@test.cd", "", []string{user.RoleStudent}, true)
			testutil.CreateUser(t, env.UsrRepo, "Prof", "prof", "prof@test.cd", "", []string{user.RoleLecturer}, true)

			cat := catalog()
			if tt.mutate != nil {
				tt.mutate(&cat)
			}
			_, err := env.AcadSvc.Import(ctx, cat)
			require.Error(t, err)

			switch {
			case tt.wantTag != "":
				verrs, ok := err.(validator.ValidationErrors)
				require.True(t, ok, "got %v", err)
				assert.Equal(t, tt.wantTag, verrs[0].Tag())
			case tt.wantText != "":
				verr, ok := errors.Cause(err).(*core.ValidationError)
				require.True(t, ok, "got %v", err)
				assert.Equal(t, tt.wantText, verr.Fields[0].Error)
			default:
				assert.Equal(t, tt.wantErr, errors.Cause(err))
			}
		})
	}
}

func TestService_CanGrade(t *testing.T) {
	env := testutil.NewEnv()
	f := testutil.NewFaculty(t, env)
	ctx := context.Background()

	inactiveAdmin := testutil.CreateUser(t, env.UsrRepo, "Former", "former", "former@test.cd", "", []string{user.RoleAdmin}, false)

	tests := []struct {
		name string
		usr  user.User
		unit academic.Unit
		sem  academic.Semester
		want bool
	}{
		{name: "admin", usr: f.Admin, unit: f.Unit2, sem: f.Sem2, want: true},
		{name: "inactive admin", usr: inactiveAdmin, unit: f.Unit1, sem: f.Sem1},
		{name: "allocated lecturer", usr: f.Lecturer, unit: f.Unit1, sem: f.Sem1, want: true},
		{name: "other unit", usr: f.Lecturer, unit: f.Unit2, sem: f.Sem1},
		{name: "other semester", usr: f.Lecturer, unit: f.Unit1, sem: f.Sem2},
		{name: "student", usr: f.StudentUser, unit: f.Unit1, sem: f.Sem1},
	}
	for _, tt := range tests {
		ok, err := env.AcadSvc.CanGrade(ctx, tt.usr, tt.unit.ID, tt.sem.ID)
		require.NoError(t, err, tt.name)
		assert.Equal(t, tt.want, ok, tt.name)
	}
}
