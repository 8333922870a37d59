package testutil

import (
	"context"
	"io"
	"log"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/alama/core"
	"github.com/trezcool/alama/core/academic"
	"github.com/trezcool/alama/core/grade"
	"github.com/trezcool/alama/core/mark"
	"github.com/trezcool/alama/core/progression"
	"github.com/trezcool/alama/core/scheme"
	"github.com/trezcool/alama/core/user"
	logsvc "github.com/trezcool/alama/services/logger"
	inmemdb "github.com/trezcool/alama/storage/database/inmem"
)

// NewTestConfig returns the default configuration in test mode.
func NewTestConfig() *core.Config {
	conf := core.NewConfig()
	conf.TestMode = true
	conf.Server.DisableReqLogs = true
	return conf
}

// NewLogger returns a logger that discards everything and never reports to rollbar.
func NewLogger(conf *core.Config) core.Logger {
	logger := logsvc.NewRollbarLogger(log.New(io.Discard, "", 0), conf)
	logger.Enable(false)
	return logger
}

// NewValidator returns a validator with every custom validation and translation registered.
func NewValidator() (*validator.Validate, ut.Translator) {
	_en := en.New()
	translator, _ := ut.New(_en, _en).GetTranslator("en")
	validate := validator.New()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	scheme.InitValidators(validate, translator)
	return validate, translator
}

// Publisher records published grades.
type Publisher struct {
	mu     sync.Mutex
	grades []grade.FinalGrade
}

func (p *Publisher) Publish(_ context.Context, fg grade.FinalGrade) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.grades = append(p.grades, fg)
}

func (p *Publisher) Published() []grade.FinalGrade {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]grade.FinalGrade(nil), p.grades...)
}

func (p *Publisher) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.grades = nil
}

// Env wires every service over a fresh in-memory database.
type Env struct {
	Conf       *core.Config
	Logger     core.Logger
	Validate   *validator.Validate
	Translator ut.Translator
	DB         *inmemdb.DB

	UsrRepo    user.Repository
	AcadRepo   academic.Repository
	SchemeRepo scheme.Repository
	MarkRepo   mark.Repository
	GradeRepo  grade.Repository

	UsrSvc         user.Service
	AcadSvc        academic.Service
	SchemeSvc      scheme.Service
	MarkSvc        mark.Service
	GradeSvc       grade.Service
	ProgressionSvc progression.Service
	Publisher      *Publisher
}

// NewEnv builds an Env. Pass a configuration to override the test defaults.
func NewEnv(confs ...*core.Config) *Env {
	conf := NewTestConfig()
	if len(confs) > 0 {
		conf = confs[0]
	}
	validate, translator := NewValidator()
	db := inmemdb.NewDB()

	env := &Env{
		Conf:       conf,
		Logger:     NewLogger(conf),
		Validate:   validate,
		Translator: translator,
		DB:         db,
		UsrRepo:    inmemdb.NewUserRepository(db),
		AcadRepo:   inmemdb.NewAcademicRepository(db),
		SchemeRepo: inmemdb.NewSchemeRepository(db),
		MarkRepo:   inmemdb.NewMarkRepository(db),
		GradeRepo:  inmemdb.NewGradeRepository(db),
		Publisher:  new(Publisher),
	}
	env.UsrSvc = user.NewService(env.UsrRepo)
	env.AcadSvc = academic.NewService(env.AcadRepo, db, env.UsrSvc, validate)
	env.SchemeSvc = scheme.NewService(env.SchemeRepo, db, env.AcadSvc, validate)
	env.GradeSvc = grade.NewService(env.GradeRepo, env.MarkRepo, env.AcadSvc, env.SchemeSvc, env.Publisher, env.Logger, conf)
	env.MarkSvc = mark.NewService(env.MarkRepo, db, env.AcadSvc, env.SchemeSvc, env.GradeSvc, validate)
	env.ProgressionSvc = progression.NewService(env.AcadSvc, env.GradeSvc)
	return env
}

// Date parses a YYYY-MM-DD date or fails the test.
func Date(t *testing.T, s string) time.Time {
	d, err := core.ParseDate(s)
	if err != nil {
		t.Fatalf("Date(%q) failed: %v", s, err)
	}
	return d
}

func CreateUser(
	t *testing.T,
	repo user.Repository,
	name, uname, email, pwd string,
	roles []string,
	isActive bool,
	createdAt ...time.Time,
) user.User {
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr := user.User{
		ID:        uuid.New().String(),
		Name:      name,
		Username:  uname,
		Email:     email,
		Roles:     roles,
		IsActive:  isActive,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("createUser() failed: %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("createUser() failed: %v", err)
	}
	return usr
}

func CreateProgramme(t *testing.T, repo academic.Repository, code string, rules academic.PromotionRules) academic.Programme {
	prog, err := repo.CreateProgramme(context.Background(), academic.Programme{
		ID:             uuid.New().String(),
		Code:           code,
		Name:           "Programme " + code,
		PromotionRules: rules,
		CreatedAt:      time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("createProgramme() failed: %v", err)
	}
	return prog
}

func CreateUnit(t *testing.T, repo academic.Repository, code string, credits int, programmes ...academic.Programme) academic.Unit {
	ctx := context.Background()
	unit, err := repo.CreateUnit(ctx, academic.Unit{ID: uuid.New().String(), Code: code, Name: "Unit " + code, Credits: credits})
	if err != nil {
		t.Fatalf("createUnit() failed: %v", err)
	}
	for _, prog := range programmes {
		if err = repo.AddProgrammeUnit(ctx, academic.ProgrammeUnit{ProgrammeID: prog.ID, UnitID: unit.ID, YearOfStudy: 1}); err != nil {
			t.Fatalf("createUnit() failed: %v", err)
		}
	}
	return unit
}

// CreateAcademicYear creates a year with one semester per start date. Semesters last 90 days.
func CreateAcademicYear(t *testing.T, repo academic.Repository, code string, start, end time.Time, semStarts ...time.Time) (academic.AcademicYear, []academic.Semester) {
	ctx := context.Background()
	year, err := repo.CreateAcademicYear(ctx, academic.AcademicYear{ID: uuid.New().String(), Code: code, StartDate: start, EndDate: end})
	if err != nil {
		t.Fatalf("createAcademicYear() failed: %v", err)
	}
	sems := make([]academic.Semester, 0, len(semStarts))
	for i, ss := range semStarts {
		sem, err := repo.CreateSemester(ctx, academic.Semester{
			ID:             uuid.New().String(),
			AcademicYearID: year.ID,
			Number:         i + 1,
			StartDate:      ss,
			EndDate:        ss.AddDate(0, 0, 90),
		})
		if err != nil {
			t.Fatalf("createAcademicYear() failed: %v", err)
		}
		sems = append(sems, sem)
	}
	return year, sems
}

// CreateStudent creates an active student, linked to usr when given.
func CreateStudent(t *testing.T, repo academic.Repository, prog academic.Programme, regNo string, usr ...user.User) academic.Student {
	std := academic.Student{
		ID:                 uuid.New().String(),
		RegistrationNumber: regNo,
		Name:               "Student " + regNo,
		Email:              regNo + "@students.test.cd",
		ProgrammeID:        prog.ID,
		CurrentYear:        1,
		IsActive:           true,
		CreatedAt:          time.Now().UTC(),
	}
	if len(usr) > 0 {
		std.UserID = null.StringFrom(usr[0].ID)
	}
	std, err := repo.CreateStudent(context.Background(), std)
	if err != nil {
		t.Fatalf("createStudent() failed: %v", err)
	}
	return std
}

func Enroll(t *testing.T, repo academic.Repository, std academic.Student, unit academic.Unit, sem academic.Semester, status ...academic.EnrollmentStatus) academic.Enrollment {
	enr := academic.Enrollment{
		ID:         uuid.New().String(),
		StudentID:  std.ID,
		UnitID:     unit.ID,
		SemesterID: sem.ID,
		Status:     academic.StatusEnrolled,
		EnrolledAt: time.Now().UTC(),
	}
	if len(status) > 0 {
		enr.Status = status[0]
	}
	enr, err := repo.CreateEnrollment(context.Background(), enr)
	if err != nil {
		t.Fatalf("enroll() failed: %v", err)
	}
	return enr
}

func Allocate(t *testing.T, repo academic.Repository, lecturer user.User, unit academic.Unit, sem academic.Semester) academic.Allocation {
	alloc, err := repo.CreateAllocation(context.Background(), academic.Allocation{
		ID:         uuid.New().String(),
		LecturerID: lecturer.ID,
		UnitID:     unit.ID,
		SemesterID: sem.ID,
	})
	if err != nil {
		t.Fatalf("allocate() failed: %v", err)
	}
	return alloc
}

// CreateScheme stores a scheme version with the default bands.
func CreateScheme(
	t *testing.T,
	repo scheme.Repository,
	prog academic.Programme,
	version int,
	effectiveFrom time.Time,
	comps ...scheme.Component,
) scheme.Scheme {
	sch := scheme.Scheme{
		ID:            uuid.New().String(),
		ProgrammeID:   prog.ID,
		Version:       version,
		EffectiveFrom: effectiveFrom,
		Bands:         scheme.DefaultBands(),
		CreatedAt:     time.Now().UTC(),
	}
	for i, c := range comps {
		c.ID = uuid.New().String()
		c.SchemeID = sch.ID
		c.Position = i + 1
		sch.Components = append(sch.Components, c)
	}
	for i := range sch.Bands {
		sch.Bands[i].SchemeID = sch.ID
	}
	sch, err := repo.CreateScheme(context.Background(), sch)
	if err != nil {
		t.Fatalf("createScheme() failed: %v", err)
	}
	return sch
}

// StandardComponents are CAT 20% /10, Assignment 20% /20 and Exam 60% /60.
func StandardComponents() []scheme.Component {
	return []scheme.Component{
		{Name: "CAT", Type: scheme.TypeCAT, Weight: 20, MaxScore: 10},
		{Name: "Assignment", Type: scheme.TypeAssignment, Weight: 20, MaxScore: 20},
		{Name: "Exam", Type: scheme.TypeExam, Weight: 60, MaxScore: 60},
	}
}

// PutMark stores a raw mark, bypassing authorization and invalidation.
func PutMark(t *testing.T, repo mark.Repository, key mark.Key, comp scheme.Component, score float64) mark.Mark {
	now := time.Now().UTC()
	m, err := repo.UpsertMark(context.Background(), mark.Mark{
		ID:          uuid.New().String(),
		StudentID:   key.StudentID,
		UnitID:      key.UnitID,
		SemesterID:  key.SemesterID,
		ComponentID: comp.ID,
		Score:       score,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		t.Fatalf("putMark() failed: %v", err)
	}
	return m
}

// Faculty is a small populated faculty: one programme with a standard scheme, one year of two
// semesters, two units and one student enrolled in both units in semester 1.
type Faculty struct {
	Admin       user.User
	Lecturer    user.User // allocated to Unit1 in Sem1
	StudentUser user.User
	Programme   academic.Programme
	Year        academic.AcademicYear
	Sem1, Sem2  academic.Semester
	Unit1       academic.Unit // 3 credits
	Unit2       academic.Unit // 2 credits
	Student     academic.Student
	Scheme      scheme.Scheme
}

func (f Faculty) Key(unit academic.Unit) mark.Key {
	return mark.Key{StudentID: f.Student.ID, UnitID: unit.ID, SemesterID: f.Sem1.ID}
}

// Component returns the scheme component of the given type.
func (f Faculty) Component(typ scheme.ComponentType) scheme.Component {
	for _, c := range f.Scheme.Components {
		if c.Type == typ {
			return c
		}
	}
	return scheme.Component{}
}

func NewFaculty(t *testing.T, env *Env) Faculty {
	var f Faculty
	f.Admin = CreateUser(t, env.UsrRepo, "Admin", "admin", "admin@test.cd", "admin", []string{user.RoleAdmin}, true)
	f.Lecturer = CreateUser(t, env.UsrRepo, "Lecturer", "lecturer", "lecturer@test.cd", "lecturer", []string{user.RoleLecturer}, true)
	f.StudentUser = CreateUser(t, env.UsrRepo, "Student", "student", "student@test.cd", "student", []string{user.RoleStudent}, true)

	f.Programme = CreateProgramme(t, env.AcadRepo, "BSC-CS", academic.PromotionRules{
		MinUnitsPassed: 1,
		MinGPA:         2,
		MaxRetakes:     1,
		ExclusionGPA:   1,
	})
	var sems []academic.Semester
	f.Year, sems = CreateAcademicYear(
		t, env.AcadRepo, "2024/2025", Date(t, "2024-09-01"), Date(t, "2025-06-30"),
		Date(t, "2024-09-02"), Date(t, "2025-01-13"),
	)
	f.Sem1, f.Sem2 = sems[0], sems[1]
	f.Unit1 = CreateUnit(t, env.AcadRepo, "CS101", 3, f.Programme)
	f.Unit2 = CreateUnit(t, env.AcadRepo, "CS102", 2, f.Programme)
	f.Student = CreateStudent(t, env.AcadRepo, f.Programme, "CS/001/2024", f.StudentUser)
	Enroll(t, env.AcadRepo, f.Student, f.Unit1, f.Sem1)
	Enroll(t, env.AcadRepo, f.Student, f.Unit2, f.Sem1)
	Allocate(t, env.AcadRepo, f.Lecturer, f.Unit1, f.Sem1)
	f.Scheme = CreateScheme(t, env.SchemeRepo, f.Programme, 1, Date(t, "2024-01-01"), StandardComponents()...)
	return f
}

// Grade stores the CAT, Assignment and Exam marks of unit for the faculty's student.
func (f Faculty) Grade(t *testing.T, env *Env, unit academic.Unit, cat, assignment, exam float64) {
	key := f.Key(unit)
	PutMark(t, env.MarkRepo, key, f.Component(scheme.TypeCAT), cat)
	PutMark(t, env.MarkRepo, key, f.Component(scheme.TypeAssignment), assignment)
	PutMark(t, env.MarkRepo, key, f.Component(scheme.TypeExam), exam)
}
