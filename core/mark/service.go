package mark

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gocarina/gocsv"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/alama/core"
	"github.com/trezcool/alama/core/academic"
	"github.com/trezcool/alama/core/scheme"
	"github.com/trezcool/alama/core/user"
)

var (
	// errors
	ErrLockNotFound  = core.NewNotFoundError("mark lock")
	ErrAlreadyLocked = errors.New("marks are already locked")
	errDropped       = "enrollment was dropped"
)

type (
	Repository interface {
		// UpsertMark inserts or overwrites the mark of (student, unit, semester, component).
		// It returns a *core.LockedError, without writing, if the unit/semester is locked.
		UpsertMark(ctx context.Context, m Mark, exec ...core.DBExecutor) (Mark, error)
		// QueryMarks returns the marks matching the non-empty fields of key.
		QueryMarks(ctx context.Context, key Key, exec ...core.DBExecutor) ([]Mark, error)
		GetLock(ctx context.Context, unitID, semesterID string, exec ...core.DBExecutor) (Lock, error)
		// CreateLock returns ErrAlreadyLocked if the lock exists.
		CreateLock(ctx context.Context, lock Lock, exec ...core.DBExecutor) (Lock, error)
		DeleteLock(ctx context.Context, unitID, semesterID string, exec ...core.DBExecutor) error
	}

	// Invalidator marks the cached final grade of a key stale, within the caller's transaction.
	Invalidator interface {
		Invalidate(ctx context.Context, key Key, exec ...core.DBExecutor) error
	}

	Service interface {
		// Record validates, authorizes and stores a mark, then invalidates the final grade it contributes to.
		Record(ctx context.Context, grader user.User, nm NewMark) (Mark, error)
		Query(ctx context.Context, key Key) ([]Mark, error)
		IsLocked(ctx context.Context, unitID, semesterID string) (bool, error)
		Lock(ctx context.Context, admin user.User, unitID, semesterID string) (Lock, error)
		Unlock(ctx context.Context, admin user.User, unitID, semesterID string) error
		// Import records every CSV row it can and reports the others.
		Import(ctx context.Context, grader user.User, r io.Reader) (ImportReport, error)
	}

	service struct {
		repo        Repository
		txr         core.Transactor
		acadSvc     academic.Service
		schemeSvc   scheme.Service
		invalidator Invalidator
		validate    *validator.Validate
	}
)

var _ Service = (*service)(nil)

func NewService(
	repo Repository,
	txr core.Transactor,
	acadSvc academic.Service,
	schemeSvc scheme.Service,
	invalidator Invalidator,
	validate *validator.Validate,
) Service {
	return &service{
		repo:        repo,
		txr:         txr,
		acadSvc:     acadSvc,
		schemeSvc:   schemeSvc,
		invalidator: invalidator,
		validate:    validate,
	}
}

func (svc *service) Record(ctx context.Context, grader user.User, nm NewMark) (Mark, error) {
	if err := nm.Validate(svc.validate); err != nil {
		return Mark{}, err
	}

	ok, err := svc.acadSvc.CanGrade(ctx, grader, nm.UnitID, nm.SemesterID)
	if err != nil {
		return Mark{}, errors.Wrap(err, "checking grading authority")
	}
	if !ok {
		return Mark{}, core.ErrPermissionDenied
	}

	locked, err := svc.IsLocked(ctx, nm.UnitID, nm.SemesterID)
	if err != nil {
		return Mark{}, err
	}
	if locked {
		return Mark{}, &core.LockedError{UnitID: nm.UnitID, SemesterID: nm.SemesterID}
	}

	enr, err := svc.acadSvc.GetEnrollment(ctx, nm.StudentID, nm.UnitID, nm.SemesterID)
	if err != nil {
		return Mark{}, errors.Wrap(err, "getting enrollment")
	}
	if enr.IsDropped() {
		return Mark{}, core.NewFieldValidationError("student_id", errDropped)
	}

	comp, err := svc.component(ctx, nm)
	if err != nil {
		return Mark{}, err
	}
	if *nm.Score > comp.MaxScore {
		return Mark{}, core.NewFieldValidationError("score", fmt.Sprintf("must be %s or less", formatScore(comp.MaxScore)))
	}

	now := time.Now().UTC()
	m := Mark{
		ID:          uuid.New().String(),
		StudentID:   nm.StudentID,
		UnitID:      nm.UnitID,
		SemesterID:  nm.SemesterID,
		ComponentID: nm.ComponentID,
		Score:       *nm.Score,
		EnteredBy:   grader.ID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if nm.Remarks != "" {
		m.Remarks = null.StringFrom(nm.Remarks)
	}

	err = svc.txr.InTx(ctx, func(exec core.DBExecutor) error {
		var err error
		if m, err = svc.repo.UpsertMark(ctx, m, exec); err != nil {
			return err
		}
		return errors.Wrap(svc.invalidator.Invalidate(ctx, m.Key(), exec), "invalidating final grade")
	})
	if err != nil {
		return Mark{}, err
	}
	return m, nil
}

// component returns the component of the scheme effective for the student's programme in the semester.
func (svc *service) component(ctx context.Context, nm NewMark) (scheme.Component, error) {
	std, err := svc.acadSvc.GetStudent(ctx, nm.StudentID)
	if err != nil {
		return scheme.Component{}, errors.Wrap(err, "getting student")
	}
	sem, err := svc.acadSvc.GetSemester(ctx, nm.SemesterID)
	if err != nil {
		return scheme.Component{}, errors.Wrap(err, "getting semester")
	}
	sch, err := svc.schemeSvc.Get(ctx, std.ProgrammeID, sem.StartDate)
	if err != nil {
		return scheme.Component{}, errors.Wrap(err, "getting grading scheme")
	}
	comp, ok := sch.Component(nm.ComponentID)
	if !ok {
		return scheme.Component{}, core.NewFieldValidationError(
			"component_id", fmt.Sprintf("not a component of grading scheme version %d", sch.Version),
		)
	}
	return comp, nil
}

func (svc *service) Query(ctx context.Context, key Key) ([]Mark, error) {
	if key.StudentID == "" {
		return nil, core.NewFieldValidationError("student_id", "this field is required")
	}
	return svc.repo.QueryMarks(ctx, key)
}

func (svc *service) IsLocked(ctx context.Context, unitID, semesterID string) (bool, error) {
	if _, err := svc.repo.GetLock(ctx, unitID, semesterID); err != nil {
		if errors.Cause(err) == ErrLockNotFound {
			return false, nil
		}
		return false, errors.Wrap(err, "getting lock")
	}
	return true, nil
}

func (svc *service) Lock(ctx context.Context, admin user.User, unitID, semesterID string) (Lock, error) {
	if !admin.IsAdmin() {
		return Lock{}, core.ErrPermissionDenied
	}
	if _, err := svc.acadSvc.GetUnit(ctx, unitID); err != nil {
		return Lock{}, errors.Wrap(err, "getting unit")
	}
	if _, err := svc.acadSvc.GetSemester(ctx, semesterID); err != nil {
		return Lock{}, errors.Wrap(err, "getting semester")
	}

	lock, err := svc.repo.CreateLock(ctx, Lock{
		UnitID:     unitID,
		SemesterID: semesterID,
		LockedBy:   admin.ID,
		LockedAt:   time.Now().UTC(),
	})
	return lock, err
}

func (svc *service) Unlock(ctx context.Context, admin user.User, unitID, semesterID string) error {
	if !admin.IsAdmin() {
		return core.ErrPermissionDenied
	}
	return svc.repo.DeleteLock(ctx, unitID, semesterID)
}

func (svc *service) Import(ctx context.Context, grader user.User, r io.Reader) (ImportReport, error) {
	report := ImportReport{Failed: []RowError{}}

	var rows []*ImportRow
	if err := gocsv.Unmarshal(r, &rows); err != nil {
		return report, core.NewFieldValidationError("file", fmt.Sprintf("invalid CSV: %v", err))
	}

	for i, row := range rows {
		err := svc.importRow(ctx, grader, *row)
		if err == nil {
			report.Recorded++
			continue
		}
		if !isRowError(err) {
			return report, errors.Wrapf(err, "importing row %d", i+1)
		}
		report.Failed = append(report.Failed, RowError{Row: i + 1, Error: rowErrorMessage(err)})
	}
	return report, nil
}

func (svc *service) importRow(ctx context.Context, grader user.User, row ImportRow) error {
	std, err := svc.acadSvc.GetStudentByRegistrationNumber(ctx, row.RegistrationNumber)
	if err != nil {
		return err
	}
	unit, err := svc.acadSvc.GetUnitByCode(ctx, row.UnitCode)
	if err != nil {
		return err
	}
	score, err := strconv.ParseFloat(core.CleanString(row.Score), 64)
	if err != nil {
		return core.NewFieldValidationError("score", "must be a number")
	}

	_, err = svc.Record(ctx, grader, NewMark{
		StudentID:   std.ID,
		UnitID:      unit.ID,
		SemesterID:  row.SemesterID,
		ComponentID: row.ComponentID,
		Score:       &score,
		Remarks:     row.Remarks,
	})
	return err
}

// isRowError reports whether err is a problem with the row itself rather than with the system.
func isRowError(err error) bool {
	switch errors.Cause(err).(type) {
	case *core.ValidationError, *core.NotFoundError, *core.LockedError, validator.ValidationErrors:
		return true
	}
	return errors.Cause(err) == core.ErrPermissionDenied
}

func rowErrorMessage(err error) string {
	switch cause := errors.Cause(err).(type) {
	case *core.ValidationError:
		if len(cause.Fields) > 0 {
			msgs := make([]string, 0, len(cause.Fields))
			for _, fld := range cause.Fields {
				msgs = append(msgs, fld.Field+": "+fld.Error)
			}
			return strings.Join(msgs, "; ")
		}
	case validator.ValidationErrors:
		msgs := make([]string, 0, len(cause))
		for _, fe := range cause {
			msgs = append(msgs, fe.Field()+": failed on "+fe.Tag())
		}
		return strings.Join(msgs, "; ")
	}
	return errors.Cause(err).Error()
}

func formatScore(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
