package grade

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/alama/core"
	"github.com/trezcool/alama/core/academic"
	"github.com/trezcool/alama/core/mark"
	"github.com/trezcool/alama/core/scheme"
)

var (
	// errors
	ErrNotFound = core.NewNotFoundError("final grade")
)

type (
	Repository interface {
		GetFinalGrade(ctx context.Context, key mark.Key, exec ...core.DBExecutor) (FinalGrade, error)
		// GetGeneration returns how many times key was invalidated, 0 if never.
		GetGeneration(ctx context.Context, key mark.Key, exec ...core.DBExecutor) (int64, error)
		// SaveFinalGrade inserts or replaces the cached grade of fg's key.
		// The saved grade is stale unless fg.Generation is still the generation of the key,
		// so an invalidation that raced the computation is never lost.
		SaveFinalGrade(ctx context.Context, fg FinalGrade, exec ...core.DBExecutor) (FinalGrade, error)
		// MarkStale bumps the generation of key and flags its cached grade, if any, as stale.
		MarkStale(ctx context.Context, key mark.Key, exec ...core.DBExecutor) error
		// QueryStaleKeys returns up to limit keys of stale cached grades, oldest computation first.
		QueryStaleKeys(ctx context.Context, limit int, exec ...core.DBExecutor) ([]mark.Key, error)
	}

	// Publisher consumes gradeFinalized events. Publish must not block on slow consumers.
	Publisher interface {
		Publish(ctx context.Context, fg FinalGrade)
	}

	Service interface {
		mark.Invalidator

		// Compute derives the final grade of key from the current marks, without caching it.
		Compute(ctx context.Context, key mark.Key) (FinalGrade, error)
		// Get serves the cached grade when fresh and recomputes it otherwise.
		Get(ctx context.Context, key mark.Key) (FinalGrade, error)
		// Refresh recomputes and caches the grade of key.
		Refresh(ctx context.Context, key mark.Key) (FinalGrade, error)
		// RecomputeStale refreshes up to batch stale grades and returns how many were refreshed.
		RecomputeStale(ctx context.Context, batch int) (int, error)
		// QueryByStudent returns the grades of every non-dropped enrollment of the student,
		// restricted to one semester when semesterID is set.
		QueryByStudent(ctx context.Context, studentID, semesterID string) ([]FinalGrade, error)
	}

	service struct {
		repo       Repository
		markRepo   mark.Repository
		acadSvc    academic.Service
		schemeSvc  scheme.Service
		publisher  Publisher
		logger     core.Logger
		serveStale bool
	}
)

var _ Service = (*service)(nil)

func NewService(
	repo Repository,
	markRepo mark.Repository,
	acadSvc academic.Service,
	schemeSvc scheme.Service,
	publisher Publisher,
	logger core.Logger,
	conf *core.Config,
) Service {
	return &service{
		repo:       repo,
		markRepo:   markRepo,
		acadSvc:    acadSvc,
		schemeSvc:  schemeSvc,
		publisher:  publisher,
		logger:     logger,
		serveStale: conf.Grading.ServeStale,
	}
}

func (svc *service) Invalidate(ctx context.Context, key mark.Key, exec ...core.DBExecutor) error {
	return svc.repo.MarkStale(ctx, key, exec...)
}

// effectiveScheme returns the scheme that applies to key.
func (svc *service) effectiveScheme(ctx context.Context, key mark.Key) (scheme.Scheme, error) {
	enr, err := svc.acadSvc.GetEnrollment(ctx, key.StudentID, key.UnitID, key.SemesterID)
	if err != nil {
		return scheme.Scheme{}, errors.Wrap(err, "getting enrollment")
	}
	if enr.IsDropped() {
		return scheme.Scheme{}, academic.ErrEnrollmentNotFound
	}
	std, err := svc.acadSvc.GetStudent(ctx, key.StudentID)
	if err != nil {
		return scheme.Scheme{}, errors.Wrap(err, "getting student")
	}
	sem, err := svc.acadSvc.GetSemester(ctx, key.SemesterID)
	if err != nil {
		return scheme.Scheme{}, errors.Wrap(err, "getting semester")
	}
	sch, err := svc.schemeSvc.Get(ctx, std.ProgrammeID, sem.StartDate)
	return sch, errors.Wrap(err, "getting grading scheme")
}

func (svc *service) Compute(ctx context.Context, key mark.Key) (FinalGrade, error) {
	sch, err := svc.effectiveScheme(ctx, key)
	if err != nil {
		return FinalGrade{}, err
	}
	marks, err := svc.markRepo.QueryMarks(ctx, key)
	if err != nil {
		return FinalGrade{}, errors.Wrap(err, "querying marks")
	}
	return Compute(sch, key, marks), nil
}

func (svc *service) Get(ctx context.Context, key mark.Key) (FinalGrade, error) {
	cached, err := svc.repo.GetFinalGrade(ctx, key)
	if err != nil {
		if errors.Cause(err) != ErrNotFound {
			return FinalGrade{}, errors.Wrap(err, "getting cached final grade")
		}
		return svc.Refresh(ctx, key)
	}

	if cached.Stale {
		if svc.serveStale {
			return cached, nil
		}
		return svc.Refresh(ctx, key)
	}

	// a scheme version created after caching may now apply
	sch, err := svc.effectiveScheme(ctx, key)
	if err != nil {
		return FinalGrade{}, err
	}
	if sch.ID != cached.SchemeID {
		return svc.Refresh(ctx, key)
	}
	return cached, nil
}

func (svc *service) Refresh(ctx context.Context, key mark.Key) (FinalGrade, error) {
	prev, err := svc.repo.GetFinalGrade(ctx, key)
	found := err == nil
	if err != nil && errors.Cause(err) != ErrNotFound {
		return FinalGrade{}, errors.Wrap(err, "getting cached final grade")
	}

	// read before the marks: a mark recorded from here on bumps the generation
	gen, err := svc.repo.GetGeneration(ctx, key)
	if err != nil {
		return FinalGrade{}, errors.Wrap(err, "getting final grade generation")
	}
	startedAt := time.Now().UTC()
	fg, err := svc.Compute(ctx, key)
	if err != nil {
		return FinalGrade{}, err
	}
	fg.Generation = gen
	fg.ComputedAt = startedAt
	if fg, err = svc.repo.SaveFinalGrade(ctx, fg); err != nil {
		return FinalGrade{}, errors.Wrap(err, "saving final grade")
	}

	if fg.IsComplete() && !fg.Stale && !(found && prev.sameResult(fg)) {
		svc.publisher.Publish(ctx, fg)
	}
	return fg, nil
}

func (svc *service) RecomputeStale(ctx context.Context, batch int) (int, error) {
	keys, err := svc.repo.QueryStaleKeys(ctx, batch)
	if err != nil {
		return 0, errors.Wrap(err, "querying stale final grades")
	}

	var refreshed int
	for _, key := range keys {
		if err = ctx.Err(); err != nil {
			return refreshed, err
		}
		if _, err = svc.Refresh(ctx, key); err != nil {
			svc.logger.Error(fmt.Sprintf("recomputing final grade %s: %v", key, err), err)
			continue
		}
		refreshed++
	}
	return refreshed, nil
}

func (svc *service) QueryByStudent(ctx context.Context, studentID, semesterID string) ([]FinalGrade, error) {
	if _, err := svc.acadSvc.GetStudent(ctx, studentID); err != nil {
		return nil, errors.Wrap(err, "getting student")
	}
	filter := academic.EnrollmentFilter{StudentID: studentID}
	if semesterID != "" {
		if _, err := svc.acadSvc.GetSemester(ctx, semesterID); err != nil {
			return nil, errors.Wrap(err, "getting semester")
		}
		filter.SemesterIDs = []string{semesterID}
	}
	enrs, err := svc.acadSvc.QueryEnrollments(ctx, filter)
	if err != nil {
		return nil, errors.Wrap(err, "querying enrollments")
	}

	grades := make([]FinalGrade, 0, len(enrs))
	for _, enr := range enrs {
		fg, err := svc.Get(ctx, mark.Key{StudentID: enr.StudentID, UnitID: enr.UnitID, SemesterID: enr.SemesterID})
		if err != nil {
			return nil, err
		}
		grades = append(grades, fg)
	}
	return grades, nil
}

// MultiPublisher fans events out to several publishers.
type MultiPublisher []Publisher

func (mp MultiPublisher) Publish(ctx context.Context, fg FinalGrade) {
	for _, p := range mp {
		p.Publish(ctx, fg)
	}
}
