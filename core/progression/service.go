package progression

import (
	"context"
	"sort"

	"github.com/pkg/errors"

	"github.com/trezcool/alama/core/academic"
	"github.com/trezcool/alama/core/grade"
	"github.com/trezcool/alama/core/mark"
)

type (
	Service interface {
		// Evaluate decides whether the student may proceed past the academic year.
		Evaluate(ctx context.Context, studentID, academicYearID string) (Decision, error)
	}

	service struct {
		acadSvc  academic.Service
		gradeSvc grade.Service
	}
)

var _ Service = (*service)(nil)

func NewService(acadSvc academic.Service, gradeSvc grade.Service) Service {
	return &service{acadSvc: acadSvc, gradeSvc: gradeSvc}
}

func (svc *service) Evaluate(ctx context.Context, studentID, academicYearID string) (Decision, error) {
	std, err := svc.acadSvc.GetStudent(ctx, studentID)
	if err != nil {
		return Decision{}, errors.Wrap(err, "getting student")
	}
	if _, err = svc.acadSvc.GetAcademicYear(ctx, academicYearID); err != nil {
		return Decision{}, errors.Wrap(err, "getting academic year")
	}
	prog, err := svc.acadSvc.GetProgramme(ctx, std.ProgrammeID)
	if err != nil {
		return Decision{}, errors.Wrap(err, "getting programme")
	}

	sems, err := svc.acadSvc.QuerySemesters(ctx, academicYearID)
	if err != nil {
		return Decision{}, errors.Wrap(err, "querying semesters")
	}
	var results []UnitResult
	if len(sems) > 0 {
		semIDs := make([]string, 0, len(sems))
		for _, sem := range sems {
			semIDs = append(semIDs, sem.ID)
		}
		enrs, err := svc.acadSvc.QueryEnrollments(ctx, academic.EnrollmentFilter{StudentID: std.ID, SemesterIDs: semIDs})
		if err != nil {
			return Decision{}, errors.Wrap(err, "querying enrollments")
		}

		results = make([]UnitResult, 0, len(enrs))
		for _, enr := range enrs {
			unit, err := svc.acadSvc.GetUnit(ctx, enr.UnitID)
			if err != nil {
				return Decision{}, errors.Wrap(err, "getting unit")
			}
			fg, err := svc.gradeSvc.Get(ctx, mark.Key{StudentID: enr.StudentID, UnitID: enr.UnitID, SemesterID: enr.SemesterID})
			if err != nil {
				return Decision{}, errors.Wrap(err, "getting final grade")
			}
			results = append(results, NewUnitResult(unit, fg))
		}
		sort.SliceStable(results, func(i, j int) bool { return results[i].UnitCode < results[j].UnitCode })
	}

	return Evaluate(std, academicYearID, prog.PromotionRules, results), nil
}
