package progression_test

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/alama/core/academic"
	"github.com/trezcool/alama/core/grade"
	"github.com/trezcool/alama/core/progression"
	"github.com/trezcool/alama/tests"
)

func result(code string, credits int, point float64, passed bool) progression.UnitResult {
	return progression.UnitResult{
		UnitID:     code,
		UnitCode:   code,
		Credits:    credits,
		Status:     grade.StatusComplete,
		Total:      null.Float64From(point * 20),
		GradePoint: null.Float64From(point),
		Passed:     passed,
	}
}

func incomplete(code string) progression.UnitResult {
	return progression.UnitResult{UnitID: code, UnitCode: code, Credits: 3, Status: grade.StatusIncomplete}
}

func TestEvaluate(t *testing.T) {
	active := academic.Student{ID: "std", IsActive: true}
	rules := academic.PromotionRules{MinUnitsPassed: 3, MinGPA: 2, MaxRetakes: 1, ExclusionGPA: 1}

	stale := result("CS104", 3, 4, true)
	stale.Stale = true

	tests := []struct {
		name        string
		std         academic.Student
		results     []progression.UnitResult
		wantOutcome progression.Outcome
		wantGPA     null.Float64
		wantReason  string
		wantRetakes []string
	}{
		{
			name:        "inactive student",
			std:         academic.Student{ID: "std"},
			results:     []progression.UnitResult{incomplete("CS101")},
			wantOutcome: progression.OutcomeNotEligible,
			wantReason:  "student is not active",
		},
		{
			name:        "no units",
			std:         active,
			wantOutcome: progression.OutcomeNotEligible,
			wantReason:  "no units taken",
		},
		{
			name:        "incomplete grade",
			std:         active,
			results:     []progression.UnitResult{result("CS101", 3, 0, false), incomplete("CS103"), incomplete("CS102")},
			wantOutcome: progression.OutcomePending,
			wantReason:  "grades pending for CS102, CS103",
			wantRetakes: []string{"CS101"},
		},
		{
			name:        "stale grade",
			std:         active,
			results:     []progression.UnitResult{result("CS101", 3, 4, true), stale},
			wantOutcome: progression.OutcomePending,
			wantReason:  "grades pending for CS104",
		},
		{
			name: "below the exclusion GPA before anything else",
			std:  active,
			results: []progression.UnitResult{
				result("CS101", 3, 0, false), result("CS102", 3, 0, false), result("CS103", 2, 2, true),
			},
			wantOutcome: progression.OutcomeNotEligible,
			wantGPA:     null.Float64From(0.5),
			wantReason:  "GPA 0.50 is below the exclusion threshold of 1.00",
			wantRetakes: []string{"CS101", "CS102"},
		},
		{
			name:        "too few units passed",
			std:         active,
			results:     []progression.UnitResult{result("CS101", 3, 4, true), result("CS102", 3, 4, true)},
			wantOutcome: progression.OutcomeRepeatYear,
			wantGPA:     null.Float64From(4),
			wantReason:  "passed 2 units, 3 required",
		},
		{
			name: "GPA below the minimum",
			std:  active,
			results: []progression.UnitResult{
				result("CS101", 3, 1, true), result("CS102", 3, 1, true), result("CS103", 3, 2, true),
			},
			wantOutcome: progression.OutcomeRepeatYear,
			wantGPA:     null.Float64From(1.33),
			wantReason:  "GPA 1.33 is below the minimum of 2.00",
		},
		{
			name: "too many retakes",
			std:  active,
			results: []progression.UnitResult{
				result("CS101", 3, 4, true), result("CS102", 3, 4, true), result("CS103", 3, 4, true),
				result("CS104", 1, 0, false), result("CS105", 1, 0, false),
			},
			wantOutcome: progression.OutcomeRepeatYear,
			wantGPA:     null.Float64From(3.27),
			wantReason:  "failed 2 units, at most 1 retakes allowed",
			wantRetakes: []string{"CS104", "CS105"},
		},
		{
			name: "failed units within the retake allowance",
			std:  active,
			results: []progression.UnitResult{
				result("CS101", 3, 4, true), result("CS102", 3, 3, true), result("CS103", 3, 2, true), result("CS104", 3, 0, false),
			},
			wantOutcome: progression.OutcomeProceedWithConditions,
			wantGPA:     null.Float64From(2.25),
			wantReason:  "retake CS104",
			wantRetakes: []string{"CS104"},
		},
		{
			name: "credit weighted GPA",
			std:  active,
			results: []progression.UnitResult{
				result("CS101", 4, 4, true), result("CS102", 1, 1, true), result("CS103", 1, 1, true),
			},
			wantOutcome: progression.OutcomeProceed,
			wantGPA:     null.Float64From(3),
			wantReason:  "all units passed",
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			dec := progression.Evaluate(tt.std, "year", rules, tt.results)
			assert.Equal(t, tt.std.ID, dec.StudentID)
			assert.Equal(t, "year", dec.AcademicYearID)
			assert.Equal(t, tt.wantOutcome, dec.Outcome)
			assert.Equal(t, tt.wantOutcome != progression.OutcomePending, dec.Terminal)
			assert.Equal(t, tt.wantReason, dec.Reason)
			assert.Equal(t, tt.wantGPA.Valid, dec.GPA.Valid)
			assert.InDelta(t, tt.wantGPA.Float64, dec.GPA.Float64, 1e-9)
			assert.Equal(t, len(tt.results), dec.UnitsTaken)
			assert.NotNil(t, dec.Units)
			if tt.wantRetakes == nil {
				tt.wantRetakes = []string{}
			}
			if tt.std.IsActive && len(tt.results) > 0 {
				assert.Equal(t, tt.wantRetakes, dec.RetakeUnits)
			}
		})
	}
}

func TestService_Evaluate(t *testing.T) {
	env := testutil.NewEnv()
	f := testutil.NewFaculty(t, env)
	ctx := context.Background()

	// 16 + 18 + 50 = 84 (A, 3 credits) and 4 + 4 + 20 = 28 (E, 2 credits)
	f.Grade(t, env, f.Unit1, 8, 18, 50)
	f.Grade(t, env, f.Unit2, 2, 4, 20)

	dec, err := env.ProgressionSvc.Evaluate(ctx, f.Student.ID, f.Year.ID)
	require.NoError(t, err)
	assert.Equal(t, progression.OutcomeProceedWithConditions, dec.Outcome)
	assert.Equal(t, 2.4, dec.GPA.Float64) // 4×3 / 5
	assert.Equal(t, []string{"CS102"}, dec.RetakeUnits)
	require.Len(t, dec.Units, 2)
	assert.Equal(t, "CS101", dec.Units[0].UnitCode)
	assert.Equal(t, 3, dec.Units[0].Credits)
	assert.Equal(t, "E", dec.Units[1].Grade.String)

	// a year without enrollments
	nextYear, _ := testutil.CreateAcademicYear(
		t, env.AcadRepo, "2025/2026", testutil.Date(t, "2025-09-01"), testutil.Date(t, "2026-06-30"),
		testutil.Date(t, "2025-09-01"),
	)
	dec, err = env.ProgressionSvc.Evaluate(ctx, f.Student.ID, nextYear.ID)
	require.NoError(t, err)
	assert.Equal(t, progression.OutcomeNotEligible, dec.Outcome)
	assert.Empty(t, dec.Units)

	_, err = env.ProgressionSvc.Evaluate(ctx, "lol", f.Year.ID)
	assert.Equal(t, academic.ErrStudentNotFound, errors.Cause(err))
	_, err = env.ProgressionSvc.Evaluate(ctx, f.Student.ID, "lol")
	assert.Equal(t, academic.ErrAcademicYearNotFound, errors.Cause(err))
}
