package progression

import (
	"fmt"
	"sort"
	"strings"

	"github.com/volatiletech/null/v8"

	"github.com/trezcool/alama/core/academic"
	"github.com/trezcool/alama/core/grade"
)

type Outcome string

const (
	OutcomeProceed               Outcome = "PROCEED"
	OutcomeProceedWithConditions Outcome = "PROCEED_WITH_CONDITIONS"
	OutcomeRepeatYear            Outcome = "REPEAT_YEAR"
	OutcomeNotEligible           Outcome = "NOT_ELIGIBLE"
	// OutcomePending is returned while a unit grade is incomplete or being recalculated.
	OutcomePending Outcome = "PENDING"
)

// UnitResult is the final grade of one enrollment, as seen by progression.
type UnitResult struct {
	UnitID     string       `json:"unit_id"`
	UnitCode   string       `json:"unit_code"`
	SemesterID string       `json:"semester_id"`
	Credits    int          `json:"credits"`
	Status     grade.Status `json:"status"`
	Total      null.Float64 `json:"total"`
	Grade      null.String  `json:"grade"`
	GradePoint null.Float64 `json:"grade_point"`
	Passed     bool         `json:"passed"`
	Stale      bool         `json:"stale"`
}

func NewUnitResult(unit academic.Unit, fg grade.FinalGrade) UnitResult {
	return UnitResult{
		UnitID:     unit.ID,
		UnitCode:   unit.Code,
		SemesterID: fg.SemesterID,
		Credits:    unit.Credits,
		Status:     fg.Status,
		Total:      fg.Total,
		Grade:      fg.Grade,
		GradePoint: fg.GradePoint,
		Passed:     fg.Passed,
		Stale:      fg.Stale,
	}
}

// Decision is the year-end verdict of a student. It is derived on demand and never stored.
type Decision struct {
	StudentID       string       `json:"student_id"`
	AcademicYearID  string       `json:"academic_year_id"`
	Outcome         Outcome      `json:"outcome"`
	Terminal        bool         `json:"terminal"`
	Reason          string       `json:"reason"`
	GPA             null.Float64 `json:"gpa"`
	UnitsTaken      int          `json:"units_taken"`
	UnitsPassed     int          `json:"units_passed"`
	UnitsFailed     int          `json:"units_failed"`
	RetakeUnits     []string     `json:"retake_units"`     // unit codes
	IncompleteUnits []string     `json:"incomplete_units"` // unit codes
	Units           []UnitResult `json:"units"`
}

// Evaluate applies the programme's promotion rules to the year's unit results, in order:
// inactive student, no units, pending grades, exclusion GPA, repeat thresholds, failed units.
func Evaluate(std academic.Student, yearID string, rules academic.PromotionRules, results []UnitResult) Decision {
	dec := Decision{
		StudentID:       std.ID,
		AcademicYearID:  yearID,
		Terminal:        true,
		RetakeUnits:     []string{},
		IncompleteUnits: []string{},
		Units:           results,
		UnitsTaken:      len(results),
	}
	if dec.Units == nil {
		dec.Units = []UnitResult{}
	}

	if !std.IsActive {
		dec.Outcome = OutcomeNotEligible
		dec.Reason = "student is not active"
		return dec
	}
	if len(results) == 0 {
		dec.Outcome = OutcomeNotEligible
		dec.Reason = "no units taken"
		return dec
	}

	var points, credits float64
	for _, res := range results {
		if res.Status != grade.StatusComplete || res.Stale {
			dec.IncompleteUnits = append(dec.IncompleteUnits, res.UnitCode)
			continue
		}
		if res.Passed {
			dec.UnitsPassed++
		} else {
			dec.UnitsFailed++
			dec.RetakeUnits = append(dec.RetakeUnits, res.UnitCode)
		}
		points += res.GradePoint.Float64 * float64(res.Credits)
		credits += float64(res.Credits)
	}
	sort.Strings(dec.IncompleteUnits)
	sort.Strings(dec.RetakeUnits)

	if len(dec.IncompleteUnits) > 0 {
		dec.Outcome = OutcomePending
		dec.Terminal = false
		dec.Reason = "grades pending for " + strings.Join(dec.IncompleteUnits, ", ")
		return dec
	}

	gpa := grade.Round(points / credits)
	dec.GPA = null.Float64From(gpa)

	switch {
	case gpa < rules.ExclusionGPA:
		dec.Outcome = OutcomeNotEligible
		dec.Reason = fmt.Sprintf("GPA %.2f is below the exclusion threshold of %.2f", gpa, rules.ExclusionGPA)
	case dec.UnitsPassed < rules.MinUnitsPassed:
		dec.Outcome = OutcomeRepeatYear
		dec.Reason = fmt.Sprintf("passed %d units, %d required", dec.UnitsPassed, rules.MinUnitsPassed)
	case gpa < rules.MinGPA:
		dec.Outcome = OutcomeRepeatYear
		dec.Reason = fmt.Sprintf("GPA %.2f is below the minimum of %.2f", gpa, rules.MinGPA)
	case dec.UnitsFailed > rules.MaxRetakes:
		dec.Outcome = OutcomeRepeatYear
		dec.Reason = fmt.Sprintf("failed %d units, at most %d retakes allowed", dec.UnitsFailed, rules.MaxRetakes)
	case dec.UnitsFailed > 0:
		dec.Outcome = OutcomeProceedWithConditions
		dec.Reason = "retake " + strings.Join(dec.RetakeUnits, ", ")
	default:
		dec.Outcome = OutcomeProceed
		dec.Reason = "all units passed"
	}
	return dec
}
