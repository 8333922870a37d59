package grade

import (
	"math"
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/trezcool/alama/core/mark"
	"github.com/trezcool/alama/core/scheme"
)

type Status string

const (
	StatusComplete   Status = "complete"
	StatusIncomplete Status = "incomplete"
)

// FinalGrade is the derived outcome of a student for one unit in one semester.
// Total, Grade and GradePoint are null while the grade is incomplete.
type FinalGrade struct {
	StudentID     string       `json:"student_id" db:"student_id"`
	UnitID        string       `json:"unit_id" db:"unit_id"`
	SemesterID    string       `json:"semester_id" db:"semester_id"`
	SchemeID      string       `json:"scheme_id" db:"scheme_id"`
	SchemeVersion int          `json:"scheme_version" db:"scheme_version"`
	Status        Status       `json:"status" db:"status"`
	Total         null.Float64 `json:"total" db:"total"`
	Grade         null.String  `json:"grade" db:"grade"`
	GradePoint    null.Float64 `json:"grade_point" db:"grade_point"`
	Passed        bool         `json:"passed" db:"passed"`
	Missing       []string     `json:"missing" db:"-"` // component IDs, in scheme order
	Stale         bool         `json:"stale" db:"stale"`
	Generation    int64        `json:"-" db:"generation"` // invalidation count the computation started from
	ComputedAt    time.Time    `json:"-" db:"computed_at"`
}

func (fg FinalGrade) Key() mark.Key {
	return mark.Key{StudentID: fg.StudentID, UnitID: fg.UnitID, SemesterID: fg.SemesterID}
}

func (fg FinalGrade) IsComplete() bool {
	return fg.Status == StatusComplete
}

// sameResult reports whether fg and other carry the same outcome.
func (fg FinalGrade) sameResult(other FinalGrade) bool {
	return fg.Status == other.Status &&
		fg.SchemeID == other.SchemeID &&
		fg.Total == other.Total &&
		fg.Grade == other.Grade
}

// Compute derives the final grade of key from its marks and the applicable scheme.
// Each component contributes score × weight / max_score, summed in position order.
// The total is rounded half away from zero to 2 decimals before classification, so
// 69.995 is graded as 70.00.
func Compute(sch scheme.Scheme, key mark.Key, marks []mark.Mark) FinalGrade {
	fg := FinalGrade{
		StudentID:     key.StudentID,
		UnitID:        key.UnitID,
		SemesterID:    key.SemesterID,
		SchemeID:      sch.ID,
		SchemeVersion: sch.Version,
		Missing:       []string{},
	}

	scores := make(map[string]float64, len(marks))
	for _, m := range marks {
		if m.Key() == key {
			scores[m.ComponentID] = m.Score
		}
	}

	var total float64
	for _, comp := range sch.Components {
		score, ok := scores[comp.ID]
		if !ok {
			fg.Missing = append(fg.Missing, comp.ID)
			continue
		}
		total += score * comp.Weight / comp.MaxScore
	}
	if len(fg.Missing) > 0 {
		fg.Status = StatusIncomplete
		return fg
	}

	total = Round(total)
	band := sch.Classify(total)
	fg.Status = StatusComplete
	fg.Total = null.Float64From(total)
	fg.Grade = null.StringFrom(band.Grade)
	fg.GradePoint = null.Float64From(band.GradePoint)
	fg.Passed = band.Passing
	return fg
}

// Round rounds x half away from zero to 2 decimals.
// x is first snapped to 9 decimals so binary noise such as 69.99499999 does not defeat the half rule.
func Round(x float64) float64 {
	return math.Round(math.Round(x*1e9)/1e7) / 100
}
