package scheme

import (
	"sort"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/alama/core"
)

// WeightTotal is the sum every scheme's component weights must reach.
const WeightTotal = 100.0

// weightTolerance absorbs float noise when summing weights.
const weightTolerance = 1e-6

type ComponentType string

const (
	TypeCAT        ComponentType = "CAT"
	TypeAssignment ComponentType = "ASSIGNMENT"
	TypeProject    ComponentType = "PROJECT"
	TypeExam       ComponentType = "EXAM"
	TypePractical  ComponentType = "PRACTICAL"
)

var ComponentTypes = []ComponentType{TypeCAT, TypeAssignment, TypeProject, TypeExam, TypePractical}

func (t ComponentType) IsValid() bool {
	for _, ct := range ComponentTypes {
		if t == ct {
			return true
		}
	}
	return false
}

// Component is a named, weighted and independently scored slot of a Scheme.
type Component struct {
	ID       string        `json:"id" db:"id"`
	SchemeID string        `json:"-" db:"scheme_id"`
	Name     string        `json:"name" db:"name"`
	Type     ComponentType `json:"type" db:"component_type"`
	Weight   float64       `json:"weight" db:"weight"`
	MaxScore float64       `json:"max_score" db:"max_score"`
	Position int           `json:"position" db:"position"`
}

// Band is one row of the breakpoint table: scores >= MinScore map to Grade.
type Band struct {
	SchemeID    string  `json:"-" db:"scheme_id"`
	Grade       string  `json:"grade" db:"grade"`
	MinScore    float64 `json:"min_score" db:"min_score"`
	GradePoint  float64 `json:"grade_point" db:"grade_point"`
	Description string  `json:"description" db:"description"`
	Passing     bool    `json:"passing" db:"passing"`
}

// Scheme is an immutable version of a programme's grading scheme.
// Components are ordered by position, Bands by descending MinScore.
type Scheme struct {
	ID            string      `json:"id" db:"id"`
	ProgrammeID   string      `json:"programme_id" db:"programme_id"`
	Version       int         `json:"version" db:"version"`
	EffectiveFrom time.Time   `json:"effective_from" db:"effective_from"`
	Components    []Component `json:"components" db:"-"`
	Bands         []Band      `json:"bands" db:"-"`
	CreatedBy     null.String `json:"created_by" db:"created_by"`
	CreatedAt     time.Time   `json:"created_at" db:"created_at"`
}

// Classify returns the first band, by descending MinScore, that score reaches.
// The lowest band is returned for scores below every breakpoint.
func (s Scheme) Classify(score float64) Band {
	for _, b := range s.Bands {
		if score >= b.MinScore {
			return b
		}
	}
	if len(s.Bands) == 0 {
		return Band{}
	}
	return s.Bands[len(s.Bands)-1]
}

func (s Scheme) Component(id string) (Component, bool) {
	for _, c := range s.Components {
		if c.ID == id {
			return c, true
		}
	}
	return Component{}, false
}

// DefaultBands returns the faculty breakpoint table.
func DefaultBands() []Band {
	return []Band{
		{Grade: "A", MinScore: 70, GradePoint: 4, Description: "Excellent", Passing: true},
		{Grade: "B", MinScore: 60, GradePoint: 3, Description: "Good", Passing: true},
		{Grade: "C", MinScore: 50, GradePoint: 2, Description: "Satisfactory", Passing: true},
		{Grade: "D", MinScore: 40, GradePoint: 1, Description: "Pass", Passing: true},
		{Grade: "E", MinScore: 0, GradePoint: 0, Description: "Fail", Passing: false},
	}
}

func sortBands(bands []Band) {
	sort.SliceStable(bands, func(i, j int) bool { return bands[i].MinScore > bands[j].MinScore })
}

// NewScheme contains information needed to create a new Scheme version.
type NewScheme struct {
	ProgrammeID   string         `json:"programme_id" validate:"required"`
	EffectiveFrom string         `json:"effective_from" validate:"required,datetime=2006-01-02"`
	Components    []NewComponent `json:"components" validate:"required,min=1,dive"`
	Bands         []NewBand      `json:"bands" validate:"omitempty,dive"`
}

type NewComponent struct {
	Name     string        `json:"name" validate:"required,max=100"`
	Type     ComponentType `json:"type" validate:"required,componenttype"`
	Weight   float64       `json:"weight" validate:"gt=0,lte=100"`
	MaxScore float64       `json:"max_score" validate:"gt=0"`
}

type NewBand struct {
	Grade       string  `json:"grade" validate:"required,max=2"`
	MinScore    float64 `json:"min_score" validate:"gte=0,lte=100"`
	GradePoint  float64 `json:"grade_point" validate:"gte=0,lte=4"`
	Description string  `json:"description" validate:"max=100"`
	Passing     bool    `json:"passing"`
}

func (ns *NewScheme) Validate(validate *validator.Validate) error {
	ns.ProgrammeID = core.CleanString(ns.ProgrammeID)
	ns.EffectiveFrom = core.CleanString(ns.EffectiveFrom)
	for i := range ns.Components {
		ns.Components[i].Name = core.CleanString(ns.Components[i].Name)
		ns.Components[i].Type = ComponentType(core.CleanString(string(ns.Components[i].Type)))
	}
	for i := range ns.Bands {
		ns.Bands[i].Grade = core.CleanString(ns.Bands[i].Grade)
		ns.Bands[i].Description = core.CleanString(ns.Bands[i].Description)
	}
	return validate.Struct(ns)
}
