package scheme_test

import (
	"context"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/alama/core"
	"github.com/trezcool/alama/core/academic"
	"github.com/trezcool/alama/core/scheme"
	"github.com/trezcool/alama/tests"
)

func TestScheme_Classify(t *testing.T) {
	sch := scheme.Scheme{Bands: scheme.DefaultBands()}

	tests := []struct {
		score     float64
		wantGrade string
		wantPass  bool
	}{
		{score: 100, wantGrade: "A", wantPass: true},
		{score: 70, wantGrade: "A", wantPass: true},
		{score: 69.99, wantGrade: "B", wantPass: true},
		{score: 60, wantGrade: "B", wantPass: true},
		{score: 59.99, wantGrade: "C", wantPass: true},
		{score: 50, wantGrade: "C", wantPass: true},
		{score: 40, wantGrade: "D", wantPass: true},
		{score: 39.99, wantGrade: "E", wantPass: false},
		{score: 0, wantGrade: "E", wantPass: false},
	}
	for _, tt := range tests {
		band := sch.Classify(tt.score)
		assert.Equal(t, tt.wantGrade, band.Grade, "Classify(%v)", tt.score)
		assert.Equal(t, tt.wantPass, band.Passing, "Classify(%v)", tt.score)
	}

	assert.Equal(t, scheme.Band{}, scheme.Scheme{}.Classify(50))
}

func validScheme(programmeID, effFrom string) scheme.NewScheme {
	return scheme.NewScheme{
		ProgrammeID:   programmeID,
		EffectiveFrom: effFrom,
		Components: []scheme.NewComponent{
			{Name: "CAT", Type: scheme.TypeCAT, Weight: 30, MaxScore: 30},
			{Name: "Exam", Type: scheme.TypeExam, Weight: 70, MaxScore: 100},
		},
	}
}

func fieldErrors(t *testing.T, err error) map[string]string {
	t.Helper()
	require.Error(t, err)
	flds := make(map[string]string)
	switch cause := errors.Cause(err).(type) {
	case validator.ValidationErrors:
		for _, fe := range cause {
			flds[fe.Field()] = fe.Tag()
		}
	case *core.ValidationError:
		for _, fe := range cause.Fields {
			flds[fe.Field] = fe.Error
		}
	default:
		t.Fatalf("not a validation error: %v", err)
	}
	return flds
}

func TestService_Create_validation(t *testing.T) {
	env := testutil.NewEnv()
	f := testutil.NewFaculty(t, env)
	ctx := context.Background()

	tests := []struct {
		name    string
		mutate  func(ns *scheme.NewScheme)
		wantFld string
		wantTag string
	}{
		{name: "no components", mutate: func(ns *scheme.NewScheme) { ns.Components = nil }, wantFld: "components", wantTag: "required"},
		{name: "weights below 100", mutate: func(ns *scheme.NewScheme) { ns.Components[0].Weight = 20 }, wantFld: "components", wantTag: "weightsum"},
		{name: "duplicate type", mutate: func(ns *scheme.NewScheme) { ns.Components[1].Type = scheme.TypeCAT }, wantFld: "components", wantTag: "uniquetypes"},
		{name: "unknown type", mutate: func(ns *scheme.NewScheme) { ns.Components[1].Type = "QUIZ" }, wantFld: "type", wantTag: "componenttype"},
		{name: "zero max score", mutate: func(ns *scheme.NewScheme) { ns.Components[0].MaxScore = 0 }, wantFld: "max_score", wantTag: "gt"},
		{
			name: "bands without floor",
			mutate: func(ns *scheme.NewScheme) {
				ns.Bands = []scheme.NewBand{{Grade: "P", MinScore: 50, GradePoint: 1, Passing: true}, {Grade: "F", MinScore: 10}}
			},
			wantFld: "bands", wantTag: "bandfloor",
		},
		{
			name: "duplicate grades",
			mutate: func(ns *scheme.NewScheme) {
				ns.Bands = []scheme.NewBand{{Grade: "P", MinScore: 50, Passing: true}, {Grade: "P", MinScore: 0}}
			},
			wantFld: "bands", wantTag: "uniquegrades",
		},
		{name: "bad date", mutate: func(ns *scheme.NewScheme) { ns.EffectiveFrom = "2025-13-01" }, wantFld: "effective_from", wantTag: "datetime"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			ns := validScheme(f.Programme.ID, "2025-01-01")
			tt.mutate(&ns)
			_, err := env.SchemeSvc.Create(ctx, f.Admin, ns)
			assert.Equal(t, tt.wantTag, fieldErrors(t, err)[tt.wantFld], "errors: %v", err)
		})
	}

	_, err := env.SchemeSvc.Create(ctx, f.Lecturer, validScheme(f.Programme.ID, "2025-01-01"))
	assert.Equal(t, core.ErrPermissionDenied, err)

	_, err = env.SchemeSvc.Create(ctx, f.Admin, validScheme("lol", "2025-01-01"))
	assert.Equal(t, academic.ErrProgrammeNotFound, errors.Cause(err))
}

func TestService_Create_versioning(t *testing.T) {
	env := testutil.NewEnv()
	f := testutil.NewFaculty(t, env)
	ctx := context.Background()

	v2, err := env.SchemeSvc.Create(ctx, f.Admin, validScheme(f.Programme.ID, "2025-01-01"))
	require.NoError(t, err)
	assert.Equal(t, 2, v2.Version)
	assert.Equal(t, f.Admin.ID, v2.CreatedBy.String)
	require.Len(t, v2.Components, 2)
	assert.Equal(t, 1, v2.Components[0].Position)
	assert.Equal(t, 2, v2.Components[1].Position)
	assert.Equal(t, scheme.DefaultBands()[0].Grade, v2.Bands[0].Grade)

	// custom bands are sorted by descending breakpoint
	ns := validScheme(f.Programme.ID, "2025-09-01")
	ns.Bands = []scheme.NewBand{
		{Grade: "F", MinScore: 0},
		{Grade: "P", MinScore: 50, GradePoint: 2, Passing: true},
		{Grade: "D", MinScore: 75, GradePoint: 4, Passing: true},
	}
	v3, err := env.SchemeSvc.Create(ctx, f.Admin, ns)
	require.NoError(t, err)
	assert.Equal(t, 3, v3.Version)
	require.Len(t, v3.Bands, 3)
	assert.Equal(t, []string{"D", "P", "F"}, []string{v3.Bands[0].Grade, v3.Bands[1].Grade, v3.Bands[2].Grade})

	// versions are append-only in effective date order
	_, err = env.SchemeSvc.Create(ctx, f.Admin, validScheme(f.Programme.ID, "2025-09-01"))
	assert.Contains(t, fieldErrors(t, err)["effective_from"], "must be after 2025-09-01")

	// the version in force depends on the date
	for date, want := range map[string]int{
		"2024-01-01": 1,
		"2024-12-31": 1,
		"2025-01-01": 2,
		"2025-08-31": 2,
		"2025-09-01": 3,
		"2030-01-01": 3,
	} {
		sch, err := env.SchemeSvc.Get(ctx, f.Programme.ID, testutil.Date(t, date))
		require.NoError(t, err, date)
		assert.Equal(t, want, sch.Version, date)
	}
	_, err = env.SchemeSvc.Get(ctx, f.Programme.ID, testutil.Date(t, "2023-12-31"))
	assert.Equal(t, scheme.ErrNotFound, errors.Cause(err))

	// earlier versions are untouched
	v1, err := env.SchemeSvc.GetByID(ctx, f.Scheme.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, v1.Version)
	assert.Equal(t, f.Scheme.Components, v1.Components)
	assert.Equal(t, f.Scheme.Bands, v1.Bands)

	schemes, err := env.SchemeSvc.Query(ctx, f.Programme.ID, []core.DBOrdering{{Field: "lol"}})
	require.NoError(t, err)
	require.Len(t, schemes, 3)
	assert.Equal(t, []int{3, 2, 1}, []int{schemes[0].Version, schemes[1].Version, schemes[2].Version})

	schemes, err = env.SchemeSvc.Query(ctx, f.Programme.ID, []core.DBOrdering{{Field: "effective_from", Ascending: true}})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, []int{schemes[0].Version, schemes[1].Version, schemes[2].Version})
}
