package tests

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/alama/core/grade"
	"github.com/trezcool/alama/core/progression"
	"github.com/trezcool/alama/core/user"
	"github.com/trezcool/alama/tests"
)

func Test_gradeApi_access(t *testing.T) {
	app, env := setup(t)
	f := testutil.NewFaculty(t, env)

	stranger := testutil.CreateUser(t, env.UsrRepo, "Stranger", "stranger", "stranger@test.cd", "", []string{user.RoleStudent}, true)
	notFound := marchallObj(t, httpErr{Error: "not found"})
	base := "/v1/students/" + f.Student.ID

	tests := []httpTest{
		{name: "no token", path: base + "/grades", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{name: "another student", path: base + "/grades", token: getToken(t, app, stranger), wantCode: http.StatusNotFound, wantData: notFound},
		{name: "another student: progression", path: base + "/progression/" + f.Year.ID, token: getToken(t, app, stranger), wantCode: http.StatusNotFound, wantData: notFound},
		{name: "unknown student", path: "/v1/students/lol/grades", token: getToken(t, app, f.Admin), wantCode: http.StatusNotFound, wantData: notFound},
		{name: "own grades", path: base + "/grades", token: getToken(t, app, f.StudentUser), wantCode: http.StatusOK},
		{name: "lecturer", path: base + "/grades", token: getToken(t, app, f.Lecturer), wantCode: http.StatusOK},
	}
	for i := range tests {
		tests[i].method = http.MethodGet
	}
	runHTTPTests(t, app, tests)
}

func Test_gradeApi_grades(t *testing.T) {
	app, env := setup(t)
	f := testutil.NewFaculty(t, env)
	token := getToken(t, app, f.StudentUser)
	base := "/v1/students/" + f.Student.ID

	f.Grade(t, env, f.Unit1, 8, 18, 50)

	// all grades
	req, rec := newAuthRequest(http.MethodGet, base+"/grades", token)
	app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var grades []grade.FinalGrade
	unmarshal(t, rec, &grades)
	require.Len(t, grades, 2)

	byUnit := make(map[string]grade.FinalGrade, len(grades))
	for _, fg := range grades {
		byUnit[fg.UnitID] = fg
	}
	complete := byUnit[f.Unit1.ID]
	assert.Equal(t, grade.StatusComplete, complete.Status)
	assert.Equal(t, 84.0, complete.Total.Float64)
	assert.Equal(t, "A", complete.Grade.String)
	assert.Equal(t, 4.0, complete.GradePoint.Float64)
	assert.True(t, complete.Passed)
	assert.Equal(t, 1, complete.SchemeVersion)
	assert.Empty(t, complete.Missing)

	incomplete := byUnit[f.Unit2.ID]
	assert.Equal(t, grade.StatusIncomplete, incomplete.Status)
	assert.False(t, incomplete.Total.Valid)
	assert.False(t, incomplete.Grade.Valid)
	assert.False(t, incomplete.Passed)
	assert.Equal(t, []string{
		f.Component("CAT").ID, f.Component("ASSIGNMENT").ID, f.Component("EXAM").ID,
	}, incomplete.Missing)

	published := env.Publisher.Published()
	require.Len(t, published, 1)
	assert.Equal(t, f.Unit1.ID, published[0].UnitID)

	tests := []httpTest{
		{name: "other semester", path: base + "/grades?semester_id=" + f.Sem2.ID, wantCode: http.StatusOK, wantData: marchallList(t)},
		{name: "unknown semester", path: base + "/grades?semester_id=lol", wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "semester not found"})},
		{name: "retrieve", path: base + "/grades/" + f.Unit1.ID + "/" + f.Sem1.ID, wantCode: http.StatusOK, wantData: marchallObj(t, complete)},
		{name: "retrieve: not enrolled", path: base + "/grades/" + f.Unit1.ID + "/" + f.Sem2.ID, wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "enrollment not found"})},
	}
	for i := range tests {
		tests[i].method = http.MethodGet
		tests[i].token = token
	}
	runHTTPTests(t, app, tests)

	// cached grades are served without publishing again
	assert.Len(t, env.Publisher.Published(), 1)
}

func Test_gradeApi_progression(t *testing.T) {
	app, env := setup(t)
	f := testutil.NewFaculty(t, env)
	ctx := context.Background()
	token := getToken(t, app, f.StudentUser)
	path := "/v1/students/" + f.Student.ID + "/progression/" + f.Year.ID

	f.Grade(t, env, f.Unit1, 8, 18, 50)

	evaluate := func() progression.Decision {
		req, rec := newAuthRequest(http.MethodGet, path, token)
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var dec progression.Decision
		unmarshal(t, rec, &dec)
		return dec
	}

	dec := evaluate()
	assert.Equal(t, progression.OutcomePending, dec.Outcome)
	assert.False(t, dec.Terminal)
	assert.Equal(t, []string{"CS102"}, dec.IncompleteUnits)
	assert.False(t, dec.GPA.Valid)

	// 10 + 10 + 30 = 50, a C
	f.Grade(t, env, f.Unit2, 5, 10, 30)
	require.NoError(t, env.GradeSvc.Invalidate(ctx, f.Key(f.Unit2)))

	dec = evaluate()
	assert.Equal(t, progression.OutcomeProceed, dec.Outcome)
	assert.True(t, dec.Terminal)
	assert.Equal(t, 3.2, dec.GPA.Float64) // (4×3 + 2×2) / 5
	assert.Equal(t, 2, dec.UnitsPassed)
	assert.Len(t, dec.Units, 2)
	assert.Equal(t, "CS101", dec.Units[0].UnitCode)

	req, rec := newAuthRequest(http.MethodGet, "/v1/students/"+f.Student.ID+"/progression/lol", token)
	app.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"error": "academic year not found"}`, rec.Body.String())
}
