package tests

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/alama/core/academic"
	"github.com/trezcool/alama/core/mark"
	"github.com/trezcool/alama/core/scheme"
	"github.com/trezcool/alama/tests"
)

func Test_markApi_record(t *testing.T) {
	app, env := setup(t)
	f := testutil.NewFaculty(t, env)
	ctx := context.Background()

	dropped := testutil.CreateStudent(t, env.AcadRepo, f.Programme, "CS/002/2024")
	testutil.Enroll(t, env.AcadRepo, dropped, f.Unit1, f.Sem1, academic.StatusDropped)

	lecturerToken := getToken(t, app, f.Lecturer)
	cat := f.Component(scheme.TypeCAT)
	body := func(std academic.Student, unit academic.Unit, sem academic.Semester, compID string, score interface{}) []byte {
		data := map[string]interface{}{
			"student_id":   std.ID,
			"unit_id":      unit.ID,
			"semester_id":  sem.ID,
			"component_id": compID,
		}
		if score != nil {
			data["score"] = score
		}
		return marchallObj(t, data)
	}

	// cache a grade so the invalidation can be observed
	_, err := env.GradeSvc.Refresh(ctx, f.Key(f.Unit1))
	require.NoError(t, err)

	tests := []httpTest{
		{name: "no token", body: body(f.Student, f.Unit1, f.Sem1, cat.ID, 8), wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{
			name:     "student",
			body:     body(f.Student, f.Unit1, f.Sem1, cat.ID, 8),
			token:    getToken(t, app, f.StudentUser),
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
		{
			name:     "lecturer not allocated to the unit",
			body:     body(f.Student, f.Unit2, f.Sem1, cat.ID, 8),
			token:    lecturerToken,
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
		{
			name:     "missing score",
			body:     body(f.Student, f.Unit1, f.Sem1, cat.ID, nil),
			token:    lecturerToken,
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"score": "this field is required"}),
		},
		{
			name:     "negative score",
			body:     body(f.Student, f.Unit1, f.Sem1, cat.ID, -1),
			token:    lecturerToken,
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"score": "score must be 0 or greater"}),
		},
		{
			name:     "score above the maximum",
			body:     body(f.Student, f.Unit1, f.Sem1, cat.ID, 10.5),
			token:    lecturerToken,
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"score": "must be 10 or less"}),
		},
		{
			name:     "unknown component",
			body:     body(f.Student, f.Unit1, f.Sem1, "lol", 8),
			token:    lecturerToken,
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"component_id": "not a component of grading scheme version 1"}),
		},
		{
			name:     "dropped enrollment",
			body:     body(dropped, f.Unit1, f.Sem1, cat.ID, 8),
			token:    lecturerToken,
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"student_id": "enrollment was dropped"}),
		},
		{
			name:     "not enrolled",
			body:     body(f.Student, f.Unit1, f.Sem2, cat.ID, 8),
			token:    getToken(t, app, f.Admin),
			wantCode: http.StatusNotFound,
			wantData: marchallObj(t, httpErr{Error: "enrollment not found"}),
		},
		{name: "record", body: body(f.Student, f.Unit1, f.Sem1, cat.ID, 8), token: lecturerToken, wantCode: http.StatusCreated},
		{name: "overwrite", body: body(f.Student, f.Unit1, f.Sem1, cat.ID, 9.5), token: lecturerToken, wantCode: http.StatusCreated},
	}
	for i := range tests {
		tests[i].method = http.MethodPost
		tests[i].path = "/v1/marks"
	}
	runHTTPTests(t, app, tests)

	marks, err := env.MarkRepo.QueryMarks(ctx, f.Key(f.Unit1))
	require.NoError(t, err)
	require.Len(t, marks, 1)
	assert.Equal(t, 9.5, marks[0].Score)
	assert.Equal(t, f.Lecturer.ID, marks[0].EnteredBy)

	fg, err := env.GradeRepo.GetFinalGrade(ctx, f.Key(f.Unit1))
	require.NoError(t, err)
	assert.True(t, fg.Stale)
}

func Test_markApi_query(t *testing.T) {
	app, env := setup(t)
	f := testutil.NewFaculty(t, env)
	ctx := context.Background()

	f.Grade(t, env, f.Unit1, 8, 18, 50)
	f.Grade(t, env, f.Unit2, 5, 10, 30)
	unit1Marks, err := env.MarkRepo.QueryMarks(ctx, f.Key(f.Unit1))
	require.NoError(t, err)
	allMarks, err := env.MarkRepo.QueryMarks(ctx, mark.Key{StudentID: f.Student.ID})
	require.NoError(t, err)
	require.Len(t, allMarks, 6)

	lecturerToken := getToken(t, app, f.Lecturer)
	toList := func(marks []mark.Mark) []interface{} {
		objs := make([]interface{}, 0, len(marks))
		for _, m := range marks {
			objs = append(objs, m)
		}
		return objs
	}

	tests := []httpTest{
		{name: "no token", path: "/v1/marks", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{name: "student", path: "/v1/marks?student_id=" + f.Student.ID, token: getToken(t, app, f.StudentUser), wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied"})},
		{name: "no student", path: "/v1/marks", token: lecturerToken, wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"student_id": "this field is required"})},
		{name: "all units", path: "/v1/marks?student_id=" + f.Student.ID, token: lecturerToken, wantCode: http.StatusOK, wantData: marchallList(t, toList(allMarks)...)},
		{
			name:     "one unit",
			path:     "/v1/marks?student_id=" + f.Student.ID + "&unit_id=" + f.Unit1.ID + "&semester_id=" + f.Sem1.ID,
			token:    lecturerToken,
			wantCode: http.StatusOK,
			wantData: marchallList(t, toList(unit1Marks)...),
		},
		{name: "other semester", path: "/v1/marks?student_id=" + f.Student.ID + "&semester_id=" + f.Sem2.ID, token: lecturerToken, wantCode: http.StatusOK, wantData: marchallList(t)},
	}
	for i := range tests {
		tests[i].method = http.MethodGet
	}
	runHTTPTests(t, app, tests)
}

func Test_markApi_lock(t *testing.T) {
	app, env := setup(t)
	f := testutil.NewFaculty(t, env)

	adminToken := getToken(t, app, f.Admin)
	lecturerToken := getToken(t, app, f.Lecturer)
	lockPath := "/v1/units/" + f.Unit1.ID + "/semesters/" + f.Sem1.ID + "/lock"
	markBody := marchallObj(t, map[string]interface{}{
		"student_id":   f.Student.ID,
		"unit_id":      f.Unit1.ID,
		"semester_id":  f.Sem1.ID,
		"component_id": f.Component(scheme.TypeExam).ID,
		"score":        45,
	})

	tests := []httpTest{
		{name: "lock: no token", method: http.MethodPost, path: lockPath, wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{name: "lock: lecturer", method: http.MethodPost, path: lockPath, token: lecturerToken, wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied"})},
		{
			name:     "lock: unknown unit",
			method:   http.MethodPost,
			path:     "/v1/units/lol/semesters/" + f.Sem1.ID + "/lock",
			token:    adminToken,
			wantCode: http.StatusNotFound,
			wantData: marchallObj(t, httpErr{Error: "unit not found"}),
		},
		{name: "lock", method: http.MethodPost, path: lockPath, token: adminToken, wantCode: http.StatusCreated},
		{name: "lock: already locked", method: http.MethodPost, path: lockPath, token: adminToken, wantCode: http.StatusConflict, wantData: marchallObj(t, httpErr{Error: mark.ErrAlreadyLocked.Error()})},
		{
			name:     "record: locked",
			method:   http.MethodPost,
			path:     "/v1/marks",
			body:     markBody,
			token:    lecturerToken,
			wantCode: http.StatusLocked,
			wantData: marchallObj(t, httpErr{Error: "marks for unit " + f.Unit1.ID + " in semester " + f.Sem1.ID + " are locked"}),
		},
		{name: "unlock: lecturer", method: http.MethodDelete, path: lockPath, token: lecturerToken, wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied"})},
		{name: "unlock", method: http.MethodDelete, path: lockPath, token: adminToken, wantCode: http.StatusNoContent},
		{name: "unlock: not locked", method: http.MethodDelete, path: lockPath, token: adminToken, wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "mark lock not found"})},
		{name: "record: unlocked", method: http.MethodPost, path: "/v1/marks", body: markBody, token: lecturerToken, wantCode: http.StatusCreated},
	}
	runHTTPTests(t, app, tests)
}
