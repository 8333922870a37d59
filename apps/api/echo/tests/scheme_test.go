package tests

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/alama/core/scheme"
	"github.com/trezcool/alama/tests"
)

func Test_schemeApi(t *testing.T) {
	app, env := setup(t)
	f := testutil.NewFaculty(t, env)

	adminToken := getToken(t, app, f.Admin)
	lecturerToken := getToken(t, app, f.Lecturer)
	studentToken := getToken(t, app, f.StudentUser)
	forbidden := marchallObj(t, httpErr{Error: "permission denied"})

	newScheme := func(effFrom string, weights ...float64) scheme.NewScheme {
		types := []scheme.ComponentType{scheme.TypeCAT, scheme.TypeAssignment, scheme.TypeExam}
		ns := scheme.NewScheme{ProgrammeID: f.Programme.ID, EffectiveFrom: effFrom}
		for i, w := range weights {
			ns.Components = append(ns.Components, scheme.NewComponent{Name: string(types[i]), Type: types[i], Weight: w, MaxScore: 100})
		}
		return ns
	}
	unknownProg := newScheme("2025-01-01", 30, 70)
	unknownProg.ProgrammeID = "lol"

	tests := []httpTest{
		{name: "no token", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{name: "student", token: studentToken, body: marchallObj(t, newScheme("2025-01-01", 30, 70)), wantCode: http.StatusForbidden, wantData: forbidden},
		{name: "lecturer", token: lecturerToken, body: marchallObj(t, newScheme("2025-01-01", 30, 70)), wantCode: http.StatusForbidden, wantData: forbidden},
		{
			name:     "weights do not sum to 100",
			token:    adminToken,
			body:     marchallObj(t, newScheme("2025-01-01", 30, 60)),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"components": "component weights must sum to 100"}),
		},
		{
			name:     "bad date",
			token:    adminToken,
			body:     marchallObj(t, newScheme("01/01/2025", 30, 70)),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"effective_from": "must be a date formatted as YYYY-MM-DD"}),
		},
		{
			name:     "not after the latest version",
			token:    adminToken,
			body:     marchallObj(t, newScheme("2024-01-01", 30, 70)),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"effective_from": "must be after 2024-01-01, the effective date of version 1"}),
		},
		{
			name:     "unknown programme",
			token:    adminToken,
			body:     marchallObj(t, unknownProg),
			wantCode: http.StatusNotFound,
			wantData: marchallObj(t, httpErr{Error: "programme not found"}),
		},
	}
	for i := range tests {
		tests[i].method = http.MethodPost
		tests[i].path = "/v1/schemes"
	}
	runHTTPTests(t, app, tests)

	// create version 2
	req, rec := newAuthRequest(http.MethodPost, "/v1/schemes", adminToken, marchallObj(t, newScheme("2025-01-01", 30, 10, 60)))
	app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var v2 scheme.Scheme
	unmarshal(t, rec, &v2)
	assert.Equal(t, 2, v2.Version)
	assert.Equal(t, f.Programme.ID, v2.ProgrammeID)
	assert.Equal(t, f.Admin.ID, v2.CreatedBy.String)
	assert.Len(t, v2.Components, 3)
	assert.Equal(t, scheme.DefaultBands()[0].Grade, v2.Bands[0].Grade)

	v1Data := marchallObj(t, f.Scheme)
	v2Data := marchallObj(t, v2)
	effective := "/v1/programmes/" + f.Programme.ID + "/scheme"

	tests = []httpTest{
		{name: "query: student", method: http.MethodGet, path: "/v1/schemes", token: studentToken, wantCode: http.StatusForbidden, wantData: forbidden},
		{name: "query: newest first", method: http.MethodGet, path: "/v1/schemes?programme_id=" + f.Programme.ID, token: lecturerToken, wantCode: http.StatusOK, wantData: marchallList(t, v2, f.Scheme)},
		{name: "query: ordered by version", method: http.MethodGet, path: "/v1/schemes?ordering=version", token: lecturerToken, wantCode: http.StatusOK, wantData: marchallList(t, f.Scheme, v2)},
		{name: "query: unknown programme", method: http.MethodGet, path: "/v1/schemes?programme_id=lol", token: lecturerToken, wantCode: http.StatusOK, wantData: marchallList(t)},
		{name: "retrieve", method: http.MethodGet, path: "/v1/schemes/" + f.Scheme.ID, token: lecturerToken, wantCode: http.StatusOK, wantData: v1Data},
		{name: "retrieve: not found", method: http.MethodGet, path: "/v1/schemes/lol", token: adminToken, wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "grading scheme not found"})},
		{name: "effective: student", method: http.MethodGet, path: effective, token: studentToken, wantCode: http.StatusForbidden, wantData: forbidden},
		{name: "effective: bad date", method: http.MethodGet, path: effective + "?date=lol", token: adminToken, wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"date": "must be a date formatted as YYYY-MM-DD"})},
		{name: "effective: before any version", method: http.MethodGet, path: effective + "?date=2023-12-31", token: adminToken, wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "grading scheme not found"})},
		{name: "effective: version 1", method: http.MethodGet, path: effective + "?date=2024-12-31", token: adminToken, wantCode: http.StatusOK, wantData: v1Data},
		{name: "effective: version 2 from its first day", method: http.MethodGet, path: effective + "?date=2025-01-01", token: adminToken, wantCode: http.StatusOK, wantData: v2Data},
		{name: "effective: today", method: http.MethodGet, path: effective, token: lecturerToken, wantCode: http.StatusOK, wantData: v2Data},
	}
	runHTTPTests(t, app, tests)
}
