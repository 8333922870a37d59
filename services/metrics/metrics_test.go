package metrics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/alama/core/grade"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	return rec.Body.String()
}

func TestMetrics_Middleware(t *testing.T) {
	m := New()
	app := echo.New()
	app.Use(m.Middleware())
	app.GET("/v1/students/:id/grades", func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})
	app.POST("/v1/marks", func(c echo.Context) error {
		return echo.NewHTTPError(http.StatusBadRequest)
	})

	for _, path := range []string{"/v1/students/1/grades", "/v1/students/2/grades"} {
		app.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}
	app.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/v1/marks", nil))

	out := scrape(t, m)
	assert.Contains(t, out, `alama_http_requests_total{code="200",method="GET",route="/v1/students/:id/grades"} 2`)
	assert.Contains(t, out, `alama_http_requests_total{code="400",method="POST",route="/v1/marks"} 1`)
	assert.Contains(t, out, `alama_http_request_duration_seconds_count{method="GET",route="/v1/students/:id/grades"} 2`)
	assert.NotContains(t, out, `route="/v1/students/1/grades"`)
}

func TestMetrics_Publish(t *testing.T) {
	m := New()
	ctx := context.Background()

	m.Publish(ctx, grade.FinalGrade{Grade: null.StringFrom("A"), Passed: true})
	m.Publish(ctx, grade.FinalGrade{Grade: null.StringFrom("A"), Passed: true})
	m.Publish(ctx, grade.FinalGrade{Grade: null.StringFrom("E")})
	m.AddRecomputed(3)
	m.AddRecomputed(2)

	out := scrape(t, m)
	assert.Contains(t, out, `alama_grades_finalized_total{grade="A",passed="true"} 2`)
	assert.Contains(t, out, `alama_grades_finalized_total{grade="E",passed="false"} 1`)
	assert.Contains(t, out, `alama_stale_grades_recomputed_total 5`)
}

func TestNew_privateRegistry(t *testing.T) {
	m1, m2 := New(), New()
	m1.AddRecomputed(1)
	assert.Contains(t, scrape(t, m1), `alama_stale_grades_recomputed_total 1`)
	assert.Contains(t, scrape(t, m2), `alama_stale_grades_recomputed_total 0`)
}
