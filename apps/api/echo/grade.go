package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/alama/core/academic"
	"github.com/trezcool/alama/core/grade"
	"github.com/trezcool/alama/core/mark"
	"github.com/trezcool/alama/core/progression"
	"github.com/trezcool/alama/core/user"
)

var errStdNotFoundInCtx = errors.New("student object not found in echo.Context")

type gradeApi struct {
	svc            grade.Service
	progressionSvc progression.Service
}

func registerGradeAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	usrSvc user.Service,
	acadSvc academic.Service,
	svc grade.Service,
	progressionSvc progression.Service,
) {
	api := gradeApi{
		svc:            svc,
		progressionSvc: progressionSvc,
	}

	sg := g.Group("/students/:id", jwt, ctxStudentOrStaffMiddleware(usrSvc, acadSvc))
	sg.GET("/grades", api.query)
	sg.GET("/grades/:unit_id/:semester_id", api.retrieve)
	sg.GET("/progression/:year_id", api.progression)
}

func contextStudent(ctx echo.Context) (academic.Student, error) {
	std, ok := ctx.Get(contextStudentKey).(academic.Student)
	if !ok {
		return academic.Student{}, errors.Wrap(errStdNotFoundInCtx, "retrieving object from context")
	}
	return std, nil
}

// Handlers

func (api *gradeApi) query(ctx echo.Context) error {
	std, err := contextStudent(ctx)
	if err != nil {
		return err
	}

	grades, err := api.svc.QueryByStudent(ctx.Request().Context(), std.ID, bindListQuery(ctx).SemesterID)
	if err != nil {
		return errors.Wrap(err, "querying final grades")
	}
	return ctx.JSON(http.StatusOK, grades)
}

func (api *gradeApi) retrieve(ctx echo.Context) error {
	std, err := contextStudent(ctx)
	if err != nil {
		return err
	}

	key := mark.Key{StudentID: std.ID, UnitID: ctx.Param("unit_id"), SemesterID: ctx.Param("semester_id")}
	fg, err := api.svc.Get(ctx.Request().Context(), key)
	if err != nil {
		return errors.Wrap(err, "getting final grade")
	}
	return ctx.JSON(http.StatusOK, fg)
}

func (api *gradeApi) progression(ctx echo.Context) error {
	std, err := contextStudent(ctx)
	if err != nil {
		return err
	}

	decision, err := api.progressionSvc.Evaluate(ctx.Request().Context(), std.ID, ctx.Param("year_id"))
	if err != nil {
		return errors.Wrap(err, "evaluating progression")
	}
	return ctx.JSON(http.StatusOK, decision)
}
