package echoapi

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/alama/core"
	"github.com/trezcool/alama/core/scheme"
	"github.com/trezcool/alama/core/user"
)

type schemeApi struct {
	usrSvc user.Service
	svc    scheme.Service
}

func registerSchemeAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	usrSvc user.Service,
	svc scheme.Service,
) {
	api := schemeApi{
		usrSvc: usrSvc,
		svc:    svc,
	}

	sg := g.Group("/schemes", jwt, staffMiddleware())
	sg.GET("", api.query)
	sg.POST("", api.create, adminMiddleware())
	sg.GET("/:id", api.retrieve)

	g.GET("/programmes/:id/scheme", api.effective, jwt, staffMiddleware())
}

// Handlers

func (api *schemeApi) create(ctx echo.Context) error {
	var data scheme.NewScheme
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewScheme")
	}

	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	sch, err := api.svc.Create(ctx.Request().Context(), ctxUsr, data)
	if err != nil {
		return errors.Wrap(err, "creating grading scheme")
	}
	return ctx.JSON(http.StatusCreated, sch)
}

func (api *schemeApi) query(ctx echo.Context) error {
	q := bindListQuery(ctx)
	schemes, err := api.svc.Query(ctx.Request().Context(), q.ProgrammeID, q.Ordering)
	if err != nil {
		return errors.Wrap(err, "querying grading schemes")
	}
	return ctx.JSON(http.StatusOK, schemes)
}

func (api *schemeApi) retrieve(ctx echo.Context) error {
	sch, err := api.svc.GetByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting grading scheme")
	}
	return ctx.JSON(http.StatusOK, sch)
}

// effective returns the scheme in force for the programme at ?date= (default: today).
func (api *schemeApi) effective(ctx echo.Context) error {
	at := time.Now().UTC()
	if date := ctx.QueryParam("date"); date != "" {
		var err error
		if at, err = core.ParseDate(date); err != nil {
			return core.NewFieldValidationError("date", "must be a date formatted as YYYY-MM-DD")
		}
	}

	sch, err := api.svc.Get(ctx.Request().Context(), ctx.Param("id"), at)
	if err != nil {
		return errors.Wrap(err, "getting effective grading scheme")
	}
	return ctx.JSON(http.StatusOK, sch)
}
