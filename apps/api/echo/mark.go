package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/alama/core/mark"
	"github.com/trezcool/alama/core/user"
)

type markApi struct {
	usrSvc user.Service
	svc    mark.Service
}

func registerMarkAPI(g *echo.Group, jwt echo.MiddlewareFunc, usrSvc user.Service, svc mark.Service) {
	api := markApi{
		usrSvc: usrSvc,
		svc:    svc,
	}

	mg := g.Group("/marks", jwt)
	// grading authority (admin or allocated lecturer) is checked per unit by the service
	mg.POST("", api.record)
	mg.GET("", api.query, staffMiddleware())

	lg := g.Group("/units/:unit_id/semesters/:semester_id/lock", jwt, adminMiddleware())
	lg.POST("", api.lock)
	lg.DELETE("", api.unlock)
}

// Handlers

func (api *markApi) record(ctx echo.Context) error {
	var data mark.NewMark
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewMark")
	}

	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	m, err := api.svc.Record(ctx.Request().Context(), ctxUsr, data)
	if err != nil {
		return errors.Wrap(err, "recording mark")
	}
	return ctx.JSON(http.StatusCreated, m)
}

func (api *markApi) query(ctx echo.Context) error {
	var key mark.Key
	if err := ctx.Bind(&key); err != nil {
		return errors.Wrap(err, "binding to mark.Key")
	}

	marks, err := api.svc.Query(ctx.Request().Context(), key)
	if err != nil {
		return errors.Wrap(err, "querying marks")
	}
	return ctx.JSON(http.StatusOK, marks)
}

func (api *markApi) lock(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	lock, err := api.svc.Lock(ctx.Request().Context(), ctxUsr, ctx.Param("unit_id"), ctx.Param("semester_id"))
	if err != nil {
		if errors.Cause(err) == mark.ErrAlreadyLocked {
			return echo.NewHTTPError(http.StatusConflict, mark.ErrAlreadyLocked.Error())
		}
		return errors.Wrap(err, "locking marks")
	}
	return ctx.JSON(http.StatusCreated, lock)
}

func (api *markApi) unlock(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	if err = api.svc.Unlock(ctx.Request().Context(), ctxUsr, ctx.Param("unit_id"), ctx.Param("semester_id")); err != nil {
		return errors.Wrap(err, "unlocking marks")
	}
	return ctx.NoContent(http.StatusNoContent)
}
