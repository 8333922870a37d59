package echoapi

import (
	"github.com/labstack/echo/v4"

	"github.com/trezcool/alama/core"
)

const (
	orderingParam  = "ordering"
	programmeParam = "programme_id"
	semesterParam  = "semester_id"
)

// listQuery holds the query parameters shared by list endpoints.
type listQuery struct {
	Ordering    []core.DBOrdering
	ProgrammeID string
	SemesterID  string
}

func bindListQuery(ctx echo.Context) listQuery {
	return listQuery{
		Ordering:    core.ParseOrdering(ctx.QueryParam(orderingParam)),
		ProgrammeID: core.CleanString(ctx.QueryParam(programmeParam)),
		SemesterID:  core.CleanString(ctx.QueryParam(semesterParam)),
	}
}
