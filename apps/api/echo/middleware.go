package echoapi

import (
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/alama/core/academic"
	"github.com/trezcool/alama/core/user"
)

const contextStudentKey = "student"

func adminMiddleware(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context claims")
			}
			if claims.IsAdmin && contextHasAnyRole(ctx, roles) {
				return next(ctx)
			}
			return errHttpForbidden
		}
	}
}

// staffMiddleware lets admins and lecturers through.
func staffMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context claims")
			}
			if claims.IsAdmin || claims.IsLecturer {
				return next(ctx)
			}
			return errHttpForbidden
		}
	}
}

// ctxStudentOrStaffMiddleware loads the student of the :id param for staff and for the student's own account.
// Anyone else gets a 404, so student IDs cannot be probed.
func ctxStudentOrStaffMiddleware(usrSvc user.Service, acadSvc academic.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			ctxUsr, err := getContextUser(ctx, usrSvc)
			if err != nil {
				return errors.Wrap(err, "getting context user")
			}

			std, err := acadSvc.GetStudent(ctx.Request().Context(), ctx.Param("id"))
			if err != nil {
				if errors.Cause(err) == academic.ErrStudentNotFound {
					return errHttpNotFound
				}
				return errors.Wrap(err, "finding student by ID")
			}
			if ctxUsr.IsStaff() || (std.UserID.Valid && std.UserID.String == ctxUsr.ID) {
				ctx.Set(contextStudentKey, std)
				return next(ctx)
			}
			return errHttpNotFound
		}
	}
}
