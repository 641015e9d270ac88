package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/trezcool/darasa/core"
)

const viewerCtxKey = "viewer"

var errViewerRequired = echo.NewHTTPError(http.StatusUnauthorized, "viewer not identified")

// viewerMiddleware resolves the acting viewer from the identity headers the
// session layer injects upstream. Identity itself lives outside this service;
// we only consume the {id, role} pair.
func viewerMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			v := core.Viewer{
				ID:   ctx.Request().Header.Get("X-Viewer-Id"),
				Name: ctx.Request().Header.Get("X-Viewer-Name"),
				Role: ctx.Request().Header.Get("X-Viewer-Role"),
			}
			if v.ID == "" || (v.Role != core.RoleStudent && v.Role != core.RoleInstructor) {
				return errViewerRequired
			}
			ctx.Set(viewerCtxKey, v)
			return next(ctx)
		}
	}
}

func getContextViewer(ctx echo.Context) core.Viewer {
	v, _ := ctx.Get(viewerCtxKey).(core.Viewer)
	return v
}

// instructorMiddleware guards endpoints that require the edit/review
// capability.
func instructorMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			if !getContextViewer(ctx).IsInstructor() {
				return errHttpForbidden
			}
			return next(ctx)
		}
	}
}
