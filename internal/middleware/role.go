package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/careerfair-reservation/internal/model"
)

// RequireRole aborts with 403 unless the actor stored by JWTAuth has one of
// the given kinds.  It must run after JWTAuth.
func RequireRole(kinds ...model.ActorKind) echo.MiddlewareFunc {
	allowed := make(map[model.ActorKind]bool, len(kinds))
	for _, k := range kinds {
		allowed[k] = true
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			actor, ok := ActorFrom(c)
			if !ok || !allowed[actor.Kind] {
				return c.JSON(http.StatusForbidden, echo.Map{"success": false, "error": "forbidden"})
			}
			return next(c)
		}
	}
}
