package middleware

import "github.com/labstack/echo/v4"

// userID returns the caller's key for rate limiting: the role-qualified
// subject of the token, or "anon" before authentication.
func userID(c echo.Context) string {
	if a, ok := ActorFrom(c); ok {
		return a.String()
	}
	if v, ok := c.Get(ctxUserID).(string); ok && v != "" {
		return v
	}
	return "anon"
}
