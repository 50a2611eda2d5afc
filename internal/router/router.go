// Package router registers the HTTP routes and their middleware.
package router

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/iliyamo/careerfair-reservation/internal/handler"
	"github.com/iliyamo/careerfair-reservation/internal/middleware"
)

// Guard is the middleware stack of authenticated routes.  RateLimit and
// Cache may be nil.
type Guard struct {
	JWTSecret string
	JWTIssuer string
	RateLimit echo.MiddlewareFunc
	Cache     echo.MiddlewareFunc
}

// api returns the /api group: token verification, then rate limiting keyed
// by the authenticated caller.
func (g Guard) api(e *echo.Echo) *echo.Group {
	mw := []echo.MiddlewareFunc{middleware.JWTAuth(g.JWTSecret, g.JWTIssuer)}
	if g.RateLimit != nil {
		mw = append(mw, g.RateLimit)
	}
	return e.Group("/api", mw...)
}

func (g Guard) cache() []echo.MiddlewareFunc {
	if g.Cache == nil {
		return nil
	}
	return []echo.MiddlewareFunc{g.Cache}
}

// RegisterRoutes registers routes that do not require authentication: the
// health check and the Prometheus scrape endpoint.
func RegisterRoutes(e *echo.Echo, db handler.Pinger) {
	e.GET("/healthz", handler.Health(db))
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
}
