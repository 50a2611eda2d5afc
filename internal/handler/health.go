package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// Pinger is satisfied by *sqlx.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Health is used by load balancers to verify that the service is running.
// With a non-nil db it also checks the database and answers 503 when the
// ping fails.
func Health(db Pinger) echo.HandlerFunc {
	return func(c echo.Context) error {
		if db != nil {
			ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
			defer cancel()
			if err := db.PingContext(ctx); err != nil {
				return respondFail(c, http.StatusServiceUnavailable, "database unavailable", nil)
			}
		}
		return respondMessage(c, http.StatusOK, nil, "ok")
	}
}
