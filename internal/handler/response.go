package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/careerfair-reservation/internal/middleware"
	"github.com/iliyamo/careerfair-reservation/internal/service"
)

// Every endpoint answers with {success, data?, message?, error?}.  Error
// responses may add "fields", "conflicts" or "occupant".

func respond(c echo.Context, status int, data any) error {
	return c.JSON(status, echo.Map{"success": true, "data": data})
}

func respondMessage(c echo.Context, status int, data any, msg string) error {
	body := echo.Map{"success": true, "message": msg}
	if data != nil {
		body["data"] = data
	}
	return c.JSON(status, body)
}

func respondFail(c echo.Context, status int, msg string, extra echo.Map) error {
	body := echo.Map{"success": false, "error": msg}
	for k, v := range extra {
		body[k] = v
	}
	return c.JSON(status, body)
}

// respondError maps service errors onto status codes.  Anything that is not
// a domain error is logged and reported as a generic 500.
func respondError(c echo.Context, log *zap.Logger, err error) error {
	var (
		ve  *service.ValidationError
		ite *service.InvalidTransitionError
		ine *service.InvalidTableError
		nf  *service.NotFoundError
		nae *service.NotAssignedError
		ce  *service.ConflictError
		toe *service.TableOccupiedError
	)
	switch {
	case errors.As(err, &ve):
		return respondFail(c, http.StatusBadRequest, "validation failed", echo.Map{"fields": ve.Fields})
	case errors.As(err, &ite):
		return respondFail(c, http.StatusBadRequest, ite.Error(), echo.Map{"from": ite.From, "to": ite.To})
	case errors.As(err, &ine):
		return respondFail(c, http.StatusBadRequest, ine.Error(), echo.Map{
			"fields":   map[string]string{"tableNumber": ine.Error()},
			"capacity": ine.Capacity,
		})
	case errors.Is(err, service.ErrForbidden):
		return respondFail(c, http.StatusForbidden, "forbidden", nil)
	case errors.As(err, &nf):
		return respondFail(c, http.StatusNotFound, nf.Error(), nil)
	case errors.As(err, &nae):
		return respondFail(c, http.StatusNotFound, nae.Error(), nil)
	case errors.As(err, &ce):
		return respondFail(c, http.StatusConflict, "reservation conflicts with an existing reservation", echo.Map{"conflicts": ce.Conflicts})
	case errors.As(err, &toe):
		return respondFail(c, http.StatusConflict, toe.Error(), echo.Map{"occupant": toe.Occupant})
	case errors.Is(err, context.DeadlineExceeded):
		log.Warn("request timed out", zap.String("request_id", middleware.RequestID(c)), zap.Error(err))
		return respondFail(c, http.StatusInternalServerError, "request timed out", nil)
	}
	log.Error("internal error",
		zap.String("request_id", middleware.RequestID(c)),
		zap.String("path", c.Request().URL.Path),
		zap.Error(err))
	return respondFail(c, http.StatusInternalServerError, "internal server error", nil)
}
