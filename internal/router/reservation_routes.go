package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/careerfair-reservation/internal/handler"
	"github.com/iliyamo/careerfair-reservation/internal/middleware"
	"github.com/iliyamo/careerfair-reservation/internal/model"
)

// RegisterReservations registers /api/reservaties.  Participants create,
// list and transition their own reservations; the service decides who may
// take which edge.  Listing everything and hard delete are organizer-only.
func RegisterReservations(e *echo.Echo, h *handler.ReservationHandler, g Guard) {
	api := g.api(e)
	participant := middleware.RequireRole(model.ActorStudent, model.ActorCompany)
	organizer := middleware.RequireRole(model.ActorOrganizer)

	api.POST("/reservaties", h.Create)
	api.GET("/reservaties", h.List, organizer)
	api.GET("/reservaties/my", h.Mine, participant)
	api.GET("/reservaties/:id", h.Get)
	api.PUT("/reservaties/:id/status", h.UpdateStatus)
	api.DELETE("/reservaties/:id", h.Delete, organizer)
}
