package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/careerfair-reservation/internal/handler"
	"github.com/iliyamo/careerfair-reservation/internal/middleware"
	"github.com/iliyamo/careerfair-reservation/internal/model"
)

// RegisterTables registers /api/tafels and /api/config/tafels.  Any
// authenticated caller may read a session's tables; the session listing is
// served from the response cache.  Every write is organizer-only.
func RegisterTables(e *echo.Echo, h *handler.TableHandler, g Guard) {
	api := g.api(e)
	organizer := middleware.RequireRole(model.ActorOrganizer)
	participant := middleware.RequireRole(model.ActorStudent, model.ActorCompany)

	api.GET("/tafels/my", h.Mine, participant)
	api.GET("/tafels/:session", h.List, g.cache()...)

	api.POST("/tafels/project/bulk-assign", h.BulkAssign, organizer)
	api.DELETE("/tafels/project/bulk-remove", h.BulkRemove, organizer)
	api.PUT("/tafels/:entityType/:id/tafel/:tableNr", h.Assign, organizer)
	api.DELETE("/tafels/:entityType/:id", h.Remove, organizer)

	api.GET("/config/tafels", h.GetConfig, organizer)
	api.PUT("/config/tafels", h.PutConfig, organizer)
}
