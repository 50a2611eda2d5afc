package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/careerfair-reservation/internal/model"
	"github.com/iliyamo/careerfair-reservation/internal/service"
)

// AllocationService is the part of service.AllocationService the HTTP layer
// uses.
type AllocationService interface {
	Assign(ctx context.Context, actor model.Actor, e model.Entity, table int) (*model.Assignment, error)
	Remove(ctx context.Context, actor model.Actor, e model.Entity) (*model.Removal, error)
	BulkAssign(ctx context.Context, actor model.Actor, title string, table int) (*model.Assignment, error)
	BulkRemove(ctx context.Context, actor model.Actor, title string) (*model.Removal, error)
	ListAvailable(ctx context.Context, session model.Session) (*model.SessionTables, error)
	Lookup(ctx context.Context, actor model.Actor) (*model.Seat, error)
	Configs(ctx context.Context, actor model.Actor) ([]model.SessionConfig, error)
	SetCapacity(ctx context.Context, actor model.Actor, session model.Session, capacity int) (*service.CapacityChange, error)
}

// CachePurger drops cached table listings after a write.
type CachePurger interface {
	Purge(ctx context.Context)
}

type nopPurger struct{}

func (nopPurger) Purge(context.Context) {}

// TableHandler serves /api/tafels and /api/config/tafels.
type TableHandler struct {
	base
	svc    AllocationService
	purger CachePurger
}

// NewTableHandler wires the handler.  A nil purger disables cache purging.
func NewTableHandler(svc AllocationService, purger CachePurger, o Options) *TableHandler {
	if svc == nil {
		panic("nil service passed to NewTableHandler")
	}
	if purger == nil {
		purger = nopPurger{}
	}
	return &TableHandler{base: newBase(o), svc: svc, purger: purger}
}

// List handles GET /api/tafels/:session.  The session accepts morning,
// afternoon, voormiddag and namiddag.
func (h *TableHandler) List(c echo.Context) error {
	session, err := model.ParseSession(c.Param("session"))
	if err != nil {
		return h.fail(c, &service.ValidationError{Fields: map[string]string{"session": err.Error()}})
	}
	ctx, cancel := h.context(c)
	defer cancel()
	tables, err := h.svc.ListAvailable(ctx, session)
	if err != nil {
		return h.fail(c, err)
	}
	return respond(c, http.StatusOK, tables)
}

// Mine handles GET /api/tafels/my.
func (h *TableHandler) Mine(c echo.Context) error {
	actor, err := h.actor(c)
	if err != nil {
		return h.fail(c, err)
	}
	ctx, cancel := h.context(c)
	defer cancel()
	seat, err := h.svc.Lookup(ctx, actor)
	if err != nil {
		return h.fail(c, err)
	}
	return respond(c, http.StatusOK, seat)
}

// Assign handles PUT /api/tafels/:entityType/:id/tafel/:tableNr.
func (h *TableHandler) Assign(c echo.Context) error {
	actor, err := h.actor(c)
	if err != nil {
		return h.fail(c, err)
	}
	e, err := entityParam(c)
	if err != nil {
		return h.fail(c, err)
	}
	table, err := strconv.Atoi(c.Param("tableNr"))
	if err != nil {
		return h.fail(c, &service.ValidationError{Fields: map[string]string{"tableNumber": "must be a number"}})
	}
	ctx, cancel := h.context(c)
	defer cancel()
	out, err := h.svc.Assign(ctx, actor, e, table)
	if err != nil {
		return h.fail(c, err)
	}
	if out.Changed {
		h.purger.Purge(ctx)
		return respondMessage(c, http.StatusOK, out, "table assigned")
	}
	return respondMessage(c, http.StatusOK, out, "already assigned to this table")
}

// Remove handles DELETE /api/tafels/:entityType/:id.
func (h *TableHandler) Remove(c echo.Context) error {
	actor, err := h.actor(c)
	if err != nil {
		return h.fail(c, err)
	}
	e, err := entityParam(c)
	if err != nil {
		return h.fail(c, err)
	}
	ctx, cancel := h.context(c)
	defer cancel()
	out, err := h.svc.Remove(ctx, actor, e)
	if err != nil {
		return h.fail(c, err)
	}
	h.purger.Purge(ctx)
	return respondMessage(c, http.StatusOK, out, "table cleared")
}

// bulkAssignReq accepts groupKey as an alias of projectTitle.
type bulkAssignReq struct {
	ProjectTitle string `json:"projectTitle" validate:"required,max=255"`
	GroupKey     string `json:"groupKey"     validate:"-"`
	TableNumber  int    `json:"tableNumber"  validate:"required,gt=0"`
}

func (r *bulkAssignReq) normalize() {
	if r.ProjectTitle == "" {
		r.ProjectTitle = r.GroupKey
	}
}

// BulkAssign handles POST /api/tafels/project/bulk-assign.
func (h *TableHandler) BulkAssign(c echo.Context) error {
	actor, err := h.actor(c)
	if err != nil {
		return h.fail(c, err)
	}
	var req bulkAssignReq
	if err := h.bind(c, &req); err != nil {
		return h.fail(c, err)
	}
	ctx, cancel := h.context(c)
	defer cancel()
	out, err := h.svc.BulkAssign(ctx, actor, req.ProjectTitle, req.TableNumber)
	if err != nil {
		return h.fail(c, err)
	}
	if out.Changed {
		h.purger.Purge(ctx)
	}
	return respondMessage(c, http.StatusOK, out, "project assigned")
}

type bulkRemoveReq struct {
	ProjectTitle string `json:"projectTitle" validate:"required,max=255"`
	GroupKey     string `json:"groupKey"     validate:"-"`
}

func (r *bulkRemoveReq) normalize() {
	if r.ProjectTitle == "" {
		r.ProjectTitle = r.GroupKey
	}
}

// BulkRemove handles DELETE /api/tafels/project/bulk-remove.
func (h *TableHandler) BulkRemove(c echo.Context) error {
	actor, err := h.actor(c)
	if err != nil {
		return h.fail(c, err)
	}
	var req bulkRemoveReq
	if err := h.bind(c, &req); err != nil {
		return h.fail(c, err)
	}
	ctx, cancel := h.context(c)
	defer cancel()
	out, err := h.svc.BulkRemove(ctx, actor, req.ProjectTitle)
	if err != nil {
		return h.fail(c, err)
	}
	h.purger.Purge(ctx)
	return respondMessage(c, http.StatusOK, out, "project cleared")
}

// GetConfig handles GET /api/config/tafels.
func (h *TableHandler) GetConfig(c echo.Context) error {
	actor, err := h.actor(c)
	if err != nil {
		return h.fail(c, err)
	}
	ctx, cancel := h.context(c)
	defer cancel()
	cfgs, err := h.svc.Configs(ctx, actor)
	if err != nil {
		return h.fail(c, err)
	}
	return respond(c, http.StatusOK, cfgs)
}

type capacityReq struct {
	Session  string `json:"session"  validate:"required,oneof=morning afternoon voormiddag namiddag"`
	Capacity int    `json:"capacity" validate:"required,gt=0"`
}

// PutConfig handles PUT /api/config/tafels.  Lowering the capacity below a
// seated table succeeds and lists the affected tables under "warnings".
func (h *TableHandler) PutConfig(c echo.Context) error {
	actor, err := h.actor(c)
	if err != nil {
		return h.fail(c, err)
	}
	var req capacityReq
	if err := h.bind(c, &req); err != nil {
		return h.fail(c, err)
	}
	session, err := model.ParseSession(req.Session)
	if err != nil {
		return h.fail(c, &service.ValidationError{Fields: map[string]string{"session": err.Error()}})
	}
	ctx, cancel := h.context(c)
	defer cancel()
	change, err := h.svc.SetCapacity(ctx, actor, session, req.Capacity)
	if err != nil {
		return h.fail(c, err)
	}
	h.purger.Purge(ctx)
	return respond(c, http.StatusOK, change)
}

// entityParam reads :entityType and :id.  entityType is student, company or
// the Dutch bedrijf.
func entityParam(c echo.Context) (model.Entity, error) {
	fields := map[string]string{}
	kind, err := model.ParseParticipantKind(c.Param("entityType"))
	if err != nil {
		fields["entityType"] = "must be student or company"
	}
	id, perr := strconv.ParseInt(c.Param("id"), 10, 64)
	if perr != nil || id <= 0 {
		fields["id"] = "must be a positive id"
	}
	if len(fields) > 0 {
		return model.Entity{}, &service.ValidationError{Fields: fields}
	}
	return model.Entity{Kind: kind, ID: id}, nil
}
