package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/careerfair-reservation/internal/model"
	"github.com/iliyamo/careerfair-reservation/internal/service"
)

// ReservationService is the part of service.ReservationService the HTTP
// layer uses.
type ReservationService interface {
	Create(ctx context.Context, actor model.Actor, in service.CreateReservation) (*model.Reservation, error)
	Transition(ctx context.Context, id string, actor model.Actor, target model.Status, note *string) (*model.Reservation, error)
	Get(ctx context.Context, id string, actor model.Actor) (*model.Reservation, error)
	ListMine(ctx context.Context, actor model.Actor) ([]model.Reservation, error)
	ListAll(ctx context.Context, actor model.Actor, f model.ReservationFilter) ([]model.Reservation, error)
	Delete(ctx context.Context, id string, actor model.Actor) (*model.Reservation, error)
}

// ReservationHandler serves /api/reservaties.  All routes sit behind JWTAuth.
type ReservationHandler struct {
	base
	svc ReservationService
}

func NewReservationHandler(svc ReservationService, o Options) *ReservationHandler {
	if svc == nil {
		panic("nil service passed to NewReservationHandler")
	}
	return &ReservationHandler{base: newBase(o), svc: svc}
}

// createReservationReq accepts start/end as aliases of startTime/endTime.
// Participants may omit their own id.
type createReservationReq struct {
	StudentID   int64      `json:"studentId"   validate:"gte=0"`
	CompanyID   int64      `json:"companyId"   validate:"gte=0"`
	StartTime   time.Time  `json:"startTime"   validate:"required"`
	EndTime     time.Time  `json:"endTime"     validate:"required,gtfield=StartTime"`
	Start       *time.Time `json:"start"       validate:"-"`
	End         *time.Time `json:"end"         validate:"-"`
	RequestedBy string     `json:"requestedBy" validate:"omitempty,oneof=student company bedrijf"`
	Note        *string    `json:"note"        validate:"omitempty,max=1000"`
}

func (r *createReservationReq) normalize() {
	if r.StartTime.IsZero() && r.Start != nil {
		r.StartTime = *r.Start
	}
	if r.EndTime.IsZero() && r.End != nil {
		r.EndTime = *r.End
	}
}

// Create handles POST /api/reservaties.  It returns 201 with the new
// reservation or 409 with the conflicting reservations.
func (h *ReservationHandler) Create(c echo.Context) error {
	actor, err := h.actor(c)
	if err != nil {
		return h.fail(c, err)
	}
	var req createReservationReq
	if err := h.bind(c, &req); err != nil {
		return h.fail(c, err)
	}
	in := service.CreateReservation{
		StudentID: req.StudentID,
		CompanyID: req.CompanyID,
		Start:     req.StartTime,
		End:       req.EndTime,
		Note:      req.Note,
	}
	if req.RequestedBy != "" {
		kind, err := model.ParseParticipantKind(req.RequestedBy)
		if err != nil {
			return h.fail(c, &service.ValidationError{Fields: map[string]string{"requestedBy": err.Error()}})
		}
		in.RequestedBy = kind
	}

	ctx, cancel := h.context(c)
	defer cancel()
	res, err := h.svc.Create(ctx, actor, in)
	if err != nil {
		return h.fail(c, err)
	}
	return respond(c, http.StatusCreated, res)
}

type statusReq struct {
	TargetStatus string  `json:"targetStatus" validate:"required,oneof=requested confirmed rejected cancelled completed no-show"`
	Status       string  `json:"status"       validate:"-"`
	Note         *string `json:"note"         validate:"omitempty,max=1000"`
}

func (r *statusReq) normalize() {
	if r.TargetStatus == "" {
		r.TargetStatus = r.Status
	}
}

// UpdateStatus handles PUT /api/reservaties/:id/status.
func (h *ReservationHandler) UpdateStatus(c echo.Context) error {
	actor, err := h.actor(c)
	if err != nil {
		return h.fail(c, err)
	}
	var req statusReq
	if err := h.bind(c, &req); err != nil {
		return h.fail(c, err)
	}
	ctx, cancel := h.context(c)
	defer cancel()
	res, err := h.svc.Transition(ctx, c.Param("id"), actor, model.Status(req.TargetStatus), req.Note)
	if err != nil {
		return h.fail(c, err)
	}
	return respond(c, http.StatusOK, res)
}

// Mine handles GET /api/reservaties/my.
func (h *ReservationHandler) Mine(c echo.Context) error {
	actor, err := h.actor(c)
	if err != nil {
		return h.fail(c, err)
	}
	ctx, cancel := h.context(c)
	defer cancel()
	list, err := h.svc.ListMine(ctx, actor)
	if err != nil {
		return h.fail(c, err)
	}
	return respond(c, http.StatusOK, list)
}

// Get handles GET /api/reservaties/:id.
func (h *ReservationHandler) Get(c echo.Context) error {
	actor, err := h.actor(c)
	if err != nil {
		return h.fail(c, err)
	}
	ctx, cancel := h.context(c)
	defer cancel()
	res, err := h.svc.Get(ctx, c.Param("id"), actor)
	if err != nil {
		return h.fail(c, err)
	}
	return respond(c, http.StatusOK, res)
}

// List handles GET /api/reservaties for organizers.  Optional query
// parameters: status, studentId, companyId.
func (h *ReservationHandler) List(c echo.Context) error {
	actor, err := h.actor(c)
	if err != nil {
		return h.fail(c, err)
	}
	f := model.ReservationFilter{Status: model.Status(c.QueryParam("status"))}
	fields := map[string]string{}
	if v := c.QueryParam("studentId"); v != "" {
		if f.StudentID, err = strconv.ParseInt(v, 10, 64); err != nil || f.StudentID <= 0 {
			fields["studentId"] = "must be a positive id"
		}
	}
	if v := c.QueryParam("companyId"); v != "" {
		if f.CompanyID, err = strconv.ParseInt(v, 10, 64); err != nil || f.CompanyID <= 0 {
			fields["companyId"] = "must be a positive id"
		}
	}
	if len(fields) > 0 {
		return h.fail(c, &service.ValidationError{Fields: fields})
	}
	ctx, cancel := h.context(c)
	defer cancel()
	list, err := h.svc.ListAll(ctx, actor, f)
	if err != nil {
		return h.fail(c, err)
	}
	return respond(c, http.StatusOK, list)
}

// Delete handles DELETE /api/reservaties/:id (organizer hard delete).
func (h *ReservationHandler) Delete(c echo.Context) error {
	actor, err := h.actor(c)
	if err != nil {
		return h.fail(c, err)
	}
	ctx, cancel := h.context(c)
	defer cancel()
	res, err := h.svc.Delete(ctx, c.Param("id"), actor)
	if err != nil {
		return h.fail(c, err)
	}
	return respondMessage(c, http.StatusOK, res, "reservation deleted")
}
