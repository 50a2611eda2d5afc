// Package service holds the reservation engine and the table allocator.  It
// owns the business rules; persistence and delivery sit behind the interfaces
// in store.go.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/iliyamo/careerfair-reservation/internal/model"
	"github.com/iliyamo/careerfair-reservation/internal/repository"
)

// CreateReservation is the input of ReservationService.Create.  RequestedBy
// is only read for organizer callers; participants always request for
// themselves.
type CreateReservation struct {
	StudentID   int64
	CompanyID   int64
	Start       time.Time
	End         time.Time
	RequestedBy model.ParticipantKind
	Note        *string
}

// ReservationService orchestrates the conflict checker and the state machine
// on top of a transactional store.
type ReservationService struct {
	store    ReservationStore
	profiles ProfileDirectory
	events   Publisher
	log      *zap.Logger
	checker  ConflictChecker
	now      func() time.Time
	newID    func() string
}

// NewReservationService wires the service.  A nil publisher drops events and
// a nil logger discards log output.
func NewReservationService(store ReservationStore, profiles ProfileDirectory, events Publisher, log *zap.Logger) *ReservationService {
	if store == nil || profiles == nil {
		panic("nil dependency passed to NewReservationService")
	}
	if events == nil {
		events = NopPublisher{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &ReservationService{
		store:    store,
		profiles: profiles,
		events:   events,
		log:      log,
		now:      func() time.Time { return time.Now().UTC() },
		newID:    func() string { return uuid.NewString() },
	}
}

// Create persists a new reservation in the requested state after checking
// both participants' agendas.  Both participants are locked, student first,
// for the duration of the check and the insert.
func (s *ReservationService) Create(ctx context.Context, actor model.Actor, in CreateReservation) (*model.Reservation, error) {
	requestedBy, err := s.requester(actor, &in)
	if err != nil {
		return nil, err
	}
	if err := validateCreate(in); err != nil {
		return nil, err
	}
	for _, e := range []model.Entity{{Kind: model.ParticipantStudent, ID: in.StudentID}, {Kind: model.ParticipantCompany, ID: in.CompanyID}} {
		ok, err := s.profiles.Exists(ctx, e)
		if err != nil {
			return nil, fmt.Errorf("check %s profile: %w", e.Kind, err)
		}
		if !ok {
			return nil, &NotFoundError{Resource: string(e.Kind), ID: fmt.Sprint(e.ID)}
		}
	}

	now := s.now()
	res := &model.Reservation{
		ID:          s.newID(),
		StudentID:   in.StudentID,
		CompanyID:   in.CompanyID,
		StartTime:   in.Start.UTC(),
		EndTime:     in.End.UTC(),
		Status:      model.StatusRequested,
		RequestedBy: requestedBy,
		Note:        in.Note,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	err = s.store.InTx(ctx, func(tx ReservationTx) error {
		if err := tx.LockParticipant(ctx, model.ParticipantStudent, res.StudentID); err != nil {
			return err
		}
		if err := tx.LockParticipant(ctx, model.ParticipantCompany, res.CompanyID); err != nil {
			return err
		}
		conflicts, err := s.checker.CheckPair(ctx, tx, res.StudentID, res.CompanyID, res.StartTime, res.EndTime, "")
		if err != nil {
			return err
		}
		if len(conflicts) > 0 {
			return &ConflictError{Conflicts: conflicts}
		}
		return tx.Insert(ctx, res)
	})
	if err != nil {
		var ce *ConflictError
		if errors.As(err, &ce) {
			reservationConflicts.WithLabelValues(string(requestedBy)).Inc()
			s.log.Info("reservation conflict",
				zap.Int64("student_id", res.StudentID),
				zap.Int64("company_id", res.CompanyID),
				zap.Int("conflicts", len(ce.Conflicts)))
			return nil, err
		}
		s.log.Error("create reservation failed", zap.String("actor", actor.String()), zap.Error(err))
		return nil, fmt.Errorf("create reservation: %w", err)
	}

	reservationsCreated.Inc()
	s.log.Info("reservation created",
		zap.String("reservation_id", res.ID),
		zap.String("actor", actor.String()),
		zap.Time("start", res.StartTime),
		zap.Time("end", res.EndTime))
	s.publish(ctx, EventReservationCreated, actor, reservationPayload(res))
	return res, nil
}

// requester resolves who the request is made by and fills the caller's own
// id when it was omitted.
func (s *ReservationService) requester(actor model.Actor, in *CreateReservation) (model.ParticipantKind, error) {
	switch actor.Kind {
	case model.ActorStudent:
		if in.StudentID == 0 {
			in.StudentID = actor.ID
		}
		if in.StudentID != actor.ID {
			return "", ErrForbidden
		}
		return model.ParticipantStudent, nil
	case model.ActorCompany:
		if in.CompanyID == 0 {
			in.CompanyID = actor.ID
		}
		if in.CompanyID != actor.ID {
			return "", ErrForbidden
		}
		return model.ParticipantCompany, nil
	case model.ActorOrganizer:
		switch in.RequestedBy {
		case "":
			return model.ParticipantStudent, nil
		case model.ParticipantStudent, model.ParticipantCompany:
			return in.RequestedBy, nil
		}
		return "", invalid("requestedBy", "must be student or company")
	}
	return "", ErrForbidden
}

func validateCreate(in CreateReservation) error {
	fields := map[string]string{}
	if in.StudentID <= 0 {
		fields["studentId"] = "must be a positive id"
	}
	if in.CompanyID <= 0 {
		fields["companyId"] = "must be a positive id"
	}
	switch {
	case in.Start.IsZero():
		fields["startTime"] = "is required"
	case in.End.IsZero():
		fields["endTime"] = "is required"
	case !in.End.After(in.Start):
		fields["endTime"] = "must be after startTime"
	}
	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

// Transition moves a reservation to target on behalf of actor.  A missing
// reservation yields NotFoundError.  An actor that is no party to the
// reservation, or whose relation can never produce target, gets
// ErrForbidden.  An edge that exists for the relation but not from the
// current status yields InvalidTransitionError.
func (s *ReservationService) Transition(ctx context.Context, id string, actor model.Actor, target model.Status, note *string) (*model.Reservation, error) {
	if !target.Valid() {
		return nil, invalid("targetStatus", fmt.Sprintf("unknown status %q", target))
	}
	var (
		res  *model.Reservation
		from model.Status
	)
	err := s.store.InTx(ctx, func(tx ReservationTx) error {
		r, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return &NotFoundError{Resource: "reservation", ID: id}
			}
			return err
		}
		from = r.Status
		rel := model.RelationOf(actor, r)
		if rel == model.RelationNone || !model.CanEverReach(rel, target) {
			return ErrForbidden
		}
		if !model.TransitionAllowed(r.Status, rel, target) {
			return &InvalidTransitionError{From: r.Status, To: target}
		}
		// Reviving an inactive reservation must not double-book anyone.
		if target.Active() && !r.Status.Active() {
			if err := tx.LockParticipant(ctx, model.ParticipantStudent, r.StudentID); err != nil {
				return err
			}
			if err := tx.LockParticipant(ctx, model.ParticipantCompany, r.CompanyID); err != nil {
				return err
			}
			conflicts, err := s.checker.CheckPair(ctx, tx, r.StudentID, r.CompanyID, r.StartTime, r.EndTime, r.ID)
			if err != nil {
				return err
			}
			if len(conflicts) > 0 {
				return &ConflictError{Conflicts: conflicts}
			}
		}
		if note == nil {
			note = r.Note
		}
		if err := tx.UpdateStatus(ctx, r.ID, target, note); err != nil {
			return err
		}
		r.Status = target
		r.Note = note
		r.UpdatedAt = s.now()
		res = r
		return nil
	})
	if err != nil {
		reservationTransitions.WithLabelValues(string(from), string(target), outcome(err)).Inc()
		if isDomainError(err) {
			return nil, err
		}
		s.log.Error("reservation transition failed",
			zap.String("reservation_id", id),
			zap.String("target", string(target)),
			zap.Error(err))
		return nil, fmt.Errorf("transition reservation %s: %w", id, err)
	}

	reservationTransitions.WithLabelValues(string(from), string(target), "ok").Inc()
	s.log.Info("reservation status changed",
		zap.String("reservation_id", id),
		zap.String("actor", actor.String()),
		zap.String("from", string(from)),
		zap.String("to", string(target)))
	payload := reservationPayload(res)
	payload["previousStatus"] = from
	s.publish(ctx, EventReservationStatusChanged, actor, payload)
	return res, nil
}

// Get returns a reservation visible to actor: its two participants and
// organizers.
func (s *ReservationService) Get(ctx context.Context, id string, actor model.Actor) (*model.Reservation, error) {
	r, err := s.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, &NotFoundError{Resource: "reservation", ID: id}
		}
		return nil, fmt.Errorf("get reservation %s: %w", id, err)
	}
	if model.RelationOf(actor, r) == model.RelationNone {
		return nil, ErrForbidden
	}
	return r, nil
}

// ListMine returns every reservation of the calling participant, newest
// first.
func (s *ReservationService) ListMine(ctx context.Context, actor model.Actor) ([]model.Reservation, error) {
	kind, ok := actor.Participant()
	if !ok {
		return nil, ErrForbidden
	}
	list, err := s.store.ListByParticipant(ctx, kind, actor.ID)
	if err != nil {
		return nil, fmt.Errorf("list reservations of %s: %w", actor, err)
	}
	return list, nil
}

// ListAll is the organizer overview with optional filters.
func (s *ReservationService) ListAll(ctx context.Context, actor model.Actor, f model.ReservationFilter) ([]model.Reservation, error) {
	if !actor.IsOrganizer() {
		return nil, ErrForbidden
	}
	if f.Status != "" && !f.Status.Valid() {
		return nil, invalid("status", fmt.Sprintf("unknown status %q", f.Status))
	}
	list, err := s.store.List(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list reservations: %w", err)
	}
	return list, nil
}

// Delete removes a reservation permanently.  Only organizers may delete.
func (s *ReservationService) Delete(ctx context.Context, id string, actor model.Actor) (*model.Reservation, error) {
	if !actor.IsOrganizer() {
		return nil, ErrForbidden
	}
	var deleted *model.Reservation
	err := s.store.InTx(ctx, func(tx ReservationTx) error {
		r, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return &NotFoundError{Resource: "reservation", ID: id}
			}
			return err
		}
		if err := tx.Delete(ctx, id); err != nil {
			return err
		}
		deleted = r
		return nil
	})
	if err != nil {
		if isDomainError(err) {
			return nil, err
		}
		return nil, fmt.Errorf("delete reservation %s: %w", id, err)
	}
	s.log.Info("reservation deleted", zap.String("reservation_id", id))
	s.publish(ctx, EventReservationDeleted, actor, reservationPayload(deleted))
	return deleted, nil
}

func (s *ReservationService) publish(ctx context.Context, typ string, actor model.Actor, payload map[string]any) {
	publish(ctx, s.events, s.log, Event{Type: typ, OccurredAt: s.now(), Actor: actor.String(), Payload: payload})
}

// publish hands ev to p.  The change it describes is already committed, so a
// delivery failure is only logged.
func publish(ctx context.Context, p Publisher, log *zap.Logger, ev Event) {
	if err := p.Publish(ctx, ev); err != nil {
		log.Warn("publish event failed", zap.String("type", ev.Type), zap.Error(err))
	}
}

func reservationPayload(r *model.Reservation) map[string]any {
	return map[string]any{
		"reservationId": r.ID,
		"studentId":     r.StudentID,
		"companyId":     r.CompanyID,
		"startTime":     r.StartTime,
		"endTime":       r.EndTime,
		"status":        r.Status,
		"requestedBy":   r.RequestedBy,
	}
}

// isDomainError reports whether err is one of the typed errors of this
// package, which callers receive unwrapped.
func isDomainError(err error) bool {
	var (
		ve  *ValidationError
		nf  *NotFoundError
		ce  *ConflictError
		ite *InvalidTransitionError
		ine *InvalidTableError
		toe *TableOccupiedError
		nae *NotAssignedError
	)
	return errors.Is(err, ErrForbidden) ||
		errors.As(err, &ve) ||
		errors.As(err, &nf) ||
		errors.As(err, &ce) ||
		errors.As(err, &ite) ||
		errors.As(err, &ine) ||
		errors.As(err, &toe) ||
		errors.As(err, &nae)
}

// outcome is the metric label for a failed operation.
func outcome(err error) string {
	var (
		ce  *ConflictError
		ite *InvalidTransitionError
		nf  *NotFoundError
		toe *TableOccupiedError
		ine *InvalidTableError
	)
	switch {
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	case errors.As(err, &ce):
		return "conflict"
	case errors.As(err, &ite):
		return "invalid_transition"
	case errors.As(err, &nf):
		return "not_found"
	case errors.As(err, &toe):
		return "occupied"
	case errors.As(err, &ine):
		return "invalid_table"
	case isDomainError(err):
		return "rejected"
	}
	return "error"
}
