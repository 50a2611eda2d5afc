package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/careerfair-reservation/internal/model"
	"github.com/iliyamo/careerfair-reservation/internal/repository"
)

// AllocationOptions bound the session configuration.
type AllocationOptions struct {
	// MaxCapacity is the largest capacity an organizer may configure.
	MaxCapacity int
	// DefaultCapacity applies to a session that has no stored configuration.
	DefaultCapacity int
}

// CapacityChange is the result of SetCapacity.
type CapacityChange struct {
	Config   model.SessionConfig `json:"config"`
	Warnings []string            `json:"warnings"`
}

// AllocationService loads the session configuration for every call and runs
// the allocator inside one table-store transaction.
type AllocationService struct {
	configs  ConfigStore
	tables   TableStore
	profiles ProfileDirectory
	events   Publisher
	log      *zap.Logger
	alloc    Allocator
	opts     AllocationOptions
}

// NewAllocationService wires the allocator to its stores.  It panics on a nil
// store; a nil publisher or logger falls back to a no-op.
func NewAllocationService(configs ConfigStore, tables TableStore, profiles ProfileDirectory, events Publisher, log *zap.Logger, opts AllocationOptions) *AllocationService {
	if configs == nil || tables == nil || profiles == nil {
		panic("nil dependency passed to NewAllocationService")
	}
	if events == nil {
		events = NopPublisher{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	if opts.MaxCapacity <= 0 {
		opts.MaxCapacity = 500
	}
	if opts.DefaultCapacity <= 0 || opts.DefaultCapacity > opts.MaxCapacity {
		opts.DefaultCapacity = min(15, opts.MaxCapacity)
	}
	return &AllocationService{
		configs:  configs,
		tables:   tables,
		profiles: profiles,
		events:   events,
		log:      log,
		opts:     opts,
	}
}

// Config returns the effective configuration of one session.
func (s *AllocationService) Config(ctx context.Context, session model.Session) (model.SessionConfig, error) {
	cfg, err := s.configs.Get(ctx, session)
	if errors.Is(err, repository.ErrNotFound) {
		return model.SessionConfig{Session: session, Capacity: s.opts.DefaultCapacity}, nil
	}
	if err != nil {
		return model.SessionConfig{}, fmt.Errorf("load %s configuration: %w", session, err)
	}
	return cfg, nil
}

// Configs returns the configuration of both sessions.  Organizers only.
func (s *AllocationService) Configs(ctx context.Context, actor model.Actor) ([]model.SessionConfig, error) {
	if !actor.IsOrganizer() {
		return nil, ErrForbidden
	}
	stored, err := s.configs.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("load session configuration: %w", err)
	}
	bySession := make(map[model.Session]model.SessionConfig, len(stored))
	for _, cfg := range stored {
		bySession[cfg.Session] = cfg
	}
	out := make([]model.SessionConfig, 0, len(model.Sessions))
	for _, session := range model.Sessions {
		cfg, ok := bySession[session]
		if !ok {
			cfg = model.SessionConfig{Session: session, Capacity: s.opts.DefaultCapacity}
		}
		out = append(out, cfg)
	}
	return out, nil
}

// SetCapacity changes the number of tables of a session.  Seated entities
// are never evicted; tables held above the new capacity come back as
// warnings.
func (s *AllocationService) SetCapacity(ctx context.Context, actor model.Actor, session model.Session, capacity int) (*CapacityChange, error) {
	if !actor.IsOrganizer() {
		return nil, ErrForbidden
	}
	if capacity < 1 || capacity > s.opts.MaxCapacity {
		return nil, invalid("capacity", fmt.Sprintf("must be between 1 and %d", s.opts.MaxCapacity))
	}
	cfg := model.SessionConfig{Session: session, Capacity: capacity, UpdatedAt: time.Now().UTC()}
	if err := s.configs.Set(ctx, cfg); err != nil {
		return nil, fmt.Errorf("store %s capacity: %w", session, err)
	}
	slots, err := s.tables.Slots(ctx, session)
	if err != nil {
		return nil, fmt.Errorf("list %s tables: %w", session, err)
	}
	warnings := capacityWarnings(cfg, slots)
	if len(warnings) > 0 {
		s.log.Warn("capacity below seated tables",
			zap.String("session", string(session)),
			zap.Int("capacity", capacity),
			zap.Strings("warnings", warnings))
	}
	s.log.Info("session capacity changed", zap.String("session", string(session)), zap.Int("capacity", capacity))
	s.publish(ctx, EventCapacityChanged, actor, map[string]any{
		"session":  session,
		"capacity": capacity,
		"warnings": len(warnings),
	})
	return &CapacityChange{Config: cfg, Warnings: warnings}, nil
}

// Assign seats a single student or company at table in the session its kind
// belongs to.  Organizers only.
func (s *AllocationService) Assign(ctx context.Context, actor model.Actor, e model.Entity, table int) (*model.Assignment, error) {
	if !actor.IsOrganizer() {
		return nil, ErrForbidden
	}
	if err := s.mustExist(ctx, e); err != nil {
		return nil, err
	}
	cfg, err := s.Config(ctx, model.SessionFor(e.Kind))
	if err != nil {
		return nil, err
	}
	var out *model.Assignment
	err = s.tables.InTx(ctx, func(tx TableTx) error {
		var err error
		out, err = s.alloc.Assign(ctx, tx, cfg, table, e)
		return err
	})
	tableAssignments.WithLabelValues(string(cfg.Session), assignOutcome(err)).Inc()
	if err != nil {
		return nil, s.fail("assign table", err, zap.String("entity", e.String()), zap.Int("table", table))
	}
	if out.Changed {
		s.log.Info("table assigned",
			zap.String("session", string(cfg.Session)),
			zap.Int("table", table),
			zap.String("occupant", out.Occupant.Key()),
			zap.Int("previous", out.Previous))
		s.publish(ctx, EventTableAssigned, actor, assignmentPayload(out))
	}
	return out, nil
}

// Remove unseats a single student or company.  Organizers only.
func (s *AllocationService) Remove(ctx context.Context, actor model.Actor, e model.Entity) (*model.Removal, error) {
	if !actor.IsOrganizer() {
		return nil, ErrForbidden
	}
	cfg, err := s.Config(ctx, model.SessionFor(e.Kind))
	if err != nil {
		return nil, err
	}
	var out *model.Removal
	err = s.tables.InTx(ctx, func(tx TableTx) error {
		var err error
		out, err = s.alloc.Remove(ctx, tx, cfg, e)
		return err
	})
	if err != nil {
		return nil, s.fail("remove table", err, zap.String("entity", e.String()))
	}
	s.log.Info("table cleared",
		zap.String("session", string(cfg.Session)),
		zap.Int("table", out.TableNumber),
		zap.String("entity", e.String()))
	s.publish(ctx, EventTableRemoved, actor, removalPayload(out))
	return out, nil
}

// BulkAssign seats every student of a project at one morning table.
func (s *AllocationService) BulkAssign(ctx context.Context, actor model.Actor, title string, table int) (*model.Assignment, error) {
	if !actor.IsOrganizer() {
		return nil, ErrForbidden
	}
	if title == "" {
		return nil, invalid("projectTitle", "is required")
	}
	members, err := s.profiles.ProjectMembers(ctx, title)
	if err != nil {
		return nil, fmt.Errorf("load members of project %q: %w", title, err)
	}
	if len(members) == 0 {
		return nil, &NotFoundError{Resource: "project", ID: title}
	}
	cfg, err := s.Config(ctx, model.SessionMorning)
	if err != nil {
		return nil, err
	}
	var out *model.Assignment
	err = s.tables.InTx(ctx, func(tx TableTx) error {
		var err error
		out, err = s.alloc.BulkAssignGroup(ctx, tx, cfg, title, table, members)
		return err
	})
	tableAssignments.WithLabelValues(string(cfg.Session), assignOutcome(err)).Inc()
	if err != nil {
		return nil, s.fail("bulk assign project", err, zap.String("project", title), zap.Int("table", table))
	}
	if out.Changed {
		s.log.Info("project assigned",
			zap.String("project", title),
			zap.Int("table", table),
			zap.Int("members", len(out.Members)))
		s.publish(ctx, EventTableAssigned, actor, assignmentPayload(out))
	}
	return out, nil
}

// BulkRemove unseats every student of a project.
func (s *AllocationService) BulkRemove(ctx context.Context, actor model.Actor, title string) (*model.Removal, error) {
	if !actor.IsOrganizer() {
		return nil, ErrForbidden
	}
	if title == "" {
		return nil, invalid("projectTitle", "is required")
	}
	cfg, err := s.Config(ctx, model.SessionMorning)
	if err != nil {
		return nil, err
	}
	var out *model.Removal
	err = s.tables.InTx(ctx, func(tx TableTx) error {
		var err error
		out, err = s.alloc.BulkRemoveGroup(ctx, tx, cfg, title)
		return err
	})
	if err != nil {
		return nil, s.fail("bulk remove project", err, zap.String("project", title))
	}
	s.log.Info("project cleared", zap.String("project", title), zap.Int("members", len(out.Removed)))
	s.publish(ctx, EventTableRemoved, actor, removalPayload(out))
	return out, nil
}

// ListAvailable returns every table of the session with its occupant.
func (s *AllocationService) ListAvailable(ctx context.Context, session model.Session) (*model.SessionTables, error) {
	cfg, err := s.Config(ctx, session)
	if err != nil {
		return nil, err
	}
	slots, err := s.tables.Slots(ctx, session)
	if err != nil {
		return nil, fmt.Errorf("list %s tables: %w", session, err)
	}
	seats, err := s.tables.Seats(ctx, session)
	if err != nil {
		return nil, fmt.Errorf("list %s seats: %w", session, err)
	}
	layout := s.alloc.Layout(cfg, slots, seats)
	return &layout, nil
}

// Lookup returns the seat of the calling participant.
func (s *AllocationService) Lookup(ctx context.Context, actor model.Actor) (*model.Seat, error) {
	kind, ok := actor.Participant()
	if !ok {
		return nil, ErrForbidden
	}
	e := model.Entity{Kind: kind, ID: actor.ID}
	session := model.SessionFor(kind)
	seat, err := s.tables.SeatOf(ctx, session, e)
	if err != nil {
		return nil, fmt.Errorf("look up seat of %s: %w", e, err)
	}
	if seat == nil {
		return nil, &NotAssignedError{Session: session, Subject: e.String()}
	}
	return seat, nil
}

func (s *AllocationService) mustExist(ctx context.Context, e model.Entity) error {
	ok, err := s.profiles.Exists(ctx, e)
	if err != nil {
		return fmt.Errorf("check %s profile: %w", e.Kind, err)
	}
	if !ok {
		return &NotFoundError{Resource: string(e.Kind), ID: fmt.Sprint(e.ID)}
	}
	return nil
}

// fail passes domain errors through and logs and wraps everything else.
func (s *AllocationService) fail(op string, err error, fields ...zap.Field) error {
	if isDomainError(err) {
		return err
	}
	s.log.Error(op+" failed", append(fields, zap.Error(err))...)
	return fmt.Errorf("%s: %w", op, err)
}

func (s *AllocationService) publish(ctx context.Context, typ string, actor model.Actor, payload map[string]any) {
	publish(ctx, s.events, s.log, Event{Type: typ, OccurredAt: time.Now().UTC(), Actor: actor.String(), Payload: payload})
}

func assignOutcome(err error) string {
	if err == nil {
		return "ok"
	}
	return outcome(err)
}

func assignmentPayload(a *model.Assignment) map[string]any {
	return map[string]any{
		"session":       a.Session,
		"tableNumber":   a.TableNumber,
		"occupant":      a.Occupant.Key(),
		"members":       a.Members,
		"previousTable": a.Previous,
	}
}

func removalPayload(r *model.Removal) map[string]any {
	return map[string]any{
		"session":     r.Session,
		"tableNumber": r.TableNumber,
		"occupant":    r.Occupant.Key(),
		"members":     r.Removed,
	}
}
