package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/iliyamo/careerfair-reservation/internal/model"
	"github.com/iliyamo/careerfair-reservation/internal/repository"
)

// Allocator seats entities and project groups at numbered tables.  Every
// method works inside the caller's transaction and receives the session's
// configuration explicitly; the allocator keeps no state of its own.
type Allocator struct {
	Now func() time.Time
}

func (a Allocator) now() time.Time {
	if a.Now != nil {
		return a.Now()
	}
	return time.Now().UTC()
}

// Assign seats e at table.  Re-assigning an entity to the table it already
// holds is a no-op.  A seat elsewhere in the session is cleared in the same
// transaction.
func (a Allocator) Assign(ctx context.Context, tx TableTx, cfg model.SessionConfig, table int, e model.Entity) (*model.Assignment, error) {
	if model.SessionFor(e.Kind) != cfg.Session {
		return nil, invalid("session", fmt.Sprintf("%ss are seated in the %s session", e.Kind, model.SessionFor(e.Kind)))
	}
	if !cfg.InRange(table) {
		return nil, &InvalidTableError{Session: cfg.Session, Table: table, Capacity: cfg.Capacity}
	}
	occ := e.SoloOccupant()
	out := &model.Assignment{Session: cfg.Session, TableNumber: table, Occupant: occ, Members: []model.Entity{e}}

	slot, err := tx.SlotForUpdate(ctx, cfg.Session, table)
	if err != nil {
		return nil, fmt.Errorf("lock table %d: %w", table, err)
	}
	if slot != nil && slot.OccupantKey != occ.Key() {
		return nil, occupied(cfg.Session, table, slot.OccupantKey)
	}
	seat, err := tx.SeatForUpdate(ctx, cfg.Session, e)
	if err != nil {
		return nil, fmt.Errorf("lock seat of %s: %w", e, err)
	}
	if slot != nil && seat != nil && seat.TableNumber == table && seat.OccupantKey == occ.Key() {
		return out, nil
	}

	if seat != nil {
		out.Previous = seat.TableNumber
		if err := clearSeat(ctx, tx, cfg.Session, *seat); err != nil {
			return nil, err
		}
	}
	// A solo occupant never keeps a second table.
	if stale, err := tx.SlotOfOccupant(ctx, cfg.Session, occ.Key()); err != nil {
		return nil, fmt.Errorf("look up table of %s: %w", occ, err)
	} else if stale != nil && stale.TableNumber != table {
		if err := tx.ReleaseSlot(ctx, cfg.Session, occ.Key()); err != nil {
			return nil, fmt.Errorf("release table %d: %w", stale.TableNumber, err)
		}
	}

	if slot == nil {
		if err := a.claim(ctx, tx, cfg.Session, table, occ); err != nil {
			return nil, err
		}
	}
	if err := seatAt(ctx, tx, cfg.Session, e, table, occ); err != nil {
		return nil, err
	}
	out.Changed = true
	return out, nil
}

// Remove unseats e and returns the table it held.  The table is released
// when nobody of its occupant remains seated.
func (a Allocator) Remove(ctx context.Context, tx TableTx, cfg model.SessionConfig, e model.Entity) (*model.Removal, error) {
	seat, err := tx.SeatForUpdate(ctx, cfg.Session, e)
	if err != nil {
		return nil, fmt.Errorf("lock seat of %s: %w", e, err)
	}
	if seat == nil {
		return nil, &NotAssignedError{Session: cfg.Session, Subject: e.String()}
	}
	occ, err := model.ParseOccupantKey(seat.OccupantKey)
	if err != nil {
		return nil, err
	}
	out := &model.Removal{Session: cfg.Session, TableNumber: seat.TableNumber, Occupant: occ, Removed: []model.Entity{e}}
	if err := tx.DeleteSeat(ctx, cfg.Session, e); err != nil {
		return nil, fmt.Errorf("clear seat of %s: %w", e, err)
	}
	released, err := releaseIfEmpty(ctx, tx, cfg.Session, seat.OccupantKey)
	if err != nil {
		return nil, err
	}
	out.SlotReleased = released
	return out, nil
}

// BulkAssignGroup seats every member of a project at table.  The group
// either moves as a whole or not at all; the caller's transaction is rolled
// back on any error.
func (a Allocator) BulkAssignGroup(ctx context.Context, tx TableTx, cfg model.SessionConfig, title string, table int, members []int64) (*model.Assignment, error) {
	if cfg.Session != model.SessionMorning {
		return nil, invalid("session", "project groups are seated in the morning session")
	}
	if title == "" {
		return nil, invalid("projectTitle", "is required")
	}
	if len(members) == 0 {
		return nil, &NotFoundError{Resource: "project", ID: title}
	}
	if !cfg.InRange(table) {
		return nil, &InvalidTableError{Session: cfg.Session, Table: table, Capacity: cfg.Capacity}
	}
	occ := model.ProjectOccupant(title)
	out := &model.Assignment{Session: cfg.Session, TableNumber: table, Occupant: occ}

	slot, err := tx.SlotForUpdate(ctx, cfg.Session, table)
	if err != nil {
		return nil, fmt.Errorf("lock table %d: %w", table, err)
	}
	if slot != nil && slot.OccupantKey != occ.Key() {
		return nil, occupied(cfg.Session, table, slot.OccupantKey)
	}

	// The group moves: drop its old table first.
	if prev, err := tx.SlotOfOccupant(ctx, cfg.Session, occ.Key()); err != nil {
		return nil, fmt.Errorf("look up table of %s: %w", occ, err)
	} else if prev != nil && prev.TableNumber != table {
		out.Previous = prev.TableNumber
		out.Changed = true
		if _, err := tx.DeleteSeatsOfOccupant(ctx, cfg.Session, occ.Key()); err != nil {
			return nil, fmt.Errorf("clear seats of %s: %w", occ, err)
		}
		if err := tx.ReleaseSlot(ctx, cfg.Session, occ.Key()); err != nil {
			return nil, fmt.Errorf("release table %d: %w", prev.TableNumber, err)
		}
	}

	wanted := make(map[int64]bool, len(members))
	for _, id := range members {
		wanted[id] = true
	}
	current, err := tx.SeatsOfOccupant(ctx, cfg.Session, occ.Key())
	if err != nil {
		return nil, fmt.Errorf("list seats of %s: %w", occ, err)
	}
	for _, s := range current {
		if !wanted[s.EntityID] {
			if err := tx.DeleteSeat(ctx, cfg.Session, s.Entity()); err != nil {
				return nil, fmt.Errorf("clear seat of former member %s: %w", s.Entity(), err)
			}
			out.Changed = true
		}
	}

	if slot == nil {
		if err := a.claim(ctx, tx, cfg.Session, table, occ); err != nil {
			return nil, err
		}
		out.Changed = true
	}

	ids := append([]int64(nil), members...)
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		e := model.Entity{Kind: model.ParticipantStudent, ID: id}
		out.Members = append(out.Members, e)
		seat, err := tx.SeatForUpdate(ctx, cfg.Session, e)
		if err != nil {
			return nil, fmt.Errorf("lock seat of %s: %w", e, err)
		}
		if seat != nil && seat.OccupantKey == occ.Key() && seat.TableNumber == table {
			continue
		}
		if seat != nil {
			if err := clearSeat(ctx, tx, cfg.Session, *seat); err != nil {
				return nil, err
			}
		}
		if err := seatAt(ctx, tx, cfg.Session, e, table, occ); err != nil {
			return nil, err
		}
		out.Changed = true
	}
	return out, nil
}

// BulkRemoveGroup unseats every member of a project and releases its table.
func (a Allocator) BulkRemoveGroup(ctx context.Context, tx TableTx, cfg model.SessionConfig, title string) (*model.Removal, error) {
	if cfg.Session != model.SessionMorning {
		return nil, invalid("session", "project groups are seated in the morning session")
	}
	if title == "" {
		return nil, invalid("projectTitle", "is required")
	}
	occ := model.ProjectOccupant(title)
	slot, err := tx.SlotOfOccupant(ctx, cfg.Session, occ.Key())
	if err != nil {
		return nil, fmt.Errorf("look up table of %s: %w", occ, err)
	}
	seats, err := tx.SeatsOfOccupant(ctx, cfg.Session, occ.Key())
	if err != nil {
		return nil, fmt.Errorf("list seats of %s: %w", occ, err)
	}
	if slot == nil && len(seats) == 0 {
		return nil, &NotAssignedError{Session: cfg.Session, Subject: "project " + title}
	}
	out := &model.Removal{Session: cfg.Session, Occupant: occ, Removed: []model.Entity{}}
	for _, s := range seats {
		out.Removed = append(out.Removed, s.Entity())
		out.TableNumber = s.TableNumber
	}
	if _, err := tx.DeleteSeatsOfOccupant(ctx, cfg.Session, occ.Key()); err != nil {
		return nil, fmt.Errorf("clear seats of %s: %w", occ, err)
	}
	if slot != nil {
		out.TableNumber = slot.TableNumber
		if err := tx.ReleaseSlot(ctx, cfg.Session, occ.Key()); err != nil {
			return nil, fmt.Errorf("release table %d: %w", slot.TableNumber, err)
		}
		out.SlotReleased = true
	}
	return out, nil
}

// Layout builds the availability picture for tables 1..capacity.  Tables
// held above the capacity are never dropped; each one is reported as a
// warning instead.
func (a Allocator) Layout(cfg model.SessionConfig, slots []model.Slot, seats []model.Seat) model.SessionTables {
	members := make(map[string][]model.Entity)
	for _, s := range seats {
		members[s.OccupantKey] = append(members[s.OccupantKey], s.Entity())
	}
	held := make(map[int]model.Slot, len(slots))
	for _, s := range slots {
		held[s.TableNumber] = s
	}

	out := model.SessionTables{
		Session:  cfg.Session,
		Capacity: cfg.Capacity,
		Tables:   make([]model.TableStatus, 0, cfg.Capacity),
	}
	for n := 1; n <= cfg.Capacity; n++ {
		ts := model.TableStatus{TableNumber: n}
		if s, ok := held[n]; ok {
			ts.Occupied = true
			if occ, err := model.ParseOccupantKey(s.OccupantKey); err == nil {
				ts.Occupant = &occ
			}
			ts.Members = members[s.OccupantKey]
		} else {
			out.Free++
		}
		out.Tables = append(out.Tables, ts)
	}
	out.Warnings = capacityWarnings(cfg, slots)
	return out
}

// capacityWarnings lists the tables that are held above cfg.Capacity.
func capacityWarnings(cfg model.SessionConfig, slots []model.Slot) []string {
	var over []model.Slot
	for _, s := range slots {
		if s.TableNumber > cfg.Capacity {
			over = append(over, s)
		}
	}
	sort.Slice(over, func(i, j int) bool { return over[i].TableNumber < over[j].TableNumber })
	warnings := make([]string, 0, len(over))
	for _, s := range over {
		warnings = append(warnings, fmt.Sprintf("table %d is held by %s but exceeds the %s capacity of %d", s.TableNumber, s.OccupantKey, cfg.Session, cfg.Capacity))
	}
	return warnings
}

// claim writes the slot row.  Losing a race for the same table surfaces as
// TableOccupiedError naming the winner.
func (a Allocator) claim(ctx context.Context, tx TableTx, session model.Session, table int, occ model.Occupant) error {
	err := tx.ClaimSlot(ctx, model.Slot{Session: session, TableNumber: table, OccupantKey: occ.Key(), AssignedAt: a.now()})
	if err == nil {
		return nil
	}
	if !errors.Is(err, repository.ErrDuplicate) {
		return fmt.Errorf("claim table %d: %w", table, err)
	}
	winner, lerr := tx.SlotForUpdate(ctx, session, table)
	if lerr != nil || winner == nil {
		return &TableOccupiedError{Session: session, Table: table}
	}
	return occupied(session, table, winner.OccupantKey)
}

// seatAt writes the seat row of e.  When a concurrent transaction seated e
// first, the result is TableOccupiedError naming the table e now holds.
func seatAt(ctx context.Context, tx TableTx, session model.Session, e model.Entity, table int, occ model.Occupant) error {
	err := tx.InsertSeat(ctx, model.Seat{
		Session:     session,
		EntityType:  e.Kind,
		EntityID:    e.ID,
		TableNumber: table,
		OccupantKey: occ.Key(),
	})
	if err == nil {
		return nil
	}
	if !errors.Is(err, repository.ErrDuplicate) {
		return fmt.Errorf("seat %s at table %d: %w", e, table, err)
	}
	held, lerr := tx.SeatForUpdate(ctx, session, e)
	if lerr != nil || held == nil {
		return &TableOccupiedError{Session: session, Table: table}
	}
	return occupied(session, held.TableNumber, held.OccupantKey)
}

// clearSeat deletes one seat and releases its table when the occupant has
// nobody left there.
func clearSeat(ctx context.Context, tx TableTx, session model.Session, seat model.Seat) error {
	if err := tx.DeleteSeat(ctx, session, seat.Entity()); err != nil {
		return fmt.Errorf("clear seat of %s: %w", seat.Entity(), err)
	}
	_, err := releaseIfEmpty(ctx, tx, session, seat.OccupantKey)
	return err
}

func releaseIfEmpty(ctx context.Context, tx TableTx, session model.Session, occupantKey string) (bool, error) {
	left, err := tx.SeatsOfOccupant(ctx, session, occupantKey)
	if err != nil {
		return false, fmt.Errorf("list seats of %s: %w", occupantKey, err)
	}
	if len(left) > 0 {
		return false, nil
	}
	if err := tx.ReleaseSlot(ctx, session, occupantKey); err != nil {
		return false, fmt.Errorf("release table of %s: %w", occupantKey, err)
	}
	return true, nil
}

func occupied(session model.Session, table int, occupantKey string) *TableOccupiedError {
	occ, err := model.ParseOccupantKey(occupantKey)
	if err != nil {
		occ = model.Occupant{Ref: occupantKey}
	}
	return &TableOccupiedError{Session: session, Table: table, Occupant: occ}
}
