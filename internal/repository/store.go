package repository

import (
	"context"
	"time"

	"github.com/iliyamo/careerfair-reservation/internal/model"
)

// ReservationStore is the persistence boundary of the reservation engine.
// Every multi-step operation runs inside InTx so that the check and the write
// commit together.  Lookups of missing rows return ErrNotFound.
type ReservationStore interface {
	InTx(ctx context.Context, fn func(tx ReservationTx) error) error
	Get(ctx context.Context, id string) (*model.Reservation, error)
	ListByParticipant(ctx context.Context, kind model.ParticipantKind, id int64) ([]model.Reservation, error)
	List(ctx context.Context, f model.ReservationFilter) ([]model.Reservation, error)
}

// ReservationTx is the transactional view of the reservation store.
type ReservationTx interface {
	// LockParticipant serializes writers on one participant until the
	// transaction ends.
	LockParticipant(ctx context.Context, kind model.ParticipantKind, id int64) error
	ActiveOverlapping(ctx context.Context, kind model.ParticipantKind, id int64, start, end time.Time, excludeID string) ([]model.Reservation, error)
	Insert(ctx context.Context, r *model.Reservation) error
	GetForUpdate(ctx context.Context, id string) (*model.Reservation, error)
	UpdateStatus(ctx context.Context, id string, status model.Status, note *string) error
	Delete(ctx context.Context, id string) error
}

// TableStore is the persistence boundary of the table allocator.  SeatOf
// returns nil when the entity is unseated.
type TableStore interface {
	InTx(ctx context.Context, fn func(tx TableTx) error) error
	Slots(ctx context.Context, s model.Session) ([]model.Slot, error)
	Seats(ctx context.Context, s model.Session) ([]model.Seat, error)
	SeatOf(ctx context.Context, s model.Session, e model.Entity) (*model.Seat, error)
}

// TableTx is the transactional view of the table store.  Slot and seat
// lookups return nil without an error when nothing is found.  ClaimSlot and
// InsertSeat return ErrDuplicate when a concurrent transaction won
// the same table, occupant or entity.
type TableTx interface {
	SlotForUpdate(ctx context.Context, s model.Session, table int) (*model.Slot, error)
	SlotOfOccupant(ctx context.Context, s model.Session, occupantKey string) (*model.Slot, error)
	SeatForUpdate(ctx context.Context, s model.Session, e model.Entity) (*model.Seat, error)
	SeatsOfOccupant(ctx context.Context, s model.Session, occupantKey string) ([]model.Seat, error)
	ClaimSlot(ctx context.Context, slot model.Slot) error
	ReleaseSlot(ctx context.Context, s model.Session, occupantKey string) error
	InsertSeat(ctx context.Context, seat model.Seat) error
	DeleteSeat(ctx context.Context, s model.Session, e model.Entity) error
	DeleteSeatsOfOccupant(ctx context.Context, s model.Session, occupantKey string) (int64, error)
}

// ConfigStore holds the per-session table capacity.  Get returns
// ErrNotFound for a session that was never configured.
type ConfigStore interface {
	Get(ctx context.Context, s model.Session) (model.SessionConfig, error)
	All(ctx context.Context) ([]model.SessionConfig, error)
	Set(ctx context.Context, cfg model.SessionConfig) error
}

// ProfileDirectory is the read-only boundary to the external profile store.
type ProfileDirectory interface {
	Exists(ctx context.Context, e model.Entity) (bool, error)
	ProjectMembers(ctx context.Context, projectTitle string) ([]int64, error)
}
