package repository

import (
	"context"
	"errors"

	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/careerfair-reservation/internal/model"
)

// TableRepo persists table allocations.  `table_slots` maps a table number to
// one occupant per session and is guarded by PRIMARY KEY(session,
// table_number) and UNIQUE(session, occupant_key).  `table_seats` maps each
// seated entity to its table and is keyed by (session, entity_type,
// entity_id).
type TableRepo struct {
	db *sqlx.DB
}

// NewTableRepo returns a new TableRepo bound to the given database.
func NewTableRepo(db *sqlx.DB) *TableRepo { return &TableRepo{db: db} }

const (
	slotColumns = `session, table_number, occupant_key, assigned_at`
	seatColumns = `session, entity_type, entity_id, table_number, occupant_key`
)

// InTx runs fn inside one transaction and commits when fn returns nil.
func (r *TableRepo) InTx(ctx context.Context, fn func(tx TableTx) error) error {
	return inTx(ctx, r.db, func(tx *sqlx.Tx) error { return fn(&tableTx{tx: tx}) })
}

// Slots lists the claimed tables of a session by table number.
func (r *TableRepo) Slots(ctx context.Context, s model.Session) ([]model.Slot, error) {
	slots := []model.Slot{}
	q := `SELECT ` + slotColumns + ` FROM table_slots WHERE session = ? ORDER BY table_number`
	if err := r.db.SelectContext(ctx, &slots, q, s); err != nil {
		return nil, err
	}
	return slots, nil
}

// Seats lists the seated entities of a session.
func (r *TableRepo) Seats(ctx context.Context, s model.Session) ([]model.Seat, error) {
	seats := []model.Seat{}
	q := `SELECT ` + seatColumns + ` FROM table_seats WHERE session = ? ORDER BY table_number, entity_type, entity_id`
	if err := r.db.SelectContext(ctx, &seats, q, s); err != nil {
		return nil, err
	}
	return seats, nil
}

// SeatOf returns the seat of e, or nil when e is unseated.
func (r *TableRepo) SeatOf(ctx context.Context, s model.Session, e model.Entity) (*model.Seat, error) {
	var seat model.Seat
	q := `SELECT ` + seatColumns + ` FROM table_seats WHERE session = ? AND entity_type = ? AND entity_id = ?`
	return optional(&seat, r.db.GetContext(ctx, &seat, q, s, e.Kind, e.ID))
}

type tableTx struct {
	tx *sqlx.Tx
}

func (t *tableTx) SlotForUpdate(ctx context.Context, s model.Session, table int) (*model.Slot, error) {
	var slot model.Slot
	q := `SELECT ` + slotColumns + ` FROM table_slots WHERE session = ? AND table_number = ? FOR UPDATE`
	return optional(&slot, t.tx.GetContext(ctx, &slot, q, s, table))
}

func (t *tableTx) SlotOfOccupant(ctx context.Context, s model.Session, occupantKey string) (*model.Slot, error) {
	var slot model.Slot
	q := `SELECT ` + slotColumns + ` FROM table_slots WHERE session = ? AND occupant_key = ? FOR UPDATE`
	return optional(&slot, t.tx.GetContext(ctx, &slot, q, s, occupantKey))
}

func (t *tableTx) SeatForUpdate(ctx context.Context, s model.Session, e model.Entity) (*model.Seat, error) {
	var seat model.Seat
	q := `SELECT ` + seatColumns + ` FROM table_seats WHERE session = ? AND entity_type = ? AND entity_id = ? FOR UPDATE`
	return optional(&seat, t.tx.GetContext(ctx, &seat, q, s, e.Kind, e.ID))
}

func (t *tableTx) SeatsOfOccupant(ctx context.Context, s model.Session, occupantKey string) ([]model.Seat, error) {
	seats := []model.Seat{}
	q := `SELECT ` + seatColumns + ` FROM table_seats WHERE session = ? AND occupant_key = ? ORDER BY entity_id FOR UPDATE`
	if err := t.tx.SelectContext(ctx, &seats, q, s, occupantKey); err != nil {
		return nil, err
	}
	return seats, nil
}

// ClaimSlot inserts the slot row.  A lost race on the table number or on
// the occupant yields ErrDuplicate.
func (t *tableTx) ClaimSlot(ctx context.Context, slot model.Slot) error {
	q := `INSERT INTO table_slots (` + slotColumns + `) VALUES (:session, :table_number, :occupant_key, :assigned_at)`
	if _, err := t.tx.NamedExecContext(ctx, q, slot); err != nil {
		if isDuplicate(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

func (t *tableTx) ReleaseSlot(ctx context.Context, s model.Session, occupantKey string) error {
	_, err := t.tx.ExecContext(ctx, `DELETE FROM table_slots WHERE session = ? AND occupant_key = ?`, s, occupantKey)
	return err
}

func (t *tableTx) InsertSeat(ctx context.Context, seat model.Seat) error {
	q := `INSERT INTO table_seats (` + seatColumns + `) VALUES (:session, :entity_type, :entity_id, :table_number, :occupant_key)`
	if _, err := t.tx.NamedExecContext(ctx, q, seat); err != nil {
		if isDuplicate(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

func (t *tableTx) DeleteSeat(ctx context.Context, s model.Session, e model.Entity) error {
	_, err := t.tx.ExecContext(ctx,
		`DELETE FROM table_seats WHERE session = ? AND entity_type = ? AND entity_id = ?`, s, e.Kind, e.ID)
	return err
}

func (t *tableTx) DeleteSeatsOfOccupant(ctx context.Context, s model.Session, occupantKey string) (int64, error) {
	res, err := t.tx.ExecContext(ctx, `DELETE FROM table_seats WHERE session = ? AND occupant_key = ?`, s, occupantKey)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// optional returns v when err is nil and (nil, nil) when the row is absent.
func optional[T any](v *T, err error) (*T, error) {
	if err == nil {
		return v, nil
	}
	if errors.Is(notFound(err), ErrNotFound) {
		return nil, nil
	}
	return nil, err
}
