package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/careerfair-reservation/internal/model"
)

// ReservationRepo persists reservations in the `reservations` table.  All
// timestamps are stored in UTC.  Writers serialize on participants through
// rows of `participant_locks`.
type ReservationRepo struct {
	db *sqlx.DB
}

// NewReservationRepo returns a new ReservationRepo bound to the given database.
func NewReservationRepo(db *sqlx.DB) *ReservationRepo { return &ReservationRepo{db: db} }

const reservationColumns = `id, student_id, company_id, start_time, end_time, status, requested_by, note, created_at, updated_at`

// InTx runs fn inside one transaction and commits when fn returns nil.  The
// error from fn is returned unchanged.
func (r *ReservationRepo) InTx(ctx context.Context, fn func(tx ReservationTx) error) error {
	return inTx(ctx, r.db, func(tx *sqlx.Tx) error { return fn(&reservationTx{tx: tx}) })
}

// Get returns the reservation with the given id.
func (r *ReservationRepo) Get(ctx context.Context, id string) (*model.Reservation, error) {
	var res model.Reservation
	q := `SELECT ` + reservationColumns + ` FROM reservations WHERE id = ?`
	if err := r.db.GetContext(ctx, &res, q, id); err != nil {
		return nil, notFound(err)
	}
	return &res, nil
}

// ListByParticipant returns the reservations of one participant, newest
// meeting first.
func (r *ReservationRepo) ListByParticipant(ctx context.Context, kind model.ParticipantKind, id int64) ([]model.Reservation, error) {
	col, err := participantColumn(kind)
	if err != nil {
		return nil, err
	}
	list := []model.Reservation{}
	q := `SELECT ` + reservationColumns + ` FROM reservations WHERE ` + col + ` = ? ORDER BY start_time DESC, id`
	if err := r.db.SelectContext(ctx, &list, q, id); err != nil {
		return nil, err
	}
	return list, nil
}

// List returns reservations matching f ordered by start time.
func (r *ReservationRepo) List(ctx context.Context, f model.ReservationFilter) ([]model.Reservation, error) {
	var (
		where []string
		args  []any
	)
	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, f.Status)
	}
	if f.StudentID > 0 {
		where = append(where, "student_id = ?")
		args = append(args, f.StudentID)
	}
	if f.CompanyID > 0 {
		where = append(where, "company_id = ?")
		args = append(args, f.CompanyID)
	}
	q := `SELECT ` + reservationColumns + ` FROM reservations`
	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, " AND ")
	}
	q += ` ORDER BY start_time, id`
	list := []model.Reservation{}
	if err := r.db.SelectContext(ctx, &list, q, args...); err != nil {
		return nil, err
	}
	return list, nil
}

// reservationTx is the transactional view handed to InTx callbacks.
type reservationTx struct {
	tx *sqlx.Tx
}

// LockParticipant takes an exclusive lock on the participant's lock row,
// creating it on first use.  The lock is held until the transaction ends.
func (t *reservationTx) LockParticipant(ctx context.Context, kind model.ParticipantKind, id int64) error {
	if _, err := t.tx.ExecContext(ctx,
		`INSERT INTO participant_locks (participant_type, participant_id) VALUES (?, ?)
		ON DUPLICATE KEY UPDATE participant_id = participant_id`, kind, id); err != nil {
		return fmt.Errorf("lock %s %d: %w", kind, id, err)
	}
	return nil
}

// ActiveOverlapping returns the requested or confirmed reservations of the
// participant whose window intersects [start, end).
func (t *reservationTx) ActiveOverlapping(ctx context.Context, kind model.ParticipantKind, id int64, start, end time.Time, excludeID string) ([]model.Reservation, error) {
	col, err := participantColumn(kind)
	if err != nil {
		return nil, err
	}
	list := []model.Reservation{}
	q := `SELECT ` + reservationColumns + ` FROM reservations
		WHERE ` + col + ` = ? AND status IN ('requested', 'confirmed')
		AND start_time < ? AND end_time > ? AND id <> ?
		ORDER BY start_time, id`
	if err := t.tx.SelectContext(ctx, &list, q, id, end.UTC(), start.UTC(), excludeID); err != nil {
		return nil, err
	}
	return list, nil
}

// Insert writes a new reservation row.
func (t *reservationTx) Insert(ctx context.Context, r *model.Reservation) error {
	q := `INSERT INTO reservations (` + reservationColumns + `)
		VALUES (:id, :student_id, :company_id, :start_time, :end_time, :status, :requested_by, :note, :created_at, :updated_at)`
	if _, err := t.tx.NamedExecContext(ctx, q, r); err != nil {
		if isDuplicate(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

// GetForUpdate loads a reservation and locks its row.
func (t *reservationTx) GetForUpdate(ctx context.Context, id string) (*model.Reservation, error) {
	var res model.Reservation
	q := `SELECT ` + reservationColumns + ` FROM reservations WHERE id = ? FOR UPDATE`
	if err := t.tx.GetContext(ctx, &res, q, id); err != nil {
		return nil, notFound(err)
	}
	return &res, nil
}

func (t *reservationTx) UpdateStatus(ctx context.Context, id string, status model.Status, note *string) error {
	res, err := t.tx.ExecContext(ctx,
		`UPDATE reservations SET status = ?, note = ?, updated_at = UTC_TIMESTAMP(3) WHERE id = ?`, status, note, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (t *reservationTx) Delete(ctx context.Context, id string) error {
	res, err := t.tx.ExecContext(ctx, `DELETE FROM reservations WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func participantColumn(kind model.ParticipantKind) (string, error) {
	switch kind {
	case model.ParticipantStudent:
		return "student_id", nil
	case model.ParticipantCompany:
		return "company_id", nil
	}
	return "", fmt.Errorf("unknown participant kind %q", kind)
}

// requireRow turns an update or delete that touched nothing into ErrNotFound.
func requireRow(res interface{ RowsAffected() (int64, error) }) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
