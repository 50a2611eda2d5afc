package service

import (
	"context"
	"fmt"
	"time"

	"github.com/iliyamo/careerfair-reservation/internal/model"
)

// ConflictChecker finds active reservations that overlap a proposed window.
type ConflictChecker struct{}

// Check returns the active reservations of the participant whose windows
// overlap [start, end).  excludeID skips one reservation, which lets a
// caller re-validate an existing reservation against the others.  The store
// filters by window; the result is re-checked here so that the half-open
// rule holds regardless of the store's comparison semantics.
func (ConflictChecker) Check(ctx context.Context, tx ReservationTx, kind model.ParticipantKind, id int64, start, end time.Time, excludeID string) ([]model.Reservation, error) {
	candidates, err := tx.ActiveOverlapping(ctx, kind, id, start, end, excludeID)
	if err != nil {
		return nil, fmt.Errorf("load overlapping reservations for %s %d: %w", kind, id, err)
	}
	out := make([]model.Reservation, 0, len(candidates))
	for _, r := range candidates {
		if r.ID == excludeID || !r.Status.Active() {
			continue
		}
		if r.ParticipantID(kind) != id {
			continue
		}
		if model.Overlaps(start, end, r.StartTime, r.EndTime) {
			out = append(out, r)
		}
	}
	return out, nil
}

// CheckPair runs Check for both participants of a prospective reservation and
// merges the results without duplicates, student conflicts first.
func (c ConflictChecker) CheckPair(ctx context.Context, tx ReservationTx, studentID, companyID int64, start, end time.Time, excludeID string) ([]model.Reservation, error) {
	byStudent, err := c.Check(ctx, tx, model.ParticipantStudent, studentID, start, end, excludeID)
	if err != nil {
		return nil, err
	}
	byCompany, err := c.Check(ctx, tx, model.ParticipantCompany, companyID, start, end, excludeID)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{}, len(byStudent))
	out := make([]model.Reservation, 0, len(byStudent)+len(byCompany))
	for _, r := range append(byStudent, byCompany...) {
		if _, dup := seen[r.ID]; dup {
			continue
		}
		seen[r.ID] = struct{}{}
		out = append(out, r)
	}
	return out, nil
}
