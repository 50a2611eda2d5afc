package service

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/iliyamo/careerfair-reservation/internal/model"
)

// ErrForbidden is returned when the actor may never perform the requested
// operation on the resource.
var ErrForbidden = errors.New("forbidden")

// ValidationError reports malformed input field by field.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// invalid builds a single-field ValidationError.
func invalid(field, msg string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: msg}}
}

// NotFoundError reports a missing resource.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

// ConflictError carries the active reservations that overlap a requested
// window.
type ConflictError struct {
	Conflicts []model.Reservation
}

func (e *ConflictError) Error() string {
	ids := make([]string, 0, len(e.Conflicts))
	for _, r := range e.Conflicts {
		ids = append(ids, r.ID)
	}
	return "reservation conflicts with " + strings.Join(ids, ", ")
}

// InvalidTransitionError reports an edge that does not exist from the
// reservation's current status.
type InvalidTransitionError struct {
	From model.Status
	To   model.Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot move reservation from %s to %s", e.From, e.To)
}

// InvalidTableError reports a table number outside 1..capacity.
type InvalidTableError struct {
	Session  model.Session
	Table    int
	Capacity int
}

func (e *InvalidTableError) Error() string {
	return fmt.Sprintf("table %d is outside 1..%d for the %s session", e.Table, e.Capacity, e.Session)
}

// TableOccupiedError reports that a table is held by a different occupant.
type TableOccupiedError struct {
	Session  model.Session
	Table    int
	Occupant model.Occupant
}

func (e *TableOccupiedError) Error() string {
	return fmt.Sprintf("table %d in the %s session is occupied by %s", e.Table, e.Session, e.Occupant)
}

// NotAssignedError reports that an entity or group holds no table.
type NotAssignedError struct {
	Session model.Session
	Subject string
}

func (e *NotAssignedError) Error() string {
	return fmt.Sprintf("%s has no table in the %s session", e.Subject, e.Session)
}
