package service

import (
	"context"
	"time"

	"github.com/iliyamo/careerfair-reservation/internal/repository"
)

// The persistence boundaries are declared next to their MySQL
// implementations; the service only sees these interfaces.
type (
	ReservationStore = repository.ReservationStore
	ReservationTx    = repository.ReservationTx
	TableStore       = repository.TableStore
	TableTx          = repository.TableTx
	ConfigStore      = repository.ConfigStore
	ProfileDirectory = repository.ProfileDirectory
)

// Publisher delivers domain events after a successful commit.  Failures are
// logged by the caller and never undo the committed change.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// Event is a domain event handed to the Publisher.
type Event struct {
	Type       string         `json:"type"`
	OccurredAt time.Time      `json:"occurredAt"`
	Actor      string         `json:"actor"`
	Payload    map[string]any `json:"payload"`
}

const (
	EventReservationCreated       = "reservation.created"
	EventReservationStatusChanged = "reservation.status_changed"
	EventReservationDeleted       = "reservation.deleted"
	EventTableAssigned            = "table.assigned"
	EventTableRemoved             = "table.removed"
	EventCapacityChanged          = "table.capacity_changed"
)

// NopPublisher drops every event.  It is used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }
