// Package queue carries domain events over RabbitMQ.  The publisher sends
// every committed change to a durable queue; the consumer turns each event
// into one line of the notification log, which is where an external
// notification service attaches.
package queue

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/iliyamo/careerfair-reservation/internal/service"
)

// DefaultQueue is the durable queue events are published to.
const DefaultQueue = "careerfair.events"

// headlines maps event types to the human-readable prefix of a log line.
var headlines = map[string]string{
	service.EventReservationCreated:       "Reservation requested",
	service.EventReservationStatusChanged: "Reservation status changed",
	service.EventReservationDeleted:       "Reservation deleted",
	service.EventTableAssigned:            "Table assigned",
	service.EventTableRemoved:             "Table cleared",
	service.EventCapacityChanged:          "Session capacity changed",
}

// FormatLine renders an event as a single log line:
//
//	[2025-03-14T09:00:00Z] Table assigned | actor=organizer | occupant=company:7 | session=afternoon | tableNumber=5
//
// Payload keys are sorted so equal events give equal lines.
func FormatLine(ev service.Event) string {
	head, ok := headlines[ev.Type]
	if !ok {
		head = "Event " + ev.Type
	}
	keys := make([]string, 0, len(ev.Payload))
	for k := range ev.Payload {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s | actor=%s", ev.OccurredAt.UTC().Format(time.RFC3339), head, ev.Actor)
	for _, k := range keys {
		fmt.Fprintf(&b, " | %s=%v", k, ev.Payload[k])
	}
	b.WriteByte('\n')
	return b.String()
}
