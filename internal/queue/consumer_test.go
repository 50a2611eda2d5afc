package queue

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/careerfair-reservation/internal/service"
)

func TestFormatLine(t *testing.T) {
	ev := service.Event{
		Type:       service.EventTableAssigned,
		OccurredAt: time.Date(2026, 3, 12, 9, 0, 0, 0, time.FixedZone("CET", 3600)),
		Actor:      "organizer",
		Payload: map[string]any{
			"tableNumber": 5,
			"session":     "afternoon",
			"occupant":    "company:7",
		},
	}
	assert.Equal(t,
		"[2026-03-12T08:00:00Z] Table assigned | actor=organizer | occupant=company:7 | session=afternoon | tableNumber=5\n",
		FormatLine(ev))

	ev.Type = "fair.opened"
	ev.Payload = nil
	assert.Equal(t, "[2026-03-12T08:00:00Z] Event fair.opened | actor=organizer\n", FormatLine(ev))
}

func TestConsumerHandle(t *testing.T) {
	var sink bytes.Buffer
	c := NewConsumer("", "", &sink, nil)
	assert.Equal(t, DefaultQueue, c.queue)

	body, err := json.Marshal(service.Event{
		Type:       service.EventReservationCreated,
		OccurredAt: time.Date(2026, 3, 12, 14, 0, 0, 0, time.UTC),
		Actor:      "student:1",
		Payload:    map[string]any{"reservationId": "res-1"},
	})
	require.NoError(t, err)
	require.NoError(t, c.Handle(body))
	assert.Equal(t, "[2026-03-12T14:00:00Z] Reservation requested | actor=student:1 | reservationId=res-1\n", sink.String())

	assert.Error(t, c.Handle([]byte("{not json")))
	assert.Error(t, c.Handle([]byte(`{"actor":"organizer"}`)))
	assert.Equal(t, 1, bytes.Count(sink.Bytes(), []byte("\n")), "rejected messages write nothing")
}

func TestOpenLogCreatesDirectory(t *testing.T) {
	path := t.TempDir() + "/nested/notifications.log"
	f, err := OpenLog(path)
	require.NoError(t, err)
	_, err = f.WriteString("line\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())
}
