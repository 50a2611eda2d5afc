package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/careerfair-reservation/internal/model"
)

// looseTx returns every stored reservation as a candidate, the way a store
// with inclusive comparisons might.
type looseTx struct {
	memReservationTx
}

func (l looseTx) ActiveOverlapping(context.Context, model.ParticipantKind, int64, time.Time, time.Time, string) ([]model.Reservation, error) {
	out := []model.Reservation{}
	for _, r := range l.db.reservations {
		out = append(out, r)
	}
	return out, nil
}

func TestConflictCheckerRefiltersCandidates(t *testing.T) {
	db := newMemDB()
	put := func(id string, student, company int64, start, end string, st model.Status) {
		db.reservations[id] = model.Reservation{ID: id, StudentID: student, CompanyID: company, StartTime: at(start), EndTime: at(end), Status: st}
	}
	put("touching", 1, 1, "13:30", "14:00", model.StatusConfirmed)
	put("cancelled", 1, 2, "14:00", "14:30", model.StatusCancelled)
	put("other-student", 2, 3, "14:00", "14:30", model.StatusRequested)
	put("self", 1, 1, "14:00", "14:30", model.StatusRequested)
	put("hit", 1, 4, "14:20", "14:40", model.StatusRequested)

	got, err := ConflictChecker{}.Check(context.Background(), looseTx{memReservationTx{db}}, model.ParticipantStudent, 1, at("14:00"), at("14:30"), "self")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "hit", got[0].ID)
}

func TestCheckPairDeduplicates(t *testing.T) {
	db := newMemDB()
	db.reservations["shared"] = model.Reservation{ID: "shared", StudentID: 1, CompanyID: 1, StartTime: at("10:00"), EndTime: at("10:30"), Status: model.StatusConfirmed}

	got, err := ConflictChecker{}.CheckPair(context.Background(), memReservationTx{db}, 1, 1, at("10:10"), at("10:20"), "")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "shared", got[0].ID)
}
