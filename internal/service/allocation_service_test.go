package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/iliyamo/careerfair-reservation/internal/model"
)

func company(id int64) model.Entity { return model.Entity{Kind: model.ParticipantCompany, ID: id} }
func student(id int64) model.Entity { return model.Entity{Kind: model.ParticipantStudent, ID: id} }

func newAllocationFixture(t *testing.T) (*AllocationService, *memDB, *recordingPublisher) {
	t.Helper()
	db := newMemDB().
		addStudent(1, "Smart Campus").
		addStudent(2, "Smart Campus").
		addStudent(3, "Smart Campus").
		addStudent(4, "Drone Lab").
		addStudent(5, "")
	for id := int64(1); id <= 20; id++ {
		db.addCompany(id)
	}
	pub := &recordingPublisher{}
	svc := NewAllocationService(memConfigs{db}, memTables{db}, memProfiles{db}, pub, zap.NewNop(), AllocationOptions{MaxCapacity: 500, DefaultCapacity: 15})
	return svc, db, pub
}

func TestAllocationScenario(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newAllocationFixture(t)
	org := model.Organizer()

	_, err := svc.Assign(ctx, org, company(1), 16)
	var ite *InvalidTableError
	require.ErrorAs(t, err, &ite)
	assert.Equal(t, 15, ite.Capacity)

	a, err := svc.Assign(ctx, org, company(1), 5)
	require.NoError(t, err)
	assert.True(t, a.Changed)
	assert.Equal(t, model.SessionAfternoon, a.Session)

	_, err = svc.Assign(ctx, org, company(2), 5)
	var toe *TableOccupiedError
	require.ErrorAs(t, err, &toe)
	assert.Equal(t, company(1).SoloOccupant(), toe.Occupant)

	removed, err := svc.Remove(ctx, org, company(1))
	require.NoError(t, err)
	assert.Equal(t, 5, removed.TableNumber)
	assert.True(t, removed.SlotReleased)

	_, err = svc.Assign(ctx, org, company(2), 5)
	require.NoError(t, err)
}

func TestAssignIsIdempotent(t *testing.T) {
	ctx := context.Background()
	svc, _, pub := newAllocationFixture(t)

	_, err := svc.Assign(ctx, model.Organizer(), company(3), 2)
	require.NoError(t, err)
	again, err := svc.Assign(ctx, model.Organizer(), company(3), 2)
	require.NoError(t, err)
	assert.False(t, again.Changed)
	assert.Equal(t, []string{EventTableAssigned}, pub.types())
}

func TestAssignMovesEntity(t *testing.T) {
	ctx := context.Background()
	svc, db, _ := newAllocationFixture(t)
	org := model.Organizer()

	_, err := svc.Assign(ctx, org, company(3), 2)
	require.NoError(t, err)
	moved, err := svc.Assign(ctx, org, company(3), 7)
	require.NoError(t, err)
	assert.Equal(t, 2, moved.Previous)

	layout, err := svc.ListAvailable(ctx, model.SessionAfternoon)
	require.NoError(t, err)
	assert.False(t, layout.Tables[1].Occupied, "old table released")
	assert.True(t, layout.Tables[6].Occupied)
	assert.Len(t, db.slots, 1)
}

func TestAssignRejectsUnknownAndForbidden(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newAllocationFixture(t)

	_, err := svc.Assign(ctx, model.Company(1), company(1), 1)
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = svc.Assign(ctx, model.Organizer(), company(99), 1)
	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)

	_, err = svc.Remove(ctx, model.Organizer(), company(4))
	var nae *NotAssignedError
	assert.ErrorAs(t, err, &nae)
}

func TestCapacityBoundHolds(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newAllocationFixture(t)
	org := model.Organizer()

	for _, capacity := range []int{1, 3, 15, 500} {
		_, err := svc.SetCapacity(ctx, org, model.SessionMorning, capacity)
		require.NoError(t, err)
		for _, table := range []int{-1, 0, capacity + 1} {
			_, err := svc.Assign(ctx, org, student(5), table)
			var ite *InvalidTableError
			require.ErrorAs(t, err, &ite, "capacity %d table %d", capacity, table)
		}
		_, err = svc.Assign(ctx, org, student(5), capacity)
		require.NoError(t, err)
	}

	for _, capacity := range []int{0, 501} {
		_, err := svc.SetCapacity(ctx, org, model.SessionMorning, capacity)
		var ve *ValidationError
		require.ErrorAs(t, err, &ve)
	}
}

func TestSetCapacityWarnsInsteadOfEvicting(t *testing.T) {
	ctx := context.Background()
	svc, db, pub := newAllocationFixture(t)
	org := model.Organizer()

	_, err := svc.Assign(ctx, org, company(1), 12)
	require.NoError(t, err)

	change, err := svc.SetCapacity(ctx, org, model.SessionAfternoon, 10)
	require.NoError(t, err)
	assert.Equal(t, 10, change.Config.Capacity)
	require.Len(t, change.Warnings, 1)
	assert.Contains(t, change.Warnings[0], "table 12")
	assert.Len(t, db.slots, 1)

	layout, err := svc.ListAvailable(ctx, model.SessionAfternoon)
	require.NoError(t, err)
	assert.Len(t, layout.Tables, 10)
	assert.Equal(t, 10, layout.Free)
	assert.Len(t, layout.Warnings, 1)
	assert.Contains(t, pub.types(), EventCapacityChanged)

	_, err = svc.SetCapacity(ctx, model.Student(1), model.SessionAfternoon, 10)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestConfigsFallBackToDefault(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newAllocationFixture(t)

	_, err := svc.SetCapacity(ctx, model.Organizer(), model.SessionMorning, 40)
	require.NoError(t, err)

	cfgs, err := svc.Configs(ctx, model.Organizer())
	require.NoError(t, err)
	require.Len(t, cfgs, 2)
	assert.Equal(t, 40, cfgs[0].Capacity)
	assert.Equal(t, model.SessionAfternoon, cfgs[1].Session)
	assert.Equal(t, 15, cfgs[1].Capacity)
}

func TestBulkAssignSeatsWholeProject(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newAllocationFixture(t)
	org := model.Organizer()

	a, err := svc.BulkAssign(ctx, org, "Smart Campus", 4)
	require.NoError(t, err)
	assert.Equal(t, model.ProjectOccupant("Smart Campus"), a.Occupant)
	assert.Equal(t, []model.Entity{student(1), student(2), student(3)}, a.Members)

	again, err := svc.BulkAssign(ctx, org, "Smart Campus", 4)
	require.NoError(t, err)
	assert.False(t, again.Changed)

	seat, err := svc.Lookup(ctx, model.Student(2))
	require.NoError(t, err)
	assert.Equal(t, 4, seat.TableNumber)

	layout, err := svc.ListAvailable(ctx, model.SessionMorning)
	require.NoError(t, err)
	assert.Len(t, layout.Tables[3].Members, 3)
}

func TestBulkAssignIsAllOrNothing(t *testing.T) {
	ctx := context.Background()
	svc, db, _ := newAllocationFixture(t)
	org := model.Organizer()

	_, err := svc.Assign(ctx, org, student(5), 4)
	require.NoError(t, err)

	_, err = svc.BulkAssign(ctx, org, "Smart Campus", 4)
	var toe *TableOccupiedError
	require.ErrorAs(t, err, &toe)
	for _, id := range []int64{1, 2, 3} {
		assert.NotContains(t, db.seats, seatKey{model.SessionMorning, student(id)})
	}

	_, err = svc.BulkAssign(ctx, org, "Nobody's Project", 6)
	var nf *NotFoundError
	assert.ErrorAs(t, err, &nf)
}

// failingTables fails the seat insert of one entity.
type failingTables struct {
	memTables
	failOn model.Entity
}

func (f failingTables) InTx(ctx context.Context, fn func(tx TableTx) error) error {
	return f.db.inTx(func() error { return fn(failingSeatTx{memTableTx{f.db}, f.failOn}) })
}

type failingSeatTx struct {
	memTableTx
	failOn model.Entity
}

func (f failingSeatTx) InsertSeat(ctx context.Context, seat model.Seat) error {
	if seat.Entity() == f.failOn {
		return errors.New("lock wait timeout exceeded")
	}
	return f.memTableTx.InsertSeat(ctx, seat)
}

func TestBulkAssignRollsBackOnMidwayFailure(t *testing.T) {
	ctx := context.Background()
	_, db, _ := newAllocationFixture(t)
	svc := NewAllocationService(memConfigs{db}, failingTables{memTables{db}, student(3)}, memProfiles{db}, nil, nil, AllocationOptions{})

	_, err := svc.BulkAssign(ctx, model.Organizer(), "Smart Campus", 4)
	require.Error(t, err)
	assert.False(t, isDomainError(err))
	assert.Empty(t, db.seats)
	assert.Empty(t, db.slots)
}

func TestBulkAssignPullsMemberFromSoloSeat(t *testing.T) {
	ctx := context.Background()
	svc, db, _ := newAllocationFixture(t)
	org := model.Organizer()

	_, err := svc.Assign(ctx, org, student(1), 9)
	require.NoError(t, err)
	_, err = svc.BulkAssign(ctx, org, "Smart Campus", 3)
	require.NoError(t, err)

	assert.NotContains(t, db.slots, slotKey{model.SessionMorning, 9})
	assert.Equal(t, 3, db.seats[seatKey{model.SessionMorning, student(1)}].TableNumber)
}

func TestBulkRemove(t *testing.T) {
	ctx := context.Background()
	svc, db, _ := newAllocationFixture(t)
	org := model.Organizer()

	_, err := svc.BulkAssign(ctx, org, "Smart Campus", 4)
	require.NoError(t, err)
	r, err := svc.BulkRemove(ctx, org, "Smart Campus")
	require.NoError(t, err)
	assert.Equal(t, 4, r.TableNumber)
	assert.Len(t, r.Removed, 3)
	assert.True(t, r.SlotReleased)
	assert.Empty(t, db.seats)
	assert.Empty(t, db.slots)

	_, err = svc.BulkRemove(ctx, org, "Smart Campus")
	var nae *NotAssignedError
	assert.ErrorAs(t, err, &nae)
}

func TestLookup(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newAllocationFixture(t)

	_, err := svc.Lookup(ctx, model.Organizer())
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = svc.Lookup(ctx, model.Company(8))
	var nae *NotAssignedError
	require.ErrorAs(t, err, &nae)
	assert.Equal(t, model.SessionAfternoon, nae.Session)

	_, err = svc.Assign(ctx, model.Organizer(), company(8), 1)
	require.NoError(t, err)
	seat, err := svc.Lookup(ctx, model.Company(8))
	require.NoError(t, err)
	assert.Equal(t, 1, seat.TableNumber)
}

func TestConcurrentAssignHasOneWinner(t *testing.T) {
	ctx := context.Background()
	svc, db, _ := newAllocationFixture(t)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		wins     int
		occupied int
	)
	for id := int64(1); id <= 20; id++ {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			_, err := svc.Assign(ctx, model.Organizer(), company(id), 3)
			mu.Lock()
			defer mu.Unlock()
			var toe *TableOccupiedError
			switch {
			case err == nil:
				wins++
			case assert.ErrorAs(t, err, &toe):
				occupied++
			}
		}(id)
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
	assert.Equal(t, 19, occupied)
	assert.Len(t, db.slots, 1)
	assert.Len(t, db.seats, 1)
}
