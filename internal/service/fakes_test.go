package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/iliyamo/careerfair-reservation/internal/model"
	"github.com/iliyamo/careerfair-reservation/internal/repository"
)

// memDB is an in-memory stand-in for MySQL.  A transaction holds the mutex
// from start to end and its writes are undone when fn fails.
type memDB struct {
	mu           sync.Mutex
	reservations map[string]model.Reservation
	slots        map[slotKey]model.Slot
	seats        map[seatKey]model.Seat
	configs      map[model.Session]model.SessionConfig
	students     map[int64]string // id -> project title
	companies    map[int64]bool

	failInsert error
}

type slotKey struct {
	session model.Session
	table   int
}

type seatKey struct {
	session model.Session
	entity  model.Entity
}

func newMemDB() *memDB {
	return &memDB{
		reservations: map[string]model.Reservation{},
		slots:        map[slotKey]model.Slot{},
		seats:        map[seatKey]model.Seat{},
		configs:      map[model.Session]model.SessionConfig{},
		students:     map[int64]string{},
		companies:    map[int64]bool{},
	}
}

func (db *memDB) addStudent(id int64, project string) *memDB {
	db.students[id] = project
	return db
}

func (db *memDB) addCompany(id int64) *memDB {
	db.companies[id] = true
	return db
}

type snapshot struct {
	reservations map[string]model.Reservation
	slots        map[slotKey]model.Slot
	seats        map[seatKey]model.Seat
}

func (db *memDB) snapshot() snapshot {
	s := snapshot{
		reservations: make(map[string]model.Reservation, len(db.reservations)),
		slots:        make(map[slotKey]model.Slot, len(db.slots)),
		seats:        make(map[seatKey]model.Seat, len(db.seats)),
	}
	for k, v := range db.reservations {
		s.reservations[k] = v
	}
	for k, v := range db.slots {
		s.slots[k] = v
	}
	for k, v := range db.seats {
		s.seats[k] = v
	}
	return s
}

func (db *memDB) restore(s snapshot) {
	db.reservations = s.reservations
	db.slots = s.slots
	db.seats = s.seats
}

func (db *memDB) inTx(fn func() error) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	snap := db.snapshot()
	if err := fn(); err != nil {
		db.restore(snap)
		return err
	}
	return nil
}

// reservations

type memReservations struct{ db *memDB }

func (m memReservations) InTx(ctx context.Context, fn func(tx ReservationTx) error) error {
	return m.db.inTx(func() error { return fn(memReservationTx{m.db}) })
}

func (m memReservations) Get(_ context.Context, id string) (*model.Reservation, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	r, ok := m.db.reservations[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &r, nil
}

func (m memReservations) ListByParticipant(_ context.Context, kind model.ParticipantKind, id int64) ([]model.Reservation, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	out := []model.Reservation{}
	for _, r := range m.db.reservations {
		if r.ParticipantID(kind) == id {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.After(out[j].StartTime) })
	return out, nil
}

func (m memReservations) List(_ context.Context, f model.ReservationFilter) ([]model.Reservation, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	out := []model.Reservation{}
	for _, r := range m.db.reservations {
		if f.Status != "" && r.Status != f.Status {
			continue
		}
		if f.StudentID != 0 && r.StudentID != f.StudentID {
			continue
		}
		if f.CompanyID != 0 && r.CompanyID != f.CompanyID {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out, nil
}

type memReservationTx struct{ db *memDB }

func (memReservationTx) LockParticipant(context.Context, model.ParticipantKind, int64) error {
	return nil
}

func (t memReservationTx) ActiveOverlapping(_ context.Context, kind model.ParticipantKind, id int64, start, end time.Time, excludeID string) ([]model.Reservation, error) {
	out := []model.Reservation{}
	for _, r := range t.db.reservations {
		if r.ParticipantID(kind) == id && r.Status.Active() && r.ID != excludeID &&
			r.StartTime.Before(end) && r.EndTime.After(start) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out, nil
}

func (t memReservationTx) Insert(_ context.Context, r *model.Reservation) error {
	if t.db.failInsert != nil {
		return t.db.failInsert
	}
	if _, ok := t.db.reservations[r.ID]; ok {
		return repository.ErrDuplicate
	}
	t.db.reservations[r.ID] = *r
	return nil
}

func (t memReservationTx) GetForUpdate(_ context.Context, id string) (*model.Reservation, error) {
	r, ok := t.db.reservations[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &r, nil
}

func (t memReservationTx) UpdateStatus(_ context.Context, id string, status model.Status, note *string) error {
	r, ok := t.db.reservations[id]
	if !ok {
		return repository.ErrNotFound
	}
	r.Status = status
	r.Note = note
	t.db.reservations[id] = r
	return nil
}

func (t memReservationTx) Delete(_ context.Context, id string) error {
	if _, ok := t.db.reservations[id]; !ok {
		return repository.ErrNotFound
	}
	delete(t.db.reservations, id)
	return nil
}

// tables

type memTables struct{ db *memDB }

func (m memTables) InTx(ctx context.Context, fn func(tx TableTx) error) error {
	return m.db.inTx(func() error { return fn(memTableTx{m.db}) })
}

func (m memTables) Slots(_ context.Context, s model.Session) ([]model.Slot, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	out := []model.Slot{}
	for k, v := range m.db.slots {
		if k.session == s {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TableNumber < out[j].TableNumber })
	return out, nil
}

func (m memTables) Seats(_ context.Context, s model.Session) ([]model.Seat, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	return m.db.seatsWhere(func(seat model.Seat) bool { return seat.Session == s }), nil
}

func (m memTables) SeatOf(_ context.Context, s model.Session, e model.Entity) (*model.Seat, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	seat, ok := m.db.seats[seatKey{s, e}]
	if !ok {
		return nil, nil
	}
	return &seat, nil
}

func (db *memDB) seatsWhere(keep func(model.Seat) bool) []model.Seat {
	out := []model.Seat{}
	for _, v := range db.seats {
		if keep(v) {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TableNumber != out[j].TableNumber {
			return out[i].TableNumber < out[j].TableNumber
		}
		return out[i].EntityID < out[j].EntityID
	})
	return out
}

func (db *memDB) slotOf(s model.Session, occupantKey string) (slotKey, model.Slot, bool) {
	for k, v := range db.slots {
		if k.session == s && v.OccupantKey == occupantKey {
			return k, v, true
		}
	}
	return slotKey{}, model.Slot{}, false
}

type memTableTx struct{ db *memDB }

func (t memTableTx) SlotForUpdate(_ context.Context, s model.Session, table int) (*model.Slot, error) {
	slot, ok := t.db.slots[slotKey{s, table}]
	if !ok {
		return nil, nil
	}
	return &slot, nil
}

func (t memTableTx) SlotOfOccupant(_ context.Context, s model.Session, occupantKey string) (*model.Slot, error) {
	_, slot, ok := t.db.slotOf(s, occupantKey)
	if !ok {
		return nil, nil
	}
	return &slot, nil
}

func (t memTableTx) SeatForUpdate(_ context.Context, s model.Session, e model.Entity) (*model.Seat, error) {
	seat, ok := t.db.seats[seatKey{s, e}]
	if !ok {
		return nil, nil
	}
	return &seat, nil
}

func (t memTableTx) SeatsOfOccupant(_ context.Context, s model.Session, occupantKey string) ([]model.Seat, error) {
	return t.db.seatsWhere(func(seat model.Seat) bool {
		return seat.Session == s && seat.OccupantKey == occupantKey
	}), nil
}

func (t memTableTx) ClaimSlot(_ context.Context, slot model.Slot) error {
	if _, ok := t.db.slots[slotKey{slot.Session, slot.TableNumber}]; ok {
		return repository.ErrDuplicate
	}
	if _, _, ok := t.db.slotOf(slot.Session, slot.OccupantKey); ok {
		return repository.ErrDuplicate
	}
	t.db.slots[slotKey{slot.Session, slot.TableNumber}] = slot
	return nil
}

func (t memTableTx) ReleaseSlot(_ context.Context, s model.Session, occupantKey string) error {
	if k, _, ok := t.db.slotOf(s, occupantKey); ok {
		delete(t.db.slots, k)
		for sk, seat := range t.db.seats {
			if sk.session == s && seat.TableNumber == k.table {
				delete(t.db.seats, sk)
			}
		}
	}
	return nil
}

func (t memTableTx) InsertSeat(_ context.Context, seat model.Seat) error {
	k := seatKey{seat.Session, seat.Entity()}
	if _, ok := t.db.seats[k]; ok {
		return repository.ErrDuplicate
	}
	if _, ok := t.db.slots[slotKey{seat.Session, seat.TableNumber}]; !ok {
		return errors.New("foreign key: no slot for seat")
	}
	t.db.seats[k] = seat
	return nil
}

func (t memTableTx) DeleteSeat(_ context.Context, s model.Session, e model.Entity) error {
	delete(t.db.seats, seatKey{s, e})
	return nil
}

func (t memTableTx) DeleteSeatsOfOccupant(_ context.Context, s model.Session, occupantKey string) (int64, error) {
	var n int64
	for k, seat := range t.db.seats {
		if k.session == s && seat.OccupantKey == occupantKey {
			delete(t.db.seats, k)
			n++
		}
	}
	return n, nil
}

// configs and profiles

type memConfigs struct{ db *memDB }

func (m memConfigs) Get(_ context.Context, s model.Session) (model.SessionConfig, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	cfg, ok := m.db.configs[s]
	if !ok {
		return model.SessionConfig{}, repository.ErrNotFound
	}
	return cfg, nil
}

func (m memConfigs) All(context.Context) ([]model.SessionConfig, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	out := []model.SessionConfig{}
	for _, s := range model.Sessions {
		if cfg, ok := m.db.configs[s]; ok {
			out = append(out, cfg)
		}
	}
	return out, nil
}

func (m memConfigs) Set(_ context.Context, cfg model.SessionConfig) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	m.db.configs[cfg.Session] = cfg
	return nil
}

type memProfiles struct{ db *memDB }

func (m memProfiles) Exists(_ context.Context, e model.Entity) (bool, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	if e.Kind == model.ParticipantCompany {
		return m.db.companies[e.ID], nil
	}
	_, ok := m.db.students[e.ID]
	return ok, nil
}

func (m memProfiles) ProjectMembers(_ context.Context, title string) ([]int64, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	ids := []int64{}
	for id, p := range m.db.students {
		if p == title {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

// recordingPublisher keeps every published event.
type recordingPublisher struct {
	mu     sync.Mutex
	events []Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, ev Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, ev := range p.events {
		out = append(out, ev.Type)
	}
	return out
}
