package model

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Session is one of the two time blocks of the fair.  Each session has its
// own table numbering space.
type Session string

const (
	SessionMorning   Session = "morning"
	SessionAfternoon Session = "afternoon"
)

// Sessions lists both sessions in fair order.
var Sessions = []Session{SessionMorning, SessionAfternoon}

// ParseSession accepts the English names and the Dutch "voormiddag" and
// "namiddag" used by the organizer tooling.
func ParseSession(s string) (Session, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "morning", "voormiddag":
		return SessionMorning, nil
	case "afternoon", "namiddag":
		return SessionAfternoon, nil
	}
	return "", fmt.Errorf("unknown session %q", s)
}

// SessionFor returns the session in which a participant kind is seated:
// students and their projects in the morning, companies in the afternoon.
func SessionFor(kind ParticipantKind) Session {
	if kind == ParticipantCompany {
		return SessionAfternoon
	}
	return SessionMorning
}

// SessionConfig is the number of table slots available in a session.  It is
// passed explicitly into every allocation call.
type SessionConfig struct {
	Session   Session   `db:"session" json:"session"`
	Capacity  int       `db:"capacity" json:"capacity"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// InRange reports whether table lies in 1..Capacity.
func (c SessionConfig) InRange(table int) bool {
	return table >= 1 && table <= c.Capacity
}

// OccupantKind is what sits at a table.
type OccupantKind string

const (
	OccupantCompany OccupantKind = "company"
	OccupantStudent OccupantKind = "student"
	OccupantProject OccupantKind = "project"
)

// Occupant is the unit that holds a table: a single company, a single
// student, or a project group identified by its title.
type Occupant struct {
	Kind OccupantKind `json:"kind"`
	Ref  string       `json:"ref"`
}

// Key is the stable string stored in table_slots.occupant_key.
func (o Occupant) Key() string { return string(o.Kind) + ":" + o.Ref }

func (o Occupant) String() string { return o.Key() }

// ParseOccupantKey is the inverse of Occupant.Key.
func ParseOccupantKey(key string) (Occupant, error) {
	kind, ref, ok := strings.Cut(key, ":")
	if !ok || ref == "" {
		return Occupant{}, fmt.Errorf("malformed occupant key %q", key)
	}
	switch OccupantKind(kind) {
	case OccupantCompany, OccupantStudent, OccupantProject:
		return Occupant{Kind: OccupantKind(kind), Ref: ref}, nil
	}
	return Occupant{}, fmt.Errorf("unknown occupant kind in %q", key)
}

// Entity is a single participant that can be seated.
type Entity struct {
	Kind ParticipantKind `json:"type"`
	ID   int64           `json:"id"`
}

func (e Entity) String() string { return fmt.Sprintf("%s:%d", e.Kind, e.ID) }

// SoloOccupant is the occupant an entity forms when seated on its own.
func (e Entity) SoloOccupant() Occupant {
	kind := OccupantStudent
	if e.Kind == ParticipantCompany {
		kind = OccupantCompany
	}
	return Occupant{Kind: kind, Ref: strconv.FormatInt(e.ID, 10)}
}

// ProjectOccupant is the occupant of a project group.
func ProjectOccupant(title string) Occupant {
	return Occupant{Kind: OccupantProject, Ref: title}
}

// Seat records that an entity sits at a table in a session.  It corresponds
// to a row in `table_seats`.
type Seat struct {
	Session     Session         `db:"session" json:"session"`
	EntityType  ParticipantKind `db:"entity_type" json:"entityType"`
	EntityID    int64           `db:"entity_id" json:"entityId"`
	TableNumber int             `db:"table_number" json:"tableNumber"`
	OccupantKey string          `db:"occupant_key" json:"occupant"`
}

// Entity returns the seated entity.
func (s Seat) Entity() Entity { return Entity{Kind: s.EntityType, ID: s.EntityID} }

// Slot is a claimed table.  It corresponds to a row in `table_slots`.
type Slot struct {
	Session     Session   `db:"session" json:"session"`
	TableNumber int       `db:"table_number" json:"tableNumber"`
	OccupantKey string    `db:"occupant_key" json:"occupant"`
	AssignedAt  time.Time `db:"assigned_at" json:"assignedAt"`
}

// TableStatus describes one table of a session for organizer tooling.
type TableStatus struct {
	TableNumber int       `json:"tableNumber"`
	Occupied    bool      `json:"occupied"`
	Occupant    *Occupant `json:"occupant,omitempty"`
	Members     []Entity  `json:"members,omitempty"`
}

// SessionTables is the full availability picture of a session.
type SessionTables struct {
	Session  Session       `json:"session"`
	Capacity int           `json:"capacity"`
	Tables   []TableStatus `json:"tables"`
	Free     int           `json:"free"`
	Warnings []string      `json:"warnings,omitempty"`
}

// Assignment is the outcome of seating an entity or group.
type Assignment struct {
	Session     Session  `json:"session"`
	TableNumber int      `json:"tableNumber"`
	Occupant    Occupant `json:"occupant"`
	Members     []Entity `json:"members"`
	Changed     bool     `json:"changed"`
	Previous    int      `json:"previousTable,omitempty"`
}

// Removal is the outcome of unseating an entity or group.
type Removal struct {
	Session      Session  `json:"session"`
	TableNumber  int      `json:"tableNumber"`
	Occupant     Occupant `json:"occupant"`
	Removed      []Entity `json:"removed"`
	SlotReleased bool     `json:"slotReleased"`
}
