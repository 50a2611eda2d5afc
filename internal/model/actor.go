package model

import (
	"fmt"
	"strings"
)

// ParticipantKind distinguishes the two kinds of fair participants.
type ParticipantKind string

const (
	ParticipantStudent ParticipantKind = "student"
	ParticipantCompany ParticipantKind = "company"
)

// ParseParticipantKind accepts the English names and the Dutch "bedrijf".
func ParseParticipantKind(s string) (ParticipantKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "student":
		return ParticipantStudent, nil
	case "company", "bedrijf":
		return ParticipantCompany, nil
	}
	return "", fmt.Errorf("unknown participant kind %q", s)
}

// ActorKind is the tag of the Actor variant.
type ActorKind uint8

const (
	ActorStudent ActorKind = iota + 1
	ActorCompany
	ActorOrganizer
)

func (k ActorKind) String() string {
	switch k {
	case ActorStudent:
		return "student"
	case ActorCompany:
		return "company"
	case ActorOrganizer:
		return "organizer"
	}
	return "unknown"
}

// Actor is the authenticated caller: Student(id) | Company(id) | Organizer.
// Organizers carry no participant id.
type Actor struct {
	Kind ActorKind
	ID   int64
}

func Student(id int64) Actor { return Actor{Kind: ActorStudent, ID: id} }
func Company(id int64) Actor { return Actor{Kind: ActorCompany, ID: id} }
func Organizer() Actor       { return Actor{Kind: ActorOrganizer} }

// IsOrganizer reports whether the actor holds the privileged role.
func (a Actor) IsOrganizer() bool { return a.Kind == ActorOrganizer }

// Participant returns the participant kind of a student or company actor.
func (a Actor) Participant() (ParticipantKind, bool) {
	switch a.Kind {
	case ActorStudent:
		return ParticipantStudent, true
	case ActorCompany:
		return ParticipantCompany, true
	}
	return "", false
}

func (a Actor) String() string {
	if a.IsOrganizer() {
		return "organizer"
	}
	return fmt.Sprintf("%s:%d", a.Kind, a.ID)
}

// ActorFromRole builds an actor from the role and subject claims of an access
// token.  "admin" is accepted as an alias of "organizer".
func ActorFromRole(role string, id int64) (Actor, error) {
	switch strings.ToLower(strings.TrimSpace(role)) {
	case "student":
		if id <= 0 {
			return Actor{}, fmt.Errorf("student actor requires a positive id")
		}
		return Student(id), nil
	case "company", "bedrijf":
		if id <= 0 {
			return Actor{}, fmt.Errorf("company actor requires a positive id")
		}
		return Company(id), nil
	case "organizer", "admin":
		return Organizer(), nil
	}
	return Actor{}, fmt.Errorf("unknown role %q", role)
}
