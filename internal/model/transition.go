package model

// Relation is how an actor relates to a particular reservation.
type Relation uint8

const (
	RelationNone Relation = iota
	RelationRequester
	RelationCounterparty
	RelationOrganizer
)

func (r Relation) String() string {
	switch r {
	case RelationRequester:
		return "requester"
	case RelationCounterparty:
		return "counterparty"
	case RelationOrganizer:
		return "organizer"
	}
	return "none"
}

// RelationOf derives the actor's relation to r.  A participant that is not
// part of the reservation gets RelationNone.
func RelationOf(a Actor, r *Reservation) Relation {
	if a.IsOrganizer() {
		return RelationOrganizer
	}
	kind, ok := a.Participant()
	if !ok || r.ParticipantID(kind) != a.ID {
		return RelationNone
	}
	if kind == r.RequestedBy {
		return RelationRequester
	}
	return RelationCounterparty
}

// TransitionKey identifies one edge of the state machine for one relation.
type TransitionKey struct {
	From     Status
	Relation Relation
	To       Status
}

// participantRules is the self-service part of the transition table.
var participantRules = []TransitionKey{
	{StatusRequested, RelationCounterparty, StatusConfirmed},
	{StatusRequested, RelationCounterparty, StatusRejected},
	{StatusRequested, RelationRequester, StatusCancelled},
	{StatusRequested, RelationCounterparty, StatusCancelled},
	{StatusConfirmed, RelationRequester, StatusCancelled},
	{StatusConfirmed, RelationCounterparty, StatusCancelled},
}

// transitions is the full lookup: participant rules plus the organizer
// override, which may move any status to any other status.
var transitions = buildTransitions()

// reachable records which target statuses a relation can reach at all.
var reachable = buildReachable()

func buildTransitions() map[TransitionKey]bool {
	t := make(map[TransitionKey]bool, len(participantRules)+len(AllStatuses)*len(AllStatuses))
	for _, k := range participantRules {
		t[k] = true
	}
	for _, from := range AllStatuses {
		for _, to := range AllStatuses {
			if from != to {
				t[TransitionKey{from, RelationOrganizer, to}] = true
			}
		}
	}
	return t
}

func buildReachable() map[Relation]map[Status]bool {
	r := make(map[Relation]map[Status]bool)
	for k := range transitions {
		if r[k.Relation] == nil {
			r[k.Relation] = make(map[Status]bool)
		}
		r[k.Relation][k.To] = true
	}
	return r
}

// TransitionAllowed reports whether the edge from -> to is in the table for rel.
func TransitionAllowed(from Status, rel Relation, to Status) bool {
	return transitions[TransitionKey{from, rel, to}]
}

// CanEverReach reports whether rel may move a reservation into to from at
// least one status.  It separates "never allowed for you" from "not allowed
// from the current status".
func CanEverReach(rel Relation, to Status) bool {
	return reachable[rel][to]
}

// TransitionKeys returns a copy of every allowed edge.
func TransitionKeys() []TransitionKey {
	out := make([]TransitionKey, 0, len(transitions))
	for k := range transitions {
		out = append(out, k)
	}
	return out
}
