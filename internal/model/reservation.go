package model

import "time"

// Status is the lifecycle state of a reservation.
type Status string

const (
	StatusRequested Status = "requested"
	StatusConfirmed Status = "confirmed"
	StatusRejected  Status = "rejected"
	StatusCancelled Status = "cancelled"
	StatusCompleted Status = "completed"
	StatusNoShow    Status = "no-show"
)

// AllStatuses lists every status in lifecycle order.
var AllStatuses = []Status{
	StatusRequested,
	StatusConfirmed,
	StatusRejected,
	StatusCancelled,
	StatusCompleted,
	StatusNoShow,
}

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	for _, known := range AllStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// Active reports whether a reservation in this status still blocks the
// participants' agenda. Only active reservations take part in conflict checks.
func (s Status) Active() bool {
	return s == StatusRequested || s == StatusConfirmed
}

// Reservation is a proposed or confirmed meeting between one student and one
// company during the fair.  It corresponds to a row in the `reservations`
// table.
//
// Fields:
//  ID          – opaque identifier (UUID string).
//  StudentID   – participating student (profile id).
//  CompanyID   – participating company (profile id).
//  StartTime   – inclusive start of the meeting window (UTC).
//  EndTime     – exclusive end of the meeting window (UTC).
//  Status      – lifecycle state, see Status.
//  RequestedBy – participant kind that created the request.
//  Note        – optional free text, e.g. a rejection reason.
type Reservation struct {
	ID          string          `db:"id" json:"id"`
	StudentID   int64           `db:"student_id" json:"studentId"`
	CompanyID   int64           `db:"company_id" json:"companyId"`
	StartTime   time.Time       `db:"start_time" json:"startTime"`
	EndTime     time.Time       `db:"end_time" json:"endTime"`
	Status      Status          `db:"status" json:"status"`
	RequestedBy ParticipantKind `db:"requested_by" json:"requestedBy"`
	Note        *string         `db:"note" json:"note,omitempty"`
	CreatedAt   time.Time       `db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time       `db:"updated_at" json:"updatedAt"`
}

// ParticipantID returns the id of the participant of the given kind.
func (r *Reservation) ParticipantID(kind ParticipantKind) int64 {
	if kind == ParticipantCompany {
		return r.CompanyID
	}
	return r.StudentID
}

// Overlaps reports whether the half-open windows [s1,e1) and [s2,e2)
// intersect.  Windows that only touch at a boundary do not overlap.
func Overlaps(s1, e1, s2, e2 time.Time) bool {
	return s1.Before(e2) && s2.Before(e1)
}

// ReservationFilter narrows organizer listings.  Zero values mean "any".
type ReservationFilter struct {
	Status    Status
	StudentID int64
	CompanyID int64
}
