package domain

import (
	"slices"
	"time"

	"github.com/google/uuid"
)

type TicketStatus string

const (
	StatusPending   TicketStatus = "pending"
	StatusWaiting   TicketStatus = "waiting"
	StatusServing   TicketStatus = "serving"
	StatusCompleted TicketStatus = "completed"
	StatusCancelled TicketStatus = "cancelled"
	StatusRejected  TicketStatus = "rejected"
	StatusNoShow    TicketStatus = "no-show"
)

// ActiveStatuses are the non-terminal statuses. A user holds at most one
// ticket in any of them.
var ActiveStatuses = []TicketStatus{StatusPending, StatusWaiting, StatusServing}

func (s TicketStatus) Active() bool {
	return slices.Contains(ActiveStatuses, s)
}

func (s TicketStatus) Terminal() bool {
	switch s {
	case StatusCompleted, StatusCancelled, StatusRejected, StatusNoShow:
		return true
	}
	return false
}

func (s TicketStatus) Valid() bool {
	return s.Active() || s.Terminal()
}

type Action string

const (
	ActionAccept   Action = "accept"
	ActionReject   Action = "reject"
	ActionStart    Action = "start"
	ActionComplete Action = "complete"
	ActionCancel   Action = "cancel"
	ActionNoShow   Action = "no-show"
	ActionExtend   Action = "extend"
)

type transition struct {
	from []TicketStatus
	to   TicketStatus // empty: status is kept
}

var transitions = map[Action]transition{
	ActionAccept:   {from: []TicketStatus{StatusPending}, to: StatusWaiting},
	ActionReject:   {from: []TicketStatus{StatusPending}, to: StatusRejected},
	ActionStart:    {from: []TicketStatus{StatusWaiting}, to: StatusServing},
	ActionComplete: {from: []TicketStatus{StatusServing}, to: StatusCompleted},
	ActionCancel:   {from: []TicketStatus{StatusPending, StatusWaiting, StatusServing}, to: StatusCancelled},
	ActionNoShow:   {from: []TicketStatus{StatusWaiting, StatusServing}, to: StatusNoShow},
	ActionExtend:   {from: []TicketStatus{StatusWaiting, StatusServing}},
}

// NextStatus returns the status a ticket in from moves to when action is
// applied. ok is false when the pair is not in the transition table.
func NextStatus(action Action, from TicketStatus) (TicketStatus, bool) {
	t, found := transitions[action]
	if !found || !slices.Contains(t.from, from) {
		return "", false
	}
	if t.to == "" {
		return from, true
	}
	return t.to, true
}

// ServiceItem is a service selected on a ticket, priced at booking time.
type ServiceItem struct {
	Name     string `json:"name"`
	Price    int64  `json:"price"`
	Duration int    `json:"duration"`
}

type Ticket struct {
	ID            uuid.UUID     `json:"id"`
	SalonID       uuid.UUID     `json:"salon_id"`
	UserID        *uuid.UUID    `json:"user_id,omitempty"`
	GuestName     string        `json:"guest_name,omitempty"`
	GuestMobile   string        `json:"guest_mobile,omitempty"`
	Services      []ServiceItem `json:"services"`
	TotalPrice    int64         `json:"total_price"`
	TotalDuration int           `json:"total_duration"`
	QueuePosition *int          `json:"queue_position"`
	Status        TicketStatus  `json:"status"`
	StaffName     *string       `json:"staff_name"`
	ChairID       *int          `json:"chair_id"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

func (t *Ticket) IsWalkIn() bool {
	return t.UserID == nil
}

// OwnedBy reports whether the ticket was booked by userID.
func (t *Ticket) OwnedBy(userID uuid.UUID) bool {
	return t.UserID != nil && *t.UserID == userID
}

// TicketView is a user's current ticket together with how many waiting
// tickets are ahead of it.
type TicketView struct {
	Ticket
	Ahead int64 `json:"ahead"`
}
