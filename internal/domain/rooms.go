package domain

import (
	"strings"

	"github.com/google/uuid"
)

const AdminRoom = "admin_room"

const (
	salonRoomPrefix = "salon_"
	userRoomPrefix  = "user_"
)

// Events published to rooms.
const (
	EventNewRequest       = "new_request"
	EventQueueUpdated     = "queue_updated"
	EventRequestAccepted  = "request_accepted"
	EventStatusChange     = "status_change"
	EventServiceCompleted = "service_completed"
	EventAdminStatsUpdate = "admin_stats_update"
)

func SalonRoom(id uuid.UUID) string {
	return salonRoomPrefix + id.String()
}

func UserRoom(id uuid.UUID) string {
	return userRoomPrefix + id.String()
}

type RoomKind int

const (
	RoomUnknown RoomKind = iota
	RoomSalon
	RoomUser
	RoomAdmin
)

// ParseRoom splits a room name into its kind and owner id.
func ParseRoom(room string) (RoomKind, uuid.UUID) {
	if room == AdminRoom {
		return RoomAdmin, uuid.Nil
	}

	var kind RoomKind
	var raw string
	switch {
	case strings.HasPrefix(room, salonRoomPrefix):
		kind, raw = RoomSalon, strings.TrimPrefix(room, salonRoomPrefix)
	case strings.HasPrefix(room, userRoomPrefix):
		kind, raw = RoomUser, strings.TrimPrefix(room, userRoomPrefix)
	default:
		return RoomUnknown, uuid.Nil
	}

	id, err := uuid.Parse(raw)
	if err != nil {
		return RoomUnknown, uuid.Nil
	}
	return kind, id
}

// QueueUpdate is the payload of queue_updated.
type QueueUpdate struct {
	SalonID  uuid.UUID    `json:"salon_id"`
	TicketID uuid.UUID    `json:"ticket_id"`
	Action   Action       `json:"action"`
	Status   TicketStatus `json:"status"`
}

// CompletionUpdate is the payload of admin_stats_update.
type CompletionUpdate struct {
	SalonID  uuid.UUID `json:"salon_id"`
	TicketID uuid.UUID `json:"ticket_id"`
	Amount   int64     `json:"amount"`
}

// SalonChange is the payload of admin_stats_update when a salon is
// registered or its online or verified flag flips.
type SalonChange struct {
	SalonID    uuid.UUID `json:"salon_id"`
	IsOnline   bool      `json:"is_online"`
	IsVerified bool      `json:"is_verified"`
}
