package realtime

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/emirpasic/gods/sets/hashset"
	"github.com/kirinyoku/salonq/internal/auth"
	"github.com/kirinyoku/salonq/internal/domain"
	redisrepo "github.com/kirinyoku/salonq/internal/repository/redis"
)

type Options struct {
	// SendBuffer is the per-client outbound queue length. Messages for a
	// client whose queue is full are dropped.
	SendBuffer   int
	PingInterval time.Duration
}

// Frame is what clients receive for every room event.
type Frame struct {
	Event string          `json:"event"`
	Room  string          `json:"room,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Hub tracks the websocket clients of this instance and the rooms they
// joined.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client
	// rooms maps a room name to the ids of its members.
	rooms map[string]*hashset.Set

	closed bool

	log  *slog.Logger
	opts Options
}

func NewHub(log *slog.Logger, opts Options) *Hub {
	if opts.SendBuffer <= 0 {
		opts.SendBuffer = 64
	}

	if opts.PingInterval <= 0 {
		opts.PingInterval = 30 * time.Second
	}

	if log == nil {
		log = slog.Default()
	}

	return &Hub{
		clients: make(map[string]*Client),
		rooms:   make(map[string]*hashset.Set),
		log:     log.With(slog.String("component", "hub")),
		opts:    opts,
	}
}

// Register adds c to the hub. On a closed hub the client's send queue is
// closed at once, which ends its connection.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		close(c.send)
		return
	}

	h.clients[c.ID] = c
}

// Close disconnects every client. Hijacked websocket connections are not
// closed by http.Server.Shutdown, so the app calls this on shutdown.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.closed = true
	for _, c := range h.clients {
		close(c.send)
	}
	h.clients = make(map[string]*Client)
	h.rooms = make(map[string]*hashset.Set)
}

// Unregister removes the client from every room and closes its send queue.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[c.ID]; !ok {
		return
	}

	for _, room := range c.rooms.Values() {
		h.leaveLocked(c, room.(string))
	}

	delete(h.clients, c.ID)
	close(c.send)
}

// Join adds the client to room when its identity may see the room.
func (h *Hub) Join(c *Client, room string) bool {
	if !CanJoin(c.Identity, room) {
		return false
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[c.ID]; !ok {
		return false
	}

	members, ok := h.rooms[room]
	if !ok {
		members = hashset.New()
		h.rooms[room] = members
	}
	members.Add(c.ID)
	c.rooms.Add(room)

	return true
}

func (h *Hub) Leave(c *Client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.leaveLocked(c, room)
}

func (h *Hub) leaveLocked(c *Client, room string) {
	c.rooms.Remove(room)

	members, ok := h.rooms[room]
	if !ok {
		return
	}

	members.Remove(c.ID)
	if members.Empty() {
		delete(h.rooms, room)
	}
}

// Broadcast queues payload for every member of room without blocking and
// returns how many clients accepted it.
func (h *Hub) Broadcast(room string, payload []byte) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	members, ok := h.rooms[room]
	if !ok {
		return 0
	}

	delivered := 0
	for _, id := range members.Values() {
		c, ok := h.clients[id.(string)]
		if !ok {
			continue
		}

		select {
		case c.send <- payload:
			delivered++
		default:
			h.log.Warn("drop message for slow client",
				slog.String("client_id", c.ID),
				slog.String("room", room),
			)
		}
	}

	return delivered
}

// Deliver fans a relayed room message out to the local members of its room.
func (h *Hub) Deliver(ctx context.Context, msg redisrepo.RoomMessage) {
	b, err := json.Marshal(Frame{Event: msg.Event, Room: msg.Room, Data: msg.Data})
	if err != nil {
		h.log.ErrorContext(ctx, "encode frame", slog.Any("error", err))
		return
	}

	n := h.Broadcast(msg.Room, b)
	h.log.DebugContext(ctx, "room event delivered",
		slog.String("room", msg.Room),
		slog.String("event", msg.Event),
		slog.Int("clients", n),
	)
}

func (h *Hub) RoomSize(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if members, ok := h.rooms[room]; ok {
		return members.Size()
	}
	return 0
}

// CanJoin reports whether id may subscribe to room. Users and salons see
// only their own room; admins see every room.
func CanJoin(id auth.Identity, room string) bool {
	kind, owner := domain.ParseRoom(room)

	switch kind {
	case domain.RoomUnknown:
		return false
	case domain.RoomAdmin:
		return id.Role == auth.RoleAdmin
	}

	if id.Role == auth.RoleAdmin {
		return true
	}

	switch kind {
	case domain.RoomUser:
		return id.Role == auth.RoleUser && owner == id.ID
	case domain.RoomSalon:
		return id.Role == auth.RoleSalon && owner == id.ID
	}

	return false
}
