package realtime

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/emirpasic/gods/sets/hashset"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/kirinyoku/salonq/internal/auth"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Maximum message size allowed from peer.
	maxMessageSize = 4096
)

const (
	ActionJoin  = "join"
	ActionLeave = "leave"
)

// Request is a control message sent by a client.
type Request struct {
	Action string `json:"action"`
	Room   string `json:"room"`
}

// Client is a middleman between the websocket connection and the hub.
type Client struct {
	ID       string
	Identity auth.Identity

	conn *websocket.Conn
	hub  *Hub
	send chan []byte
	// rooms is guarded by hub.mu.
	rooms *hashset.Set
}

func (h *Hub) NewClient(conn *websocket.Conn, id auth.Identity) *Client {
	return &Client{
		ID:       uuid.NewString(),
		Identity: id,
		conn:     conn,
		hub:      h,
		send:     make(chan []byte, h.opts.SendBuffer),
		rooms:    hashset.New(),
	}
}

// Serve runs the client until the connection ends. It blocks.
func (h *Hub) Serve(conn *websocket.Conn, id auth.Identity) {
	c := h.NewClient(conn, id)
	h.Register(c)

	done := make(chan struct{})
	go func() {
		defer close(done)
		c.writePump()
	}()

	c.readPump()
	h.Unregister(c)
	<-done
}

func (c *Client) readPump() {
	defer c.conn.Close()

	pongWait := c.hub.opts.PingInterval * 5 / 2

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.log.Warn("websocket read failed", slog.String("client_id", c.ID), slog.Any("error", err))
			}
			return
		}

		var req Request
		if err := json.Unmarshal(message, &req); err != nil {
			c.reply(Frame{Event: "error", Data: errorData("malformed message")})
			continue
		}

		switch req.Action {
		case ActionJoin:
			if !c.hub.Join(c, req.Room) {
				c.reply(Frame{Event: "error", Room: req.Room, Data: errorData("room not allowed")})
				continue
			}
			c.reply(Frame{Event: "joined", Room: req.Room})
		case ActionLeave:
			c.hub.Leave(c, req.Room)
			c.reply(Frame{Event: "left", Room: req.Room})
		default:
			c.reply(Frame{Event: "error", Data: errorData("unknown action")})
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(c.hub.opts.PingInterval)

	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// reply queues a control frame for this client only. It is dropped when
// the queue is full, like any other message.
func (c *Client) reply(f Frame) {
	b, err := json.Marshal(f)
	if err != nil {
		return
	}

	c.hub.mu.RLock()
	defer c.hub.mu.RUnlock()

	if _, ok := c.hub.clients[c.ID]; !ok {
		return
	}

	select {
	case c.send <- b:
	default:
	}
}

func errorData(msg string) json.RawMessage {
	b, _ := json.Marshal(map[string]string{"message": msg})
	return b
}
