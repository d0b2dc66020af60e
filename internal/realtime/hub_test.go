package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/kirinyoku/salonq/internal/auth"
	"github.com/kirinyoku/salonq/internal/domain"
	redisrepo "github.com/kirinyoku/salonq/internal/repository/redis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanJoin(t *testing.T) {
	userID, salonID := uuid.New(), uuid.New()
	user := auth.Identity{ID: userID, Role: auth.RoleUser}
	salon := auth.Identity{ID: salonID, Role: auth.RoleSalon}
	admin := auth.Identity{ID: uuid.New(), Role: auth.RoleAdmin}

	cases := []struct {
		name string
		id   auth.Identity
		room string
		want bool
	}{
		{"user own room", user, domain.UserRoom(userID), true},
		{"user other user", user, domain.UserRoom(uuid.New()), false},
		{"user salon room", user, domain.SalonRoom(salonID), false},
		{"user admin room", user, domain.AdminRoom, false},
		{"salon own room", salon, domain.SalonRoom(salonID), true},
		{"salon other salon", salon, domain.SalonRoom(uuid.New()), false},
		{"salon user room with same id", auth.Identity{ID: userID, Role: auth.RoleSalon}, domain.UserRoom(userID), false},
		{"admin any salon", admin, domain.SalonRoom(salonID), true},
		{"admin any user", admin, domain.UserRoom(userID), true},
		{"admin room", admin, domain.AdminRoom, true},
		{"unknown room", admin, "lobby", false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, CanJoin(tc.id, tc.room))
		})
	}
}

func TestBroadcastReachesRoomMembersOnly(t *testing.T) {
	hub := NewHub(nil, Options{SendBuffer: 2})
	salonID := uuid.New()
	room := domain.SalonRoom(salonID)

	member := hub.NewClient(nil, auth.Identity{ID: salonID, Role: auth.RoleSalon})
	outsider := hub.NewClient(nil, auth.Identity{ID: uuid.New(), Role: auth.RoleSalon})
	hub.Register(member)
	hub.Register(outsider)

	require.True(t, hub.Join(member, room))
	require.False(t, hub.Join(outsider, room))
	assert.Equal(t, 1, hub.RoomSize(room))

	assert.Equal(t, 1, hub.Broadcast(room, []byte("a")))
	assert.Equal(t, []byte("a"), <-member.send)
	assert.Empty(t, outsider.send)

	assert.Equal(t, 1, hub.Broadcast(room, []byte("b")))
	assert.Equal(t, 1, hub.Broadcast(room, []byte("c")))
	assert.Equal(t, 0, hub.Broadcast(room, []byte("d")), "full buffer drops")

	hub.Leave(member, room)
	assert.Equal(t, 0, hub.RoomSize(room))
	assert.Equal(t, 0, hub.Broadcast(room, []byte("e")))
}

func TestUnregisterCleansRooms(t *testing.T) {
	hub := NewHub(nil, Options{})
	admin := hub.NewClient(nil, auth.Identity{ID: uuid.New(), Role: auth.RoleAdmin})
	hub.Register(admin)

	rooms := []string{domain.AdminRoom, domain.SalonRoom(uuid.New()), domain.UserRoom(uuid.New())}
	for _, room := range rooms {
		require.True(t, hub.Join(admin, room))
	}

	hub.Unregister(admin)
	hub.Unregister(admin)

	for _, room := range rooms {
		assert.Equal(t, 0, hub.RoomSize(room))
	}
	_, open := <-admin.send
	assert.False(t, open)
	assert.False(t, hub.Join(admin, domain.AdminRoom))
}

func TestDeliverWrapsFrame(t *testing.T) {
	hub := NewHub(nil, Options{})
	admin := hub.NewClient(nil, auth.Identity{ID: uuid.New(), Role: auth.RoleAdmin})
	hub.Register(admin)
	require.True(t, hub.Join(admin, domain.AdminRoom))

	hub.Deliver(context.Background(), redisrepo.RoomMessage{
		Room:  domain.AdminRoom,
		Event: domain.EventAdminStatsUpdate,
		Data:  json.RawMessage(`{"amount":300}`),
	})

	var f Frame
	require.NoError(t, json.Unmarshal(<-admin.send, &f))
	assert.Equal(t, domain.EventAdminStatsUpdate, f.Event)
	assert.Equal(t, domain.AdminRoom, f.Room)
	assert.JSONEq(t, `{"amount":300}`, string(f.Data))
}

func TestServeOverWebsocket(t *testing.T) {
	hub := NewHub(nil, Options{PingInterval: time.Second})
	userID := uuid.New()
	upgrader := websocket.Upgrader{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		hub.Serve(conn, auth.Identity{ID: userID, Role: auth.RoleUser})
	}))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.Close()

	read := func() Frame {
		t.Helper()
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		var f Frame
		require.NoError(t, conn.ReadJSON(&f))
		return f
	}

	require.NoError(t, conn.WriteJSON(Request{Action: ActionJoin, Room: domain.SalonRoom(uuid.New())}))
	assert.Equal(t, "error", read().Event)

	room := domain.UserRoom(userID)
	require.NoError(t, conn.WriteJSON(Request{Action: ActionJoin, Room: room}))
	joined := read()
	assert.Equal(t, "joined", joined.Event)
	assert.Equal(t, room, joined.Room)

	hub.Deliver(context.Background(), redisrepo.RoomMessage{
		Room:  room,
		Event: domain.EventRequestAccepted,
		Data:  json.RawMessage(`{"status":"waiting"}`),
	})
	got := read()
	assert.Equal(t, domain.EventRequestAccepted, got.Event)
	assert.JSONEq(t, `{"status":"waiting"}`, string(got.Data))

	require.NoError(t, conn.WriteJSON(Request{Action: ActionLeave, Room: room}))
	assert.Equal(t, "left", read().Event)
	assert.Equal(t, 0, hub.RoomSize(room))
}

func TestCloseDisconnectsClients(t *testing.T) {
	hub := NewHub(nil, Options{})
	admin := hub.NewClient(nil, auth.Identity{ID: uuid.New(), Role: auth.RoleAdmin})
	hub.Register(admin)
	require.True(t, hub.Join(admin, domain.AdminRoom))

	hub.Close()

	_, open := <-admin.send
	assert.False(t, open)
	assert.Equal(t, 0, hub.RoomSize(domain.AdminRoom))
	hub.Unregister(admin)

	late := hub.NewClient(nil, auth.Identity{ID: uuid.New(), Role: auth.RoleAdmin})
	hub.Register(late)
	_, open = <-late.send
	assert.False(t, open)
	assert.False(t, hub.Join(late, domain.AdminRoom))
}
