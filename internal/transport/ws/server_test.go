package ws

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/listenroom/sync-service/internal/service"

	"github.com/gorilla/websocket"
)

func newTestServer(t *testing.T) (*httptest.Server, *service.RoomService) {
	t.Helper()

	rooms := service.NewRoomService()
	hub := NewHub()
	srv := NewServer(hub, rooms, Options{PingEvery: 15 * time.Second})

	ts := httptest.NewServer(http.HandlerFunc(srv.HandleWS))
	t.Cleanup(ts.Close)
	return ts, rooms
}

type testClient struct {
	t    *testing.T
	conn *websocket.Conn
}

func dial(t *testing.T, ts *httptest.Server) *testClient {
	t.Helper()

	url := "ws" + strings.TrimPrefix(ts.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", url, err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return &testClient{t: t, conn: conn}
}

func (c *testClient) send(v any) {
	c.t.Helper()
	if err := c.conn.WriteJSON(v); err != nil {
		c.t.Fatalf("send: %v", err)
	}
}

func (c *testClient) sendRaw(data string) {
	c.t.Helper()
	if err := c.conn.WriteMessage(websocket.TextMessage, []byte(data)); err != nil {
		c.t.Fatalf("send raw: %v", err)
	}
}

func (c *testClient) recv() map[string]any {
	c.t.Helper()
	_ = c.conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg map[string]any
	if err := c.conn.ReadJSON(&msg); err != nil {
		c.t.Fatalf("recv: %v", err)
	}
	return msg
}

func (c *testClient) expect(typ string) map[string]any {
	c.t.Helper()
	msg := c.recv()
	if msg["type"] != typ {
		c.t.Fatalf("expected %q, got %v", typ, msg)
	}
	return msg
}

// auth выполняет рукопожатие и возвращает присвоенный user_id.
func (c *testClient) auth(userID string) string {
	c.t.Helper()
	m := map[string]any{"type": "auth"}
	if userID != "" {
		m["user_id"] = userID
	}
	c.send(m)
	ack := c.expect("auth")
	id, _ := ack["user_id"].(string)
	if id == "" {
		c.t.Fatalf("auth ack without user_id: %v", ack)
	}
	c.expect("room_list")
	return id
}

func roomsOf(t *testing.T, msg map[string]any) []any {
	t.Helper()
	rooms, ok := msg["rooms"].([]any)
	if !ok {
		t.Fatalf("room_list without rooms array: %v", msg)
	}
	return rooms
}

func usersOf(t *testing.T, entry any) []any {
	t.Helper()
	m, ok := entry.(map[string]any)
	if !ok {
		t.Fatalf("not an object: %v", entry)
	}
	users, ok := m["users"].([]any)
	if !ok {
		t.Fatalf("entry without users array: %v", entry)
	}
	return users
}

func TestScenario_FullLifecycle(t *testing.T) {
	ts, _ := newTestServer(t)

	// auth без id: сервер генерирует и возвращает его вместе с пустым списком
	u1 := dial(t, ts)
	u1.send(map[string]any{"type": "auth"})
	ack := u1.expect("auth")
	u1ID, _ := ack["user_id"].(string)
	if u1ID == "" {
		t.Fatalf("expected generated user_id, got %v", ack)
	}
	list := u1.expect("room_list")
	if len(roomsOf(t, list)) != 0 {
		t.Fatalf("expected empty room list, got %v", list)
	}

	// create_room: всем room_list, участникам room_update created
	u1.send(map[string]any{"type": "create_room", "name": "Test"})
	list = u1.expect("room_list")
	rooms := roomsOf(t, list)
	if len(rooms) != 1 {
		t.Fatalf("expected 1 room, got %v", rooms)
	}
	users := usersOf(t, rooms[0])
	if len(users) != 1 || users[0] != u1ID {
		t.Fatalf("expected users [%s], got %v", u1ID, users)
	}
	roomID := rooms[0].(map[string]any)["id"].(string)
	upd := u1.expect("room_update")
	if upd["action"] != "created" || upd["room_id"] != roomID {
		t.Fatalf("unexpected update: %v", upd)
	}

	// второй клиент входит в комнату
	u2 := dial(t, ts)
	u2ID := u2.auth("")
	u2.send(map[string]any{"type": "join_room", "room_id": roomID})

	for _, c := range []*testClient{u1, u2} {
		list = c.expect("room_list")
		if got := usersOf(t, roomsOf(t, list)[0]); len(got) != 2 {
			t.Fatalf("expected 2 users after join, got %v", got)
		}
		upd = c.expect("room_update")
		if upd["action"] != "user_joined" || upd["user_id"] != u2ID {
			t.Fatalf("unexpected update: %v", upd)
		}
		if got := upd["users"].([]any); len(got) != 2 {
			t.Fatalf("update users must have length 2, got %v", got)
		}
	}

	// u1 рвёт соединение без leave_room: комната остаётся с u2
	_ = u1.conn.Close()
	list = u2.expect("room_list")
	got := usersOf(t, roomsOf(t, list)[0])
	if len(got) != 1 || got[0] != u2ID {
		t.Fatalf("expected users [%s] after disconnect, got %v", u2ID, got)
	}
	upd = u2.expect("room_update")
	if upd["action"] != "user_left" || upd["user_id"] != u1ID {
		t.Fatalf("unexpected update: %v", upd)
	}

	// последний участник уходит явно: комната удаляется
	u2.send(map[string]any{"type": "leave_room"})
	list = u2.expect("room_list")
	if len(roomsOf(t, list)) != 0 {
		t.Fatalf("expected empty room list, got %v", list)
	}
	upd = u2.expect("room_update")
	if upd["action"] != "closed" || upd["room_id"] != roomID {
		t.Fatalf("unexpected update: %v", upd)
	}
}

func TestAuth_KeepsSuppliedID(t *testing.T) {
	ts, _ := newTestServer(t)

	c := dial(t, ts)
	if got := c.auth("custom-id"); got != "custom-id" {
		t.Fatalf("expected supplied id back, got %q", got)
	}
}

func TestChat_DeliveredToAllIncludingSender(t *testing.T) {
	ts, _ := newTestServer(t)

	u1 := dial(t, ts)
	u1ID := u1.auth("")
	u1.send(map[string]any{"type": "create_room", "name": "chatty"})
	list := u1.expect("room_list")
	roomID := roomsOf(t, list)[0].(map[string]any)["id"].(string)
	u1.expect("room_update")

	u2 := dial(t, ts)
	u2.auth("")
	u2.send(map[string]any{"type": "join_room", "room_id": roomID})
	u1.expect("room_list")
	u1.expect("room_update")
	u2.expect("room_list")
	u2.expect("room_update")

	u1.send(map[string]any{"type": "chat", "message": "  hello  "})
	for _, c := range []*testClient{u1, u2} {
		msg := c.expect("chat")
		if msg["user_id"] != u1ID || msg["message"] != "hello" {
			t.Fatalf("unexpected chat: %v", msg)
		}
		if sec, ok := msg["timestamp"].(float64); !ok || sec <= 0 {
			t.Fatalf("chat without unix timestamp: %v", msg)
		}
	}
}

func TestPlayback_ExcludesSender(t *testing.T) {
	ts, _ := newTestServer(t)

	u1 := dial(t, ts)
	u1ID := u1.auth("")
	u1.send(map[string]any{"type": "create_room"})
	list := u1.expect("room_list")
	roomID := roomsOf(t, list)[0].(map[string]any)["id"].(string)
	u1.expect("room_update")

	u2 := dial(t, ts)
	u2.auth("")
	u2.send(map[string]any{"type": "join_room", "room_id": roomID})
	u1.expect("room_list")
	u1.expect("room_update")
	u2.expect("room_list")
	u2.expect("room_update")

	u1.send(map[string]any{
		"type": "playback", "command": "seek",
		"position": 42.5, "volume": 0.8, "song_path": "a/b.mp3",
	})

	msg := u2.expect("playback")
	if msg["user_id"] != u1ID || msg["command"] != "seek" {
		t.Fatalf("unexpected playback: %v", msg)
	}
	if msg["position"].(float64) != 42.5 || msg["song_path"] != "a/b.mp3" {
		t.Fatalf("playback fields lost: %v", msg)
	}

	// отправителю зеркала не было: следующий ответ ему — room_list
	u1.send(map[string]any{"type": "request_room_list"})
	u1.expect("room_list")
}

func TestLenience_GarbageAndUnknownIgnored(t *testing.T) {
	ts, _ := newTestServer(t)

	c := dial(t, ts)
	c.auth("")

	c.sendRaw("{not json")
	c.sendRaw(`"just a string"`)
	c.send(map[string]any{"type": "warp_drive"})
	c.send(map[string]any{})

	// соединение живо и отвечает
	c.send(map[string]any{"type": "request_room_list"})
	c.expect("room_list")
}

func TestLenience_PreAuthIgnored(t *testing.T) {
	ts, rooms := newTestServer(t)

	c := dial(t, ts)
	c.send(map[string]any{"type": "create_room", "name": "sneaky"})
	c.send(map[string]any{"type": "request_room_list"})

	// до auth — тишина; после auth список пуст
	c.auth("")
	if len(rooms.ListRooms()) != 0 {
		t.Fatal("pre-auth create_room must be a no-op")
	}
}

func TestJoinRoom_StaleIDIsNoop(t *testing.T) {
	ts, _ := newTestServer(t)

	c := dial(t, ts)
	c.auth("")
	c.send(map[string]any{"type": "join_room", "room_id": "stale"})

	c.send(map[string]any{"type": "request_room_list"})
	list := c.expect("room_list")
	if len(roomsOf(t, list)) != 0 {
		t.Fatalf("stale join must not create rooms: %v", list)
	}
}

func TestReconnect_EvictionKeepsRoom(t *testing.T) {
	ts, rooms := newTestServer(t)

	old := dial(t, ts)
	old.auth("stay")
	old.send(map[string]any{"type": "create_room", "name": "mine"})
	old.expect("room_list")
	old.expect("room_update")

	// реконнект с тем же id вытесняет старое соединение,
	// но членство новой сессии в комнате сохраняется
	fresh := dial(t, ts)
	fresh.auth("stay")

	_ = old.conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		if _, _, err := old.conn.ReadMessage(); err != nil {
			break // старое соединение закрыто сервером
		}
	}

	time.Sleep(50 * time.Millisecond)
	list := rooms.ListRooms()
	if len(list) != 1 || !list[0].HasUser("stay") {
		t.Fatalf("room must survive reconnect eviction: %+v", list)
	}

	fresh.send(map[string]any{"type": "request_room_list"})
	got := fresh.expect("room_list")
	if len(roomsOf(t, got)) != 1 {
		t.Fatalf("fresh session must still see the room: %v", got)
	}
}

func TestDisconnect_LastMemberDeletesRoom(t *testing.T) {
	ts, rooms := newTestServer(t)

	c := dial(t, ts)
	c.auth("")
	c.send(map[string]any{"type": "create_room"})
	c.expect("room_list")
	c.expect("room_update")

	_ = c.conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if len(rooms.ListRooms()) == 0 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("room must be deleted after ungraceful disconnect of the last member")
}
