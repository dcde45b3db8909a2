package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-monolith/mono/pkg/types"
	"github.com/gofiber/fiber/v2"
	gorillaws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/chat-relay-demo/config"
	domain "github.com/example/chat-relay-demo/domain/chat"
	"github.com/example/chat-relay-demo/events"
	"github.com/example/chat-relay-demo/modules/activity"
	"github.com/example/chat-relay-demo/modules/broadcast"
	"github.com/example/chat-relay-demo/modules/chat"
	"github.com/example/chat-relay-demo/modules/wsserver"
)

type mockLogger struct{}

func (m *mockLogger) Debug(_ string, _ ...any)         {}
func (m *mockLogger) Info(_ string, _ ...any)          {}
func (m *mockLogger) Warn(_ string, _ ...any)          {}
func (m *mockLogger) Error(_ string, _ ...any)         {}
func (m *mockLogger) With(_ ...any) types.Logger       { return m }
func (m *mockLogger) WithModule(_ string) types.Logger { return m }
func (m *mockLogger) WithError(_ error) types.Logger   { return m }

// relayPort answers ChatPort calls straight from a relay, standing in for
// the request-reply services.
type relayPort struct {
	relay *chat.Relay
}

func (p relayPort) ListRooms(_ context.Context) ([]domain.RoomSummary, error) {
	return p.relay.Rooms(), nil
}

func (p relayPort) GetRoom(_ context.Context, roomID string) (*domain.RoomSummary, error) {
	room, ok := p.relay.Room(roomID)
	if !ok {
		return nil, chat.ErrRoomNotFound
	}
	return &room, nil
}

func (p relayPort) GetHistory(_ context.Context, roomID string, limit int) ([]domain.Message, error) {
	return p.relay.History(roomID, limit), nil
}

func (p relayPort) GetRoomMembers(_ context.Context, roomID string) ([]string, error) {
	return p.relay.MembersOf(roomID), nil
}

type failingPort struct{}

var errUnavailable = errors.New("service unavailable")

func (failingPort) ListRooms(context.Context) ([]domain.RoomSummary, error) {
	return nil, errUnavailable
}

func (failingPort) GetRoom(context.Context, string) (*domain.RoomSummary, error) {
	return nil, errUnavailable
}

func (failingPort) GetHistory(context.Context, string, int) ([]domain.Message, error) {
	return nil, errUnavailable
}

func (failingPort) GetRoomMembers(context.Context, string) ([]string, error) {
	return nil, errUnavailable
}

type storePort struct {
	store *activity.Store
}

func (p storePort) Summary(_ context.Context) (activity.Summary, error) {
	return p.store.Summary(), nil
}

func (p storePort) RoomActivity(_ context.Context, roomID string) (activity.RoomActivity, error) {
	r, ok := p.store.Room(roomID)
	if !ok {
		return activity.RoomActivity{}, activity.ErrNoActivity
	}
	return r, nil
}

type fixture struct {
	module *APIModule
	app    *fiber.App
	relay  *chat.Relay
	store  *activity.Store
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	hub := broadcast.NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	t.Cleanup(func() {
		cancel()
		hub.Wait()
	})

	relay, err := chat.NewRelay(hub, &mockLogger{})
	require.NoError(t, err)

	cfg := &config.Config{
		Port:               "0",
		CORSAllowedOrigins: "*",
		SendBuffer:         broadcast.DefaultSendBuffer,
		EventsPerSecond:    100,
		EventBurst:         100,
		MaxFrameBytes:      1 << 20,
		PingInterval:       time.Hour,
		PongWait:           2 * time.Hour,
	}
	store := activity.NewStore()

	m := NewModule(cfg, &mockLogger{})
	m.chatAdapter = relayPort{relay: relay}
	m.activityAdapter = storePort{store: store}
	m.SetHub(hub)
	m.SetSessionHandlers(wsserver.NewHandlers(relay, hub, wsserver.SettingsFromConfig(cfg), &mockLogger{}))

	return &fixture{module: m, app: m.buildApp(), relay: relay, store: store}
}

func (f *fixture) get(t *testing.T, path string) (int, []byte) {
	t.Helper()
	resp, err := f.app.Test(httptest.NewRequest(http.MethodGet, path, nil))
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, body
}

func (f *fixture) join(t *testing.T, connID, name, room string) {
	t.Helper()
	f.relay.Connect(connID)
	require.True(t, f.relay.Join(context.Background(), connID, chat.JoinRoomPayload{Name: name, Room: room}))
}

func TestHealth(t *testing.T) {
	f := newFixture(t)

	code, body := f.get(t, "/health")
	require.Equal(t, http.StatusOK, code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(body, &resp))
	assert.Equal(t, "healthy", resp.Status)
}

func TestRooms(t *testing.T) {
	f := newFixture(t)
	f.join(t, "c1", "Alice", "go")
	f.join(t, "c2", "Bob", "go")
	f.join(t, "c3", "Carol", "rust")

	code, body := f.get(t, "/api/v1/rooms")
	require.Equal(t, http.StatusOK, code)
	var list RoomListResponse
	require.NoError(t, json.Unmarshal(body, &list))
	require.Equal(t, 2, list.Total)
	assert.Equal(t, "go", list.Rooms[0].ID)
	assert.Equal(t, 2, list.Rooms[0].Members)

	code, body = f.get(t, "/api/v1/rooms/rust")
	require.Equal(t, http.StatusOK, code)
	var room RoomResponse
	require.NoError(t, json.Unmarshal(body, &room))
	assert.Equal(t, 1, room.Members)
	assert.Equal(t, 1, room.Messages)

	code, body = f.get(t, "/api/v1/rooms/nowhere")
	assert.Equal(t, http.StatusNotFound, code)
	var errResp ErrorResponse
	require.NoError(t, json.Unmarshal(body, &errResp))
	assert.Equal(t, "not_found", errResp.Error)
}

func TestHistory(t *testing.T) {
	f := newFixture(t)
	f.join(t, "c1", "Alice", "go")
	require.True(t, f.relay.ChatMessage(context.Background(), "c1", chat.ChatMessagePayload{Text: "hi"}))

	tests := []struct {
		name      string
		path      string
		wantCode  int
		wantTexts []string
	}{
		{"all", "/api/v1/rooms/go/history", http.StatusOK, []string{"Alice joined the room", "hi"}},
		{"newest", "/api/v1/rooms/go/history?limit=1", http.StatusOK, []string{"hi"}},
		{"negative limit", "/api/v1/rooms/go/history?limit=-1", http.StatusBadRequest, nil},
		{"unknown room", "/api/v1/rooms/nowhere/history", http.StatusNotFound, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, body := f.get(t, tt.path)
			require.Equal(t, tt.wantCode, code)
			if tt.wantTexts == nil {
				return
			}
			var resp HistoryResponse
			require.NoError(t, json.Unmarshal(body, &resp))
			texts := make([]string, len(resp.Messages))
			for i, m := range resp.Messages {
				texts[i] = m.Text
			}
			assert.Equal(t, tt.wantTexts, texts)
			assert.Equal(t, len(tt.wantTexts), resp.Total)
		})
	}
}

func TestMembers(t *testing.T) {
	f := newFixture(t)
	f.join(t, "c1", "Alice", "go")
	f.join(t, "c2", "Alice", "go")
	f.join(t, "c3", "Bob", "go")

	code, body := f.get(t, "/api/v1/rooms/go/members")
	require.Equal(t, http.StatusOK, code)
	var resp MembersResponse
	require.NoError(t, json.Unmarshal(body, &resp))
	assert.Equal(t, []string{"Alice", "Bob"}, resp.Members)

	code, body = f.get(t, "/api/v1/rooms/empty/members")
	require.Equal(t, http.StatusOK, code)
	require.NoError(t, json.Unmarshal(body, &resp))
	assert.NotNil(t, resp.Members)
	assert.Empty(t, resp.Members)
}

func TestStats(t *testing.T) {
	f := newFixture(t)
	f.join(t, "c1", "Alice", "go")
	f.store.RecordOpened(events.RoomLifecycleEvent{RoomID: "go"})
	f.store.RecordJoined(events.UserJoinedEvent{RoomID: "go", Username: "Alice"})
	f.store.RecordPosted(events.MessagePostedEvent{RoomID: "go", Kind: "text"})

	code, body := f.get(t, "/api/v1/stats")
	require.Equal(t, http.StatusOK, code)
	var stats StatsResponse
	require.NoError(t, json.Unmarshal(body, &stats))
	assert.Equal(t, 1, stats.ActiveRooms)
	assert.Equal(t, 1, stats.TotalMessages)
	require.Len(t, stats.LiveRooms, 1)
	assert.Equal(t, "go", stats.LiveRooms[0].ID)

	code, body = f.get(t, "/api/v1/rooms/go/stats")
	require.Equal(t, http.StatusOK, code)
	var room activity.RoomActivity
	require.NoError(t, json.Unmarshal(body, &room))
	assert.Equal(t, 1, room.Joins)

	code, _ = f.get(t, "/api/v1/rooms/never/stats")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestServiceErrors(t *testing.T) {
	f := newFixture(t)
	f.module.chatAdapter = failingPort{}
	f.app = f.module.buildApp()

	for _, path := range []string{"/api/v1/rooms", "/api/v1/rooms/go", "/api/v1/rooms/go/history", "/api/v1/rooms/go/members", "/api/v1/stats"} {
		code, _ := f.get(t, path)
		assert.Equal(t, http.StatusInternalServerError, code, path)
	}
}

func TestWebSocket_RequiresUpgrade(t *testing.T) {
	f := newFixture(t)

	code, _ := f.get(t, "/ws")
	assert.Equal(t, fiber.StatusUpgradeRequired, code)
}

func TestStartRequiresDependencies(t *testing.T) {
	m := NewModule(&config.Config{Port: "0"}, &mockLogger{})
	err := m.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chat adapter")
	assert.False(t, m.Health(context.Background()).Healthy)
}

type wsFrame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

func dial(t *testing.T, addr, query string) *gorillaws.Conn {
	t.Helper()
	conn, _, err := gorillaws.DefaultDialer.Dial("ws://"+addr+"/ws"+query, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

// readUntil reads frames until one matches event and, for message frames,
// contains text.
func readUntil(t *testing.T, conn *gorillaws.Conn, event, text string) wsFrame {
	t.Helper()
	for {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		var f wsFrame
		require.NoError(t, conn.ReadJSON(&f))
		if f.Event != event {
			continue
		}
		if text == "" || strings.Contains(string(f.Data), text) {
			return f
		}
	}
}

func TestWebSocket_EndToEnd(t *testing.T) {
	f := newFixture(t)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = f.app.Listener(ln) }()
	t.Cleanup(func() { _ = f.app.ShutdownWithTimeout(time.Second) })
	addr := ln.Addr().String()

	alice := dial(t, addr, "?name=Alice&room=go")
	readUntil(t, alice, chat.EventMessage, "Welcome to go, Alice!")
	history := readUntil(t, alice, chat.EventMessageHistory, "")
	var hp chat.HistoryPayload
	require.NoError(t, json.Unmarshal(history.Data, &hp))
	assert.Equal(t, "go", hp.Room)
	assert.Empty(t, hp.Messages)
	readUntil(t, alice, chat.EventRoomUsers, "Alice")

	bob := dial(t, addr, "")
	require.NoError(t, bob.WriteJSON(map[string]any{
		"event": chat.EventJoinRoom,
		"data":  map[string]string{"name": "Bob", "room": "go"},
	}))
	readUntil(t, bob, chat.EventMessage, "Welcome to go, Bob!")
	readUntil(t, alice, chat.EventMessage, "Bob joined the room")

	require.NoError(t, bob.WriteJSON(map[string]any{"event": chat.EventChatMessage, "data": "hi alice"}))
	got := readUntil(t, alice, chat.EventMessage, "hi alice")
	var view chat.MessageView
	require.NoError(t, json.Unmarshal(got.Data, &view))
	assert.Equal(t, "Bob", view.User)

	require.NoError(t, bob.WriteMessage(gorillaws.TextMessage, []byte("garbage")))
	readUntil(t, bob, chat.EventError, "Invalid message format")

	require.NoError(t, bob.Close())
	readUntil(t, alice, chat.EventMessage, "Bob left the room")
	readUntil(t, alice, chat.EventRoomUsers, "Alice")
}

func TestStop_ClosesLiveSessions(t *testing.T) {
	f := newFixture(t)
	f.module.app = f.app

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = f.app.Listener(ln) }()

	alice := dial(t, ln.Addr().String(), "?name=Alice&room=go")
	readUntil(t, alice, chat.EventRoomUsers, "Alice")
	require.Equal(t, 1, f.relay.ConnectionCount())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, f.module.Stop(ctx))

	assert.Equal(t, 0, f.relay.ConnectionCount())
	_, exists := f.relay.Room("go")
	assert.False(t, exists)

	require.NoError(t, alice.SetReadDeadline(time.Now().Add(2*time.Second)))
	var readErr error
	for readErr == nil {
		_, _, readErr = alice.ReadMessage()
	}
	var netErr net.Error
	assert.False(t, errors.As(readErr, &netErr) && netErr.Timeout(), "socket still open after Stop: %v", readErr)
}
