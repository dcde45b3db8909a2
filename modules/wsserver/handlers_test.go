package wsserver

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/go-monolith/mono/pkg/types"
	"github.com/gofiber/contrib/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/chat-relay-demo/modules/broadcast"
	"github.com/example/chat-relay-demo/modules/chat"
)

type mockLogger struct{}

func (m *mockLogger) Debug(_ string, _ ...any)         {}
func (m *mockLogger) Info(_ string, _ ...any)          {}
func (m *mockLogger) Warn(_ string, _ ...any)          {}
func (m *mockLogger) Error(_ string, _ ...any)         {}
func (m *mockLogger) With(_ ...any) types.Logger       { return m }
func (m *mockLogger) WithModule(_ string) types.Logger { return m }
func (m *mockLogger) WithError(_ error) types.Logger   { return m }

var errSocketClosed = errors.New("socket closed")

// fakeSocket reads frames pushed by the test and records what the session
// writes. Closing inbound ends the session like a client hanging up.
type fakeSocket struct {
	inbound   chan []byte
	closed    chan struct{}
	closeOnce sync.Once

	mu      sync.Mutex
	written []frame
}

type frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

func newFakeSocket() *fakeSocket {
	return &fakeSocket{
		inbound: make(chan []byte, 16),
		closed:  make(chan struct{}),
	}
}

func (s *fakeSocket) ReadMessage() (int, []byte, error) {
	select {
	case f, ok := <-s.inbound:
		if !ok {
			return 0, nil, io.EOF
		}
		return websocket.TextMessage, f, nil
	case <-s.closed:
		return 0, nil, errSocketClosed
	}
}

func (s *fakeSocket) WriteMessage(messageType int, data []byte) error {
	select {
	case <-s.closed:
		return errSocketClosed
	default:
	}
	if messageType != websocket.TextMessage {
		return nil
	}
	var f frame
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	s.mu.Lock()
	s.written = append(s.written, f)
	s.mu.Unlock()
	return nil
}

func (s *fakeSocket) SetReadLimit(int64)                {}
func (s *fakeSocket) SetReadDeadline(time.Time) error   { return nil }
func (s *fakeSocket) SetWriteDeadline(time.Time) error  { return nil }
func (s *fakeSocket) SetPongHandler(func(string) error) {}
func (s *fakeSocket) RemoteAddr() net.Addr              { return &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 50000} }

func (s *fakeSocket) Close() error {
	s.closeOnce.Do(func() { close(s.closed) })
	return nil
}

func (s *fakeSocket) send(t *testing.T, event string, data any) {
	t.Helper()
	b, err := json.Marshal(map[string]any{"event": event, "data": data})
	require.NoError(t, err)
	s.inbound <- b
}

func (s *fakeSocket) frames() []frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]frame(nil), s.written...)
}

func (s *fakeSocket) texts(event string) []string {
	var out []string
	for _, f := range s.frames() {
		if f.Event != event {
			continue
		}
		var body struct {
			Text    string `json:"text"`
			Message string `json:"message"`
		}
		_ = json.Unmarshal(f.Data, &body)
		if body.Text != "" {
			out = append(out, body.Text)
		} else {
			out = append(out, body.Message)
		}
	}
	return out
}

func testSettings() Settings {
	return Settings{
		SendBuffer:      broadcast.DefaultSendBuffer,
		EventsPerSecond: 100,
		EventBurst:      100,
		MaxFrameBytes:   1 << 20,
		PingInterval:    time.Hour,
		PongWait:        2 * time.Hour,
	}
}

func newTestHandlers(t *testing.T, settings Settings) *Handlers {
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
	return NewHandlers(relay, hub, settings, &mockLogger{})
}

func serve(h *Handlers, sock *fakeSocket, name, room string) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		h.Serve(sock, name, room)
	}()
	return done
}

func waitDone(t *testing.T, done <-chan struct{}) {
	t.Helper()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("session did not finish")
	}
}

func TestServe_AutoJoinAndRelay(t *testing.T) {
	h := newTestHandlers(t, testSettings())

	alice, bob := newFakeSocket(), newFakeSocket()
	aliceDone := serve(h, alice, "Alice", "go")
	require.Eventually(t, func() bool {
		return len(alice.frames()) >= 3
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, "Welcome to go, Alice!", alice.texts(chat.EventMessage)[0])

	bobDone := serve(h, bob, "Bob", "go")
	require.Eventually(t, func() bool {
		return len(alice.texts(chat.EventMessage)) >= 2
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, "Bob joined the room", alice.texts(chat.EventMessage)[1])

	alice.send(t, chat.EventChatMessage, "hello bob")
	require.Eventually(t, func() bool {
		texts := bob.texts(chat.EventMessage)
		return len(texts) > 0 && texts[len(texts)-1] == "hello bob"
	}, time.Second, 5*time.Millisecond)

	close(alice.inbound)
	waitDone(t, aliceDone)
	require.Eventually(t, func() bool {
		texts := bob.texts(chat.EventMessage)
		return texts[len(texts)-1] == "Alice left the room"
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"Bob"}, h.relay.MembersOf("go"))

	close(bob.inbound)
	waitDone(t, bobDone)
	require.NoError(t, h.Wait(context.Background()))
	assert.Equal(t, 0, h.relay.ConnectionCount())
	assert.Equal(t, 0, h.hub.ClientCount())
}

func TestServe_InvalidFrame(t *testing.T) {
	h := newTestHandlers(t, testSettings())
	sock := newFakeSocket()
	done := serve(h, sock, "", "")

	sock.inbound <- []byte("not json")
	sock.inbound <- []byte(`{"data":"no event"}`)
	close(sock.inbound)
	waitDone(t, done)

	assert.Equal(t, []string{msgInvalidFormat, msgInvalidFormat}, sock.texts(chat.EventError))
}

func TestServe_UnknownEventIsDroppedQuietly(t *testing.T) {
	h := newTestHandlers(t, testSettings())
	sock := newFakeSocket()
	done := serve(h, sock, "Alice", "go")

	sock.send(t, "shout", "hi")
	close(sock.inbound)
	waitDone(t, done)

	assert.Empty(t, sock.texts(chat.EventError))
}

func TestServe_RateLimit(t *testing.T) {
	settings := testSettings()
	settings.EventsPerSecond = 0.001
	settings.EventBurst = 1
	h := newTestHandlers(t, settings)

	alice, bob := newFakeSocket(), newFakeSocket()
	bobDone := serve(h, bob, "Bob", "go")
	require.Eventually(t, func() bool {
		return len(bob.frames()) >= 3
	}, time.Second, 5*time.Millisecond)

	// the join query does not consume tokens, so one frame passes
	aliceDone := serve(h, alice, "Alice", "go")
	for _, text := range []string{"one", "two", "three"} {
		alice.send(t, chat.EventChatMessage, text)
	}
	close(alice.inbound)
	waitDone(t, aliceDone)

	assert.Equal(t, []string{msgRateLimited}, alice.texts(chat.EventError), "one warning per interval")

	close(bob.inbound)
	waitDone(t, bobDone)
	assert.Contains(t, bob.texts(chat.EventMessage), "one")
	assert.NotContains(t, bob.texts(chat.EventMessage), "two")
}

func TestServe_SocketCloseRunsLeaveCascade(t *testing.T) {
	h := newTestHandlers(t, testSettings())
	sock := newFakeSocket()
	done := serve(h, sock, "Alice", "go")

	require.Eventually(t, func() bool {
		return h.relay.ConnectionCount() == 1
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, sock.Close())
	waitDone(t, done)
	_, ok := h.relay.Room("go")
	assert.False(t, ok, "room closes with its last member")
}
