package wsserver

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/go-monolith/mono/pkg/types"
	"github.com/gofiber/contrib/websocket"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/example/chat-relay-demo/config"
	"github.com/example/chat-relay-demo/modules/broadcast"
	"github.com/example/chat-relay-demo/modules/chat"
)

const (
	writeWait           = 10 * time.Second
	rateWarningInterval = 3 * time.Second

	msgRateLimited   = "Rate limit exceeded, please slow down"
	msgInvalidFormat = "Invalid message format"
)

// Socket is the part of a WebSocket connection a session needs.
// *websocket.Conn satisfies it.
type Socket interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	SetReadLimit(limit int64)
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetPongHandler(h func(appData string) error)
	RemoteAddr() net.Addr
	Close() error
}

// Settings tune a session.
type Settings struct {
	SendBuffer      int
	EventsPerSecond float64
	EventBurst      int
	MaxFrameBytes   int64
	PingInterval    time.Duration
	PongWait        time.Duration
}

// SettingsFromConfig copies the session settings out of cfg.
func SettingsFromConfig(cfg *config.Config) Settings {
	return Settings{
		SendBuffer:      cfg.SendBuffer,
		EventsPerSecond: cfg.EventsPerSecond,
		EventBurst:      cfg.EventBurst,
		MaxFrameBytes:   cfg.MaxFrameBytes,
		PingInterval:    cfg.PingInterval,
		PongWait:        cfg.PongWait,
	}
}

// Handlers bridges sockets to the relay and the hub.
type Handlers struct {
	relay    *chat.Relay
	hub      *broadcast.Hub
	settings Settings
	logger   types.Logger

	sessions sync.WaitGroup
}

// NewHandlers creates a new handlers instance.
func NewHandlers(relay *chat.Relay, hub *broadcast.Hub, settings Settings, logger types.Logger) *Handlers {
	return &Handlers{
		relay:    relay,
		hub:      hub,
		settings: settings,
		logger:   logger,
	}
}

// HandleWebSocket serves one upgraded connection at /ws. The optional name
// and room query parameters join a room right away.
func (h *Handlers) HandleWebSocket(c *websocket.Conn) {
	h.Serve(c, c.Query("name"), c.Query("room"))
}

// Serve runs a session until the socket closes. It blocks.
func (h *Handlers) Serve(conn Socket, name, room string) {
	h.sessions.Add(1)
	defer h.sessions.Done()

	ctx := context.Background()
	connID := uuid.NewString()
	remote := ""
	if addr := conn.RemoteAddr(); addr != nil {
		remote = addr.String()
	}

	client := broadcast.NewClient(connID, remote, h.settings.SendBuffer, conn.Close)
	h.hub.Register(client)
	h.relay.Connect(connID)
	h.logger.Info("WebSocket connected", "connID", connID, "remote", remote)

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		h.writePump(conn, client)
	}()

	if name != "" || room != "" {
		h.relay.Join(ctx, connID, chat.JoinRoomPayload{Name: name, Room: room})
	}

	h.readPump(ctx, conn, connID)

	h.relay.Disconnect(ctx, connID)
	h.hub.Unregister(connID)
	<-writerDone
	_ = conn.Close()

	h.logger.Info("WebSocket disconnected", "connID", connID)
}

// Wait blocks until every running session has finished or ctx is done.
func (h *Handlers) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		h.sessions.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (h *Handlers) readPump(ctx context.Context, conn Socket, connID string) {
	conn.SetReadLimit(h.settings.MaxFrameBytes)
	_ = conn.SetReadDeadline(time.Now().Add(h.settings.PongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(h.settings.PongWait))
	})

	limiter := rate.NewLimiter(rate.Limit(h.settings.EventsPerSecond), h.settings.EventBurst)
	var lastWarning time.Time

	for {
		_, frame, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Warn("WebSocket closed unexpectedly", "connID", connID, "error", err)
			}
			return
		}

		if !limiter.Allow() {
			if time.Since(lastWarning) > rateWarningInterval {
				h.sendError(connID, msgRateLimited)
				lastWarning = time.Now()
			}
			continue
		}

		env, err := chat.DecodeEnvelope(frame)
		if err != nil {
			h.sendError(connID, msgInvalidFormat)
			continue
		}

		if err := h.relay.Dispatch(ctx, connID, env); err != nil {
			h.logger.Debug("Event dropped", "connID", connID, "event", env.Event, "error", err)
		}
	}
}

// writePump is the only writer of conn. It returns when the client's queue
// is closed or a write fails.
func (h *Handlers) writePump(conn Socket, client *broadcast.Client) {
	ticker := time.NewTicker(h.settings.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case frame, ok := <-client.Outbound():
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				h.logger.Debug("WebSocket write failed", "connID", client.ID, "error", err)
				_ = conn.Close()
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				_ = conn.Close()
				return
			}
		}
	}
}

func (h *Handlers) sendError(connID, message string) {
	h.hub.Send(connID, chat.Envelope{Event: chat.EventError, Data: chat.ErrorPayload{Message: message}})
}
