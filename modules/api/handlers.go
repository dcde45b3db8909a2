package api

import (
	"errors"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"golang.org/x/sync/errgroup"

	domain "github.com/example/chat-relay-demo/domain/chat"
	"github.com/example/chat-relay-demo/modules/activity"
	"github.com/example/chat-relay-demo/modules/chat"
)

// setupRoutes configures all HTTP routes.
func (m *APIModule) setupRoutes(app *fiber.App) {
	// Health check
	app.Get("/health", m.healthHandler)

	// WebSocket endpoint
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws", websocket.New(m.sessions.HandleWebSocket))

	// REST API v1
	api := app.Group("/api/v1")
	api.Get("/rooms", m.listRooms)
	api.Get("/rooms/:id", m.getRoom)
	api.Get("/rooms/:id/history", m.getHistory)
	api.Get("/rooms/:id/members", m.getMembers)
	api.Get("/rooms/:id/stats", m.getRoomStats)
	api.Get("/stats", m.getStats)

	if m.cfg.StaticDir != "" {
		app.Static("/", m.cfg.StaticDir)
	}
}

// healthHandler handles GET /health.
func (m *APIModule) healthHandler(c *fiber.Ctx) error {
	return c.JSON(HealthResponse{
		Status: "healthy",
		Details: map[string]any{
			"module":            "api",
			"connected_clients": m.hub.ClientCount(),
		},
	})
}

// listRooms handles GET /api/v1/rooms.
func (m *APIModule) listRooms(c *fiber.Ctx) error {
	rooms, err := m.chatAdapter.ListRooms(c.UserContext())
	if err != nil {
		m.logger.Error("Failed to list rooms", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
			Error:   "list_failed",
			Message: "Failed to list rooms",
		})
	}

	response := RoomListResponse{
		Rooms: make([]RoomResponse, 0, len(rooms)),
		Total: len(rooms),
	}
	for _, room := range rooms {
		response.Rooms = append(response.Rooms, toRoomResponse(room))
	}
	return c.JSON(response)
}

// getRoom handles GET /api/v1/rooms/:id.
func (m *APIModule) getRoom(c *fiber.Ctx) error {
	room, err := m.chatAdapter.GetRoom(c.UserContext(), c.Params("id"))
	if err != nil {
		return m.roomError(c, err)
	}
	return c.JSON(toRoomResponse(*room))
}

// getHistory handles GET /api/v1/rooms/:id/history. Without a limit the
// whole log is returned.
func (m *APIModule) getHistory(c *fiber.Ctx) error {
	roomID := c.Params("id")
	limit := c.QueryInt("limit", 0)
	if limit < 0 {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error:   "validation_error",
			Message: "limit must not be negative",
		})
	}

	if _, err := m.chatAdapter.GetRoom(c.UserContext(), roomID); err != nil {
		return m.roomError(c, err)
	}

	messages, err := m.chatAdapter.GetHistory(c.UserContext(), roomID, limit)
	if err != nil {
		m.logger.Error("Failed to get history", "room", roomID, "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
			Error:   "history_failed",
			Message: "Failed to get history",
		})
	}

	response := HistoryResponse{
		RoomID:   roomID,
		Messages: make([]MessageResponse, 0, len(messages)),
		Total:    len(messages),
	}
	for _, msg := range messages {
		response.Messages = append(response.Messages, toMessageResponse(msg))
	}
	return c.JSON(response)
}

// getMembers handles GET /api/v1/rooms/:id/members.
func (m *APIModule) getMembers(c *fiber.Ctx) error {
	roomID := c.Params("id")
	members, err := m.chatAdapter.GetRoomMembers(c.UserContext(), roomID)
	if err != nil {
		m.logger.Error("Failed to get members", "room", roomID, "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
			Error:   "members_failed",
			Message: "Failed to get room members",
		})
	}
	if members == nil {
		members = []string{}
	}
	return c.JSON(MembersResponse{RoomID: roomID, Members: members, Total: len(members)})
}

// getStats handles GET /api/v1/stats. Activity counters and the live room
// list come from different modules and are fetched concurrently.
func (m *APIModule) getStats(c *fiber.Ctx) error {
	var (
		summary activity.Summary
		rooms   []domain.RoomSummary
	)
	g, ctx := errgroup.WithContext(c.UserContext())
	g.Go(func() error {
		var err error
		summary, err = m.activityAdapter.Summary(ctx)
		return err
	})
	g.Go(func() error {
		var err error
		rooms, err = m.chatAdapter.ListRooms(ctx)
		return err
	})
	if err := g.Wait(); err != nil {
		m.logger.Error("Failed to get stats", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
			Error:   "stats_failed",
			Message: "Failed to get activity summary",
		})
	}

	response := StatsResponse{
		Summary:          summary,
		LiveRooms:        make([]RoomResponse, 0, len(rooms)),
		ConnectedClients: m.hub.ClientCount(),
	}
	for _, room := range rooms {
		response.LiveRooms = append(response.LiveRooms, toRoomResponse(room))
	}
	return c.JSON(response)
}

// getRoomStats handles GET /api/v1/rooms/:id/stats. Closed rooms keep their
// counters.
func (m *APIModule) getRoomStats(c *fiber.Ctx) error {
	stats, err := m.activityAdapter.RoomActivity(c.UserContext(), c.Params("id"))
	if err != nil {
		if errors.Is(err, activity.ErrNoActivity) {
			return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{
				Error:   "not_found",
				Message: "No activity recorded for room",
			})
		}
		m.logger.Error("Failed to get room activity", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
			Error:   "stats_failed",
			Message: "Failed to get room activity",
		})
	}
	return c.JSON(stats)
}

func (m *APIModule) roomError(c *fiber.Ctx, err error) error {
	if errors.Is(err, chat.ErrRoomNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{
			Error:   "not_found",
			Message: "Room not found",
		})
	}
	m.logger.Error("Failed to get room", "error", err)
	return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
		Error:   "room_failed",
		Message: "Failed to get room",
	})
}
