package api

import (
	"time"

	domain "github.com/example/chat-relay-demo/domain/chat"
	"github.com/example/chat-relay-demo/modules/activity"
)

// RoomResponse is the API response for a room.
type RoomResponse struct {
	ID          string    `json:"id"`
	Members     int       `json:"members"`
	Connections int       `json:"connections"`
	Messages    int       `json:"messages"`
	CreatedAt   time.Time `json:"created_at"`
}

// RoomListResponse is the API response for listing rooms.
type RoomListResponse struct {
	Rooms []RoomResponse `json:"rooms"`
	Total int            `json:"total"`
}

// MessageResponse is the API response for a message.
type MessageResponse struct {
	ID        string     `json:"id"`
	Author    string     `json:"author"`
	System    bool       `json:"system"`
	Kind      string     `json:"kind"`
	Text      string     `json:"text,omitempty"`
	FileName  string     `json:"file_name,omitempty"`
	FileType  string     `json:"file_type,omitempty"`
	Timestamp time.Time  `json:"timestamp"`
	Edited    bool       `json:"edited"`
	EditedAt  *time.Time `json:"edited_at,omitempty"`
	Pinned    bool       `json:"pinned"`
	SeenBy    []string   `json:"seen_by,omitempty"`
}

// HistoryResponse is the API response for message history.
type HistoryResponse struct {
	RoomID   string            `json:"room_id"`
	Messages []MessageResponse `json:"messages"`
	Total    int               `json:"total"`
}

// MembersResponse lists the display names present in a room.
type MembersResponse struct {
	RoomID  string   `json:"room_id"`
	Members []string `json:"members"`
	Total   int      `json:"total"`
}

// StatsResponse combines the activity summary with the live rooms.
type StatsResponse struct {
	activity.Summary
	LiveRooms        []RoomResponse `json:"live_rooms"`
	ConnectedClients int            `json:"connected_clients"`
}

// ErrorResponse is the API error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// HealthResponse is the API health check response.
type HealthResponse struct {
	Status  string         `json:"status"`
	Details map[string]any `json:"details,omitempty"`
}

func toRoomResponse(r domain.RoomSummary) RoomResponse {
	return RoomResponse{
		ID:          r.ID,
		Members:     r.Members,
		Connections: r.Connections,
		Messages:    r.Messages,
		CreatedAt:   r.CreatedAt,
	}
}

// toMessageResponse leaves attachment bytes out; history over REST is for
// inspection, the socket carries the payloads.
func toMessageResponse(m domain.Message) MessageResponse {
	resp := MessageResponse{
		ID:        m.ID,
		Author:    m.Author,
		System:    m.System,
		Kind:      string(m.Kind),
		Text:      m.Text,
		Timestamp: m.CreatedAt,
		Edited:    m.Edited,
		EditedAt:  m.EditedAt,
		Pinned:    m.Pinned,
		SeenBy:    m.SeenBy,
	}
	if m.Attachment != nil {
		resp.FileName = m.Attachment.FileName
		resp.FileType = m.Attachment.MimeType
	}
	return resp
}
