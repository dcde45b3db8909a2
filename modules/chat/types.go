package chat

import (
	"errors"
	"strings"
	"unicode/utf8"

	domain "github.com/example/chat-relay-demo/domain/chat"
)

// Fallback identity for connections that never sent a usable name or room.
const (
	DefaultUsername = "Anonymous"
	DefaultRoom     = "General"
)

// Validation constants
const (
	MaxUsernameLength  = 50
	MaxRoomNameLength  = 100
	MaxMessageLength   = 5000
	MaxMessageIDLength = 64
	MaxEmojiBytes      = 32
	MaxFileNameLength  = 255
)

// Validation errors
var (
	ErrMessageEmpty     = errors.New("message content cannot be empty")
	ErrMessageTooLong   = errors.New("message exceeds maximum length")
	ErrMessageInvalid   = errors.New("message contains invalid characters")
	ErrMessageIDInvalid = errors.New("message id is malformed")
	ErrEmojiInvalid     = errors.New("reaction emoji is empty or too long")
	ErrAttachmentEmpty  = errors.New("attachment has no data")
	ErrRoomNotFound     = errors.New("room not found")
)

// Service names registered in the chat module's service container.
const (
	ServiceListRooms  = "list-rooms"
	ServiceGetRoom    = "get-room"
	ServiceGetHistory = "get-history"
	ServiceGetMembers = "get-members"
)

// NormalizeUsername trims a requested display name and falls back to
// DefaultUsername when nothing usable remains.
func NormalizeUsername(name string) string {
	return normalize(name, MaxUsernameLength, DefaultUsername)
}

// NormalizeRoom trims a requested room id and falls back to DefaultRoom.
func NormalizeRoom(room string) string {
	return normalize(room, MaxRoomNameLength, DefaultRoom)
}

func normalize(s string, maxRunes int, fallback string) string {
	s = strings.TrimSpace(strings.ToValidUTF8(s, ""))
	if s == "" {
		return fallback
	}
	if utf8.RuneCountInString(s) > maxRunes {
		s = strings.TrimSpace(string([]rune(s)[:maxRunes]))
	}
	return s
}

// ValidateMessage validates text content for a new or edited message.
func ValidateMessage(content string) error {
	if !utf8.ValidString(content) {
		return ErrMessageInvalid
	}
	if strings.TrimSpace(content) == "" {
		return ErrMessageEmpty
	}
	if utf8.RuneCountInString(content) > MaxMessageLength {
		return ErrMessageTooLong
	}
	return nil
}

// ValidateMessageID accepts ids made of letters, digits, '-' and '_'.
func ValidateMessageID(id string) error {
	if id == "" || len(id) > MaxMessageIDLength {
		return ErrMessageIDInvalid
	}
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
		default:
			return ErrMessageIDInvalid
		}
	}
	return nil
}

// ValidateEmoji validates a reaction.
func ValidateEmoji(emoji string) error {
	if strings.TrimSpace(emoji) == "" || len(emoji) > MaxEmojiBytes || !utf8.ValidString(emoji) {
		return ErrEmojiInvalid
	}
	return nil
}

// ValidateAttachment validates a file or audio payload.
func ValidateAttachment(a domain.Attachment) error {
	if a.Data == "" {
		return ErrAttachmentEmpty
	}
	return nil
}

// ListRoomsRequest is the request for the list-rooms service.
type ListRoomsRequest struct{}

// ListRoomsResponse is the response for the list-rooms service.
type ListRoomsResponse struct {
	Rooms []domain.RoomSummary `json:"rooms"`
}

// GetRoomRequest is the request for the get-room service.
type GetRoomRequest struct {
	RoomID string `json:"room_id"`
}

// GetRoomResponse is the response for the get-room service. Room is nil when
// the room is not active.
type GetRoomResponse struct {
	Room *domain.RoomSummary `json:"room,omitempty"`
}

// GetHistoryRequest is the request for the get-history service.
type GetHistoryRequest struct {
	RoomID string `json:"room_id"`
	Limit  int    `json:"limit,omitempty"`
}

// GetHistoryResponse is the response for the get-history service.
type GetHistoryResponse struct {
	RoomID   string           `json:"room_id"`
	Messages []domain.Message `json:"messages"`
	Total    int              `json:"total"`
}

// GetMembersRequest is the request for the get-members service.
type GetMembersRequest struct {
	RoomID string `json:"room_id"`
}

// GetMembersResponse is the response for the get-members service.
type GetMembersResponse struct {
	RoomID  string   `json:"room_id"`
	Members []string `json:"members"`
}
