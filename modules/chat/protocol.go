package chat

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	domain "github.com/example/chat-relay-demo/domain/chat"
)

// Inbound event names.
const (
	EventJoinRoom      = "joinRoom"
	EventChatMessage   = "chatMessage"
	EventTyping        = "typing"
	EventFileUpload    = "fileUpload"
	EventAudioMessage  = "audioMessage"
	EventEditMessage   = "editMessage"
	EventDeleteMessage = "deleteMessage"
	EventPinMessage    = "pinMessage"
	EventSeenMessage   = "seenMessage"
	EventAddReaction   = "addReaction"
)

// Outbound event names. typing is used in both directions.
const (
	EventMessage        = "message"
	EventMessageHistory = "messageHistory"
	EventRoomUsers      = "roomUsers"
	EventMessageEdited  = "messageEdited"
	EventMessageDeleted = "messageDeleted"
	EventMessagePinned  = "messagePinned"
	EventMessageSeen    = "messageSeen"
	EventReactionAdded  = "reactionAdded"
	EventError          = "error"
)

// ClockFormat is the wall-clock format shown next to each message.
const ClockFormat = "15:04"

// Protocol errors
var (
	ErrUnknownEvent     = errors.New("unknown event")
	ErrMalformedPayload = errors.New("malformed payload")
	ErrMalformedFrame   = errors.New("malformed frame")
)

// Envelope is an outbound named event.
type Envelope struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

// InboundEnvelope is a named event received from a client.
type InboundEnvelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// DecodeEnvelope parses a client frame.
func DecodeEnvelope(frame []byte) (InboundEnvelope, error) {
	var env InboundEnvelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return InboundEnvelope{}, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	if env.Event == "" {
		return InboundEnvelope{}, fmt.Errorf("%w: missing event name", ErrMalformedFrame)
	}
	return env, nil
}

// JoinRoomPayload is the joinRoom request.
type JoinRoomPayload struct {
	Name string `json:"name"`
	Room string `json:"room"`
}

// ChatMessagePayload is a chatMessage request. It decodes from a bare string,
// from {"text","id"} or from the legacy {"msg"} object.
type ChatMessagePayload struct {
	Text string
	ID   string
}

func (p *ChatMessagePayload) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		p.Text = s
		return nil
	}
	var obj struct {
		Text *string `json:"text"`
		Msg  string  `json:"msg"`
		ID   string  `json:"id"`
	}
	if err := json.Unmarshal(b, &obj); err != nil {
		return err
	}
	p.ID = obj.ID
	if obj.Text != nil {
		p.Text = *obj.Text
	} else {
		p.Text = obj.Msg
	}
	return nil
}

// TypingPayload decodes from a bool, from {"isTyping"} or from a legacy
// status string where any non-empty text means typing.
type TypingPayload struct {
	IsTyping bool
}

func (p *TypingPayload) UnmarshalJSON(b []byte) error {
	var flag bool
	if err := json.Unmarshal(b, &flag); err == nil {
		p.IsTyping = flag
		return nil
	}
	var status string
	if err := json.Unmarshal(b, &status); err == nil {
		p.IsTyping = status != ""
		return nil
	}
	var obj struct {
		IsTyping bool `json:"isTyping"`
	}
	if err := json.Unmarshal(b, &obj); err != nil {
		return err
	}
	p.IsTyping = obj.IsTyping
	return nil
}

// FilePayload carries a fileUpload or audioMessage body.
type FilePayload struct {
	FileName string `json:"fileName"`
	FileData string `json:"fileData"`
	FileType string `json:"fileType"`
}

// Attachment converts the payload into the stored form.
func (p FilePayload) Attachment() domain.Attachment {
	return domain.Attachment{FileName: p.FileName, MimeType: p.FileType, Data: p.FileData}
}

// EditMessagePayload is an editMessage request.
type EditMessagePayload struct {
	MessageID string `json:"messageId"`
	NewText   string `json:"newText"`
}

// MessageRefPayload names a message; it also decodes from a bare id string.
type MessageRefPayload struct {
	MessageID string `json:"messageId"`
}

func (p *MessageRefPayload) UnmarshalJSON(b []byte) error {
	var id string
	if err := json.Unmarshal(b, &id); err == nil {
		p.MessageID = id
		return nil
	}
	type plain MessageRefPayload
	return json.Unmarshal(b, (*plain)(p))
}

// ReactionPayload is an addReaction request.
type ReactionPayload struct {
	MessageID string `json:"messageId"`
	Emoji     string `json:"emoji"`
}

// MessageView is the outbound representation of a logged message.
type MessageView struct {
	ID        string    `json:"id"`
	User      string    `json:"user"`
	Text      string    `json:"text,omitempty"`
	Time      string    `json:"time"`
	Timestamp time.Time `json:"timestamp"`
	Kind      string    `json:"kind"`
	FileName  string    `json:"fileName,omitempty"`
	FileData  string    `json:"fileData,omitempty"`
	FileType  string    `json:"fileType,omitempty"`
	Edited    bool      `json:"edited,omitempty"`
	Pinned    bool      `json:"pinned,omitempty"`
}

// NewMessageView renders a message for clients.
func NewMessageView(m domain.Message) MessageView {
	v := MessageView{
		ID:        m.ID,
		User:      m.Author,
		Text:      m.Text,
		Time:      m.CreatedAt.Format(ClockFormat),
		Timestamp: m.CreatedAt,
		Kind:      string(m.Kind),
		Edited:    m.Edited,
		Pinned:    m.Pinned,
	}
	if m.Attachment != nil {
		v.FileName = m.Attachment.FileName
		v.FileData = m.Attachment.Data
		v.FileType = m.Attachment.MimeType
	}
	return v
}

// HistoryPayload is the messageHistory body.
type HistoryPayload struct {
	Room     string        `json:"room"`
	Messages []MessageView `json:"messages"`
}

// UserView is one entry of a roomUsers list.
type UserView struct {
	Name string `json:"name"`
}

// RoomUsersPayload is the roomUsers body.
type RoomUsersPayload struct {
	Room  string     `json:"room"`
	Users []UserView `json:"users"`
}

// TypingNotice is the outbound typing body. Empty text clears the indicator.
type TypingNotice struct {
	Text string `json:"text"`
}

// MessageEditedPayload is the messageEdited body.
type MessageEditedPayload struct {
	MessageID string `json:"messageId"`
	NewText   string `json:"newText"`
}

// MessageDeletedPayload is the messageDeleted body.
type MessageDeletedPayload struct {
	MessageID string `json:"messageId"`
}

// MessagePinnedPayload is the messagePinned body.
type MessagePinnedPayload struct {
	Message MessageView `json:"message"`
}

// MessageSeenPayload is the messageSeen body.
type MessageSeenPayload struct {
	MessageID string `json:"messageId"`
	By        string `json:"by,omitempty"`
}

// ReactionAddedPayload is the reactionAdded body.
type ReactionAddedPayload struct {
	MessageID string `json:"messageId"`
	Emoji     string `json:"emoji"`
	User      string `json:"user"`
}

// ErrorPayload is a transport-level notice sent to a single connection.
type ErrorPayload struct {
	Message string `json:"message"`
}

func decodePayload(data json.RawMessage, v any) error {
	if len(bytes.TrimSpace(data)) == 0 {
		return fmt.Errorf("%w: empty", ErrMalformedPayload)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	return nil
}
