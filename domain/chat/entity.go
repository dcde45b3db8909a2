package chat

import "time"

// SystemAuthor is the reserved author of room announcements.
const SystemAuthor = "System"

// Kind identifies the body of a message.
type Kind string

// Message kinds.
const (
	KindText  Kind = "text"
	KindFile  Kind = "file"
	KindAudio Kind = "audio"
)

// Attachment is an opaque file or audio payload forwarded as received.
type Attachment struct {
	FileName string `json:"file_name"`
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

// Message is an entry in a room's message log.
type Message struct {
	ID         string      `json:"id"`
	RoomID     string      `json:"room_id"`
	Author     string      `json:"author"`
	System     bool        `json:"system,omitempty"`
	Kind       Kind        `json:"kind"`
	Text       string      `json:"text,omitempty"`
	Attachment *Attachment `json:"attachment,omitempty"`
	CreatedAt  time.Time   `json:"created_at"`
	Edited     bool        `json:"edited,omitempty"`
	EditedAt   *time.Time  `json:"edited_at,omitempty"`
	Pinned     bool        `json:"pinned,omitempty"`
	SeenBy     []string    `json:"seen_by,omitempty"`
}

// Clone returns a deep copy of the message.
func (m Message) Clone() Message {
	out := m
	if m.Attachment != nil {
		a := *m.Attachment
		out.Attachment = &a
	}
	if m.EditedAt != nil {
		t := *m.EditedAt
		out.EditedAt = &t
	}
	if m.SeenBy != nil {
		out.SeenBy = append([]string(nil), m.SeenBy...)
	}
	return out
}

// HasBeenSeenBy reports whether viewer is recorded in SeenBy.
func (m Message) HasBeenSeenBy(viewer string) bool {
	for _, name := range m.SeenBy {
		if name == viewer {
			return true
		}
	}
	return false
}

// RoomSummary describes an active room.
type RoomSummary struct {
	ID          string    `json:"id"`
	Members     int       `json:"members"`
	Connections int       `json:"connections"`
	Messages    int       `json:"messages"`
	CreatedAt   time.Time `json:"created_at"`
}
