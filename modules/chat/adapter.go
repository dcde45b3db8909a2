package chat

import (
	"context"
	"encoding/json"
	"fmt"

	domain "github.com/example/chat-relay-demo/domain/chat"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
)

// ChatPort is the read-only view of the chat module used by the HTTP API.
type ChatPort interface {
	ListRooms(ctx context.Context) ([]domain.RoomSummary, error)
	GetRoom(ctx context.Context, roomID string) (*domain.RoomSummary, error)
	GetHistory(ctx context.Context, roomID string, limit int) ([]domain.Message, error)
	GetRoomMembers(ctx context.Context, roomID string) ([]string, error)
}

// ChatAdapter implements ChatPort using the service container.
type ChatAdapter struct {
	container mono.ServiceContainer
}

// NewChatAdapter creates a new ChatAdapter.
func NewChatAdapter(container mono.ServiceContainer) ChatPort {
	if container == nil {
		panic("chat: ServiceContainer is nil")
	}
	return &ChatAdapter{container: container}
}

// ListRooms returns all active rooms.
func (a *ChatAdapter) ListRooms(ctx context.Context) ([]domain.RoomSummary, error) {
	req := ListRoomsRequest{}
	var resp ListRoomsResponse
	if err := helper.CallRequestReplyService(
		ctx,
		a.container,
		ServiceListRooms,
		json.Marshal,
		json.Unmarshal,
		&req,
		&resp,
	); err != nil {
		return nil, fmt.Errorf("failed to list rooms: %w", err)
	}
	return resp.Rooms, nil
}

// GetRoom returns ErrRoomNotFound when the room is not active.
func (a *ChatAdapter) GetRoom(ctx context.Context, roomID string) (*domain.RoomSummary, error) {
	req := GetRoomRequest{RoomID: roomID}
	var resp GetRoomResponse
	if err := helper.CallRequestReplyService(
		ctx,
		a.container,
		ServiceGetRoom,
		json.Marshal,
		json.Unmarshal,
		&req,
		&resp,
	); err != nil {
		return nil, fmt.Errorf("failed to get room: %w", err)
	}
	if resp.Room == nil {
		return nil, ErrRoomNotFound
	}
	return resp.Room, nil
}

// GetHistory retrieves the newest limit messages of a room.
func (a *ChatAdapter) GetHistory(ctx context.Context, roomID string, limit int) ([]domain.Message, error) {
	req := GetHistoryRequest{RoomID: roomID, Limit: limit}
	var resp GetHistoryResponse
	if err := helper.CallRequestReplyService(
		ctx,
		a.container,
		ServiceGetHistory,
		json.Marshal,
		json.Unmarshal,
		&req,
		&resp,
	); err != nil {
		return nil, fmt.Errorf("failed to get history: %w", err)
	}
	return resp.Messages, nil
}

// GetRoomMembers returns the display names present in a room.
func (a *ChatAdapter) GetRoomMembers(ctx context.Context, roomID string) ([]string, error) {
	req := GetMembersRequest{RoomID: roomID}
	var resp GetMembersResponse
	if err := helper.CallRequestReplyService(
		ctx,
		a.container,
		ServiceGetMembers,
		json.Marshal,
		json.Unmarshal,
		&req,
		&resp,
	); err != nil {
		return nil, fmt.Errorf("failed to get room members: %w", err)
	}
	return resp.Members, nil
}
