package chat

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
)

// RegisterServices registers request-reply services in the service container.
func (m *Module) RegisterServices(container mono.ServiceContainer) error {
	if err := helper.RegisterTypedRequestReplyService(
		container,
		ServiceListRooms,
		json.Unmarshal,
		json.Marshal,
		m.handleListRooms,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceListRooms, err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container,
		ServiceGetRoom,
		json.Unmarshal,
		json.Marshal,
		m.handleGetRoom,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceGetRoom, err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container,
		ServiceGetHistory,
		json.Unmarshal,
		json.Marshal,
		m.handleGetHistory,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceGetHistory, err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container,
		ServiceGetMembers,
		json.Unmarshal,
		json.Marshal,
		m.handleGetMembers,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceGetMembers, err)
	}

	m.logger.Info("Registered chat services",
		"services", []string{ServiceListRooms, ServiceGetRoom, ServiceGetHistory, ServiceGetMembers})
	return nil
}

func (m *Module) handleListRooms(_ context.Context, _ ListRoomsRequest, _ *mono.Msg) (ListRoomsResponse, error) {
	return ListRoomsResponse{Rooms: m.relay.Rooms()}, nil
}

func (m *Module) handleGetRoom(_ context.Context, req GetRoomRequest, _ *mono.Msg) (GetRoomResponse, error) {
	room, ok := m.relay.Room(req.RoomID)
	if !ok {
		return GetRoomResponse{}, nil
	}
	return GetRoomResponse{Room: &room}, nil
}

func (m *Module) handleGetHistory(_ context.Context, req GetHistoryRequest, _ *mono.Msg) (GetHistoryResponse, error) {
	if _, ok := m.relay.Room(req.RoomID); !ok {
		return GetHistoryResponse{}, fmt.Errorf("%w: %s", ErrRoomNotFound, req.RoomID)
	}
	msgs := m.relay.History(req.RoomID, req.Limit)
	return GetHistoryResponse{RoomID: req.RoomID, Messages: msgs, Total: len(msgs)}, nil
}

func (m *Module) handleGetMembers(_ context.Context, req GetMembersRequest, _ *mono.Msg) (GetMembersResponse, error) {
	members := m.relay.MembersOf(req.RoomID)
	if members == nil {
		members = []string{}
	}
	return GetMembersResponse{RoomID: req.RoomID, Members: members}, nil
}
