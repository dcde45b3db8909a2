package activity

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
)

// ActivityPort is the activity view used by the HTTP API.
type ActivityPort interface {
	Summary(ctx context.Context) (Summary, error)
	RoomActivity(ctx context.Context, roomID string) (RoomActivity, error)
}

// ActivityAdapter implements ActivityPort using the service container.
type ActivityAdapter struct {
	container mono.ServiceContainer
}

// NewActivityAdapter creates a new ActivityAdapter.
func NewActivityAdapter(container mono.ServiceContainer) ActivityPort {
	if container == nil {
		panic("activity: ServiceContainer is nil")
	}
	return &ActivityAdapter{container: container}
}

// Summary returns totals for every room.
func (a *ActivityAdapter) Summary(ctx context.Context) (Summary, error) {
	req := GetSummaryRequest{}
	var resp GetSummaryResponse
	if err := helper.CallRequestReplyService(
		ctx,
		a.container,
		ServiceGetSummary,
		json.Marshal,
		json.Unmarshal,
		&req,
		&resp,
	); err != nil {
		return Summary{}, fmt.Errorf("failed to get activity summary: %w", err)
	}
	return resp.Summary, nil
}

// RoomActivity returns ErrNoActivity for rooms never seen.
func (a *ActivityAdapter) RoomActivity(ctx context.Context, roomID string) (RoomActivity, error) {
	req := GetRoomActivityRequest{RoomID: roomID}
	var resp GetRoomActivityResponse
	if err := helper.CallRequestReplyService(
		ctx,
		a.container,
		ServiceGetRoomActivity,
		json.Marshal,
		json.Unmarshal,
		&req,
		&resp,
	); err != nil {
		return RoomActivity{}, fmt.Errorf("failed to get room activity: %w", err)
	}
	if !resp.Found {
		return RoomActivity{}, ErrNoActivity
	}
	return resp.Activity, nil
}
