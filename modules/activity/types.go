package activity

import "errors"

// Service names registered by the activity module.
const (
	ServiceGetSummary      = "get-activity-summary"
	ServiceGetRoomActivity = "get-room-activity"
)

// ErrNoActivity is returned for a room that never had any activity.
var ErrNoActivity = errors.New("no activity recorded for room")

// GetSummaryRequest is the request for the get-activity-summary service.
type GetSummaryRequest struct{}

// GetSummaryResponse is the response for the get-activity-summary service.
type GetSummaryResponse struct {
	Summary Summary `json:"summary"`
}

// GetRoomActivityRequest is the request for the get-room-activity service.
type GetRoomActivityRequest struct {
	RoomID string `json:"room_id"`
}

// GetRoomActivityResponse is the response for the get-room-activity service.
type GetRoomActivityResponse struct {
	Found    bool         `json:"found"`
	Activity RoomActivity `json:"activity"`
}
