package domain

import "encoding/json"

// Realtime event types delivered to a face_auth room.
const (
	EventFaceAuthStatus   = "face_auth_status"
	EventFaceAuthComplete = "face_auth_complete"
)

// Status values carried by face_auth_status events.
const (
	StatusNotificationsSent = "notifications_sent"
	StatusVerifying         = "verifying"
)

const roomPrefix = "face_auth_"

// RoomName returns the realtime room for a face request.
func RoomName(requestID string) string {
	return roomPrefix + requestID
}

// Event is one message fanned out to a room.
type Event struct {
	Type    string          `json:"type"`
	Room    string          `json:"room"`
	Payload json.RawMessage `json:"payload"`
}

// FaceAuthStatusPayload is the body of a face_auth_status event.
type FaceAuthStatusPayload struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// FaceAuthCompletePayload is the body of a face_auth_complete event. Data is
// set on success, Error on failure.
type FaceAuthCompletePayload struct {
	Success bool                  `json:"success"`
	Data    *FaceAuthCompleteData `json:"data,omitempty"`
	Error   string                `json:"error,omitempty"`
}

// FaceAuthCompleteData carries the final credential to the waiting web client.
type FaceAuthCompleteData struct {
	AccessToken string  `json:"access_token"`
	User        Profile `json:"user"`
}

// NewEvent marshals payload into an Event for room.
func NewEvent(eventType, room string, payload any) (Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}
	return Event{Type: eventType, Room: room, Payload: raw}, nil
}
