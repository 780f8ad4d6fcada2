package dto

import "encoding/json"

type AccessLogResponse struct {
	ID        int64    `json:"id"`
	Timestamp string   `json:"timestamp"`
	PersonID  *string  `json:"person_id,omitempty"`
	RoomName  string   `json:"room_name"`
	Result    string   `json:"result"`
	Reason    string   `json:"reason"`
	Distance  *float64 `json:"distance,omitempty"`
}

// WSEvent is pushed to WebSocket subscribers. Type is "outcome" or
// "attendance"; Data is the published payload unchanged.
type WSEvent struct {
	Type string          `json:"type"`
	Room string          `json:"room"`
	Data json.RawMessage `json:"data"`
}
