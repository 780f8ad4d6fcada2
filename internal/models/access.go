package models

import "time"

// AccessResult is the audit classification of an authorization attempt.
type AccessResult string

const (
	AccessGranted AccessResult = "granted"
	AccessDenied  AccessResult = "denied"
	AccessUnknown AccessResult = "unknown"
)

// AccessLogEntry is one append-only audit row, written once per attempt.
type AccessLogEntry struct {
	ID        int64        `json:"id" db:"id"`
	Timestamp time.Time    `json:"timestamp" db:"timestamp"`
	PersonID  *string      `json:"person_id,omitempty" db:"person_id"`
	RoomName  string       `json:"room_name" db:"room_name"`
	Result    AccessResult `json:"result" db:"result"`
	Reason    string       `json:"reason" db:"reason"`
	Distance  *float64     `json:"distance,omitempty" db:"distance"`
}

// AccessLogFilter narrows an access log query. Zero fields are ignored.
type AccessLogFilter struct {
	RoomName string
	PersonID string
	From     *time.Time
	To       *time.Time
	Limit    int
	Offset   int
}
