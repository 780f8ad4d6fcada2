package models

import "time"

type Person struct {
	ID             string     `json:"id" db:"id"`
	Name           string     `json:"name" db:"name"`
	AccessLevel    int        `json:"access_level" db:"access_level"`
	LastAttendance *time.Time `json:"last_attendance_time,omitempty" db:"last_attendance_time"`
	CreatedAt      time.Time  `json:"created_at" db:"created_at"`
}

type Room struct {
	Name           string `json:"room_name" db:"room_name"`
	MinAccessLevel int    `json:"min_access_level" db:"min_access_level"`
}

// FaceEmbedding is one enrollment sample of a person. Embedding is only
// populated when the caller asked for vectors.
type FaceEmbedding struct {
	ID        int64     `json:"id" db:"id"`
	PersonID  string    `json:"person_id" db:"person_id"`
	Embedding []float32 `json:"-" db:"embedding"`
	Quality   float32   `json:"quality" db:"quality"`
	SourceKey string    `json:"source_key" db:"source_key"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Face is the best face found in one image.
type Face struct {
	BBox       [4]float32 // x1, y1, x2, y2 in pixels
	Confidence float32
	Embedding  []float32
}
