package dto

type CreatePersonRequest struct {
	Name        string `json:"name" binding:"required"`
	AccessLevel int    `json:"access_level" binding:"min=0"`
}

// UpdatePersonRequest changes only the fields that are present.
type UpdatePersonRequest struct {
	Name        *string `json:"name,omitempty" binding:"omitempty,min=1"`
	AccessLevel *int    `json:"access_level,omitempty" binding:"omitempty,min=0"`
}

type PersonResponse struct {
	ID             string  `json:"id"`
	Name           string  `json:"name"`
	AccessLevel    int     `json:"access_level"`
	LastAttendance *string `json:"last_attendance_time,omitempty"`
	FaceCount      int     `json:"face_count"`
	CreatedAt      string  `json:"created_at"`
}

type FaceEmbeddingResponse struct {
	ID        int64   `json:"id"`
	PersonID  string  `json:"person_id"`
	Quality   float32 `json:"quality"`
	SourceKey string  `json:"source_key"`
	NPYKey    string  `json:"npy_key,omitempty"`
	CreatedAt string  `json:"created_at"`
}

type RoomRequest struct {
	MinAccessLevel int `json:"min_access_level" binding:"min=0"`
}

type RoomResponse struct {
	Name           string `json:"room_name"`
	MinAccessLevel int    `json:"min_access_level"`
}
