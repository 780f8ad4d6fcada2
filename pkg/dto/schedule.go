package dto

// BulkScheduleRequest grants one window on several weekdays (Monday=0).
// Times are "HH:MM" or "HH:MM:SS".
type BulkScheduleRequest struct {
	RoomName string `json:"room_name" binding:"required"`
	Start    string `json:"start_time" binding:"required"`
	End      string `json:"end_time" binding:"required"`
	Days     []int  `json:"days" binding:"required,min=1"`
}

// EditScheduleRequest replaces every field of one entry.
type EditScheduleRequest struct {
	PersonID  string `json:"person_id" binding:"required"`
	RoomName  string `json:"room_name" binding:"required"`
	DayOfWeek *int   `json:"day_of_week" binding:"required"`
	Start     string `json:"start_time" binding:"required"`
	End       string `json:"end_time" binding:"required"`
}

type ScheduleEntryResponse struct {
	ID        int64  `json:"id"`
	PersonID  string `json:"person_id"`
	RoomName  string `json:"room_name"`
	DayOfWeek int    `json:"day_of_week"`
	Day       string `json:"day"`
	Start     string `json:"start_time"`
	End       string `json:"end_time"`
}
