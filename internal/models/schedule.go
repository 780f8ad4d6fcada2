package models

import (
	"fmt"
	"time"
)

// DayNames follows the Monday=0 convention used by schedule entries.
var DayNames = [7]string{"Mon", "Tue", "Wed", "Thu", "Fri", "Sat", "Sun"}

// ScheduleEntry grants a person access to a room on one weekday between
// Start and End inclusive. Start <= End always holds; windows never wrap
// past midnight.
type ScheduleEntry struct {
	ID        int64     `json:"id" db:"id"`
	PersonID  string    `json:"person_id" db:"person_id"`
	RoomName  string    `json:"room_name" db:"room_name"`
	DayOfWeek int       `json:"day_of_week" db:"day_of_week"`
	Start     TimeOfDay `json:"start_time" db:"start_time"`
	End       TimeOfDay `json:"end_time" db:"end_time"`
}

// Covers reports whether the entry admits the given weekday and time of day.
func (e ScheduleEntry) Covers(day int, tod TimeOfDay) bool {
	return e.DayOfWeek == day && e.Start <= tod && tod <= e.End
}

// Weekday maps t onto the Monday=0 ... Sunday=6 convention.
func Weekday(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}

// TimeOfDay is a wall-clock time within a day, in microseconds since
// midnight. Schedule bounds carry whole seconds; instants keep their
// sub-second part so a bound of 17:00:00 excludes 17:00:00.5.
type TimeOfDay int64

const (
	microsPerSecond = 1_000_000
	// EndOfDay is the last schedulable second, 23:59:59.
	EndOfDay TimeOfDay = (24*60*60 - 1) * microsPerSecond
)

// NewTimeOfDay builds a TimeOfDay, returning an error for out-of-range parts.
func NewTimeOfDay(hour, minute, second int) (TimeOfDay, error) {
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 || second < 0 || second > 59 {
		return 0, fmt.Errorf("invalid time of day %02d:%02d:%02d", hour, minute, second)
	}
	return TimeOfDay(hour*3600+minute*60+second) * microsPerSecond, nil
}

// TimeOfDayOf returns the wall-clock time of t at microsecond precision.
func TimeOfDayOf(t time.Time) TimeOfDay {
	h, m, s := t.Clock()
	return TimeOfDay(h*3600+m*60+s)*microsPerSecond + TimeOfDay(t.Nanosecond()/1000)
}

// ParseTimeOfDay accepts "HH:MM" or "HH:MM:SS".
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	for _, layout := range []string{"15:04:05", "15:04"} {
		if t, err := time.Parse(layout, s); err == nil {
			return TimeOfDayOf(t), nil
		}
	}
	return 0, fmt.Errorf("invalid time of day %q", s)
}

func (t TimeOfDay) seconds() int { return int(t / microsPerSecond) }

func (t TimeOfDay) Hour() int { return t.seconds() / 3600 }
func (t TimeOfDay) Minute() int { return t.seconds() % 3600 / 60 }
func (t TimeOfDay) Second() int { return t.seconds() % 60 }

// Valid reports whether t is usable as a schedule bound.
func (t TimeOfDay) Valid() bool {
	return t >= 0 && t <= EndOfDay && t%microsPerSecond == 0
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d:%02d", t.Hour(), t.Minute(), t.Second())
}

// Duration returns the offset from midnight.
func (t TimeOfDay) Duration() time.Duration {
	return time.Duration(t) * time.Microsecond
}

func (t TimeOfDay) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *TimeOfDay) UnmarshalText(b []byte) error {
	v, err := ParseTimeOfDay(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}
