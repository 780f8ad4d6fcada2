// Package access decides whether an identified person may enter a room.
package access

import (
	"context"
	"log/slog"
	"time"

	"github.com/your-org/roomgate/internal/models"
)

// DefaultAdminLevel is the access level at which schedules are bypassed.
const DefaultAdminLevel = 3

// Directory looks up persons and rooms. A missing row is (nil, nil).
type Directory interface {
	GetPerson(ctx context.Context, id string) (*models.Person, error)
	GetRoom(ctx context.Context, name string) (*models.Room, error)
}

// ScheduleChecker answers whether any schedule entry covers a moment.
type ScheduleChecker interface {
	Covers(ctx context.Context, personID, roomName string, day int, tod models.TimeOfDay) (bool, error)
}

// Evaluator applies the access rules. It holds no schedule state: every
// call re-queries the store so administrative edits apply immediately.
type Evaluator struct {
	dir        Directory
	schedules  ScheduleChecker
	adminLevel int
	loc        *time.Location
}

type Option func(*Evaluator)

// WithAdminLevel overrides DefaultAdminLevel.
func WithAdminLevel(level int) Option {
	return func(e *Evaluator) { e.adminLevel = level }
}

// WithLocation sets the zone in which weekday and time of day are read.
func WithLocation(loc *time.Location) Option {
	return func(e *Evaluator) { e.loc = loc }
}

func NewEvaluator(dir Directory, schedules ScheduleChecker, opts ...Option) *Evaluator {
	e := &Evaluator{
		dir:        dir,
		schedules:  schedules,
		adminLevel: DefaultAdminLevel,
		loc:        time.Local,
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Authorize evaluates, in order: person lookup, admin override, room lookup,
// level check, weekly schedule. The first applicable rule decides. Store
// failures deny with ReasonStoreError.
func (e *Evaluator) Authorize(ctx context.Context, personID, roomName string, at time.Time) Decision {
	person, err := e.dir.GetPerson(ctx, personID)
	if err != nil {
		return e.storeError("get person", err, personID, roomName)
	}
	if person == nil {
		return deny(ReasonUnknownPerson)
	}

	if person.AccessLevel >= e.adminLevel {
		return grant(ReasonAdminOverride)
	}

	room, err := e.dir.GetRoom(ctx, roomName)
	if err != nil {
		return e.storeError("get room", err, personID, roomName)
	}
	if room == nil {
		return deny(ReasonUnknownRoom)
	}

	if person.AccessLevel < room.MinAccessLevel {
		return deny(ReasonLevelTooLow)
	}

	local := at.In(e.loc)
	ok, err := e.schedules.Covers(ctx, personID, roomName, models.Weekday(local), models.TimeOfDayOf(local))
	if err != nil {
		return e.storeError("check schedule", err, personID, roomName)
	}
	if ok {
		return grant(ReasonInSchedule)
	}
	return deny(ReasonOutOfSchedule)
}

func (e *Evaluator) storeError(op string, err error, personID, roomName string) Decision {
	slog.Error("authorize: "+op, "error", err, "person", personID, "room", roomName)
	return deny(ReasonStoreError)
}
