// Package schedule manages the weekly access windows of persons per room.
package schedule

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/your-org/roomgate/internal/models"
)

var (
	ErrOvernightWindow = errors.New("schedule window must not wrap past midnight")
	ErrInvalidDay      = errors.New("day of week must be between 0 (Mon) and 6 (Sun)")
	ErrInvalidTime     = errors.New("time of day out of range")
	ErrNoDays          = errors.New("at least one weekday is required")
	ErrMissingSubject  = errors.New("person and room are required")
	ErrEntryNotFound   = errors.New("schedule entry not found")
)

// Repository is the relational persistence used by Service. Writers rely on
// the store's own transactions; Service adds no locking.
type Repository interface {
	InsertScheduleEntries(ctx context.Context, entries []models.ScheduleEntry) ([]models.ScheduleEntry, error)
	// UpdateScheduleEntry returns false when no row has the entry's id.
	UpdateScheduleEntry(ctx context.Context, e models.ScheduleEntry) (bool, error)
	DeleteScheduleEntry(ctx context.Context, id int64) (bool, error)
	ListScheduleEntries(ctx context.Context, personID string) ([]models.ScheduleEntry, error)
	ScheduleCovers(ctx context.Context, personID, roomName string, day int, tod models.TimeOfDay) (bool, error)
}

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// BulkAdd creates one entry per weekday in days. Existing entries are never
// merged or deduplicated. Duplicate weekdays within days collapse to one.
func (s *Service) BulkAdd(ctx context.Context, personID, roomName string, start, end models.TimeOfDay, days []int) ([]models.ScheduleEntry, error) {
	if len(days) == 0 {
		return nil, ErrNoDays
	}

	seen := make(map[int]bool, len(days))
	entries := make([]models.ScheduleEntry, 0, len(days))
	for _, d := range days {
		if seen[d] {
			continue
		}
		seen[d] = true
		e := models.ScheduleEntry{PersonID: personID, RoomName: roomName, DayOfWeek: d, Start: start, End: end}
		if err := Validate(e); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}

	created, err := s.repo.InsertScheduleEntries(ctx, entries)
	if err != nil {
		return nil, fmt.Errorf("insert schedule entries: %w", err)
	}
	slog.Info("schedule entries added", "person", personID, "room", roomName, "count", len(created))
	return created, nil
}

// Edit replaces every field of the entry identified by e.ID.
func (s *Service) Edit(ctx context.Context, e models.ScheduleEntry) error {
	if err := Validate(e); err != nil {
		return err
	}
	ok, err := s.repo.UpdateScheduleEntry(ctx, e)
	if err != nil {
		return fmt.Errorf("update schedule entry: %w", err)
	}
	if !ok {
		return ErrEntryNotFound
	}
	slog.Info("schedule entry updated", "id", e.ID, "person", e.PersonID, "room", e.RoomName)
	return nil
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	ok, err := s.repo.DeleteScheduleEntry(ctx, id)
	if err != nil {
		return fmt.Errorf("delete schedule entry: %w", err)
	}
	if !ok {
		return ErrEntryNotFound
	}
	slog.Info("schedule entry deleted", "id", id)
	return nil
}

// ListForPerson returns the person's entries ordered by room, day and start.
func (s *Service) ListForPerson(ctx context.Context, personID string) ([]models.ScheduleEntry, error) {
	entries, err := s.repo.ListScheduleEntries(ctx, personID)
	if err != nil {
		return nil, fmt.Errorf("list schedule entries: %w", err)
	}
	return entries, nil
}

// Covers reports whether any entry admits the person to the room at the
// given weekday and time of day. It always queries the repository.
func (s *Service) Covers(ctx context.Context, personID, roomName string, day int, tod models.TimeOfDay) (bool, error) {
	ok, err := s.repo.ScheduleCovers(ctx, personID, roomName, day, tod)
	if err != nil {
		return false, fmt.Errorf("query schedule: %w", err)
	}
	return ok, nil
}

// Validate checks a single entry's invariants.
func Validate(e models.ScheduleEntry) error {
	if e.PersonID == "" || e.RoomName == "" {
		return ErrMissingSubject
	}
	if e.DayOfWeek < 0 || e.DayOfWeek > 6 {
		return fmt.Errorf("%w: %d", ErrInvalidDay, e.DayOfWeek)
	}
	if !e.Start.Valid() || !e.End.Valid() {
		return ErrInvalidTime
	}
	if e.Start > e.End {
		return fmt.Errorf("%w: %s > %s", ErrOvernightWindow, e.Start, e.End)
	}
	return nil
}
