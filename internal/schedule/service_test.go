package schedule

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/your-org/roomgate/internal/access"
	"github.com/your-org/roomgate/internal/models"
)

type memRepo struct {
	mu      sync.Mutex
	nextID  int64
	entries map[int64]models.ScheduleEntry
	err     error
}

func newMemRepo() *memRepo {
	return &memRepo{entries: map[int64]models.ScheduleEntry{}}
}

func (r *memRepo) InsertScheduleEntries(_ context.Context, entries []models.ScheduleEntry) ([]models.ScheduleEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	out := make([]models.ScheduleEntry, 0, len(entries))
	for _, e := range entries {
		r.nextID++
		e.ID = r.nextID
		r.entries[e.ID] = e
		out = append(out, e)
	}
	return out, nil
}

func (r *memRepo) UpdateScheduleEntry(_ context.Context, e models.ScheduleEntry) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[e.ID]; !ok {
		return false, r.err
	}
	r.entries[e.ID] = e
	return true, r.err
}

func (r *memRepo) DeleteScheduleEntry(_ context.Context, id int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[id]; !ok {
		return false, r.err
	}
	delete(r.entries, id)
	return true, r.err
}

func (r *memRepo) ListScheduleEntries(_ context.Context, personID string) ([]models.ScheduleEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.ScheduleEntry
	for _, e := range r.entries {
		if e.PersonID == personID {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.RoomName != b.RoomName {
			return a.RoomName < b.RoomName
		}
		if a.DayOfWeek != b.DayOfWeek {
			return a.DayOfWeek < b.DayOfWeek
		}
		return a.Start < b.Start
	})
	return out, r.err
}

func (r *memRepo) ScheduleCovers(_ context.Context, personID, roomName string, day int, tod models.TimeOfDay) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return false, r.err
	}
	for _, e := range r.entries {
		if e.PersonID == personID && e.RoomName == roomName && e.Covers(day, tod) {
			return true, nil
		}
	}
	return false, nil
}

type staticDirectory struct {
	person *models.Person
	room   *models.Room
}

func (d staticDirectory) GetPerson(context.Context, string) (*models.Person, error) { return d.person, nil }
func (d staticDirectory) GetRoom(context.Context, string) (*models.Room, error) { return d.room, nil }

// timeOn returns a local time on the given Monday=0 weekday of a fixed week.
func timeOn(t *testing.T, day int, tod models.TimeOfDay) time.Time {
	t.Helper()
	// 2026-10-12 is a Monday
	return time.Date(2026, 10, 12+day, tod.Hour(), tod.Minute(), tod.Second(), 0, time.Local)
}

func hm(h, m int) models.TimeOfDay {
	v, _ := models.NewTimeOfDay(h, m, 0)
	return v
}

func TestBulkAdd_OneEntryPerDay(t *testing.T) {
	svc := NewService(newMemRepo())
	ctx := context.Background()

	created, err := svc.BulkAdd(ctx, "p1", "lab", hm(9, 0), hm(17, 0), []int{0, 2, 4, 2})
	require.NoError(t, err)
	require.Len(t, created, 3)
	for _, e := range created {
		assert.NotZero(t, e.ID)
		assert.Equal(t, hm(9, 0), e.Start)
		assert.Equal(t, hm(17, 0), e.End)
	}

	// overlapping windows are kept as separate entries
	_, err = svc.BulkAdd(ctx, "p1", "lab", hm(8, 0), hm(10, 0), []int{0})
	require.NoError(t, err)

	list, err := svc.ListForPerson(ctx, "p1")
	require.NoError(t, err)
	assert.Len(t, list, 4)
	assert.Equal(t, hm(8, 0), list[0].Start)
}

func TestBulkAdd_Validation(t *testing.T) {
	tests := []struct {
		name       string
		person     string
		room       string
		start, end models.TimeOfDay
		days       []int
		want       error
	}{
		{"no days", "p", "r", hm(9, 0), hm(10, 0), nil, ErrNoDays},
		{"day too large", "p", "r", hm(9, 0), hm(10, 0), []int{7}, ErrInvalidDay},
		{"negative day", "p", "r", hm(9, 0), hm(10, 0), []int{-1}, ErrInvalidDay},
		{"overnight", "p", "r", hm(22, 0), hm(6, 0), []int{1}, ErrOvernightWindow},
		{"missing room", "p", "", hm(9, 0), hm(10, 0), []int{1}, ErrMissingSubject},
		{"time out of range", "p", "r", hm(9, 0), models.EndOfDay + 1, []int{1}, ErrInvalidTime},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newMemRepo()
			_, err := NewService(repo).BulkAdd(context.Background(), tt.person, tt.room, tt.start, tt.end, tt.days)
			assert.ErrorIs(t, err, tt.want)
			assert.Empty(t, repo.entries)
		})
	}
}

func TestBulkAdd_ZeroLengthWindowAllowed(t *testing.T) {
	_, err := NewService(newMemRepo()).BulkAdd(context.Background(), "p", "r", hm(12, 0), hm(12, 0), []int{3})
	assert.NoError(t, err)
}

func TestEdit(t *testing.T) {
	svc := NewService(newMemRepo())
	ctx := context.Background()
	created, err := svc.BulkAdd(ctx, "p1", "lab", hm(9, 0), hm(17, 0), []int{0})
	require.NoError(t, err)

	e := created[0]
	e.DayOfWeek = 5
	e.RoomName = "office"
	e.End = hm(12, 0)
	require.NoError(t, svc.Edit(ctx, e))

	list, err := svc.ListForPerson(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, e, list[0])

	e.ID = 999
	assert.ErrorIs(t, svc.Edit(ctx, e), ErrEntryNotFound)

	e.ID = created[0].ID
	e.Start, e.End = hm(13, 0), hm(12, 0)
	assert.ErrorIs(t, svc.Edit(ctx, e), ErrOvernightWindow)
}

func TestDelete(t *testing.T) {
	svc := NewService(newMemRepo())
	ctx := context.Background()
	created, err := svc.BulkAdd(ctx, "p1", "lab", hm(9, 0), hm(17, 0), []int{0, 1})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, created[0].ID))
	assert.ErrorIs(t, svc.Delete(ctx, created[0].ID), ErrEntryNotFound)

	list, err := svc.ListForPerson(ctx, "p1")
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestRepositoryErrorsWrapped(t *testing.T) {
	repo := newMemRepo()
	repo.err = errors.New("db down")
	svc := NewService(repo)

	_, err := svc.BulkAdd(context.Background(), "p", "r", hm(9, 0), hm(10, 0), []int{1})
	assert.ErrorIs(t, err, repo.err)

	_, err = svc.Covers(context.Background(), "p", "r", 1, hm(9, 30))
	assert.ErrorIs(t, err, repo.err)
}

func TestService_MutationsVisibleToEvaluator(t *testing.T) {
	svc := NewService(newMemRepo())
	dir := staticDirectory{
		person: &models.Person{ID: "p1", AccessLevel: 1},
		room:   &models.Room{Name: "lab", MinAccessLevel: 1},
	}
	eval := access.NewEvaluator(dir, svc)
	ctx := context.Background()
	at := timeOn(t, 2, hm(10, 0)) // Wednesday

	assert.Equal(t, access.ReasonOutOfSchedule, eval.Authorize(ctx, "p1", "lab", at).Reason)

	created, err := svc.BulkAdd(ctx, "p1", "lab", hm(9, 0), hm(11, 0), []int{2})
	require.NoError(t, err)
	assert.Equal(t, access.ReasonInSchedule, eval.Authorize(ctx, "p1", "lab", at).Reason)

	require.NoError(t, svc.Delete(ctx, created[0].ID))
	assert.Equal(t, access.ReasonOutOfSchedule, eval.Authorize(ctx, "p1", "lab", at).Reason)
}
