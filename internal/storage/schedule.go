package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/your-org/roomgate/internal/models"
)

func pgTime(t models.TimeOfDay) pgtype.Time {
	return pgtype.Time{Microseconds: int64(t), Valid: true}
}

func timeOfDay(t pgtype.Time) models.TimeOfDay {
	return models.TimeOfDay(t.Microseconds)
}

const scheduleColumns = `id, person_id, room_name, day_of_week, start_time, end_time`

func scanScheduleEntry(row pgx.Row) (models.ScheduleEntry, error) {
	var (
		e          models.ScheduleEntry
		start, end pgtype.Time
	)
	if err := row.Scan(&e.ID, &e.PersonID, &e.RoomName, &e.DayOfWeek, &start, &end); err != nil {
		return e, err
	}
	e.Start, e.End = timeOfDay(start), timeOfDay(end)
	return e, nil
}

// InsertScheduleEntries inserts all entries in one transaction.
func (s *PostgresStore) InsertScheduleEntries(ctx context.Context, entries []models.ScheduleEntry) ([]models.ScheduleEntry, error) {
	out := make([]models.ScheduleEntry, 0, len(entries))
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		for _, e := range entries {
			created, err := scanScheduleEntry(tx.QueryRow(ctx,
				`INSERT INTO access_schedule (person_id, room_name, day_of_week, start_time, end_time)
				 VALUES ($1, $2, $3, $4, $5) RETURNING `+scheduleColumns,
				e.PersonID, e.RoomName, e.DayOfWeek, pgTime(e.Start), pgTime(e.End),
			))
			if err != nil {
				return err
			}
			out = append(out, created)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("insert schedule entries: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) UpdateScheduleEntry(ctx context.Context, e models.ScheduleEntry) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE access_schedule
		 SET person_id = $2, room_name = $3, day_of_week = $4, start_time = $5, end_time = $6
		 WHERE id = $1`,
		e.ID, e.PersonID, e.RoomName, e.DayOfWeek, pgTime(e.Start), pgTime(e.End))
	if err != nil {
		return false, fmt.Errorf("update schedule entry: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *PostgresStore) DeleteScheduleEntry(ctx context.Context, id int64) (bool, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM access_schedule WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("delete schedule entry: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *PostgresStore) ListScheduleEntries(ctx context.Context, personID string) ([]models.ScheduleEntry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+scheduleColumns+` FROM access_schedule
		 WHERE person_id = $1 ORDER BY room_name, day_of_week, start_time, id`, personID)
	if err != nil {
		return nil, fmt.Errorf("list schedule entries: %w", err)
	}
	defer rows.Close()

	var entries []models.ScheduleEntry
	for rows.Next() {
		e, err := scanScheduleEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan schedule entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// ScheduleCovers reports whether any entry admits the person to the room on
// day at tod. Both bounds are inclusive.
func (s *PostgresStore) ScheduleCovers(ctx context.Context, personID, roomName string, day int, tod models.TimeOfDay) (bool, error) {
	var ok bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (
			SELECT 1 FROM access_schedule
			WHERE person_id = $1 AND room_name = $2 AND day_of_week = $3
			  AND start_time <= $4 AND $4 <= end_time
		)`,
		personID, roomName, day, pgTime(tod),
	).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("schedule covers: %w", err)
	}
	return ok, nil
}
