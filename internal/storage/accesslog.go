package storage

import (
	"context"
	"fmt"

	"github.com/your-org/roomgate/internal/models"
)

// RecordAccess appends one audit row.
func (s *PostgresStore) RecordAccess(ctx context.Context, e models.AccessLogEntry) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO access_log (timestamp, person_id, room_name, result, reason, distance)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		e.Timestamp, e.PersonID, e.RoomName, string(e.Result), e.Reason, e.Distance)
	if err != nil {
		return fmt.Errorf("record access: %w", err)
	}
	return nil
}

// QueryAccessLog returns a page of audit rows, newest first, and the total
// number of rows matching the filter.
func (s *PostgresStore) QueryAccessLog(ctx context.Context, f models.AccessLogFilter) ([]models.AccessLogEntry, int, error) {
	if f.Limit <= 0 {
		f.Limit = 50
	}
	if f.Limit > 500 {
		f.Limit = 500
	}

	where := "WHERE TRUE"
	var args []any
	add := func(cond string, v any) {
		args = append(args, v)
		where += fmt.Sprintf(" AND "+cond, len(args))
	}
	if f.RoomName != "" {
		add("room_name = $%d", f.RoomName)
	}
	if f.PersonID != "" {
		add("person_id = $%d", f.PersonID)
	}
	if f.From != nil {
		add("timestamp >= $%d", *f.From)
	}
	if f.To != nil {
		add("timestamp <= $%d", *f.To)
	}

	var total int
	if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM access_log "+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count access log: %w", err)
	}

	query := fmt.Sprintf(
		`SELECT id, timestamp, person_id, room_name, result, reason, distance
		 FROM access_log %s ORDER BY timestamp DESC, id DESC LIMIT $%d OFFSET $%d`,
		where, len(args)+1, len(args)+2)
	args = append(args, f.Limit, f.Offset)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("query access log: %w", err)
	}
	defer rows.Close()

	var entries []models.AccessLogEntry
	for rows.Next() {
		var (
			e      models.AccessLogEntry
			result string
		)
		if err := rows.Scan(&e.ID, &e.Timestamp, &e.PersonID, &e.RoomName, &result, &e.Reason, &e.Distance); err != nil {
			return nil, 0, fmt.Errorf("scan access log: %w", err)
		}
		e.Result = models.AccessResult(result)
		entries = append(entries, e)
	}
	return entries, total, rows.Err()
}
