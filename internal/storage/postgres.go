package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/your-org/roomgate/internal/config"
	"github.com/your-org/roomgate/internal/models"
)

// ErrNotFound is returned by mutations addressing a missing row. Lookups
// return (nil, nil) instead.
var ErrNotFound = errors.New("not found")

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, cfg config.DatabaseConfig) (*PostgresStore, error) {
	return connect(ctx, cfg.DSN(), cfg.MaxConns)
}

func connect(ctx context.Context, dsn string, maxConns int) (*PostgresStore, error) {
	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	if maxConns > 0 {
		poolCfg.MaxConns = int32(maxConns)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// --- Persons ---

const personColumns = `id, name, access_level, last_attendance_time, created_at`

func scanPerson(row pgx.Row) (*models.Person, error) {
	p := &models.Person{}
	if err := row.Scan(&p.ID, &p.Name, &p.AccessLevel, &p.LastAttendance, &p.CreatedAt); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *PostgresStore) CreatePerson(ctx context.Context, name string, accessLevel int) (*models.Person, error) {
	p, err := scanPerson(s.pool.QueryRow(ctx,
		`INSERT INTO persons (id, name, access_level) VALUES ($1, $2, $3) RETURNING `+personColumns,
		uuid.NewString(), name, accessLevel,
	))
	if err != nil {
		return nil, fmt.Errorf("create person: %w", err)
	}
	return p, nil
}

func (s *PostgresStore) GetPerson(ctx context.Context, id string) (*models.Person, error) {
	p, err := scanPerson(s.pool.QueryRow(ctx,
		`SELECT `+personColumns+` FROM persons WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get person: %w", err)
	}
	return p, nil
}

func (s *PostgresStore) ListPersons(ctx context.Context) ([]models.Person, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+personColumns+` FROM persons ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("list persons: %w", err)
	}
	defer rows.Close()

	var persons []models.Person
	for rows.Next() {
		p, err := scanPerson(rows)
		if err != nil {
			return nil, fmt.Errorf("scan person: %w", err)
		}
		persons = append(persons, *p)
	}
	return persons, rows.Err()
}

// UpdatePerson changes the name and/or access level; nil fields are kept.
func (s *PostgresStore) UpdatePerson(ctx context.Context, id string, name *string, accessLevel *int) (*models.Person, error) {
	p, err := scanPerson(s.pool.QueryRow(ctx,
		`UPDATE persons
		 SET name = COALESCE($2, name), access_level = COALESCE($3, access_level)
		 WHERE id = $1
		 RETURNING `+personColumns,
		id, name, accessLevel,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("update person: %w", err)
	}
	return p, nil
}

func (s *PostgresStore) DeletePerson(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM persons WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete person: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("delete person %s: %w", id, ErrNotFound)
	}
	return nil
}

// TouchAttendance sets the person's last-attendance time.
func (s *PostgresStore) TouchAttendance(ctx context.Context, personID string, at time.Time) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE persons SET last_attendance_time = $2 WHERE id = $1`, personID, at)
	if err != nil {
		return fmt.Errorf("touch attendance: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("touch attendance %s: %w", personID, ErrNotFound)
	}
	return nil
}

// --- Rooms ---

func (s *PostgresStore) GetRoom(ctx context.Context, name string) (*models.Room, error) {
	r := &models.Room{}
	err := s.pool.QueryRow(ctx,
		`SELECT room_name, min_access_level FROM rooms WHERE room_name = $1`, name,
	).Scan(&r.Name, &r.MinAccessLevel)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get room: %w", err)
	}
	return r, nil
}

func (s *PostgresStore) ListRooms(ctx context.Context) ([]models.Room, error) {
	rows, err := s.pool.Query(ctx, `SELECT room_name, min_access_level FROM rooms ORDER BY room_name`)
	if err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}
	rooms, err := pgx.CollectRows(rows, pgx.RowToStructByPos[models.Room])
	if err != nil {
		return nil, fmt.Errorf("scan rooms: %w", err)
	}
	return rooms, nil
}

// UpsertRoom creates a room or changes its minimum access level.
func (s *PostgresStore) UpsertRoom(ctx context.Context, r models.Room) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO rooms (room_name, min_access_level) VALUES ($1, $2)
		 ON CONFLICT (room_name) DO UPDATE SET min_access_level = EXCLUDED.min_access_level`,
		r.Name, r.MinAccessLevel)
	if err != nil {
		return fmt.Errorf("upsert room: %w", err)
	}
	return nil
}

// --- Face Embeddings ---

func (s *PostgresStore) AddFaceEmbedding(ctx context.Context, personID string, embedding []float32, quality float32, sourceKey string) (*models.FaceEmbedding, error) {
	fe := &models.FaceEmbedding{
		PersonID:  personID,
		Embedding: embedding,
		Quality:   quality,
		SourceKey: sourceKey,
	}
	err := s.pool.QueryRow(ctx,
		`INSERT INTO face_embeddings (person_id, embedding, quality, source_key)
		 VALUES ($1, $2, $3, $4) RETURNING id, created_at`,
		personID, pgvector.NewVector(embedding), quality, sourceKey,
	).Scan(&fe.ID, &fe.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("add face embedding: %w", err)
	}
	return fe, nil
}

// ListFaceEmbeddings returns a person's samples without vectors.
func (s *PostgresStore) ListFaceEmbeddings(ctx context.Context, personID string) ([]models.FaceEmbedding, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, person_id, quality, source_key, created_at
		 FROM face_embeddings WHERE person_id = $1 ORDER BY created_at DESC, id DESC`,
		personID)
	if err != nil {
		return nil, fmt.Errorf("list face embeddings: %w", err)
	}
	defer rows.Close()

	var faces []models.FaceEmbedding
	for rows.Next() {
		var fe models.FaceEmbedding
		if err := rows.Scan(&fe.ID, &fe.PersonID, &fe.Quality, &fe.SourceKey, &fe.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan face embedding: %w", err)
		}
		faces = append(faces, fe)
	}
	return faces, rows.Err()
}

// ListAllEmbeddings returns every stored vector; used to build the gallery.
func (s *PostgresStore) ListAllEmbeddings(ctx context.Context) ([]models.FaceEmbedding, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, person_id, embedding, quality, source_key, created_at
		 FROM face_embeddings ORDER BY person_id, id`)
	if err != nil {
		return nil, fmt.Errorf("list all embeddings: %w", err)
	}
	defer rows.Close()

	var faces []models.FaceEmbedding
	for rows.Next() {
		var (
			fe  models.FaceEmbedding
			vec pgvector.Vector
		)
		if err := rows.Scan(&fe.ID, &fe.PersonID, &vec, &fe.Quality, &fe.SourceKey, &fe.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan embedding: %w", err)
		}
		fe.Embedding = vec.Slice()
		faces = append(faces, fe)
	}
	return faces, rows.Err()
}

func (s *PostgresStore) CountFaces(ctx context.Context, personID string) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM face_embeddings WHERE person_id = $1`, personID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count faces: %w", err)
	}
	return count, nil
}
