package shifts

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrNotFound indicates no matching shift exists.
	ErrNotFound = errors.New("shift not found")
	// ErrActiveExists indicates the actor already holds an active shift.
	// Raised by the partial unique index on (actor_id) WHERE status='ACTIVE',
	// so two concurrent starts cannot both succeed.
	ErrActiveExists = errors.New("active shift already exists")
)

// Repository persists shifts.
type Repository interface {
	Create(ctx context.Context, actorID int64, startedAt time.Time) (*Shift, error)
	GetActiveByActor(ctx context.Context, actorID int64) (*Shift, error)
	HasActive(ctx context.Context, actorID int64) (bool, error)
	End(ctx context.Context, id uuid.UUID, endedAt time.Time, notes string) (*Shift, error)
	ListActive(ctx context.Context) ([]Shift, error)
	ListByActor(ctx context.Context, actorID int64, limit, offset int) ([]Shift, error)
}

type dbtx interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	QueryRow(context.Context, string, ...any) pgx.Row
}

type repository struct {
	db dbtx
}

// NewRepository constructs a Repository backed by the pool.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{db: pool}
}

const shiftColumns = `id, actor_id, start_time, end_time, status, notes`

func (r *repository) Create(ctx context.Context, actorID int64, startedAt time.Time) (*Shift, error) {
	row := r.db.QueryRow(ctx, `INSERT INTO shifts (id, actor_id, start_time, status, notes)
VALUES ($1, $2, $3, $4, '')
RETURNING `+shiftColumns, uuid.New(), actorID, startedAt, string(StatusActive))
	shift, err := scanShift(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, ErrActiveExists
		}
		return nil, err
	}
	return shift, nil
}

func (r *repository) GetActiveByActor(ctx context.Context, actorID int64) (*Shift, error) {
	row := r.db.QueryRow(ctx, `SELECT `+shiftColumns+` FROM shifts WHERE actor_id = $1 AND status = $2`,
		actorID, string(StatusActive))
	shift, err := scanShift(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return shift, nil
}

func (r *repository) HasActive(ctx context.Context, actorID int64) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM shifts WHERE actor_id = $1 AND status = $2)`,
		actorID, string(StatusActive)).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}

// End completes an active shift. The status guard in the WHERE clause makes
// concurrent ends resolve to a single winner.
func (r *repository) End(ctx context.Context, id uuid.UUID, endedAt time.Time, notes string) (*Shift, error) {
	row := r.db.QueryRow(ctx, `UPDATE shifts
SET end_time = $2, status = $3, notes = CASE WHEN $4 = '' THEN notes ELSE trim(both E'\n' from notes || E'\n' || $4) END
WHERE id = $1 AND status = $5
RETURNING `+shiftColumns, id, endedAt, string(StatusCompleted), notes, string(StatusActive))
	shift, err := scanShift(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return shift, nil
}

func (r *repository) ListActive(ctx context.Context) ([]Shift, error) {
	rows, err := r.db.Query(ctx, `SELECT `+shiftColumns+` FROM shifts WHERE status = $1 ORDER BY start_time`,
		string(StatusActive))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectShifts(rows)
}

func (r *repository) ListByActor(ctx context.Context, actorID int64, limit, offset int) ([]Shift, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := r.db.Query(ctx, `SELECT `+shiftColumns+` FROM shifts WHERE actor_id = $1 ORDER BY start_time DESC LIMIT $2 OFFSET $3`,
		actorID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectShifts(rows)
}

func collectShifts(rows pgx.Rows) ([]Shift, error) {
	var out []Shift
	for rows.Next() {
		shift, err := scanShift(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *shift)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func scanShift(row pgx.Row) (*Shift, error) {
	var (
		s      Shift
		status string
	)
	if err := row.Scan(&s.ID, &s.ActorID, &s.StartTime, &s.EndTime, &status, &s.Notes); err != nil {
		return nil, err
	}
	s.Status = Status(status)
	return &s, nil
}
