package actors

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrNotFound indicates the actor does not exist.
	ErrNotFound = errors.New("actor not found")
	// ErrDuplicateRef indicates the external reference is already registered.
	ErrDuplicateRef = errors.New("external ref already registered")
)

// Repository persists actors.
type Repository interface {
	Create(ctx context.Context, externalRef, name string) (*Actor, error)
	GetByID(ctx context.Context, id int64) (*Actor, error)
	GetByExternalRef(ctx context.Context, externalRef string) (*Actor, error)
	UpdateRoles(ctx context.Context, id int64, roles RoleSet) error
	UpdateStatus(ctx context.Context, id int64, status Status) error
	List(ctx context.Context, limit, offset int) ([]Actor, error)
}

type dbtx interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	QueryRow(context.Context, string, ...any) pgx.Row
}

type repository struct {
	db     dbtx
	logger *slog.Logger
}

// NewRepository constructs a Repository backed by the pool.
func NewRepository(pool *pgxpool.Pool, logger *slog.Logger) Repository {
	return &repository{db: pool, logger: logger}
}

const actorColumns = `id, external_ref, name, roles, active_role, status, created_at, updated_at`

func (r *repository) Create(ctx context.Context, externalRef, name string) (*Actor, error) {
	rs := NewRoleSet(nil, RoleApplicant)
	row := r.db.QueryRow(ctx, `INSERT INTO actors (external_ref, name, roles, active_role, status, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
RETURNING `+actorColumns, externalRef, name, rs.Encode(), string(rs.Active()), string(StatusPending))
	actor, err := r.scanActor(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, ErrDuplicateRef
		}
		return nil, err
	}
	return actor, nil
}

func (r *repository) GetByID(ctx context.Context, id int64) (*Actor, error) {
	row := r.db.QueryRow(ctx, `SELECT `+actorColumns+` FROM actors WHERE id = $1`, id)
	return r.scanNotFound(row)
}

func (r *repository) GetByExternalRef(ctx context.Context, externalRef string) (*Actor, error) {
	row := r.db.QueryRow(ctx, `SELECT `+actorColumns+` FROM actors WHERE external_ref = $1`, externalRef)
	return r.scanNotFound(row)
}

func (r *repository) UpdateRoles(ctx context.Context, id int64, roles RoleSet) error {
	tag, err := r.db.Exec(ctx, `UPDATE actors SET roles = $2, active_role = $3, updated_at = NOW() WHERE id = $1`,
		id, roles.Encode(), string(roles.Active()))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repository) UpdateStatus(ctx context.Context, id int64, status Status) error {
	tag, err := r.db.Exec(ctx, `UPDATE actors SET status = $2, updated_at = NOW() WHERE id = $1`, id, string(status))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repository) List(ctx context.Context, limit, offset int) ([]Actor, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := r.db.Query(ctx, `SELECT `+actorColumns+` FROM actors ORDER BY id LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Actor
	for rows.Next() {
		actor, err := r.scanActor(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *actor)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *repository) scanNotFound(row pgx.Row) (*Actor, error) {
	actor, err := r.scanActor(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return actor, nil
}

// scanActor materialises one actor row, parsing the persisted role columns
// into a RoleSet. Malformed role data degrades to the applicant base role
// and is logged, never surfaced.
func (r *repository) scanActor(row pgx.Row) (*Actor, error) {
	var (
		a         Actor
		rawRoles  string
		rawActive string
		rawStatus string
		created   time.Time
		updated   time.Time
	)
	if err := row.Scan(&a.ID, &a.ExternalRef, &a.Name, &rawRoles, &rawActive, &rawStatus, &created, &updated); err != nil {
		return nil, err
	}
	roles, parseErr := ParseRoleSet(rawRoles, rawActive)
	if parseErr != nil && r.logger != nil {
		r.logger.Warn("actor role data fell back to defaults",
			slog.Int64("actor_id", a.ID), slog.Any("error", parseErr))
	}
	a.Roles = roles
	a.Status = Status(rawStatus)
	if !a.Status.Valid() {
		a.Status = StatusPending
	}
	a.CreatedAt = created
	a.UpdatedAt = updated
	return &a, nil
}
