package requests

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/upkeep-hq/upkeep/internal/platform/db"
)

// ErrNotFound indicates no matching request exists.
var ErrNotFound = errors.New("request not found")

// Repository persists maintenance requests.
type Repository interface {
	Create(ctx context.Context, req Request) (*Request, error)
	Get(ctx context.Context, id uuid.UUID) (*Request, error)
	// Update persists status, executor, notes and completion time as a single
	// transactional write so a transition either fully lands or not at all.
	Update(ctx context.Context, req Request) (*Request, error)
	List(ctx context.Context, filter ListFilter) ([]Request, error)
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository backed by the pool.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const requestColumns = `id, submitter_id, executor_id, category, address_ref, description, urgency, status, notes, created_at, completed_at`

func (r *repository) Create(ctx context.Context, req Request) (*Request, error) {
	row := r.pool.QueryRow(ctx, `INSERT INTO requests
(id, submitter_id, category, address_ref, description, urgency, status, notes, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, '', $8)
RETURNING `+requestColumns,
		req.ID, req.SubmitterID, string(req.Category), req.AddressRef, req.Description,
		string(req.Urgency), string(req.Status), req.CreatedAt)
	return scanRequest(row)
}

func (r *repository) Get(ctx context.Context, id uuid.UUID) (*Request, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+requestColumns+` FROM requests WHERE id = $1`, id)
	req, err := scanRequest(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return req, nil
}

func (r *repository) Update(ctx context.Context, req Request) (*Request, error) {
	var updated *Request
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `UPDATE requests
SET status = $2, executor_id = $3, notes = $4, completed_at = $5
WHERE id = $1
RETURNING `+requestColumns,
			req.ID, string(req.Status), req.ExecutorID, req.Notes, req.CompletedAt)
		got, err := scanRequest(row)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrNotFound
			}
			return err
		}
		updated = got
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (r *repository) List(ctx context.Context, filter ListFilter) ([]Request, error) {
	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if filter.Status != nil {
		where = append(where, "status = "+arg(string(*filter.Status)))
	}
	if filter.Category != nil {
		where = append(where, "category = "+arg(string(*filter.Category)))
	}
	if filter.Urgency != nil {
		where = append(where, "urgency = "+arg(string(*filter.Urgency)))
	}
	if filter.SubmitterID != nil {
		where = append(where, "submitter_id = "+arg(*filter.SubmitterID))
	}
	if filter.ExecutorID != nil {
		where = append(where, "executor_id = "+arg(*filter.ExecutorID))
	}

	query := `SELECT ` + requestColumns + ` FROM requests`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	query += " ORDER BY created_at DESC LIMIT " + arg(limit) + " OFFSET " + arg(offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Request
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *req)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func scanRequest(row pgx.Row) (*Request, error) {
	var (
		req      Request
		category string
		urgency  string
		status   string
	)
	err := row.Scan(&req.ID, &req.SubmitterID, &req.ExecutorID, &category, &req.AddressRef,
		&req.Description, &urgency, &status, &req.Notes, &req.CreatedAt, &req.CompletedAt)
	if err != nil {
		return nil, err
	}
	req.Category = Category(category)
	req.Urgency = Urgency(urgency)
	req.Status = Status(status)
	return &req, nil
}
