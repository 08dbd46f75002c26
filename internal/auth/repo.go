package auth

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound indicates no client exists for the given id.
var ErrNotFound = errors.New("api client not found")

// Repository loads API client credentials.
type Repository interface {
	FindByID(ctx context.Context, id string) (*APIClient, error)
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository backed by the pool.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

func (r *repository) FindByID(ctx context.Context, id string) (*APIClient, error) {
	var client APIClient
	err := r.pool.QueryRow(ctx,
		`SELECT id, name, secret_hash, is_active, created_at FROM api_clients WHERE id = $1`, id).
		Scan(&client.ID, &client.Name, &client.SecretHash, &client.IsActive, &client.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &client, nil
}
