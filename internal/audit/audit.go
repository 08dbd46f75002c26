// Package audit persists the append-only trail of state-changing actions.
// Entries are written alongside every successful request, shift or actor
// mutation and are never updated or deleted afterwards.
package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Action values recorded by the services.
const (
	ActionRequestCreate     = "request.create"
	ActionRequestTransition = "request.transition"
	ActionRequestAnnotate   = "request.annotate"
	ActionShiftStart        = "shift.start"
	ActionShiftEnd          = "shift.end"
	ActionShiftForceEnd     = "shift.force_end"
	ActionActorRegister     = "actor.register"
	ActionActorRolesGrant   = "actor.roles_grant"
	ActionActorActiveRole   = "actor.active_role"
	ActionActorApprove      = "actor.approve"
	ActionActorBlock        = "actor.block"
)

// Subject kinds referenced by entries.
const (
	SubjectRequest = "request"
	SubjectShift   = "shift"
	SubjectActor   = "actor"
)

// Entry is one immutable audit record.
type Entry struct {
	ID          int64          `json:"id"`
	ActorID     int64          `json:"actor_id"`
	Action      string         `json:"action"`
	SubjectKind string         `json:"subject_kind"`
	SubjectID   string         `json:"subject_id"`
	Details     map[string]any `json:"details,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}

// Sink is the write-side interface consumed by the services.
type Sink interface {
	Record(ctx context.Context, entry Entry) error
}

type dbtx interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	QueryRow(context.Context, string, ...any) pgx.Row
}

// Recorder writes and reads audit_records.
type Recorder struct {
	db     dbtx
	logger *slog.Logger
}

// NewRecorder constructs a Recorder backed by the pool.
func NewRecorder(pool *pgxpool.Pool, logger *slog.Logger) *Recorder {
	return &Recorder{db: pool, logger: logger}
}

// Record persists one entry. Write order follows call order; entries are
// never mutated after insert.
func (r *Recorder) Record(ctx context.Context, entry Entry) error {
	if r == nil {
		return errors.New("audit recorder not initialised")
	}
	if entry.Action == "" {
		return errors.New("audit entry requires action")
	}
	if entry.SubjectKind == "" || entry.SubjectID == "" {
		return errors.New("audit entry requires subject")
	}
	details, err := json.Marshal(entry.Details)
	if err != nil {
		return fmt.Errorf("marshal details: %w", err)
	}
	at := entry.CreatedAt
	if at.IsZero() {
		at = time.Now().UTC()
	}
	_, err = r.db.Exec(ctx, `INSERT INTO audit_records (actor_id, action, subject_kind, subject_id, details, created_at)
VALUES ($1, $2, $3, $4, $5, $6)`, entry.ActorID, entry.Action, entry.SubjectKind, entry.SubjectID, details, at)
	if err != nil {
		if r.logger != nil {
			r.logger.Error("record audit entry", slog.String("action", entry.Action), slog.Any("error", err))
		}
		return err
	}
	return nil
}

// ListByActor returns entries written by one actor, oldest first.
func (r *Recorder) ListByActor(ctx context.Context, actorID int64, limit, offset int) ([]Entry, error) {
	const query = `SELECT id, actor_id, action, subject_kind, subject_id, details, created_at
FROM audit_records WHERE actor_id = $1 ORDER BY created_at, id LIMIT $2 OFFSET $3`
	return r.list(ctx, query, actorID, clampLimit(limit), maxInt(offset, 0))
}

// ListBySubject returns entries referencing one subject, oldest first.
func (r *Recorder) ListBySubject(ctx context.Context, kind, id string, limit, offset int) ([]Entry, error) {
	const query = `SELECT id, actor_id, action, subject_kind, subject_id, details, created_at
FROM audit_records WHERE subject_kind = $1 AND subject_id = $2 ORDER BY created_at, id LIMIT $3 OFFSET $4`
	return r.list(ctx, query, kind, id, clampLimit(limit), maxInt(offset, 0))
}

func (r *Recorder) list(ctx context.Context, query string, args ...any) ([]Entry, error) {
	if r == nil {
		return nil, errors.New("audit recorder not initialised")
	}
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var details []byte
		if err := rows.Scan(&e.ID, &e.ActorID, &e.Action, &e.SubjectKind, &e.SubjectID, &details, &e.CreatedAt); err != nil {
			return nil, err
		}
		if len(details) > 0 {
			if err := json.Unmarshal(details, &e.Details); err != nil {
				return nil, fmt.Errorf("unmarshal details: %w", err)
			}
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return 50
	}
	if limit > 200 {
		return 200
	}
	return limit
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
