package stickers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aboudjelida/aimenboudev/internal/telemetry/tracing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var _ Api = (*Repo)(nil)

type Repo struct {
	db *pgxpool.Pool
}

func NewRepo(db *pgxpool.Pool) *Repo {
	return &Repo{
		db: db,
	}
}

// Add persists a validated sticker. ID and created_at come back from
// the database, never from the caller.
func (r *Repo) Add(ctx context.Context, sticker Sticker) (_ Sticker, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "stickersRepo.add")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	// empty content goes in as NULL, the content check constraint
	// guards the message/drawing split on the db side too
	var message, drawing *string
	if sticker.Message != "" {
		message = &sticker.Message
	}
	if sticker.Drawing != "" {
		drawing = &sticker.Drawing
	}

	rows, err := r.db.Query(
		ctx,
		`INSERT INTO sticker (name, kind, message, drawing) VALUES ($1, $2, $3, $4) RETURNING id, created_at;`,
		sticker.Name, sticker.Kind, message, drawing,
	)
	if err != nil {
		return Sticker{}, err
	}
	defer rows.Close()

	if err := rows.Err(); err != nil {
		return Sticker{}, err
	}

	if !rows.Next() {
		return Sticker{}, errors.New("unexpected error [no rows next]")
	}

	var id uuid.UUID
	var createdAt time.Time
	if err := rows.Scan(&id, &createdAt); err != nil {
		return Sticker{}, fmt.Errorf("rows scan: %w", err)
	}

	sticker.ID = id
	sticker.CreatedAt = createdAt
	return sticker, nil
}

// List returns all stickers, newest first. Malformed rows fail the
// whole read, the caller treats that as a fetch error.
func (r *Repo) List(ctx context.Context) (_ []Sticker, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "stickersRepo.list")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	rows, err := r.db.Query(
		ctx,
		`
			SELECT
				id, name, kind, message, drawing, created_at
			FROM sticker
			ORDER BY created_at DESC;`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return rows2stickers(rows)
}

func (r *Repo) Count(ctx context.Context) (_ int, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "stickersRepo.count")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	rows, err := r.db.Query(ctx, `SELECT COUNT(*) FROM sticker`)
	if err != nil {
		return -1, err
	}
	defer rows.Close()

	if err := rows.Err(); err != nil {
		return -1, err
	}

	if rows.Next() {
		var count int
		if err := rows.Scan(&count); err == nil {
			return count, nil
		}
	}

	return -1, errors.New("unexpected error, failed to get stickers count")
}

func rows2stickers(rows pgx.Rows) ([]Sticker, error) {
	var allStickers []Sticker
	for rows.Next() {
		var id uuid.UUID
		var name string
		var kind string
		var message, drawing *string
		var createdAt time.Time
		if err := rows.Scan(&id, &name, &kind, &message, &drawing, &createdAt); err != nil {
			return nil, fmt.Errorf("rows scan: %w", err)
		}

		sticker := Sticker{
			ID:        id,
			Name:      name,
			Kind:      Kind(kind),
			CreatedAt: createdAt,
		}
		switch sticker.Kind {
		case KindText:
			if message == nil {
				return nil, fmt.Errorf("sticker %s: text kind without message", id)
			}
			sticker.Message = *message
		case KindDrawing:
			if drawing == nil {
				return nil, fmt.Errorf("sticker %s: drawing kind without drawing", id)
			}
			sticker.Drawing = *drawing
		default:
			return nil, fmt.Errorf("sticker %s: unknown kind %q", id, kind)
		}

		allStickers = append(allStickers, sticker)
	}
	return allStickers, nil
}
