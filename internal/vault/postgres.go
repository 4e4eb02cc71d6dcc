package vault

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const schemaSQL = `
CREATE SCHEMA IF NOT EXISTS spheres;
CREATE TABLE IF NOT EXISTS spheres.save_slots (
	slot_id      uuid PRIMARY KEY,
	token_hash   text NOT NULL,
	blob         text NOT NULL DEFAULT '',
	revision     bigint NOT NULL DEFAULT 0,
	last_put_key text NOT NULL DEFAULT '',
	updated_at   timestamptz NOT NULL DEFAULT now()
);`

type PgRepository struct {
	db *pgxpool.Pool
}

func NewPgRepository(db *pgxpool.Pool) *PgRepository {
	return &PgRepository{db: db}
}

func (r *PgRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("ensure vault schema: %w", err)
	}
	return nil
}

func (r *PgRepository) Insert(ctx context.Context, slot Slot) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO spheres.save_slots (slot_id, token_hash, blob, revision, last_put_key, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, slot.ID, slot.TokenHash, slot.Blob, slot.Revision, slot.LastPutKey, slot.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fmt.Errorf("slot %s already exists", slot.ID)
		}
		return err
	}
	return nil
}

func (r *PgRepository) Get(ctx context.Context, id uuid.UUID) (Slot, error) {
	slot := Slot{ID: id}
	err := r.db.QueryRow(ctx, `
		SELECT token_hash, blob, revision, last_put_key, updated_at
		FROM spheres.save_slots
		WHERE slot_id = $1
	`, id).Scan(&slot.TokenHash, &slot.Blob, &slot.Revision, &slot.LastPutKey, &slot.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Slot{}, ErrSlotNotFound
		}
		return Slot{}, err
	}
	return slot, nil
}

func (r *PgRepository) Update(ctx context.Context, id uuid.UUID, expected int64, blob, putKey string, at time.Time) (int64, error) {
	var rev int64
	err := r.db.QueryRow(ctx, `
		UPDATE spheres.save_slots
		SET blob = $3, revision = revision + 1, last_put_key = $4, updated_at = $5
		WHERE slot_id = $1 AND revision = $2
		RETURNING revision
	`, id, expected, blob, putKey, at).Scan(&rev)
	if err == nil {
		return rev, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, err
	}
	// Zero rows: either the slot vanished or another upload won the race.
	if _, getErr := r.Get(ctx, id); getErr != nil {
		return 0, getErr
	}
	return 0, ErrRevisionConflict
}

func (r *PgRepository) DeleteEmpty(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx, `
		DELETE FROM spheres.save_slots
		WHERE revision = 0 AND updated_at < $1
	`, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
