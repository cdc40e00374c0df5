package postgres

import (
	"context"
	"database/sql"
)

// SequenceRepository backs the per-year ORD-/TKT- numbers with an upsert
// counter row per (kind, year).
type SequenceRepository struct {
	db *sql.DB
}

func NewSequenceRepository(db *sql.DB) *SequenceRepository {
	return &SequenceRepository{db: db}
}

func (r *SequenceRepository) NextOrderNumber(ctx context.Context, year int) (int, error) {
	return r.next(ctx, "order", year)
}

func (r *SequenceRepository) NextTicketNumber(ctx context.Context, year int) (int, error) {
	return r.next(ctx, "ticket", year)
}

func (r *SequenceRepository) next(ctx context.Context, kind string, year int) (int, error) {
	query := `
	INSERT INTO code_sequences (kind, year, value)
	VALUES ($1, $2, 1)
	ON CONFLICT (kind, year)
	DO UPDATE SET value = code_sequences.value + 1
	RETURNING value
	`

	var value int
	if err := r.db.QueryRowContext(ctx, query, kind, year).Scan(&value); err != nil {
		return 0, storeErr("next sequence value", err)
	}

	return value, nil
}
