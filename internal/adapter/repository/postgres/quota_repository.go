package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/dhermawa/ticketgate/internal/core/domain"
)

// QuotaRepository implements the ledger on top of a single conditional
// UPDATE per operation, so check-then-reserve happens inside the database
// and can never interleave with another caller.
type QuotaRepository struct {
	db *sql.DB
}

func NewQuotaRepository(db *sql.DB) *QuotaRepository {
	return &QuotaRepository{db: db}
}

func (r *QuotaRepository) Reserve(ctx context.Context, eventID uuid.UUID, category string, qty int) (int, error) {
	if qty <= 0 {
		return 0, domain.ErrInvalidQuantity
	}

	query := `
	UPDATE category_quotas
	SET reserved = reserved + $3
	WHERE event_id = $1 AND category = $2
	  AND sold + reserved + $3 <= total_quota
	`

	result, err := r.db.ExecContext(ctx, query, eventID, category, qty)
	if err != nil {
		return 0, storeErr("reserve quota", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, storeErr("reserve quota", err)
	}

	snapshot, err := r.Snapshot(ctx, eventID, category)
	if err != nil {
		return 0, err
	}

	if rowsAffected == 0 {
		return snapshot.Available(), domain.ErrQuotaExceeded
	}
	return snapshot.Available(), nil
}

func (r *QuotaRepository) Commit(ctx context.Context, eventID uuid.UUID, category string, qty int) error {
	if qty <= 0 {
		return domain.ErrInvalidQuantity
	}

	query := `
	UPDATE category_quotas
	SET reserved = reserved - $3,
		sold = sold + $3
	WHERE event_id = $1 AND category = $2 AND reserved >= $3
	`

	return r.moveUnits(ctx, "commit quota", query, eventID, category, qty)
}

func (r *QuotaRepository) Release(ctx context.Context, eventID uuid.UUID, category string, qty int) error {
	if qty <= 0 {
		return domain.ErrInvalidQuantity
	}

	query := `
	UPDATE category_quotas
	SET reserved = reserved - $3
	WHERE event_id = $1 AND category = $2 AND reserved >= $3
	`

	return r.moveUnits(ctx, "release quota", query, eventID, category, qty)
}

func (r *QuotaRepository) moveUnits(ctx context.Context, op, query string, eventID uuid.UUID, category string, qty int) error {
	result, err := r.db.ExecContext(ctx, query, eventID, category, qty)
	if err != nil {
		return storeErr(op, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return storeErr(op, err)
	}

	if rowsAffected == 0 {
		if _, err := r.Snapshot(ctx, eventID, category); err != nil {
			return err
		}
		return domain.ErrInvalidQuantity
	}
	return nil
}

func (r *QuotaRepository) Snapshot(ctx context.Context, eventID uuid.UUID, category string) (domain.CategoryQuota, error) {
	query := `
	SELECT total_quota, sold, reserved
	FROM category_quotas
	WHERE event_id = $1 AND category = $2
	`

	q := domain.CategoryQuota{EventID: eventID, Category: category}
	err := r.db.QueryRowContext(ctx, query, eventID, category).Scan(&q.Total, &q.Sold, &q.Reserved)
	if err != nil {
		if err == sql.ErrNoRows {
			return domain.CategoryQuota{}, domain.ErrUnknownCategory
		}
		return domain.CategoryQuota{}, storeErr("snapshot quota", err)
	}

	return q, nil
}

// storeErr tags driver-level failures as retryable for the service layer.
func storeErr(op string, err error) error {
	return fmt.Errorf("%s: %v: %w", op, err, domain.ErrStoreUnavailable)
}
