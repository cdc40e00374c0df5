package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/dhermawa/ticketgate/internal/core/domain"
)

type HoldRepository struct {
	db *sql.DB
}

func NewHoldRepository(db *sql.DB) *HoldRepository {
	return &HoldRepository{db: db}
}

func (r *HoldRepository) CreateHold(ctx context.Context, hold *domain.Hold) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return storeErr("begin create hold", err)
	}

	defer tx.Rollback()

	queryHeader := `
	INSERT INTO holds (id, code, event_id, buyer_id, total_amount, status, created_at, expires_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err = tx.ExecContext(ctx, queryHeader, hold.ID, hold.Code, hold.EventID, hold.BuyerID, hold.TotalAmount, hold.Status, hold.CreatedAt, hold.ExpiresAt)
	if err != nil {
		return storeErr("insert hold header", err)
	}

	queryItem := `
	INSERT INTO hold_items (id, hold_id, category, quantity, unit_price)
	VALUES ($1, $2, $3, $4, $5)
	`

	stmt, err := tx.PrepareContext(ctx, queryItem)
	if err != nil {
		return storeErr("prepare item statement", err)
	}

	defer stmt.Close()

	for _, item := range hold.Items {
		_, err := stmt.ExecContext(ctx, item.ID, item.HoldID, item.Category, item.Quantity, item.UnitPrice)
		if err != nil {
			return storeErr("insert hold item", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return storeErr("commit create hold", err)
	}

	return nil
}

func (r *HoldRepository) GetHold(ctx context.Context, id uuid.UUID) (*domain.Hold, error) {
	query := `
	SELECT id, code, event_id, buyer_id, total_amount, status, created_at, expires_at, committed_at
	FROM holds
	WHERE id = $1
	`

	var hold domain.Hold
	var committedAt sql.NullTime

	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&hold.ID,
		&hold.Code,
		&hold.EventID,
		&hold.BuyerID,
		&hold.TotalAmount,
		&hold.Status,
		&hold.CreatedAt,
		&hold.ExpiresAt,
		&committedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrHoldNotFound
		}
		return nil, storeErr("get hold", err)
	}

	if committedAt.Valid {
		hold.CommittedAt = &committedAt.Time
	}

	items, err := r.loadItems(ctx, hold.ID)
	if err != nil {
		return nil, err
	}
	hold.Items = items

	return &hold, nil
}

func (r *HoldRepository) UpdateStatusIfPending(ctx context.Context, id uuid.UUID, to domain.HoldStatus, at time.Time) (bool, error) {
	query := `
	UPDATE holds
	SET status = $2,
		committed_at = CASE WHEN $2 = 'COMMITTED' THEN $3 ELSE committed_at END
	WHERE id = $1 AND status = 'PENDING'
	`

	result, err := r.db.ExecContext(ctx, query, id, to, at)
	if err != nil {
		return false, storeErr("update hold status", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, storeErr("update hold status", err)
	}

	return rowsAffected == 1, nil
}

func (r *HoldRepository) ListExpired(ctx context.Context, now time.Time, limit int) ([]*domain.Hold, error) {
	query := `
	SELECT id, code, event_id, buyer_id, total_amount, status, created_at, expires_at
	FROM holds
	WHERE status = 'PENDING' AND expires_at <= $1
	LIMIT $2
	`

	rows, err := r.db.QueryContext(ctx, query, now, limit)
	if err != nil {
		return nil, storeErr("list expired holds", err)
	}

	defer rows.Close()

	var holds []*domain.Hold
	for rows.Next() {
		var hold domain.Hold
		if err := rows.Scan(
			&hold.ID,
			&hold.Code,
			&hold.EventID,
			&hold.BuyerID,
			&hold.TotalAmount,
			&hold.Status,
			&hold.CreatedAt,
			&hold.ExpiresAt,
		); err != nil {
			return nil, storeErr("scan expired hold", err)
		}

		holds = append(holds, &hold)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("list expired holds", err)
	}

	for _, hold := range holds {
		items, err := r.loadItems(ctx, hold.ID)
		if err != nil {
			return nil, err
		}
		hold.Items = items
	}

	return holds, nil
}

func (r *HoldRepository) loadItems(ctx context.Context, holdID uuid.UUID) ([]domain.HoldItem, error) {
	query := `
	SELECT id, hold_id, category, quantity, unit_price
	FROM hold_items
	WHERE hold_id = $1
	`

	rows, err := r.db.QueryContext(ctx, query, holdID)
	if err != nil {
		return nil, storeErr("load hold items", err)
	}

	defer rows.Close()

	var items []domain.HoldItem
	for rows.Next() {
		var item domain.HoldItem
		if err := rows.Scan(&item.ID, &item.HoldID, &item.Category, &item.Quantity, &item.UnitPrice); err != nil {
			return nil, storeErr("scan hold item", err)
		}

		items = append(items, item)
	}

	return items, rows.Err()
}
