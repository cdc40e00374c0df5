package postgres

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/dhermawa/ticketgate/internal/core/domain"
)

// CatalogRepository is a read-only view onto the event catalog tables the
// external catalog service maintains.
type CatalogRepository struct {
	db *sql.DB
}

func NewCatalogRepository(db *sql.DB) *CatalogRepository {
	return &CatalogRepository{db: db}
}

func (r *CatalogRepository) GetEvent(ctx context.Context, id uuid.UUID) (*domain.Event, error) {
	query := `
	SELECT id, name, starts_at, sale_open
	FROM events
	WHERE id = $1
	`

	var ev domain.Event
	err := r.db.QueryRowContext(ctx, query, id).Scan(&ev.ID, &ev.Name, &ev.StartsAt, &ev.SaleOpen)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrEventNotFound
		}
		return nil, storeErr("get event", err)
	}

	categoryQuery := `
	SELECT category, unit_price, total_quota
	FROM category_quotas
	WHERE event_id = $1
	`

	rows, err := r.db.QueryContext(ctx, categoryQuery, id)
	if err != nil {
		return nil, storeErr("get event categories", err)
	}

	defer rows.Close()

	for rows.Next() {
		var c domain.EventCategory
		if err := rows.Scan(&c.Name, &c.UnitPrice, &c.Quota); err != nil {
			return nil, storeErr("scan event category", err)
		}

		ev.Categories = append(ev.Categories, c)
	}

	return &ev, rows.Err()
}
