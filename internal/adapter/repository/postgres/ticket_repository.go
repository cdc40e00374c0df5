package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/dhermawa/ticketgate/internal/core/domain"
)

type TicketRepository struct {
	db *sql.DB
}

func NewTicketRepository(db *sql.DB) *TicketRepository {
	return &TicketRepository{db: db}
}

func (r *TicketRepository) CreateTickets(ctx context.Context, tickets []*domain.Ticket) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return storeErr("begin create tickets", err)
	}

	defer tx.Rollback()

	query := `
	INSERT INTO tickets (id, code, order_id, event_id, buyer_id, category, price, status, issued_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return storeErr("prepare ticket statement", err)
	}

	defer stmt.Close()

	for _, t := range tickets {
		_, err := stmt.ExecContext(ctx, t.ID, t.Code, t.OrderID, t.EventID, t.BuyerID, t.Category, t.Price, t.Status, t.IssuedAt)
		if err != nil {
			return storeErr("insert ticket", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return storeErr("commit create tickets", err)
	}

	return nil
}

const ticketColumns = `id, code, order_id, event_id, buyer_id, category, price, status, issued_at, used_at, used_by, entry_location`

func (r *TicketRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE id = $1`
	return r.scanOne(r.db.QueryRowContext(ctx, query, id))
}

func (r *TicketRepository) GetByCode(ctx context.Context, code string) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE code = $1`
	return r.scanOne(r.db.QueryRowContext(ctx, query, code))
}

func (r *TicketRepository) GetByOrder(ctx context.Context, orderID uuid.UUID) ([]*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE order_id = $1 ORDER BY code`

	rows, err := r.db.QueryContext(ctx, query, orderID)
	if err != nil {
		return nil, storeErr("get tickets by order", err)
	}

	defer rows.Close()

	var tickets []*domain.Ticket
	for rows.Next() {
		t, err := r.scanTicket(rows)
		if err != nil {
			return nil, err
		}

		tickets = append(tickets, t)
	}

	return tickets, rows.Err()
}

// MarkUsed is the ACTIVE->USED compare-and-swap: the status predicate in
// the WHERE clause guarantees a single winner among simultaneous scans.
func (r *TicketRepository) MarkUsed(ctx context.Context, id uuid.UUID, usedBy, entryLocation string, at time.Time) (bool, error) {
	query := `
	UPDATE tickets
	SET status = 'USED',
		used_at = $2,
		used_by = $3,
		entry_location = $4
	WHERE id = $1 AND status = 'ACTIVE'
	`

	result, err := r.db.ExecContext(ctx, query, id, at, usedBy, entryLocation)
	if err != nil {
		return false, storeErr("mark ticket used", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, storeErr("mark ticket used", err)
	}

	return rowsAffected == 1, nil
}

func (r *TicketRepository) MarkVoid(ctx context.Context, id uuid.UUID) (bool, error) {
	query := `
	UPDATE tickets
	SET status = 'VOID'
	WHERE id = $1 AND status = 'ACTIVE'
	`

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return false, storeErr("mark ticket void", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, storeErr("mark ticket void", err)
	}

	return rowsAffected == 1, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *TicketRepository) scanOne(row rowScanner) (*domain.Ticket, error) {
	t, err := r.scanTicket(row)
	if err == sql.ErrNoRows {
		return nil, domain.ErrTicketNotFound
	}
	return t, err
}

func (r *TicketRepository) scanTicket(row rowScanner) (*domain.Ticket, error) {
	var t domain.Ticket
	var usedAt sql.NullTime
	var usedBy sql.NullString
	var entryLocation sql.NullString

	err := row.Scan(
		&t.ID,
		&t.Code,
		&t.OrderID,
		&t.EventID,
		&t.BuyerID,
		&t.Category,
		&t.Price,
		&t.Status,
		&t.IssuedAt,
		&usedAt,
		&usedBy,
		&entryLocation,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, storeErr("scan ticket", err)
	}

	if usedAt.Valid {
		t.UsedAt = &usedAt.Time
	}
	if usedBy.Valid {
		t.UsedBy = usedBy.String
	}
	if entryLocation.Valid {
		t.EntryLocation = entryLocation.String
	}

	return &t, nil
}
