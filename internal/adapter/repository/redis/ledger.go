package redis

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/dhermawa/ticketgate/internal/core/domain"
)

// Each quota lives in one hash (total/sold/reserved) and every mutation is
// a Lua script, so the check and the increment execute as one server-side
// step. Scripts return {status, remaining}: status 1 ok, 0 denied, -1
// unknown key.

const reserveScript = `
local total = redis.call('HGET', KEYS[1], 'total')
if not total then
  return {-1, 0}
end
local sold = tonumber(redis.call('HGET', KEYS[1], 'sold') or '0')
local reserved = tonumber(redis.call('HGET', KEYS[1], 'reserved') or '0')
local qty = tonumber(ARGV[1])
local remaining = tonumber(total) - sold - reserved
if qty > remaining then
  return {0, remaining}
end
redis.call('HINCRBY', KEYS[1], 'reserved', qty)
return {1, remaining - qty}
`

const commitScript = `
local total = redis.call('HGET', KEYS[1], 'total')
if not total then
  return {-1, 0}
end
local reserved = tonumber(redis.call('HGET', KEYS[1], 'reserved') or '0')
local qty = tonumber(ARGV[1])
if qty > reserved then
  return {0, reserved}
end
redis.call('HINCRBY', KEYS[1], 'reserved', -qty)
redis.call('HINCRBY', KEYS[1], 'sold', qty)
return {1, reserved - qty}
`

const releaseScript = `
local total = redis.call('HGET', KEYS[1], 'total')
if not total then
  return {-1, 0}
end
local reserved = tonumber(redis.call('HGET', KEYS[1], 'reserved') or '0')
local qty = tonumber(ARGV[1])
if qty > reserved then
  return {0, reserved}
end
redis.call('HINCRBY', KEYS[1], 'reserved', -qty)
return {1, reserved - qty}
`

type Ledger struct {
	client *redis.Client
}

func NewLedger(client *redis.Client) *Ledger {
	return &Ledger{client: client}
}

func quotaKey(eventID uuid.UUID, category string) string {
	return fmt.Sprintf("quota:%s:%s", eventID, category)
}

// Configure seeds the hash for a key. Existing counters are overwritten, so
// this is for initial load only.
func (l *Ledger) Configure(ctx context.Context, eventID uuid.UUID, category string, total int) error {
	err := l.client.HSet(ctx, quotaKey(eventID, category), "total", total, "sold", 0, "reserved", 0).Err()
	if err != nil {
		return storeErr("configure quota", err)
	}
	return nil
}

func (l *Ledger) Reserve(ctx context.Context, eventID uuid.UUID, category string, qty int) (int, error) {
	if qty <= 0 {
		return 0, domain.ErrInvalidQuantity
	}

	status, remaining, err := l.eval(ctx, reserveScript, eventID, category, qty)
	if err != nil {
		return 0, err
	}

	switch status {
	case 1:
		return remaining, nil
	case 0:
		return remaining, domain.ErrQuotaExceeded
	default:
		return 0, domain.ErrUnknownCategory
	}
}

func (l *Ledger) Commit(ctx context.Context, eventID uuid.UUID, category string, qty int) error {
	if qty <= 0 {
		return domain.ErrInvalidQuantity
	}
	return l.move(ctx, commitScript, eventID, category, qty)
}

func (l *Ledger) Release(ctx context.Context, eventID uuid.UUID, category string, qty int) error {
	if qty <= 0 {
		return domain.ErrInvalidQuantity
	}
	return l.move(ctx, releaseScript, eventID, category, qty)
}

func (l *Ledger) move(ctx context.Context, script string, eventID uuid.UUID, category string, qty int) error {
	status, _, err := l.eval(ctx, script, eventID, category, qty)
	if err != nil {
		return err
	}

	switch status {
	case 1:
		return nil
	case 0:
		return domain.ErrInvalidQuantity
	default:
		return domain.ErrUnknownCategory
	}
}

func (l *Ledger) eval(ctx context.Context, script string, eventID uuid.UUID, category string, qty int) (int64, int, error) {
	raw, err := l.client.Eval(ctx, script, []string{quotaKey(eventID, category)}, qty).Result()
	if err != nil {
		return 0, 0, storeErr("eval quota script", err)
	}

	reply, ok := raw.([]interface{})
	if !ok || len(reply) != 2 {
		return 0, 0, fmt.Errorf("unexpected script reply %v", raw)
	}

	status, _ := reply[0].(int64)
	remaining, _ := reply[1].(int64)
	return status, int(remaining), nil
}

func (l *Ledger) Snapshot(ctx context.Context, eventID uuid.UUID, category string) (domain.CategoryQuota, error) {
	fields, err := l.client.HGetAll(ctx, quotaKey(eventID, category)).Result()
	if err != nil {
		return domain.CategoryQuota{}, storeErr("snapshot quota", err)
	}
	if len(fields) == 0 {
		return domain.CategoryQuota{}, domain.ErrUnknownCategory
	}

	q := domain.CategoryQuota{EventID: eventID, Category: category}
	if _, err := fmt.Sscanf(fields["total"], "%d", &q.Total); err != nil {
		return domain.CategoryQuota{}, fmt.Errorf("parse total: %w", err)
	}
	fmt.Sscanf(fields["sold"], "%d", &q.Sold)
	fmt.Sscanf(fields["reserved"], "%d", &q.Reserved)

	return q, nil
}

func storeErr(op string, err error) error {
	return fmt.Errorf("%s: %v: %w", op, err, domain.ErrStoreUnavailable)
}
