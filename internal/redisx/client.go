package redisx

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// Replay suppression for gateway callbacks: dedup:payment:{transaction_id}
	keyDedupPayment = "dedup:payment:%s"
)

var ttlDedup = 48 * time.Hour

func New(addr string) *redis.Client {
	return redis.NewClient(&redis.Options{Addr: addr})
}

// ReplayGuard remembers processed gateway transaction ids so exact
// webhook replays can be acknowledged without touching the database.
// The durable idempotency guard is the status-conditional update in
// the reconciliation coordinator; this cache is best effort.
type ReplayGuard struct {
	rdb *redis.Client
}

func NewReplayGuard(rdb *redis.Client) *ReplayGuard {
	return &ReplayGuard{rdb: rdb}
}

func (g *ReplayGuard) Seen(ctx context.Context, transactionID string) (bool, error) {
	n, err := g.rdb.Exists(ctx, fmt.Sprintf(keyDedupPayment, transactionID)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (g *ReplayGuard) Mark(ctx context.Context, transactionID string) error {
	return g.rdb.Set(ctx, fmt.Sprintf(keyDedupPayment, transactionID), "1", ttlDedup).Err()
}
