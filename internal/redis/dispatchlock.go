package redis

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Maciej19820502/windykacja/internal/db"
)

// lockTTL bounds how long a crashed dispatch can hold a pair lock. Longer
// than the dispatcher's send timeout so a live dispatch never loses its lock.
const lockTTL = 2 * time.Minute

// DispatchLock serializes dispatches per (invoice, stage) pair using
// SET NX. The scheduler and any concurrent manual "send now" call both take
// the lock before the duplicate-guard check, so check-then-log cannot race
// into a double send.
type DispatchLock struct {
	client *Client
	logger *zap.Logger
}

// NewDispatchLock creates a dispatch lock service.
func NewDispatchLock(client *Client, logger *zap.Logger) *DispatchLock {
	return &DispatchLock{
		client: client,
		logger: logger,
	}
}

func lockKey(invoiceID int64, stage db.Stage) string {
	return fmt.Sprintf("dispatchlock:%d:%d", invoiceID, stage)
}

// TryLock attempts to acquire the pair lock. On success it returns a release
// func; ok=false means another dispatch for the pair is in flight.
func (l *DispatchLock) TryLock(ctx context.Context, invoiceID int64, stage db.Stage) (func(), bool, error) {
	key := lockKey(invoiceID, stage)

	acquired, err := l.client.rdb.SetNX(ctx, key, "1", lockTTL).Result()
	if err != nil {
		return nil, false, fmt.Errorf("redis setnx failed: %w", err)
	}
	if !acquired {
		l.logger.Debug("dispatch lock held elsewhere",
			zap.Int64("invoice_id", invoiceID),
			zap.String("stage", stage.String()),
		)
		return nil, false, nil
	}

	release := func() {
		// Release uses a background context so a cancelled dispatch still
		// frees the lock; TTL covers the crash case.
		if err := l.client.rdb.Del(context.Background(), key).Err(); err != nil {
			l.logger.Warn("dispatch lock release failed",
				zap.String("key", key),
				zap.Error(err),
			)
		}
	}
	return release, true, nil
}
