// Copyright 2025 CoReason, Inc.
// SPDX-License-Identifier: Apache-2.0

package budget

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// ledger keys expire two days after creation so yesterday's totals stay
// readable while the window rolls over.
const ledgerKeyTTL = 48 * time.Hour

// RedisLedger implements Guard on top of a Redis spend ledger.
// Spend is accumulated per UTC day under global, project, and user keys.
type RedisLedger struct {
	client *redis.Client
	limits Limits
}

// NewRedisLedger connects to Redis and returns a ledger guard.
// A failed initial ping is reported but the ledger is still returned;
// the client reconnects on demand and readiness checks surface the outage.
func NewRedisLedger(redisURL string, limits Limits) (*RedisLedger, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	ledger := &RedisLedger{client: redis.NewClient(opts), limits: limits}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := ledger.client.Ping(ctx).Err(); err != nil {
		return ledger, fmt.Errorf("%w: %v", ErrLedgerUnavailable, err)
	}
	return ledger, nil
}

// NewRedisLedgerFromClient wraps an existing client (used by tests)
func NewRedisLedgerFromClient(client *redis.Client, limits Limits) *RedisLedger {
	return &RedisLedger{client: client, limits: limits}
}

// Ping verifies the ledger backend is reachable
func (l *RedisLedger) Ping(ctx context.Context) error {
	if err := l.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrLedgerUnavailable, err)
	}
	return nil
}

// Close releases the underlying connection pool
func (l *RedisLedger) Close() error {
	return l.client.Close()
}

// CheckQuota reports whether the estimated cost fits under every
// applicable daily cap. Any ledger error propagates to the caller, which
// treats it as a denial (fail-closed).
func (l *RedisLedger) CheckQuota(ctx context.Context, check QuotaCheck) (bool, error) {
	if check.EstimatedCost < 0 {
		return false, ErrInvalidCost
	}

	day := dayKey(time.Now().UTC())

	scopes := []struct {
		key string
		cap float64
	}{
		{globalKey(day), l.limits.GlobalDailyCapUSD},
		{userKey(check.UserID, day), l.limits.UserDailyCapUSD},
	}
	if check.ProjectID != "" {
		scopes = append(scopes, struct {
			key string
			cap float64
		}{projectKey(check.ProjectID, day), l.limits.ProjectDailyCapUSD})
	}

	for _, scope := range scopes {
		if scope.cap <= 0 {
			continue
		}
		spent, err := l.spent(ctx, scope.key)
		if err != nil {
			return false, err
		}
		if spent+check.EstimatedCost > scope.cap {
			return false, nil
		}
	}
	return true, nil
}

// Charge settles spend against the ledger and appends a transaction
// record for reconciliation.
func (l *RedisLedger) Charge(ctx context.Context, tx Transaction) error {
	if tx.Cost < 0 {
		return ErrInvalidCost
	}

	now := time.Now().UTC()
	day := dayKey(now)

	// Pipeline keeps the per-scope increments in a single round trip.
	pipe := l.client.Pipeline()
	pipe.IncrByFloat(ctx, globalKey(day), tx.Cost)
	pipe.Expire(ctx, globalKey(day), ledgerKeyTTL)
	pipe.IncrByFloat(ctx, userKey(tx.UserID, day), tx.Cost)
	pipe.Expire(ctx, userKey(tx.UserID, day), ledgerKeyTTL)
	if tx.ProjectID != "" {
		pipe.IncrByFloat(ctx, projectKey(tx.ProjectID, day), tx.Cost)
		pipe.Expire(ctx, projectKey(tx.ProjectID, day), ledgerKeyTTL)
	}

	record, err := json.Marshal(map[string]interface{}{
		"user_id":    tx.UserID,
		"project_id": tx.ProjectID,
		"agent_id":   tx.AgentID,
		"model":      tx.Model,
		"cost":       tx.Cost,
		"timestamp":  now.Format(time.RFC3339Nano),
	})
	if err == nil {
		txKey := fmt.Sprintf("ledger:tx:%s:%s", tx.UserID, day)
		pipe.LPush(ctx, txKey, record)
		pipe.Expire(ctx, txKey, ledgerKeyTTL)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrLedgerUnavailable, err)
	}
	return nil
}

// Spent returns the accumulated spend for a user on the current UTC day.
func (l *RedisLedger) Spent(ctx context.Context, userID string) (float64, error) {
	return l.spent(ctx, userKey(userID, dayKey(time.Now().UTC())))
}

func (l *RedisLedger) spent(ctx context.Context, key string) (float64, error) {
	value, err := l.client.Get(ctx, key).Float64()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrLedgerUnavailable, err)
	}
	return value, nil
}

func dayKey(t time.Time) string {
	return t.Format("20060102")
}

func globalKey(day string) string {
	return "ledger:global:" + day
}

func userKey(userID, day string) string {
	return fmt.Sprintf("ledger:user:%s:%s", userID, day)
}

func projectKey(projectID, day string) string {
	return fmt.Sprintf("ledger:project:%s:%s", projectID, day)
}
