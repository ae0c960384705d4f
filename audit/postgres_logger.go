// Copyright 2025 CoReason, Inc.
// SPDX-License-Identifier: Apache-2.0

package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq" // PostgreSQL driver

	"coreason/conductor/shared/logger"
)

const createTablesSQL = `
CREATE TABLE IF NOT EXISTS audit_events (
	id          TEXT PRIMARY KEY,
	trace_id    TEXT,
	event_type  TEXT NOT NULL,
	timestamp   TIMESTAMPTZ NOT NULL,
	payload     JSONB
);
CREATE INDEX IF NOT EXISTS idx_audit_events_type ON audit_events (event_type);
CREATE INDEX IF NOT EXISTS idx_audit_events_time ON audit_events (timestamp);

CREATE TABLE IF NOT EXISTS audit_transactions (
	id          TEXT PRIMARY KEY,
	trace_id    TEXT,
	agent_id    TEXT NOT NULL,
	user_id     TEXT NOT NULL,
	provider    TEXT,
	model       TEXT,
	tokens_used INTEGER,
	cost_usd    DOUBLE PRECISION,
	latency_ms  BIGINT,
	status      TEXT,
	timestamp   TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_audit_tx_user ON audit_transactions (user_id);
`

const insertEventSQL = `
INSERT INTO audit_events (id, trace_id, event_type, timestamp, payload)
VALUES ($1, $2, $3, $4, $5)`

const insertTransactionSQL = `
INSERT INTO audit_transactions
(id, trace_id, agent_id, user_id, provider, model, tokens_used, cost_usd, latency_ms, status, timestamp)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

// PostgresLogger implements Logger on PostgreSQL.
type PostgresLogger struct {
	db           *sql.DB
	log          *logger.Logger
	queue        chan *TransactionRecord
	wg           sync.WaitGroup
	shutdownChan chan struct{}
	closeOnce    sync.Once
}

// NewPostgresLogger opens the audit database and starts the background
// transaction writer. The logger is returned even when the first ping
// fails; per-request writes surface the outage to the pipeline.
func NewPostgresLogger(databaseURL string) (*PostgresLogger, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit database: %w", err)
	}

	if err := createAuditTables(db); err != nil {
		log.Printf("Failed to create audit tables: %v", err)
	}

	return newPostgresLogger(db), nil
}

// NewPostgresLoggerWithDB wraps an existing handle (used by tests)
func NewPostgresLoggerWithDB(db *sql.DB) *PostgresLogger {
	return newPostgresLogger(db)
}

func newPostgresLogger(db *sql.DB) *PostgresLogger {
	l := &PostgresLogger{
		db:           db,
		log:          logger.New("audit"),
		queue:        make(chan *TransactionRecord, 10000),
		shutdownChan: make(chan struct{}),
	}

	l.wg.Add(1)
	go l.processQueue()

	return l
}

func createAuditTables(db *sql.DB) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_, err := db.ExecContext(ctx, createTablesSQL)
	return err
}

// LogEvent persists one event synchronously. A nil return guarantees the
// row is in the store, which the run pipeline relies on for its
// fail-fatal audit-start semantics.
func (l *PostgresLogger) LogEvent(ctx context.Context, eventType string, payload map[string]interface{}) error {
	if eventType == "" {
		return ErrInvalidEvent
	}

	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidEvent, err)
	}

	_, err = l.db.ExecContext(ctx, insertEventSQL,
		uuid.NewString(),
		logger.Trace(ctx),
		eventType,
		time.Now().UTC(),
		payloadJSON,
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSinkUnavailable, err)
	}
	return nil
}

// LogTransaction enqueues a transaction record; the batch writer persists
// it in the background. Never blocks the caller.
func (l *PostgresLogger) LogTransaction(ctx context.Context, record TransactionRecord) error {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.TraceID == "" {
		record.TraceID = logger.Trace(ctx)
	}
	if record.Timestamp.IsZero() {
		record.Timestamp = time.Now().UTC()
	}

	select {
	case l.queue <- &record:
		return nil
	default:
		// Queue full; write directly rather than drop the record.
		return l.writeTransactions(context.Background(), []*TransactionRecord{&record})
	}
}

// processQueue drains transaction records into batched writes.
func (l *PostgresLogger) processQueue() {
	defer l.wg.Done()

	const batchSize = 100
	batch := make([]*TransactionRecord, 0, batchSize)
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}
		if err := l.writeTransactions(context.Background(), batch); err != nil {
			l.log.Error(context.Background(), "Failed to flush audit transactions", map[string]interface{}{
				"count": len(batch),
				"error": err.Error(),
			})
		}
		batch = batch[:0]
	}

	for {
		select {
		case record := <-l.queue:
			batch = append(batch, record)
			if len(batch) >= batchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		case <-l.shutdownChan:
			// Drain anything still queued before the final flush.
			for {
				select {
				case record := <-l.queue:
					batch = append(batch, record)
				default:
					flush()
					return
				}
			}
		}
	}
}

func (l *PostgresLogger) writeTransactions(ctx context.Context, records []*TransactionRecord) error {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSinkUnavailable, err)
	}

	for _, record := range records {
		if _, err := tx.ExecContext(ctx, insertTransactionSQL,
			record.ID,
			record.TraceID,
			record.AgentID,
			record.UserID,
			record.Provider,
			record.Model,
			record.TokensUsed,
			record.CostUSD,
			record.LatencyMs,
			record.Status,
			record.Timestamp,
		); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("%w: %v", ErrSinkUnavailable, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: %v", ErrSinkUnavailable, err)
	}
	return nil
}

// Ping verifies the audit store is reachable
func (l *PostgresLogger) Ping(ctx context.Context) error {
	if err := l.db.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrSinkUnavailable, err)
	}
	return nil
}

// Close flushes queued records and releases the database handle
func (l *PostgresLogger) Close() error {
	l.closeOnce.Do(func() {
		close(l.shutdownChan)
		l.wg.Wait()
	})
	return l.db.Close()
}
