// Copyright 2025 CoReason, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package audit persists immutable audit events for the Conductor gateway.
//
// Pipeline events (EXECUTION_START, EXECUTION_END, EXECUTION_FAILED) are
// written synchronously because the run pipeline's failure policy depends
// on the write outcome. High-volume transaction records go through a
// background queue with a batch writer.
package audit

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrSinkUnavailable is returned when the audit store cannot be reached
	ErrSinkUnavailable = errors.New("audit sink unavailable")

	// ErrInvalidEvent is returned for events missing a type
	ErrInvalidEvent = errors.New("invalid audit event")
)

// Event types emitted by the run pipeline.
const (
	EventExecutionStart  = "EXECUTION_START"
	EventExecutionEnd    = "EXECUTION_END"
	EventExecutionFailed = "EXECUTION_FAILED"
	EventAgentPublished  = "AGENT_PUBLISHED"
)

// Event is one immutable audit log entry.
type Event struct {
	ID        string                 `json:"id"`
	TraceID   string                 `json:"trace_id,omitempty"`
	EventType string                 `json:"event_type"`
	Timestamp time.Time              `json:"timestamp"`
	Payload   map[string]interface{} `json:"payload,omitempty"`
}

// TransactionRecord is a structured LLM-transaction entry with token,
// cost, and latency fields.
type TransactionRecord struct {
	ID         string    `json:"id"`
	TraceID    string    `json:"trace_id,omitempty"`
	AgentID    string    `json:"agent_id"`
	UserID     string    `json:"user_id"`
	Provider   string    `json:"provider,omitempty"`
	Model      string    `json:"model,omitempty"`
	TokensUsed int       `json:"tokens_used,omitempty"`
	CostUSD    float64   `json:"cost_usd"`
	LatencyMs  int64     `json:"latency_ms"`
	Status     string    `json:"status"`
	Timestamp  time.Time `json:"timestamp"`
}

// Logger is the audit port.
type Logger interface {
	// LogEvent persists one event synchronously and reports the outcome.
	LogEvent(ctx context.Context, eventType string, payload map[string]interface{}) error
	// LogTransaction enqueues a transaction record for asynchronous batch write.
	LogTransaction(ctx context.Context, record TransactionRecord) error
}
