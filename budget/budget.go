// Copyright 2025 CoReason, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package budget enforces spend caps for agent execution.
// It provides a Guard port backed by a Redis ledger with daily caps at
// global, project, and user scope.
package budget

import (
	"context"
	"errors"
)

var (
	// ErrLedgerUnavailable is returned when the ledger backend cannot be reached
	ErrLedgerUnavailable = errors.New("ledger unavailable")

	// ErrInvalidCost is returned for negative cost values
	ErrInvalidCost = errors.New("cost must be non-negative")
)

// QuotaCheck is the input for a pre-execution quota decision.
type QuotaCheck struct {
	UserID        string
	ProjectID     string
	EstimatedCost float64
}

// Transaction records a spend settlement after execution.
type Transaction struct {
	UserID    string
	ProjectID string
	AgentID   string
	Model     string
	Cost      float64
}

// Guard is the budget port. CheckQuota decides whether a request may
// proceed; Charge settles actual spend after execution.
type Guard interface {
	CheckQuota(ctx context.Context, check QuotaCheck) (bool, error)
	Charge(ctx context.Context, tx Transaction) error
}
