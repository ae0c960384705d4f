// Copyright 2025 CoReason, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package policy decides whether an authenticated caller may run a given
// agent. The gateway treats the gatekeeper as optional; when no
// gatekeeper is configured, every access is allowed.
package policy

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"coreason/conductor/identity"
)

// ErrAccessDenied is the plain deny outcome (mapped to 403 by the gateway).
var ErrAccessDenied = errors.New("access denied")

// ComplianceError is a policy violation carrying the stated reason.
// It also maps to 403, with the reason surfaced to the caller.
type ComplianceError struct {
	Reason string
}

func (e *ComplianceError) Error() string {
	return fmt.Sprintf("compliance violation: %s", e.Reason)
}

// Gatekeeper is the policy port.
type Gatekeeper interface {
	// CheckAccess returns nil to allow, ErrAccessDenied or *ComplianceError
	// to deny, and any other error for an evaluation failure.
	CheckAccess(ctx context.Context, agentID string, user *identity.UserContext) error
}

// RuleGatekeeper enforces a required permission and an agent deny list.
//
// Permission format: "run:agent-id", with wildcard support:
//   - "run:my-agent" grants one agent
//   - "run:*" grants all agents
//   - "*" grants everything
type RuleGatekeeper struct {
	mu           sync.RWMutex
	deniedAgents map[string]string // agent id -> violation reason
}

// NewRuleGatekeeper creates a gatekeeper with an empty deny list
func NewRuleGatekeeper() *RuleGatekeeper {
	return &RuleGatekeeper{deniedAgents: make(map[string]string)}
}

// DenyAgent marks an agent as non-compliant with the given reason
func (g *RuleGatekeeper) DenyAgent(agentID, reason string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.deniedAgents[agentID] = reason
}

// CheckAccess evaluates the deny list, then the caller's permissions
func (g *RuleGatekeeper) CheckAccess(ctx context.Context, agentID string, user *identity.UserContext) error {
	if agentID == "" {
		return fmt.Errorf("agent id cannot be empty")
	}
	if user == nil {
		return fmt.Errorf("user context is nil")
	}

	g.mu.RLock()
	reason, denied := g.deniedAgents[agentID]
	g.mu.RUnlock()
	if denied {
		return &ComplianceError{Reason: reason}
	}

	required := "run:" + agentID
	if hasPermission(user.Permissions, required) ||
		hasPermission(user.Permissions, "run:*") ||
		hasPermission(user.Permissions, "*") {
		return nil
	}

	return ErrAccessDenied
}

// EnforcedRules names the static policies applied to generated agent
// code. Surfaced verbatim by the architect generate endpoint.
func EnforcedRules() []string {
	return []string{
		"No unsafe deserialization",
		"No dynamic code evaluation",
		"No external network calls except via the execution runtime",
	}
}

func hasPermission(permissions []string, required string) bool {
	for _, p := range permissions {
		if strings.TrimSpace(p) == required {
			return true
		}
	}
	return false
}
