// Copyright 2025 CoReason, Inc.
// SPDX-License-Identifier: Apache-2.0

package gateway

import (
	"context"
	"io"
	"sync"
	"testing"

	"coreason/conductor/audit"
	"coreason/conductor/budget"
	"coreason/conductor/execution"
	"coreason/conductor/identity"
	"coreason/conductor/manifest"
	"coreason/conductor/shared/logger"
	"coreason/conductor/vault"
)

// mockIdentity validates any credential as a fixed user unless an error
// is injected.
type mockIdentity struct {
	mu      sync.Mutex
	user    *identity.UserContext
	err     error
	pingErr error
	calls   int
}

func (m *mockIdentity) Validate(ctx context.Context, credential string) (*identity.UserContext, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return m.user, nil
}

func (m *mockIdentity) Ping(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pingErr
}

func (m *mockIdentity) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// mockGuard records quota checks and charges with injectable failures.
type mockGuard struct {
	mu         sync.Mutex
	allow      bool
	checkErr   error
	chargeErr  error
	pingErr    error
	checkCalls int
	charges    []budget.Transaction
}

func (m *mockGuard) CheckQuota(ctx context.Context, check budget.QuotaCheck) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checkCalls++
	if m.checkErr != nil {
		return false, m.checkErr
	}
	return m.allow, nil
}

func (m *mockGuard) Charge(ctx context.Context, tx budget.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.chargeErr != nil {
		return m.chargeErr
	}
	m.charges = append(m.charges, tx)
	return nil
}

func (m *mockGuard) Ping(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pingErr
}

func (m *mockGuard) checkCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.checkCalls
}

func (m *mockGuard) chargedTransactions() []budget.Transaction {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]budget.Transaction, len(m.charges))
	copy(out, m.charges)
	return out
}

type auditedEvent struct {
	Type    string
	Payload map[string]interface{}
}

// mockAuditor records events, with per-event-type error injection.
type mockAuditor struct {
	mu        sync.Mutex
	failEvent map[string]error
	txErr     error
	pingErr   error
	events    []auditedEvent
	txs       []audit.TransactionRecord
}

func (m *mockAuditor) LogEvent(ctx context.Context, eventType string, payload map[string]interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err, ok := m.failEvent[eventType]; ok {
		return err
	}
	m.events = append(m.events, auditedEvent{Type: eventType, Payload: payload})
	return nil
}

func (m *mockAuditor) LogTransaction(ctx context.Context, record audit.TransactionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.txErr != nil {
		return m.txErr
	}
	m.txs = append(m.txs, record)
	return nil
}

func (m *mockAuditor) Ping(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pingErr
}

func (m *mockAuditor) failOn(eventType string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failEvent == nil {
		m.failEvent = make(map[string]error)
	}
	m.failEvent[eventType] = err
}

func (m *mockAuditor) recordedEvents() []auditedEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]auditedEvent, len(m.events))
	copy(out, m.events)
	return out
}

func (m *mockAuditor) eventTypes() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	types := make([]string, 0, len(m.events))
	for _, e := range m.events {
		types = append(types, e.Type)
	}
	return types
}

// mockRuntime captures execution arguments and returns a canned result.
type mockRuntime struct {
	mu         sync.Mutex
	result     interface{}
	err        error
	panics     bool
	calls      int
	gotAgentID string
	gotInput   map[string]interface{}
	gotSession map[string]interface{}
	simResult  *execution.SimulationResult
	simErr     error
}

func (m *mockRuntime) ExecuteAgent(ctx context.Context, agentID string, input, sessionCtx map[string]interface{}) (interface{}, error) {
	m.mu.Lock()
	m.calls++
	m.gotAgentID = agentID
	m.gotInput = input
	m.gotSession = sessionCtx
	panics := m.panics
	m.mu.Unlock()
	if panics {
		panic("runtime exploded")
	}
	if m.err != nil {
		return nil, m.err
	}
	return m.result, nil
}

func (m *mockRuntime) Simulate(ctx context.Context, agentCode string, input map[string]interface{}) (*execution.SimulationResult, error) {
	if m.simErr != nil {
		return nil, m.simErr
	}
	return m.simResult, nil
}

func (m *mockRuntime) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func (m *mockRuntime) sessionContext() map[string]interface{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.gotSession
}

// mockSealer signs anything with a fixed signature.
type mockSealer struct {
	sig string
	err error
}

func (m *mockSealer) Seal(artifact map[string]interface{}) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	return m.sig, nil
}

// mockArtifactStore records stored artifacts.
type mockArtifactStore struct {
	mu    sync.Mutex
	err   error
	calls int
	name  string
	sig   string
}

func (m *mockArtifactStore) Put(ctx context.Context, name, signature string, definition map[string]interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.name = name
	m.sig = signature
	return m.err
}

func (m *mockArtifactStore) putCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// testPorts bundles the mocks wired into a test server.
type testPorts struct {
	identity *mockIdentity
	guard    *mockGuard
	auditor  *mockAuditor
	runtime  *mockRuntime
	sealer   *mockSealer
	store    *mockArtifactStore
	secrets  *vault.LocalSecretsManager
}

func newTestServer(t *testing.T) (*Server, *testPorts) {
	t.Helper()

	ports := &testPorts{
		identity: &mockIdentity{user: &identity.UserContext{
			Subject:        "user-1",
			Email:          "user@example.com",
			ProjectContext: "project-42",
			Permissions:    []string{"run:*"},
		}},
		guard:   &mockGuard{allow: true},
		auditor: &mockAuditor{},
		runtime: &mockRuntime{
			result:    map[string]interface{}{"output": "ok"},
			simResult: &execution.SimulationResult{Output: "sim-ok", Logs: []string{"started", "finished"}},
		},
		sealer:  &mockSealer{sig: "sig-abc"},
		store:   &mockArtifactStore{},
		secrets: vault.NewLocalSecretsManager(),
	}

	manifests, err := manifest.NewValidator()
	if err != nil {
		t.Fatalf("failed to build manifest validator: %v", err)
	}

	lg := logger.New("gateway-test")
	lg.SetOutput(io.Discard)

	server := NewServer(Dependencies{
		Logger:    lg,
		Identity:  ports.identity,
		Budget:    ports.guard,
		Auditor:   ports.auditor,
		Runtime:   ports.runtime,
		Manifests: manifests,
		Sealer:    ports.sealer,
		Artifacts: ports.store,
		Secrets:   ports.secrets,
	})
	return server, ports
}
