// Copyright 2025 CoReason, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package gateway is the Conductor's HTTP orchestration layer. It owns
// no business logic of its own: every request is a fixed sequence of
// calls into the platform ports (identity, policy, budget, audit,
// execution, manifest, seal, secrets) with per-step failure policy.
package gateway

import (
	"sync"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"coreason/conductor/artifacts"
	"coreason/conductor/audit"
	"coreason/conductor/budget"
	"coreason/conductor/execution"
	"coreason/conductor/identity"
	"coreason/conductor/manifest"
	"coreason/conductor/policy"
	"coreason/conductor/seal"
	"coreason/conductor/shared/logger"
	"coreason/conductor/vault"
)

// Dependencies carries every port the gateway orchestrates.
// Optional ports (Gatekeeper, Artifacts) may be nil.
type Dependencies struct {
	Logger     *logger.Logger
	Identity   identity.Validator
	Gatekeeper policy.Gatekeeper
	Budget     budget.Guard
	Auditor    audit.Logger
	Runtime    execution.SessionManager
	Manifests  *manifest.Validator
	Sealer     seal.Sealer
	Artifacts  artifacts.Store
	Secrets    vault.SecretsManager
}

// Server wires the ports into HTTP handlers.
type Server struct {
	log        *logger.Logger
	identity   identity.Validator
	gatekeeper policy.Gatekeeper
	budget     budget.Guard
	auditor    audit.Logger
	runtime    execution.SessionManager
	manifests  *manifest.Validator
	sealer     seal.Sealer
	artifacts  artifacts.Store
	secrets    vault.SecretsManager

	settlements sync.WaitGroup
}

// NewServer creates a gateway server from its dependencies
func NewServer(deps Dependencies) *Server {
	log := deps.Logger
	if log == nil {
		log = logger.New("gateway")
	}
	return &Server{
		log:        log,
		identity:   deps.Identity,
		gatekeeper: deps.Gatekeeper,
		budget:     deps.Budget,
		auditor:    deps.Auditor,
		runtime:    deps.Runtime,
		manifests:  deps.Manifests,
		sealer:     deps.Sealer,
		artifacts:  deps.Artifacts,
		secrets:    deps.Secrets,
	}
}

// Router builds the HTTP route table
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.traceMiddleware, s.recoveryMiddleware)

	// System endpoints
	r.HandleFunc("/health/live", s.livenessHandler).Methods("GET")
	r.HandleFunc("/health/ready", s.readinessHandler).Methods("GET")
	r.Handle("/metrics", promhttp.Handler()).Methods("GET")

	// Runtime
	r.HandleFunc("/v1/run/{agent_id}", s.runAgentHandler).Methods("POST")

	// Architect
	r.HandleFunc("/v1/architect/publish", s.publishAgentHandler).Methods("POST")
	r.HandleFunc("/v1/architect/generate", s.generateAgentHandler).Methods("POST")
	r.HandleFunc("/v1/architect/simulate", s.simulateAgentHandler).Methods("POST")

	return r
}

// waitSettlements blocks until in-flight background settlements finish.
// Called on shutdown and by tests that assert on settlement side effects.
func (s *Server) waitSettlements() {
	s.settlements.Wait()
}

// Close drains background work
func (s *Server) Close() error {
	s.waitSettlements()
	return nil
}
