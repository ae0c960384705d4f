// Copyright 2025 CoReason, Inc.
// SPDX-License-Identifier: Apache-2.0

package gateway

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"coreason/conductor/audit"
	"coreason/conductor/manifest"
	"coreason/conductor/policy"
)

// PublishRequest is the body of POST /v1/architect/publish.
type PublishRequest struct {
	AgentDefinition map[string]interface{} `json:"agent_definition"`
	Slug            string                 `json:"slug"`
}

// PublishResponse is returned after an artifact is sealed.
type PublishResponse struct {
	Signature string                 `json:"signature"`
	Status    string                 `json:"status"`
	Artifact  map[string]interface{} `json:"artifact"`
}

// publishAgentHandler validates, seals, and stores an agent definition.
// The slug must be byte-identical to metadata.name: the published handle
// and the declared name are one value, not a derivation.
func (s *Server) publishAgentHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	start := time.Now()
	defer func() {
		promRequestDuration.WithLabelValues("publish").Observe(float64(time.Since(start).Milliseconds()))
	}()

	user, ok := s.authenticate(w, r)
	if !ok {
		return
	}

	var req PublishRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "Invalid request body: "+err.Error(), http.StatusUnprocessableEntity)
		return
	}

	if err := s.manifests.Validate(req.AgentDefinition); err != nil {
		writeError(w, "Manifest validation failed: "+err.Error(), http.StatusBadRequest)
		return
	}

	def, err := manifest.Load(req.AgentDefinition)
	if err != nil {
		writeError(w, "Failed to load agent definition: "+err.Error(), http.StatusBadRequest)
		return
	}

	if req.Slug != def.Metadata.Name {
		writeError(w, fmt.Sprintf("Slug %q does not match metadata.name %q", req.Slug, def.Metadata.Name), http.StatusBadRequest)
		return
	}

	signature, err := s.sealer.Seal(req.AgentDefinition)
	if err != nil {
		s.log.Error(ctx, "Failed to seal artifact", map[string]interface{}{
			"slug":  req.Slug,
			"error": err.Error(),
		})
		writeError(w, "Failed to seal artifact", http.StatusInternalServerError)
		return
	}

	// Storage and the publish audit record are best-effort: the seal is
	// the contract, persistence failures must not unpublish it.
	if s.artifacts != nil {
		if err := s.artifacts.Put(ctx, def.Metadata.Name, signature, req.AgentDefinition); err != nil {
			s.log.Error(ctx, "Failed to store sealed artifact", map[string]interface{}{
				"slug":  req.Slug,
				"error": err.Error(),
			})
		}
	}
	if err := s.auditor.LogEvent(ctx, audit.EventAgentPublished, map[string]interface{}{
		"slug":      req.Slug,
		"user_id":   user.Subject,
		"signature": signature,
	}); err != nil {
		s.log.Warn(ctx, "Failed to audit publish", map[string]interface{}{
			"slug":  req.Slug,
			"error": err.Error(),
		})
	}

	writeJSON(w, http.StatusOK, PublishResponse{
		Signature: signature,
		Status:    "published",
		Artifact:  req.AgentDefinition,
	})
}

// GenerateRequest is the body of POST /v1/architect/generate.
type GenerateRequest struct {
	Prompt string `json:"prompt"`
	Model  string `json:"model,omitempty"`
}

// GenerateResponse carries generated agent code and the policies the
// generator enforces.
type GenerateResponse struct {
	GeneratedCode    string   `json:"generated_code"`
	PoliciesEnforced []string `json:"policies_enforced"`
}

func (s *Server) generateAgentHandler(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.authenticate(w, r); !ok {
		return
	}

	var req GenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "Invalid request body: "+err.Error(), http.StatusUnprocessableEntity)
		return
	}
	if req.Prompt == "" {
		writeError(w, "prompt is required", http.StatusUnprocessableEntity)
		return
	}

	writeJSON(w, http.StatusOK, GenerateResponse{
		GeneratedCode:    fmt.Sprintf("# Generated code based on: %s\n# Policies enforced.", req.Prompt),
		PoliciesEnforced: policy.EnforcedRules(),
	})
}

// SimulateRequest is the body of POST /v1/architect/simulate.
type SimulateRequest struct {
	AgentCode string                 `json:"agent_code"`
	InputData map[string]interface{} `json:"input_data"`
}

// simulateAgentHandler runs a draft agent in the execution runtime
// without publishing it.
func (s *Server) simulateAgentHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if _, ok := s.authenticate(w, r); !ok {
		return
	}

	var req SimulateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "Invalid request body: "+err.Error(), http.StatusUnprocessableEntity)
		return
	}

	result, err := s.runtime.Simulate(ctx, req.AgentCode, req.InputData)
	if err != nil {
		s.log.Error(ctx, "Simulation failed", map[string]interface{}{
			"error": err.Error(),
		})
		writeError(w, "Simulation failed: "+err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, result)
}
