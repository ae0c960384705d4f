// Copyright 2025 CoReason, Inc.
// SPDX-License-Identifier: Apache-2.0

package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"coreason/conductor/audit"
	"coreason/conductor/budget"
	"coreason/conductor/identity"
	"coreason/conductor/policy"
	"coreason/conductor/shared/logger"
)

// settlementTimeout bounds the background charge after the response has
// already been sent.
const settlementTimeout = 10 * time.Second

// RunRequest is the body of POST /v1/run/{agent_id}.
type RunRequest struct {
	InputData      map[string]interface{} `json:"input_data"`
	SessionContext map[string]interface{} `json:"session_context,omitempty"`
	CostEstimate   *float64               `json:"cost_estimate,omitempty"`
}

// RunResponse is the success envelope for a run.
type RunResponse struct {
	Result        interface{} `json:"result"`
	TransactionID string      `json:"transaction_id"`
}

// authenticate enforces bearer auth. A missing header fails before any
// port is called; identity errors map to a generic 401 with the detail
// kept server-side.
func (s *Server) authenticate(w http.ResponseWriter, r *http.Request) (*identity.UserContext, bool) {
	ctx := r.Context()

	credential := r.Header.Get("Authorization")
	if credential == "" {
		promPipelineRejections.WithLabelValues("auth").Inc()
		writeError(w, "Not authenticated", http.StatusUnauthorized)
		return nil, false
	}

	user, err := s.identity.Validate(ctx, credential)
	if err != nil {
		s.log.Warn(ctx, "Authentication failed", map[string]interface{}{
			"error": err.Error(),
		})
		promPipelineRejections.WithLabelValues("auth").Inc()
		writeError(w, "Invalid authentication credentials", http.StatusUnauthorized)
		return nil, false
	}
	return user, true
}

// runAgentHandler executes the governed run pipeline:
// authenticate, policy check, budget check, audit start, execute,
// settle (async), audit end, respond.
func (s *Server) runAgentHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	start := time.Now()
	defer func() {
		promRequestDuration.WithLabelValues("run").Observe(float64(time.Since(start).Milliseconds()))
	}()

	agentID := mux.Vars(r)["agent_id"]

	var req RunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "Invalid request body: "+err.Error(), http.StatusUnprocessableEntity)
		return
	}
	costEstimate := 1.0
	if req.CostEstimate != nil {
		costEstimate = *req.CostEstimate
	}
	if costEstimate < 0 {
		writeError(w, "cost_estimate must be non-negative", http.StatusUnprocessableEntity)
		return
	}

	user, ok := s.authenticate(w, r)
	if !ok {
		return
	}

	// Policy check only runs when a gatekeeper is configured.
	if s.gatekeeper != nil {
		if err := s.gatekeeper.CheckAccess(ctx, agentID, user); err != nil {
			promPipelineRejections.WithLabelValues("policy").Inc()
			var compliance *policy.ComplianceError
			switch {
			case errors.As(err, &compliance):
				writeError(w, compliance.Reason, http.StatusForbidden)
			case errors.Is(err, policy.ErrAccessDenied):
				writeError(w, err.Error(), http.StatusForbidden)
			default:
				s.log.Error(ctx, "Policy evaluation failed", map[string]interface{}{
					"agent_id": agentID,
					"error":    err.Error(),
				})
				writeError(w, "Policy check failed", http.StatusInternalServerError)
			}
			return
		}
	}

	// Budget is fail-closed: an unreachable ledger denies the request.
	allowed, err := s.budget.CheckQuota(ctx, budget.QuotaCheck{
		UserID:        user.Subject,
		ProjectID:     user.ProjectContext,
		EstimatedCost: costEstimate,
	})
	if err != nil {
		s.log.Error(ctx, "Budget check failed, denying request", map[string]interface{}{
			"agent_id": agentID,
			"user_id":  user.Subject,
			"error":    err.Error(),
		})
		promPipelineRejections.WithLabelValues("budget").Inc()
		writeError(w, "Insufficient quota", http.StatusPaymentRequired)
		return
	}
	if !allowed {
		promPipelineRejections.WithLabelValues("budget").Inc()
		writeError(w, "Insufficient quota", http.StatusPaymentRequired)
		return
	}

	// Audit start is fatal: no execution happens without a durable record.
	err = s.auditor.LogEvent(ctx, audit.EventExecutionStart, map[string]interface{}{
		"agent_id":      agentID,
		"user_id":       user.Subject,
		"cost_estimate": costEstimate,
	})
	if err != nil {
		s.log.Error(ctx, "Audit start failed", map[string]interface{}{
			"agent_id": agentID,
			"error":    err.Error(),
		})
		promPipelineRejections.WithLabelValues("audit").Inc()
		writeError(w, "Audit logging failed", http.StatusInternalServerError)
		return
	}

	// The authenticated identity always wins over caller-supplied context.
	sessionCtx := make(map[string]interface{}, len(req.SessionContext)+1)
	for k, v := range req.SessionContext {
		sessionCtx[k] = v
	}
	sessionCtx["user_id"] = user.Subject

	result, err := s.runtime.ExecuteAgent(ctx, agentID, req.InputData, sessionCtx)
	if err != nil {
		if auditErr := s.auditor.LogEvent(ctx, audit.EventExecutionFailed, map[string]interface{}{
			"agent_id": agentID,
			"user_id":  user.Subject,
			"error":    err.Error(),
		}); auditErr != nil {
			s.log.Error(ctx, "Failed to audit execution failure", map[string]interface{}{
				"agent_id": agentID,
				"error":    auditErr.Error(),
			})
		}
		promPipelineRejections.WithLabelValues("execution").Inc()
		writeError(w, "Agent execution failed: "+err.Error(), http.StatusInternalServerError)
		return
	}

	s.settle(ctx, agentID, user, costEstimate)

	if err := s.auditor.LogEvent(ctx, audit.EventExecutionEnd, map[string]interface{}{
		"agent_id": agentID,
		"user_id":  user.Subject,
		"status":   "success",
	}); err != nil {
		s.log.Error(ctx, "Audit end failed", map[string]interface{}{
			"agent_id": agentID,
			"error":    err.Error(),
		})
	}

	writeJSON(w, http.StatusOK, RunResponse{
		Result:        result,
		TransactionID: uuid.NewString(),
	})
}

// settle charges actual spend in the background. The request context is
// not reused: the charge must survive the response being written.
func (s *Server) settle(reqCtx context.Context, agentID string, user *identity.UserContext, cost float64) {
	traceID := logger.Trace(reqCtx)
	s.settlements.Add(1)
	go func() {
		defer s.settlements.Done()
		ctx, cancel := context.WithTimeout(context.Background(), settlementTimeout)
		defer cancel()
		ctx = logger.WithTrace(ctx, traceID)

		if err := s.budget.Charge(ctx, budget.Transaction{
			UserID:    user.Subject,
			ProjectID: user.ProjectContext,
			AgentID:   agentID,
			Cost:      cost,
		}); err != nil {
			promSettlementFailures.Inc()
			s.log.Error(ctx, "Budget settlement failed", map[string]interface{}{
				"agent_id": agentID,
				"user_id":  user.Subject,
				"cost":     cost,
				"error":    err.Error(),
			})
			return
		}

		if err := s.auditor.LogTransaction(ctx, audit.TransactionRecord{
			ID:        uuid.NewString(),
			TraceID:   traceID,
			AgentID:   agentID,
			UserID:    user.Subject,
			CostUSD:   cost,
			Status:    "settled",
			Timestamp: time.Now().UTC(),
		}); err != nil {
			s.log.Warn(ctx, "Failed to record settlement transaction", map[string]interface{}{
				"agent_id": agentID,
				"error":    err.Error(),
			})
		}
	}()
}
