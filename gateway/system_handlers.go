// Copyright 2025 CoReason, Inc.
// SPDX-License-Identifier: Apache-2.0

package gateway

import (
	"context"
	"net/http"
	"time"
)

const readinessTimeout = 5 * time.Second

// pinger is satisfied by any port that can report backend health.
type pinger interface {
	Ping(ctx context.Context) error
}

// livenessHandler reports process liveness without touching dependencies.
func (s *Server) livenessHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// readinessHandler pings every health-checkable dependency and reports
// per-port failures. Ports that do not expose Ping are skipped.
func (s *Server) readinessHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
	defer cancel()

	checks := map[string]interface{}{
		"vault":    s.secrets,
		"ledger":   s.budget,
		"auditor":  s.auditor,
		"identity": s.identity,
	}

	details := make(map[string]string)
	for name, port := range checks {
		p, ok := port.(pinger)
		if !ok || port == nil {
			continue
		}
		if err := p.Ping(ctx); err != nil {
			details[name] = err.Error()
		}
	}

	if len(details) > 0 {
		s.log.Warn(ctx, "Readiness check failed", map[string]interface{}{
			"details": details,
		})
		writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
			"status":  "unhealthy",
			"details": details,
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
