// Copyright 2025 CoReason, Inc.
// SPDX-License-Identifier: Apache-2.0

package gateway

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func getPath(t *testing.T, handler http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestLiveness(t *testing.T) {
	server, ports := newTestServer(t)

	rec := getPath(t, server.Router(), "/health/live")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decodeBody(t, rec)["status"])
	assert.Zero(t, ports.identity.callCount(), "liveness must not touch dependencies")
}

func TestReadinessAllHealthy(t *testing.T) {
	server, _ := newTestServer(t)

	rec := getPath(t, server.Router(), "/health/ready")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ready", decodeBody(t, rec)["status"])
}

func TestReadinessReportsFailingPorts(t *testing.T) {
	server, ports := newTestServer(t)
	ports.guard.pingErr = errors.New("redis: connection refused")
	ports.secrets.SetPingError(errors.New("vault unreachable"))

	rec := getPath(t, server.Router(), "/health/ready")

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "unhealthy", body["status"])

	details, ok := body["details"].(map[string]interface{})
	require.True(t, ok)
	assert.Contains(t, details["ledger"], "connection refused")
	assert.Contains(t, details["vault"], "unreachable")
	assert.NotContains(t, details, "identity")
}

func TestMetricsEndpoint(t *testing.T) {
	server, _ := newTestServer(t)

	// Prime the counter so the series exists in the exposition.
	getPath(t, server.Router(), "/health/live")

	rec := getPath(t, server.Router(), "/metrics")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "conductor_gateway_requests_total")
}
