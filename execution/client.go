// Copyright 2025 CoReason, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package execution forwards agent runs to the downstream agent-runtime
// service over HTTP. The adapter translates call shapes only; errors
// propagate verbatim and failure policy lives in the gateway pipeline.
package execution

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// ErrExecutionFailed wraps downstream execution errors
var ErrExecutionFailed = errors.New("agent execution failed")

// SimulationResult is the outcome of a draft in-memory run.
type SimulationResult struct {
	Output interface{} `json:"output"`
	Logs   []string    `json:"logs"`
}

// SessionManager is the execution port.
type SessionManager interface {
	// ExecuteAgent runs the agent with the given input and session context.
	ExecuteAgent(ctx context.Context, agentID string, input, sessionCtx map[string]interface{}) (interface{}, error)
	// Simulate executes a draft agent in-memory without publishing it.
	Simulate(ctx context.Context, agentCode string, input map[string]interface{}) (*SimulationResult, error)
}

// Client talks to the agent-runtime service.
type Client struct {
	endpoint   string
	httpClient *http.Client
}

// NewClient creates a runtime client. A zero timeout defaults to 60s.
func NewClient(endpoint string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type executeRequest struct {
	InputData map[string]interface{} `json:"input_data"`
	Context   map[string]interface{} `json:"context,omitempty"`
}

type executeResponse struct {
	Result interface{} `json:"result"`
	Error  string      `json:"error,omitempty"`
}

// ExecuteAgent POSTs the run to the agent runtime and returns its result payload
func (c *Client) ExecuteAgent(ctx context.Context, agentID string, input, sessionCtx map[string]interface{}) (interface{}, error) {
	body, err := json.Marshal(executeRequest{InputData: input, Context: sessionCtx})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	runURL := fmt.Sprintf("%s/v1/agents/%s/execute", c.endpoint, url.PathEscape(agentID))
	var out executeResponse
	if err := c.post(ctx, runURL, body, &out); err != nil {
		return nil, err
	}
	return out.Result, nil
}

type simulateRequest struct {
	AgentCode string                 `json:"agent_code"`
	InputData map[string]interface{} `json:"input_data"`
}

// Simulate runs a draft agent without publishing it
func (c *Client) Simulate(ctx context.Context, agentCode string, input map[string]interface{}) (*SimulationResult, error) {
	body, err := json.Marshal(simulateRequest{AgentCode: agentCode, InputData: input})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	var out SimulationResult
	if err := c.post(ctx, c.endpoint+"/v1/simulate", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) post(ctx context.Context, postURL string, body []byte, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, postURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: runtime connection failed: %v", ErrExecutionFailed, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: %s", ErrExecutionFailed, readErrorDetail(resp.Body, resp.StatusCode))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: failed to decode runtime response: %v", ErrExecutionFailed, err)
	}
	return nil
}

// readErrorDetail extracts the runtime's error message from a failure body
func readErrorDetail(body io.Reader, statusCode int) string {
	raw, err := io.ReadAll(io.LimitReader(body, 4096))
	if err != nil || len(raw) == 0 {
		return fmt.Sprintf("runtime returned status %d", statusCode)
	}

	var payload struct {
		Error  string `json:"error"`
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(raw, &payload); err == nil {
		if payload.Error != "" {
			return payload.Error
		}
		if payload.Detail != "" {
			return payload.Detail
		}
	}
	return fmt.Sprintf("runtime returned status %d: %s", statusCode, string(raw))
}
