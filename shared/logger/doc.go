// Copyright 2025 CoReason, Inc.
// SPDX-License-Identifier: Apache-2.0

/*
Package logger provides structured JSON logging with per-request trace
correlation for Conductor components.

# Overview

The logger outputs single-line JSON to stdout, making logs easily
consumable by CloudWatch, ELK stack, or other log aggregation systems.

Each log entry includes:
  - Timestamp (RFC3339Nano format)
  - Log level (DEBUG, INFO, WARN, ERROR)
  - Component name (gateway, audit, budget, ...)
  - Instance ID and container name
  - Trace ID (read from the request context)
  - Custom fields

# Usage

Create a logger for your component:

	log := logger.New("gateway")

Bind the trace identifier once per request (the tracing middleware does
this), then log with that context:

	ctx = logger.WithTrace(ctx, traceID)
	log.Info(ctx, "Processing request", map[string]interface{}{
	    "method": "POST",
	    "path":   "/v1/run/agent-1",
	})

# Environment Variables

  - INSTANCE_ID: Deployment instance identifier
  - HOSTNAME: Container hostname (auto-detected)

# Thread Safety

Logger instances are safe for concurrent use from multiple goroutines.
Trace identifiers travel on the context, never on the logger, so
concurrent requests never observe each other's trace ID.
*/
package logger
