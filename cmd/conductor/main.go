// Copyright 2025 CoReason, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package main is the entry point for the Conductor service.
//
// The Conductor is the HTTP orchestration layer of the platform: it
// authenticates callers, enforces policy and budget, writes audit
// records, and delegates agent execution to the runtime.
//
// Usage:
//
//	./conductor
//
// Environment Variables:
//
//	PORT - HTTP server port (default: 8080)
//	JWT_SECRET - HMAC secret for bearer token validation
//	REDIS_URL - budget ledger connection string
//	AUDIT_DATABASE_URL - PostgreSQL connection string for audit records
//	RUNTIME_ENDPOINT - execution runtime base URL
//	SRB_SEALING_KEY - HMAC key for artifact sealing
//	ARTIFACT_BUCKET - S3 bucket for sealed artifacts (optional)
//	SECRETS_BACKEND - "aws" to resolve settings from AWS Secrets Manager
package main

import (
	"coreason/conductor/gateway"
)

func main() {
	gateway.Run()
}
