// Copyright 2025 CoReason, Inc.
// SPDX-License-Identifier: Apache-2.0

package vault

import (
	"context"
	"errors"
	"testing"
)

func TestEnvSecretsManager(t *testing.T) {
	t.Setenv("CONDUCTOR_TEST_SECRET", "from-prefixed")
	t.Setenv("BARE_TEST_SECRET", "from-bare")

	m := NewEnvSecretsManager("CONDUCTOR_")
	ctx := context.Background()

	value, err := m.GetSecret(ctx, "TEST_SECRET")
	if err != nil {
		t.Fatalf("GetSecret returned error: %v", err)
	}
	if value != "from-prefixed" {
		t.Errorf("expected prefixed value, got %q", value)
	}

	value, err = m.GetSecret(ctx, "BARE_TEST_SECRET")
	if err != nil {
		t.Fatalf("GetSecret fallback returned error: %v", err)
	}
	if value != "from-bare" {
		t.Errorf("expected bare fallback value, got %q", value)
	}

	_, err = m.GetSecret(ctx, "DOES_NOT_EXIST")
	if !errors.Is(err, ErrSecretNotFound) {
		t.Errorf("expected ErrSecretNotFound, got %v", err)
	}

	if err := m.Ping(ctx); err != nil {
		t.Errorf("env manager ping should never fail: %v", err)
	}
}

func TestLocalSecretsManager(t *testing.T) {
	m := NewLocalSecretsManager()
	ctx := context.Background()

	m.SetSecret("JWT_SECRET", "s3cret")

	value, err := m.GetSecret(ctx, "JWT_SECRET")
	if err != nil {
		t.Fatalf("GetSecret returned error: %v", err)
	}
	if value != "s3cret" {
		t.Errorf("expected s3cret, got %q", value)
	}

	_, err = m.GetSecret(ctx, "missing")
	if !errors.Is(err, ErrSecretNotFound) {
		t.Errorf("expected ErrSecretNotFound, got %v", err)
	}
}

func TestLocalSecretsManagerPingError(t *testing.T) {
	m := NewLocalSecretsManager()
	ctx := context.Background()

	if err := m.Ping(ctx); err != nil {
		t.Fatalf("ping should succeed by default: %v", err)
	}

	m.SetPingError(errors.New("vault unreachable"))
	if err := m.Ping(ctx); err == nil {
		t.Error("expected injected ping error")
	}
}

func TestLookupSwallowsErrors(t *testing.T) {
	m := NewLocalSecretsManager()
	ctx := context.Background()

	if got := Lookup(ctx, m, "missing", "fallback"); got != "fallback" {
		t.Errorf("expected fallback on missing key, got %q", got)
	}

	m.SetSecret("present", "value")
	if got := Lookup(ctx, m, "present", "fallback"); got != "value" {
		t.Errorf("expected stored value, got %q", got)
	}

	if got := Lookup(ctx, nil, "any", "fallback"); got != "fallback" {
		t.Errorf("expected fallback with nil manager, got %q", got)
	}
}

func TestMaskKey(t *testing.T) {
	if got := maskKey("short"); got != "***" {
		t.Errorf("short keys should be fully masked, got %q", got)
	}
	if got := maskKey("conductor/prod/JWT_SECRET"); got != "...T_SECRET" {
		t.Errorf("unexpected mask: %q", got)
	}
}
