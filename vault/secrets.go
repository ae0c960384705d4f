// Copyright 2025 CoReason, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package vault provides secret retrieval for the Conductor gateway.
// It exposes a narrow SecretsManager port with adapters for AWS Secrets
// Manager, environment variables, and an in-memory store for development.
package vault

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
)

// ErrSecretNotFound is returned when the backing store has no value for a key.
var ErrSecretNotFound = errors.New("secret not found")

// SecretsManager retrieves named secrets from a backing store.
type SecretsManager interface {
	// GetSecret returns the secret value for key, or ErrSecretNotFound.
	GetSecret(ctx context.Context, key string) (string, error)
	// Ping verifies the backing store is reachable.
	Ping(ctx context.Context) error
}

// Lookup retrieves a secret and substitutes fallback on any error.
// This is the only port where errors are swallowed; callers that need
// the error (readiness checks, settings resolution) use GetSecret directly.
func Lookup(ctx context.Context, m SecretsManager, key, fallback string) string {
	if m == nil {
		return fallback
	}
	value, err := m.GetSecret(ctx, key)
	if err != nil {
		return fallback
	}
	return value
}

// AWSSecretsManager implements SecretsManager using AWS Secrets Manager
type AWSSecretsManager struct {
	client *secretsmanager.Client
	prefix string
	cache  map[string]*secretCacheEntry
	mu     sync.RWMutex
	ttl    time.Duration
}

type secretCacheEntry struct {
	value     string
	expiresAt time.Time
}

// AWSSecretsManagerOptions holds options for creating an AWSSecretsManager
type AWSSecretsManagerOptions struct {
	Region string
	// Prefix is prepended to every key, e.g. "conductor/prod/".
	Prefix   string
	CacheTTL time.Duration
}

// NewAWSSecretsManager creates a new AWS Secrets Manager client
func NewAWSSecretsManager(ctx context.Context, opts AWSSecretsManagerOptions) (*AWSSecretsManager, error) {
	cfgOpts := []func(*awsconfig.LoadOptions) error{}
	if opts.Region != "" {
		cfgOpts = append(cfgOpts, awsconfig.WithRegion(opts.Region))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, cfgOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	ttl := opts.CacheTTL
	if ttl <= 0 {
		ttl = 5 * time.Minute // Cache secrets for 5 minutes by default
	}

	return &AWSSecretsManager{
		client: secretsmanager.NewFromConfig(cfg),
		prefix: opts.Prefix,
		cache:  make(map[string]*secretCacheEntry),
		ttl:    ttl,
	}, nil
}

// GetSecret retrieves a secret string from AWS Secrets Manager
func (s *AWSSecretsManager) GetSecret(ctx context.Context, key string) (string, error) {
	secretID := s.prefix + key

	s.mu.RLock()
	entry, exists := s.cache[secretID]
	s.mu.RUnlock()

	if exists && time.Now().Before(entry.expiresAt) {
		return entry.value, nil
	}

	input := &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(secretID),
	}

	result, err := s.client.GetSecretValue(ctx, input)
	if err != nil {
		if strings.Contains(err.Error(), "ResourceNotFoundException") {
			return "", fmt.Errorf("%w: %s", ErrSecretNotFound, maskKey(secretID))
		}
		return "", fmt.Errorf("failed to get secret %s: %w", maskKey(secretID), err)
	}

	if result.SecretString == nil {
		return "", fmt.Errorf("secret %s has no string value", maskKey(secretID))
	}

	s.mu.Lock()
	s.cache[secretID] = &secretCacheEntry{
		value:     *result.SecretString,
		expiresAt: time.Now().Add(s.ttl),
	}
	s.mu.Unlock()

	return *result.SecretString, nil
}

// Ping verifies the Secrets Manager API is reachable
func (s *AWSSecretsManager) Ping(ctx context.Context) error {
	maxResults := int32(1)
	_, err := s.client.ListSecrets(ctx, &secretsmanager.ListSecretsInput{MaxResults: &maxResults})
	if err != nil {
		return fmt.Errorf("secrets manager unreachable: %w", err)
	}
	return nil
}

// InvalidateSecret removes a secret from the cache
func (s *AWSSecretsManager) InvalidateSecret(key string) {
	s.mu.Lock()
	delete(s.cache, s.prefix+key)
	s.mu.Unlock()
}

// InvalidateAll clears the entire secret cache
func (s *AWSSecretsManager) InvalidateAll() {
	s.mu.Lock()
	s.cache = make(map[string]*secretCacheEntry)
	s.mu.Unlock()
}

// maskKey masks the secret identifier for logging (shows only last 8 characters)
func maskKey(key string) string {
	if len(key) <= 12 {
		return "***"
	}
	return "..." + key[len(key)-8:]
}

// EnvSecretsManager implements SecretsManager using environment variables.
// Useful for development and OSS deployments without AWS Secrets Manager.
type EnvSecretsManager struct {
	prefix string
}

// NewEnvSecretsManager creates a secrets manager that reads env vars with
// the given prefix (e.g. prefix "CONDUCTOR_" resolves key "JWT_SECRET"
// from CONDUCTOR_JWT_SECRET, falling back to the bare variable name).
func NewEnvSecretsManager(prefix string) *EnvSecretsManager {
	return &EnvSecretsManager{prefix: prefix}
}

// GetSecret retrieves a secret from the process environment
func (s *EnvSecretsManager) GetSecret(ctx context.Context, key string) (string, error) {
	if value := os.Getenv(s.prefix + key); value != "" {
		return value, nil
	}
	if s.prefix != "" {
		if value := os.Getenv(key); value != "" {
			return value, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrSecretNotFound, key)
}

// Ping always succeeds; the environment is always reachable
func (s *EnvSecretsManager) Ping(ctx context.Context) error {
	return nil
}

// LocalSecretsManager implements SecretsManager using an in-memory map.
// Useful for tests.
type LocalSecretsManager struct {
	secrets map[string]string
	pingErr error
	mu      sync.RWMutex
}

// NewLocalSecretsManager creates a local secrets manager for development
func NewLocalSecretsManager() *LocalSecretsManager {
	return &LocalSecretsManager{secrets: make(map[string]string)}
}

// GetSecret retrieves a secret from local storage
func (s *LocalSecretsManager) GetSecret(ctx context.Context, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if secret, exists := s.secrets[key]; exists {
		return secret, nil
	}
	return "", fmt.Errorf("%w: %s", ErrSecretNotFound, key)
}

// SetSecret stores a secret locally
func (s *LocalSecretsManager) SetSecret(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.secrets[key] = value
}

// SetPingError injects a reachability failure (for tests)
func (s *LocalSecretsManager) SetPingError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pingErr = err
}

// Ping reports the injected reachability state
func (s *LocalSecretsManager) Ping(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pingErr
}
