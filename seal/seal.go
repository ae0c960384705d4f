// Copyright 2025 CoReason, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package seal produces cryptographic seals over published agent
// artifacts. The seal is an HMAC-SHA256 over the artifact's canonical
// JSON form; json.Marshal sorts map keys, so equal artifacts always
// produce equal seals.
package seal

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrNoKey is returned when constructing an anchor without key material
	ErrNoKey = errors.New("sealing key required")

	// ErrSealFailed wraps artifact serialization failures
	ErrSealFailed = errors.New("failed to seal artifact")
)

// Sealer is the sealing port.
type Sealer interface {
	Seal(artifact map[string]interface{}) (string, error)
}

// TrustAnchor seals artifacts with a shared HMAC key.
type TrustAnchor struct {
	key []byte
}

// NewTrustAnchor creates a sealer with the given key material
func NewTrustAnchor(key []byte) (*TrustAnchor, error) {
	if len(key) == 0 {
		return nil, ErrNoKey
	}
	return &TrustAnchor{key: key}, nil
}

// Seal returns the hex-encoded HMAC-SHA256 signature of the artifact
func (a *TrustAnchor) Seal(artifact map[string]interface{}) (string, error) {
	if artifact == nil {
		return "", fmt.Errorf("%w: artifact is empty", ErrSealFailed)
	}

	canonical, err := json.Marshal(artifact)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrSealFailed, err)
	}

	mac := hmac.New(sha256.New, a.key)
	mac.Write(canonical)
	return hex.EncodeToString(mac.Sum(nil)), nil
}

// Verify reports whether signature matches the artifact's seal
func (a *TrustAnchor) Verify(artifact map[string]interface{}, signature string) bool {
	expected, err := a.Seal(artifact)
	if err != nil {
		return false
	}
	return hmac.Equal([]byte(expected), []byte(signature))
}
