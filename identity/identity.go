// Copyright 2025 CoReason, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package identity validates bearer credentials for the Conductor gateway.
package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrMissingToken is returned when no credential was supplied
	ErrMissingToken = errors.New("token required")

	// ErrInvalidToken is returned when the credential fails validation
	ErrInvalidToken = errors.New("invalid token")
)

// UserContext is the authenticated caller identity for one request.
// Immutable, request-scoped, never persisted by this layer.
type UserContext struct {
	Subject        string   `json:"subject"`
	Email          string   `json:"email"`
	ProjectContext string   `json:"project_context,omitempty"`
	Permissions    []string `json:"permissions"`
}

// Validator validates a bearer credential and yields the caller's identity.
type Validator interface {
	Validate(ctx context.Context, credential string) (*UserContext, error)
}

// JWTValidator validates HS256-signed JWTs issued by the identity provider.
type JWTValidator struct {
	secret   []byte
	audience string
	issuer   string
}

// JWTValidatorOption customizes claim validation.
type JWTValidatorOption func(*JWTValidator)

// WithAudience requires the aud claim to match
func WithAudience(audience string) JWTValidatorOption {
	return func(v *JWTValidator) { v.audience = audience }
}

// WithIssuer requires the iss claim to match
func WithIssuer(issuer string) JWTValidatorOption {
	return func(v *JWTValidator) { v.issuer = issuer }
}

// NewJWTValidator creates a validator for tokens signed with the given secret
func NewJWTValidator(secret []byte, opts ...JWTValidatorOption) *JWTValidator {
	v := &JWTValidator{secret: secret}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Validate parses and verifies the credential. The credential may carry a
// "Bearer " prefix, which is stripped before parsing.
func (v *JWTValidator) Validate(ctx context.Context, credential string) (*UserContext, error) {
	tokenString := strings.TrimSpace(strings.TrimPrefix(credential, "Bearer "))
	if tokenString == "" {
		return nil, ErrMissingToken
	}

	parseOpts := []jwt.ParserOption{jwt.WithValidMethods([]string{"HS256"})}
	if v.audience != "" {
		parseOpts = append(parseOpts, jwt.WithAudience(v.audience))
	}
	if v.issuer != "" {
		parseOpts = append(parseOpts, jwt.WithIssuer(v.issuer))
	}

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, parseOpts...)
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("%w: unexpected claims type", ErrInvalidToken)
	}

	subject := getClaimString(claims, "sub")
	if subject == "" {
		return nil, fmt.Errorf("%w: missing sub claim", ErrInvalidToken)
	}

	return &UserContext{
		Subject:        subject,
		Email:          getClaimString(claims, "email"),
		ProjectContext: getClaimString(claims, "project"),
		Permissions:    getClaimStringArray(claims, "permissions"),
	}, nil
}

func getClaimString(claims jwt.MapClaims, key string) string {
	if value, ok := claims[key].(string); ok {
		return value
	}
	return ""
}

func getClaimStringArray(claims jwt.MapClaims, key string) []string {
	raw, ok := claims[key].([]interface{})
	if !ok {
		return nil
	}
	values := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			values = append(values, s)
		}
	}
	return values
}

// Ping reports whether the validator is usable (a signing secret is configured).
func (v *JWTValidator) Ping(ctx context.Context) error {
	if len(v.secret) == 0 {
		return errors.New("identity validator has no signing secret configured")
	}
	return nil
}
