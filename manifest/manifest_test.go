// Copyright 2025 CoReason, Inc.
// SPDX-License-Identifier: Apache-2.0

package manifest

import (
	"errors"
	"testing"
)

func validDefinition() map[string]interface{} {
	return map[string]interface{}{
		"metadata": map[string]interface{}{
			"name":        "my-agent",
			"version":     "1.0.0",
			"description": "A test agent",
		},
		"spec": map[string]interface{}{
			"entrypoint": "main",
		},
	}
}

func TestValidateAcceptsValidDefinition(t *testing.T) {
	v, err := NewValidator()
	if err != nil {
		t.Fatalf("NewValidator returned error: %v", err)
	}

	if err := v.Validate(validDefinition()); err != nil {
		t.Errorf("valid definition rejected: %v", err)
	}
}

func TestValidateRejectsMissingMetadata(t *testing.T) {
	v, err := NewValidator()
	if err != nil {
		t.Fatalf("NewValidator returned error: %v", err)
	}

	err = v.Validate(map[string]interface{}{"spec": map[string]interface{}{}})
	if !errors.Is(err, ErrInvalidDefinition) {
		t.Errorf("expected ErrInvalidDefinition, got %v", err)
	}
}

func TestValidateRejectsEmptyName(t *testing.T) {
	v, err := NewValidator()
	if err != nil {
		t.Fatalf("NewValidator returned error: %v", err)
	}

	def := validDefinition()
	def["metadata"].(map[string]interface{})["name"] = ""
	if err := v.Validate(def); !errors.Is(err, ErrInvalidDefinition) {
		t.Errorf("expected ErrInvalidDefinition for empty name, got %v", err)
	}
}

func TestValidateRejectsNil(t *testing.T) {
	v, err := NewValidator()
	if err != nil {
		t.Fatalf("NewValidator returned error: %v", err)
	}

	if err := v.Validate(nil); !errors.Is(err, ErrInvalidDefinition) {
		t.Errorf("expected ErrInvalidDefinition for nil definition, got %v", err)
	}
}

func TestLoadExtractsMetadata(t *testing.T) {
	def, err := Load(validDefinition())
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if def.Metadata.Name != "my-agent" {
		t.Errorf("expected name my-agent, got %q", def.Metadata.Name)
	}
	if def.Metadata.Version != "1.0.0" {
		t.Errorf("expected version 1.0.0, got %q", def.Metadata.Version)
	}
	if def.Raw == nil {
		t.Error("Raw definition must be preserved")
	}
}

func TestLoadRejectsBadShapes(t *testing.T) {
	tests := []struct {
		name string
		def  map[string]interface{}
	}{
		{"nil definition", nil},
		{"missing metadata", map[string]interface{}{"spec": map[string]interface{}{}}},
		{"metadata wrong type", map[string]interface{}{"metadata": "not-a-map"}},
		{"name wrong type", map[string]interface{}{"metadata": map[string]interface{}{"name": 42}}},
		{"empty name", map[string]interface{}{"metadata": map[string]interface{}{"name": ""}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Load(tt.def); !errors.Is(err, ErrInvalidDefinition) {
				t.Errorf("expected ErrInvalidDefinition, got %v", err)
			}
		})
	}
}
