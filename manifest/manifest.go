// Copyright 2025 CoReason, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package manifest validates and loads agent definitions.
package manifest

import (
	"errors"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// ErrInvalidDefinition is returned when a definition fails schema
// validation or cannot be loaded.
var ErrInvalidDefinition = errors.New("invalid agent definition")

// defaultSchema is the agent definition contract. Definitions must carry
// a metadata block with at least a name.
const defaultSchema = `{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"type": "object",
	"required": ["metadata"],
	"properties": {
		"metadata": {
			"type": "object",
			"required": ["name"],
			"properties": {
				"name":        {"type": "string", "minLength": 1},
				"version":     {"type": "string"},
				"description": {"type": "string"}
			}
		},
		"spec":   {"type": "object"},
		"config": {"type": "object"}
	}
}`

// Metadata is the identifying block of an agent definition.
type Metadata struct {
	Name        string
	Version     string
	Description string
}

// Definition is a loaded agent definition.
type Definition struct {
	Metadata Metadata
	Raw      map[string]interface{}
}

// Validator checks agent definitions against a JSON schema.
type Validator struct {
	schema *gojsonschema.Schema
}

// NewValidator compiles the built-in definition schema
func NewValidator() (*Validator, error) {
	return NewValidatorFromSchema(defaultSchema)
}

// NewValidatorFromSchema compiles a caller-supplied schema
func NewValidatorFromSchema(schemaJSON string) (*Validator, error) {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(schemaJSON))
	if err != nil {
		return nil, fmt.Errorf("failed to compile manifest schema: %w", err)
	}
	return &Validator{schema: schema}, nil
}

// Validate checks the definition against the schema. The returned error
// joins every validation failure into one message.
func (v *Validator) Validate(definition map[string]interface{}) error {
	if definition == nil {
		return fmt.Errorf("%w: definition is empty", ErrInvalidDefinition)
	}

	result, err := v.schema.Validate(gojsonschema.NewGoLoader(definition))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidDefinition, err)
	}
	if result.Valid() {
		return nil
	}

	messages := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		messages = append(messages, desc.String())
	}
	return fmt.Errorf("%w: %s", ErrInvalidDefinition, strings.Join(messages, "; "))
}

// Load extracts the structured definition from a raw map. It enforces
// only what the loader needs (metadata.name); full schema validation is
// Validate's job.
func Load(definition map[string]interface{}) (*Definition, error) {
	if definition == nil {
		return nil, fmt.Errorf("%w: definition is empty", ErrInvalidDefinition)
	}

	meta, ok := definition["metadata"].(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("%w: missing metadata block", ErrInvalidDefinition)
	}

	name, ok := meta["name"].(string)
	if !ok || name == "" {
		return nil, fmt.Errorf("%w: metadata.name must be a non-empty string", ErrInvalidDefinition)
	}

	def := &Definition{
		Metadata: Metadata{Name: name},
		Raw:      definition,
	}
	if version, ok := meta["version"].(string); ok {
		def.Metadata.Version = version
	}
	if description, ok := meta["description"].(string); ok {
		def.Metadata.Description = description
	}
	return def, nil
}
