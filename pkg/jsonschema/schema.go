// Package jsonschema validates response bodies against an inline JSON Schema.
package jsonschema

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// ValidationErrors represents a collection of validation errors
type ValidationErrors []error

// Error implements the error interface for ValidationErrors
func (ve ValidationErrors) Error() string {
	if len(ve) == 0 {
		return ""
	}

	var sb strings.Builder
	for i, err := range ve {
		if i > 0 {
			sb.WriteString("; ")
		}
		sb.WriteString(err.Error())
	}
	return sb.String()
}

// Schema is a compiled JSON Schema. It is safe for concurrent use.
type Schema struct {
	compiled *jsonschema.Schema
}

var schemaSeq atomic.Int64

// Compile parses and compiles an inline schema document.
func Compile(schemaStr string) (*Schema, error) {
	if strings.TrimSpace(schemaStr) == "" {
		return nil, fmt.Errorf("invalid schema: empty document")
	}

	// Each schema gets its own resource name so compilers never share state.
	name := fmt.Sprintf("inline-%d.json", schemaSeq.Add(1))

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(name, strings.NewReader(schemaStr)); err != nil {
		return nil, fmt.Errorf("invalid schema: %w", err)
	}
	compiled, err := compiler.Compile(name)
	if err != nil {
		return nil, fmt.Errorf("invalid schema: %w", err)
	}
	return &Schema{compiled: compiled}, nil
}

// Validate checks body against the schema.
//
// It returns nil when the body is valid, a ValidationErrors listing every
// violation when it is not, and a plain error when the body is not JSON.
func (s *Schema) Validate(body []byte) error {
	if len(body) == 0 {
		return fmt.Errorf("invalid JSON: empty body")
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var doc interface{}
	if err := dec.Decode(&doc); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}

	err := s.compiled.Validate(doc)
	if err == nil {
		return nil
	}

	var validationErr *jsonschema.ValidationError
	if errors.As(err, &validationErr) {
		return extractValidationErrors(validationErr)
	}
	return ValidationErrors{err}
}

// Validate compiles schemaStr and validates jsonStr against it in one step.
// Returns true if the JSON is valid.
func Validate(jsonStr, schemaStr string) (bool, error) {
	schema, err := Compile(schemaStr)
	if err != nil {
		return false, err
	}
	err = schema.Validate([]byte(jsonStr))
	var verrs ValidationErrors
	if errors.As(err, &verrs) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// extractValidationErrors flattens the leaves of a jsonschema.ValidationError tree
func extractValidationErrors(err *jsonschema.ValidationError) ValidationErrors {
	var out ValidationErrors

	if len(err.Causes) == 0 {
		loc := err.InstanceLocation
		if loc == "" {
			loc = "/"
		}
		out = append(out, fmt.Errorf("at %s: %s", loc, err.Message))
		return out
	}

	for _, cause := range err.Causes {
		out = append(out, extractValidationErrors(cause)...)
	}
	return out
}
