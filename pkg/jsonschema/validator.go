// Package jsonschema validates response bodies against JSON Schema documents.
package jsonschema

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Validate checks a JSON document against a JSON Schema. A schema violation is
// returned as an error describing the first failing location; schema or
// document parse problems are returned as errors too, so callers can treat any
// non-nil result as "the body did not satisfy the schema".
func Validate(doc, schemaStr string) error {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("schema.json", strings.NewReader(schemaStr)); err != nil {
		return fmt.Errorf("invalid schema: %w", err)
	}

	schema, err := compiler.Compile("schema.json")
	if err != nil {
		return fmt.Errorf("invalid schema: %w", err)
	}

	var data interface{}
	if err := json.Unmarshal([]byte(doc), &data); err != nil {
		return fmt.Errorf("body is not valid JSON: %w", err)
	}

	if err := schema.Validate(data); err != nil {
		if ve, ok := err.(*jsonschema.ValidationError); ok {
			return fmt.Errorf("schema validation failed: %s", describe(ve))
		}
		return fmt.Errorf("schema validation failed: %w", err)
	}

	return nil
}

// describe flattens a validation error tree into the most specific cause.
func describe(err *jsonschema.ValidationError) string {
	for len(err.Causes) > 0 {
		err = err.Causes[0]
	}
	if err.InstanceLocation == "" {
		return err.Message
	}
	return fmt.Sprintf("at %s: %s", err.InstanceLocation, err.Message)
}
