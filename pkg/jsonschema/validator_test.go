package jsonschema

import (
	"strings"
	"testing"
)

const userSchema = `{
	"type": "object",
	"required": ["id", "name"],
	"properties": {
		"id": {"type": "integer"},
		"name": {"type": "string", "minLength": 1},
		"email": {"type": "string"}
	}
}`

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		schema  string
		wantErr string
	}{
		{
			name:   "valid document",
			doc:    `{"id": 1, "name": "John", "email": "john@example.com"}`,
			schema: userSchema,
		},
		{
			name:   "optional field absent",
			doc:    `{"id": 2, "name": "Jane"}`,
			schema: userSchema,
		},
		{
			name:    "missing required field",
			doc:     `{"id": 3}`,
			schema:  userSchema,
			wantErr: "schema validation failed",
		},
		{
			name:    "wrong type",
			doc:     `{"id": "not-a-number", "name": "John"}`,
			schema:  userSchema,
			wantErr: "schema validation failed",
		},
		{
			name:    "document is not JSON",
			doc:     `<html>`,
			schema:  userSchema,
			wantErr: "body is not valid JSON",
		},
		{
			name:    "schema is not JSON",
			doc:     `{}`,
			schema:  `{`,
			wantErr: "invalid schema",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.doc, tt.schema)

			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() unexpected error: %v", err)
				}
				return
			}

			if err == nil {
				t.Fatalf("Validate() expected error containing %q, got nil", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %q, want substring %q", err, tt.wantErr)
			}
		})
	}
}
