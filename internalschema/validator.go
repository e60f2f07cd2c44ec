// Package internalschema adapts github.com/santhosh-tekuri/jsonschema/v6 for
// the pipeline's two validation needs: function-parameter schema sanity
// (registry) and natural tool-use argument validation (naturaltool).
package internalschema

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// Validator validates JSON documents against a single compiled JSON-Schema.
type Validator struct {
	schema *jsonschema.Schema
}

// Compile parses schemaJSON as a JSON-Schema document and compiles it. name
// is used only for error messages and the schema's resource URL.
func Compile(name string, schemaJSON []byte) (*Validator, error) {
	if len(schemaJSON) == 0 {
		return nil, fmt.Errorf("internalschema: empty schema for %q", name)
	}
	var doc any
	if err := json.Unmarshal(schemaJSON, &doc); err != nil {
		return nil, fmt.Errorf("internalschema: parse schema %q: %w", name, err)
	}
	url := "mem://" + name
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(url, doc); err != nil {
		return nil, fmt.Errorf("internalschema: add resource %q: %w", name, err)
	}
	schema, err := compiler.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("internalschema: compile schema %q: %w", name, err)
	}
	return &Validator{schema: schema}, nil
}

// Validate reports whether data (a JSON document) conforms to the compiled
// schema.
func (v *Validator) Validate(data []byte) error {
	var doc any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return fmt.Errorf("internalschema: parse document: %w", err)
	}
	if err := v.schema.Validate(doc); err != nil {
		return fmt.Errorf("internalschema: validation failed: %w", err)
	}
	return nil
}
