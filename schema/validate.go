// Package schema checks documents against JSON Schemas and derives schemas
// from Go types. Violations are reported as SchemaValidation failures; a
// schema that cannot be compiled is a Config failure since it is fixed by
// whoever authored it, not by the caller.
package schema

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/vinayprograms/aisdk/errors"
)

// Violation is one place where a document breaks its schema.
type Violation struct {
	Field       string `json:"field"`
	Description string `json:"description"`
}

func (v Violation) String() string {
	return v.Field + ": " + v.Description
}

// Validator is a compiled schema that can check many documents.
type Validator struct {
	schema *gojsonschema.Schema
}

// Compile loads schema, given as decoded JSON. An unusable schema returns a
// Config failure.
func Compile(schema map[string]interface{}) (*Validator, error) {
	if schema == nil {
		return nil, errors.Config("schema is empty")
	}
	compiled, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(schema))
	if err != nil {
		return nil, errors.Configf("invalid schema: %v", err)
	}
	return &Validator{schema: compiled}, nil
}

// Validate checks doc, given as decoded JSON or a Go value that marshals to
// JSON. Violations return a SchemaValidation failure listing each one in the
// order the validator reported them.
func (v *Validator) Validate(doc interface{}) error {
	result, err := v.schema.Validate(gojsonschema.NewGoLoader(doc))
	if err != nil {
		return errors.Serialization(err)
	}
	if result.Valid() {
		return nil
	}
	violations := make([]Violation, 0, len(result.Errors()))
	for _, re := range result.Errors() {
		violations = append(violations, Violation{Field: re.Field(), Description: re.Description()})
	}
	return violationFailure(violations)
}

// ValidateJSON checks raw JSON. Malformed input returns a Serialization
// failure before the schema is consulted.
func (v *Validator) ValidateJSON(data []byte) error {
	var doc interface{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return errors.Serialization(err)
	}
	return v.Validate(doc)
}

// Validate compiles schema and checks doc against it.
func Validate(schema map[string]interface{}, doc interface{}) error {
	v, err := Compile(schema)
	if err != nil {
		return err
	}
	return v.Validate(doc)
}

// ValidateJSON compiles schema and checks raw JSON against it.
func ValidateJSON(schema map[string]interface{}, data []byte) error {
	v, err := Compile(schema)
	if err != nil {
		return err
	}
	return v.ValidateJSON(data)
}

// Violations returns the violations carried by a failure from Validate, or
// nil when err is not a schema failure. They travel in metadata so they
// survive an envelope round trip.
func Violations(err error) []Violation {
	if !errors.IsKind(err, errors.KindSchemaValidation) {
		return nil
	}
	meta := errors.GetMetadata(err)
	n, _ := strconv.Atoi(meta["violations"])
	violations := make([]Violation, 0, n)
	for i := 0; i < n; i++ {
		violations = append(violations, Violation{
			Field:       meta[fmt.Sprintf("violation.%d.field", i)],
			Description: meta[fmt.Sprintf("violation.%d.description", i)],
		})
	}
	return violations
}

func violationFailure(violations []Violation) error {
	parts := make([]string, 0, len(violations))
	meta := map[string]string{"violations": strconv.Itoa(len(violations))}
	for i, v := range violations {
		parts = append(parts, v.String())
		meta[fmt.Sprintf("violation.%d.field", i)] = v.Field
		meta[fmt.Sprintf("violation.%d.description", i)] = v.Description
	}
	return errors.SchemaValidation(strings.Join(parts, "; "), errors.WithMetadataMap(meta))
}
