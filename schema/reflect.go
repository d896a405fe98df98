package schema

import (
	"encoding/json"

	"github.com/swaggest/jsonschema-go"

	"github.com/vinayprograms/aisdk/errors"
)

// Reflect generates a JSON Schema from a Go value, in the decoded form tools
// expose through Parameters. Types the reflector cannot describe return a
// Config failure.
//
//	type readArgs struct {
//	    Path string `json:"path" required:"true" description:"File to read"`
//	}
//	params, err := schema.Reflect(readArgs{})
func Reflect(v interface{}) (map[string]interface{}, error) {
	reflector := jsonschema.Reflector{}

	s, err := reflector.Reflect(v, jsonschema.InlineRefs)
	if err != nil {
		return nil, errors.Configf("cannot derive schema from %T: %v", v, err)
	}

	data, err := json.Marshal(s)
	if err != nil {
		return nil, errors.Serialization(err)
	}
	var out map[string]interface{}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, errors.Serialization(err)
	}
	return out, nil
}

// MustReflect is like Reflect but panics on failure. It is meant for
// package-level tool definitions.
func MustReflect(v interface{}) map[string]interface{} {
	out, err := Reflect(v)
	if err != nil {
		panic(err)
	}
	return out
}
