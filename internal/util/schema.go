package util

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"slices"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
)

// ValidationError represents parameter validation errors with detailed information.
type ValidationError struct {
	Field   string `json:"field"`
	Value   any    `json:"value"`
	Message string `json:"message"`
}

// Error implements the error interface for ValidationError.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

// CreateSchema derives a JSON schema from a struct value. Field names follow
// json tags; `description` and `enum` tags are copied. Fields without
// omitempty that are not pointers are required.
func CreateSchema(structType any) map[string]any {
	t := derefType(reflect.TypeOf(structType))

	properties := map[string]any{}
	schema := map[string]any{"type": "object", "properties": properties}

	if t.Kind() != reflect.Struct {
		return schema
	}

	var required []string

	for f := range fieldsOf(t) {
		name, opts, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			continue
		}

		if name == "" {
			name = f.Name
		}

		properties[name] = fieldSchema(f)

		if !slices.Contains(strings.Split(opts, ","), "omitempty") && f.Type.Kind() != reflect.Ptr {
			required = append(required, name)
		}
	}

	if len(required) > 0 {
		schema["required"] = required
	}

	return schema
}

func fieldsOf(t reflect.Type) func(yield func(reflect.StructField) bool) {
	return func(yield func(reflect.StructField) bool) {
		for i := range t.NumField() {
			if f := t.Field(i); f.IsExported() && !yield(f) {
				return
			}
		}
	}
}

func fieldSchema(f reflect.StructField) map[string]any {
	ft := derefType(f.Type)
	s := map[string]any{"type": jsonType(ft)}

	if ft.Kind() == reflect.Slice || ft.Kind() == reflect.Array {
		s["items"] = map[string]any{"type": jsonType(derefType(ft.Elem()))}
	}

	if enum := f.Tag.Get("enum"); enum != "" {
		s["enum"] = strings.Split(enum, ",")
	}

	if desc := f.Tag.Get("description"); desc != "" {
		s["description"] = desc
	}

	return s
}

func derefType(t reflect.Type) reflect.Type {
	for t != nil && t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	return t
}

func jsonType(t reflect.Type) string {
	switch t.Kind() {
	case reflect.Bool:
		return "boolean"
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return "integer"
	case reflect.Float32, reflect.Float64:
		return "number"
	case reflect.Slice, reflect.Array:
		return "array"
	case reflect.Map, reflect.Struct:
		return "object"
	default:
		return "string"
	}
}

// ValidateParameters checks params against a JSON schema with kin-openapi.
// Null arguments count as absent. The first violation is returned as a
// *ValidationError.
func ValidateParameters(params map[string]any, schema map[string]any) error {
	compiled, err := compile(schema)
	if err != nil {
		return err
	}

	value, err := normalize(params)
	if err != nil {
		return &ValidationError{Field: "arguments", Message: err.Error()}
	}

	err = compiled.VisitJSON(value)
	if err == nil {
		return nil
	}

	ve := &ValidationError{Field: "arguments", Message: err.Error()}

	var se *openapi3.SchemaError
	if errors.As(err, &se) {
		ve.Message = se.Reason

		if ptr := se.JSONPointer(); len(ptr) > 0 {
			ve.Field = strings.Join(ptr, ".")
			ve.Value = params[ptr[0]]
		}
	}

	return ve
}

func compile(schema map[string]any) (*openapi3.Schema, error) {
	data, err := json.Marshal(schema)
	if err != nil {
		return nil, fmt.Errorf("encode parameter schema: %w", err)
	}

	var s openapi3.Schema
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decode parameter schema: %w", err)
	}

	return &s, nil
}

// normalize turns params into the plain JSON shape the validator expects
// ([]any, float64, map[string]any) and drops nulls.
func normalize(params map[string]any) (map[string]any, error) {
	data, err := json.Marshal(params)
	if err != nil {
		return nil, err
	}

	out := map[string]any{}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}

	for k, v := range out {
		if v == nil {
			delete(out, k)
		}
	}

	return out, nil
}
