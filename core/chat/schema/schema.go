// Package schema builds JSON Schema documents describing function parameters.
package schema

import (
	"encoding/json"
	"fmt"
	"maps"
	"reflect"
	"slices"
	"strconv"
	"strings"
)

// Schema is the subset of JSON Schema draft 2020-12 accepted by both providers
// as function parameter descriptions.
type Schema struct {
	Type                 string             `json:"type,omitempty"`
	Description          string             `json:"description,omitempty"`
	Properties           map[string]*Schema `json:"properties,omitempty"`
	Required             []string           `json:"required,omitempty"`
	Items                *Schema            `json:"items,omitempty"`
	Enum                 []any              `json:"enum,omitempty"`
	AdditionalProperties *Schema            `json:"additionalProperties,omitempty"`
}

// Object returns an empty object schema. It is the parameter shape of a
// function that takes no arguments.
func Object() *Schema {
	return &Schema{Type: "object", Properties: map[string]*Schema{}}
}

// Generate derives a schema from the Go type T.
//
// Field names follow the json tag. A field is required when its json tag
// lacks omitempty, or when its jsonschema tag contains "required".
// Supported jsonschema tag items:
//   - description=text
//   - enum=value (repeatable, converted to the field's kind)
//   - required
func Generate[T any]() (*Schema, error) {
	var zero T
	t := reflect.TypeOf(zero)
	if t == nil {
		return nil, fmt.Errorf("cannot generate schema for a nil interface type")
	}
	return generate(t, map[reflect.Type]bool{})
}

// MustGenerate is like Generate but panics on error. Intended for
// package-level function definitions.
func MustGenerate[T any]() *Schema {
	s, err := Generate[T]()
	if err != nil {
		panic(err)
	}
	return s
}

// JSON returns the compact JSON encoding of the schema.
func (s *Schema) JSON() ([]byte, error) {
	return json.Marshal(s)
}

func generate(t reflect.Type, visiting map[reflect.Type]bool) (*Schema, error) {
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	switch t.Kind() {
	case reflect.String:
		return &Schema{Type: "string"}, nil
	case reflect.Bool:
		return &Schema{Type: "boolean"}, nil
	case reflect.Float32, reflect.Float64:
		return &Schema{Type: "number"}, nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return &Schema{Type: "integer"}, nil
	case reflect.Slice, reflect.Array:
		items, err := generate(t.Elem(), visiting)
		if err != nil {
			return nil, err
		}
		return &Schema{Type: "array", Items: items}, nil
	case reflect.Map:
		if t.Key().Kind() != reflect.String {
			return nil, fmt.Errorf("map key type %v is not representable in JSON Schema", t.Key())
		}
		values, err := generate(t.Elem(), visiting)
		if err != nil {
			return nil, err
		}
		return &Schema{Type: "object", AdditionalProperties: values}, nil
	case reflect.Struct:
		// Recursive types collapse to a plain object at the second visit.
		if visiting[t] {
			return &Schema{Type: "object"}, nil
		}
		visiting[t] = true
		defer delete(visiting, t)
		return generateStruct(t, visiting)
	case reflect.Interface:
		return &Schema{}, nil
	default:
		return nil, fmt.Errorf("unsupported type %v", t)
	}
}

func generateStruct(t reflect.Type, visiting map[reflect.Type]bool) (*Schema, error) {
	s := Object()
	var embedded []*Schema

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)

		if inner, ok := embeddedStruct(field); ok {
			if visiting[inner] {
				continue
			}
			visiting[inner] = true
			promoted, err := generateStruct(inner, visiting)
			delete(visiting, inner)
			if err != nil {
				return nil, fmt.Errorf("field %s: %w", field.Name, err)
			}
			embedded = append(embedded, promoted)
			continue
		}

		if !field.IsExported() {
			continue
		}

		name, omitEmpty, skip := jsonName(field)
		if skip {
			continue
		}

		fieldSchema, err := generate(field.Type, visiting)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", field.Name, err)
		}

		requiredByTag, err := applyTag(field.Type, field.Tag.Get("jsonschema"), fieldSchema)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", field.Name, err)
		}

		s.Properties[name] = fieldSchema
		if requiredByTag || !omitEmpty {
			s.Required = append(s.Required, name)
		}
	}

	promote(s, embedded)
	return s, nil
}

// embeddedStruct reports whether field is an embedded struct without a json
// name, whose fields encoding/json promotes into the outer object.
func embeddedStruct(field reflect.StructField) (reflect.Type, bool) {
	if !field.Anonymous {
		return nil, false
	}
	tag := field.Tag.Get("json")
	if tag == "-" || strings.Split(tag, ",")[0] != "" {
		return nil, false
	}
	t := field.Type
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil, false
	}
	return t, true
}

// promote merges the properties of embedded structs into s. Fields declared
// on s win; a name promoted by more than one embedded struct is dropped, as
// encoding/json does.
func promote(s *Schema, embedded []*Schema) {
	owners := map[string]int{}
	for _, inner := range embedded {
		for name := range inner.Properties {
			owners[name]++
		}
	}

	for _, inner := range embedded {
		for _, name := range slices.Sorted(maps.Keys(inner.Properties)) {
			if _, declared := s.Properties[name]; declared || owners[name] > 1 {
				continue
			}
			s.Properties[name] = inner.Properties[name]
			if slices.Contains(inner.Required, name) {
				s.Required = append(s.Required, name)
			}
		}
	}
}

func jsonName(field reflect.StructField) (name string, omitEmpty bool, skip bool) {
	tag := field.Tag.Get("json")
	if tag == "-" {
		return "", false, true
	}

	name = field.Name
	parts := strings.Split(tag, ",")
	if parts[0] != "" {
		name = parts[0]
	}
	for _, opt := range parts[1:] {
		if opt == "omitempty" || opt == "omitzero" {
			omitEmpty = true
		}
	}
	return name, omitEmpty, false
}

// applyTag reads a jsonschema struct tag into s and reports whether it marks
// the field as required. Descriptions cannot contain commas.
func applyTag(fieldType reflect.Type, tag string, s *Schema) (bool, error) {
	if tag == "" {
		return false, nil
	}

	for fieldType.Kind() == reflect.Ptr {
		fieldType = fieldType.Elem()
	}

	required := false
	for _, item := range strings.Split(tag, ",") {
		key, value, hasValue := strings.Cut(item, "=")
		switch {
		case !hasValue && key == "required":
			required = true
		case hasValue && key == "description":
			s.Description = value
		case hasValue && key == "enum":
			v, err := enumValue(fieldType, value)
			if err != nil {
				return false, err
			}
			s.Enum = append(s.Enum, v)
		}
	}
	return required, nil
}

func enumValue(t reflect.Type, raw string) (any, error) {
	switch t.Kind() {
	case reflect.String:
		return raw, nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse enum value %q as integer: %w", raw, err)
		}
		return v, nil
	case reflect.Float32, reflect.Float64:
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("parse enum value %q as number: %w", raw, err)
		}
		return v, nil
	case reflect.Bool:
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, fmt.Errorf("parse enum value %q as boolean: %w", raw, err)
		}
		return v, nil
	default:
		return nil, fmt.Errorf("enum tag unsupported for type %v", t)
	}
}
