// Package schema decodes the application definition that lists the fields each actor reports.
package schema

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Type is the declared type of a field as written by the application definition.
type Type string

const (
	TypeString   Type = "String"
	TypeBoolean  Type = "Boolean"
	TypeInteger  Type = "Integer"
	TypeLong     Type = "Long"
	TypeDouble   Type = "Double"
	TypeLocation Type = "Location"
	TypeDateTime Type = "DateTime"
)

// Field describes one reported field.
type Field struct {
	Name  string `json:"name"`
	Type  Type   `json:"type"`
	Pivot bool   `json:"pivot"`
}

// Definition is the decoded application definition.
type Definition struct {
	Fields []Field `json:"fields"`
}

// ParseError reports an application definition that could not be used.
// Callers degrade to an empty field list.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string { return "schema parse failed: " + e.Err.Error() }

func (e *ParseError) Unwrap() error { return e.Err }

const definitionSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["fields"],
  "properties": {
    "fields": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["name", "type"],
        "properties": {
          "name": {"type": "string", "minLength": 1},
          "type": {"type": "string"},
          "pivot": {"type": ["boolean", "string"]}
        }
      }
    }
  }
}`

var compiled = jsonschema.MustCompileString("appdef.schema.json", definitionSchema)

// NormalizeType maps the type spellings seen in application definitions onto Type.
// Unknown spellings are returned unchanged.
func NormalizeType(raw string) Type {
	t := strings.TrimSpace(raw)
	switch strings.ToLower(strings.ReplaceAll(t, "/", "")) {
	case "string":
		return TypeString
	case "boolean":
		return TypeBoolean
	case "integer":
		return TypeInteger
	case "long":
		return TypeLong
	case "double":
		return TypeDouble
	case "location":
		return TypeLocation
	case "datetime":
		return TypeDateTime
	}
	return Type(t)
}

// Parse decodes an application definition. Single quotes are accepted in place of
// double quotes because definitions are usually passed through the environment.
// An empty input yields an empty definition and no error.
func Parse(raw string) (Definition, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Definition{}, nil
	}
	clean := strings.ReplaceAll(raw, "'", `"`)

	var doc any
	if err := json.Unmarshal([]byte(clean), &doc); err != nil {
		return Definition{}, &ParseError{Err: err}
	}
	if err := compiled.Validate(doc); err != nil {
		return Definition{}, &ParseError{Err: err}
	}

	var wire struct {
		Fields []struct {
			Name  string `json:"name"`
			Type  string `json:"type"`
			Pivot any    `json:"pivot"`
		} `json:"fields"`
	}
	if err := json.Unmarshal([]byte(clean), &wire); err != nil {
		return Definition{}, &ParseError{Err: err}
	}

	def := Definition{Fields: make([]Field, 0, len(wire.Fields))}
	seen := make(map[string]bool, len(wire.Fields))
	for _, f := range wire.Fields {
		if seen[f.Name] {
			continue
		}
		seen[f.Name] = true
		def.Fields = append(def.Fields, Field{
			Name:  f.Name,
			Type:  NormalizeType(f.Type),
			Pivot: pivot(f.Pivot),
		})
	}
	return def, nil
}

// Load reads an application definition from a file.
func Load(path string) (Definition, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Definition{}, &ParseError{Err: fmt.Errorf("read %s: %w", path, err)}
	}
	return Parse(string(b))
}

func pivot(v any) bool {
	switch p := v.(type) {
	case bool:
		return p
	case string:
		return strings.EqualFold(p, "true")
	}
	return false
}
