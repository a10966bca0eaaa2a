package learning

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// schemaURL identifies the embedded schema inside the compiler.
const schemaURL = "t9d://learning/user-dict-v1.schema.json"

// dictSchema describes a learning file. Values are either the legacy bare
// count or an object carrying count and recency.
const dictSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "additionalProperties": {
    "oneOf": [
      {"type": "integer", "minimum": 0},
      {
        "type": "object",
        "required": ["count"],
        "properties": {
          "count": {"type": "integer", "minimum": 0},
          "last_seq": {"type": "integer", "minimum": 0}
        }
      }
    ]
  }
}`

var (
	compiledSchema *jsonschema.Schema
	schemaOnce     sync.Once
	schemaErr      error
)

func loadSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource(schemaURL, strings.NewReader(dictSchema)); err != nil {
			schemaErr = fmt.Errorf("add schema resource: %w", err)
			return
		}
		compiledSchema, schemaErr = compiler.Compile(schemaURL)
	})
	return compiledSchema, schemaErr
}

// Validate checks data against the learning file schema.
func Validate(data []byte) error {
	schema, err := loadSchema()
	if err != nil {
		return err
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var instance any
	if err := dec.Decode(&instance); err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	if err := schema.Validate(instance); err != nil {
		return fmt.Errorf("schema: %w", err)
	}
	return nil
}

// Decode parses a learning file. Both the current object form and the
// legacy bare count form are accepted; a bare count has sequence 0.
func Decode(data []byte) (map[string]Entry, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return map[string]Entry{}, nil
	}
	if err := Validate(data); err != nil {
		return nil, err
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}

	entries := make(map[string]Entry, len(raw))
	for word, value := range raw {
		value = bytes.TrimSpace(value)
		var e Entry
		if len(value) > 0 && value[0] == '{' {
			if err := json.Unmarshal(value, &e); err != nil {
				return nil, fmt.Errorf("decode %q: %w", word, err)
			}
		} else if err := json.Unmarshal(value, &e.Count); err != nil {
			return nil, fmt.Errorf("decode %q: %w", word, err)
		}
		entries[word] = e
	}
	return entries, nil
}

// Encode serialises entries in the current object form. Keys are sorted by
// encoding/json, so equal content always yields equal bytes.
func Encode(entries map[string]Entry) ([]byte, error) {
	if entries == nil {
		entries = map[string]Entry{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(entries); err != nil {
		return nil, fmt.Errorf("encode: %w", err)
	}
	return buf.Bytes(), nil
}
