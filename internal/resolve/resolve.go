// Package resolve turns a raw, possibly noisy model reply into validated
// JSON conforming to the requested extraction schema.
package resolve

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/docfusion/docfusion/internal/schema"
)

// ErrNoJSONFound indicates the response text contained no recoverable JSON
// object.
var ErrNoJSONFound = errors.New("no JSON object found in response")

// ErrSchemaValidation indicates the parsed JSON does not conform to the
// extraction schema.
var ErrSchemaValidation = errors.New("schema validation failed")

// excerptLimit caps how much raw response text is carried in diagnostics.
const excerptLimit = 500

// Resolve extracts a JSON object from raw model output and validates it
// against the schema. The two-stage parse exists because models sometimes
// wrap valid JSON in prose or markdown fences despite instructions.
func Resolve(raw string, doc *schema.Document) (json.RawMessage, error) {
	obj, err := ExtractJSON(raw)
	if err != nil {
		return nil, err
	}

	var inst any
	if err := json.Unmarshal(obj, &inst); err != nil {
		// Balanced but malformed (bad escapes etc).
		return nil, fmt.Errorf("%w: %s (excerpt: %s)", ErrNoJSONFound, err, Excerpt(raw))
	}

	if err := doc.Compiled().Validate(inst); err != nil {
		var ve *jsonschema.ValidationError
		if errors.As(err, &ve) {
			leaf := leafCause(ve)
			return nil, fmt.Errorf("%w: %s at %q", ErrSchemaValidation, leaf.Message, instancePath(leaf))
		}
		return nil, fmt.Errorf("%w: %s", ErrSchemaValidation, err)
	}

	return obj, nil
}

// ExtractJSON locates a JSON object in raw text. Strategy, in order:
// (1) direct whole-string parse; (2) scan for the first '{' and find the
// minimal balanced enclosing object with a depth counter. The scanner is
// string-literal aware: braces inside quoted values do not count toward
// depth.
func ExtractJSON(raw string) (json.RawMessage, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, ErrNoJSONFound
	}

	if json.Valid([]byte(trimmed)) && strings.HasPrefix(trimmed, "{") {
		return json.RawMessage(trimmed), nil
	}

	start := strings.IndexByte(trimmed, '{')
	if start < 0 {
		return nil, fmt.Errorf("%w (excerpt: %s)", ErrNoJSONFound, Excerpt(raw))
	}

	depth := 0
	inString := false
	escaped := false

	for i := start; i < len(trimmed); i++ {
		c := trimmed[i]

		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}

		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return json.RawMessage(trimmed[start : i+1]), nil
			}
		}
	}

	return nil, fmt.Errorf("%w: unbalanced braces (excerpt: %s)", ErrNoJSONFound, Excerpt(raw))
}

// Excerpt returns a diagnostic-sized prefix of the raw response.
func Excerpt(raw string) string {
	raw = strings.TrimSpace(raw)
	if len(raw) <= excerptLimit {
		return raw
	}
	return raw[:excerptLimit] + "...[truncated]"
}

// leafCause walks to the deepest validation cause, which names the actual
// violating leaf rather than the document root.
func leafCause(ve *jsonschema.ValidationError) *jsonschema.ValidationError {
	for len(ve.Causes) > 0 {
		ve = ve.Causes[0]
	}
	return ve
}

func instancePath(ve *jsonschema.ValidationError) string {
	if ve.InstanceLocation == "" {
		return "/"
	}
	return ve.InstanceLocation
}
