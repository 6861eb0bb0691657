package llm

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// labelSchema is the JSON Schema every model response must satisfy before
// it is accepted. Nullable fields mirror LabelOutput's pointers.
const labelSchema = `{
	"type": "object",
	"required": ["doc_type", "title", "canonical_filename", "target_group_path", "confidence", "why"],
	"properties": {
		"doc_type": {"type": "string", "minLength": 1},
		"title": {"type": "string", "minLength": 1},
		"canonical_filename": {"type": "string", "minLength": 1},
		"suggested_tags": {"type": "array", "items": {"type": "string"}},
		"target_group_path": {"type": "string", "minLength": 1},
		"date": {"type": ["string", "null"]},
		"issuer": {"type": ["string", "null"]},
		"source": {"type": ["string", "null"]},
		"confidence": {"type": "number", "minimum": 0, "maximum": 1},
		"why": {"type": "string"}
	}
}`

var compiledLabelSchema = gojsonschema.NewStringLoader(labelSchema)

// validateLabelJSON checks a raw response document against the label
// schema and returns a single aggregated error.
func validateLabelJSON(raw []byte) error {
	result, err := gojsonschema.Validate(compiledLabelSchema, gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return fmt.Errorf("validate label: %w", err)
	}
	if result.Valid() {
		return nil
	}
	var problems []string
	for _, e := range result.Errors() {
		problems = append(problems, e.String())
	}
	return fmt.Errorf("label schema violations: %s", strings.Join(problems, "; "))
}
