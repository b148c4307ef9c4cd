package config

import (
	"encoding/json"
	"fmt"
	"strings"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/fusesell/fusesell/pkg/schema"
)

// runConfigSchemaJSON is the JSON Schema for RunConfig validation.
// Embedded as a constant to avoid filesystem dependencies.
const runConfigSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "$id": "https://fusesell.dev/schemas/run-config.json",
  "type": "object",
  "required": ["org_id"],
  "properties": {
    "execution_id": { "type": "string", "minLength": 1 },
    "org_id": { "type": "string", "minLength": 1 },
    "team_id": { "type": "string" },
    "customer_id": { "type": "string" },
    "skip_stages": {
      "type": "array",
      "items": {
        "type": "string",
        "enum": ["data_acquisition", "data_preparation", "lead_scoring", "initial_outreach", "follow_up"]
      }
    },
    "stop_after": {
      "type": "string",
      "enum": ["data_acquisition", "data_preparation", "lead_scoring", "initial_outreach", "follow_up"]
    },
    "continue_execution": { "type": "string", "minLength": 1 },
    "action": {
      "type": "string",
      "enum": ["draft_write", "draft_rewrite", "send", "close"]
    },
    "selected_draft_id": { "type": "string" },
    "recipient_address": { "type": "string" },
    "recipient_name": { "type": "string" },
    "send_immediately": { "type": "boolean" },
    "close_reason": { "type": "string" },
    "customer_timezone": { "type": "string" },
    "business_hours_start": {
      "type": "string",
      "pattern": "^([01][0-9]|2[0-3]):[0-5][0-9]$"
    },
    "business_hours_end": {
      "type": "string",
      "pattern": "^([01][0-9]|2[0-3]):[0-5][0-9]$"
    },
    "delay_hours": { "type": "integer", "minimum": 0 },
    "follow_up_delay_hours": { "type": "integer", "minimum": 0 },
    "input_data": {}
  },
  "additionalProperties": false
}`

// Validator validates RunConfig documents against the embedded JSON
// Schema. It is safe for concurrent use.
type Validator struct {
	compiled *jsonschema.Schema
}

// NewValidator compiles the run-config schema.
func NewValidator() (*Validator, error) {
	c := jsonschema.NewCompiler()
	c.AssertFormat()

	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(runConfigSchemaJSON))
	if err != nil {
		return nil, fmt.Errorf("unmarshal run-config schema: %w", err)
	}
	if err := c.AddResource("https://fusesell.dev/schemas/run-config.json", doc); err != nil {
		return nil, fmt.Errorf("add run-config schema resource: %w", err)
	}
	compiled, err := c.Compile("https://fusesell.dev/schemas/run-config.json")
	if err != nil {
		return nil, fmt.Errorf("compile run-config schema: %w", err)
	}
	return &Validator{compiled: compiled}, nil
}

// Validate checks a RunConfig against the schema. The config is
// round-tripped through JSON so numbers become json.Number as the
// jsonschema library requires.
func (v *Validator) Validate(cfg *RunConfig) error {
	if cfg == nil {
		return schema.NewError(schema.ErrCodeValidation, "run config is nil")
	}

	doc, err := toJSONValue(cfg)
	if err != nil {
		return schema.NewError(schema.ErrCodeValidation, "failed to serialize run config").WithCause(err)
	}
	if err := v.compiled.Validate(doc); err != nil {
		return toValidationError(err)
	}
	return nil
}

func toJSONValue(v any) (any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return jsonschema.UnmarshalJSON(strings.NewReader(string(b)))
}

// toValidationError converts a jsonschema.ValidationError into a
// schema.Error with the leaf violations collected into details.
func toValidationError(err error) *schema.Error {
	verr, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return schema.NewError(schema.ErrCodeValidation, err.Error())
	}

	violations := collectViolations(verr)
	if len(violations) == 0 {
		return schema.NewError(schema.ErrCodeValidation, verr.Error())
	}
	if len(violations) == 1 {
		return schema.NewError(schema.ErrCodeValidation, violations[0]).
			WithDetails(map[string]any{"violations": violations})
	}
	return schema.NewErrorf(schema.ErrCodeValidation, "validation failed with %d errors", len(violations)).
		WithDetails(map[string]any{"violations": violations})
}

// collectViolations walks a ValidationError tree and collects leaf
// messages with their instance locations.
func collectViolations(verr *jsonschema.ValidationError) []string {
	if len(verr.Causes) == 0 {
		loc := "/"
		if len(verr.InstanceLocation) > 0 {
			loc = "/" + strings.Join(verr.InstanceLocation, "/")
		}
		return []string{fmt.Sprintf("%s: %s", loc, verr.Error())}
	}

	var violations []string
	for _, cause := range verr.Causes {
		violations = append(violations, collectViolations(cause)...)
	}
	return violations
}
