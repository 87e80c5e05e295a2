package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// ErrSchema is returned when the merged settings violate the config schema.
var ErrSchema = errors.New("config: schema violation")

// configSchema constrains the shape and types of the merged settings before
// they are unmarshalled, catching typos like unknown keys early.
const configSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "additionalProperties": false,
  "properties": {
    "interner": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "initial_capacity": {"type": "integer", "minimum": 1},
        "prefilter": {
          "type": "object",
          "additionalProperties": false,
          "properties": {
            "enabled": {"type": "boolean"},
            "expected_strings": {"type": "integer", "minimum": 1},
            "false_positive_rate": {"type": "number", "exclusiveMinimum": 0, "exclusiveMaximum": 1}
          }
        }
      }
    },
    "output": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "format": {"type": "string", "enum": ["table", "yaml", "json"]},
        "color": {"type": "boolean"}
      }
    },
    "log": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "level": {"type": "string", "enum": ["debug", "info", "warn", "error"]},
        "json": {"type": "boolean"}
      }
    },
    "telemetry": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "otlp_endpoint": {"type": "string"},
        "otlp_insecure": {"type": "boolean"},
        "sample_ratio": {"type": "number", "minimum": 0, "maximum": 1},
        "metrics_addr": {"type": "string"}
      }
    }
  }
}`

// validateSchema checks the merged settings map against the config schema.
func validateSchema(settings map[string]any) error {
	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(configSchema),
		gojsonschema.NewGoLoader(settings),
	)
	if err != nil {
		return fmt.Errorf("validate config schema: %w", err)
	}

	if result.Valid() {
		return nil
	}

	var sb strings.Builder
	for _, verr := range result.Errors() {
		fmt.Fprintf(&sb, "; %s: %s", verr.Field(), verr.Description())
	}

	return fmt.Errorf("%w%s", ErrSchema, sb.String())
}
