package main

import (
	"encoding/json"
	"fmt"
	"strings"
)

// OutputFormat selects CLI output rendering
type OutputFormat string

const (
	// FormatJSON outputs indented JSON
	FormatJSON OutputFormat = "json"
	// FormatHuman outputs a readable summary
	FormatHuman OutputFormat = "human"
)

// HumanFormatter renders a human-readable form of a response.
type HumanFormatter interface {
	HumanFormat() string
}

// FormatResponse renders a CLI response in the requested format.
func FormatResponse(response interface{}, format OutputFormat) (string, error) {
	switch format {
	case FormatJSON, "":
		data, err := json.MarshalIndent(response, "", "  ")
		if err != nil {
			return "", fmt.Errorf("marshaling response: %w", err)
		}
		return string(data), nil
	case FormatHuman:
		if h, ok := response.(HumanFormatter); ok {
			return h.HumanFormat(), nil
		}
		data, err := json.MarshalIndent(response, "", "  ")
		if err != nil {
			return "", fmt.Errorf("marshaling response: %w", err)
		}
		return string(data), nil
	default:
		return "", fmt.Errorf("unknown output format %q (want json or human)", format)
	}
}

// kvLine renders one aligned key/value line for human output.
func kvLine(b *strings.Builder, key string, value interface{}) {
	fmt.Fprintf(b, "  %-18s %v\n", key+":", value)
}
