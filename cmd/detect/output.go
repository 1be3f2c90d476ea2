package main

import (
	"encoding/json"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

const (
	formatJSON = "json"
	formatYAML = "yaml"
)

// writeResult prints v in the selected format. YAML output keeps the JSON field names and order
// by re-reading the JSON encoding as a YAML node tree.
func writeResult(w io.Writer, format string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}

	if format != formatYAML {
		_, err = fmt.Fprintln(w, string(data))

		return err
	}

	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return fmt.Errorf("convert result to yaml: %w", err)
	}

	blockStyle(&node)

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)

	if err := enc.Encode(&node); err != nil {
		return fmt.Errorf("encode yaml: %w", err)
	}

	return enc.Close()
}

// blockStyle drops the flow style inherited from JSON so nested values print as YAML blocks.
func blockStyle(n *yaml.Node) {
	n.Style &^= yaml.FlowStyle
	for _, child := range n.Content {
		blockStyle(child)
	}
}
