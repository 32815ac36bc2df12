package config

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Middleware is one declared middleware and its options.
type Middleware struct {
	Name    string
	Options map[string]any
}

// Middlewares is the ordered `name: options` mapping from the server section.
type Middlewares []Middleware

// Names returns the declared names in order.
func (ms Middlewares) Names() []string {
	out := make([]string, len(ms))
	for i, m := range ms {
		out[i] = m.Name
	}
	return out
}

// UnmarshalYAML keeps declaration order. A null value means no options.
func (ms *Middlewares) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: middlewares must be a mapping of name to options", node.Line)
	}
	out := make(Middlewares, 0, len(node.Content)/2)
	seen := make(map[string]struct{}, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		k, v := node.Content[i], node.Content[i+1]
		if _, dup := seen[k.Value]; dup {
			return fmt.Errorf("line %d: middleware %q declared twice", k.Line, k.Value)
		}
		seen[k.Value] = struct{}{}
		opts := map[string]any{}
		if v.Tag != "!!null" {
			if v.Kind != yaml.MappingNode {
				return fmt.Errorf("line %d: options for middleware %q must be a mapping", v.Line, k.Value)
			}
			if err := v.Decode(&opts); err != nil {
				return fmt.Errorf("middleware %q: %w", k.Value, err)
			}
		}
		out = append(out, Middleware{Name: k.Value, Options: opts})
	}
	*ms = out
	return nil
}
