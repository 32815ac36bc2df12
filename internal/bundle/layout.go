package bundle

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Layout is a template document that becomes a served HTML page.
type Layout struct {
	Name     string
	Template string
}

// Filename is the generated shell file name.
func (l Layout) Filename() string { return l.Name + ".html" }

// Layouts keeps declaration order of the configured layout mapping.
type Layouts []Layout

// UnmarshalYAML decodes a `name: template` mapping in order.
func (ls *Layouts) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: layouts must be a mapping of name to template", node.Line)
	}
	out := make(Layouts, 0, len(node.Content)/2)
	seen := make(map[string]struct{}, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		k, v := node.Content[i], node.Content[i+1]
		if v.Kind != yaml.ScalarNode {
			return fmt.Errorf("line %d: layout %q template must be a path", v.Line, k.Value)
		}
		if _, dup := seen[k.Value]; dup {
			return fmt.Errorf("line %d: duplicate layout %q", k.Line, k.Value)
		}
		seen[k.Value] = struct{}{}
		out = append(out, Layout{Name: k.Value, Template: v.Value})
	}
	*ls = out
	return nil
}
