package bundle

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// EntryKind tags the shape of an Entry.
type EntryKind int

const (
	EntryInvalid EntryKind = iota
	EntrySingle
	EntryList
	EntryNamed
)

func (k EntryKind) String() string {
	switch k {
	case EntrySingle:
		return "single"
	case EntryList:
		return "list"
	case EntryNamed:
		return "named"
	default:
		return "invalid"
	}
}

// DefaultBundleName is the bundle produced by a non-named entry.
const DefaultBundleName = "main"

// Entry describes which modules a bundle starts from: a single module path,
// an ordered list of module paths, or an ordered mapping from bundle name to
// Entry.
// The zero value is invalid.
type Entry struct {
	kind  EntryKind
	path  string
	paths []string
	named []NamedEntry
}

// NamedEntry is one key of a Named entry.
type NamedEntry struct {
	Name  string
	Entry Entry
}

func Single(path string) Entry {
	return Entry{kind: EntrySingle, path: path}
}

func List(paths ...string) Entry {
	return Entry{kind: EntryList, paths: append([]string(nil), paths...)}
}

// Named builds a named entry. Items keep the given order.
func Named(items ...NamedEntry) Entry {
	e := Entry{kind: EntryNamed, named: make([]NamedEntry, len(items))}
	for i, it := range items {
		e.named[i] = NamedEntry{Name: it.Name, Entry: it.Entry.Clone()}
	}
	return e
}

// Kind returns the entry shape.
func (e Entry) Kind() EntryKind { return e.kind }

// IsZero reports whether e was never set.
func (e Entry) IsZero() bool { return e.kind == EntryInvalid }

// Path returns the module path of a Single entry.
func (e Entry) Path() string { return e.path }

// Paths returns a copy of the module paths of a List entry.
func (e Entry) Paths() []string { return append([]string(nil), e.paths...) }

// Items returns a copy of the keys of a Named entry in declaration order.
func (e Entry) Items() []NamedEntry {
	out := make([]NamedEntry, len(e.named))
	for i, it := range e.named {
		out[i] = NamedEntry{Name: it.Name, Entry: it.Entry.Clone()}
	}
	return out
}

// Clone returns a deep copy.
func (e Entry) Clone() Entry {
	switch e.kind {
	case EntryList:
		return List(e.paths...)
	case EntryNamed:
		return Named(e.named...)
	default:
		return e
	}
}

// Modules returns every leaf module path in declaration order.
func (e Entry) Modules() []string {
	switch e.kind {
	case EntrySingle:
		return []string{e.path}
	case EntryList:
		return e.Paths()
	case EntryNamed:
		var out []string
		for _, it := range e.named {
			out = append(out, it.Entry.Modules()...)
		}
		return out
	default:
		return nil
	}
}

// Bundle is one output bundle derived from an Entry.
type Bundle struct {
	Name    string
	Modules []string
}

// Bundles returns the output bundles in declaration order. A Named entry yields
// one bundle per key; any other shape yields a single DefaultBundleName bundle.
func (e Entry) Bundles() []Bundle {
	if e.kind == EntryNamed {
		out := make([]Bundle, 0, len(e.named))
		for _, it := range e.named {
			out = append(out, Bundle{Name: it.Name, Modules: it.Entry.Modules()})
		}
		return out
	}
	if e.kind == EntryInvalid {
		return nil
	}
	return []Bundle{{Name: DefaultBundleName, Modules: e.Modules()}}
}

// Validate checks that every leaf is a non-empty path and that named keys are
// non-empty and unique at each level.
func (e Entry) Validate() error {
	switch e.kind {
	case EntrySingle:
		if strings.TrimSpace(e.path) == "" {
			return fmt.Errorf("entry path is empty")
		}
	case EntryList:
		if len(e.paths) == 0 {
			return fmt.Errorf("entry list is empty")
		}
		for i, p := range e.paths {
			if strings.TrimSpace(p) == "" {
				return fmt.Errorf("entry list item %d is empty", i)
			}
		}
	case EntryNamed:
		if len(e.named) == 0 {
			return fmt.Errorf("named entry has no bundles")
		}
		seen := make(map[string]struct{}, len(e.named))
		for _, it := range e.named {
			if strings.TrimSpace(it.Name) == "" {
				return fmt.Errorf("named entry has an empty bundle name")
			}
			if _, dup := seen[it.Name]; dup {
				return fmt.Errorf("duplicate bundle name %q", it.Name)
			}
			seen[it.Name] = struct{}{}
			if err := it.Entry.Validate(); err != nil {
				return fmt.Errorf("bundle %q: %w", it.Name, err)
			}
		}
	default:
		return fmt.Errorf("entry is not set")
	}
	return nil
}

// InjectHotClient returns a copy of entry with hotClient prepended to every
// leaf. Named entries keep their keys and order, lists get hotClient first and
// a single path becomes the list [hotClient, path]. Applying it twice prepends
// twice.
func InjectHotClient(entry Entry, hotClient string) Entry {
	switch entry.kind {
	case EntryNamed:
		items := make([]NamedEntry, len(entry.named))
		for i, it := range entry.named {
			items[i] = NamedEntry{Name: it.Name, Entry: InjectHotClient(it.Entry, hotClient)}
		}
		return Entry{kind: EntryNamed, named: items}
	case EntryList:
		return List(append([]string{hotClient}, entry.paths...)...)
	case EntrySingle:
		return List(hotClient, entry.path)
	default:
		return entry
	}
}

// UnmarshalYAML decodes a scalar, a sequence of scalars or a mapping, keeping
// mapping key order.
func (e *Entry) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		*e = Single(node.Value)
	case yaml.SequenceNode:
		paths := make([]string, 0, len(node.Content))
		for _, item := range node.Content {
			if item.Kind != yaml.ScalarNode {
				return fmt.Errorf("line %d: entry list items must be module paths", item.Line)
			}
			paths = append(paths, item.Value)
		}
		*e = List(paths...)
	case yaml.MappingNode:
		items := make([]NamedEntry, 0, len(node.Content)/2)
		for i := 0; i+1 < len(node.Content); i += 2 {
			var child Entry
			if err := child.UnmarshalYAML(node.Content[i+1]); err != nil {
				return err
			}
			items = append(items, NamedEntry{Name: node.Content[i].Value, Entry: child})
		}
		*e = Entry{kind: EntryNamed, named: items}
	case yaml.AliasNode:
		return e.UnmarshalYAML(node.Alias)
	default:
		return fmt.Errorf("line %d: unsupported entry shape", node.Line)
	}
	return nil
}
