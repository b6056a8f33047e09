package document

import (
	"fmt"
	"io"
	"unicode/utf8"

	"gopkg.in/yaml.v3"
)

func parseYAML(data []byte) (*node, error) {
	if !utf8.Valid(data) {
		return nil, &ParseError{Kind: KindEncoding, Message: "document is not valid UTF-8"}
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, &ParseError{Kind: KindSyntax, Err: err}
	}
	if doc.Kind == 0 {
		return nil, nil
	}
	return fromYAML(&doc, 1)
}

func fromYAML(y *yaml.Node, depth int) (*node, error) {
	switch y.Kind {
	case yaml.DocumentNode:
		if len(y.Content) == 0 {
			return nil, nil
		}
		return fromYAML(y.Content[0], depth)
	case yaml.AliasNode:
		return fromYAML(y.Alias, depth)
	case yaml.ScalarNode:
		return &node{kind: scalarNode, value: y.Value, null: y.Tag == "!!null"}, nil
	}

	if depth > maxDepth {
		return nil, &ParseError{Kind: KindDepth, Message: fmt.Sprintf("nesting exceeds %d levels (line %d)", maxDepth, y.Line)}
	}

	switch y.Kind {
	case yaml.MappingNode:
		n := &node{kind: mappingNode}
		for i := 0; i+1 < len(y.Content); i += 2 {
			key := y.Content[i]
			if key.Kind != yaml.ScalarNode {
				return nil, &ParseError{Kind: KindStructure, Message: fmt.Sprintf("mapping keys must be plain names (line %d)", key.Line)}
			}
			value, err := fromYAML(y.Content[i+1], depth+1)
			if err != nil {
				return nil, err
			}
			n.set(key.Value, value)
		}
		return n, nil
	case yaml.SequenceNode:
		n := &node{kind: sequenceNode}
		for _, item := range y.Content {
			value, err := fromYAML(item, depth+1)
			if err != nil {
				return nil, err
			}
			n.items = append(n.items, value)
		}
		return n, nil
	}
	return nil, &ParseError{Kind: KindStructure, Message: fmt.Sprintf("unexpected YAML node kind %d (line %d)", y.Kind, y.Line)}
}

// writeYAML renders doc through a yaml.Node tree so key order is kept.
func writeYAML(w io.Writer, doc *Document) error {
	root := mapping()
	for _, s := range doc.Schemas {
		tables := mapping()
		for _, t := range s.Tables {
			addPair(tables, t.Name, yamlTable(t))
		}
		addPair(root, s.Name, tables)
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(root); err != nil {
		return fmt.Errorf("failed to write document: %w", err)
	}
	return enc.Close()
}

func yamlTable(t Table) *yaml.Node {
	columns := mapping()
	for _, c := range t.Columns {
		attrs := mapping()
		addPair(attrs, "type", str(c.Type))
		addPair(attrs, "size", str(c.Size))
		addPair(attrs, "allowNull", str(yesNo(c.AllowNull)))
		addPair(attrs, "defaultValue", str(c.Default))
		addPair(columns, c.Name, attrs)
	}

	keys := mapping()
	for _, k := range t.Keys {
		cols := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq", Style: yaml.FlowStyle}
		for _, name := range k.Columns {
			cols.Content = append(cols.Content, str(name))
		}
		attrs := mapping()
		addPair(attrs, "type", str(k.Type))
		addPair(attrs, "columns", cols)
		addPair(keys, k.Name, attrs)
	}

	table := mapping()
	addPair(table, "columns", columns)
	addPair(table, "keys", keys)
	return table
}

func mapping() *yaml.Node {
	return &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
}

func str(v string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: v}
}

func addPair(m *yaml.Node, key string, value *yaml.Node) {
	m.Content = append(m.Content, str(key), value)
}
