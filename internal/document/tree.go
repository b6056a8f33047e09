package document

import (
	"strings"
)

// maxDepth bounds nesting. A well-formed document is five levels deep; the
// limit leaves room for malformed input to be reported as a structure error
// instead of a depth error.
const maxDepth = 32

type nodeKind int

const (
	scalarNode nodeKind = iota
	mappingNode
	sequenceNode
)

func (k nodeKind) String() string {
	switch k {
	case mappingNode:
		return "mapping"
	case sequenceNode:
		return "list"
	}
	return "scalar"
}

// node is the format-neutral parse tree both decoders produce. Mappings keep
// their keys in document order.
type node struct {
	kind  nodeKind
	value string
	null  bool
	keys  []string
	items []*node
}

func (n *node) set(key string, value *node) {
	n.keys = append(n.keys, key)
	n.items = append(n.items, value)
}

func joinPath(parts ...string) string {
	return strings.Join(parts, "/")
}

func structureErr(path, format string) *ParseError {
	return &ParseError{Kind: KindStructure, Path: path, Message: format}
}

func expect(n *node, kind nodeKind, path string) error {
	if n.kind != kind || n.null {
		got := n.kind.String()
		if n.null {
			got = "null"
		}
		return structureErr(path, "expected a "+kind.String()+", found "+got)
	}
	return nil
}

func checkDuplicates(n *node, path string) error {
	seen := make(map[string]bool, len(n.keys))
	for _, k := range n.keys {
		if seen[k] {
			return &ParseError{Kind: KindStructure, Path: path, Key: k, Message: "duplicate key"}
		}
		seen[k] = true
	}
	return nil
}

// build turns a parse tree into a Document, rejecting anything that does not
// fit the schema/table/columns|keys shape.
func build(root *node) (*Document, error) {
	if root == nil || root.null {
		return &Document{}, nil
	}
	if err := expect(root, mappingNode, ""); err != nil {
		return nil, err
	}
	if err := checkDuplicates(root, ""); err != nil {
		return nil, err
	}

	doc := &Document{}
	for i, name := range root.keys {
		s, err := buildSchema(name, root.items[i])
		if err != nil {
			return nil, err
		}
		doc.Schemas = append(doc.Schemas, s)
	}
	return doc, nil
}

func buildSchema(name string, n *node) (Schema, error) {
	s := Schema{Name: name}
	if n.null {
		return s, nil
	}
	if err := expect(n, mappingNode, name); err != nil {
		return s, err
	}
	if err := checkDuplicates(n, name); err != nil {
		return s, err
	}
	for i, tableName := range n.keys {
		t, err := buildTable(tableName, n.items[i], joinPath(name, tableName))
		if err != nil {
			return s, err
		}
		s.Tables = append(s.Tables, t)
	}
	return s, nil
}

func buildTable(name string, n *node, path string) (Table, error) {
	t := Table{Name: name}
	if err := expect(n, mappingNode, path); err != nil {
		return t, err
	}
	for i, key := range n.keys {
		field, ok := tableField(key)
		if !ok {
			return t, &ParseError{Kind: KindUnknownKey, Path: path, Key: key, Message: "expected columns or keys"}
		}
		value := n.items[i]
		if value.null {
			continue
		}
		sub := joinPath(path, field)
		if err := expect(value, mappingNode, sub); err != nil {
			return t, err
		}
		if err := checkDuplicates(value, sub); err != nil {
			return t, err
		}
		for j, itemName := range value.keys {
			var err error
			switch field {
			case "columns":
				var c Column
				c, err = buildColumn(itemName, value.items[j], joinPath(sub, itemName))
				t.Columns = append(t.Columns, c)
			case "keys":
				var k Key
				k, err = buildKey(itemName, value.items[j], joinPath(sub, itemName))
				t.Keys = append(t.Keys, k)
			}
			if err != nil {
				return t, err
			}
		}
	}
	return t, nil
}

func buildColumn(name string, n *node, path string) (Column, error) {
	c := Column{Name: name}
	if err := expect(n, mappingNode, path); err != nil {
		return c, err
	}
	for i, key := range n.keys {
		field, ok := columnField(key)
		if !ok {
			return c, &ParseError{Kind: KindUnknownKey, Path: path, Key: key, Message: "expected type, size, allowNull or defaultValue"}
		}
		value := n.items[i]
		sub := joinPath(path, field)
		if field == "defaultValue" && value.null {
			c.Default = defaultNull
			continue
		}
		if value.null {
			continue
		}
		if err := expect(value, scalarNode, sub); err != nil {
			return c, err
		}
		switch field {
		case "type":
			c.Type = strings.TrimSpace(value.value)
		case "size":
			c.Size = strings.TrimSpace(value.value)
		case "allowNull":
			allow, ok := parseYesNo(value.value)
			if !ok {
				return c, structureErr(sub, "expected yes or no, found "+value.value)
			}
			c.AllowNull = allow
		case "defaultValue":
			c.Default = value.value
		}
	}
	return c, nil
}

func buildKey(name string, n *node, path string) (Key, error) {
	k := Key{Name: name}
	if err := expect(n, mappingNode, path); err != nil {
		return k, err
	}
	for i, key := range n.keys {
		field, ok := keyField(key)
		if !ok {
			return k, &ParseError{Kind: KindUnknownKey, Path: path, Key: key, Message: "expected type or columns"}
		}
		value := n.items[i]
		if value.null {
			continue
		}
		sub := joinPath(path, field)
		switch field {
		case "type":
			if err := expect(value, scalarNode, sub); err != nil {
				return k, err
			}
			k.Type = strings.TrimSpace(value.value)
		case "columns":
			cols, err := columnList(value, sub)
			if err != nil {
				return k, err
			}
			k.Columns = cols
		}
	}
	return k, nil
}

// columnList accepts a list of names or a single comma separated string.
func columnList(n *node, path string) ([]string, error) {
	if n.kind == scalarNode {
		var cols []string
		for _, c := range strings.Split(n.value, ",") {
			if c = strings.TrimSpace(c); c != "" {
				cols = append(cols, c)
			}
		}
		return cols, nil
	}
	if err := expect(n, sequenceNode, path); err != nil {
		return nil, err
	}
	cols := make([]string, 0, len(n.items))
	for _, item := range n.items {
		if err := expect(item, scalarNode, path); err != nil {
			return nil, err
		}
		cols = append(cols, strings.TrimSpace(item.value))
	}
	return cols, nil
}

func parseYesNo(v string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "yes", "y", "true", "1":
		return true, true
	case "no", "n", "false", "0":
		return false, true
	}
	return false, false
}
