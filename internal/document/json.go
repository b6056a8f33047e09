package document

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"unicode/utf8"
)

func parseJSON(data []byte) (*node, error) {
	if !utf8.Valid(data) {
		return nil, &ParseError{Kind: KindEncoding, Message: "document is not valid UTF-8"}
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, &ParseError{Kind: KindSyntax, Message: "document is empty"}
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	root, err := readJSONValue(dec, 1)
	if err != nil {
		return nil, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, &ParseError{Kind: KindSyntax, Message: fmt.Sprintf("unexpected data after offset %d", dec.InputOffset())}
	}
	return root, nil
}

func readJSONValue(dec *json.Decoder, depth int) (*node, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, jsonSyntaxErr(err)
	}

	switch t := tok.(type) {
	case json.Delim:
		if depth > maxDepth {
			return nil, &ParseError{Kind: KindDepth, Message: fmt.Sprintf("nesting exceeds %d levels", maxDepth)}
		}
		switch t {
		case '{':
			n := &node{kind: mappingNode}
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return nil, jsonSyntaxErr(err)
				}
				key, _ := keyTok.(string)
				value, err := readJSONValue(dec, depth+1)
				if err != nil {
					return nil, err
				}
				n.set(key, value)
			}
			if _, err := dec.Token(); err != nil {
				return nil, jsonSyntaxErr(err)
			}
			return n, nil
		case '[':
			n := &node{kind: sequenceNode}
			for dec.More() {
				value, err := readJSONValue(dec, depth+1)
				if err != nil {
					return nil, err
				}
				n.items = append(n.items, value)
			}
			if _, err := dec.Token(); err != nil {
				return nil, jsonSyntaxErr(err)
			}
			return n, nil
		}
		return nil, &ParseError{Kind: KindSyntax, Message: fmt.Sprintf("unexpected %q", t)}
	case string:
		return &node{kind: scalarNode, value: t}, nil
	case json.Number:
		return &node{kind: scalarNode, value: t.String()}, nil
	case bool:
		return &node{kind: scalarNode, value: fmt.Sprint(t)}, nil
	case nil:
		return &node{kind: scalarNode, null: true}, nil
	}
	return nil, &ParseError{Kind: KindSyntax, Message: fmt.Sprintf("unexpected token %v", tok)}
}

func jsonSyntaxErr(err error) error {
	var syn *json.SyntaxError
	switch {
	case errors.As(err, &syn):
		return &ParseError{Kind: KindSyntax, Message: fmt.Sprintf("at offset %d", syn.Offset), Err: err}
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		return &ParseError{Kind: KindSyntax, Message: "unexpected end of document"}
	}
	return &ParseError{Kind: KindSyntax, Err: err}
}

// writeJSON renders doc with keys in document order, columns before keys.
func writeJSON(w io.Writer, doc *Document) error {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, s := range doc.Schemas {
		comma(&buf, i)
		jsonKey(&buf, s.Name)
		buf.WriteByte('{')
		for j, t := range s.Tables {
			comma(&buf, j)
			jsonKey(&buf, t.Name)
			writeJSONTable(&buf, t)
		}
		buf.WriteByte('}')
	}
	buf.WriteByte('}')

	var out bytes.Buffer
	if err := json.Indent(&out, buf.Bytes(), "", "  "); err != nil {
		return fmt.Errorf("failed to format document: %w", err)
	}
	out.WriteByte('\n')
	if _, err := out.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write document: %w", err)
	}
	return nil
}

func writeJSONTable(buf *bytes.Buffer, t Table) {
	buf.WriteString(`{"columns":{`)
	for i, c := range t.Columns {
		comma(buf, i)
		jsonKey(buf, c.Name)
		buf.WriteByte('{')
		jsonKey(buf, "type")
		jsonString(buf, c.Type)
		buf.WriteByte(',')
		jsonKey(buf, "size")
		jsonString(buf, c.Size)
		buf.WriteByte(',')
		jsonKey(buf, "allowNull")
		jsonString(buf, yesNo(c.AllowNull))
		buf.WriteByte(',')
		jsonKey(buf, "defaultValue")
		jsonString(buf, c.Default)
		buf.WriteByte('}')
	}
	buf.WriteString(`},"keys":{`)
	for i, k := range t.Keys {
		comma(buf, i)
		jsonKey(buf, k.Name)
		buf.WriteByte('{')
		jsonKey(buf, "type")
		jsonString(buf, k.Type)
		buf.WriteString(`,"columns":[`)
		for j, col := range k.Columns {
			comma(buf, j)
			jsonString(buf, col)
		}
		buf.WriteString("]}")
	}
	buf.WriteString("}}")
}

func comma(buf *bytes.Buffer, i int) {
	if i > 0 {
		buf.WriteByte(',')
	}
}

func jsonKey(buf *bytes.Buffer, key string) {
	jsonString(buf, key)
	buf.WriteByte(':')
}

func jsonString(buf *bytes.Buffer, s string) {
	// Marshalling a string cannot fail.
	b, _ := json.Marshal(s)
	buf.Write(b)
}
