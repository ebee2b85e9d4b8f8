// Package models defines data structures for certificate batches.
package models

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Row represents one spreadsheet line as an ordered header → text mapping.
// The zero value is an empty row with no columns.
type Row struct {
	columns []string
	values  map[string]string
}

// NewRow creates an empty row with room for n columns.
func NewRow(n int) Row {
	return Row{
		columns: make([]string, 0, n),
		values:  make(map[string]string, n),
	}
}

// Set stores value under header. A new header is appended to the column
// order; an existing one keeps its position.
func (r *Row) Set(header, value string) {
	if r.values == nil {
		r.values = make(map[string]string)
	}
	if _, ok := r.values[header]; !ok {
		r.columns = append(r.columns, header)
	}
	r.values[header] = value
}

// Get returns the value stored under header.
func (r Row) Get(header string) (string, bool) {
	v, ok := r.values[header]
	return v, ok
}

// Value returns the value stored under header, or "" if absent.
func (r Row) Value(header string) string {
	return r.values[header]
}

// Columns returns the headers in column order.
func (r Row) Columns() []string {
	out := make([]string, len(r.columns))
	copy(out, r.columns)
	return out
}

// Len returns the number of columns.
func (r Row) Len() int {
	return len(r.columns)
}

// Clone returns a deep copy of the row.
func (r Row) Clone() Row {
	c := NewRow(len(r.columns))
	for _, h := range r.columns {
		c.Set(h, r.values[h])
	}
	return c
}

// Equal reports whether both rows hold the same headers in the same order
// with the same values.
func (r Row) Equal(o Row) bool {
	if len(r.columns) != len(o.columns) {
		return false
	}
	for i, h := range r.columns {
		if o.columns[i] != h || o.values[h] != r.values[h] {
			return false
		}
	}
	return true
}

// MarshalJSON encodes the row as a JSON object in column order.
func (r Row) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, h := range r.columns {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeJSONPair(&buf, h, r.values[h]); err != nil {
			return nil, err
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a JSON object keeping its key order.
// Non-string values are kept as their JSON text; null becomes "".
func (r *Row) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		*r = Row{}
		return nil
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("row: expected JSON object, got %v", tok)
	}

	row := NewRow(8)
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("row: expected object key, got %v", keyTok)
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return err
		}
		row.Set(key, rawText(raw))
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*r = row
	return nil
}

// writeJSONPair writes "key":"value" to buf.
func writeJSONPair(buf *bytes.Buffer, key, value string) error {
	k, err := json.Marshal(key)
	if err != nil {
		return err
	}
	v, err := json.Marshal(value)
	if err != nil {
		return err
	}
	buf.Write(k)
	buf.WriteByte(':')
	buf.Write(v)
	return nil
}

// rawText converts a raw JSON value to text.
func rawText(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	if bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return ""
	}
	return string(bytes.TrimSpace(raw))
}
