package pool

import (
	"bytes"
	"encoding/json"
)

// Field describes one column of a result set.
type Field struct {
	Name         string `json:"name"`
	DatabaseType string `json:"database_type,omitempty"`
	Nullable     bool   `json:"nullable,omitempty"`
}

// Header is the execution metadata of a statement without a result set.
type Header struct {
	InsertID     int64 `json:"insert_id"`
	HasInsertID  bool  `json:"has_insert_id"`
	AffectedRows int64 `json:"affected_rows"`
}

// Result is what one statement produced: either a row set with its fields,
// or a Header.
type Result struct {
	Rows   []Record
	Fields []Field
	Header *Header
}

// Columns returns the column names in select order.
func (r *Result) Columns() []string {
	columns := make([]string, len(r.Fields))
	for i, f := range r.Fields {
		columns[i] = f.Name
	}
	return columns
}

// Record is a single row. Columns is shared by every record of a result and
// keeps the select order; Values lines up with it.
type Record struct {
	Columns []string
	Values  []any
}

// Len returns the number of columns in the record.
func (r Record) Len() int {
	return len(r.Values)
}

// Get returns the value of the named column. With duplicate column names
// the first one wins.
func (r Record) Get(name string) (any, bool) {
	for i, c := range r.Columns {
		if c == name && i < len(r.Values) {
			return r.Values[i], true
		}
	}
	return nil, false
}

// First returns the value of the first column.
func (r Record) First() (any, bool) {
	if len(r.Values) == 0 {
		return nil, false
	}
	return r.Values[0], true
}

// Map returns the record as a column name to value map.
func (r Record) Map() map[string]any {
	m := make(map[string]any, len(r.Values))
	for i, v := range r.Values {
		if i < len(r.Columns) {
			m[r.Columns[i]] = v
		}
	}
	return m
}

// MarshalJSON encodes the record as an object in column order.
func (r Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, v := range r.Values {
		if i >= len(r.Columns) {
			break
		}
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(r.Columns[i])
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
