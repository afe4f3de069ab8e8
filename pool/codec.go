package pool

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// Value kinds recorded next to each encoded cell. Values without a kind are
// plain JSON (nil, strings, bools).
const (
	kindBytes = "bytes"
	kindInt   = "int"
	kindUint  = "uint"
	kindFloat = "float"
	kindTime  = "time"
)

type cell struct {
	Kind  string          `json:"k,omitempty"`
	Value json.RawMessage `json:"v,omitempty"`
}

type encodedResult struct {
	Fields []Field  `json:"fields,omitempty"`
	Rows   [][]cell `json:"rows,omitempty"`
	Header *Header  `json:"header,omitempty"`
}

// EncodeResult serializes a Result for storage in a cache.
func EncodeResult(r *Result) ([]byte, error) {
	enc := encodedResult{Fields: r.Fields, Header: r.Header}
	enc.Rows = make([][]cell, len(r.Rows))
	for i, rec := range r.Rows {
		row := make([]cell, len(rec.Values))
		for j, v := range rec.Values {
			c, err := encodeCell(v)
			if err != nil {
				return nil, fmt.Errorf("pool: encode %s: %w", columnName(rec.Columns, j), err)
			}
			row[j] = c
		}
		enc.Rows[i] = row
	}
	return json.Marshal(enc)
}

// DecodeResult restores a Result written by EncodeResult. Values come back
// with the Go type they were stored with: []byte, int64, uint64, float64 and
// time.Time included.
func DecodeResult(data []byte) (*Result, error) {
	var enc encodedResult
	if err := json.Unmarshal(data, &enc); err != nil {
		return nil, fmt.Errorf("pool: decode result: %w", err)
	}

	res := &Result{Fields: enc.Fields, Header: enc.Header}
	if enc.Header != nil {
		return res, nil
	}

	columns := res.Columns()
	res.Rows = make([]Record, len(enc.Rows))
	for i, row := range enc.Rows {
		values := make([]any, len(row))
		for j, c := range row {
			v, err := decodeCell(c)
			if err != nil {
				return nil, fmt.Errorf("pool: decode %s: %w", columnName(columns, j), err)
			}
			values[j] = v
		}
		res.Rows[i] = Record{Columns: columns, Values: values}
	}
	return res, nil
}

func encodeCell(v any) (cell, error) {
	var kind string
	switch x := v.(type) {
	case nil:
		return cell{}, nil
	case []byte:
		kind = kindBytes
	case int64, int, int32, int16, int8:
		kind = kindInt
	case uint64, uint, uint32, uint16, uint8:
		kind = kindUint
	case float64, float32:
		kind = kindFloat
	case time.Time:
		kind = kindTime
	case *time.Time:
		if x == nil {
			return cell{}, nil
		}
		kind, v = kindTime, *x
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return cell{}, err
	}
	return cell{Kind: kind, Value: raw}, nil
}

func decodeCell(c cell) (any, error) {
	if len(c.Value) == 0 {
		return nil, nil
	}
	var (
		v   any
		err error
	)
	switch c.Kind {
	case kindBytes:
		var b []byte
		err = json.Unmarshal(c.Value, &b)
		v = b
	case kindInt:
		var n int64
		err = json.Unmarshal(c.Value, &n)
		v = n
	case kindUint:
		var n uint64
		err = json.Unmarshal(c.Value, &n)
		v = n
	case kindFloat:
		var f float64
		err = json.Unmarshal(c.Value, &f)
		v = f
	case kindTime:
		var t time.Time
		err = json.Unmarshal(c.Value, &t)
		v = t
	case "":
		return decodePlain(c.Value)
	default:
		return nil, fmt.Errorf("unknown value kind %q", c.Kind)
	}
	if err != nil {
		return nil, err
	}
	return v, nil
}

func decodePlain(raw json.RawMessage) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if n, ok := v.(json.Number); ok {
		if iv, err := n.Int64(); err == nil {
			return iv, nil
		}
		return n.Float64()
	}
	return v, nil
}

func columnName(columns []string, i int) string {
	if i < len(columns) {
		return columns[i]
	}
	return fmt.Sprintf("column %d", i)
}
