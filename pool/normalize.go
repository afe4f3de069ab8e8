package pool

import (
	"strconv"
	"strings"
)

// normalize turns the raw bytes some drivers hand back (MySQL's text
// protocol returns every column as []byte) into the value a caller expects
// for the column type. Non-byte values are returned unchanged.
func normalize(dbType string, v any) any {
	b, ok := v.([]byte)
	if !ok {
		return v
	}

	t := strings.ToUpper(dbType)
	unsigned := strings.HasPrefix(t, "UNSIGNED ")
	t = strings.TrimPrefix(t, "UNSIGNED ")

	switch t {
	case "TINYINT", "SMALLINT", "MEDIUMINT", "INT", "INTEGER", "BIGINT", "YEAR",
		"INT2", "INT4", "INT8":
		if unsigned {
			if n, err := strconv.ParseUint(string(b), 10, 64); err == nil {
				return n
			}
		} else if n, err := strconv.ParseInt(string(b), 10, 64); err == nil {
			return n
		}
		return string(b)
	case "FLOAT", "DOUBLE", "REAL", "FLOAT4", "FLOAT8":
		if f, err := strconv.ParseFloat(string(b), 64); err == nil {
			return f
		}
		return string(b)
	case "BINARY", "VARBINARY", "TINYBLOB", "BLOB", "MEDIUMBLOB", "LONGBLOB",
		"BIT", "GEOMETRY", "BYTEA":
		return b
	}
	return string(b)
}
