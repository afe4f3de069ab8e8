package dialect

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/lib/pq"
)

// PostgreSQL dialect implementation
type postgres struct{}

func init() {
	Register(&postgres{}, "postgres", "postgresql")
}

func (d *postgres) Name() string {
	return "postgres"
}

func (d *postgres) DriverName() string {
	return "postgres"
}

func (d *postgres) Label() string {
	return "PostgreSQL"
}

// Placeholder uses $1, $2, $3...
func (d *postgres) Placeholder(index int) string {
	return "$" + strconv.Itoa(index)
}

func (d *postgres) QuoteString(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

func (d *postgres) QuoteBytes(b []byte) string {
	return `'\x` + hex.EncodeToString(b) + "'"
}

// FoundRowsSQL reports false: PostgreSQL has no FOUND_ROWS equivalent.
func (d *postgres) FoundRowsSQL() (string, bool) {
	return "", false
}

// DSN converts a postgres:// URL into lib/pq's key=value form.
func (d *postgres) DSN(conn string) (string, error) {
	dsn, err := pq.ParseURL(conn)
	if err != nil {
		return "", fmt.Errorf("dialect: invalid postgres url: %w", err)
	}
	return dsn, nil
}

func (d *postgres) Classify(err error) Class {
	var pe *pq.Error
	if errors.As(err, &pe) {
		switch pe.Code {
		case "23505":
			return ClassDuplicateKey
		case "23503":
			return ClassForeignKey
		case "3D000", "57P01", "57P02", "57P03":
			return ClassConnection
		}
		switch pe.Code.Class() {
		case "23":
			return ClassConstraint
		case "08", "28":
			return ClassConnection
		}
		return ClassQuery
	}
	return classifyCommon(err)
}
