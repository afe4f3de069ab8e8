package dialect

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/mattn/go-sqlite3"
)

type sqlite struct{}

func init() {
	Register(&sqlite{}, "sqlite3", "sqlite")
}

func (d *sqlite) Name() string {
	return "sqlite3"
}

func (d *sqlite) DriverName() string {
	return "sqlite3"
}

func (d *sqlite) Label() string {
	return "SQLite"
}

func (d *sqlite) Placeholder(index int) string {
	return "?"
}

func (d *sqlite) QuoteString(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

func (d *sqlite) QuoteBytes(b []byte) string {
	return "X'" + hex.EncodeToString(b) + "'"
}

func (d *sqlite) FoundRowsSQL() (string, bool) {
	return "", false
}

// DSN strips the "sqlite3:" / "sqlite://" style prefix and hands the rest to
// go-sqlite3, so "sqlite3::memory:" and "sqlite3:///var/db/app.db" both work.
func (d *sqlite) DSN(conn string) (string, error) {
	dsn := conn
	lower := strings.ToLower(conn)
	for _, prefix := range []string{"sqlite3://", "sqlite://", "sqlite3:", "sqlite:"} {
		if strings.HasPrefix(lower, prefix) {
			dsn = conn[len(prefix):]
			break
		}
	}
	if dsn == "" {
		return "", fmt.Errorf("dialect: empty sqlite database path in %q", conn)
	}
	return dsn, nil
}

func (d *sqlite) Classify(err error) Class {
	var se sqlite3.Error
	if errors.As(err, &se) {
		switch se.ExtendedCode {
		case sqlite3.ErrConstraintUnique, sqlite3.ErrConstraintPrimaryKey:
			return ClassDuplicateKey
		case sqlite3.ErrConstraintForeignKey:
			return ClassForeignKey
		}
		switch se.Code {
		case sqlite3.ErrConstraint:
			return ClassConstraint
		case sqlite3.ErrCantOpen, sqlite3.ErrNotADB, sqlite3.ErrAuth:
			return ClassConnection
		}
		return ClassQuery
	}
	return classifyCommon(err)
}
