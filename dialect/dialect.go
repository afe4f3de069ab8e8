package dialect

import (
	"fmt"
	"strings"
	"sync"
)

// Class is the coarse category a driver error falls into.
type Class int

const (
	ClassQuery Class = iota
	ClassConnection
	ClassConstraint
	ClassDuplicateKey
	ClassForeignKey
)

func (c Class) String() string {
	switch c {
	case ClassQuery:
		return "query"
	case ClassConnection:
		return "connection"
	case ClassConstraint:
		return "constraint"
	case ClassDuplicateKey:
		return "duplicate key"
	case ClassForeignKey:
		return "foreign key"
	default:
		return fmt.Sprintf("Class(%d)", int(c))
	}
}

// Dialect represents the database-specific parts of talking to a server:
// how connection strings map to driver DSNs, how placeholders and literals
// are written, and how driver errors are classified.
type Dialect interface {
	// Name is the registry key, e.g. "mysql".
	Name() string
	// DriverName is the database/sql driver to open.
	DriverName() string
	// Label prefixes log lines and error messages, e.g. "MySQL".
	Label() string
	// Placeholder returns the bind placeholder for the 1-based argument index.
	Placeholder(index int) string
	// QuoteString renders s as an escaped string literal.
	QuoteString(s string) string
	// QuoteBytes renders b as a binary literal.
	QuoteBytes(b []byte) string
	// FoundRowsSQL returns the statement reporting the rows matched by the
	// previous query before its LIMIT, if the server has one.
	FoundRowsSQL() (string, bool)
	// DSN converts a connection string into the driver's DSN.
	DSN(conn string) (string, error)
	// Classify sorts a driver error into a Class.
	Classify(err error) Class
}

var (
	mu       sync.RWMutex
	dialects = make(map[string]Dialect)
)

// Register registers a dialect under one or more names. Names are
// case-insensitive and double as connection-string schemes.
func Register(d Dialect, names ...string) {
	mu.Lock()
	defer mu.Unlock()
	if len(names) == 0 {
		names = []string{d.Name()}
	}
	for _, name := range names {
		dialects[strings.ToLower(name)] = d
	}
}

// Get retrieves a registered dialect by name.
func Get(name string) (Dialect, bool) {
	mu.RLock()
	defer mu.RUnlock()
	d, ok := dialects[strings.ToLower(name)]
	return d, ok
}

// MustGet is like Get but panics for unknown names.
func MustGet(name string) Dialect {
	d, ok := Get(name)
	if !ok {
		panic(fmt.Sprintf("dialect: unknown dialect %q", name))
	}
	return d
}

// Resolve picks the dialect for a connection string and returns the DSN to
// hand to its driver.
//
// "scheme://..." strings are routed by scheme, "sqlite3:" and "sqlite:"
// prefixes select SQLite, and anything else is taken as a raw MySQL DSN.
func Resolve(conn string) (Dialect, string, error) {
	conn = strings.TrimSpace(conn)
	if conn == "" {
		return nil, "", fmt.Errorf("dialect: empty connection string")
	}

	var d Dialect
	if i := strings.Index(conn, "://"); i > 0 {
		scheme := conn[:i]
		var ok bool
		if d, ok = Get(scheme); !ok {
			return nil, "", fmt.Errorf("dialect: unknown scheme %q", scheme)
		}
	} else if i := strings.IndexByte(conn, ':'); i > 0 && isSQLiteScheme(conn[:i]) {
		d = MustGet("sqlite3")
	} else {
		d = MustGet("mysql")
	}

	dsn, err := d.DSN(conn)
	if err != nil {
		return nil, "", err
	}
	return d, dsn, nil
}

func isSQLiteScheme(s string) bool {
	s = strings.ToLower(s)
	return s == "sqlite" || s == "sqlite3"
}
