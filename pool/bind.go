package pool

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/shrek82/simplemysql/dialect"
)

// Params holds named parameters. Passing a single Params value as the only
// argument switches a statement to ":name" placeholders.
type Params map[string]any

var (
	// ErrMissingParam is returned when a named placeholder has no value.
	ErrMissingParam = errors.New("missing named parameter")
	// ErrArgCount is returned when positional placeholders and arguments
	// do not line up.
	ErrArgCount = errors.New("placeholder and argument count mismatch")
)

// scanner walks SQL text and reports placeholders found outside string
// literals, quoted identifiers and comments.
type scanner struct {
	named            bool
	hashComments     bool
	backslashEscapes bool
}

func newScanner(d dialect.Dialect, named bool) scanner {
	my := d.Name() == "mysql"
	return scanner{named: named, hashComments: my, backslashEscapes: my}
}

// walk calls text for literal SQL and param for every placeholder, in order.
// param receives the placeholder name, or "" for positional ones.
func (s scanner) walk(query string, text func(string), param func(string) error) error {
	start := 0
	for i := 0; i < len(query); {
		c := query[i]
		switch {
		case c == '\'' || c == '"' || c == '`':
			i = s.skipQuoted(query, i)
		case c == '-' && i+1 < len(query) && query[i+1] == '-':
			i = skipLine(query, i)
		case c == '#' && s.hashComments:
			i = skipLine(query, i)
		case c == '/' && i+1 < len(query) && query[i+1] == '*':
			i = skipBlock(query, i)
		case c == '?' && !s.named:
			text(query[start:i])
			if err := param(""); err != nil {
				return err
			}
			i++
			start = i
		case c == ':' && s.named:
			if i+1 < len(query) && query[i+1] == ':' {
				// postgres cast
				i += 2
				continue
			}
			j := i + 1
			if j >= len(query) || !isIdentStart(query[j]) {
				i++
				continue
			}
			for j < len(query) && isIdentPart(query[j]) {
				j++
			}
			text(query[start:i])
			if err := param(query[i+1 : j]); err != nil {
				return err
			}
			i = j
			start = i
		default:
			i++
		}
	}
	text(query[start:])
	return nil
}

func (s scanner) skipQuoted(query string, i int) int {
	quote := query[i]
	i++
	for i < len(query) {
		c := query[i]
		if c == '\\' && s.backslashEscapes && quote != '`' {
			i += 2
			continue
		}
		if c == quote {
			if i+1 < len(query) && query[i+1] == quote {
				i += 2
				continue
			}
			return i + 1
		}
		i++
	}
	return i
}

func skipLine(query string, i int) int {
	if j := strings.IndexByte(query[i:], '\n'); j >= 0 {
		return i + j + 1
	}
	return len(query)
}

func skipBlock(query string, i int) int {
	if j := strings.Index(query[i+2:], "*/"); j >= 0 {
		return i + 2 + j + 2
	}
	return len(query)
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}

// namedParams reports whether args is a single named parameter map.
func namedParams(args []any) (map[string]any, bool) {
	if len(args) != 1 {
		return nil, false
	}
	switch p := args[0].(type) {
	case Params:
		return p, true
	case map[string]any:
		return p, true
	}
	return nil, false
}

// Bind rewrites the placeholders of query into the dialect's bind style and
// flattens args to match. Slices expand into comma separated placeholder
// lists and slices of slices into grouped lists, so "IN (:ids)" and bulk
// "VALUES ?" work.
//
// Positional queries without "?" placeholders pass through unchanged, which
// keeps native "$1" style statements usable.
func Bind(d dialect.Dialect, query string, args []any) (string, []any, error) {
	params, named := namedParams(args)

	var (
		b     strings.Builder
		flat  []any
		next  int
		found int
	)
	write := func(v any) {
		flat = append(flat, v)
		b.WriteString(d.Placeholder(len(flat)))
	}

	err := newScanner(d, named).walk(query, func(s string) {
		b.WriteString(s)
	}, func(name string) error {
		found++
		var v any
		if named {
			var ok bool
			if v, ok = params[name]; !ok {
				return fmt.Errorf("pool: %w %q", ErrMissingParam, name)
			}
		} else {
			if next >= len(args) {
				return fmt.Errorf("pool: %w: more than %d placeholders", ErrArgCount, len(args))
			}
			v = args[next]
			next++
		}
		writeExpanded(&b, v, write)
		return nil
	})
	if err != nil {
		return "", nil, err
	}

	if !named {
		if found == 0 {
			return query, args, nil
		}
		if next != len(args) {
			return "", nil, fmt.Errorf("pool: %w: %d placeholders, %d arguments", ErrArgCount, found, len(args))
		}
	}
	return b.String(), flat, nil
}

// Render inlines args into query as literals, the way the statement would
// read if the server saw it with parameters substituted. Argument counts are
// checked the same way Bind checks them, so a positional query without "?"
// comes back unchanged.
func Render(d dialect.Dialect, query string, args []any) (string, error) {
	params, named := namedParams(args)

	var (
		b     strings.Builder
		next  int
		found int
	)
	err := newScanner(d, named).walk(query, func(s string) {
		b.WriteString(s)
	}, func(name string) error {
		found++
		var v any
		if named {
			var ok bool
			if v, ok = params[name]; !ok {
				return fmt.Errorf("pool: %w %q", ErrMissingParam, name)
			}
		} else {
			if next >= len(args) {
				return fmt.Errorf("pool: %w: more than %d placeholders", ErrArgCount, len(args))
			}
			v = args[next]
			next++
		}
		lit, err := Literal(d, v)
		if err != nil {
			return err
		}
		b.WriteString(lit)
		return nil
	})
	if err != nil {
		return "", err
	}
	if !named && found > 0 && next != len(args) {
		return "", fmt.Errorf("pool: %w: %d placeholders, %d arguments", ErrArgCount, found, len(args))
	}
	return b.String(), nil
}

// writeExpanded writes the placeholder(s) for one bound value.
func writeExpanded(b *strings.Builder, v any, write func(any)) {
	items, ok := listOf(v)
	if !ok {
		write(v)
		return
	}
	if len(items) == 0 {
		b.WriteString("NULL")
		return
	}
	for i, item := range items {
		if i > 0 {
			b.WriteString(", ")
		}
		if group, ok := listOf(item); ok {
			b.WriteByte('(')
			for j, g := range group {
				if j > 0 {
					b.WriteString(", ")
				}
				write(g)
			}
			b.WriteByte(')')
			continue
		}
		write(item)
	}
}

// listOf returns the elements of v when v is a slice or array that should
// expand, i.e. anything but []byte and driver.Valuer.
func listOf(v any) ([]any, bool) {
	switch v.(type) {
	case nil, []byte, driver.Valuer, string:
		return nil, false
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	if rv.Kind() == reflect.Slice && rv.Type().Elem().Kind() == reflect.Uint8 {
		return nil, false
	}
	items := make([]any, rv.Len())
	for i := range items {
		items[i] = rv.Index(i).Interface()
	}
	return items, true
}

// Literal renders a single value as SQL text in the dialect.
func Literal(d dialect.Dialect, v any) (string, error) {
	if valuer, ok := v.(driver.Valuer); ok {
		if rv := reflect.ValueOf(v); rv.Kind() == reflect.Pointer && rv.IsNil() {
			return "NULL", nil
		}
		dv, err := valuer.Value()
		if err != nil {
			return "", fmt.Errorf("pool: valuer: %w", err)
		}
		v = dv
	}

	switch x := v.(type) {
	case nil:
		return "NULL", nil
	case string:
		return d.QuoteString(x), nil
	case []byte:
		if x == nil {
			return "NULL", nil
		}
		return d.QuoteBytes(x), nil
	case bool:
		if x {
			return "true", nil
		}
		return "false", nil
	case int:
		return strconv.FormatInt(int64(x), 10), nil
	case int8:
		return strconv.FormatInt(int64(x), 10), nil
	case int16:
		return strconv.FormatInt(int64(x), 10), nil
	case int32:
		return strconv.FormatInt(int64(x), 10), nil
	case int64:
		return strconv.FormatInt(x, 10), nil
	case uint:
		return strconv.FormatUint(uint64(x), 10), nil
	case uint8:
		return strconv.FormatUint(uint64(x), 10), nil
	case uint16:
		return strconv.FormatUint(uint64(x), 10), nil
	case uint32:
		return strconv.FormatUint(uint64(x), 10), nil
	case uint64:
		return strconv.FormatUint(x, 10), nil
	case float32:
		return strconv.FormatFloat(float64(x), 'g', -1, 32), nil
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64), nil
	case time.Time:
		return d.QuoteString(x.Format("2006-01-02 15:04:05.000")), nil
	}

	if items, ok := listOf(v); ok {
		if len(items) == 0 {
			return "NULL", nil
		}
		parts := make([]string, len(items))
		for i, item := range items {
			lit, err := Literal(d, item)
			if err != nil {
				return "", err
			}
			if _, nested := listOf(item); nested {
				lit = "(" + lit + ")"
			}
			parts[i] = lit
		}
		return strings.Join(parts, ", "), nil
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return "NULL", nil
		}
		return Literal(d, rv.Elem().Interface())
	}
	if s, ok := v.(fmt.Stringer); ok {
		return d.QuoteString(s.String()), nil
	}
	return d.QuoteString(fmt.Sprint(v)), nil
}

var rowVerbs = map[string]bool{
	"SELECT":   true,
	"SHOW":     true,
	"DESCRIBE": true,
	"DESC":     true,
	"EXPLAIN":  true,
	"WITH":     true,
	"VALUES":   true,
	"TABLE":    true,
	"PRAGMA":   true,
	"CALL":     true,
}

// ReturnsRows reports whether a statement produces a result set, judged by
// its leading keyword or a RETURNING clause.
func ReturnsRows(query string) bool {
	s := scanner{hashComments: true}
	first := ""
	returning := false
	s.walkWords(query, func(word string) bool {
		w := strings.ToUpper(word)
		if first == "" {
			first = w
			if rowVerbs[w] {
				return false
			}
		}
		if w == "RETURNING" {
			returning = true
			return false
		}
		return true
	})
	return rowVerbs[first] || returning
}

// walkWords calls fn with every bare word outside literals and comments
// until fn returns false.
func (s scanner) walkWords(query string, fn func(string) bool) {
	for i := 0; i < len(query); {
		c := query[i]
		switch {
		case c == '\'' || c == '"' || c == '`':
			i = s.skipQuoted(query, i)
		case c == '-' && i+1 < len(query) && query[i+1] == '-':
			i = skipLine(query, i)
		case c == '#' && s.hashComments:
			i = skipLine(query, i)
		case c == '/' && i+1 < len(query) && query[i+1] == '*':
			i = skipBlock(query, i)
		case isIdentStart(c):
			j := i + 1
			for j < len(query) && isIdentPart(query[j]) {
				j++
			}
			if !fn(query[i:j]) {
				return
			}
			i = j
		default:
			i++
		}
	}
}
