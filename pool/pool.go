package pool

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shrek82/simplemysql/dialect"
)

// Pool defines the interface for a database connection pool as the facade
// sees it: it can render a statement for display, run it, and be closed.
type Pool interface {
	// Dialect reports the SQL dialect the pool speaks.
	Dialect() dialect.Dialect
	// Format renders query with args inlined as literals, without running it.
	Format(query string, args ...any) (string, error)
	// Query binds args, runs the statement and returns its full result.
	Query(ctx context.Context, query string, args ...any) (*Result, error)
	// Close closes the pool.
	Close() error
}

// Options controls the sizing of a StdPool.
type Options struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// StdPool is an implementation of Pool using the standard library's *sql.DB.
type StdPool struct {
	db      *sql.DB
	dialect dialect.Dialect
}

// NewStdPool creates a new StdPool wrapping the given *sql.DB.
func NewStdPool(db *sql.DB, d dialect.Dialect) *StdPool {
	return &StdPool{db: db, dialect: d}
}

// Open resolves the dialect of conn and opens a lazily connecting pool for it.
func Open(conn string, opts *Options) (*StdPool, error) {
	d, dsn, err := dialect.Resolve(conn)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(d.DriverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("pool: open %s: %w", d.Name(), err)
	}

	if opts != nil {
		if opts.MaxOpenConns > 0 {
			db.SetMaxOpenConns(opts.MaxOpenConns)
		}
		if opts.MaxIdleConns > 0 {
			db.SetMaxIdleConns(opts.MaxIdleConns)
		}
		if opts.ConnMaxLifetime > 0 {
			db.SetConnMaxLifetime(opts.ConnMaxLifetime)
		}
	}

	return NewStdPool(db, d), nil
}

// DB returns the wrapped *sql.DB.
func (p *StdPool) DB() *sql.DB {
	return p.db
}

func (p *StdPool) Dialect() dialect.Dialect {
	return p.dialect
}

func (p *StdPool) Format(query string, args ...any) (string, error) {
	return Render(p.dialect, query, args)
}

// Query runs statements that produce a result set through QueryContext and
// everything else through ExecContext, so the Result carries either rows or
// a Header.
func (p *StdPool) Query(ctx context.Context, query string, args ...any) (*Result, error) {
	q, flat, err := Bind(p.dialect, query, args)
	if err != nil {
		return nil, err
	}

	if !ReturnsRows(q) {
		res, err := p.db.ExecContext(ctx, q, flat...)
		if err != nil {
			return nil, err
		}
		h := &Header{}
		if id, err := res.LastInsertId(); err == nil {
			h.InsertID = id
			h.HasInsertID = true
		}
		if n, err := res.RowsAffected(); err == nil {
			h.AffectedRows = n
		}
		return &Result{Header: h}, nil
	}

	rows, err := p.db.QueryContext(ctx, q, flat...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collect(rows)
}

func (p *StdPool) Close() error {
	return p.db.Close()
}

func collect(rows *sql.Rows) (*Result, error) {
	types, err := rows.ColumnTypes()
	if err != nil {
		return nil, err
	}

	fields := make([]Field, len(types))
	columns := make([]string, len(types))
	for i, ct := range types {
		nullable, _ := ct.Nullable()
		fields[i] = Field{
			Name:         ct.Name(),
			DatabaseType: ct.DatabaseTypeName(),
			Nullable:     nullable,
		}
		columns[i] = ct.Name()
	}

	records := make([]Record, 0)
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		for i := range values {
			values[i] = normalize(fields[i].DatabaseType, values[i])
		}
		records = append(records, Record{Columns: columns, Values: values})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &Result{Rows: records, Fields: fields}, nil
}
