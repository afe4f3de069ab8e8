package core

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shrek82/simplemysql/cache"
	"github.com/shrek82/simplemysql/dialect"
	"github.com/shrek82/simplemysql/logger"
	"github.com/shrek82/simplemysql/middleware"
	"github.com/shrek82/simplemysql/pool"
)

func newMockDB(t *testing.T, d string, opts ...Option) (*DB, sqlmock.Sqlmock) {
	t.Helper()
	conn, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return New(pool.NewStdPool(conn, dialect.MustGet(d)), logger.NewNopLogger(), opts...), mock
}

func userRows(mock sqlmock.Sqlmock) *sqlmock.Rows {
	return mock.NewRowsWithColumnDefinition(
		mock.NewColumn("id").OfType("BIGINT", int64(0)),
		mock.NewColumn("name").OfType("VARCHAR", ""),
	)
}

func TestRowsAndRow(t *testing.T) {
	db, mock := newMockDB(t, "mysql")
	ctx := context.Background()

	mock.ExpectQuery("SELECT id, name FROM users WHERE age > ?").
		WithArgs(18).
		WillReturnRows(userRows(mock).AddRow([]byte("1"), []byte("alice")).AddRow([]byte("2"), []byte("bob")))
	rows, err := db.Rows(ctx, "SELECT id, name FROM users WHERE age > :age", Params{"age": 18})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"id", "name"}, rows[0].Columns)
	assert.Equal(t, []any{int64(1), "alice"}, rows[0].Values)
	assert.Equal(t, []any{int64(2), "bob"}, rows[1].Values)

	mock.ExpectQuery("SELECT id, name FROM users WHERE id = ?").
		WithArgs(2).
		WillReturnRows(userRows(mock).AddRow([]byte("2"), []byte("bob")))
	row, err := db.Row(ctx, "SELECT id, name FROM users WHERE id = ?", 2)
	require.NoError(t, err)
	name, ok := row.Get("name")
	assert.True(t, ok)
	assert.Equal(t, "bob", name)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEmptyResults(t *testing.T) {
	db, mock := newMockDB(t, "mysql")
	ctx := context.Background()
	const q = "SELECT id, name FROM users WHERE id = ?"

	for i := 0; i < 4; i++ {
		mock.ExpectQuery(q).WithArgs(0).WillReturnRows(userRows(mock))
	}

	rows, err := db.Rows(ctx, q, 0)
	require.NoError(t, err)
	assert.NotNil(t, rows)
	assert.Empty(t, rows)

	row, err := db.Row(ctx, q, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, row.Len())

	col, err := db.Col(ctx, q, 0)
	require.NoError(t, err)
	assert.NotNil(t, col)
	assert.Empty(t, col)

	val, err := db.Val(ctx, q, 0)
	require.NoError(t, err)
	assert.Nil(t, val)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRowsOnExecStatement(t *testing.T) {
	db, mock := newMockDB(t, "mysql")

	mock.ExpectExec("UPDATE users SET name = ? WHERE id = ?").
		WithArgs("carol", 1).
		WillReturnResult(sqlmock.NewResult(0, 1))
	rows, err := db.Rows(context.Background(), "UPDATE users SET name = ? WHERE id = ?", "carol", 1)
	require.NoError(t, err)
	assert.NotNil(t, rows)
	assert.Empty(t, rows)
}

func TestColAndVal(t *testing.T) {
	db, mock := newMockDB(t, "mysql")
	ctx := context.Background()

	mock.ExpectQuery("SELECT name, id FROM users").
		WillReturnRows(mock.NewRowsWithColumnDefinition(
			mock.NewColumn("name").OfType("VARCHAR", ""),
			mock.NewColumn("id").OfType("BIGINT", int64(0)),
		).AddRow([]byte("alice"), []byte("1")).AddRow(nil, []byte("2")))
	col, err := db.Col(ctx, "SELECT name, id FROM users")
	require.NoError(t, err)
	assert.Equal(t, []any{"alice", nil}, col)

	mock.ExpectQuery("SELECT COUNT(*) AS n FROM users").
		WillReturnRows(mock.NewRowsWithColumnDefinition(mock.NewColumn("n").OfType("BIGINT", int64(0))).AddRow([]byte("42")))
	val, err := db.Val(ctx, "SELECT COUNT(*) AS n FROM users")
	require.NoError(t, err)
	assert.Equal(t, int64(42), val)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTotal(t *testing.T) {
	db, mock := newMockDB(t, "mysql")

	mock.ExpectQuery("SELECT FOUND_ROWS()").
		WillReturnRows(mock.NewRowsWithColumnDefinition(mock.NewColumn("FOUND_ROWS()").OfType("BIGINT", int64(0))).AddRow([]byte("3")))
	n, err := db.Total(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTotalUnsupported(t *testing.T) {
	db, mock := newMockDB(t, "postgres")

	_, err := db.Total(context.Background())
	assert.ErrorIs(t, err, ErrUnsupported)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInsert(t *testing.T) {
	db, mock := newMockDB(t, "mysql")
	ctx := context.Background()

	mock.ExpectExec("INSERT INTO users (name) VALUES (?)").
		WithArgs("alice").
		WillReturnResult(sqlmock.NewResult(5, 1))
	id, err := db.Insert(ctx, "INSERT INTO users (name) VALUES (:name)", Params{"name": "alice"})
	require.NoError(t, err)
	assert.Equal(t, sql.NullInt64{Int64: 5, Valid: true}, id)

	mock.ExpectExec("DELETE FROM users").
		WillReturnResult(sqlmock.NewErrorResult(errors.New("no insert id")))
	id, err = db.Insert(ctx, "DELETE FROM users")
	require.NoError(t, err)
	assert.False(t, id.Valid)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestQueryErrorIsTyped(t *testing.T) {
	var buf bytes.Buffer
	l := logger.NewStdLogger()
	l.SetOutput(&buf)

	conn, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	defer conn.Close()
	db := New(pool.NewStdPool(conn, dialect.MustGet("mysql")), l)

	driverErr := &mysql.MySQLError{Number: 1062, Message: "Duplicate entry 'alice' for key 'name'"}
	mock.ExpectExec("INSERT INTO users (name) VALUES (?)").
		WithArgs("alice").
		WillReturnError(driverErr)

	_, err = db.Insert(context.Background(), "INSERT INTO users (name) VALUES (?)", "alice")
	require.Error(t, err)
	assert.Equal(t, "MySQL Error: "+driverErr.Error(), err.Error())
	assert.ErrorIs(t, err, ErrDuplicateKey)
	assert.ErrorIs(t, err, ErrConstraint)
	assert.NotErrorIs(t, err, ErrConnection)

	var myErr *mysql.MySQLError
	require.ErrorAs(t, err, &myErr)
	assert.Equal(t, uint16(1062), myErr.Number)

	var e *Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, "MySQL", e.Label)

	assert.Contains(t, buf.String(), "MySQL:Error: ")
}

func TestQueryErrorKinds(t *testing.T) {
	tests := []struct {
		name string
		err  error
		kind error
	}{
		{"syntax", &mysql.MySQLError{Number: 1064, Message: "syntax"}, ErrQuery},
		{"access", &mysql.MySQLError{Number: 1045, Message: "denied"}, ErrConnection},
		{"foreign key", &mysql.MySQLError{Number: 1452, Message: "fk"}, ErrForeignKey},
		{"not null", &mysql.MySQLError{Number: 1048, Message: "null"}, ErrConstraint},
		{"bad conn", mysql.ErrInvalidConn, ErrConnection},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock := newMockDB(t, "mysql")
			mock.ExpectQuery("SELECT 1").WillReturnError(tt.err)
			_, err := db.Query(context.Background(), "SELECT 1")
			assert.ErrorIs(t, err, tt.kind)
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

func TestBindErrorIsQueryError(t *testing.T) {
	db, mock := newMockDB(t, "mysql")

	_, err := db.Rows(context.Background(), "SELECT * FROM users WHERE id = :id", Params{})
	assert.ErrorIs(t, err, ErrQuery)
	assert.ErrorIs(t, err, pool.ErrMissingParam)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEmulate(t *testing.T) {
	db, _ := newMockDB(t, "mysql")

	s, err := db.Emulate("SELECT * FROM users WHERE name = :name AND id IN (:ids)", Params{"name": "o'neil", "ids": []int{1, 2}})
	require.NoError(t, err)
	assert.Equal(t, `SELECT * FROM users WHERE name = 'o\'neil' AND id IN (1, 2)`, s)

	_, err = db.Emulate("SELECT ?", 1, 2)
	assert.ErrorIs(t, err, pool.ErrArgCount)
}

func TestEndOnce(t *testing.T) {
	db, mock := newMockDB(t, "mysql")
	mock.ExpectClose()

	require.NoError(t, db.End())
	require.NoError(t, db.End())
	require.NoError(t, db.Close())

	_, err := db.Rows(context.Background(), "SELECT 1")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, err, ErrConnection)
	assert.Equal(t, "MySQL Error: database is closed", err.Error())

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEndPropagatesCloseError(t *testing.T) {
	db, mock := newMockDB(t, "mysql")
	closeErr := errors.New("close failed")
	mock.ExpectClose().WillReturnError(closeErr)

	assert.ErrorIs(t, db.End(), closeErr)
	assert.NoError(t, db.End())
}

func TestProvider(t *testing.T) {
	db, _ := newMockDB(t, "mysql")
	p, ok := db.Provider().(*pool.StdPool)
	require.True(t, ok)
	assert.NotNil(t, p.DB())
}

func TestQueryCache(t *testing.T) {
	mem := cache.NewMemory(0)
	defer mem.Close()
	db, mock := newMockDB(t, "mysql", WithCache(mem))
	ctx := cache.WithTTL(context.Background(), time.Minute)
	const q = "SELECT id, name FROM users WHERE id = ?"

	mock.ExpectQuery(q).WithArgs(1).WillReturnRows(userRows(mock).AddRow([]byte("1"), []byte("alice")))

	first, err := db.Rows(ctx, q, 1)
	require.NoError(t, err)
	second, err := db.Rows(ctx, q, 1)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, mem.Len())

	// no ttl on the context, goes to the server
	mock.ExpectQuery(q).WithArgs(1).WillReturnRows(userRows(mock).AddRow([]byte("1"), []byte("alice")))
	_, err = db.Rows(context.Background(), q, 1)
	require.NoError(t, err)

	// writes are never cached
	mock.ExpectExec("DELETE FROM users").WillReturnResult(sqlmock.NewResult(0, 1))
	_, err = db.Query(ctx, "DELETE FROM users")
	require.NoError(t, err)
	assert.Equal(t, 1, mem.Len())

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestQueryCacheNativePlaceholders(t *testing.T) {
	mem := cache.NewMemory(0)
	defer mem.Close()
	db, mock := newMockDB(t, "postgres", WithCache(mem))
	ctx := cache.WithTTL(context.Background(), time.Minute)
	const q = "SELECT id FROM users WHERE id = $1"

	for _, id := range []int64{1, 2} {
		mock.ExpectQuery(q).WithArgs(id).
			WillReturnRows(mock.NewRowsWithColumnDefinition(mock.NewColumn("id").OfType("INT8", int64(0))).AddRow(id))
	}
	for _, id := range []int64{1, 2} {
		v, err := db.Val(ctx, q, id)
		require.NoError(t, err)
		assert.Equal(t, id, v)
	}
	assert.Equal(t, 2, mem.Len())

	v, err := db.Val(ctx, q, int64(2))
	require.NoError(t, err)
	assert.Equal(t, int64(2), v)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestQueryCacheKeepsValueTypes(t *testing.T) {
	mem := cache.NewMemory(0)
	defer mem.Close()
	db, mock := newMockDB(t, "mysql", WithCache(mem))
	ctx := cache.WithTTL(context.Background(), time.Minute)
	const q = "SELECT data, big FROM files WHERE id = ?"

	mock.ExpectQuery(q).WithArgs(7).WillReturnRows(mock.NewRowsWithColumnDefinition(
		mock.NewColumn("data").OfType("BLOB", []byte{}),
		mock.NewColumn("big").OfType("UNSIGNED BIGINT", uint64(0)),
	).AddRow([]byte("hello"), []byte("18446744073709551615")))

	uncached, err := db.Row(ctx, q, 7)
	require.NoError(t, err)
	cached, err := db.Row(ctx, q, 7)
	require.NoError(t, err)
	assert.Equal(t, uncached.Values, cached.Values)
	assert.Equal(t, []any{[]byte("hello"), uint64(18446744073709551615)}, cached.Values)

	data, err := db.Val(ctx, q, 7)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), data)
	require.NoError(t, mock.ExpectationsWereMet())
}

type brokenCache struct{}

func (brokenCache) Get(context.Context, string) ([]byte, bool, error) {
	return nil, false, errors.New("cache down")
}

func (brokenCache) Set(context.Context, string, []byte, time.Duration) error {
	return errors.New("cache down")
}

func (brokenCache) Close() error { return nil }

func TestQueryCacheFailureFallsBack(t *testing.T) {
	db, mock := newMockDB(t, "mysql", WithCache(brokenCache{}))
	ctx := cache.WithTTL(context.Background(), time.Minute)

	for i := 0; i < 2; i++ {
		mock.ExpectQuery("SELECT 1 AS n").
			WillReturnRows(mock.NewRowsWithColumnDefinition(mock.NewColumn("n").OfType("BIGINT", int64(0))).AddRow([]byte("1")))
	}
	for i := 0; i < 2; i++ {
		v, err := db.Val(ctx, "SELECT 1 AS n")
		require.NoError(t, err)
		assert.Equal(t, int64(1), v)
	}
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSlowQueryIsLogged(t *testing.T) {
	var buf bytes.Buffer
	l := logger.NewStdLogger()
	l.SetOutput(&buf)
	l.SetFormat(logger.LogFormatJSON)

	conn, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	defer conn.Close()
	db := New(pool.NewStdPool(conn, dialect.MustGet("mysql")), l, WithSlowThreshold(time.Millisecond))

	mock.ExpectExec("UPDATE users SET name = ?").
		WithArgs("x").
		WillDelayFor(5 * time.Millisecond).
		WillReturnResult(sqlmock.NewResult(0, 3))
	_, err = db.Query(context.Background(), "UPDATE users SET name = ?", "x")
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, `"msg":"MySQL:slow"`)
	assert.Contains(t, out, `"sql":"UPDATE users SET name = ?"`)
}

func TestDebugLogsStatement(t *testing.T) {
	var buf bytes.Buffer
	l := logger.NewStdLogger()
	l.SetOutput(&buf)
	l.SetLevel(logger.LogLevelDebug)

	db, mock := newMockDB(t, "mysql")
	db.SetLogger(l)

	mock.ExpectExec("DELETE FROM users WHERE id = ?").WithArgs(1).WillReturnResult(sqlmock.NewResult(0, 1))
	_, err := db.Query(context.Background(), "DELETE FROM users WHERE id = :id", Params{"id": 1})
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "MySQL:")
	assert.Contains(t, out, "DELETE FROM users WHERE id = :id")
}

func TestSQLiteEndToEnd(t *testing.T) {
	db, err := Open(Config{
		ConnectionString: "sqlite3::memory:",
		Logger:           logger.NewNopLogger(),
		MaxOpenConns:     1,
	})
	require.NoError(t, err)
	defer db.End()
	ctx := context.Background()

	_, err = db.Query(ctx, "CREATE TABLE users (id INTEGER PRIMARY KEY, name TEXT NOT NULL UNIQUE)")
	require.NoError(t, err)

	for _, name := range []string{"a", "b"} {
		id, err := db.Insert(ctx, "INSERT INTO users (name) VALUES (:name)", Params{"name": name})
		require.NoError(t, err)
		assert.True(t, id.Valid)
	}

	rows, err := db.Rows(ctx, "SELECT id, name FROM users ORDER BY id")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, map[string]any{"id": int64(1), "name": "a"}, rows[0].Map())
	assert.Equal(t, map[string]any{"id": int64(2), "name": "b"}, rows[1].Map())

	names, err := db.Col(ctx, "SELECT name FROM users WHERE id IN (:ids) ORDER BY id", Params{"ids": []int{1, 2}})
	require.NoError(t, err)
	assert.Equal(t, []any{"a", "b"}, names)

	name, err := db.Val(ctx, "SELECT name FROM users WHERE id = 1")
	require.NoError(t, err)
	assert.Equal(t, "a", name)

	missing, err := db.Row(ctx, "SELECT id, name FROM users WHERE id = 99")
	require.NoError(t, err)
	assert.Equal(t, 0, missing.Len())
	assert.Equal(t, map[string]any{}, missing.Map())

	_, err = db.Insert(ctx, "INSERT INTO users (name) VALUES (?)", "a")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDuplicateKey)
	assert.Contains(t, err.Error(), "SQLite Error: ")

	_, err = db.Total(ctx)
	assert.ErrorIs(t, err, ErrUnsupported)
}

func TestOpenInstallsCircuitBreaker(t *testing.T) {
	db, err := Open(Config{
		ConnectionString:    "sqlite3::memory:",
		Logger:              logger.NewNopLogger(),
		MaxOpenConns:        1,
		BreakerThreshold:    3,
		BreakerResetTimeout: time.Second,
	})
	require.NoError(t, err)
	defer db.End()

	chain, ok := db.Provider().(*middleware.Chain)
	require.True(t, ok)
	require.Len(t, chain.Middlewares(), 1)
	assert.Equal(t, "CircuitBreaker", chain.Middlewares()[0].Name())

	v, err := db.Val(context.Background(), "SELECT 7")
	require.NoError(t, err)
	assert.Equal(t, int64(7), v)
}

func TestOpenUnknownScheme(t *testing.T) {
	_, err := Open(Config{ConnectionString: "oracle://scott@db/orcl"})
	assert.Error(t, err)
}
