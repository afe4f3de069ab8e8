// Package middleware wraps a pool.Pool with query interceptors.
package middleware

import (
	"context"

	"github.com/shrek82/simplemysql/dialect"
	"github.com/shrek82/simplemysql/pool"
)

// QueryFunc is the function type for the next step in the middleware chain.
type QueryFunc func(ctx context.Context, query string, args []any) (*pool.Result, error)

// Middleware is the interface for query interceptors.
type Middleware interface {
	Name() string
	Process(ctx context.Context, query string, args []any, next QueryFunc) (*pool.Result, error)
}

// Chain is a pool whose Query runs through a list of middlewares, first
// one outermost. Format and Close go straight to the wrapped pool.
type Chain struct {
	next        pool.Pool
	middlewares []Middleware
	run         QueryFunc
}

// Wrap returns p itself when mws is empty.
func Wrap(p pool.Pool, mws ...Middleware) pool.Pool {
	if len(mws) == 0 {
		return p
	}
	c := &Chain{next: p, middlewares: mws}
	run := func(ctx context.Context, query string, args []any) (*pool.Result, error) {
		return p.Query(ctx, query, args...)
	}
	for i := len(mws) - 1; i >= 0; i-- {
		mw, next := mws[i], run
		run = func(ctx context.Context, query string, args []any) (*pool.Result, error) {
			return mw.Process(ctx, query, args, next)
		}
	}
	c.run = run
	return c
}

// Unwrap returns the wrapped pool.
func (c *Chain) Unwrap() pool.Pool {
	return c.next
}

// Middlewares returns the installed middlewares in call order.
func (c *Chain) Middlewares() []Middleware {
	return c.middlewares
}

func (c *Chain) Dialect() dialect.Dialect {
	return c.next.Dialect()
}

func (c *Chain) Format(query string, args ...any) (string, error) {
	return c.next.Format(query, args...)
}

func (c *Chain) Query(ctx context.Context, query string, args ...any) (*pool.Result, error) {
	return c.run(ctx, query, args)
}

func (c *Chain) Close() error {
	return c.next.Close()
}
