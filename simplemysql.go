// Package simplemysql is a thin query facade over database/sql. Statements
// take named (:name) or positional (?) parameters and results come back as
// rows, a row, a column or a single value.
package simplemysql

import (
	"github.com/shrek82/simplemysql/cache"
	"github.com/shrek82/simplemysql/core"
)

// Re-export core types and functions
type DB = core.DB
type Config = core.Config
type Option = core.Option
type Error = core.Error
type Record = core.Record
type Result = core.Result
type Params = core.Params

var (
	Open = core.Open
	New  = core.New

	WithCache         = core.WithCache
	WithSlowThreshold = core.WithSlowThreshold

	// WithCacheTTL opts a context into result caching.
	WithCacheTTL = cache.WithTTL
)

// Re-export error kinds
var (
	ErrQuery        = core.ErrQuery
	ErrConnection   = core.ErrConnection
	ErrConstraint   = core.ErrConstraint
	ErrDuplicateKey = core.ErrDuplicateKey
	ErrForeignKey   = core.ErrForeignKey
	ErrClosed       = core.ErrClosed
	ErrUnsupported  = core.ErrUnsupported
)
