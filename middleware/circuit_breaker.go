package middleware

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shrek82/simplemysql/dialect"
	"github.com/shrek82/simplemysql/pool"
)

// ErrCircuitOpen is returned without reaching the server while the breaker
// is open. It classifies as a connection failure.
var ErrCircuitOpen = fmt.Errorf("circuit breaker is open: %w", dialect.ErrUnavailable)

type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// CircuitBreaker stops sending queries after Threshold consecutive
// connection failures, and lets a single probe through once ResetTimeout
// has passed. Query errors such as syntax errors or constraint violations
// do not count.
type CircuitBreaker struct {
	Threshold    int           // Number of failures before opening
	ResetTimeout time.Duration // Time to wait before half-open

	dialect dialect.Dialect
	now     func() time.Time

	mu          sync.Mutex
	state       State
	failures    int
	lastFailure time.Time
	probing     bool
}

// NewCircuitBreaker classifies failures with d.
func NewCircuitBreaker(d dialect.Dialect, threshold int, resetTimeout time.Duration) *CircuitBreaker {
	return &CircuitBreaker{
		Threshold:    threshold,
		ResetTimeout: resetTimeout,
		dialect:      d,
		now:          time.Now,
		state:        StateClosed,
	}
}

func (m *CircuitBreaker) Name() string {
	return "CircuitBreaker"
}

// State reports the current state.
func (m *CircuitBreaker) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *CircuitBreaker) Process(ctx context.Context, query string, args []any, next QueryFunc) (*pool.Result, error) {
	m.mu.Lock()
	switch m.state {
	case StateOpen:
		if m.now().Sub(m.lastFailure) < m.ResetTimeout {
			m.mu.Unlock()
			return nil, ErrCircuitOpen
		}
		m.state = StateHalfOpen
		m.probing = true
	case StateHalfOpen:
		// one probe at a time
		if m.probing {
			m.mu.Unlock()
			return nil, ErrCircuitOpen
		}
		m.probing = true
	}
	m.mu.Unlock()

	res, err := next(ctx, query, args)

	m.mu.Lock()
	defer m.mu.Unlock()
	if err != nil && m.dialect.Classify(err) == dialect.ClassConnection {
		m.recordFailure()
	} else {
		m.recordSuccess()
	}
	return res, err
}

func (m *CircuitBreaker) recordFailure() {
	m.failures++
	m.lastFailure = m.now()
	m.probing = false

	switch m.state {
	case StateClosed:
		if m.failures >= m.Threshold {
			m.state = StateOpen
		}
	case StateHalfOpen:
		m.state = StateOpen
	}
}

func (m *CircuitBreaker) recordSuccess() {
	m.state = StateClosed
	m.failures = 0
	m.probing = false
}
