package dialect

import (
	"database/sql"
	"database/sql/driver"
	"errors"
	"net"
)

// ErrUnavailable marks failures raised before reaching the server, e.g. by
// an open circuit breaker. They classify as connection failures.
var ErrUnavailable = errors.New("database unavailable")

// classifyCommon handles failures raised by database/sql itself or by the
// network stack, which look the same under every driver.
func classifyCommon(err error) Class {
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) || errors.Is(err, ErrUnavailable) {
		return ClassConnection
	}
	var ne net.Error
	if errors.As(err, &ne) {
		return ClassConnection
	}
	return ClassQuery
}
