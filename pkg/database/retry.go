package database

import (
	"context"
	"database/sql/driver"
	"math/rand"
	"strings"
	"time"
)

// retryingConnector wraps a driver.Connector so every connection it hands
// out retries on SQLITE_BUSY/SQLITE_LOCKED with exponential backoff.
type retryingConnector struct {
	connector  driver.Connector
	maxRetries int
}

func newRetryingConnector(connector driver.Connector, maxRetries int) *retryingConnector {
	return &retryingConnector{connector: connector, maxRetries: maxRetries}
}

func (rc *retryingConnector) Connect(ctx context.Context) (driver.Conn, error) {
	conn, err := rc.connector.Connect(ctx)
	if err != nil {
		return nil, err
	}
	return &retryingConn{conn: conn, maxRetries: rc.maxRetries}, nil
}

func (rc *retryingConnector) Driver() driver.Driver {
	return rc.connector.Driver()
}

// isBusyError matches SQLite lock contention errors across sqlite drivers.
func isBusyError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "database table is locked") ||
		strings.Contains(msg, "SQLITE_BUSY") ||
		strings.Contains(msg, "SQLITE_LOCKED") ||
		strings.Contains(msg, "(5)") ||
		strings.Contains(msg, "(6)")
}

func withBusyRetry(ctx context.Context, maxRetries int, fn func() error) error {
	var err error
	baseDelay := 50 * time.Millisecond

	for attempt := 0; attempt <= maxRetries; attempt++ {
		err = fn()
		if err == nil {
			return nil
		}
		if !isBusyError(err) || attempt == maxRetries {
			return err
		}

		// Exponential backoff with jitter, capped at 2s.
		delay := baseDelay * time.Duration(1<<attempt)
		delay += time.Duration(rand.Int63n(int64(delay / 4)))
		if delay > 2*time.Second {
			delay = 2 * time.Second
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}

	return err
}

type retryingConn struct {
	conn       driver.Conn
	maxRetries int
}

func (c *retryingConn) Prepare(query string) (driver.Stmt, error) {
	stmt, err := c.conn.Prepare(query)
	if err != nil {
		return nil, err
	}
	return &retryingStmt{stmt: stmt, maxRetries: c.maxRetries}, nil
}

func (c *retryingConn) Close() error {
	return c.conn.Close()
}

func (c *retryingConn) Begin() (driver.Tx, error) {
	var tx driver.Tx
	err := withBusyRetry(context.Background(), c.maxRetries, func() error {
		var innerErr error
		tx, innerErr = c.conn.Begin() //nolint:staticcheck // deprecated but required for interface
		return innerErr
	})
	return tx, err
}

func (c *retryingConn) BeginTx(ctx context.Context, opts driver.TxOptions) (driver.Tx, error) {
	connBeginTx, ok := c.conn.(driver.ConnBeginTx)
	if !ok {
		return c.Begin()
	}
	var tx driver.Tx
	err := withBusyRetry(ctx, c.maxRetries, func() error {
		var innerErr error
		tx, innerErr = connBeginTx.BeginTx(ctx, opts)
		return innerErr
	})
	return tx, err
}

func (c *retryingConn) PrepareContext(ctx context.Context, query string) (driver.Stmt, error) {
	connPrepareContext, ok := c.conn.(driver.ConnPrepareContext)
	if !ok {
		return c.Prepare(query)
	}
	stmt, err := connPrepareContext.PrepareContext(ctx, query)
	if err != nil {
		return nil, err
	}
	return &retryingStmt{stmt: stmt, maxRetries: c.maxRetries}, nil
}

func (c *retryingConn) ExecContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	execerContext, ok := c.conn.(driver.ExecerContext)
	if !ok {
		return nil, driver.ErrSkip
	}
	var result driver.Result
	err := withBusyRetry(ctx, c.maxRetries, func() error {
		var innerErr error
		result, innerErr = execerContext.ExecContext(ctx, query, args)
		return innerErr
	})
	return result, err
}

func (c *retryingConn) QueryContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Rows, error) {
	queryerContext, ok := c.conn.(driver.QueryerContext)
	if !ok {
		return nil, driver.ErrSkip
	}
	var rows driver.Rows
	err := withBusyRetry(ctx, c.maxRetries, func() error {
		var innerErr error
		rows, innerErr = queryerContext.QueryContext(ctx, query, args)
		return innerErr
	})
	return rows, err
}

func (c *retryingConn) Ping(ctx context.Context) error {
	if pinger, ok := c.conn.(driver.Pinger); ok {
		return pinger.Ping(ctx)
	}
	return nil
}

func (c *retryingConn) ResetSession(ctx context.Context) error {
	if resetter, ok := c.conn.(driver.SessionResetter); ok {
		return resetter.ResetSession(ctx)
	}
	return nil
}

func (c *retryingConn) IsValid() bool {
	if validator, ok := c.conn.(driver.Validator); ok {
		return validator.IsValid()
	}
	return true
}

type retryingStmt struct {
	stmt       driver.Stmt
	maxRetries int
}

func (s *retryingStmt) Close() error {
	return s.stmt.Close()
}

func (s *retryingStmt) NumInput() int {
	return s.stmt.NumInput()
}

func (s *retryingStmt) Exec(args []driver.Value) (driver.Result, error) {
	var result driver.Result
	err := withBusyRetry(context.Background(), s.maxRetries, func() error {
		var innerErr error
		result, innerErr = s.stmt.Exec(args) //nolint:staticcheck // deprecated but required for interface
		return innerErr
	})
	return result, err
}

func (s *retryingStmt) Query(args []driver.Value) (driver.Rows, error) {
	var rows driver.Rows
	err := withBusyRetry(context.Background(), s.maxRetries, func() error {
		var innerErr error
		rows, innerErr = s.stmt.Query(args) //nolint:staticcheck // deprecated but required for interface
		return innerErr
	})
	return rows, err
}

func (s *retryingStmt) ExecContext(ctx context.Context, args []driver.NamedValue) (driver.Result, error) {
	stmtExecContext, ok := s.stmt.(driver.StmtExecContext)
	if !ok {
		values := make([]driver.Value, len(args))
		for i, arg := range args {
			values[i] = arg.Value
		}
		return s.Exec(values)
	}
	var result driver.Result
	err := withBusyRetry(ctx, s.maxRetries, func() error {
		var innerErr error
		result, innerErr = stmtExecContext.ExecContext(ctx, args)
		return innerErr
	})
	return result, err
}

func (s *retryingStmt) QueryContext(ctx context.Context, args []driver.NamedValue) (driver.Rows, error) {
	stmtQueryContext, ok := s.stmt.(driver.StmtQueryContext)
	if !ok {
		values := make([]driver.Value, len(args))
		for i, arg := range args {
			values[i] = arg.Value
		}
		return s.Query(values)
	}
	var rows driver.Rows
	err := withBusyRetry(ctx, s.maxRetries, func() error {
		var innerErr error
		rows, innerErr = stmtQueryContext.QueryContext(ctx, args)
		return innerErr
	})
	return rows, err
}
