// Copyright 2025 AxonFlow
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package base

import (
	"context"
	"fmt"
	"time"
)

// Pool is a bounded group of live database connections for one tenant.
// Implementations must be safe for concurrent Lease calls.
type Pool interface {
	// Lease checks out a connection for exclusive use by one operation.
	// It blocks until a slot is free, a new connection is established or
	// ctx is done.
	Lease(ctx context.Context) (Conn, error)

	// Name identifies the pool in logs and metrics.
	Name() string

	// HealthCheck pings the backing database.
	HealthCheck(ctx context.Context) (*HealthStatus, error)

	// Close releases every idle connection. Only called at process exit.
	Close() error
}

// Conn is a leased connection. Exactly one of Release or Destroy must be
// called once the operation is finished with it.
type Conn interface {
	// ID identifies the physical connection.
	ID() string

	// Exec runs a statement that produces no rows (session configuration).
	Exec(ctx context.Context, stmt Statement) error

	// Query runs a row-producing statement and materialises every row.
	Query(ctx context.Context, stmt Statement) ([]Row, error)

	// Release returns the connection to the pool for reuse.
	Release() error

	// Destroy closes the physical connection so it never re-enters the pool.
	Destroy() error
}

// Row is one result record keyed by column name.
type Row map[string]interface{}

// Statement is SQL text with positional ? placeholders and its bound values.
type Statement struct {
	SQL  string
	Args []interface{}
}

// QuerySpec is the immutable unit handed to the executor: an ordered list
// of statements that must run on the same connection, plus a time budget.
// Every statement but the last is executed for its side effect only; the
// last one produces the rows.
type QuerySpec struct {
	Operation  string
	Statements []Statement
	Timeout    time.Duration
}

// NewQuerySpec validates every statement and returns the spec. main is the
// row-producing statement and pre are executed before it, in order.
func NewQuerySpec(operation string, timeout time.Duration, main Statement, pre ...Statement) (QuerySpec, error) {
	if timeout <= 0 {
		return QuerySpec{}, NewConnectorError(operation, "NewQuerySpec", "timeout must be positive", ErrInvalidArgument).WithKind(ErrInvalidArgument)
	}

	stmts := make([]Statement, 0, len(pre)+1)
	stmts = append(stmts, pre...)
	stmts = append(stmts, main)

	for i, s := range stmts {
		if err := s.Validate(); err != nil {
			return QuerySpec{}, NewConnectorError(operation, "NewQuerySpec",
				fmt.Sprintf("statement %d is invalid", i), err).WithKind(ErrInvalidArgument)
		}
	}

	return QuerySpec{
		Operation:  operation,
		Statements: stmts,
		Timeout:    timeout,
	}, nil
}

// Validate checks that the placeholder count matches the argument count.
func (s Statement) Validate() error {
	if s.SQL == "" {
		return fmt.Errorf("empty statement")
	}
	if n := CountPlaceholders(s.SQL); n != len(s.Args) {
		return fmt.Errorf("statement has %d placeholders but %d arguments", n, len(s.Args))
	}
	return nil
}

// Main returns the row-producing statement.
func (q QuerySpec) Main() Statement {
	if len(q.Statements) == 0 {
		return Statement{}
	}
	return q.Statements[len(q.Statements)-1]
}

// Pre returns the statements executed before Main.
func (q QuerySpec) Pre() []Statement {
	if len(q.Statements) == 0 {
		return nil
	}
	return q.Statements[:len(q.Statements)-1]
}

// HealthStatus represents the health of a pool
type HealthStatus struct {
	Healthy   bool              `json:"healthy"`
	Latency   time.Duration     `json:"latency"`
	Details   map[string]string `json:"details"`
	Timestamp time.Time         `json:"timestamp"`
	Error     string            `json:"error,omitempty"`
}
