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

// Package executor runs a QuerySpec on a leased tenant connection under a
// deadline. A query that finishes in time releases its connection; one
// that does not is abandoned and its connection destroyed.
package executor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ddam2015/spp-app-data-hub/connectors/base"
	"github.com/ddam2015/spp-app-data-hub/shared/logger"
)

// Outcome labels for metrics.
const (
	OutcomeSuccess     = "success"
	OutcomeError       = "error"
	OutcomeTimeout     = "timeout"
	OutcomeUnavailable = "unavailable"
)

// Observer receives execution metrics.
type Observer interface {
	ObserveQuery(operation, tenant, outcome string, elapsed time.Duration)
	ConnectionDestroyed(operation, tenant string)
}

type nopObserver struct{}

func (nopObserver) ObserveQuery(string, string, string, time.Duration) {}
func (nopObserver) ConnectionDestroyed(string, string)                 {}

// Target identifies the pool a spec runs against and how to label it.
type Target struct {
	Pool       base.Pool
	Tenant     string
	RoutingKey string
}

// Executor is safe for concurrent use.
type Executor struct {
	logger   *logger.Logger
	observer Observer
}

// New creates an Executor. observer may be nil.
func New(log *logger.Logger, observer Observer) *Executor {
	if log == nil {
		log = logger.NewNop()
	}
	if observer == nil {
		observer = nopObserver{}
	}
	return &Executor{
		logger:   log.Named("executor"),
		observer: observer,
	}
}

type result struct {
	rows     []base.Row
	err      error
	panicked bool
}

// Execute leases a connection from target.Pool, runs spec's statements in
// order on it and returns the rows of the last one. The whole sequence is
// raced against spec.Timeout:
//
//   - finished first: the connection is released, rows or error returned
//   - timer first: the query is cancelled, the connection destroyed and
//     ErrQueryTimeout returned; a late result is discarded
//
// Leasing is bounded by the same budget and fails with
// ErrConnectionUnavailable. Cancelling ctx after the lease does not abort
// the query; only the deadline does.
func (e *Executor) Execute(ctx context.Context, target Target, spec base.QuerySpec) ([]base.Row, error) {
	start := time.Now()

	if len(spec.Statements) == 0 || spec.Timeout <= 0 {
		return nil, base.NewConnectorError(target.Tenant, spec.Operation, "query spec has no statements or no timeout", nil).
			WithKind(base.ErrInvalidArgument)
	}

	leaseCtx, cancelLease := context.WithTimeout(ctx, spec.Timeout)
	conn, err := target.Pool.Lease(leaseCtx)
	cancelLease()
	if err != nil {
		if !errors.Is(err, base.ErrConnectionUnavailable) {
			err = base.NewConnectorError(target.Tenant, spec.Operation, "failed to lease connection", err).
				WithKind(base.ErrConnectionUnavailable)
		}
		e.fail(ctx, target, spec, OutcomeUnavailable, start, err, "")
		return nil, err
	}

	guard := newLeaseGuard(conn)
	defer func() {
		// Only reachable unsettled if this goroutine panicked.
		if !guard.settled() {
			_, _ = guard.destroy()
			e.observer.ConnectionDestroyed(spec.Operation, target.Tenant)
		}
	}()

	queryCtx, cancelQuery := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelQuery()

	done := make(chan result, 1)
	go func() {
		done <- runStatements(queryCtx, conn, spec)
	}()

	timer := time.NewTimer(spec.Timeout)
	defer timer.Stop()

	select {
	case res := <-done:
		timer.Stop()
		if res.panicked {
			e.destroy(ctx, guard, target, spec)
		} else if _, err := guard.release(); err != nil {
			e.logger.Warn(logger.ClientID(ctx), logger.RequestID(ctx), "Failed to release connection", map[string]interface{}{
				"operation": spec.Operation,
				"tenant":    target.Tenant,
				"conn_id":   conn.ID(),
				"error":     logger.SanitizeError(err),
			})
		}

		if res.err != nil {
			err := classify(target, spec, res.err)
			e.fail(ctx, target, spec, OutcomeError, start, err, conn.ID())
			return nil, err
		}

		e.observer.ObserveQuery(spec.Operation, target.Tenant, OutcomeSuccess, time.Since(start))
		e.logger.Debug(logger.ClientID(ctx), logger.RequestID(ctx), "Query executed", map[string]interface{}{
			"operation":  spec.Operation,
			"tenant":     target.Tenant,
			"rows":       len(res.rows),
			"elapsed_ms": time.Since(start).Milliseconds(),
		})
		return res.rows, nil

	case <-timer.C:
		cancelQuery()
		e.destroy(ctx, guard, target, spec)

		err := base.NewConnectorError(target.Tenant, spec.Operation,
			fmt.Sprintf("query exceeded %s", spec.Timeout), context.DeadlineExceeded).
			WithKind(base.ErrQueryTimeout)
		e.fail(ctx, target, spec, OutcomeTimeout, start, err, conn.ID())
		return nil, err
	}
}

func (e *Executor) destroy(ctx context.Context, guard *leaseGuard, target Target, spec base.QuerySpec) {
	settled, err := guard.destroy()
	if !settled {
		return
	}
	e.observer.ConnectionDestroyed(spec.Operation, target.Tenant)
	if err != nil {
		e.logger.Warn(logger.ClientID(ctx), logger.RequestID(ctx), "Failed to destroy connection", map[string]interface{}{
			"operation": spec.Operation,
			"tenant":    target.Tenant,
			"error":     logger.SanitizeError(err),
		})
	}
}

func (e *Executor) fail(ctx context.Context, target Target, spec base.QuerySpec, outcome string, start time.Time, err error, connID string) {
	elapsed := time.Since(start)
	e.observer.ObserveQuery(spec.Operation, target.Tenant, outcome, elapsed)

	fields := map[string]interface{}{
		"operation":   spec.Operation,
		"tenant":      target.Tenant,
		"routing_key": target.RoutingKey,
		"outcome":     outcome,
		"elapsed_ms":  elapsed.Milliseconds(),
		"timeout_ms":  spec.Timeout.Milliseconds(),
		"statement":   logger.SanitizeQuery(spec.Main().SQL),
		"error":       logger.SanitizeError(err),
	}
	if connID != "" {
		fields["conn_id"] = connID
	}
	e.logger.Error(logger.ClientID(ctx), logger.RequestID(ctx), "Query failed", fields)
}

// runStatements executes the pre-statements then the main statement.
func runStatements(ctx context.Context, conn base.Conn, spec base.QuerySpec) (res result) {
	defer func() {
		if r := recover(); r != nil {
			res = result{err: fmt.Errorf("panic during query: %v", r), panicked: true}
		}
	}()

	for _, stmt := range spec.Pre() {
		if err := conn.Exec(ctx, stmt); err != nil {
			return result{err: err}
		}
	}

	rows, err := conn.Query(ctx, spec.Main())
	if err != nil {
		return result{err: err}
	}
	return result{rows: rows}
}

// classify keeps connection failures as such and reports everything else
// the database returned as an execution error.
func classify(target Target, spec base.QuerySpec, err error) error {
	if errors.Is(err, base.ErrConnectionUnavailable) {
		return err
	}
	if errors.Is(err, base.ErrQueryExecution) {
		return err
	}
	return base.NewConnectorError(target.Tenant, spec.Operation, "query execution failed", err).
		WithKind(base.ErrQueryExecution)
}
