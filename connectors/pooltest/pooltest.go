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

// Package pooltest provides an in-memory base.Pool that counts leases,
// releases and destroys, for tests of code that executes queries.
package pooltest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ddam2015/spp-app-data-hub/connectors/base"
)

// QueryFunc answers a row-producing statement.
type QueryFunc func(ctx context.Context, stmt base.Statement) ([]base.Row, error)

// ExecFunc answers a statement executed for its side effect.
type ExecFunc func(ctx context.Context, stmt base.Statement) error

// Pool is a fake tenant pool. Released connections are reused LIFO;
// destroyed ones never come back.
type Pool struct {
	name string

	QueryFn  QueryFunc
	ExecFn   ExecFunc
	LeaseErr error

	mu        sync.Mutex
	opened    int
	leases    int
	releases  int
	destroys  int
	misuse    int
	idle      []*Conn
	destroyed map[string]bool
	executed  []Executed
	closed    bool
}

// Executed records one statement run on a connection.
type Executed struct {
	ConnID string
	SQL    string
	Args   []interface{}
}

// Counts is a snapshot of pool activity.
type Counts struct {
	Opened   int
	Leases   int
	Releases int
	Destroys int
	// Misuse counts second settle attempts on the same lease.
	Misuse int
}

// Outstanding is the number of leases neither released nor destroyed.
func (c Counts) Outstanding() int {
	return c.Leases - c.Releases - c.Destroys
}

var _ base.Pool = (*Pool)(nil)

// New creates a fake pool that returns rows from queryFn.
func New(name string, queryFn QueryFunc) *Pool {
	return &Pool{
		name:      name,
		QueryFn:   queryFn,
		destroyed: make(map[string]bool),
	}
}

// Rows returns a QueryFunc that always yields rows.
func Rows(rows ...base.Row) QueryFunc {
	return func(ctx context.Context, stmt base.Statement) ([]base.Row, error) {
		return rows, nil
	}
}

// Fail returns a QueryFunc that always fails with err.
func Fail(err error) QueryFunc {
	return func(ctx context.Context, stmt base.Statement) ([]base.Row, error) {
		return nil, err
	}
}

// Hang returns a QueryFunc that blocks until ctx is done or d elapses,
// then answers with rows.
func Hang(d time.Duration, rows ...base.Row) QueryFunc {
	return func(ctx context.Context, stmt base.Statement) ([]base.Row, error) {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(d):
			return rows, nil
		}
	}
}

// Name returns the pool name
func (p *Pool) Name() string {
	return p.name
}

// Lease hands out an idle connection or opens a new one.
func (p *Pool) Lease(ctx context.Context) (base.Conn, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, base.NewConnectorError(p.name, "Lease", "pool closed", nil).WithKind(base.ErrConnectionUnavailable)
	}
	if p.LeaseErr != nil {
		return nil, base.NewConnectorError(p.name, "Lease", "failed to lease connection", p.LeaseErr).WithKind(base.ErrConnectionUnavailable)
	}
	if err := ctx.Err(); err != nil {
		return nil, base.NewConnectorError(p.name, "Lease", "context done", err).WithKind(base.ErrConnectionUnavailable)
	}

	p.leases++

	if n := len(p.idle); n > 0 {
		phys := p.idle[n-1]
		p.idle = p.idle[:n-1]
		return &Conn{id: phys.id, pool: p}, nil
	}

	p.opened++
	return &Conn{id: fmt.Sprintf("%s-conn-%d", p.name, p.opened), pool: p}, nil
}

// HealthCheck reports healthy until the pool is closed.
func (p *Pool) HealthCheck(ctx context.Context) (*base.HealthStatus, error) {
	c := p.Counts()
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		return &base.HealthStatus{Healthy: false, Timestamp: time.Now(), Error: "pool closed"}, nil
	}
	return &base.HealthStatus{
		Healthy:   true,
		Timestamp: time.Now(),
		Details: map[string]string{
			"opened": fmt.Sprint(c.Opened),
			"leases": fmt.Sprint(c.Leases),
		},
	}, nil
}

// Close marks the pool closed.
func (p *Pool) Close() error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	return nil
}

// Counts returns a snapshot of activity.
func (p *Pool) Counts() Counts {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Counts{
		Opened:   p.opened,
		Leases:   p.leases,
		Releases: p.releases,
		Destroys: p.destroys,
		Misuse:   p.misuse,
	}
}

// Executed returns every statement run so far, in order.
func (p *Pool) Executed() []Executed {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Executed, len(p.executed))
	copy(out, p.executed)
	return out
}

// WasDestroyed reports whether the physical connection id was destroyed.
func (p *Pool) WasDestroyed(id string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.destroyed[id]
}

func (p *Pool) record(id string, stmt base.Statement) {
	p.mu.Lock()
	p.executed = append(p.executed, Executed{ConnID: id, SQL: stmt.SQL, Args: stmt.Args})
	p.mu.Unlock()
}

// Conn is a fake leased connection.
type Conn struct {
	id      string
	pool    *Pool
	settled atomic.Bool
}

var errSettled = errors.New("pooltest: connection already settled")

func (c *Conn) ID() string {
	return c.id
}

func (c *Conn) Exec(ctx context.Context, stmt base.Statement) error {
	c.pool.record(c.id, stmt)
	if c.pool.ExecFn != nil {
		return c.pool.ExecFn(ctx, stmt)
	}
	return nil
}

func (c *Conn) Query(ctx context.Context, stmt base.Statement) ([]base.Row, error) {
	c.pool.record(c.id, stmt)
	if c.pool.QueryFn == nil {
		return []base.Row{}, nil
	}
	return c.pool.QueryFn(ctx, stmt)
}

func (c *Conn) Release() error {
	p := c.pool
	p.mu.Lock()
	defer p.mu.Unlock()
	if !c.settled.CompareAndSwap(false, true) {
		p.misuse++
		return errSettled
	}
	p.releases++
	p.idle = append(p.idle, c)
	return nil
}

func (c *Conn) Destroy() error {
	p := c.pool
	p.mu.Lock()
	defer p.mu.Unlock()
	if !c.settled.CompareAndSwap(false, true) {
		p.misuse++
		return errSettled
	}
	p.destroys++
	p.destroyed[c.id] = true
	return nil
}
