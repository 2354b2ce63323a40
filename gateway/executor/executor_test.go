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

package executor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ddam2015/spp-app-data-hub/connectors/base"
	"github.com/ddam2015/spp-app-data-hub/connectors/mysql"
	"github.com/ddam2015/spp-app-data-hub/connectors/pooltest"
)

type recordingObserver struct {
	mu        sync.Mutex
	outcomes  []string
	destroyed int
}

func (o *recordingObserver) ObserveQuery(operation, tenant, outcome string, elapsed time.Duration) {
	o.mu.Lock()
	o.outcomes = append(o.outcomes, outcome)
	o.mu.Unlock()
}

func (o *recordingObserver) ConnectionDestroyed(operation, tenant string) {
	o.mu.Lock()
	o.destroyed++
	o.mu.Unlock()
}

func mustSpec(t *testing.T, timeout time.Duration, main base.Statement, pre ...base.Statement) base.QuerySpec {
	t.Helper()
	spec, err := base.NewQuerySpec("testOp", timeout, main, pre...)
	require.NoError(t, err)
	return spec
}

func target(p base.Pool) Target {
	return Target{Pool: p, Tenant: "development", RoutingKey: "http://localhost/graphql"}
}

func TestExecuteSuccessReleases(t *testing.T) {
	pool := pooltest.New("dev", pooltest.Rows(base.Row{"id": int64(1)}, base.Row{"id": int64(2)}))
	obs := &recordingObserver{}
	exec := New(nil, obs)

	rows, err := exec.Execute(context.Background(), target(pool),
		mustSpec(t, time.Second, base.Statement{SQL: "SELECT id FROM t WHERE org = ?", Args: []interface{}{7}}))
	require.NoError(t, err)
	assert.Len(t, rows, 2)

	c := pool.Counts()
	assert.Equal(t, 1, c.Leases)
	assert.Equal(t, 1, c.Releases)
	assert.Equal(t, 0, c.Destroys)
	assert.Equal(t, 0, c.Misuse)
	assert.Equal(t, []string{OutcomeSuccess}, obs.outcomes)
}

func TestExecuteQueryErrorReleases(t *testing.T) {
	pool := pooltest.New("dev", pooltest.Fail(errors.New("Error 1054: Unknown column 'x'")))
	exec := New(nil, nil)

	rows, err := exec.Execute(context.Background(), target(pool),
		mustSpec(t, time.Second, base.Statement{SQL: "SELECT x FROM t"}))
	require.Error(t, err)
	assert.Nil(t, rows)
	assert.True(t, errors.Is(err, base.ErrQueryExecution))

	c := pool.Counts()
	assert.Equal(t, 1, c.Releases)
	assert.Equal(t, 0, c.Destroys)
	assert.Equal(t, 0, c.Outstanding())
	assert.Equal(t, 0, c.Misuse)
}

func TestExecutePreStatementErrorReleasesAndSkipsMain(t *testing.T) {
	pool := pooltest.New("dev", pooltest.Rows(base.Row{"x": 1}))
	pool.ExecFn = func(ctx context.Context, stmt base.Statement) error {
		return errors.New("Error 1229: Variable is a GLOBAL variable")
	}
	exec := New(nil, nil)

	_, err := exec.Execute(context.Background(), target(pool), mustSpec(t, time.Second,
		base.Statement{SQL: "SELECT 1"},
		base.Statement{SQL: "SET SESSION group_concat_max_len = 10000000000"}))
	assert.True(t, errors.Is(err, base.ErrQueryExecution))

	executed := pool.Executed()
	require.Len(t, executed, 1)
	assert.Contains(t, executed[0].SQL, "SET SESSION")

	c := pool.Counts()
	assert.Equal(t, 1, c.Releases)
	assert.Equal(t, 0, c.Destroys)
}

func TestExecutePreStatementRunsFirstOnSameConnection(t *testing.T) {
	pool := pooltest.New("dev", pooltest.Rows(base.Row{"box_score": "{}"}))
	exec := New(nil, nil)

	_, err := exec.Execute(context.Background(), target(pool), mustSpec(t, time.Second,
		base.Statement{SQL: "SELECT box_score FROM t WHERE id = ?", Args: []interface{}{1}},
		base.Statement{SQL: "SET SESSION group_concat_max_len = 10000000000"}))
	require.NoError(t, err)

	executed := pool.Executed()
	require.Len(t, executed, 2)
	assert.Equal(t, "SET SESSION group_concat_max_len = 10000000000", executed[0].SQL)
	assert.Equal(t, "SELECT box_score FROM t WHERE id = ?", executed[1].SQL)
	assert.Equal(t, executed[0].ConnID, executed[1].ConnID)
}

func TestExecuteTimeoutDestroys(t *testing.T) {
	pool := pooltest.New("dev", pooltest.Hang(5*time.Second, base.Row{"late": true}))
	obs := &recordingObserver{}
	exec := New(nil, obs)

	start := time.Now()
	rows, err := exec.Execute(context.Background(), target(pool),
		mustSpec(t, 30*time.Millisecond, base.Statement{SQL: "SELECT SLEEP(10)"}))
	elapsed := time.Since(start)

	require.Error(t, err)
	assert.True(t, errors.Is(err, base.ErrQueryTimeout))
	assert.Nil(t, rows, "a timed out query yields no rows")
	assert.Less(t, elapsed, 2*time.Second)

	c := pool.Counts()
	assert.Equal(t, 1, c.Leases)
	assert.Equal(t, 0, c.Releases)
	assert.Equal(t, 1, c.Destroys)
	assert.Equal(t, 0, c.Misuse)
	assert.Equal(t, 1, obs.destroyed)
	assert.Equal(t, []string{OutcomeTimeout}, obs.outcomes)
}

func TestExecuteDeadlineCoversPreStatements(t *testing.T) {
	pause := func(ctx context.Context) error {
		select {
		case <-time.After(50 * time.Millisecond):
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	pool := pooltest.New("dev", func(ctx context.Context, stmt base.Statement) ([]base.Row, error) {
		if err := pause(ctx); err != nil {
			return nil, err
		}
		return []base.Row{{"box_score": "{}"}}, nil
	})
	pool.ExecFn = func(ctx context.Context, stmt base.Statement) error { return pause(ctx) }
	exec := New(nil, nil)

	// Each statement fits the budget alone; together they do not.
	_, err := exec.Execute(context.Background(), target(pool), mustSpec(t, 80*time.Millisecond,
		base.Statement{SQL: "SELECT box_score FROM t"},
		base.Statement{SQL: "SET SESSION group_concat_max_len = 10000000000"}))

	require.ErrorIs(t, err, base.ErrQueryTimeout)
	assert.Equal(t, 1, pool.Counts().Destroys)
}

func TestExecuteAfterTimeoutGetsFreshConnection(t *testing.T) {
	pool := pooltest.New("dev", pooltest.Hang(5*time.Second))
	exec := New(nil, nil)

	_, err := exec.Execute(context.Background(), target(pool),
		mustSpec(t, 20*time.Millisecond, base.Statement{SQL: "SELECT SLEEP(10)"}))
	require.True(t, errors.Is(err, base.ErrQueryTimeout))

	first := pool.Executed()[0].ConnID
	require.True(t, pool.WasDestroyed(first))

	pool.QueryFn = pooltest.Rows(base.Row{"ok": 1})
	_, err = exec.Execute(context.Background(), target(pool),
		mustSpec(t, time.Second, base.Statement{SQL: "SELECT 1"}))
	require.NoError(t, err)

	second := pool.Executed()[1].ConnID
	assert.NotEqual(t, first, second)
	assert.Equal(t, 2, pool.Counts().Opened)
}

func TestExecuteReusesReleasedConnection(t *testing.T) {
	pool := pooltest.New("dev", pooltest.Rows())
	exec := New(nil, nil)

	for i := 0; i < 3; i++ {
		_, err := exec.Execute(context.Background(), target(pool),
			mustSpec(t, time.Second, base.Statement{SQL: "SELECT 1"}))
		require.NoError(t, err)
	}
	assert.Equal(t, 1, pool.Counts().Opened)
	assert.Equal(t, 3, pool.Counts().Releases)
}

func TestExecuteLeaseFailure(t *testing.T) {
	pool := pooltest.New("dev", pooltest.Rows())
	pool.LeaseErr = errors.New("Too many connections")
	obs := &recordingObserver{}
	exec := New(nil, obs)

	_, err := exec.Execute(context.Background(), target(pool),
		mustSpec(t, time.Second, base.Statement{SQL: "SELECT 1"}))
	assert.True(t, errors.Is(err, base.ErrConnectionUnavailable))
	assert.Empty(t, pool.Executed())
	assert.Equal(t, 0, pool.Counts().Releases+pool.Counts().Destroys)
	assert.Equal(t, []string{OutcomeUnavailable}, obs.outcomes)
}

func TestExecuteCallerCancellationDoesNotAbortQuery(t *testing.T) {
	pool := pooltest.New("dev", pooltest.Hang(50*time.Millisecond, base.Row{"id": 1}))
	exec := New(nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	rows, err := exec.Execute(ctx, target(pool),
		mustSpec(t, time.Second, base.Statement{SQL: "SELECT 1"}))
	require.NoError(t, err)
	assert.Len(t, rows, 1)
	assert.Equal(t, 1, pool.Counts().Releases)
}

func TestExecutePanicDestroys(t *testing.T) {
	pool := pooltest.New("dev", func(ctx context.Context, stmt base.Statement) ([]base.Row, error) {
		panic("driver bug")
	})
	exec := New(nil, nil)

	_, err := exec.Execute(context.Background(), target(pool),
		mustSpec(t, time.Second, base.Statement{SQL: "SELECT 1"}))
	assert.True(t, errors.Is(err, base.ErrQueryExecution))

	c := pool.Counts()
	assert.Equal(t, 0, c.Releases)
	assert.Equal(t, 1, c.Destroys)
}

func TestExecuteRejectsEmptySpec(t *testing.T) {
	pool := pooltest.New("dev", pooltest.Rows())
	_, err := New(nil, nil).Execute(context.Background(), target(pool), base.QuerySpec{Operation: "x"})
	assert.True(t, errors.Is(err, base.ErrInvalidArgument))
	assert.Equal(t, 0, pool.Counts().Leases)
}

// Every lease is settled exactly once across a mix of outcomes.
func TestExecuteExactlyOnceUnderConcurrency(t *testing.T) {
	var mu sync.Mutex
	n := 0
	pool := pooltest.New("dev", func(ctx context.Context, stmt base.Statement) ([]base.Row, error) {
		mu.Lock()
		n++
		i := n
		mu.Unlock()
		switch i % 3 {
		case 0:
			return []base.Row{{"ok": 1}}, nil
		case 1:
			return nil, errors.New("boom")
		default:
			<-ctx.Done()
			return nil, ctx.Err()
		}
	})
	exec := New(nil, nil)

	var wg sync.WaitGroup
	for i := 0; i < 60; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = exec.Execute(context.Background(), target(pool),
				mustSpec(t, 20*time.Millisecond, base.Statement{SQL: "SELECT 1"}))
		}()
	}
	wg.Wait()

	c := pool.Counts()
	assert.Equal(t, 60, c.Leases)
	assert.Equal(t, 0, c.Outstanding())
	assert.Equal(t, 0, c.Misuse)
	assert.Equal(t, 20, c.Destroys)
}

func TestExecuteAgainstMySQLPool(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	mock.ExpectExec("SET SESSION group_concat_max_len = 10000000000").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT box_score FROM t WHERE team = ?").
		WithArgs(int64(42)).
		WillReturnRows(sqlmock.NewRows([]string{"box_score"}).AddRow(`{"pts":10}`))

	pool := mysql.NewFromDB("development", db, nil)
	rows, err := New(nil, nil).Execute(context.Background(), target(pool), mustSpec(t, time.Second,
		base.Statement{SQL: "SELECT box_score FROM t WHERE team = ?", Args: []interface{}{int64(42)}},
		base.Statement{SQL: "SET SESSION group_concat_max_len = 10000000000"}))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, `{"pts":10}`, rows[0]["box_score"])
	assert.NoError(t, mock.ExpectationsWereMet())
	assert.Equal(t, 0, pool.Stats().InUse)
}

func TestExecuteAgainstMySQLPoolTimeout(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	mock.ExpectQuery("SELECT SLEEP(5)").
		WillDelayFor(2 * time.Second).
		WillReturnRows(sqlmock.NewRows([]string{"x"}).AddRow(1))

	pool := mysql.NewFromDB("development", db, nil)
	_, err = New(nil, nil).Execute(context.Background(), target(pool),
		mustSpec(t, 30*time.Millisecond, base.Statement{SQL: "SELECT SLEEP(5)"}))
	require.True(t, errors.Is(err, base.ErrQueryTimeout))

	stats := pool.Stats()
	assert.Equal(t, 0, stats.InUse)
	assert.Equal(t, 0, stats.OpenConnections, "timed out connection must not return to the pool")
}
