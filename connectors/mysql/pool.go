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

package mysql

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/google/uuid"

	"github.com/ddam2015/spp-app-data-hub/connectors/base"
	"github.com/ddam2015/spp-app-data-hub/shared/logger"
)

const (
	// DefaultMaxOpenConns is the default maximum number of open connections
	DefaultMaxOpenConns = 10
	// DefaultMaxIdleConns is the default maximum number of idle connections
	DefaultMaxIdleConns = 10
	// DefaultConnMaxLifetime is the default maximum connection lifetime
	DefaultConnMaxLifetime = 5 * time.Minute
	// DefaultConnMaxIdleTime is the default maximum idle time for connections
	DefaultConnMaxIdleTime = 5 * time.Minute
	// DefaultConnectTimeout bounds dialing a new physical connection
	DefaultConnectTimeout = 10 * time.Second
	// DefaultPingTimeout bounds the startup ping
	DefaultPingTimeout = 10 * time.Second
)

// Credentials identify one tenant database.
type Credentials struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
}

// Options tunes the pool. Zero values fall back to the defaults above.
type Options struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	ConnectTimeout  time.Duration
	TLS             string
	// SkipPing disables the connectivity check in Open. Pools are created
	// lazily on the request path, so the first lease surfaces failures anyway.
	SkipPing bool
}

// Pool is a tenant connection pool over database/sql.
type Pool struct {
	name   string
	db     *sql.DB
	logger *logger.Logger
}

var _ base.Pool = (*Pool)(nil)

// Open builds the DSN, opens the pool and configures its limits.
func Open(ctx context.Context, name string, creds Credentials, opts Options, log *logger.Logger) (*Pool, error) {
	dsn, err := BuildDSN(creds, opts)
	if err != nil {
		return nil, base.NewConnectorError(name, "Open", "failed to build DSN", err).WithKind(base.ErrConnectionUnavailable)
	}

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, base.NewConnectorError(name, "Open", "failed to open connection", err).WithKind(base.ErrConnectionUnavailable)
	}

	maxOpenConns := opts.MaxOpenConns
	if maxOpenConns <= 0 {
		maxOpenConns = DefaultMaxOpenConns
	}
	maxIdleConns := opts.MaxIdleConns
	if maxIdleConns <= 0 {
		maxIdleConns = DefaultMaxIdleConns
	}
	connMaxLifetime := opts.ConnMaxLifetime
	if connMaxLifetime <= 0 {
		connMaxLifetime = DefaultConnMaxLifetime
	}
	connMaxIdleTime := opts.ConnMaxIdleTime
	if connMaxIdleTime <= 0 {
		connMaxIdleTime = DefaultConnMaxIdleTime
	}

	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxIdleConns)
	db.SetConnMaxLifetime(connMaxLifetime)
	db.SetConnMaxIdleTime(connMaxIdleTime)

	if !opts.SkipPing {
		pingCtx, cancel := context.WithTimeout(ctx, DefaultPingTimeout)
		defer cancel()

		if err := db.PingContext(pingCtx); err != nil {
			_ = db.Close()
			return nil, base.NewConnectorError(name, "Open", "failed to ping database", err).WithKind(base.ErrConnectionUnavailable)
		}
	}

	p := NewFromDB(name, db, log)
	p.logger.Info("", "", "Opened MySQL pool", map[string]interface{}{
		"pool":     name,
		"host":     creds.Host,
		"database": creds.Database,
		"max_open": maxOpenConns,
		"max_idle": maxIdleConns,
	})
	return p, nil
}

// NewFromDB wraps an already-open *sql.DB. Tests use it with sqlmock.
func NewFromDB(name string, db *sql.DB, log *logger.Logger) *Pool {
	if log == nil {
		log = logger.NewNop()
	}
	return &Pool{
		name:   name,
		db:     db,
		logger: log.Named("mysql_pool"),
	}
}

// BuildDSN constructs the go-sql-driver DSN with production defaults.
func BuildDSN(creds Credentials, opts Options) (string, error) {
	if creds.Database == "" {
		return "", fmt.Errorf("database name is required")
	}
	if creds.Host == "" {
		return "", fmt.Errorf("database host is required")
	}
	port := creds.Port
	if port == 0 {
		port = 3306
	}
	connectTimeout := opts.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = DefaultConnectTimeout
	}

	cfg := mysql.NewConfig()
	cfg.User = creds.User
	cfg.Passwd = creds.Password
	cfg.Net = "tcp"
	cfg.Addr = net.JoinHostPort(creds.Host, strconv.Itoa(port))
	cfg.DBName = creds.Database
	cfg.ParseTime = true
	cfg.Loc = time.UTC
	cfg.Collation = "utf8mb4_unicode_ci"
	cfg.Timeout = connectTimeout
	cfg.ReadTimeout = 30 * time.Second
	cfg.WriteTimeout = 30 * time.Second
	// Caller-supplied filter fragments reach the SQL text of some
	// operations; stacked statements must stay impossible on the wire.
	cfg.MultiStatements = false
	cfg.InterpolateParams = false
	if opts.TLS != "" {
		cfg.TLSConfig = opts.TLS
	}

	return cfg.FormatDSN(), nil
}

// Name returns the pool name
func (p *Pool) Name() string {
	return p.name
}

// Lease checks out a dedicated connection.
func (p *Pool) Lease(ctx context.Context) (base.Conn, error) {
	c, err := p.db.Conn(ctx)
	if err != nil {
		return nil, base.NewConnectorError(p.name, "Lease", "failed to lease connection", err).WithKind(base.ErrConnectionUnavailable)
	}
	return &leasedConn{id: uuid.NewString(), pool: p, conn: c}, nil
}

// Stats returns database/sql pool statistics.
func (p *Pool) Stats() sql.DBStats {
	return p.db.Stats()
}

// Close closes the pool
func (p *Pool) Close() error {
	if err := p.db.Close(); err != nil {
		return base.NewConnectorError(p.name, "Close", "failed to close pool", err)
	}
	p.logger.Info("", "", "Closed MySQL pool", map[string]interface{}{"pool": p.name})
	return nil
}

// HealthCheck verifies the database connection is healthy
func (p *Pool) HealthCheck(ctx context.Context) (*base.HealthStatus, error) {
	start := time.Now()
	err := p.db.PingContext(ctx)
	latency := time.Since(start)

	if err != nil {
		return &base.HealthStatus{
			Healthy:   false,
			Latency:   latency,
			Timestamp: time.Now(),
			Error:     logger.SanitizeError(err),
		}, nil
	}

	stats := p.db.Stats()
	details := map[string]string{
		"open_connections":    strconv.Itoa(stats.OpenConnections),
		"in_use":              strconv.Itoa(stats.InUse),
		"idle":                strconv.Itoa(stats.Idle),
		"wait_count":          strconv.FormatInt(stats.WaitCount, 10),
		"wait_duration":       stats.WaitDuration.String(),
		"max_idle_closed":     strconv.FormatInt(stats.MaxIdleClosed, 10),
		"max_lifetime_closed": strconv.FormatInt(stats.MaxLifetimeClosed, 10),
	}

	return &base.HealthStatus{
		Healthy:   true,
		Latency:   latency,
		Details:   details,
		Timestamp: time.Now(),
	}, nil
}

// leasedConn is one *sql.Conn checked out of the pool.
type leasedConn struct {
	id      string
	pool    *Pool
	conn    *sql.Conn
	settled atomic.Bool
}

func (c *leasedConn) ID() string {
	return c.id
}

func (c *leasedConn) Exec(ctx context.Context, stmt base.Statement) error {
	if _, err := c.conn.ExecContext(ctx, stmt.SQL, stmt.Args...); err != nil {
		return c.classify(ctx, "Exec", "statement execution failed", err)
	}
	return nil
}

func (c *leasedConn) Query(ctx context.Context, stmt base.Statement) ([]base.Row, error) {
	rows, err := c.conn.QueryContext(ctx, stmt.SQL, stmt.Args...)
	if err != nil {
		return nil, c.classify(ctx, "Query", "query execution failed", err)
	}
	defer func() { _ = rows.Close() }()

	columnTypes, err := rows.ColumnTypes()
	if err != nil {
		return nil, c.classify(ctx, "Query", "failed to get column types", err)
	}

	results := make([]base.Row, 0)
	for rows.Next() {
		values := make([]interface{}, len(columnTypes))
		valuePtrs := make([]interface{}, len(columnTypes))
		for i := range values {
			valuePtrs[i] = &values[i]
		}

		if err := rows.Scan(valuePtrs...); err != nil {
			return nil, c.classify(ctx, "Query", "failed to scan row", err)
		}

		row := make(base.Row, len(columnTypes))
		for i, ct := range columnTypes {
			row[ct.Name()] = convertValue(values[i], ct.DatabaseTypeName())
		}
		results = append(results, row)
	}

	if err := rows.Err(); err != nil {
		return nil, c.classify(ctx, "Query", "error during row iteration", err)
	}

	return results, nil
}

// Release returns the connection to the pool's idle set.
func (c *leasedConn) Release() error {
	if !c.settled.CompareAndSwap(false, true) {
		return errAlreadySettled
	}
	return c.conn.Close()
}

// Destroy marks the driver connection bad so database/sql closes it instead
// of returning it to the idle set, then gives up the handle. The pool
// replaces it with a fresh connection on a later lease.
func (c *leasedConn) Destroy() error {
	if !c.settled.CompareAndSwap(false, true) {
		return errAlreadySettled
	}
	_ = c.conn.Raw(func(interface{}) error {
		return driver.ErrBadConn
	})
	err := c.conn.Close()
	if errors.Is(err, sql.ErrConnDone) {
		return nil
	}
	return err
}

var errAlreadySettled = errors.New("connection already released or destroyed")

func (c *leasedConn) classify(ctx context.Context, operation, message string, err error) error {
	kind := base.ErrQueryExecution
	switch {
	case ctx.Err() != nil || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled):
		kind = base.ErrQueryTimeout
	case errors.Is(err, driver.ErrBadConn), errors.Is(err, mysql.ErrInvalidConn), errors.Is(err, sql.ErrConnDone):
		kind = base.ErrConnectionUnavailable
	}
	return base.NewConnectorError(c.pool.name, operation, message, err).WithKind(kind)
}

// convertValue maps driver values to JSON-friendly Go values.
func convertValue(val interface{}, typeName string) interface{} {
	if val == nil {
		return nil
	}

	switch v := val.(type) {
	case []byte:
		typeName = strings.ToUpper(typeName)
		switch {
		case strings.Contains(typeName, "CHAR"),
			strings.Contains(typeName, "TEXT"),
			strings.Contains(typeName, "ENUM"),
			strings.Contains(typeName, "SET"),
			typeName == "JSON":
			return string(v)
		case strings.Contains(typeName, "DECIMAL"),
			strings.Contains(typeName, "NUMERIC"):
			// Keep decimal as string to preserve precision
			return string(v)
		case strings.Contains(typeName, "BLOB"), strings.Contains(typeName, "BINARY"):
			return v
		default:
			// computed columns (CTE aggregates, GROUP_CONCAT) come back untyped
			return string(v)
		}
	default:
		return v
	}
}
