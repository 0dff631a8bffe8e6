package database

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/Lakshmikallagunta/Shams/internal/config"
	"github.com/Lakshmikallagunta/Shams/internal/infrastructure/database/errors"
	"github.com/Lakshmikallagunta/Shams/internal/infrastructure/observability"
	"github.com/go-sql-driver/mysql"
)

// DB is a *sql.DB whose Exec and Query calls retry transient failures.
type DB struct {
	*sql.DB
	dsn         string
	retryConfig *errors.RetryConfig
	metrics     *observability.Metrics
	logger      *observability.Logger
}

// BuildDSN renders the MariaDB/MySQL data source name for cfg.
func BuildDSN(cfg *config.DatabaseConfig) string {
	mc := mysql.NewConfig()
	mc.User = cfg.User
	mc.Passwd = cfg.Password
	mc.Net = "tcp"
	mc.Addr = net.JoinHostPort(cfg.Host, cfg.Port)
	mc.DBName = cfg.Name
	mc.ParseTime = true
	mc.Loc = time.UTC
	mc.Collation = "utf8mb4_unicode_ci"
	mc.MaxAllowedPacket = 64 << 20
	mc.InterpolateParams = true
	mc.Timeout = cfg.ConnectTimeout
	mc.ReadTimeout = cfg.SocketTimeout
	mc.WriteTimeout = cfg.SocketTimeout
	return mc.FormatDSN()
}

// NewMariaDB prepares the connection pool without dialing. database/sql connects
// lazily, so this only fails on a malformed DSN; reachability is established by
// Connector.Connect against the returned DB's Ping.
func NewMariaDB(cfg *config.DatabaseConfig, metrics *observability.Metrics, logger *observability.Logger) (*DB, error) {
	dsn := BuildDSN(cfg)
	sqlDB, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database %s: %w", MaskCredentials(dsn), err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	db := NewDB(sqlDB, errors.DefaultRetryConfig().MergeWith(&cfg.Retry), metrics, logger)
	db.dsn = dsn
	return db, nil
}

// NewDB wraps an already opened pool.
func NewDB(sqlDB *sql.DB, retryCfg *errors.RetryConfig, metrics *observability.Metrics, logger *observability.Logger) *DB {
	if retryCfg == nil {
		retryCfg = errors.DefaultRetryConfig()
	}
	return &DB{
		DB:          sqlDB,
		retryConfig: retryCfg,
		metrics:     metrics,
		logger:      logger,
	}
}

// Connector returns the startup connector for this pool.
func (db *DB) Connector(timeout time.Duration) *Connector {
	return &Connector{
		Store:   "mariadb",
		Target:  db.dsn,
		Ping:    db.PingContext,
		Timeout: timeout,
		Retry:   db.retryConfig,
		Metrics: db.metrics,
		Logger:  db.logger,
	}
}

func (db *DB) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	var result sql.Result
	err := errors.RetryOperation(ctx, "exec", func(attempt uint64) error {
		var execErr error
		start := time.Now()
		result, execErr = db.DB.ExecContext(ctx, query, args...)
		db.observe("exec", query, time.Since(start), execErr)
		return execErr
	}, db.retryConfig, db.metrics, db.logger)
	return result, err
}

func (db *DB) QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	var rows *sql.Rows
	err := errors.RetryOperation(ctx, "query", func(attempt uint64) error {
		var queryErr error
		start := time.Now()
		rows, queryErr = db.DB.QueryContext(ctx, query, args...)
		db.observe("query", query, time.Since(start), queryErr)
		return queryErr
	}, db.retryConfig, db.metrics, db.logger)
	return rows, err
}

func (db *DB) QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row {
	return db.DB.QueryRowContext(ctx, query, args...)
}

func (db *DB) observe(queryType, query string, duration time.Duration, err error) {
	table := tableOf(query)
	if db.metrics != nil {
		db.metrics.DatabaseQueryDuration.WithLabelValues(queryType, table).Observe(duration.Seconds())
		if err != nil {
			db.metrics.DatabaseQueryErrors.WithLabelValues(queryType, table, string(errors.ClassifyError(err))).Inc()
		} else {
			db.metrics.DatabaseQuerySuccess.WithLabelValues(queryType, table).Inc()
		}
	}
	if err != nil && db.logger != nil {
		errors.LogDBError(db.logger, err, queryType, query)
	}
}

// tableOf picks the first table named after FROM, INTO or UPDATE for metric labels.
func tableOf(query string) string {
	fields := strings.Fields(query)
	for i := 0; i < len(fields)-1; i++ {
		switch strings.ToUpper(fields[i]) {
		case "FROM", "INTO", "UPDATE":
			return strings.Trim(fields[i+1], "`(;")
		}
	}
	return "unknown"
}

func (db *DB) Close() error {
	return db.DB.Close()
}
