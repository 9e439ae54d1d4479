// Package database opens the PostgreSQL pool behind the API and runs the named
// SQL queries embedded in the binary.
package database

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"strings"
	"time"

	"github.com/dispomed/dispomed-api/logging"
	"github.com/dispomed/dispomed-api/metrics"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
)

//go:embed sql/*.sql
var queries embed.FS

// Named queries shipped in sql/.
const (
	QueryIncidents          = "get_incidents"
	QueryIncidentsByProduct = "get_incidents_by_product_id"
	QueryProductByName      = "get_product_by_name"
	QueryCISNames           = "get_cis_names"
	QuerySearchProducts     = "search_products"
	QuerySubstitutions      = "get_substitutions"
	QueryEMAIncidentsByCIS  = "get_ema_incidents_by_cis"
	QuerySalesByCIS         = "get_sales_by_cis_codes"
	QueryATCClasses         = "get_atc_classes"
	QueryMaxReportDate      = "get_max_report_date"
	QueryInitSchema         = "init_schema"
)

// AdditionalFiltersMarker is replaced by the optional WHERE clauses of the
// incidents query.
const AdditionalFiltersMarker = "/* ADDITIONAL_FILTERS */"

const (
	defaultPingTimeout     = 5 * time.Second
	defaultConnMaxIdleTime = 30 * time.Second
	defaultConnMaxLifetime = 30 * time.Minute
	defaultMaxConns        = 20
	defaultConnectTimeout  = 2 * time.Second
)

// Options tunes the connection pool.
type Options struct {
	URL            string
	MaxConns       int
	ConnectTimeout time.Duration
	IdleTimeout    time.Duration
}

// DB is the PostgreSQL pool. It satisfies interfaces.Querier.
type DB struct {
	sql  *sql.DB
	host string
	name string
}

// Connect parses the URL with pgx and opens a database/sql pool on the pgx
// driver without touching the server.
func Connect(opts Options) (*DB, error) {
	connConfig, err := pgx.ParseConfig(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database url: %w", err)
	}

	connectTimeout := opts.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = defaultConnectTimeout
	}
	connConfig.ConnectTimeout = connectTimeout

	db := stdlib.OpenDB(*connConfig)

	maxConns := opts.MaxConns
	if maxConns <= 0 {
		maxConns = defaultMaxConns
	}
	idle := opts.IdleTimeout
	if idle <= 0 {
		idle = defaultConnMaxIdleTime
	}
	db.SetMaxOpenConns(maxConns)
	db.SetMaxIdleConns(maxConns)
	db.SetConnMaxIdleTime(idle)
	db.SetConnMaxLifetime(defaultConnMaxLifetime)

	return &DB{sql: db, host: connConfig.Host, name: connConfig.Database}, nil
}

// Open connects and pings the database once.
func Open(ctx context.Context, opts Options) (*DB, error) {
	db, err := Connect(opts)
	if err != nil {
		return nil, err
	}

	pingCtx, cancel := context.WithTimeout(ctx, defaultPingTimeout)
	defer cancel()

	if err := db.Ping(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logging.Info("Connected to PostgreSQL", "host", db.host, "database", db.name)
	return db, nil
}

// New wraps an already opened pool.
func New(db *sql.DB) *DB {
	return &DB{sql: db}
}

// Query runs a query and records its latency under name.
func (db *DB) Query(ctx context.Context, name, query string, args ...any) (*sql.Rows, error) {
	start := time.Now()
	rows, err := db.sql.QueryContext(ctx, query, args...)
	metrics.ObserveQuery(name, start, err)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", name, err)
	}
	return rows, nil
}

// Exec runs a statement that returns no rows.
func (db *DB) Exec(ctx context.Context, name, query string, args ...any) error {
	start := time.Now()
	_, err := db.sql.ExecContext(ctx, query, args...)
	metrics.ObserveQuery(name, start, err)
	if err != nil {
		return fmt.Errorf("exec %s: %w", name, err)
	}
	return nil
}

// Ping checks that the database is reachable.
func (db *DB) Ping(ctx context.Context) error {
	return db.sql.PingContext(ctx)
}

// Close releases the pool.
func (db *DB) Close() error {
	if db == nil || db.sql == nil {
		return nil
	}
	return db.sql.Close()
}

// InitSchema creates every table the API reads from. It is idempotent.
func (db *DB) InitSchema(ctx context.Context) error {
	schema, err := Load(QueryInitSchema)
	if err != nil {
		return err
	}
	for _, stmt := range SplitStatements(schema) {
		if err := db.Exec(ctx, QueryInitSchema, stmt); err != nil {
			return fmt.Errorf("failed to initialize schema: %w", err)
		}
	}
	return nil
}

// SplitStatements cuts a script on semicolons, dropping empty statements.
func SplitStatements(script string) []string {
	var stmts []string
	for _, stmt := range strings.Split(script, ";") {
		if stmt = strings.TrimSpace(stmt); stmt != "" {
			stmts = append(stmts, stmt)
		}
	}
	return stmts
}

// Load returns the text of a named query.
func Load(name string) (string, error) {
	content, err := queries.ReadFile("sql/" + name + ".sql")
	if err != nil {
		return "", fmt.Errorf("unknown query %q: %w", name, err)
	}
	return strings.TrimSpace(string(content)), nil
}

// MustLoad is Load for queries known at compile time.
func MustLoad(name string) string {
	q, err := Load(name)
	if err != nil {
		panic(err)
	}
	return q
}
