package database

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/isaacvitor/postgresql-nutshell/pkg/models"
)

// Postgres holds the single connection used by a benchmark run.
// A *pgx.Conn is not safe for concurrent use; neither is Postgres.
type Postgres struct {
	conn   *pgx.Conn
	logger zerolog.Logger
	config *Config
}

// Config holds PostgreSQL connection and fixture configuration
type Config struct {
	Host     string
	Port     int
	Name     string
	User     string
	Password string
	SSLMode  string // disable, prefer, require, ... (empty = driver default)

	Table  string // fixture table, e.g. test_jsonb_nesting
	Column string // jsonb document column, e.g. jb
}

// New connects to PostgreSQL and verifies the connection
func New(ctx context.Context, cfg *Config, logger zerolog.Logger) (*Postgres, error) {
	if cfg.Table == "" {
		return nil, fmt.Errorf("fixture table name is required")
	}
	if cfg.Column == "" {
		return nil, fmt.Errorf("document column name is required")
	}

	connCfg, err := pgx.ParseConfig(buildDSN(cfg))
	if err != nil {
		return nil, fmt.Errorf("invalid connection settings: %w", err)
	}

	conn, err := pgx.ConnectConfig(ctx, connCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres at %s:%d: %w", cfg.Host, cfg.Port, err)
	}

	if err := conn.Ping(ctx); err != nil {
		conn.Close(ctx)
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	log := logger.With().Str("component", "postgres").Logger()
	log.Info().
		Str("host", cfg.Host).
		Int("port", cfg.Port).
		Str("database", cfg.Name).
		Str("user", cfg.User).
		Str("table", cfg.Table).
		Str("server_version", conn.PgConn().ParameterStatus("server_version")).
		Msg("PostgreSQL connected")

	return &Postgres{
		conn:   conn,
		logger: log,
		config: cfg,
	}, nil
}

// buildDSN constructs a postgres:// URL so credentials with spaces or
// punctuation survive intact.
func buildDSN(cfg *Config) string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(cfg.User, cfg.Password),
		Host:   net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		Path:   "/" + cfg.Name,
	}
	if cfg.SSLMode != "" {
		q := url.Values{}
		q.Set("sslmode", cfg.SSLMode)
		u.RawQuery = q.Encode()
	}
	return u.String()
}

func (p *Postgres) table() string {
	return pgx.Identifier{p.config.Table}.Sanitize()
}

// Column returns the document column as a quoted identifier, ready to be
// used in access expressions
func (p *Postgres) Column() string {
	return pgx.Identifier{p.config.Column}.Sanitize()
}

// DistinctPairs returns every (size, level) group in the fixture table
func (p *Postgres) DistinctPairs(ctx context.Context) ([]models.Pair, error) {
	query := fmt.Sprintf("SELECT DISTINCT size, level FROM %s ORDER BY size, level", p.table())

	start := time.Now()
	rows, err := p.conn.Query(ctx, query)
	if err != nil {
		return nil, p.failed(query, start, err)
	}

	pairs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.Pair, error) {
		var pair models.Pair
		err := row.Scan(&pair.Size, &pair.Level)
		return pair, err
	})
	if err != nil {
		return nil, p.failed(query, start, err)
	}

	p.executed(query, start, len(pairs))
	return pairs, nil
}

// SampleSizes returns text length and on-disk size of up to limit documents
func (p *Postgres) SampleSizes(ctx context.Context, pair models.Pair, limit int) ([]models.SizeSample, error) {
	col := p.Column()
	query := fmt.Sprintf(
		"SELECT octet_length(%s::text) AS raw_bytes, pg_column_size(%s) AS stored_bytes FROM %s WHERE size = $1 AND level = $2 LIMIT $3",
		col, col, p.table(),
	)

	start := time.Now()
	rows, err := p.conn.Query(ctx, query, pair.Size, pair.Level, limit)
	if err != nil {
		return nil, p.failed(query, start, err)
	}

	samples, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.SizeSample, error) {
		var s models.SizeSample
		err := row.Scan(&s.Raw, &s.Stored)
		return s, err
	})
	if err != nil {
		return nil, p.failed(query, start, err)
	}

	p.executed(query, start, len(samples))
	return samples, nil
}

// ExplainAnalyze executes expr for one row of the group under
// EXPLAIN (ANALYZE, BUFFERS, FORMAT JSON) and returns the plan document.
// The statement is sent over the simple protocol with client-side parameter
// interpolation, which works for EXPLAIN on every server version.
func (p *Postgres) ExplainAnalyze(ctx context.Context, expr string, pair models.Pair) ([]byte, error) {
	query := fmt.Sprintf(
		"EXPLAIN (ANALYZE, BUFFERS, FORMAT JSON) SELECT %s FROM %s WHERE size = $1 AND level = $2 LIMIT 1",
		expr, p.table(),
	)

	start := time.Now()
	rows, err := p.conn.Query(ctx, query, pgx.QueryExecModeSimpleProtocol, pair.Size, pair.Level)
	if err != nil {
		return nil, p.failed(query, start, err)
	}
	defer rows.Close()

	var plan []byte
	if rows.Next() {
		if err := rows.Scan(&plan); err != nil {
			return nil, p.failed(query, start, err)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, p.failed(query, start, err)
	}

	p.executed(query, start, len(plan))
	return plan, nil
}

func (p *Postgres) failed(query string, start time.Time, err error) error {
	p.logger.Error().
		Err(err).
		Str("query", query).
		Dur("elapsed", time.Since(start)).
		Msg("Query failed")
	return fmt.Errorf("query failed: %w", err)
}

func (p *Postgres) executed(query string, start time.Time, n int) {
	p.logger.Debug().
		Str("query", query).
		Int("result", n).
		Dur("elapsed", time.Since(start)).
		Msg("Query executed")
}

// Close closes the connection
func (p *Postgres) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return p.conn.Close(ctx)
}
