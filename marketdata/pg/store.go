// Package pg loads market-quote snapshots from Postgres.
//
// Expected schema:
//
//	CREATE TABLE quotes (
//	    quote_date date        NOT NULL,
//	    quote_id   text        NOT NULL,
//	    value      double precision NOT NULL,
//	    PRIMARY KEY (quote_date, quote_id)
//	);
package pg

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meenmo/curvecal/market"
)

// Config holds connection settings for the quote store.
type Config struct {
	Host     string
	Port     int
	Name     string
	User     string
	Password string
	SSLMode  string
	MinConns int
	MaxConns int
}

// ConnString renders a pgx connection string with credentials escaped.
func (c Config) ConnString() string {
	ssl := c.SSLMode
	if ssl == "" {
		ssl = "prefer"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		url.QueryEscape(c.User), url.QueryEscape(c.Password), c.Host, c.Port, c.Name, ssl)
}

// Store reads quote snapshots from a connection pool.
type Store struct {
	pool *pgxpool.Pool
}

// Connect creates a pool and verifies connectivity.
func Connect(ctx context.Context, cfg Config) (*Store, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.ConnString())
	if err != nil {
		return nil, fmt.Errorf("pg: parse connection string: %w", err)
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = int32(cfg.MinConns)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = int32(cfg.MaxConns)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("pg: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pg: ping database: %w", err)
	}
	return &Store{pool: pool}, nil
}

// NewStore wraps an existing pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close releases the pool.
func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Snapshot loads all quotes for one valuation date.
func (s *Store) Snapshot(ctx context.Context, valuationDate time.Time) (*market.Set, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT quote_id, value FROM quotes WHERE quote_date = $1 ORDER BY quote_id`,
		valuationDate)
	if err != nil {
		return nil, fmt.Errorf("pg: query quotes for %s: %w", valuationDate.Format("2006-01-02"), err)
	}
	defer rows.Close()

	quotes := make(map[market.QuoteID]float64)
	for rows.Next() {
		var id string
		var value float64
		if err := rows.Scan(&id, &value); err != nil {
			return nil, fmt.Errorf("pg: scan quote row: %w", err)
		}
		quotes[market.QuoteID(id)] = value
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("pg: iterate quote rows: %w", err)
	}
	if len(quotes) == 0 {
		return nil, fmt.Errorf("pg: no quotes for %s", valuationDate.Format("2006-01-02"))
	}
	return market.NewSet(valuationDate, quotes), nil
}
