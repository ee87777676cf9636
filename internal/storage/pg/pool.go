// Package pg implements the storage contract on PostgreSQL via pgx.
package pg

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

const defaultConnectTimeout = 10 * time.Second

type ConnectionPool struct {
	conn *pgxpool.Pool
}

// NewConnectionPool dials and pings the database.
func NewConnectionPool(ctx context.Context, connString string) (*ConnectionPool, error) {
	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("parse connection string: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, defaultConnectTimeout)
	defer cancel()

	conn, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := conn.Ping(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &ConnectionPool{conn: conn}, nil
}

func (p *ConnectionPool) Close() {
	p.conn.Close()
}
