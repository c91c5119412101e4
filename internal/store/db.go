// Package store implements the relational persistence layer of
// spec.md §6: one repository per aggregate over a shared pgx pool.
package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// DB wraps a pgx connection pool shared by every repository.
type DB struct {
	pool *pgxpool.Pool
}

// New connects to PostgreSQL and returns a DB handle.
func New(ctx context.Context, dsn string) (*DB, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	return &DB{pool: pool}, nil
}

// Close closes the underlying connection pool.
func (d *DB) Close() {
	d.pool.Close()
}

// Pool returns the underlying pgx pool, for goose migrations and
// repository construction.
func (d *DB) Pool() *pgxpool.Pool {
	return d.pool
}

// Accounts returns a repository over account_data/guildcards.
func (d *DB) Accounts() *AccountRepository {
	return &AccountRepository{pool: d.pool}
}

// Ships returns a repository over online_ships/ship_data.
func (d *DB) Ships() *ShipRepository {
	return &ShipRepository{pool: d.pool}
}

// Characters returns a repository over character_data.
func (d *DB) Characters() *CharacterRepository {
	return &CharacterRepository{pool: d.pool}
}

// Bans returns a repository over bans/guildcard_bans/ip_bans.
func (d *DB) Bans() *BanRepository {
	return &BanRepository{pool: d.pool}
}
