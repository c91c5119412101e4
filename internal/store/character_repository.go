package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// CharacterRepository implements spec.md §4.5's character-backup
// exchange (CDATA store / CREQ fetch) against character_data.
type CharacterRepository struct {
	pool *pgxpool.Pool
}

// Store replaces the backup for (guildcard, slot): deletes the prior
// row then inserts the new blob, matching spec.md §4.5's "deletes the
// prior row for that (guildcard, slot) then inserts the new blob"
// rather than an upsert, so a short or malformed blob can never merge
// with stale bytes from a previous backup.
func (r *CharacterRepository) Store(ctx context.Context, guildcard int64, slot int16, data []byte) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning character backup tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM character_data WHERE guildcard = $1 AND slot = $2`, guildcard, slot); err != nil {
		return fmt.Errorf("clearing prior backup for guildcard %d slot %d: %w", guildcard, slot, err)
	}
	if _, err := tx.Exec(ctx, `INSERT INTO character_data (guildcard, slot, data) VALUES ($1, $2, $3)`, guildcard, slot, data); err != nil {
		return fmt.Errorf("storing backup for guildcard %d slot %d: %w", guildcard, slot, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing character backup for guildcard %d slot %d: %w", guildcard, slot, err)
	}
	return nil
}

// Fetch returns the backed-up blob for (guildcard, slot), or nil, nil
// if no backup exists — the CREQ/CDATA_REPLY path of spec.md §4.5.
func (r *CharacterRepository) Fetch(ctx context.Context, guildcard int64, slot int16) ([]byte, error) {
	var data []byte
	err := r.pool.QueryRow(ctx,
		`SELECT data FROM character_data WHERE guildcard = $1 AND slot = $2`, guildcard, slot,
	).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetching backup for guildcard %d slot %d: %w", guildcard, slot, err)
	}
	return data, nil
}
