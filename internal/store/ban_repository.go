package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// BanRepository implements spec.md §4.5's ban issuance and lookup
// against bans/guildcard_bans/ip_bans.
type BanRepository struct {
	pool *pgxpool.Pool
}

// IssueGuildcardBan inserts a bans row and a joining guildcard_bans
// row, per spec.md §4.5's GCBan handling.
func (r *BanRepository) IssueGuildcardBan(ctx context.Context, target int64, endDate, setBy int64, reason string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning guildcard ban tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var banID int64
	err = tx.QueryRow(ctx,
		`INSERT INTO bans (enddate, setby, reason) VALUES ($1, $2, $3) RETURNING id`,
		endDate, setBy, reason,
	).Scan(&banID)
	if err != nil {
		return fmt.Errorf("inserting ban row: %w", err)
	}
	if _, err := tx.Exec(ctx, `INSERT INTO guildcard_bans (ban_id, guildcard) VALUES ($1, $2)`, banID, target); err != nil {
		return fmt.Errorf("inserting guildcard_bans row for guildcard %d: %w", target, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing guildcard ban for %d: %w", target, err)
	}
	return nil
}

// IssueIPBan inserts a bans row and a joining ip_bans row, per
// spec.md §4.5's IPBan handling.
func (r *BanRepository) IssueIPBan(ctx context.Context, addr string, endDate, setBy int64, reason string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning ip ban tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var banID int64
	err = tx.QueryRow(ctx,
		`INSERT INTO bans (enddate, setby, reason) VALUES ($1, $2, $3) RETURNING id`,
		endDate, setBy, reason,
	).Scan(&banID)
	if err != nil {
		return fmt.Errorf("inserting ban row: %w", err)
	}
	if _, err := tx.Exec(ctx, `INSERT INTO ip_bans (ban_id, addr) VALUES ($1, $2)`, banID, addr); err != nil {
		return fmt.Errorf("inserting ip_bans row for %s: %w", addr, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing ip ban for %s: %w", addr, err)
	}
	return nil
}

// IsGuildcardBanned reports whether an active ban covers guildcard,
// per the login server's ban-table check (spec.md §4.2 step 3).
func (r *BanRepository) IsGuildcardBanned(ctx context.Context, guildcard int64, now int64) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (
		   SELECT 1 FROM guildcard_bans gb
		   JOIN bans b ON b.id = gb.ban_id
		   WHERE gb.guildcard = $1 AND b.enddate > $2
		 )`, guildcard, now,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("checking guildcard ban for %d: %w", guildcard, err)
	}
	return exists, nil
}

// IsIPBanned reports whether an active ban covers addr.
func (r *BanRepository) IsIPBanned(ctx context.Context, addr string, now int64) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (
		   SELECT 1 FROM ip_bans ib
		   JOIN bans b ON b.id = ib.ban_id
		   WHERE ib.addr = $1 AND b.enddate > $2
		 )`, addr, now,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("checking ip ban for %s: %w", addr, err)
	}
	return exists, nil
}
