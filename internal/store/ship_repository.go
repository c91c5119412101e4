package store

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ShipRow mirrors spec.md §6's online_ships table, the record the
// login server reads to pick a ship and the shipgate keeps in sync
// with its in-memory ShipTable.
type ShipRow struct {
	ShipID   int64
	Name     string
	Players  int32
	IP       net.IP
	Port     int32
	IntIP    net.IP
	GMOnly   bool
	Games    int32
	MenuCode int32
}

// ShipRepository implements spec.md §4.5's "exactly one matching row
// exists in online_ships" invariant against online_ships/ship_data.
type ShipRepository struct {
	pool *pgxpool.Pool
}

// Upsert inserts or refreshes a ship's row, called on shipgate login
// (spec.md §4.5 step 5) and on every counter update.
func (r *ShipRepository) Upsert(ctx context.Context, s ShipRow) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO online_ships (ship_id, name, players, ip, port, int_ip, gm_only, games, menu_code)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 ON CONFLICT (ship_id) DO UPDATE SET
		   name = EXCLUDED.name, players = EXCLUDED.players, ip = EXCLUDED.ip,
		   port = EXCLUDED.port, int_ip = EXCLUDED.int_ip, gm_only = EXCLUDED.gm_only,
		   games = EXCLUDED.games, menu_code = EXCLUDED.menu_code`,
		s.ShipID, s.Name, s.Players, s.IP.String(), s.Port, s.IntIP.String(), s.GMOnly, s.Games, s.MenuCode,
	)
	if err != nil {
		return fmt.Errorf("upserting ship %d: %w", s.ShipID, err)
	}
	return nil
}

// Remove deletes a ship's row, called on shipgate disconnect so that
// "both are removed atomically from the external observer's point of
// view" (spec.md §4.5) holds for the persisted table too.
func (r *ShipRepository) Remove(ctx context.Context, shipID int64) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM online_ships WHERE ship_id = $1`, shipID)
	if err != nil {
		return fmt.Errorf("removing ship %d: %w", shipID, err)
	}
	return nil
}

// List returns every currently-online ship, the set the login server
// picks a redirect target from.
func (r *ShipRepository) List(ctx context.Context) ([]ShipRow, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT ship_id, name, players, ip, port, int_ip, gm_only, games, menu_code FROM online_ships ORDER BY ship_id`)
	if err != nil {
		return nil, fmt.Errorf("listing ships: %w", err)
	}
	defer rows.Close()

	var out []ShipRow
	for rows.Next() {
		var s ShipRow
		var ip, intIP string
		if err := rows.Scan(&s.ShipID, &s.Name, &s.Players, &ip, &s.Port, &intIP, &s.GMOnly, &s.Games, &s.MenuCode); err != nil {
			return nil, fmt.Errorf("scanning ship row: %w", err)
		}
		s.IP = net.ParseIP(ip)
		s.IntIP = net.ParseIP(intIP)
		out = append(out, s)
	}
	return out, rows.Err()
}

// RC4Key returns the persisted per-ship RC4 key material from
// ship_data, used to re-derive the shipgate session key on reconnect.
func (r *ShipRepository) RC4Key(ctx context.Context, idx int64) ([]byte, error) {
	var key []byte
	err := r.pool.QueryRow(ctx, `SELECT rc4key FROM ship_data WHERE idx = $1`, idx).Scan(&key)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying ship_data key for idx %d: %w", idx, err)
	}
	return key, nil
}

// MainMenuAllowed reports whether the ship at idx may present a
// zero menu-code (spec.md §4.5 step 4). Ships with no ship_data row
// yet default to true so a fresh deployment is never locked out.
func (r *ShipRepository) MainMenuAllowed(ctx context.Context, idx int64) (bool, error) {
	var mainMenu int32
	err := r.pool.QueryRow(ctx, `SELECT main_menu FROM ship_data WHERE idx = $1`, idx).Scan(&mainMenu)
	if errors.Is(err, pgx.ErrNoRows) {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("querying ship_data main_menu for idx %d: %w", idx, err)
	}
	return mainMenu != 0, nil
}

// SetRC4Key upserts a ship's persisted key material.
func (r *ShipRepository) SetRC4Key(ctx context.Context, idx int64, key []byte, mainMenu int32) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO ship_data (idx, rc4key, main_menu) VALUES ($1, $2, $3)
		 ON CONFLICT (idx) DO UPDATE SET rc4key = EXCLUDED.rc4key, main_menu = EXCLUDED.main_menu`,
		idx, key, mainMenu,
	)
	if err != nil {
		return fmt.Errorf("setting ship_data key for idx %d: %w", idx, err)
	}
	return nil
}
