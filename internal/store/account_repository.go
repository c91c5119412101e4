package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Account is a row of account_data, joined to its owning guildcard on
// read where the caller looks up by guildcard rather than username.
type Account struct {
	AccountID int64
	Username  string
	Password  string
	RegTime   int64
	PrivLevel int16
}

// AccountRepository implements spec.md §4.2 login authentication and
// §4.5 GM lookups against account_data/guildcards.
type AccountRepository struct {
	pool *pgxpool.Pool
}

// ByUsername fetches an account by login username. Returns nil, nil if
// no such account exists.
func (r *AccountRepository) ByUsername(ctx context.Context, username string) (*Account, error) {
	var a Account
	err := r.pool.QueryRow(ctx,
		`SELECT account_id, username, password, regtime, privlevel
		 FROM account_data WHERE username = $1`, username,
	).Scan(&a.AccountID, &a.Username, &a.Password, &a.RegTime, &a.PrivLevel)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying account %q: %w", username, err)
	}
	return &a, nil
}

// ByGuildcard resolves a guildcard to its owning account, per spec.md
// §4.5's GM login flow ("looks up account by guildcard→account-id").
func (r *AccountRepository) ByGuildcard(ctx context.Context, guildcard int64) (*Account, error) {
	var a Account
	err := r.pool.QueryRow(ctx,
		`SELECT a.account_id, a.username, a.password, a.regtime, a.privlevel
		 FROM account_data a JOIN guildcards g ON g.account_id = a.account_id
		 WHERE g.guildcard = $1`, guildcard,
	).Scan(&a.AccountID, &a.Username, &a.Password, &a.RegTime, &a.PrivLevel)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying account for guildcard %d: %w", guildcard, err)
	}
	return &a, nil
}

// ByGuildcardAndUsername backs the GM-login lookup of spec.md §4.5:
// "then by (account_id, username, privlevel>0)".
func (r *AccountRepository) ByGuildcardAndUsername(ctx context.Context, guildcard int64, username string) (*Account, error) {
	var a Account
	err := r.pool.QueryRow(ctx,
		`SELECT a.account_id, a.username, a.password, a.regtime, a.privlevel
		 FROM account_data a JOIN guildcards g ON g.account_id = a.account_id
		 WHERE g.guildcard = $1 AND a.username = $2 AND a.privlevel > 0`,
		guildcard, username,
	).Scan(&a.AccountID, &a.Username, &a.Password, &a.RegTime, &a.PrivLevel)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying GM account for guildcard %d: %w", guildcard, err)
	}
	return &a, nil
}
