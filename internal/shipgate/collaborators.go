package shipgate

import (
	"context"

	"github.com/sylverant/shipfabric/internal/store"
)

// AccountLookup is the subset of store.AccountRepository the GM-login
// and ban-privilege checks need.
type AccountLookup interface {
	ByGuildcardAndUsername(ctx context.Context, guildcard int64, username string) (*store.Account, error)
	ByGuildcard(ctx context.Context, guildcard int64) (*store.Account, error)
}

// CharacterStore is the subset of store.CharacterRepository the
// CDATA/CREQ handlers need.
type CharacterStore interface {
	Store(ctx context.Context, guildcard int64, slot int16, data []byte) error
	Fetch(ctx context.Context, guildcard int64, slot int16) ([]byte, error)
}

// BanStore is the subset of store.BanRepository the GCBan/IPBan
// handlers need.
type BanStore interface {
	IssueGuildcardBan(ctx context.Context, target int64, endDate, setBy int64, reason string) error
	IssueIPBan(ctx context.Context, addr string, endDate, setBy int64, reason string) error
}

// ShipStore is the subset of store.ShipRepository the handshake and
// counter/online-ships sync paths need.
type ShipStore interface {
	Upsert(ctx context.Context, s store.ShipRow) error
	Remove(ctx context.Context, shipID int64) error
	RC4Key(ctx context.Context, idx int64) ([]byte, error)
	MainMenuAllowed(ctx context.Context, idx int64) (bool, error)
}
