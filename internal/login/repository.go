package login

import (
	"context"
	"crypto/subtle"
	"fmt"
	"net"
	"time"

	"github.com/sylverant/shipfabric/internal/store"
)

// PostgresAccountAuth implements AccountAuth against internal/store's
// repositories, per spec.md §4.2 steps 3-4.
type PostgresAccountAuth struct {
	accounts *store.AccountRepository
	bans     *store.BanRepository
	ships    *store.ShipRepository
}

// Authenticate checks username/password against the salted-MD5 scheme
// of spec.md §4.2.
func (p *PostgresAccountAuth) Authenticate(ctx context.Context, username, password string) (int64, int16, bool, error) {
	acc, err := p.accounts.ByUsername(ctx, username)
	if err != nil {
		return 0, 0, false, fmt.Errorf("looking up account %q: %w", username, err)
	}
	if acc == nil {
		return 0, 0, false, nil
	}

	want := hashPassword(password, acc.RegTime)
	if subtle.ConstantTimeCompare([]byte(want), []byte(acc.Password)) != 1 {
		return 0, 0, false, nil
	}

	return acc.AccountID, acc.PrivLevel, true, nil
}

// IsBanned applies spec.md §4.2 step 3's ban-table check (by guildcard
// and by IPv4).
func (p *PostgresAccountAuth) IsBanned(ctx context.Context, guildcard int64, remoteIP net.IP) (bool, error) {
	now := time.Now().Unix()

	gcBanned, err := p.bans.IsGuildcardBanned(ctx, guildcard, now)
	if err != nil {
		return false, fmt.Errorf("checking guildcard ban: %w", err)
	}
	if gcBanned {
		return true, nil
	}

	if remoteIP == nil {
		return false, nil
	}
	ipBanned, err := p.bans.IsIPBanned(ctx, remoteIP.String(), now)
	if err != nil {
		return false, fmt.Errorf("checking ip ban: %w", err)
	}
	return ipBanned, nil
}

// PickShip selects the least-loaded ship from online_ships, honoring
// the gmOnly filter, per spec.md §4.2 step 4.
func (p *PostgresAccountAuth) PickShip(ctx context.Context, gmOnly bool) (ShipTarget, bool, error) {
	ships, err := p.ships.List(ctx)
	if err != nil {
		return ShipTarget{}, false, fmt.Errorf("listing ships: %w", err)
	}

	best := -1
	for i, s := range ships {
		if s.GMOnly && !gmOnly {
			continue
		}
		if best == -1 || s.Players < ships[best].Players {
			best = i
		}
	}
	if best == -1 {
		return ShipTarget{}, false, nil
	}

	s := ships[best]
	return ShipTarget{ExternalIP: s.IP, InternalIP: s.IntIP, Port: s.Port}, true, nil
}
