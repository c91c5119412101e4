package store

import (
	"context"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccountRepository_ByUsernameAndGuildcard(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	repo := &AccountRepository{pool: pool}

	var accountID int64
	err := pool.QueryRow(ctx,
		`INSERT INTO account_data (username, password, regtime, privlevel) VALUES ($1, $2, $3, $4) RETURNING account_id`,
		"nebula", "deadbeef", 1000, 3,
	).Scan(&accountID)
	require.NoError(t, err)
	_, err = pool.Exec(ctx, `INSERT INTO guildcards (guildcard, account_id) VALUES ($1, $2)`, 42, accountID)
	require.NoError(t, err)

	byName, err := repo.ByUsername(ctx, "nebula")
	require.NoError(t, err)
	require.NotNil(t, byName)
	assert.Equal(t, int16(3), byName.PrivLevel)

	byGC, err := repo.ByGuildcard(ctx, 42)
	require.NoError(t, err)
	require.NotNil(t, byGC)
	assert.Equal(t, "nebula", byGC.Username)

	missing, err := repo.ByUsername(ctx, "nobody")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestShipRepository_UpsertListRemove(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	repo := &ShipRepository{pool: pool}

	ship := ShipRow{
		ShipID: 1, Name: "Ragol", Players: 0,
		IP: net.ParseIP("203.0.113.7"), Port: 5100,
		IntIP: net.ParseIP("10.0.0.5"), GMOnly: false, Games: 0, MenuCode: 0,
	}
	require.NoError(t, repo.Upsert(ctx, ship))

	list, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Ragol", list[0].Name)

	ship.Players = 12
	require.NoError(t, repo.Upsert(ctx, ship))
	list, err = repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, int32(12), list[0].Players)

	require.NoError(t, repo.Remove(ctx, 1))
	list, err = repo.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 0)
}

func TestCharacterRepository_StoreReplacesPriorBackup(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	repo := &CharacterRepository{pool: pool}

	require.NoError(t, repo.Store(ctx, 7, 0, []byte("first-blob")))
	require.NoError(t, repo.Store(ctx, 7, 0, []byte("second-blob-replaces-the-first")))

	got, err := repo.Fetch(ctx, 7, 0)
	require.NoError(t, err)
	assert.Equal(t, []byte("second-blob-replaces-the-first"), got)

	missing, err := repo.Fetch(ctx, 7, 1)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestBanRepository_GuildcardAndIPBans(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	repo := &BanRepository{pool: pool}

	require.NoError(t, repo.IssueGuildcardBan(ctx, 99, 9999999999, 1, "cheating"))
	banned, err := repo.IsGuildcardBanned(ctx, 99, 1000)
	require.NoError(t, err)
	assert.True(t, banned)

	notBanned, err := repo.IsGuildcardBanned(ctx, 100, 1000)
	require.NoError(t, err)
	assert.False(t, notBanned)

	require.NoError(t, repo.IssueIPBan(ctx, "198.51.100.9", 9999999999, 1, "flood"))
	ipBanned, err := repo.IsIPBanned(ctx, "198.51.100.9", 1000)
	require.NoError(t, err)
	assert.True(t, ipBanned)
}
