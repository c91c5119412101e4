package shipgate

import (
	"context"
	"encoding/binary"
	"log/slog"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sylverant/shipfabric/internal/cipher"
	"github.com/sylverant/shipfabric/internal/config"
	"github.com/sylverant/shipfabric/internal/store"
)

type fakeAccounts struct {
	accounts map[int64]*store.Account // by guildcard
}

func (f *fakeAccounts) ByGuildcardAndUsername(ctx context.Context, guildcard int64, username string) (*store.Account, error) {
	a, ok := f.accounts[guildcard]
	if !ok || a.Username != username || a.PrivLevel <= 0 {
		return nil, nil
	}
	return a, nil
}

func (f *fakeAccounts) ByGuildcard(ctx context.Context, guildcard int64) (*store.Account, error) {
	a, ok := f.accounts[guildcard]
	if !ok {
		return nil, nil
	}
	return a, nil
}

type fakeCharacters struct {
	blobs map[string][]byte
}

func charKey(guildcard int64, slot int16) string {
	return string(append(binary.BigEndian.AppendUint32(nil, uint32(guildcard)), byte(slot)))
}

func (f *fakeCharacters) Store(ctx context.Context, guildcard int64, slot int16, data []byte) error {
	if f.blobs == nil {
		f.blobs = make(map[string][]byte)
	}
	f.blobs[charKey(guildcard, slot)] = append([]byte(nil), data...)
	return nil
}

func (f *fakeCharacters) Fetch(ctx context.Context, guildcard int64, slot int16) ([]byte, error) {
	return f.blobs[charKey(guildcard, slot)], nil
}

type fakeBans struct {
	guildcardBans []int64
	ipBans        []string
}

func (f *fakeBans) IssueGuildcardBan(ctx context.Context, target int64, endDate, setBy int64, reason string) error {
	f.guildcardBans = append(f.guildcardBans, target)
	return nil
}

func (f *fakeBans) IssueIPBan(ctx context.Context, addr string, endDate, setBy int64, reason string) error {
	f.ipBans = append(f.ipBans, addr)
	return nil
}

type fakeShips struct {
	keys     map[int64][]byte
	mainMenu map[int64]bool
	upserted []store.ShipRow
}

func (f *fakeShips) Upsert(ctx context.Context, s store.ShipRow) error {
	f.upserted = append(f.upserted, s)
	return nil
}
func (f *fakeShips) Remove(ctx context.Context, shipID int64) error { return nil }
func (f *fakeShips) RC4Key(ctx context.Context, idx int64) ([]byte, error) {
	return f.keys[idx], nil
}
func (f *fakeShips) MainMenuAllowed(ctx context.Context, idx int64) (bool, error) {
	return f.mainMenu[idx], nil
}

func newTestServer() (*Server, *fakeAccounts, *fakeCharacters, *fakeBans, *fakeShips) {
	accounts := &fakeAccounts{accounts: make(map[int64]*store.Account)}
	characters := &fakeCharacters{}
	bans := &fakeBans{}
	ships := &fakeShips{keys: make(map[int64][]byte), mainMenu: make(map[int64]bool)}
	s := newServer(config.DefaultShipgate(), ships, accounts, characters, bans)
	s.log = slog.New(slog.DiscardHandler)
	return s, accounts, characters, bans, ships
}

// fakeConn implements net.Conn enough for Ship.send to write into a
// buffer a test can inspect.
type fakeConn struct {
	net.Conn
	written [][]byte
}

func (c *fakeConn) Write(b []byte) (int, error) {
	c.written = append(c.written, append([]byte(nil), b...))
	return len(b), nil
}

func newTestShip(id int64) (*Ship, *fakeConn) {
	fc := &fakeConn{}
	ship := &Ship{ID: id, conn: fc, sendCipher: nopStreamCipher{}}
	return ship, fc
}

type nopStreamCipher struct{}

func (nopStreamCipher) Encrypt([]byte) {}
func (nopStreamCipher) Decrypt([]byte) {}

func TestHandleGMLogin_CorrectPasswordGrantsPrivilege(t *testing.T) {
	s, accounts, _, _, _ := newTestServer()
	hash := cipher.HashAccountPassword("p", "1234")
	accounts.accounts[42] = &store.Account{AccountID: 1, Username: "gm", Password: hash, RegTime: 1234, PrivLevel: int16(privLocalGM)}

	origin, fc := newTestShip(1)
	payload := append(binary.BigEndian.AppendUint32(nil, 42), make([]byte, 32)...)
	copy(payload[4:20], "gm")
	copy(payload[20:36], "p")

	s.handleGMLogin(context.Background(), origin, payload)

	require.Len(t, fc.written, 1)
	frame := decodeGateFrame(t, fc.written[0])
	assert.Equal(t, uint16(opGMReply), frame.Opcode)
	assert.Equal(t, byte(1), frame.Payload[0])
	assert.Equal(t, uint32(privLocalGM), binary.BigEndian.Uint32(frame.Payload[1:5]))
}

func TestHandleGMLogin_WrongPasswordRejects(t *testing.T) {
	s, accounts, _, _, _ := newTestServer()
	hash := cipher.HashAccountPassword("p", "1234")
	accounts.accounts[42] = &store.Account{AccountID: 1, Username: "gm", Password: hash, RegTime: 1234, PrivLevel: int16(privLocalGM)}

	origin, fc := newTestShip(1)
	payload := append(binary.BigEndian.AppendUint32(nil, 42), make([]byte, 32)...)
	copy(payload[4:20], "gm")
	copy(payload[20:36], "wrong")

	s.handleGMLogin(context.Background(), origin, payload)

	require.Len(t, fc.written, 1)
	frame := decodeGateFrame(t, fc.written[0])
	assert.Equal(t, uint16(opGMReply), frame.Opcode)
	assert.Equal(t, byte(0), frame.Payload[0])
}

func TestHandleGCBan_RequiresPrivilege(t *testing.T) {
	s, accounts, _, bans, _ := newTestServer()
	accounts.accounts[7] = &store.Account{PrivLevel: 1} // <= minGMPrivilegeForBan

	origin, fc := newTestShip(1)
	payload := make([]byte, 16)
	binary.BigEndian.PutUint32(payload[0:4], 7)
	binary.BigEndian.PutUint32(payload[4:8], 99)

	s.handleGCBan(context.Background(), origin, payload)

	assert.Empty(t, bans.guildcardBans)
	require.Len(t, fc.written, 1)
	frame := decodeGateFrame(t, fc.written[0])
	assert.Equal(t, uint16(opNotGM), frame.Opcode)
}

func TestHandleGCBan_PrivilegedIssuesBan(t *testing.T) {
	s, accounts, _, bans, _ := newTestServer()
	accounts.accounts[7] = &store.Account{PrivLevel: 3}

	origin, _ := newTestShip(1)
	payload := make([]byte, 16)
	binary.BigEndian.PutUint32(payload[0:4], 7)
	binary.BigEndian.PutUint32(payload[4:8], 99)

	s.handleGCBan(context.Background(), origin, payload)

	require.Len(t, bans.guildcardBans, 1)
	assert.Equal(t, int64(99), bans.guildcardBans[0])
}

func TestHandleGCBan_MalformedPacketRepliesBadBan(t *testing.T) {
	s, _, _, bans, _ := newTestServer()
	origin, fc := newTestShip(1)

	s.handleGCBan(context.Background(), origin, []byte{1, 2, 3})

	assert.Empty(t, bans.guildcardBans)
	require.Len(t, fc.written, 1)
	frame := decodeGateFrame(t, fc.written[0])
	assert.Equal(t, uint16(opBadBan), frame.Opcode)
}

func TestHandleIPBan_MalformedPacketRepliesBadBan(t *testing.T) {
	s, _, _, bans, _ := newTestServer()
	origin, fc := newTestShip(1)

	s.handleIPBan(context.Background(), origin, []byte{1, 2, 3})

	assert.Empty(t, bans.ipBans)
	require.Len(t, fc.written, 1)
	frame := decodeGateFrame(t, fc.written[0])
	assert.Equal(t, uint16(opBadBan), frame.Opcode)
}

func TestHandleCData_StoreThenFetchRoundTrips(t *testing.T) {
	s, _, _, _, _ := newTestServer()
	origin, fc := newTestShip(1)

	blob := make([]byte, 1052)
	for i := range blob {
		blob[i] = byte(i)
	}
	storePayload := make([]byte, 10+len(blob))
	binary.BigEndian.PutUint32(storePayload[0:4], 55)
	binary.BigEndian.PutUint16(storePayload[8:10], 2)
	copy(storePayload[10:], blob)

	s.handleCData(context.Background(), origin, storePayload)

	reqPayload := make([]byte, 10)
	binary.BigEndian.PutUint32(reqPayload[0:4], 55)
	binary.BigEndian.PutUint16(reqPayload[8:10], 2)
	s.handleCReq(context.Background(), origin, reqPayload)

	require.Len(t, fc.written, 1)
	frame := decodeGateFrame(t, fc.written[0])
	assert.Equal(t, uint16(opCDataReply), frame.Opcode)
	assert.Equal(t, blob, frame.Payload[10:10+len(blob)])
}

// decodeGateFrame decrypts (no-op here) and parses one gate-framed
// message out of raw bytes written by Ship.send.
func decodeGateFrame(t *testing.T, raw []byte) struct {
	Opcode  uint16
	Payload []byte
} {
	t.Helper()
	opcode, _, totalLen := gateCodec.Decode(raw[:8])
	totalLen = gateCodec.RoundUp(totalLen)
	return struct {
		Opcode  uint16
		Payload []byte
	}{Opcode: opcode, Payload: raw[8:totalLen]}
}
