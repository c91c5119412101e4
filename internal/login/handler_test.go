package login

import (
	"context"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sylverant/shipfabric/internal/constants"
	"github.com/sylverant/shipfabric/internal/framing"
)

type fakeAuth struct {
	guildcard int64
	privlevel int16
	ok        bool
	banned    bool
	ship      ShipTarget
	haveShip  bool
}

func (f *fakeAuth) Authenticate(ctx context.Context, username, password string) (int64, int16, bool, error) {
	return f.guildcard, f.privlevel, f.ok, nil
}

func (f *fakeAuth) IsBanned(ctx context.Context, guildcard int64, remoteIP net.IP) (bool, error) {
	return f.banned, nil
}

func (f *fakeAuth) PickShip(ctx context.Context, gmOnly bool) (ShipTarget, bool, error) {
	return f.ship, f.haveShip, nil
}

func buildLoginRequest(username, password string) []byte {
	buf := make([]byte, 32)
	copy(buf[0:16], username)
	copy(buf[16:32], password)
	return buf
}

func newTestLoginSession(t *testing.T) *framing.Session {
	t.Helper()
	client, server := net.Pipe()
	t.Cleanup(func() { client.Close(); server.Close() })
	sess := framing.NewSession(server, constants.VariantGCUS, clientCodec)
	sess.RemoteAddr = net.ParseIP("198.51.100.9")
	return sess
}

func TestHandlePacket_SuccessfulLoginRedirects(t *testing.T) {
	auth := &fakeAuth{
		guildcard: 42, ok: true,
		ship:     ShipTarget{ExternalIP: net.ParseIP("203.0.113.7"), InternalIP: net.ParseIP("10.0.0.5"), Port: 5100},
		haveShip: true,
	}
	h := NewHandler(auth, net.ParseIP("127.0.0.1"), nil, net.CIDRMask(24, 32))
	sess := newTestLoginSession(t)

	reply, err := h.HandlePacket(context.Background(), sess, framing.Frame{
		Opcode: opLoginRequest, Payload: buildLoginRequest("nebula", "hunnypot"),
	})
	require.NoError(t, err)
	require.NotNil(t, reply)
	assert.Equal(t, uint16(opRedirect), reply.Opcode)
	assert.Equal(t, uint32(42), sess.Guildcard())
	assert.True(t, sess.HasFlag(framing.FlagLoggedIn))
}

func TestHandlePacket_BadPasswordRejects(t *testing.T) {
	auth := &fakeAuth{ok: false}
	h := NewHandler(auth, nil, nil, nil)
	sess := newTestLoginSession(t)

	reply, err := h.HandlePacket(context.Background(), sess, framing.Frame{
		Opcode: opLoginRequest, Payload: buildLoginRequest("nebula", "wrong"),
	})
	require.NoError(t, err)
	require.NotNil(t, reply)
	assert.Equal(t, uint16(opLoginOK), reply.Opcode)
	assert.Equal(t, byte(0x01), reply.Payload[0])
	assert.False(t, sess.HasFlag(framing.FlagLoggedIn))
}

func TestHandlePacket_BannedAccountRejects(t *testing.T) {
	auth := &fakeAuth{guildcard: 7, ok: true, banned: true}
	h := NewHandler(auth, nil, nil, nil)
	sess := newTestLoginSession(t)

	reply, err := h.HandlePacket(context.Background(), sess, framing.Frame{
		Opcode: opLoginRequest, Payload: buildLoginRequest("banned", "pw"),
	})
	require.NoError(t, err)
	require.NotNil(t, reply)
	assert.Equal(t, byte(0x02), reply.Payload[0])
}

func TestHandlePacket_RejectsWrongOpcode(t *testing.T) {
	h := NewHandler(&fakeAuth{}, nil, nil, nil)
	sess := newTestLoginSession(t)

	_, err := h.HandlePacket(context.Background(), sess, framing.Frame{Opcode: 0x01})
	assert.Error(t, err)
}
