package shipgate

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatchForward_GuildSearchFansOutExcludingOriginAndProxy(t *testing.T) {
	s, _, _, _, _ := newTestServer()

	origin, _ := newTestShip(1)
	plain, plainConn := newTestShip(2)
	proxied, proxiedConn := newTestShip(3)
	proxied.Proxy = true
	s.table.Add(origin)
	s.table.Add(plain)
	s.table.Add(proxied)

	env := forwardEnvelope{originShipID: 1, innerOpcode: innerGuildSearch, inner: []byte("query")}
	s.dispatchForward(origin, opFwdDC, encodeForwardEnvelope(env))

	require.Len(t, plainConn.written, 1)
	assert.Empty(t, proxiedConn.written)
}

func TestDispatchForward_DCGuildReplyUnicasts(t *testing.T) {
	s, _, _, _, _ := newTestServer()

	origin, _ := newTestShip(1)
	target, targetConn := newTestShip(2)
	other, otherConn := newTestShip(3)
	s.table.Add(origin)
	s.table.Add(target)
	s.table.Add(other)

	env := forwardEnvelope{originShipID: 1, innerOpcode: innerDCGuildReply, targetShipID: 2, inner: []byte("reply")}
	s.dispatchForward(origin, opFwdDC, encodeForwardEnvelope(env))

	require.Len(t, targetConn.written, 1)
	assert.Empty(t, otherConn.written)
}

func TestDispatchForward_UnknownInnerOpcodeWarnsOrigin(t *testing.T) {
	s, _, _, _, _ := newTestServer()
	origin, originConn := newTestShip(1)
	s.table.Add(origin)

	env := forwardEnvelope{originShipID: 1, innerOpcode: 0xFFFF}
	s.dispatchForward(origin, opFwdDC, encodeForwardEnvelope(env))

	require.Len(t, originConn.written, 1)
	frame := decodeGateFrame(t, originConn.written[0])
	assert.Equal(t, uint16(opUnknownOpcode), frame.Opcode)
}

func TestEncodeDecodeForwardEnvelope_RoundTrips(t *testing.T) {
	env := forwardEnvelope{originShipID: 9, innerOpcode: innerSimpleMail, targetShipID: 4, inner: []byte("hello")}
	encoded := encodeForwardEnvelope(env)
	decoded, err := decodeForwardEnvelope(encoded)
	require.NoError(t, err)
	assert.Equal(t, env, decoded)
}

func TestDecodeCount_RoundTrips(t *testing.T) {
	payload := make([]byte, 8)
	binary.BigEndian.PutUint32(payload[0:4], 12)
	binary.BigEndian.PutUint32(payload[4:8], 3)
	players, games, err := decodeCount(payload)
	require.NoError(t, err)
	assert.Equal(t, int32(12), players)
	assert.Equal(t, int32(3), games)
}
