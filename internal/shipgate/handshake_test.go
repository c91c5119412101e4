package shipgate

import (
	"crypto/sha512"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sylverant/shipfabric/internal/cipher"
)

// TestDeriveShipgateSessionKey_MatchesScenario implements spec.md §8
// scenario 6: with a known shared key and nonce, the first 64 bytes of
// SHA-512(key XOR repeat(nonce)) is the RC4 key used for that
// direction.
func TestDeriveShipgateSessionKey_MatchesScenario(t *testing.T) {
	var key [128]byte
	for i := range key {
		key[i] = byte(i)
	}
	gateNonce := [4]byte{0x00, 0x01, 0x02, 0x03}

	var mixed [128]byte
	for i := 0; i < 128; i += 4 {
		mixed[i+0] = key[i+0] ^ gateNonce[0]
		mixed[i+1] = key[i+1] ^ gateNonce[1]
		mixed[i+2] = key[i+2] ^ gateNonce[2]
		mixed[i+3] = key[i+3] ^ gateNonce[3]
	}
	digest := sha512.Sum512(mixed[:])
	want := digest[:64]

	got := cipher.DeriveShipgateSessionKey(key, gateNonce)
	assert.Equal(t, want, got)
}

func TestMenuAllowed(t *testing.T) {
	assert.NoError(t, menuAllowed(0, true))
	assert.ErrorIs(t, menuAllowed(0, false), errBadMenu)
	assert.NoError(t, menuAllowed(int32('A')<<8|int32('B'), true))
	assert.ErrorIs(t, menuAllowed(int32('1')<<8|int32('B'), true), errInvalMenu)
}

func TestSanityCheckPrivilege(t *testing.T) {
	assert.True(t, sanityCheckPrivilege(0))
	assert.True(t, sanityCheckPrivilege(privLocalGM|privGlobalGM))
	assert.False(t, sanityCheckPrivilege(privGlobalGM))
	assert.True(t, sanityCheckPrivilege(privLocalRoot|privGlobalRoot))
	assert.False(t, sanityCheckPrivilege(privLocalRoot))
	assert.False(t, sanityCheckPrivilege(privGlobalRoot))
}

func TestDecodeLoginRequest_RoundTrips(t *testing.T) {
	buf := make([]byte, 32+len("Alpha"))
	buf[4], buf[5] = 'G', 'M'
	buf[8], buf[9], buf[10], buf[11] = 203, 0, 113, 7
	buf[12], buf[13], buf[14], buf[15] = 10, 0, 0, 5
	copy(buf[32:], "Alpha")

	req, err := decodeLoginRequest(buf)
	assert.NoError(t, err)
	assert.Equal(t, "Alpha", req.name)
	assert.Equal(t, int32('G')<<8|int32('M'), req.menuCode)
	assert.True(t, req.externalIP.Equal([]byte{203, 0, 113, 7}))
	assert.True(t, req.internalIP.Equal([]byte{10, 0, 0, 5}))
}
