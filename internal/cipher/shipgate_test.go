package cipher

import (
	"crypto/sha512"
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestDeriveShipgateSessionKey_MatchesManualComputation pins the
// key-derivation rule of spec.md §8 scenario 6: with a known 128-byte
// rc4key and nonce, the first 64 bytes of SHA-512(key XOR repeat(nonce,
// 32)) must equal the derived session key.
func TestDeriveShipgateSessionKey_MatchesManualComputation(t *testing.T) {
	var key [128]byte
	for i := range key {
		key[i] = byte(i)
	}
	nonce := [4]byte{0x00, 0x01, 0x02, 0x03}

	got := DeriveShipgateSessionKey(key, nonce)

	var mixed [128]byte
	for i := 0; i < 128; i += 4 {
		mixed[i+0] = key[i+0] ^ nonce[0]
		mixed[i+1] = key[i+1] ^ nonce[1]
		mixed[i+2] = key[i+2] ^ nonce[2]
		mixed[i+3] = key[i+3] ^ nonce[3]
	}
	digest := sha512.Sum512(mixed[:])
	want := digest[:64]

	assert.Equal(t, want, got)
	assert.Len(t, got, 64)
}

func TestRC4Cipher_RoundTrip(t *testing.T) {
	key := make([]byte, 64)
	for i := range key {
		key[i] = byte(i * 3)
	}

	plain := []byte("forwarded game packet payload travelling ship to shipgate")

	enc, err := NewRC4Cipher(key)
	assert.NoError(t, err)
	buf := append([]byte(nil), plain...)
	enc.Encrypt(buf)
	assert.NotEqual(t, plain, buf)

	dec, err := NewRC4Cipher(key)
	assert.NoError(t, err)
	dec.Decrypt(buf)
	assert.Equal(t, plain, buf)
}
