package cipher

import (
	"crypto/rc4"
	"crypto/sha512"
	"fmt"
)

// RC4Cipher adapts crypto/rc4 to the StreamCipher interface used across
// the fabric, so the shipgate's framing loop can share internal/framing
// with the client-facing ship server despite using a different cipher
// family.
type RC4Cipher struct {
	c *rc4.Cipher
}

// NewRC4Cipher builds an RC4 cipher from an arbitrary-length key.
func NewRC4Cipher(key []byte) (*RC4Cipher, error) {
	c, err := rc4.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("creating rc4 cipher: %w", err)
	}
	return &RC4Cipher{c: c}, nil
}

func (r *RC4Cipher) Encrypt(data []byte) { r.c.XORKeyStream(data, data) }
func (r *RC4Cipher) Decrypt(data []byte) { r.c.XORKeyStream(data, data) }

// DeriveShipgateSessionKey implements the key-derivation rule of
// spec.md §4.5 step 3: XOR the 128-byte shared key with the direction's
// 4-byte nonce repeated 32 times, hash with SHA-512, and take the first
// 64 bytes of the digest as the RC4 key for that direction.
//
// Grounded on original_source/trunk/shipgate/src/ship.c, which applies
// gate_nonce and ship_nonce to the shared key before hashing with
// sylverant/sha4.h (SHA-512) ahead of seeding two independent RC4
// streams.
func DeriveShipgateSessionKey(sharedKey [128]byte, nonce [4]byte) []byte {
	var mixed [128]byte
	copy(mixed[:], sharedKey[:])
	for i := 0; i < 128; i += 4 {
		mixed[i+0] ^= nonce[0]
		mixed[i+1] ^= nonce[1]
		mixed[i+2] ^= nonce[2]
		mixed[i+3] ^= nonce[3]
	}

	digest := sha512.Sum512(mixed[:])
	key := make([]byte, 64)
	copy(key, digest[:64])
	return key
}
