package framing

import "errors"

// Error categories from spec.md §7.
var (
	ErrBadFrame    = errors.New("framing: decrypted length smaller than header size")
	ErrShortRead   = errors.New("framing: transport error on read")
	ErrCipherMisuse = errors.New("framing: bytes sent before welcome handshake completed")
)
