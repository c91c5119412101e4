package framing

import (
	"fmt"
	"io"

	"github.com/sylverant/shipfabric/internal/cipher"
)

// headerPool recycles the small header scratch buffer every ReadFrame
// call needs; its contents never escape the function (they're fully
// decoded into opcode/flags/totalLen before return), so it is safe to
// return to the pool unconditionally once decoded.
var headerPool = NewBytePool(8)

// ReadFrame implements the read path of spec.md §4.1: decrypt the
// header, extract and round up the length, then decrypt the body.
// Because each connection is handled by its own goroutine doing blocking
// I/O (see SPEC_FULL.md's framing notes), the scratch-buffer / partial
// accumulation machinery of the original design collapses to two
// io.ReadFull calls; the decrypt-header-then-decrypt-body split and the
// cipher's continuous keystream across both calls are preserved exactly.
func ReadFrame(r io.Reader, dec cipher.StreamCipher, codec HeaderCodec) (Frame, error) {
	hdrSize := codec.Size()
	hdr := headerPool.Get(hdrSize)
	defer headerPool.Put(hdr)
	if _, err := io.ReadFull(r, hdr); err != nil {
		return Frame{}, fmt.Errorf("%w: reading header: %v", ErrShortRead, err)
	}

	dec.Decrypt(hdr)
	opcode, flags, totalLen := codec.Decode(hdr)
	if totalLen < hdrSize {
		return Frame{}, ErrBadFrame
	}
	totalLen = codec.RoundUp(totalLen)

	bodyLen := totalLen - hdrSize
	body := make([]byte, bodyLen)
	if bodyLen > 0 {
		if _, err := io.ReadFull(r, body); err != nil {
			return Frame{}, fmt.Errorf("%w: reading body: %v", ErrShortRead, err)
		}
		dec.Decrypt(body)
	}

	return Frame{Opcode: opcode, Flags: flags, Payload: body}, nil
}

// EncodeFrame builds an encrypted, padded frame in memory, for callers
// that queue it through Session.Send rather than writing directly to a
// net.Conn (so packet logging and the send buffer still see it).
func EncodeFrame(enc cipher.StreamCipher, codec HeaderCodec, opcode, flags uint16, payload []byte) []byte {
	hdrSize := codec.Size()
	rawLen := hdrSize + len(payload)
	totalLen := codec.RoundUp(rawLen)

	buf := make([]byte, totalLen)
	codec.Encode(buf[:hdrSize], opcode, flags, totalLen)
	copy(buf[hdrSize:], payload)

	enc.Encrypt(buf)
	return buf
}

// WriteFrame implements the write path of spec.md §4.1: pad the payload
// to the header alignment, then encrypt the whole frame (header+body)
// with the server-direction cipher before handing it to w.
func WriteFrame(w io.Writer, enc cipher.StreamCipher, codec HeaderCodec, opcode, flags uint16, payload []byte) error {
	hdrSize := codec.Size()
	rawLen := hdrSize + len(payload)
	totalLen := codec.RoundUp(rawLen)

	buf := make([]byte, totalLen)
	codec.Encode(buf[:hdrSize], opcode, flags, totalLen)
	copy(buf[hdrSize:], payload)
	// Padding bytes beyond the payload are already zero.

	enc.Encrypt(buf)

	if _, err := w.Write(buf); err != nil {
		return fmt.Errorf("writing frame: %w", err)
	}
	return nil
}
