package ship

import (
	"fmt"
	"strings"
	"unicode/utf16"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/japanese"
)

// TranscodeAutoreply converts a PC client's UTF-16LE autoreply text to
// the wire encoding spec.md §4.4 requires: SHIFT_JIS when the message
// begins with the language tag 'J', otherwise ISO-8859-1.
func TranscodeAutoreply(utf16le []byte) (string, error) {
	if len(utf16le)%2 != 0 {
		return "", fmt.Errorf("transcoding autoreply: odd-length UTF-16LE input")
	}

	units := make([]uint16, len(utf16le)/2)
	for i := range units {
		units[i] = uint16(utf16le[2*i]) | uint16(utf16le[2*i+1])<<8
	}
	text := string(utf16.Decode(units))

	enc := charmap.ISO8859_1.NewEncoder()
	if strings.HasPrefix(text, "J") {
		enc = japanese.ShiftJIS.NewEncoder()
	}

	out, err := enc.String(text)
	if err != nil {
		return "", fmt.Errorf("transcoding autoreply: %w", err)
	}
	return out, nil
}
