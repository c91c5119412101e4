package framing

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// NewPacketLogger opens a fresh per-connection packet log file under dir
// and returns a Session.PacketLog hook plus its closer. spec.md §3 lists
// an optional per-session packet log file without specifying activation;
// here it is gated behind the --verbose CLI flag (internal/ops). Each
// file is named with a fresh uuid rather than a remote-address-derived
// name, since two connections from behind the same NAT would otherwise
// collide.
func NewPacketLogger(dir string) (log func(frame []byte), closeFn func() error, err error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("creating packet log dir %s: %w", dir, err)
	}

	path := filepath.Join(dir, uuid.New().String()+".log")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("opening packet log %s: %w", path, err)
	}

	return func(frame []byte) {
		fmt.Fprintln(f, hex.EncodeToString(frame))
	}, f.Close, nil
}
