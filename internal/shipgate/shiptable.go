package shipgate

import (
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/sylverant/shipfabric/internal/cipher"
	"github.com/sylverant/shipfabric/internal/framing"
)

// Ship is one online ship's record, per spec.md §3/§6's online_ships row
// plus the connection state needed to address it directly.
type Ship struct {
	ID       int64
	KeyIndex int64
	Name     string
	MenuCode int32
	GMOnly   bool
	Proxy    bool
	Version  uint32

	ExternalIP net.IP
	InternalIP net.IP
	Port       int32

	Players int32
	Games   int32

	conn       net.Conn
	sendCipher cipher.StreamCipher
	sendMu     sync.Mutex

	lastMu      sync.Mutex
	lastMessage time.Time
}

// Touch records that a frame was just received from this ship, per
// spec.md §4.5's ping rule ("responses are silently consumed to update
// last_message").
func (s *Ship) Touch(at time.Time) {
	s.lastMu.Lock()
	s.lastMessage = at
	s.lastMu.Unlock()
}

// LastMessage returns the last time a frame was received from this
// ship.
func (s *Ship) LastMessage() time.Time {
	s.lastMu.Lock()
	defer s.lastMu.Unlock()
	return s.lastMessage
}

func (s *Ship) send(opcode uint16, payload []byte) error {
	frame := framing.EncodeFrame(s.sendCipher, gateCodec, opcode, 0, payload)
	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	if _, err := s.conn.Write(frame); err != nil {
		return fmt.Errorf("writing to ship %d: %w", s.ID, err)
	}
	return nil
}

// ShipTable is the shipgate's single piece of cross-connection shared
// state: spec.md §5 calls for no per-ship locks because the original is
// single-threaded; here every connection is its own goroutine, so one
// mutex stands in for that single-threaded guarantee (documented in
// DESIGN.md).
type ShipTable struct {
	mu    sync.Mutex
	ships map[int64]*Ship
}

// NewShipTable builds an empty table.
func NewShipTable() *ShipTable {
	return &ShipTable{ships: make(map[int64]*Ship)}
}

// Add registers a newly-handshaken ship and returns the snapshot of the
// fleet that existed before it (for catch-up per spec.md §4.5 step 5).
func (t *ShipTable) Add(s *Ship) []*Ship {
	t.mu.Lock()
	defer t.mu.Unlock()

	existing := make([]*Ship, 0, len(t.ships))
	for _, other := range t.ships {
		existing = append(existing, other)
	}
	t.ships[s.ID] = s
	return existing
}

// Remove deletes a ship's row from the table, returning the remaining
// fleet to notify.
func (t *ShipTable) Remove(id int64) []*Ship {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.ships, id)
	return t.snapshotLocked()
}

// ByID looks up a ship by id.
func (t *ShipTable) ByID(id int64) (*Ship, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.ships[id]
	return s, ok
}

// All returns every currently-registered ship.
func (t *ShipTable) All() []*Ship {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshotLocked()
}

// UpdateCounts refreshes a ship's player/game counts in place.
func (t *ShipTable) UpdateCounts(id int64, players, games int32) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if s, ok := t.ships[id]; ok {
		s.Players = players
		s.Games = games
	}
}

func (t *ShipTable) snapshotLocked() []*Ship {
	out := make([]*Ship, 0, len(t.ships))
	for _, s := range t.ships {
		out = append(out, s)
	}
	return out
}

// Broadcast sends payload to every ship in the table except skip (if
// non-nil), collecting per-ship write failures into the returned slice
// and continuing past them so one stalled ship never blocks fan-out to
// the rest.
func (t *ShipTable) Broadcast(opcode uint16, payload []byte, skip *Ship) []error {
	var errs []error
	for _, s := range t.All() {
		if skip != nil && s.ID == skip.ID {
			continue
		}
		if err := s.send(opcode, payload); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}
