package room

import (
	"github.com/sylverant/shipfabric/internal/constants"
	"github.com/sylverant/shipfabric/internal/framing"
)

// BroadcastFunc dispatches one queued packet to the room's members
// (GameCmd0, a full broadcast) or to a single target implied by the
// payload (GameCmd2/GameCmdD). internal/ship supplies the real
// implementation; keeping it injectable avoids a room->ship import
// cycle (ship already depends on room for membership).
type BroadcastFunc func(entry PacketEntry) error

// EnqueueDuringBurst deep-copies a subcommand packet into the room's FIFO
// queue while it is Bursting, per spec.md §4.3. Only GameCmd0/2/D may be
// queued; anything else is rejected with ErrUnexpectedDuringBurst.
//
// The reject-when-not-bursting check corrects the operator-precedence bug
// in the original `!l->flags & LOBBY_FLAG_BURSTING` (see
// original_source/ship_server/src/lobby.c, lobby_enqueue_pkt) per
// spec.md's Open Questions: the intent was "reject unless bursting",
// implemented here as flags&Bursting == 0.
func (r *Room) EnqueueDuringBurst(src *framing.Session, opcode uint8, payload []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.flags&FlagBursting == 0 {
		return ErrBusyBurst
	}

	switch opcode {
	case constants.OpGameCmd0, constants.OpGameCmd2, constants.OpGameCmdD:
	default:
		return ErrUnexpectedDuringBurst
	}

	cp := make([]byte, len(payload))
	copy(cp, payload)
	r.queue = append(r.queue, PacketEntry{Source: src, Opcode: opcode, Payload: cp})
	return nil
}

// DrainBurst clears FlagBursting and replays the queue in arrival order
// through dispatch. A dispatch failure aborts further dispatching but the
// loop still frees every remaining entry, matching
// lobby_handle_done_burst in original_source/ship_server/src/lobby.c.
func (r *Room) DrainBurst(dispatch BroadcastFunc) error {
	r.mu.Lock()
	queue := r.queue
	r.queue = nil
	r.flags &^= FlagBursting
	r.burster = nil
	r.mu.Unlock()

	var firstErr error
	for _, entry := range queue {
		if firstErr != nil {
			continue
		}
		if err := dispatch(entry); err != nil {
			firstErr = err
		}
	}
	return firstErr
}

// QueueLen reports the number of packets currently queued (tests only).
func (r *Room) QueueLen() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.queue)
}

// BeginBurst marks the room Bursting and records burster as the newly
// joined member whose "done-burst" subcommand will clear it, per
// spec.md §4.3 — only that member ever sends done-burst; pre-existing
// occupants have nothing to replay.
func (r *Room) BeginBurst(burster *framing.Session) {
	r.mu.Lock()
	r.flags |= FlagBursting
	r.burster = burster
	r.mu.Unlock()
}

// BurstAck reports whether src is the room's recorded bursting member,
// meaning the caller should call DrainBurst. Anyone else's done-burst
// subcommand (which shouldn't happen, but a malformed/duplicate client
// packet is not fatal) is ignored.
func (r *Room) BurstAck(src *framing.Session) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.burster != nil && src == r.burster
}
