package ship

import (
	"context"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/sylverant/shipfabric/internal/framing"
	"github.com/sylverant/shipfabric/internal/room"
)

// Block is one of a ship's game-hosting blocks, per spec.md §4.4: a
// default lobby plus every game room its clients have opened. One
// errgroup.Group supervises every client goroutine assigned to the
// block, realizing the "one thread per block" requirement of spec.md
// §4.3/§5 as a goroutine group rather than an OS thread — traffic for
// a block's rooms only ever originates from goroutines this group
// owns.
type Block struct {
	ID     int
	Ship   *Ship
	Lobby  *room.Room

	mu     sync.Mutex
	games  map[uint32]*room.Room
	nextID uint32

	group  *errgroup.Group
	gctx   context.Context
}

// NewBlock creates a block with its always-present default lobby.
func NewBlock(ctx context.Context, id int, sh *Ship) *Block {
	g, gctx := errgroup.WithContext(ctx)
	return &Block{
		ID:     id,
		Ship:   sh,
		Lobby:  room.NewRoom(uint32(id)<<16, room.KindLobby, 0),
		games:  make(map[uint32]*room.Room),
		nextID: 1,
		group:  g,
		gctx:   gctx,
	}
}

// Spawn runs fn under the block's supervisory errgroup, so a panic-free
// error from any client goroutine is observable via Wait.
func (b *Block) Spawn(fn func(ctx context.Context) error) {
	b.group.Go(func() error { return fn(b.gctx) })
}

// Wait blocks until every spawned client goroutine has returned.
func (b *Block) Wait() error {
	return b.group.Wait()
}

// NewGame creates and registers a game room under this block, per
// spec.md §4.3 room creation.
func (b *Block) NewGame(kind room.Kind, difficulty int) *room.Room {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := uint32(b.ID)<<16 | b.nextID
	b.nextID++
	g := room.NewRoom(id, kind, difficulty)
	b.games[id] = g
	b.Ship.IncrementGames()
	slog.Debug("game created", "block", b.ID, "room", id)
	return g
}

// Remove implements room.Registry: called by Room.Destroy once a game
// empties.
func (b *Block) Remove(r *room.Room) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.games, r.ID())
}

// DecrementGames implements room.GameCounter.
func (b *Block) DecrementGames() {
	b.Ship.DecrementGames()
}

// RoomByID returns the lobby or a live game room by id, or nil.
func (b *Block) RoomByID(id uint32) *room.Room {
	if id == b.Lobby.ID() {
		return b.Lobby
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.games[id]
}

// Games returns a snapshot of the block's live game rooms.
func (b *Block) Games() []*room.Room {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]*room.Room, 0, len(b.games))
	for _, g := range b.games {
		out = append(out, g)
	}
	return out
}

// AllRooms returns the lobby followed by every live game, the set
// Broadcast and session-cleanup code iterate.
func (b *Block) AllRooms() []*room.Room {
	return append([]*room.Room{b.Lobby}, b.Games()...)
}

var _ room.Registry = (*Block)(nil)
var _ room.GameCounter = (*Block)(nil)

// sessionsOf is a convenience used by dispatch.go to type-assert the
// opaque Session.Room() back-reference.
func sessionsOf(r *room.Room) []*framing.Session {
	return r.Occupants()
}
