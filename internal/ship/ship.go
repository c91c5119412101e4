// Package ship implements spec.md §4.4: the ship server's per-block
// lobby/game hosting and in-room packet relay, plus the outbound
// shipgate link of §4.5 that a ship drives as a client.
package ship

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sync/atomic"

	"github.com/sylverant/shipfabric/internal/config"
	"github.com/sylverant/shipfabric/internal/constants"
)

// Ship is one ship-server process: a set of blocks plus the outbound
// connection to the shipgate that keeps online_ships in sync.
type Ship struct {
	Config config.Ship
	Blocks []*Block

	clients atomic.Int64
	games   atomic.Int64

	Gate *GateClient
}

// New constructs a ship with cfg.NumBlocks blocks, each with its own
// default lobby.
func New(ctx context.Context, cfg config.Ship) *Ship {
	sh := &Ship{Config: cfg}
	sh.Blocks = make([]*Block, cfg.NumBlocks)
	for i := range sh.Blocks {
		sh.Blocks[i] = NewBlock(ctx, i, sh)
	}
	return sh
}

func (sh *Ship) IncrementGames() { sh.games.Add(1) }
func (sh *Ship) DecrementGames() { sh.games.Add(-1) }
func (sh *Ship) GameCount() int32 { return int32(sh.games.Load()) }

func (sh *Ship) IncrementClients() { sh.clients.Add(1) }
func (sh *Ship) DecrementClients() { sh.clients.Add(-1) }
func (sh *Ship) ClientCount() int32 { return int32(sh.clients.Load()) }

// BlockByID returns the block for a variant-adjusted port offset, or
// nil if out of range.
func (sh *Ship) BlockByID(id int) *Block {
	if id < 0 || id >= len(sh.Blocks) {
		return nil
	}
	return sh.Blocks[id]
}

// Run listens for client connections on one TCP port per block
// (PortBase+blockID, per spec.md §4.4/§4.5's port-per-block convention)
// and dials the shipgate, blocking until ctx is cancelled.
func (sh *Ship) Run(ctx context.Context) error {
	gate, err := DialGate(ctx, sh)
	if err != nil {
		return fmt.Errorf("connecting to shipgate: %w", err)
	}
	sh.Gate = gate
	go gate.Run(ctx)

	listeners := make([]net.Listener, len(sh.Blocks))
	for i, blk := range sh.Blocks {
		addr := fmt.Sprintf("%s:%d", sh.Config.ExternalIP, sh.Config.PortBase+i)
		l, err := net.Listen("tcp", addr)
		if err != nil {
			return fmt.Errorf("listening for block %d on %s: %w", i, addr, err)
		}
		listeners[i] = l
		blockID := blk.ID
		go sh.acceptLoop(ctx, l, blockID)
	}

	<-ctx.Done()
	for _, l := range listeners {
		_ = l.Close()
	}
	for _, blk := range sh.Blocks {
		_ = blk.Wait()
	}
	return ctx.Err()
}

func (sh *Ship) acceptLoop(ctx context.Context, l net.Listener, blockID int) {
	blk := sh.Blocks[blockID]
	for {
		conn, err := l.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return
			default:
				slog.Error("accept failed", "block", blockID, "error", err)
				return
			}
		}
		blk.Spawn(func(ctx context.Context) error {
			return sh.handleClient(ctx, blk, conn)
		})
	}
}

func (sh *Ship) handleClient(ctx context.Context, blk *Block, conn net.Conn) error {
	defer conn.Close()
	sh.IncrementClients()
	defer sh.DecrementClients()

	variant := constants.ParseVariant(sh.Config.Variant)
	return serveClient(ctx, sh, blk, conn, variant)
}
