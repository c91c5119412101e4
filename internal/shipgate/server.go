// Package shipgate implements spec.md §4.5: the cross-ship hub that
// synchronizes player counts, guildcard search, mail, character
// backup, GM auth, and bans across every online ship.
package shipgate

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/google/uuid"

	"github.com/sylverant/shipfabric/internal/config"
	"github.com/sylverant/shipfabric/internal/framing"
	"github.com/sylverant/shipfabric/internal/store"
)

// Server accepts ship connections on the configured shipgate port,
// serving each fully on its own goroutine. spec.md §5 describes the
// shipgate as single-threaded cooperative so that no per-ship locks
// are needed; here the same "one globally consistent ShipTable, no
// per-ship locks" property is realized with a mutex inside ShipTable
// instead, since one-OS-thread-per-process is not idiomatic Go.
type Server struct {
	cfg config.Shipgate

	table      *ShipTable
	ships      ShipStore
	accounts   AccountLookup
	characters CharacterStore
	bans       BanStore

	log *slog.Logger

	ln net.Listener
}

// NewServer builds a shipgate hub backed by db.
func NewServer(cfg config.Shipgate, db *store.DB) *Server {
	return newServer(cfg, db.Ships(), db.Accounts(), db.Characters(), db.Bans())
}

func newServer(cfg config.Shipgate, ships ShipStore, accounts AccountLookup, characters CharacterStore, bans BanStore) *Server {
	return &Server{
		cfg:        cfg,
		table:      NewShipTable(),
		ships:      ships,
		accounts:   accounts,
		characters: characters,
		bans:       bans,
		log:        slog.Default().With("component", "shipgate"),
	}
}

// Run listens on the shipgate port until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", fmt.Sprintf("%s:%d", s.cfg.BindAddress, s.cfg.Port))
	if err != nil {
		return fmt.Errorf("listening on shipgate port %d: %w", s.cfg.Port, err)
	}
	s.ln = ln
	s.log.Info("shipgate listening", "addr", ln.Addr())

	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return ctx.Err()
			}
			return fmt.Errorf("accepting shipgate connection: %w", err)
		}
		go s.handleConn(ctx, conn)
	}
}

func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	reader := bufio.NewReader(conn)
	connID := uuid.New().String()

	result, err := performHandshake(ctx, conn, reader, s.rc4KeyFor, s.mainMenuAllowed,
		s.cfg.MinProtocolVersion, s.cfg.MaxProtocolVersion)
	if err != nil {
		s.log.Warn("shipgate handshake failed", "conn", connID, "remote", conn.RemoteAddr(), "error", err)
		return
	}

	ship := result.ship
	ship.conn = conn
	ship.sendCipher = result.sendCipher

	existing := s.table.Add(&ship)
	s.log.Info("ship online", "conn", connID, "ship", ship.ID, "name", ship.Name, "fleet_size", len(existing)+1)

	if err := s.ships.Upsert(ctx, shipRowFor(&ship)); err != nil {
		s.log.Error("persisting ship row", "ship", ship.ID, "error", err)
	}

	s.announce(&ship, existing)
	defer s.withdraw(ctx, &ship)

	for {
		frame, err := framing.ReadFrame(reader, result.recvCipher, gateCodec)
		if err != nil {
			s.log.Info("ship disconnected", "ship", ship.ID, "error", err)
			return
		}

		select {
		case <-ctx.Done():
			return
		default:
		}

		ship.Touch(time.Now())
		s.dispatch(ctx, &ship, frame)
	}
}

// announce implements spec.md §4.5 step 5's status broadcast: tell the
// existing fleet about the new ship, and catch the new ship up on the
// fleet that existed before it joined.
func (s *Server) announce(joined *Ship, existingFleet []*Ship) {
	payload := statusPayload(statusAdd, joined)
	for _, errSend := range s.table.Broadcast(opStatus, payload, joined) {
		s.log.Warn("status broadcast failed", "error", errSend)
	}

	for _, other := range existingFleet {
		if err := joined.send(opStatus, statusPayload(statusAdd, other)); err != nil {
			s.log.Warn("catch-up send failed", "ship", other.ID, "error", err)
		}
	}
}

func (s *Server) withdraw(ctx context.Context, left *Ship) {
	s.table.Remove(left.ID)
	if err := s.ships.Remove(ctx, left.ID); err != nil {
		s.log.Error("removing ship row", "ship", left.ID, "error", err)
	}
	for _, errSend := range s.table.Broadcast(opStatus, statusPayload(statusRemove, left), left) {
		s.log.Warn("status withdraw broadcast failed", "error", errSend)
	}
}

func (s *Server) dispatch(ctx context.Context, origin *Ship, frame framing.Frame) {
	switch frame.Opcode {
	case opFwdDC, opFwdPC:
		s.dispatchForward(origin, frame.Opcode, frame.Payload)
	case opCount:
		s.handleCount(ctx, origin, frame.Payload)
	case opCData:
		s.handleCData(ctx, origin, frame.Payload)
	case opCReq:
		s.handleCReq(ctx, origin, frame.Payload)
	case opGMLogin:
		s.handleGMLogin(ctx, origin, frame.Payload)
	case opGCBan:
		s.handleGCBan(ctx, origin, frame.Payload)
	case opIPBan:
		s.handleIPBan(ctx, origin, frame.Payload)
	case opPing:
		s.handlePing(origin)
	case opPong:
		// silently consumed, per spec.md §4.5's ping rule.
	default:
		s.log.Warn("unhandled shipgate opcode", "ship", origin.ID, "opcode", frame.Opcode)
		if err := origin.send(opUnknownOpcode, nil); err != nil {
			s.log.Warn("sending UnknownOpcode", "error", err)
		}
	}
}

func (s *Server) rc4KeyFor(ctx context.Context, keyIndex int64) ([]byte, error) {
	return s.ships.RC4Key(ctx, keyIndex)
}

func (s *Server) mainMenuAllowed(ctx context.Context, keyIndex int64) (bool, error) {
	return s.ships.MainMenuAllowed(ctx, keyIndex)
}

func shipRowFor(s *Ship) store.ShipRow {
	return store.ShipRow{
		ShipID:   s.ID,
		Name:     s.Name,
		Players:  s.Players,
		IP:       s.ExternalIP,
		Port:     s.Port,
		IntIP:    s.InternalIP,
		GMOnly:   s.GMOnly,
		Games:    s.Games,
		MenuCode: s.MenuCode,
	}
}

func statusPayload(kind byte, s *Ship) []byte {
	buf := make([]byte, 1+4)
	buf[0] = kind
	binary.BigEndian.PutUint32(buf[1:5], uint32(s.ID))
	return buf
}
