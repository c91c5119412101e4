// Package login implements spec.md §4.2: multi-variant client
// authentication and redirect to a ship.
package login

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"

	"github.com/google/uuid"

	"github.com/sylverant/shipfabric/internal/cipher"
	"github.com/sylverant/shipfabric/internal/config"
	"github.com/sylverant/shipfabric/internal/constants"
	"github.com/sylverant/shipfabric/internal/framing"
	"github.com/sylverant/shipfabric/internal/store"
)

var clientCodec = framing.ClientCodec{}

const opWelcome = 0x02

// variantPorts maps each listen port to the variant it identifies, per
// spec.md §9's Open Question resolution: the listener port is
// authoritative, not a field inside the login packet.
var variantPorts = map[int]constants.Variant{
	constants.PortGCJP10:   constants.VariantGCJP10,
	constants.PortGCJP11:   constants.VariantGCJP11,
	constants.PortGCUS:     constants.VariantGCUS,
	constants.PortDCGCEU60: constants.VariantGCEU60,
	constants.PortGCEU50:   constants.VariantGCEU50,
	constants.PortPC:       constants.VariantPC,
}

// Server accepts connections on one listener per supported variant plus
// the web-info listener, per spec.md §4.2.
type Server struct {
	cfg     config.Login
	handler *Handler

	mu        sync.Mutex
	listeners []net.Listener

	floodGuard *floodGuard
}

// NewServer builds a login server backed by db.
func NewServer(cfg config.Login, db *store.DB) *Server {
	repo := &PostgresAccountAuth{accounts: db.Accounts(), bans: db.Bans(), ships: db.Ships()}

	local := net.ParseIP(cfg.LocalAddress)
	override := net.ParseIP(cfg.Override)
	mask := net.CIDRMask(24, 32)
	if ip := net.ParseIP(cfg.LocalMask); ip != nil {
		if v4 := ip.To4(); v4 != nil {
			mask = net.IPMask(v4)
		}
	}

	return &Server{
		cfg:        cfg,
		handler:    NewHandler(repo, local, override, mask),
		floodGuard: newFloodGuard(cfg.MaxConnectionPerIP, cfg.FloodProtection),
	}
}

// Run starts every variant listener and the web-info listener, blocking
// until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	var wg sync.WaitGroup

	for port, variant := range variantPorts {
		ln, err := net.Listen("tcp", fmt.Sprintf("%s:%d", s.cfg.BindAddress, port))
		if err != nil {
			return fmt.Errorf("listening on variant port %d: %w", port, err)
		}
		s.trackListener(ln)

		wg.Add(1)
		go func(ln net.Listener, v constants.Variant) {
			defer wg.Done()
			s.acceptLoop(ctx, ln, v)
		}(ln, variant)
	}

	webLn, err := net.Listen("tcp", fmt.Sprintf("%s:%d", s.cfg.BindAddress, s.cfg.WebInfoPort))
	if err != nil {
		return fmt.Errorf("listening on web-info port %d: %w", s.cfg.WebInfoPort, err)
	}
	s.trackListener(webLn)
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.webInfoLoop(ctx, webLn)
	}()

	go func() {
		<-ctx.Done()
		s.closeListeners()
	}()

	wg.Wait()
	return ctx.Err()
}

func (s *Server) trackListener(ln net.Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, ln)
}

func (s *Server) closeListeners() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ln := range s.listeners {
		_ = ln.Close()
	}
}

func (s *Server) acceptLoop(ctx context.Context, ln net.Listener, variant constants.Variant) {
	slog.Info("login listener started", "variant", variant.String(), "addr", ln.Addr())
	for {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			slog.Error("accept failed", "variant", variant.String(), "error", err)
			return
		}

		host, _, _ := net.SplitHostPort(conn.RemoteAddr().String())
		if !s.floodGuard.allow(host) {
			slog.Warn("rejecting connection over per-IP limit", "remote", host, "variant", variant.String())
			conn.Close()
			continue
		}

		go func() {
			defer s.floodGuard.release(host)
			s.handleConnection(ctx, conn, variant)
		}()
	}
}

func (s *Server) handleConnection(ctx context.Context, conn net.Conn, variant constants.Variant) {
	defer conn.Close()

	connID := uuid.New().String()
	log := slog.With("conn", connID, "remote", conn.RemoteAddr(), "variant", variant.String())

	clientSeed := randomSeed()
	serverSeed := randomSeed()
	clientCipher := cipher.NewCipherForVariant(variant.IsGameCubeFamily(), clientSeed)
	serverCipher := cipher.NewCipherForVariant(variant.IsGameCubeFamily(), serverSeed)

	sess := framing.NewSession(conn, variant, clientCodec)
	sess.ClientCipher = clientCipher
	sess.ServerCipher = serverCipher
	if tcp, ok := conn.RemoteAddr().(*net.TCPAddr); ok {
		sess.RemoteAddr = tcp.IP
	}

	if s.cfg.Verbose {
		packetLog, closeFn, err := framing.NewPacketLogger(s.cfg.PacketLogDir)
		if err != nil {
			log.Warn("packet log unavailable", "error", err)
		} else {
			defer closeFn()
			sess.PacketLog = packetLog
		}
	}

	welcomePayload := make([]byte, 8)
	binary.LittleEndian.PutUint32(welcomePayload[0:4], clientSeed)
	binary.LittleEndian.PutUint32(welcomePayload[4:8], serverSeed)
	welcome := framing.EncodeFrame(noopCipher{}, clientCodec, opWelcome, 0, welcomePayload)
	if _, err := conn.Write(welcome); err != nil {
		log.Error("sending welcome", "error", err)
		return
	}

	frame, err := framing.ReadFrame(conn, clientCipher, clientCodec)
	if err != nil {
		log.Warn("reading login packet", "error", err)
		return
	}
	if sess.PacketLog != nil {
		sess.PacketLog(frame.Payload)
	}

	reply, err := s.handler.HandlePacket(ctx, sess, frame)
	if err != nil {
		log.Warn("login failed", "error", err)
	}
	if reply != nil {
		out := framing.EncodeFrame(serverCipher, clientCodec, reply.Opcode, 0, reply.Payload)
		if _, err := conn.Write(out); err != nil {
			log.Error("sending login reply", "error", err)
		}
	}
}

func (s *Server) webInfoLoop(ctx context.Context, ln net.Listener) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			slog.Error("web-info accept failed", "error", err)
			return
		}
		go func() {
			defer conn.Close()
			var buf [4]byte
			binary.LittleEndian.PutUint32(buf[:], uint32(s.handler.TotalClients()))
			_, _ = conn.Write(buf[:])
		}()
	}
}

func randomSeed() uint32 {
	var b [4]byte
	_, _ = rand.Read(b[:])
	return binary.LittleEndian.Uint32(b[:])
}

// noopCipher sends the welcome frame's seeds in the clear, per spec.md
// §4.1.
type noopCipher struct{}

func (noopCipher) Encrypt([]byte) {}
func (noopCipher) Decrypt([]byte) {}
