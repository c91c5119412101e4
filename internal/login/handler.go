package login

import (
	"context"
	"fmt"
	"net"
	"sync/atomic"

	"github.com/sylverant/shipfabric/internal/cipher"
	"github.com/sylverant/shipfabric/internal/framing"
	"github.com/sylverant/shipfabric/internal/netaddr"
)

// Client packet opcode for the login request (username/password), per
// spec.md §4.2 step 3.
const opLoginRequest = 0x93

// Server reply opcodes.
const (
	opLoginOK  = 0x94
	opRedirect = 0x19
)

// AccountAuth is the DB-backed collaborator Handler needs: account
// lookup, ban checks, and ship selection. internal/store's repositories
// implement it via PostgresAccountAuth in repository.go.
type AccountAuth interface {
	Authenticate(ctx context.Context, username, password string) (guildcard int64, privlevel int16, ok bool, err error)
	IsBanned(ctx context.Context, guildcard int64, remoteIP net.IP) (bool, error)
	PickShip(ctx context.Context, gmOnly bool) (ShipTarget, bool, error)
}

// ShipTarget is the subset of a store.ShipRow the redirect packet needs.
type ShipTarget struct {
	ExternalIP net.IP
	InternalIP net.IP
	Port       int32
}

// Reply is a login-server response frame awaiting encryption/framing.
type Reply struct {
	Opcode  uint16
	Payload []byte
}

// Handler processes the single login packet each connection sends.
type Handler struct {
	auth AccountAuth

	gateLocal    net.IP
	gateMask     net.IPMask
	gateOverride net.IP

	totalClients atomic.Int64
}

// NewHandler builds a Handler over auth, configured with the
// address-selection rule's local network parameters.
func NewHandler(auth AccountAuth, gateLocal, gateOverride net.IP, gateMask net.IPMask) *Handler {
	return &Handler{auth: auth, gateLocal: gateLocal, gateOverride: gateOverride, gateMask: gateMask}
}

func (h *Handler) TotalClients() int64 { return h.totalClients.Load() }

// HandlePacket authenticates the client and, on success, replies with a
// redirect packet to a selected ship, per spec.md §4.2 steps 3-4.
func (h *Handler) HandlePacket(ctx context.Context, sess *framing.Session, frame framing.Frame) (*Reply, error) {
	if frame.Opcode != opLoginRequest {
		return nil, fmt.Errorf("unexpected login opcode 0x%02x", frame.Opcode)
	}

	username, password, err := decodeLoginRequest(frame.Payload)
	if err != nil {
		return nil, fmt.Errorf("decoding login request: %w", err)
	}

	guildcard, _, ok, err := h.auth.Authenticate(ctx, username, password)
	if err != nil {
		return nil, fmt.Errorf("authenticating %q: %w", username, err)
	}
	if !ok {
		return &Reply{Opcode: opLoginOK, Payload: []byte{0x01}}, nil // generic failure byte
	}

	banned, err := h.auth.IsBanned(ctx, guildcard, sess.RemoteAddr)
	if err != nil {
		return nil, fmt.Errorf("checking bans for guildcard %d: %w", guildcard, err)
	}
	if banned {
		return &Reply{Opcode: opLoginOK, Payload: []byte{0x02}}, nil
	}

	h.totalClients.Add(1)
	sess.SetGuildcard(uint32(guildcard))
	sess.SetFlag(framing.FlagLoggedIn)

	ship, found, err := h.auth.PickShip(ctx, false)
	if err != nil {
		return nil, fmt.Errorf("picking ship for guildcard %d: %w", guildcard, err)
	}
	if !found {
		return &Reply{Opcode: opLoginOK, Payload: []byte{0x03}}, nil
	}

	addr := netaddr.Resolve(sess.RemoteAddr, ship.ExternalIP, ship.InternalIP, h.gateOverride, h.gateLocal, h.gateMask)
	return &Reply{Opcode: opRedirect, Payload: encodeRedirect(addr, ship.Port)}, nil
}

// decodeLoginRequest parses a fixed-layout username/password login
// packet: two NUL-terminated 16-byte fields.
func decodeLoginRequest(payload []byte) (username, password string, err error) {
	if len(payload) < 32 {
		return "", "", fmt.Errorf("login request too short: %d bytes", len(payload))
	}
	return cstr(payload[0:16]), cstr(payload[16:32]), nil
}

func cstr(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}

func encodeRedirect(addr net.IP, port int32) []byte {
	buf := make([]byte, 6)
	v4 := addr.To4()
	if v4 != nil {
		copy(buf[0:4], v4)
	}
	buf[4] = byte(port)
	buf[5] = byte(port >> 8)
	return buf
}

// hashPassword implements spec.md §4.2's salted-MD5 scheme, exposed
// here so repository.go can compare without importing internal/cipher
// in callers that only need the hash.
func hashPassword(password string, regtime int64) string {
	return cipher.HashAccountPassword(password, fmt.Sprintf("%d", regtime))
}
