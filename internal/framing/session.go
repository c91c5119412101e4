package framing

import (
	"net"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sylverant/shipfabric/internal/cipher"
	"github.com/sylverant/shipfabric/internal/constants"
)

// PrivilegeBits are the client privilege flags of spec.md §3.
type PrivilegeBits uint32

const (
	PrivilegeLocalGM PrivilegeBits = 1 << iota
	PrivilegeGlobalGM
	PrivilegeLocalRoot
	PrivilegeGlobalRoot
)

// Flags are the per-session state flags of spec.md §3.
type Flags uint32

const (
	FlagHeaderReadInProgress Flags = 1 << iota
	FlagDisconnected
	FlagBursting
	FlagSentMOTD
	FlagLoggedIn
	FlagShowDCPCOnGC
	FlagTypeShip // marks lobby/block connections; nothing in this repository sets it
)

// Session is an authenticated (or pre-authenticated) stream to one game
// instance, per spec.md §3. The connection-handling goroutine that
// accepted the socket exclusively owns the Session; internal/room holds
// only a non-owning reference (stored via SetRoom/Room as `any` to avoid
// an import cycle between internal/framing and internal/room).
type Session struct {
	ID      string
	Conn    net.Conn
	Variant constants.Variant
	Codec   HeaderCodec

	ClientCipher cipher.StreamCipher
	ServerCipher cipher.StreamCipher

	RemoteAddr net.IP

	mu          sync.Mutex
	guildcard   uint32
	privilege   PrivilegeBits
	flags       Flags
	language    uint8
	room        any // concrete type *room.Room, set by internal/room
	blockID     int
	playerRef   any // opaque player record, block sessions only

	send RingBuffer

	autoreply   string
	blacklist   [constants.MaxBlacklistEntries]uint32
	ignore      map[uint32]struct{}
	itemCounter int

	lastMessage time.Time
	joinTime    time.Time

	PacketLog func([]byte)
}

// NewSession wraps an accepted connection.
func NewSession(conn net.Conn, variant constants.Variant, codec HeaderCodec) *Session {
	return &Session{
		ID:          uuid.New().String(),
		Conn:        conn,
		Variant:     variant,
		Codec:       codec,
		ignore:      make(map[uint32]struct{}),
		lastMessage: time.Now(),
	}
}

func (s *Session) Guildcard() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.guildcard
}

func (s *Session) SetGuildcard(gc uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.guildcard = gc
}

func (s *Session) Privilege() PrivilegeBits {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.privilege
}

func (s *Session) SetPrivilege(p PrivilegeBits) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.privilege = p
}

func (s *Session) Flags() Flags {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flags
}

func (s *Session) SetFlag(f Flags) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flags |= f
}

func (s *Session) ClearFlag(f Flags) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flags &^= f
}

func (s *Session) HasFlag(f Flags) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flags&f != 0
}

func (s *Session) Room() any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.room
}

func (s *Session) SetRoom(r any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.room = r
}

func (s *Session) PlayerRef() any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.playerRef
}

func (s *Session) SetPlayerRef(p any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.playerRef = p
}

func (s *Session) Autoreply() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.autoreply
}

func (s *Session) SetAutoreply(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.autoreply = msg
}

// Blacklisted reports whether gc is on this session's 30-slot blacklist.
func (s *Session) Blacklisted(gc uint32) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, v := range s.blacklist {
		if v == gc {
			return true
		}
	}
	return false
}

// SetBlacklist replaces the 30-slot blacklist wholesale (as sent by the
// client in one packet).
func (s *Session) SetBlacklist(list [constants.MaxBlacklistEntries]uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blacklist = list
}

// Ignoring reports whether gc is on this session's ignore list.
func (s *Session) Ignoring(gc uint32) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.ignore[gc]
	return ok
}

func (s *Session) SetIgnore(gc uint32, ignore bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ignore {
		s.ignore[gc] = struct{}{}
	} else {
		delete(s.ignore, gc)
	}
}

func (s *Session) Touch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastMessage = time.Now()
}

func (s *Session) LastMessage() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastMessage
}

func (s *Session) IdleFor(now time.Time) time.Duration {
	return now.Sub(s.LastMessage())
}

func (s *Session) SetJoinTime(t time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.joinTime = t
}

func (s *Session) JoinTime() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.joinTime
}

// Disconnect marks the session for harvest at end-of-tick, per spec.md §5.
func (s *Session) Disconnect() {
	s.SetFlag(FlagDisconnected)
}

func (s *Session) Disconnected() bool {
	return s.HasFlag(FlagDisconnected)
}

// Send queues an already-framed packet onto the session's send buffer
// and flushes it. A blocking Write is acceptable here: spec.md's
// non-blocking send-buffer discipline exists to avoid one slow client
// stalling a select() loop shared by many sockets, but with
// goroutine-per-connection that isolation is already provided by the Go
// scheduler.
func (s *Session) Send(frame []byte) error {
	s.mu.Lock()
	s.send.Append(frame)
	pending := append([]byte(nil), s.send.Pending()...)
	s.send.Advance(len(pending))
	s.mu.Unlock()

	if s.PacketLog != nil {
		s.PacketLog(frame)
	}

	_, err := s.Conn.Write(pending)
	return err
}
