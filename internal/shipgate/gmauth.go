package shipgate

import (
	"context"
	"crypto/subtle"
	"encoding/binary"
	"fmt"
	"strconv"

	"github.com/sylverant/shipfabric/internal/cipher"
)

// Privilege bits, per spec.md §4.5's sanity checks.
const (
	privLocalGM uint32 = 1 << iota
	privGlobalGM
	privLocalRoot
	privGlobalRoot
)

// decodeGMLogin parses a GMLogin request: guildcard, then fixed
// 16-byte NUL-terminated username and password fields, matching the
// login server's own request layout.
func decodeGMLogin(payload []byte) (guildcard int64, username, password string, err error) {
	if len(payload) < 36 {
		return 0, "", "", fmt.Errorf("GMLogin packet too short: %d bytes", len(payload))
	}
	guildcard = int64(binary.BigEndian.Uint32(payload[0:4]))
	username = cstr(payload[4:20])
	password = cstr(payload[20:36])
	return guildcard, username, password, nil
}

func encodeGMReply(allowed bool, privilege uint32) []byte {
	buf := make([]byte, 5)
	if allowed {
		buf[0] = 1
	}
	binary.BigEndian.PutUint32(buf[1:5], privilege)
	return buf
}

// sanityCheckPrivilege implements spec.md §4.5: global-GM requires
// local-GM; local-root requires global-root and vice versa.
func sanityCheckPrivilege(p uint32) bool {
	if p&privGlobalGM != 0 && p&privLocalGM == 0 {
		return false
	}
	if p&privLocalRoot != 0 && p&privGlobalRoot == 0 {
		return false
	}
	if p&privGlobalRoot != 0 && p&privLocalRoot == 0 {
		return false
	}
	return true
}

// handleGMLogin implements spec.md §4.5's GM-login flow.
func (s *Server) handleGMLogin(ctx context.Context, origin *Ship, payload []byte) {
	guildcard, username, password, err := decodeGMLogin(payload)
	if err != nil {
		s.log.Warn("malformed GMLogin packet", "ship", origin.ID, "error", err)
		return
	}

	account, err := s.accounts.ByGuildcardAndUsername(ctx, guildcard, username)
	if err != nil {
		s.log.Error("looking up GM account", "guildcard", guildcard, "error", err)
		return
	}
	if account == nil {
		s.reply(origin, opGMReply, encodeGMReply(false, 0))
		return
	}

	want := cipher.HashAccountPassword(password, strconv.FormatInt(account.RegTime, 10))
	if subtle.ConstantTimeCompare([]byte(want), []byte(account.Password)) != 1 {
		s.reply(origin, opGMReply, encodeGMReply(false, 0))
		return
	}

	privilege := uint32(account.PrivLevel)
	if !sanityCheckPrivilege(privilege) {
		s.reply(origin, opGMReply, encodeGMReply(false, 0))
		return
	}

	s.reply(origin, opGMReply, encodeGMReply(true, privilege))
}

func (s *Server) reply(origin *Ship, opcode uint16, payload []byte) {
	if err := origin.send(opcode, payload); err != nil {
		s.log.Warn("sending reply", "opcode", opcode, "error", err)
	}
}
