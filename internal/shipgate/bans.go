package shipgate

import (
	"context"
	"encoding/binary"
	"fmt"
)

// minGMPrivilegeForBan is spec.md §4.5's "requester must have
// privlevel>2" rule.
const minGMPrivilegeForBan = 2

// decodeGCBan parses a GCBan request: requester guildcard, target
// guildcard, end-timestamp (unix seconds), then a NUL-terminated
// reason tail.
func decodeGCBan(payload []byte) (requester, target int64, end int64, reason string, err error) {
	if len(payload) < 16 {
		return 0, 0, 0, "", fmt.Errorf("GCBan packet too short: %d bytes", len(payload))
	}
	requester = int64(binary.BigEndian.Uint32(payload[0:4]))
	target = int64(binary.BigEndian.Uint32(payload[4:8]))
	end = int64(binary.BigEndian.Uint64(payload[8:16]))
	reason = cstr(payload[16:])
	return requester, target, end, reason, nil
}

// decodeIPBan parses an IPBan request: requester guildcard,
// end-timestamp, a NUL-terminated address, then a NUL-terminated
// reason.
func decodeIPBan(payload []byte) (requester int64, end int64, addr, reason string, err error) {
	if len(payload) < 12 {
		return 0, 0, "", "", fmt.Errorf("IPBan packet too short: %d bytes", len(payload))
	}
	requester = int64(binary.BigEndian.Uint32(payload[0:4]))
	end = int64(binary.BigEndian.Uint64(payload[4:12]))
	rest := payload[12:]
	addrEnd := indexByte(rest, 0)
	if addrEnd < 0 {
		return 0, 0, "", "", fmt.Errorf("IPBan packet missing address terminator")
	}
	addr = string(rest[:addrEnd])
	reason = cstr(rest[addrEnd+1:])
	return requester, end, addr, reason, nil
}

func indexByte(b []byte, c byte) int {
	for i, v := range b {
		if v == c {
			return i
		}
	}
	return -1
}

// handleGCBan implements spec.md §4.5's guildcard-ban flow.
func (s *Server) handleGCBan(ctx context.Context, origin *Ship, payload []byte) {
	requester, target, end, reason, err := decodeGCBan(payload)
	if err != nil {
		s.log.Warn("malformed GCBan packet", "ship", origin.ID, "error", errBadBanType)
		s.reply(origin, opBadBan, nil)
		return
	}

	privileged, err := s.requesterPrivileged(ctx, requester)
	if err != nil {
		s.log.Error("checking ban requester privilege", "requester", requester, "error", err)
		return
	}
	if !privileged {
		s.reply(origin, opNotGM, nil)
		return
	}

	if err := s.bans.IssueGuildcardBan(ctx, target, end, requester, reason); err != nil {
		s.log.Error("issuing guildcard ban", "target", target, "error", err)
		s.reply(origin, opBadBan, nil)
	}
}

// handleIPBan implements spec.md §4.5's IP-ban flow.
func (s *Server) handleIPBan(ctx context.Context, origin *Ship, payload []byte) {
	requester, end, addr, reason, err := decodeIPBan(payload)
	if err != nil {
		s.log.Warn("malformed IPBan packet", "ship", origin.ID, "error", errBadBanType)
		s.reply(origin, opBadBan, nil)
		return
	}

	privileged, err := s.requesterPrivileged(ctx, requester)
	if err != nil {
		s.log.Error("checking ban requester privilege", "requester", requester, "error", err)
		return
	}
	if !privileged {
		s.reply(origin, opNotGM, nil)
		return
	}

	if err := s.bans.IssueIPBan(ctx, addr, end, requester, reason); err != nil {
		s.log.Error("issuing ip ban", "addr", addr, "error", err)
		s.reply(origin, opBadBan, nil)
	}
}

func (s *Server) requesterPrivileged(ctx context.Context, guildcard int64) (bool, error) {
	account, err := s.accounts.ByGuildcard(ctx, guildcard)
	if err != nil {
		return false, err
	}
	if account == nil {
		return false, nil
	}
	return account.PrivLevel > minGMPrivilegeForBan, nil
}
