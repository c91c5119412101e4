package shipgate

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/sylverant/shipfabric/internal/constants"
)

// decodeCData parses a CDATA store request: guildcard, slot, then the
// fixed-size character blob.
func decodeCData(payload []byte) (guildcard int64, slot int16, data []byte, err error) {
	const headerLen = 10
	if len(payload) < headerLen+constants.CharacterDataSize {
		return 0, 0, nil, fmt.Errorf("CDATA packet too short: %d bytes", len(payload))
	}
	guildcard = int64(binary.BigEndian.Uint32(payload[0:4]))
	slot = int16(binary.BigEndian.Uint16(payload[8:10]))
	data = payload[headerLen : headerLen+constants.CharacterDataSize]
	return guildcard, slot, data, nil
}

// decodeCReq parses a CREQ fetch request: guildcard then slot.
func decodeCReq(payload []byte) (guildcard int64, slot int16, err error) {
	if len(payload) < 10 {
		return 0, 0, fmt.Errorf("CREQ packet too short: %d bytes", len(payload))
	}
	return int64(binary.BigEndian.Uint32(payload[0:4])), int16(binary.BigEndian.Uint16(payload[8:10])), nil
}

func encodeCDataReply(guildcard int64, slot int16, data []byte) []byte {
	buf := make([]byte, 10+len(data))
	binary.BigEndian.PutUint32(buf[0:4], uint32(guildcard))
	binary.BigEndian.PutUint16(buf[8:10], uint16(slot))
	copy(buf[10:], data)
	return buf
}

// handleCData implements spec.md §4.5's CDATA store: delete the prior
// backup for (guildcard, slot) then insert the new blob.
func (s *Server) handleCData(ctx context.Context, origin *Ship, payload []byte) {
	guildcard, slot, data, err := decodeCData(payload)
	if err != nil {
		s.log.Warn("malformed CDATA packet", "ship", origin.ID, "error", err)
		return
	}
	if err := s.characters.Store(ctx, guildcard, slot, data); err != nil {
		s.log.Error("storing character backup", "guildcard", guildcard, "slot", slot, "error", err)
	}
}

// handleCReq implements spec.md §4.5's CREQ fetch, replying with
// CDATA_REPLY.
func (s *Server) handleCReq(ctx context.Context, origin *Ship, payload []byte) {
	guildcard, slot, err := decodeCReq(payload)
	if err != nil {
		s.log.Warn("malformed CREQ packet", "ship", origin.ID, "error", err)
		return
	}

	data, err := s.characters.Fetch(ctx, guildcard, slot)
	if err != nil {
		s.log.Error("fetching character backup", "guildcard", guildcard, "slot", slot, "error", err)
		return
	}
	if data == nil {
		data = make([]byte, constants.CharacterDataSize)
	}

	if err := origin.send(opCDataReply, encodeCDataReply(guildcard, slot, data)); err != nil {
		s.log.Warn("sending CDATA_REPLY", "error", err)
	}
}
