package shipgate

import (
	"context"
	"encoding/binary"
	"fmt"
)

// decodeCount parses an opCount payload: player count then game count,
// both BE u32.
func decodeCount(payload []byte) (players, games int32, err error) {
	if len(payload) < 8 {
		return 0, 0, fmt.Errorf("count packet too short: %d bytes", len(payload))
	}
	return int32(binary.BigEndian.Uint32(payload[0:4])), int32(binary.BigEndian.Uint32(payload[4:8])), nil
}

func encodeCount(shipID int64, players, games int32) []byte {
	buf := make([]byte, 12)
	binary.BigEndian.PutUint32(buf[0:4], uint32(shipID))
	binary.BigEndian.PutUint32(buf[4:8], uint32(players))
	binary.BigEndian.PutUint32(buf[8:12], uint32(games))
	return buf
}

// handleCount implements spec.md §4.5's counter-update rule: update the
// ship's counts, persist them, and rebroadcast to the fleet.
func (s *Server) handleCount(ctx context.Context, origin *Ship, payload []byte) {
	players, games, err := decodeCount(payload)
	if err != nil {
		s.log.Warn("malformed count packet", "ship", origin.ID, "error", err)
		return
	}

	s.table.UpdateCounts(origin.ID, players, games)
	origin.Players, origin.Games = players, games

	if err := s.ships.Upsert(ctx, shipRowFor(origin)); err != nil {
		s.log.Error("persisting ship counts", "ship", origin.ID, "error", err)
	}

	for _, errSend := range s.table.Broadcast(opCount, encodeCount(origin.ID, players, games), nil) {
		s.log.Warn("count rebroadcast failed", "error", errSend)
	}
}
