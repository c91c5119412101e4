package shipgate

import (
	"encoding/binary"
	"fmt"
)

// Inner opcodes carried inside a Fwd envelope, routed by the policy
// table of spec.md §4.5.
const (
	innerGuildSearch  = 0x0040
	innerSimpleMail   = 0x0081
	innerDCGuildReply = 0x00C9
)

// forwardEnvelope is the decoded payload of an opFwdDC/opFwdPC packet:
// the origin ship id, a routing opcode abstracting over the inner
// client packet's real opcode, a unicast target (meaningful only for
// innerDCGuildReply), and the inner packet bytes to relay verbatim.
type forwardEnvelope struct {
	originShipID int64
	innerOpcode  uint16
	targetShipID int64
	inner        []byte
}

func decodeForwardEnvelope(payload []byte) (forwardEnvelope, error) {
	if len(payload) < 8 {
		return forwardEnvelope{}, fmt.Errorf("forward envelope too short: %d bytes", len(payload))
	}
	return forwardEnvelope{
		originShipID: int64(binary.BigEndian.Uint32(payload[0:4])),
		innerOpcode:  binary.BigEndian.Uint16(payload[4:6]),
		targetShipID: int64(binary.BigEndian.Uint16(payload[6:8])),
		inner:        payload[8:],
	}, nil
}

func encodeForwardEnvelope(env forwardEnvelope) []byte {
	buf := make([]byte, 8+len(env.inner))
	binary.BigEndian.PutUint32(buf[0:4], uint32(env.originShipID))
	binary.BigEndian.PutUint16(buf[4:6], env.innerOpcode)
	binary.BigEndian.PutUint16(buf[6:8], uint16(env.targetShipID))
	copy(buf[8:], env.inner)
	return buf
}

// dispatchForward implements spec.md §4.5's forwarded-packet policy
// table: GuildSearch and SimpleMail fan out to every ship with its
// Proxy flag clear except the origin; DCGuildReply unicasts to the
// named ship; anything else draws an UnknownOpcode warning back to the
// sender.
func (s *Server) dispatchForward(origin *Ship, opcode uint16, payload []byte) {
	env, err := decodeForwardEnvelope(payload)
	if err != nil {
		s.log.Warn("malformed forward envelope", "ship", origin.ID, "error", err)
		return
	}
	env.originShipID = origin.ID

	switch env.innerOpcode {
	case innerGuildSearch, innerSimpleMail:
		out := encodeForwardEnvelope(env)
		for _, errSend := range s.table.broadcastNonProxy(opcode, out, origin) {
			s.log.Warn("forward fan-out failed", "error", errSend)
		}
	case innerDCGuildReply:
		target, ok := s.table.ByID(env.targetShipID)
		if !ok {
			s.log.Warn("DCGuildReply target ship not online", "target", env.targetShipID)
			return
		}
		if err := target.send(opcode, encodeForwardEnvelope(env)); err != nil {
			s.log.Warn("DCGuildReply unicast failed", "error", err)
		}
	default:
		if err := origin.send(opUnknownOpcode, nil); err != nil {
			s.log.Warn("sending UnknownOpcode warning", "error", err)
		}
	}
}

// Broadcast filtered to ships with Proxy clear lives alongside
// ShipTable.Broadcast; GuildSearch/SimpleMail additionally need that
// filter, applied here rather than in shiptable.go so the table stays
// policy-agnostic.
func (t *ShipTable) broadcastNonProxy(opcode uint16, payload []byte, skip *Ship) []error {
	var errs []error
	for _, sh := range t.All() {
		if skip != nil && sh.ID == skip.ID {
			continue
		}
		if sh.Proxy {
			continue
		}
		if err := sh.send(opcode, payload); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}
