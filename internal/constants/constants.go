// Package constants holds protocol-level constants shared across the
// login server, ship server, and shipgate.
package constants

import "time"

// Variant identifies one of the supported client builds. The listen port
// a connection arrives on determines its Variant; this mapping is
// authoritative (see spec Open Questions), not a field inside the login
// packet.
type Variant int

const (
	VariantDCv1 Variant = iota
	VariantDCv2
	VariantPC
	VariantGCUS
	VariantGCEU60
	VariantGCEU50
	VariantGCJP10
	VariantGCJP11
	VariantEp3
)

func (v Variant) String() string {
	switch v {
	case VariantDCv1:
		return "DCv1"
	case VariantDCv2:
		return "DCv2"
	case VariantPC:
		return "PC"
	case VariantGCUS:
		return "GC-US"
	case VariantGCEU60:
		return "GC-EU-60"
	case VariantGCEU50:
		return "GC-EU-50"
	case VariantGCJP10:
		return "GC-JP-1.0"
	case VariantGCJP11:
		return "GC-JP-1.1"
	case VariantEp3:
		return "Episode3"
	default:
		return "unknown"
	}
}

// ParseVariant maps a config string (as written in ship.yaml) to a
// Variant. Unrecognized strings default to VariantGCUS.
func ParseVariant(s string) Variant {
	switch s {
	case "DCv1":
		return VariantDCv1
	case "DCv2":
		return VariantDCv2
	case "PC":
		return VariantPC
	case "GC-US":
		return VariantGCUS
	case "GC-EU-60":
		return VariantGCEU60
	case "GC-EU-50":
		return VariantGCEU50
	case "GC-JP-1.0":
		return VariantGCJP10
	case "GC-JP-1.1":
		return VariantGCJP11
	case "Episode3":
		return VariantEp3
	default:
		return VariantGCUS
	}
}

// IsGameCubeFamily reports whether v uses the GameCube-style stream
// cipher (shared by Episode 3).
func (v Variant) IsGameCubeFamily() bool {
	switch v {
	case VariantGCUS, VariantGCEU60, VariantGCEU50, VariantGCJP10, VariantGCJP11, VariantEp3:
		return true
	default:
		return false
	}
}

// HeaderSize is the wire header size in bytes for ship-facing traffic.
// All supported variants, PC included, use the same 4-byte header layout
// (internal/framing's ClientCodec); there is no separate PC layout.
const HeaderSize = 4

// ShipgateHeaderSize is the envelope header size used on the
// ship<->shipgate link.
const ShipgateHeaderSize = 8

// Login server listen ports, one per variant, plus the web-info port.
const (
	PortGCJP10  = 9000
	PortGCJP11  = 9001
	PortGCUS    = 9100
	PortDCGCEU60 = 9200 // shared by DCv1/DCv2/GC-EU-60
	PortGCEU50  = 9201
	PortPC      = 9300
	PortWebInfo = 10003
)

// Room capacity by type.
const (
	LobbyCapacity = 12
	GameCapacity  = 4
)

// Subcommand opcodes that carry in-room game state. These are the only
// opcodes the burst queue will accept.
const (
	OpGameCmd0 = 0x60
	OpGameCmd2 = 0x62
	OpGameCmdD = 0x6D
)

// DoneBurstSubcommand is the nested subcommand type signalling that a
// bursting client has finished replaying its own state.
const DoneBurstSubcommand = 0x52

// LegitCheckRequestSubcommand is the nested subcommand type the room
// leader sends to request a legit check, per spec.md §4.3. This fabric's
// own process-to-process/in-room subcommand numbering is invented
// rather than reproduced from a client opcode table, same as the
// shipgate's internal wire layouts.
const LegitCheckRequestSubcommand = 0x6C

// Required character level by difficulty, per spec.md §4.3.
var RequiredLevelByDifficulty = [4]int{1, 20, 40, 80}

// DefaultIdleTimeout is the session idle interval (spec.md §5,
// Cancellation & timeouts). Nothing in this repository reads it; sessions
// are not disconnected for being idle.
const DefaultIdleTimeout = 10 * time.Minute

// MaxBlacklistEntries is the number of guildcards a client may silence.
const MaxBlacklistEntries = 30

// CharacterDataSize is the size in bytes of one backed-up character
// blob (spec.md §6 schema, character_data.data[1052]).
const CharacterDataSize = 1052

// ScratchBufferSize is the size of the thread-local read scratch buffer
// spec.md §4.1 describes for the read path.
const ScratchBufferSize = 64 * 1024
