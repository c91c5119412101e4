package shipgate

// Wire opcodes for the ship<->shipgate envelope, per spec.md §4.5.
const (
	opWelcome = 0x01
	opLogin   = 0x02

	opStatus = 0x10 // ship added/removed, broadcast to the fleet

	opFwdDC = 0x20
	opFwdPC = 0x21

	opCount = 0x30

	opCData      = 0x40
	opCReq       = 0x41
	opCDataReply = 0x42

	opGMLogin = 0x50
	opGMReply = 0x51

	opGCBan  = 0x60
	opIPBan  = 0x61
	opNotGM  = 0x62
	opBadBan = 0x63

	opPing = 0x70
	opPong = 0x71

	opBadProto      = 0x80
	opBadKey        = 0x81
	opBadMenu       = 0x82
	opInvalMenu     = 0x83
	opUnknownOpcode = 0x8F
)

// statusKind distinguishes the two payload shapes opStatus carries.
const (
	statusAdd byte = iota
	statusRemove
)
