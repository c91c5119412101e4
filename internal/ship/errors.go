package ship

import "errors"

var (
	ErrUnknownOpcode = errors.New("ship: unknown shipgate opcode")
	ErrBadProto      = errors.New("ship: protocol version mismatch")
)
