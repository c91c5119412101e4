package shipgate

import "errors"

var (
	errBadProto   = errors.New("shipgate: protocol version out of range")
	errBadKey     = errors.New("shipgate: unknown or malformed shared key index")
	errBadMenu    = errors.New("shipgate: zero menu-code not permitted for this ship")
	errInvalMenu  = errors.New("shipgate: malformed menu-code")
	errNotGM      = errors.New("shipgate: requester lacks GM privilege for this action")
	errBadBanType = errors.New("shipgate: malformed or unrecognized ban request")
)
