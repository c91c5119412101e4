// Package netaddr implements the address-selection rule of spec.md
// §4.5, shared by the shipgate (answering ship-list queries) and the
// login server (redirecting a client to a ship).
package netaddr

import "net"

// Resolve picks which of a ship's two addresses (external E, internal I)
// to hand to a client arriving from address c, given the shipgate's
// configured override o and its own local address/netmask (local, mask):
//
//   - c == e: client and ship share a public NAT, return i.
//   - e == o and (c & mask) == (local & mask): client is on the
//     shipgate's LAN and the ship's external address is the shipgate's
//     own public address, so the ship is on the same LAN too; return i.
//   - otherwise return e.
func Resolve(c, e, i, o, local net.IP, mask net.IPMask) net.IP {
	c4, e4, i4, o4, local4 := c.To4(), e.To4(), i.To4(), o.To4(), local.To4()

	if c4 != nil && e4 != nil && c4.Equal(e4) {
		return i
	}

	if e4 != nil && o4 != nil && e4.Equal(o4) && c4 != nil && local4 != nil {
		if sameNetwork(c4, local4, mask) {
			return i
		}
	}

	return e
}

func sameNetwork(a, b net.IP, mask net.IPMask) bool {
	if len(mask) == 0 || len(a) != len(b) {
		return false
	}
	for i := range a {
		m := byte(0xFF)
		if i < len(mask) {
			m = mask[i]
		}
		if a[i]&m != b[i]&m {
			return false
		}
	}
	return true
}

// PortForVariant adds the client's variant index to the ship's
// configured base port, per spec.md §4.5.
func PortForVariant(base, variantIndex int) int {
	return base + variantIndex
}
