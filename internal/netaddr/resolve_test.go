package netaddr

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolve_SharedNAT(t *testing.T) {
	c := net.ParseIP("203.0.113.7")
	e := net.ParseIP("203.0.113.7")
	i := net.ParseIP("10.0.0.10")
	got := Resolve(c, e, i, net.ParseIP("203.0.113.7"), net.ParseIP("10.0.0.1"), net.CIDRMask(24, 32))
	assert.True(t, got.Equal(i))
}

func TestResolve_LANOverride(t *testing.T) {
	c := net.ParseIP("10.0.0.5")
	e := net.ParseIP("203.0.113.7")
	i := net.ParseIP("10.0.0.10")
	o := net.ParseIP("203.0.113.7")
	local := net.ParseIP("10.0.0.1")
	mask := net.CIDRMask(24, 32)

	got := Resolve(c, e, i, o, local, mask)
	assert.True(t, got.Equal(i), "expected internal address %s, got %s", i, got)
}

func TestResolve_PublicClient(t *testing.T) {
	c := net.ParseIP("198.51.100.9")
	e := net.ParseIP("203.0.113.7")
	i := net.ParseIP("10.0.0.10")
	o := net.ParseIP("203.0.113.7")
	local := net.ParseIP("10.0.0.1")
	mask := net.CIDRMask(24, 32)

	got := Resolve(c, e, i, o, local, mask)
	assert.True(t, got.Equal(e), "expected external address %s, got %s", e, got)
}

func TestResolve_Idempotent(t *testing.T) {
	c := net.ParseIP("10.0.0.5")
	e := net.ParseIP("203.0.113.7")
	i := net.ParseIP("10.0.0.10")
	o := net.ParseIP("203.0.113.7")
	local := net.ParseIP("10.0.0.1")
	mask := net.CIDRMask(24, 32)

	once := Resolve(c, e, i, o, local, mask)
	twice := Resolve(c, once, i, o, local, mask)
	assert.True(t, once.Equal(twice))
}

func TestPortForVariant(t *testing.T) {
	assert.Equal(t, 5902, PortForVariant(5900, 2))
}
