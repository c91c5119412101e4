package room

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sylverant/shipfabric/internal/constants"
)

// TestBurstAck_OnlyBurstingClientClears covers a room with a
// pre-existing occupant: per spec.md §4.3, done-burst comes from the
// single newly-joined member alone, so a pre-existing occupant's ack
// must not clear Bursting, and must not be required either.
func TestBurstAck_OnlyBurstingClientClears(t *testing.T) {
	game := NewRoom(1, KindGame, 0)
	existing := newTestSession(t)
	require.NoError(t, ChangeRoom(game, game, existing, AdmissionParams{}))

	joiner := newTestSession(t)
	require.NoError(t, ChangeRoom(game, game, joiner, AdmissionParams{}))
	game.BeginBurst(joiner)

	assert.False(t, game.BurstAck(existing), "a pre-existing occupant's ack must not clear bursting")
	assert.True(t, game.HasFlag(FlagBursting))

	assert.True(t, game.BurstAck(joiner), "the bursting client's own ack must clear bursting")
}

func TestBurstQueue_DrainInOrder(t *testing.T) {
	game := NewRoom(1, KindGame, 0)
	src := newTestSession(t)
	game.BeginBurst(src)

	require.NoError(t, game.EnqueueDuringBurst(src, constants.OpGameCmd0, []byte("A")))
	require.NoError(t, game.EnqueueDuringBurst(src, constants.OpGameCmd0, []byte("B")))
	require.NoError(t, game.EnqueueDuringBurst(src, constants.OpGameCmd0, []byte("C")))
	assert.Equal(t, 3, game.QueueLen())

	var order []string
	err := game.DrainBurst(func(entry PacketEntry) error {
		order = append(order, string(entry.Payload))
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B", "C"}, order)
	assert.Equal(t, 0, game.QueueLen())
	assert.False(t, game.HasFlag(FlagBursting))
}

func TestBurstQueue_RejectsWhenNotBursting(t *testing.T) {
	game := NewRoom(1, KindGame, 0)
	src := newTestSession(t)
	err := game.EnqueueDuringBurst(src, constants.OpGameCmd0, []byte("x"))
	assert.ErrorIs(t, err, ErrBusyBurst)
}

func TestBurstQueue_RejectsUnexpectedOpcode(t *testing.T) {
	game := NewRoom(1, KindGame, 0)
	src := newTestSession(t)
	game.BeginBurst(src)
	err := game.EnqueueDuringBurst(src, 0x06, []byte("chat"))
	assert.ErrorIs(t, err, ErrUnexpectedDuringBurst)
}

func TestBurstQueue_DrainFreesRemainingOnFailure(t *testing.T) {
	game := NewRoom(1, KindGame, 0)
	src := newTestSession(t)
	game.BeginBurst(src)
	require.NoError(t, game.EnqueueDuringBurst(src, constants.OpGameCmd0, []byte("A")))
	require.NoError(t, game.EnqueueDuringBurst(src, constants.OpGameCmd0, []byte("B")))
	require.NoError(t, game.EnqueueDuringBurst(src, constants.OpGameCmd0, []byte("C")))

	calls := 0
	err := game.DrainBurst(func(entry PacketEntry) error {
		calls++
		if string(entry.Payload) == "A" {
			return assert.AnError
		}
		return nil
	})
	assert.Error(t, err)
	assert.Equal(t, 1, calls, "dispatch stops being invoked after the first failure")
	assert.Equal(t, 0, game.QueueLen(), "queue must still be fully drained even though dispatch aborted")
}
