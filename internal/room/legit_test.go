package room

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeNotifier struct {
	roomMsgs   []string
	leaderMsgs []string
}

func (f *fakeNotifier) NotifyRoom(r *Room, message string)   { f.roomMsgs = append(f.roomMsgs, message) }
func (f *fakeNotifier) NotifyLeader(r *Room, message string) { f.leaderMsgs = append(f.leaderMsgs, message) }

func TestLegitCheck_AllPassSetsLegitMode(t *testing.T) {
	game := NewRoom(1, KindGame, 0)
	a := newTestSession(t)
	b := newTestSession(t)
	require.NoError(t, ChangeRoom(game, game, a, AdmissionParams{}))
	require.NoError(t, ChangeRoom(game, game, b, AdmissionParams{}))

	game.BeginLegitCheck()
	assert.True(t, game.HasFlag(FlagLegitCheckInProgress))
	game.RecordLegitResult(true)
	game.RecordLegitResult(true)

	notify := &fakeNotifier{}
	game.FinishLegitCheck(notify)

	assert.False(t, game.HasFlag(FlagLegitCheckInProgress))
	assert.True(t, game.HasFlag(FlagLegitMode))
	assert.Equal(t, []string{"Legit check passed."}, notify.roomMsgs)
	assert.Empty(t, notify.leaderMsgs)
}

func TestLegitCheck_AnyFailureNotifiesLeaderOnly(t *testing.T) {
	game := NewRoom(1, KindGame, 0)
	a := newTestSession(t)
	b := newTestSession(t)
	require.NoError(t, ChangeRoom(game, game, a, AdmissionParams{}))
	require.NoError(t, ChangeRoom(game, game, b, AdmissionParams{}))

	game.BeginLegitCheck()
	game.RecordLegitResult(true)
	game.RecordLegitResult(false)

	notify := &fakeNotifier{}
	game.FinishLegitCheck(notify)

	assert.False(t, game.HasFlag(FlagLegitMode))
	assert.False(t, game.HasFlag(FlagTempUnavailable))
	assert.Empty(t, notify.roomMsgs)
	assert.Equal(t, []string{"Legit check failed."}, notify.leaderMsgs)
}
