package room

// Registry removes a destroyed room from whatever room list owns it
// (a block's game list, in this fabric). Kept as an interface so
// internal/room never imports internal/ship.
type Registry interface {
	Remove(r *Room)
}

// GameCounter tracks the owning ship's live game count.
type GameCounter interface {
	DecrementGames()
}

// Destroy tears down a game once its last member has left. Default
// lobbies are never destroyed (caller must not invoke this for them).
// The packet queue is drained and its entries released, matching the
// original's "destroy the mutex only after unlocking it exactly once"
// discipline — in Go there is no explicit mutex-destroy step, but
// Destroy still takes the lock exactly once to clear the queue before
// releasing the room to its registry.
func (r *Room) Destroy(registry Registry, counter GameCounter) {
	r.mu.Lock()
	r.queue = nil
	r.mu.Unlock()

	if registry != nil {
		registry.Remove(r)
	}
	if counter != nil {
		counter.DecrementGames()
	}
}
