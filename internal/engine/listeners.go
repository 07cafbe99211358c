package engine

// Subscription is the handle returned by Subscribe. Unsubscribe is
// idempotent: calling it more than once, or after engine shutdown, is safe.
type Subscription struct {
	engine *Engine
	id     int
}

// Unsubscribe removes the listener. Safe to call multiple times.
func (s *Subscription) Unsubscribe() {
	if s.engine == nil {
		return
	}
	s.engine.mu.Lock()
	delete(s.engine.listeners, s.id)
	s.engine.mu.Unlock()
	s.engine = nil
}

// Subscribe registers an in-process listener that receives a Snapshot on
// every meaningful state change. Listeners are invoked synchronously on the
// engine's owner path and must not call back into the engine.
func (e *Engine) Subscribe(fn func(Snapshot)) *Subscription {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.nextListener++
	id := e.nextListener
	e.listeners[id] = fn

	return &Subscription{engine: e, id: id}
}

// notifyLocked pushes the current snapshot to the surface and to all
// listeners. Callers hold the engine mutex.
func (e *Engine) notifyLocked() {
	snap := e.snapshotLocked()
	if e.surface != nil {
		e.surface.Update(snap)
	}
	for _, fn := range e.listeners {
		fn(snap)
	}
}

func (e *Engine) snapshotLocked() Snapshot {
	snap := Snapshot{
		State: e.state,
		Fatal: e.fatal,
		Show:  e.show,
		Match: e.match,
	}
	if e.source != nil {
		snap.Station = e.source.Station
		snap.Episode = e.source.Episode
	}
	if e.source.IsEpisode() && e.player != nil {
		snap.Position = e.player.Position()
		if dur, ok := e.player.Duration(); ok {
			snap.Duration = dur
		}
	}
	return snap
}

// Snapshot returns the engine's current externally visible state.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked()
}
