package registry

// Game is the registry's realization of spec §3's
// Game{id, name, ownerId, players, pipeWriteEnd, started}. Pipe carries
// user ids from the lobby to the owning game worker, replacing the POSIX
// pipe of file descriptors with a buffered Go channel (see SPEC_FULL §4.3).
type Game struct {
	Name    string
	OwnerID uint32
	Players []uint32
	Pipe    chan uint32
	Events  chan ConnEvent
	Started bool
}

// Games is the process-wide game registry.
var Games = New[Game]()

// AddGame registers a new game owned by ownerID, writing down pipe and the
// game worker's event channel (so the lobby can redirect a joining user's
// reader synchronously, before replying, with no hand-off race).
func AddGame(name string, ownerID uint32, pipe chan uint32, events chan ConnEvent) (uint32, bool) {
	return Games.Add(Game{Name: name, OwnerID: ownerID, Pipe: pipe, Events: events})
}

// GetGameEvents returns the channel id's game worker reads ConnEvents from.
func GetGameEvents(id uint32) (chan ConnEvent, bool) {
	e, ok := Games.Get(id)
	if !ok {
		return nil, false
	}
	e.Mu.Lock()
	defer e.Mu.Unlock()
	if !e.Occupied {
		return nil, false
	}
	return e.Value.Events, true
}

// GetGameName returns id's display name.
func GetGameName(id uint32) (string, bool) {
	e, ok := Games.Get(id)
	if !ok {
		return "", false
	}
	e.Mu.Lock()
	defer e.Mu.Unlock()
	if !e.Occupied {
		return "", false
	}
	return e.Value.Name, true
}

// GetGameOwner returns id's owner user id.
func GetGameOwner(id uint32) (uint32, bool) {
	e, ok := Games.Get(id)
	if !ok {
		return 0, false
	}
	e.Mu.Lock()
	defer e.Mu.Unlock()
	if !e.Occupied {
		return 0, false
	}
	return e.Value.OwnerID, true
}

// GetGamePipe returns the channel the lobby uses to hand user ids to id's
// game worker.
func GetGamePipe(id uint32) (chan uint32, bool) {
	e, ok := Games.Get(id)
	if !ok {
		return nil, false
	}
	e.Mu.Lock()
	defer e.Mu.Unlock()
	if !e.Occupied {
		return nil, false
	}
	return e.Value.Pipe, true
}

// IsGameStarted reports whether id has already been marked started.
func IsGameStarted(id uint32) bool {
	e, ok := Games.Get(id)
	if !ok {
		return false
	}
	e.Mu.Lock()
	defer e.Mu.Unlock()
	return e.Occupied && e.Value.Started
}

// SetGameStarted marks id as started (no more lobby joiners).
func SetGameStarted(id uint32, started bool) bool {
	e, ok := Games.Get(id)
	if !ok {
		return false
	}
	e.Mu.Lock()
	defer e.Mu.Unlock()
	if !e.Occupied {
		return false
	}
	e.Value.Started = started
	return true
}

// AddGamePlayer appends userID to id's player list.
func AddGamePlayer(id, userID uint32) bool {
	e, ok := Games.Get(id)
	if !ok {
		return false
	}
	e.Mu.Lock()
	defer e.Mu.Unlock()
	if !e.Occupied {
		return false
	}
	e.Value.Players = append(e.Value.Players, userID)
	return true
}

// RemoveGamePlayer removes userID from id's player list, returning the
// number of players remaining.
func RemoveGamePlayer(id, userID uint32) (remaining int, ok bool) {
	e, ok2 := Games.Get(id)
	if !ok2 {
		return 0, false
	}
	e.Mu.Lock()
	defer e.Mu.Unlock()
	if !e.Occupied {
		return 0, false
	}
	for i, p := range e.Value.Players {
		if p == userID {
			e.Value.Players = append(e.Value.Players[:i], e.Value.Players[i+1:]...)
			break
		}
	}
	return len(e.Value.Players), true
}

// ReleaseGame clears and frees id's slot.
func ReleaseGame(id uint32) {
	Games.Release(id)
}
