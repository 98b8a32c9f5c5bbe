package registry

import (
	"net"

	"github.com/saltmarsh-games/battleship-server/pkg/wire"
)

// ConnEvent is one decoded message, or a terminal read error, produced by a
// connection's single reader goroutine. It is delivered to whichever
// channel that connection's User.Events currently points at — the lobby's
// fan-in channel until the user joins a game, then the owning game's.
type ConnEvent struct {
	UserID  uint32
	MsgType uint16
	Payload wire.Payload
	Err     error
}

// User is one admitted connection's session state: the registry's
// realization of spec §3's User{id, username, socket, gameId}.
type User struct {
	Username string
	Conn     net.Conn
	GameID   uint32
	Events   chan ConnEvent
}

// Users is the process-wide user registry.
var Users = New[User]()

// AddUser admits conn into the registry, initially routing its connection
// events to the lobby's fan-in channel events.
func AddUser(conn net.Conn, events chan ConnEvent) (uint32, bool) {
	return Users.Add(User{Conn: conn, Events: events})
}

// GetUserConn returns the net.Conn for id.
func GetUserConn(id uint32) (net.Conn, bool) {
	e, ok := Users.Get(id)
	if !ok {
		return nil, false
	}
	e.Mu.Lock()
	defer e.Mu.Unlock()
	if !e.Occupied {
		return nil, false
	}
	return e.Value.Conn, true
}

// GetUsername returns id's username and whether it has logged in.
func GetUsername(id uint32) (string, bool) {
	e, ok := Users.Get(id)
	if !ok {
		return "", false
	}
	e.Mu.Lock()
	defer e.Mu.Unlock()
	if !e.Occupied || e.Value.Username == "" {
		return "", false
	}
	return e.Value.Username, true
}

// SetUsername records id's username, authenticating the user.
func SetUsername(id uint32, username string) bool {
	e, ok := Users.Get(id)
	if !ok {
		return false
	}
	e.Mu.Lock()
	defer e.Mu.Unlock()
	if !e.Occupied {
		return false
	}
	e.Value.Username = username
	return true
}

// SetUserGameID records which game id now owns the user.
func SetUserGameID(id, gameID uint32) bool {
	e, ok := Users.Get(id)
	if !ok {
		return false
	}
	e.Mu.Lock()
	defer e.Mu.Unlock()
	if !e.Occupied {
		return false
	}
	e.Value.GameID = gameID
	return true
}

// GetUserEvents returns the channel id's reader goroutine currently
// delivers ConnEvents to.
func GetUserEvents(id uint32) (chan ConnEvent, bool) {
	e, ok := Users.Get(id)
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

// RedirectUserEvents changes which channel id's reader goroutine delivers
// to. This is the hand-off primitive: the reader goroutine itself never
// stops or restarts, only its destination changes, preserving the "single
// reader per socket" ordering guarantee across the lobby→game transfer.
func RedirectUserEvents(id uint32, events chan ConnEvent) bool {
	e, ok := Users.Get(id)
	if !ok {
		return false
	}
	e.Mu.Lock()
	defer e.Mu.Unlock()
	if !e.Occupied {
		return false
	}
	e.Value.Events = events
	return true
}

// ReleaseUser clears and frees id's slot.
func ReleaseUser(id uint32) {
	Users.Release(id)
}
