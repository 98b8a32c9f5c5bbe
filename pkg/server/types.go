package server

import (
	"net"

	"github.com/saltmarsh-games/battleship-server/pkg/board"
)

// phase is the game worker's state, realizing spec §3's GameState.phase.
type phase int

const (
	phaseWaitingForPlayers phase = iota
	phaseWaitingFleetSetup
	phaseInProgress
	phaseFinished
)

func (p phase) String() string {
	switch p {
	case phaseWaitingForPlayers:
		return "waiting_for_players"
	case phaseWaitingFleetSetup:
		return "waiting_fleet_setup"
	case phaseInProgress:
		return "in_progress"
	case phaseFinished:
		return "finished"
	default:
		return "unknown"
	}
}

// playerState is the game worker's realization of spec §3's PlayerState.
// It is only ever touched by the goroutine running the owning game's event
// loop, so it carries no mutex of its own.
type playerState struct {
	userID   uint32
	username string
	conn     net.Conn

	board board.Board
	fleet *board.Fleet
}

// hasFleet reports whether the player has committed a fleet.
func (p *playerState) hasFleet() bool {
	return p.fleet != nil
}

// eliminatedSentinel marks a seat in turnOrder as eliminated. Using -1
// rather than removing the slot keeps every other seat's index stable, per
// spec §3's GameState.turnOrder definition.
const eliminatedSentinel = int32(-1)

// gameState is the game worker's realization of spec §3's GameState. It is
// worker-local: nothing outside the owning goroutine reads or writes it.
type gameState struct {
	id      uint32
	name    string
	players []*playerState

	turnOrder []int32
	turnIndex uint32
	phase     phase
}

// findPlayer returns the player with the given user id, or nil.
func (g *gameState) findPlayer(userID uint32) *playerState {
	for _, p := range g.players {
		if p.userID == userID {
			return p
		}
	}
	return nil
}

// removePlayer drops userID from g.players, returning the removed player
// state or nil if it was not present.
func (g *gameState) removePlayer(userID uint32) *playerState {
	for i, p := range g.players {
		if p.userID == userID {
			g.players = append(g.players[:i], g.players[i+1:]...)
			return p
		}
	}
	return nil
}

// currentActor returns the player whose turn it currently is, or nil if no
// living player occupies turnOrder[turnIndex].
func (g *gameState) currentActor() *playerState {
	if g.phase != phaseInProgress || len(g.turnOrder) == 0 {
		return nil
	}
	seat := g.turnOrder[g.turnIndex]
	if seat == eliminatedSentinel {
		return nil
	}
	return g.findPlayer(uint32(seat))
}

// livingCount returns how many seats in turnOrder are not eliminated.
func (g *gameState) livingCount() int {
	n := 0
	for _, seat := range g.turnOrder {
		if seat != eliminatedSentinel {
			n++
		}
	}
	return n
}

// eliminate marks userID's seat in turnOrder as eliminated.
func (g *gameState) eliminate(userID uint32) {
	for i, seat := range g.turnOrder {
		if seat == int32(userID) {
			g.turnOrder[i] = eliminatedSentinel
			return
		}
	}
}

// allFleetsReady reports whether every seated player has committed a fleet.
func (g *gameState) allFleetsReady() bool {
	for _, p := range g.players {
		if !p.hasFleet() {
			return false
		}
	}
	return len(g.players) > 0
}
