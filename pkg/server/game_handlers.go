package server

import (
	"time"

	"github.com/saltmarsh-games/battleship-server/pkg/board"
	"github.com/saltmarsh-games/battleship-server/pkg/registry"
	"github.com/saltmarsh-games/battleship-server/pkg/wire"
)

// handleClientEvent is the client wake-up handler of spec §4.5 step 4.
func (g *gameWorker) handleClientEvent(ev registry.ConnEvent, resetTimer func(time.Duration)) {
	p := g.state.findPlayer(ev.UserID)
	if p == nil {
		return
	}
	if ev.Err != nil {
		g.cleanupClient(p, resetTimer)
		return
	}

	switch ev.MsgType {
	case wire.MsgReadyToPlay:
		g.handleReadyToPlay(p, resetTimer)
	case wire.MsgSetupFleet:
		g.handleSetupFleet(p, ev.Payload, resetTimer)
	case wire.MsgStartGame:
		g.handleStartGame(p, resetTimer)
	case wire.MsgAttack:
		g.handleAttack(p, ev.Payload, resetTimer)
	case wire.MsgLeaveGame:
		// §9 Open Question: MSG_LEAVE_GAME is equivalent to a clean
		// disconnect from the client side.
		g.cleanupClient(p, resetTimer)
	default:
		g.sendError(p, wire.MsgErrorUnexpectedMessage)
	}
}

// handleReadyToPlay implements the table row for MSG_READY_TO_PLAY: it is
// legal in any phase.
func (g *gameWorker) handleReadyToPlay(p *playerState, resetTimer func(time.Duration)) {
	g.sendGameStateUpdate(p, resetTimer)
	g.broadcastPlayerJoined(p, resetTimer)
}

// handleSetupFleet implements the table row for MSG_SETUP_FLEET.
func (g *gameWorker) handleSetupFleet(p *playerState, payload wire.Payload, resetTimer func(time.Duration)) {
	if g.state.phase != phaseWaitingForPlayers && g.state.phase != phaseWaitingFleetSetup {
		g.sendError(p, wire.MsgErrorUnexpectedMessage)
		return
	}

	ships, ok := parseFleetSetup(payload)
	if !ok {
		p.board = board.New()
		p.fleet = nil
		g.sendError(p, wire.MsgErrorMalformedMessage)
		return
	}

	newBoard, fleet, err := board.NewFleet(ships)
	if err != nil {
		p.board = board.New()
		p.fleet = nil
		g.sendError(p, wire.MsgErrorPlayerAction)
		return
	}

	p.board = newBoard
	p.fleet = fleet

	if g.state.phase == phaseWaitingFleetSetup && g.state.allFleetsReady() {
		g.state.phase = phaseInProgress
		if len(g.state.turnOrder) == 0 {
			g.generateTurnOrder()
		}
		g.broadcastGameStarted(resetTimer)
		g.startTurn(resetTimer)
	}
}

// parseFleetSetup decodes the five {dim,vertical,x,y} records required by
// MSG_SETUP_FLEET's payload schema (spec §6).
func parseFleetSetup(payload wire.Payload) ([]board.Ship, bool) {
	if payload.RecordCount() != board.NumShips {
		return nil, false
	}
	ships := make([]board.Ship, board.NumShips)
	for i := 0; i < board.NumShips; i++ {
		dim, ok := payload.Int(i, "dim")
		if !ok {
			return nil, false
		}
		vertical, ok := payload.Int(i, "vertical")
		if !ok {
			return nil, false
		}
		x, ok := payload.Int(i, "x")
		if !ok {
			return nil, false
		}
		y, ok := payload.Int(i, "y")
		if !ok {
			return nil, false
		}
		ships[i] = board.Ship{Dim: dim, Vertical: vertical != 0, X: x, Y: y}
	}
	return ships, true
}

// handleStartGame implements the table row for MSG_START_GAME.
func (g *gameWorker) handleStartGame(p *playerState, resetTimer func(time.Duration)) {
	if g.state.phase != phaseWaitingForPlayers {
		g.sendError(p, wire.MsgErrorPlayerAction)
		return
	}
	if owner, ok := registry.GetGameOwner(g.state.id); !ok || owner != p.userID {
		g.sendError(p, wire.MsgErrorPlayerAction)
		return
	}

	registry.SetGameStarted(g.state.id, true)

	if g.state.allFleetsReady() {
		g.state.phase = phaseInProgress
		g.generateTurnOrder()
		g.broadcastGameStarted(resetTimer)
		g.startTurn(resetTimer)
		return
	}

	g.state.phase = phaseWaitingFleetSetup
	resetTimer(fleetSetupTimeout)
}

// handleAttack implements the table row for MSG_ATTACK.
func (g *gameWorker) handleAttack(p *playerState, payload wire.Payload, resetTimer func(time.Duration)) {
	if g.state.phase != phaseInProgress {
		g.sendError(p, wire.MsgErrorNotYourTurn)
		return
	}
	actor := g.state.currentActor()
	if actor == nil || actor.userID != p.userID {
		g.sendError(p, wire.MsgErrorNotYourTurn)
		return
	}

	targetID, ok := payload.Int(0, "player_id")
	x, okX := payload.Int(0, "x")
	y, okY := payload.Int(0, "y")
	if !ok || !okX || !okY {
		g.sendError(p, wire.MsgErrorMalformedMessage)
		return
	}

	target := g.state.findPlayer(uint32(targetID))
	if target == nil || target.userID == p.userID {
		g.sendError(p, wire.MsgErrorPlayerAction)
		return
	}

	result, err := board.Attack(&target.board, target.fleet, x, y)
	if err != nil {
		g.sendError(p, wire.MsgErrorPlayerAction)
		return
	}

	g.broadcastAttackUpdate(p.userID, target.userID, x, y, result.String(), resetTimer)

	if result == board.ResultSunk && target.fleet.AllSunk() {
		g.state.eliminate(target.userID)
		if g.state.livingCount() <= 1 {
			winner := g.state.currentActorAfterElimination()
			g.state.phase = phaseFinished
			if winner != nil {
				g.broadcastGameFinished(winner.userID, resetTimer)
			}
			return
		}
	}

	g.advanceTurn(resetTimer)
}

// advanceTurn implements spec §4.5's turn advancement: increment turnIndex
// modulo len(turnOrder) until it lands on a non-eliminated seat.
func (g *gameWorker) advanceTurn(resetTimer func(time.Duration)) {
	if len(g.state.turnOrder) == 0 {
		return
	}
	n := uint32(len(g.state.turnOrder))
	for i := uint32(0); i < n; i++ {
		g.state.turnIndex = (g.state.turnIndex + 1) % n
		if g.state.turnOrder[g.state.turnIndex] != eliminatedSentinel {
			break
		}
	}
	g.announceTurn(resetTimer)
}

// startTurn announces turnIndex 0 as the opening turn right after turn
// order generation, without the pre-increment advanceTurn does on every
// later call.
func (g *gameWorker) startTurn(resetTimer func(time.Duration)) {
	if len(g.state.turnOrder) == 0 {
		return
	}
	if g.state.turnOrder[g.state.turnIndex] == eliminatedSentinel {
		g.advanceTurn(resetTimer)
		return
	}
	g.announceTurn(resetTimer)
}

func (g *gameWorker) announceTurn(resetTimer func(time.Duration)) {
	actor := g.state.currentActor()
	if actor != nil {
		g.sendYourTurn(actor, resetTimer)
	}
	g.broadcastTurnOrderUpdate(actorUserID(actor), resetTimer)
	resetTimer(turnTimeout)
}

func actorUserID(p *playerState) uint32 {
	if p == nil {
		return 0
	}
	return p.userID
}

// currentActorAfterElimination returns the sole remaining living player,
// used to determine the winner when livingCount drops to 1.
func (g *gameState) currentActorAfterElimination() *playerState {
	for _, seat := range g.turnOrder {
		if seat == eliminatedSentinel {
			continue
		}
		return g.findPlayer(uint32(seat))
	}
	return nil
}

// cleanupClient is the cleanup path of spec §4.5c.
func (g *gameWorker) cleanupClient(p *playerState, resetTimer func(time.Duration)) {
	if p.conn != nil {
		p.conn.Close()
	}
	g.state.eliminate(p.userID)
	registry.ReleaseUser(p.userID)
	g.state.removePlayer(p.userID)
	g.broadcastPlayerLeft(p.userID, resetTimer)
	g.logger.Infow("player left game", "user_id", p.userID)

	if len(g.state.players) == 0 {
		g.state.phase = phaseFinished
	}
}
