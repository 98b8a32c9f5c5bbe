package server

import (
	"strconv"
	"time"

	"github.com/saltmarsh-games/battleship-server/pkg/wire"
)

// broadcast sends msgType/p to every seated player. A player whose write
// fails is taken down the cleanup path right away; the broadcast carries on
// to the remaining players.
func (g *gameWorker) broadcast(msgType uint16, p wire.Payload, resetTimer func(d time.Duration)) {
	for _, p2 := range append([]*playerState(nil), g.state.players...) {
		if err := wire.Send(p2.conn, msgType, p); err != nil {
			g.cleanupClient(p2, resetTimer)
		}
	}
}

// sendTo sends msgType/p to one player, running the cleanup path on error.
func (g *gameWorker) sendTo(p *playerState, msgType uint16, payload wire.Payload, resetTimer func(d time.Duration)) {
	if err := wire.Send(p.conn, msgType, payload); err != nil {
		g.cleanupClient(p, resetTimer)
	}
}

// sendError sends one of the MSG_ERROR_* replies to p without closing it.
func (g *gameWorker) sendError(p *playerState, msgType uint16) {
	wire.Send(p.conn, msgType, nil)
}

func (g *gameWorker) broadcastPlayerJoined(joined *playerState, resetTimer func(d time.Duration)) {
	var payload wire.Payload
	payload.Set("player_id", strconv.FormatUint(uint64(joined.userID), 10))
	payload.Set("username", joined.username)
	for _, p := range append([]*playerState(nil), g.state.players...) {
		if p.userID == joined.userID {
			continue
		}
		g.sendTo(p, wire.MsgPlayerJoined, payload, resetTimer)
	}
}

func (g *gameWorker) broadcastPlayerLeft(userID uint32, resetTimer func(d time.Duration)) {
	var payload wire.Payload
	payload.Set("player_id", strconv.FormatUint(uint64(userID), 10))
	g.broadcast(wire.MsgPlayerLeft, payload, resetTimer)
}

// sendGameStateUpdate replies to MSG_READY_TO_PLAY with record 0 describing
// the game and one player_info record per already-present player, per the
// payload schema in spec §6.
func (g *gameWorker) sendGameStateUpdate(p *playerState, resetTimer func(d time.Duration)) {
	var payload wire.Payload
	info := payload.AppendRecord()
	info.Set("type", "game_info")
	info.Set("game_id", strconv.FormatUint(uint64(g.state.id), 10))
	info.Set("game_name", g.state.name)

	for _, other := range g.state.players {
		if other.userID == p.userID {
			continue
		}
		rec := payload.AppendRecord()
		rec.Set("type", "player_info")
		rec.Set("player_id", strconv.FormatUint(uint64(other.userID), 10))
		rec.Set("username", other.username)
	}

	g.sendTo(p, wire.MsgGameStateUpdate, payload, resetTimer)
}

// broadcastGameStarted sends one record per seat, in turn order, per the
// payload schema in spec §6.
func (g *gameWorker) broadcastGameStarted(resetTimer func(d time.Duration)) {
	var payload wire.Payload
	for _, seat := range g.state.turnOrder {
		rec := payload.AppendRecord()
		rec.Set("player_id", strconv.FormatUint(uint64(uint32(seat)), 10))
	}
	g.broadcast(wire.MsgGameStarted, payload, resetTimer)
}

func (g *gameWorker) sendYourTurn(p *playerState, resetTimer func(d time.Duration)) {
	g.sendTo(p, wire.MsgYourTurn, nil, resetTimer)
}

func (g *gameWorker) broadcastTurnOrderUpdate(except uint32, resetTimer func(d time.Duration)) {
	var payload wire.Payload
	payload.Set("player_turn", strconv.FormatUint(uint64(g.state.turnIndex), 10))
	for _, p := range append([]*playerState(nil), g.state.players...) {
		if p.userID == except {
			continue
		}
		g.sendTo(p, wire.MsgTurnOrderUpdate, payload, resetTimer)
	}
}

func (g *gameWorker) broadcastAttackUpdate(attackerID, attackedID uint32, x, y int, result string, resetTimer func(d time.Duration)) {
	var payload wire.Payload
	payload.Set("attacker_id", strconv.FormatUint(uint64(attackerID), 10))
	payload.Set("attacked_id", strconv.FormatUint(uint64(attackedID), 10))
	payload.Set("x", strconv.Itoa(x))
	payload.Set("y", strconv.Itoa(y))
	payload.Set("result", result)
	g.broadcast(wire.MsgAttackUpdate, payload, resetTimer)
}

func (g *gameWorker) broadcastGameFinished(winnerID uint32, resetTimer func(d time.Duration)) {
	var payload wire.Payload
	payload.Set("winner_id", strconv.FormatUint(uint64(winnerID), 10))
	g.broadcast(wire.MsgGameFinished, payload, resetTimer)
}
