package server

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"

	"github.com/saltmarsh-games/battleship-server/pkg/registry"
)

const (
	fleetSetupTimeout = 120 * time.Second
	turnTimeout       = 60 * time.Second
)

// gameWorker runs one game's event loop in its own goroutine (spec C5). It
// owns gameState exclusively; nothing else ever reads or writes it.
type gameWorker struct {
	srv    *Server
	logger *zap.SugaredLogger

	pipe   chan uint32
	events chan registry.ConnEvent

	state *gameState
}

// newGameWorkerPending constructs a gameWorker before its registry id is
// known: the id field is filled in once registry.AddGame returns it, since
// the registry needs the worker's event channel to register the game and
// the worker's logger wants the id for its fields.
func newGameWorkerPending(srv *Server, name string, pipe chan uint32) *gameWorker {
	return &gameWorker{
		srv:    srv,
		logger: srv.logger,
		pipe:   pipe,
		events: make(chan registry.ConnEvent, 64),
		state: &gameState{
			name:  name,
			phase: phaseWaitingForPlayers,
		},
	}
}

// createGame bootstraps a new game per spec §4.5: allocates the pipe,
// spawns the worker, and admits the creator as the first player.
func (s *Server) createGame(ownerID uint32, name string) (uint32, error) {
	pipe := make(chan uint32, 8)
	gw := newGameWorkerPending(s, name, pipe)

	gameID, ok := registry.AddGame(name, ownerID, pipe, gw.events)
	if !ok {
		return 0, newActionError(kindInternal, fmt.Errorf("game registry exhausted"))
	}
	gw.state.id = gameID
	gw.logger = s.logger.With("game_id", gameID, "game_name", name)

	s.trackGame(gameID, gw)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		gw.run(s.ctx)
	}()

	// Redirect synchronously, before the lobby replies, so no message the
	// client sends after seeing MSG_GAME_CREATED can race the hand-off.
	registry.RedirectUserEvents(ownerID, gw.events)
	registry.SetUserGameID(ownerID, gameID)
	pipe <- ownerID
	return gameID, nil
}

// joinGame validates gameID, redirects userID's reader to the game's event
// channel, and hands it to the game's pipe.
func (s *Server) joinGame(gameID, userID uint32) (string, error) {
	name, ok := registry.GetGameName(gameID)
	if !ok {
		return "", newActionError(kindRule, fmt.Errorf("game %d not found", gameID))
	}
	if registry.IsGameStarted(gameID) {
		return "", newActionError(kindProtocolViolation, fmt.Errorf("game %d already started", gameID))
	}
	pipe, ok := registry.GetGamePipe(gameID)
	if !ok {
		return "", newActionError(kindRule, fmt.Errorf("game %d not found", gameID))
	}
	events, ok := registry.GetGameEvents(gameID)
	if !ok {
		return "", newActionError(kindRule, fmt.Errorf("game %d not found", gameID))
	}

	registry.RedirectUserEvents(userID, events)
	registry.SetUserGameID(userID, gameID)
	pipe <- userID
	return name, nil
}

// run is the per-game event loop described in spec §4.5: it waits on a
// timer deadline, the game's pipe (new players from the lobby), and
// decoded client messages, until zero players remain.
func (g *gameWorker) run(ctx context.Context) {
	defer g.terminate()

	var timer *time.Timer
	var timerC <-chan time.Time
	resetTimer := func(d time.Duration) {
		if timer != nil {
			timer.Stop()
		}
		if d < 0 {
			timerC = nil
			return
		}
		timer = time.NewTimer(d)
		timerC = timer.C
	}

	for {
		select {
		case <-ctx.Done():
			return
		case userID, ok := <-g.pipe:
			if !ok {
				return
			}
			g.admitPlayer(userID)
		case ev := <-g.events:
			// The lobby writes a user id to the pipe before replying, so an
			// id still buffered there may belong to the sender of ev: admit
			// every pending id first so the event is not dropped.
			for pending := true; pending; {
				select {
				case userID := <-g.pipe:
					g.admitPlayer(userID)
				default:
					pending = false
				}
			}
			g.handleClientEvent(ev, resetTimer)
		case <-timerC:
			g.handleTimeout(resetTimer)
		}

		if g.state.phase == phaseFinished {
			return
		}
		if len(g.state.players) == 0 {
			return
		}
	}
}

// admitPlayer is the pipe wake-up handler of spec §4.5 step 3.
func (g *gameWorker) admitPlayer(userID uint32) {
	if g.state.phase != phaseWaitingForPlayers {
		if conn, ok := registry.GetUserConn(userID); ok && conn != nil {
			conn.Close()
		}
		registry.ReleaseUser(userID)
		return
	}

	// The lobby already redirected this user's reader to g.events
	// synchronously when it created/joined the game (see createGame,
	// joinGame); this is a harmless no-op restating that ownership.
	registry.RedirectUserEvents(userID, g.events)
	conn, _ := registry.GetUserConn(userID)
	username, _ := registry.GetUsername(userID)

	p := &playerState{userID: userID, username: username, conn: conn}
	g.state.players = append(g.state.players, p)
	registry.AddGamePlayer(g.state.id, userID)

	g.logger.Infow("player joined game", "user_id", userID, "username", username)
}

// handleTimeout is the timer branch of spec §4.5 step 2.
func (g *gameWorker) handleTimeout(resetTimer func(time.Duration)) {
	switch g.state.phase {
	case phaseWaitingFleetSetup:
		for _, p := range append([]*playerState(nil), g.state.players...) {
			if !p.hasFleet() {
				g.cleanupClient(p, resetTimer)
			}
		}
		if len(g.state.players) == 0 {
			return
		}
		g.state.phase = phaseInProgress
		if len(g.state.turnOrder) == 0 {
			g.generateTurnOrder()
		}
		g.broadcastGameStarted(resetTimer)
		g.startTurn(resetTimer)
	case phaseInProgress:
		g.advanceTurn(resetTimer)
	}
}

// generateTurnOrder produces a uniform permutation of the seated players,
// per spec §4.5's turn order generation rule.
func (g *gameWorker) generateTurnOrder() {
	order := make([]int32, len(g.state.players))
	for i, p := range g.state.players {
		order[i] = int32(p.userID)
	}
	rand.Shuffle(len(order), func(i, j int) {
		order[i], order[j] = order[j], order[i]
	})
	g.state.turnOrder = order
	g.state.turnIndex = 0
}

// terminate releases the game's own slot and any remaining player slots.
func (g *gameWorker) terminate() {
	g.state.phase = phaseFinished
	for _, p := range append([]*playerState(nil), g.state.players...) {
		if p.conn != nil {
			p.conn.Close()
		}
		registry.ReleaseUser(p.userID)
	}
	registry.ReleaseGame(g.state.id)
	g.srv.untrackGame(g.state.id)
	g.logger.Infow("game worker terminated")
}
