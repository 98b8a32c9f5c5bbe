package server

import (
	"net"
	"strconv"

	"github.com/saltmarsh-games/battleship-server/pkg/registry"
	"github.com/saltmarsh-games/battleship-server/pkg/wire"
)

// readConn is the single reader goroutine for one connection, for its
// entire lifetime. It never stops or restarts across the lobby→game
// hand-off: only the destination channel (looked up fresh from the
// registry on every iteration) changes, which is what realizes the
// "unwatch the lobby socket, transfer to the game pipe" step of spec §4.4
// without tearing down and re-establishing a reader.
func readConn(userID uint32) {
	for {
		conn, ok := registry.GetUserConn(userID)
		if !ok {
			return
		}
		msgType, payload, err := wire.Recv(conn)

		dest, ok := registry.GetUserEvents(userID)
		if !ok {
			return
		}
		dest <- registry.ConnEvent{UserID: userID, MsgType: msgType, Payload: payload, Err: err}
		if err != nil {
			return
		}
	}
}

func (s *Server) runLobby() {
	defer s.wg.Done()
	for {
		select {
		case <-s.ctx.Done():
			return
		case conn := <-s.lobbyCh:
			userID, ok := registry.AddUser(conn, s.events)
			if !ok {
				s.logger.Errorw("user registry exhausted, dropping connection")
				conn.Close()
				continue
			}
			s.logger.Debugw("user admitted to lobby", "user_id", userID)
			s.trackLobbyConn(userID, conn)
			go readConn(userID)
		case ev := <-s.events:
			s.handleLobbyEvent(ev)
		}
	}
}

func (s *Server) handleLobbyEvent(ev registry.ConnEvent) {
	if ev.Err != nil {
		s.cleanupLobbyUser(ev.UserID)
		return
	}

	conn, ok := registry.GetUserConn(ev.UserID)
	if !ok {
		// The user's slot has already been released (for example by an
		// earlier cleanup); the event is dropped.
		return
	}
	_, authenticated := registry.GetUsername(ev.UserID)

	switch ev.MsgType {
	case wire.MsgLogin:
		s.handleLogin(ev, conn)
	case wire.MsgCreateGame:
		if !authenticated {
			wire.Send(conn, wire.MsgErrorNotAuthenticated, nil)
			return
		}
		s.handleCreateGame(ev, conn)
	case wire.MsgJoinGame:
		if !authenticated {
			wire.Send(conn, wire.MsgErrorNotAuthenticated, nil)
			return
		}
		s.handleJoinGame(ev, conn)
	default:
		if !authenticated {
			wire.Send(conn, wire.MsgErrorNotAuthenticated, nil)
			return
		}
		wire.Send(conn, wire.MsgErrorUnexpectedMessage, nil)
	}
}

func (s *Server) handleLogin(ev registry.ConnEvent, conn net.Conn) {
	username, ok := ev.Payload.String(0, "username")
	if !ok || username == "" {
		wire.Send(conn, wire.MsgErrorNotAuthenticated, nil)
		return
	}
	registry.SetUsername(ev.UserID, username)

	var resp wire.Payload
	resp.Set("username", username)
	resp.Set("user_id", strconv.FormatUint(uint64(ev.UserID), 10))
	if err := wire.Send(conn, wire.MsgWelcome, resp); err != nil {
		s.cleanupLobbyUser(ev.UserID)
		return
	}
	s.logger.Infow("user logged in", "user_id", ev.UserID, "username", username)
}

func (s *Server) handleCreateGame(ev registry.ConnEvent, conn net.Conn) {
	gameName, ok := ev.Payload.String(0, "game_name")
	if !ok || gameName == "" {
		wire.Send(conn, wire.MsgErrorCreateGame, nil)
		return
	}

	gameID, err := s.createGame(ev.UserID, gameName)
	if err != nil {
		s.logger.Warnw("create game failed", "user_id", ev.UserID, "error", err)
		wire.Send(conn, wire.MsgErrorCreateGame, nil)
		return
	}

	s.untrackLobbyConn(ev.UserID)
	var resp wire.Payload
	resp.Set("game_id", strconv.FormatUint(uint64(gameID), 10))
	wire.Send(conn, wire.MsgGameCreated, resp)
}

func (s *Server) handleJoinGame(ev registry.ConnEvent, conn net.Conn) {
	gameID, ok := ev.Payload.Int(0, "game_id")
	if !ok || gameID < 0 {
		wire.Send(conn, wire.MsgErrorJoinGame, nil)
		return
	}

	gameName, err := s.joinGame(uint32(gameID), ev.UserID)
	if err != nil {
		s.logger.Warnw("join game failed", "user_id", ev.UserID, "game_id", gameID, "error", err)
		wire.Send(conn, wire.MsgErrorJoinGame, nil)
		return
	}

	s.untrackLobbyConn(ev.UserID)
	var resp wire.Payload
	resp.Set("game_name", gameName)
	wire.Send(conn, wire.MsgGameJoined, resp)
}

// cleanupLobbyUser tears down a user that disconnected, or failed to send
// a valid frame, while still owned by the lobby (i.e. before any game
// admitted it).
func (s *Server) cleanupLobbyUser(userID uint32) {
	conn, ok := registry.GetUserConn(userID)
	if ok && conn != nil {
		conn.Close()
	}
	registry.ReleaseUser(userID)
	s.untrackLobbyConn(userID)
	s.logger.Debugw("lobby user cleaned up", "user_id", userID)
}
