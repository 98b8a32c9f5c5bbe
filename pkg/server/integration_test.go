package server

import (
	"net"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/saltmarsh-games/battleship-server/pkg/wire"
)

func startTestServer(t *testing.T) (*Server, string) {
	t.Helper()
	srv := New(Config{Address: "127.0.0.1", Port: 0}, zap.NewNop().Sugar())
	if err := srv.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(srv.Stop)
	return srv, srv.Addr().String()
}

func dial(t *testing.T, addr string) net.Conn {
	t.Helper()
	conn, err := net.DialTimeout("tcp", addr, 2*time.Second)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	conn.SetDeadline(time.Now().Add(5 * time.Second))
	return conn
}

func login(t *testing.T, conn net.Conn, username string) uint32 {
	t.Helper()
	var p wire.Payload
	p.Set("username", username)
	if err := wire.Send(conn, wire.MsgLogin, p); err != nil {
		t.Fatalf("Send login: %v", err)
	}
	msgType, resp, err := wire.Recv(conn)
	if err != nil {
		t.Fatalf("Recv welcome: %v", err)
	}
	if msgType != wire.MsgWelcome {
		t.Fatalf("msgType = %d, want MsgWelcome", msgType)
	}
	idStr, _ := resp.String(0, "user_id")
	var id uint32
	for _, c := range idStr {
		id = id*10 + uint32(c-'0')
	}
	return id
}

func createGame(t *testing.T, conn net.Conn, name string) uint32 {
	t.Helper()
	var p wire.Payload
	p.Set("game_name", name)
	if err := wire.Send(conn, wire.MsgCreateGame, p); err != nil {
		t.Fatalf("Send create_game: %v", err)
	}
	msgType, resp, err := wire.Recv(conn)
	if err != nil {
		t.Fatalf("Recv game_created: %v", err)
	}
	if msgType != wire.MsgGameCreated {
		t.Fatalf("msgType = %d, want MsgGameCreated", msgType)
	}
	idStr, _ := resp.String(0, "game_id")
	var id uint32
	for _, c := range idStr {
		id = id*10 + uint32(c-'0')
	}
	return id
}

func joinGame(t *testing.T, conn net.Conn, gameID uint32) {
	t.Helper()
	var p wire.Payload
	p.Set("game_id", itoa(gameID))
	if err := wire.Send(conn, wire.MsgJoinGame, p); err != nil {
		t.Fatalf("Send join_game: %v", err)
	}
	msgType, _, err := wire.Recv(conn)
	if err != nil {
		t.Fatalf("Recv game_joined: %v", err)
	}
	if msgType != wire.MsgGameJoined {
		t.Fatalf("msgType = %d, want MsgGameJoined", msgType)
	}
}

func itoa(n uint32) string {
	if n == 0 {
		return "0"
	}
	var buf [10]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}

func sendFleet(t *testing.T, conn net.Conn) {
	t.Helper()
	ships := []struct{ dim, vertical, x, y int }{
		{5, 0, 0, 0},
		{4, 0, 0, 1},
		{3, 0, 0, 2},
		{3, 0, 0, 3},
		{2, 0, 0, 4},
	}
	var p wire.Payload
	for _, s := range ships {
		rec := p.AppendRecord()
		rec.Set("dim", itoa(uint32(s.dim)))
		rec.Set("vertical", itoa(uint32(s.vertical)))
		rec.Set("x", itoa(uint32(s.x)))
		rec.Set("y", itoa(uint32(s.y)))
	}
	if err := wire.Send(conn, wire.MsgSetupFleet, p); err != nil {
		t.Fatalf("Send setup_fleet: %v", err)
	}
}

// TestSoloStartGameRejected covers scenario 1: a lone player without a
// fleet moves to WAITING_FLEET_SETUP on START_GAME rather than starting
// play, and READY_TO_PLAY before that reports no other players.
func TestSoloStartGameRejected(t *testing.T) {
	_, addr := startTestServer(t)
	conn := dial(t, addr)

	login(t, conn, "solo")
	createGame(t, conn, "alone")

	if err := wire.Send(conn, wire.MsgReadyToPlay, nil); err != nil {
		t.Fatalf("Send ready_to_play: %v", err)
	}
	msgType, resp, err := wire.Recv(conn)
	if err != nil {
		t.Fatalf("Recv game_state_update: %v", err)
	}
	if msgType != wire.MsgGameStateUpdate {
		t.Fatalf("msgType = %d, want MsgGameStateUpdate", msgType)
	}
	if resp.RecordCount() != 1 {
		t.Fatalf("RecordCount = %d, want 1 (game_info only, no player_info)", resp.RecordCount())
	}

	if err := wire.Send(conn, wire.MsgStartGame, nil); err != nil {
		t.Fatalf("Send start_game: %v", err)
	}
	// START_GAME with no fleet committed moves the game to
	// WAITING_FLEET_SETUP silently: no GAME_STARTED broadcast fires until a
	// fleet arrives, so nothing should be waiting on the wire yet.
	conn.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	buf := make([]byte, 1)
	if _, err := conn.Read(buf); err == nil {
		t.Fatalf("expected no message before a fleet is committed")
	}

	sendFleet(t, conn)
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	msgType, _, err = wire.Recv(conn)
	if err != nil {
		t.Fatalf("Recv after fleet commit: %v", err)
	}
	if msgType != wire.MsgGameStarted {
		t.Fatalf("msgType = %d, want MsgGameStarted once the lone player's fleet completes setup", msgType)
	}
}

// TestTwoPlayerHappyPathAndAttackMiss covers scenarios 2 and 3: both
// players join, set up fleets, start the game, and the first actor's
// attack on (9,9), a cell no ship of sendFleet's layout occupies, reaches
// the target as an ATTACK_UPDATE with result "miss".
func TestTwoPlayerHappyPathAndAttackMiss(t *testing.T) {
	_, addr := startTestServer(t)
	connA := dial(t, addr)
	connB := dial(t, addr)

	idA := login(t, connA, "alice")
	idB := login(t, connB, "bob")

	gameID := createGame(t, connA, "duel")
	joinGame(t, connB, gameID)

	sendFleet(t, connA)
	sendFleet(t, connB)

	if err := wire.Send(connA, wire.MsgStartGame, nil); err != nil {
		t.Fatalf("Send start_game: %v", err)
	}

	drainUntil(t, connA, wire.MsgGameStarted)
	drainUntil(t, connB, wire.MsgGameStarted)

	firstMsgA, _ := drainUntilOneOf(t, connA, wire.MsgYourTurn, wire.MsgTurnOrderUpdate)
	firstMsgB, _ := drainUntilOneOf(t, connB, wire.MsgYourTurn, wire.MsgTurnOrderUpdate)

	var attacker, target net.Conn
	var targetID uint32
	if firstMsgA == wire.MsgYourTurn {
		attacker, target, targetID = connA, connB, idB
	} else if firstMsgB == wire.MsgYourTurn {
		attacker, target, targetID = connB, connA, idA
	} else {
		t.Fatalf("neither player received MsgYourTurn")
	}

	var p wire.Payload
	p.Set("player_id", itoa(targetID))
	p.Set("x", "9")
	p.Set("y", "9")
	if err := wire.Send(attacker, wire.MsgAttack, p); err != nil {
		t.Fatalf("Send attack: %v", err)
	}

	msgType, resp, err := wire.Recv(target)
	if err != nil {
		t.Fatalf("Recv attack_update on target: %v", err)
	}
	if msgType != wire.MsgAttackUpdate {
		t.Fatalf("msgType = %d, want MsgAttackUpdate", msgType)
	}
	if result, _ := resp.String(0, "result"); result != "miss" {
		t.Fatalf("result = %q, want miss", result)
	}
}

// TestMalformedFrameDisconnects covers scenario 5: a frame claiming an
// absurd payload size is rejected and the connection is torn down rather
// than hanging the lobby.
func TestMalformedFrameDisconnects(t *testing.T) {
	_, addr := startTestServer(t)
	conn := dial(t, addr)

	var header [6]byte
	header[0] = byte(wire.MsgLogin)
	header[2] = 0xff
	header[3] = 0xff
	header[4] = 0xff
	header[5] = 0x7f // payload size far beyond MaxPayloadSize
	if _, err := conn.Write(header[:]); err != nil {
		t.Fatalf("Write malformed header: %v", err)
	}

	buf := make([]byte, 1)
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, err := conn.Read(buf)
	if err == nil {
		t.Fatalf("expected connection to be closed after malformed frame")
	}
}

// TestBadFleetCompositionRejected covers scenario 6: a fleet that doesn't
// match the canonical size multiset is rejected with an error reply, not a
// committed board.
func TestBadFleetCompositionRejected(t *testing.T) {
	_, addr := startTestServer(t)
	connA := dial(t, addr)
	connB := dial(t, addr)

	login(t, connA, "alice")
	login(t, connB, "bob")
	gameID := createGame(t, connA, "duel")
	joinGame(t, connB, gameID)

	var p wire.Payload
	for i := 0; i < 5; i++ {
		rec := p.AppendRecord()
		rec.Set("dim", "5") // five ships of size 5: wrong composition
		rec.Set("vertical", "0")
		rec.Set("x", "0")
		rec.Set("y", itoa(uint32(i)))
	}
	if err := wire.Send(connA, wire.MsgSetupFleet, p); err != nil {
		t.Fatalf("Send setup_fleet: %v", err)
	}

	msgType, _, err := wire.Recv(connA)
	if err != nil {
		t.Fatalf("Recv: %v", err)
	}
	if msgType != wire.MsgErrorPlayerAction {
		t.Fatalf("msgType = %d, want MsgErrorPlayerAction", msgType)
	}
}

func drainUntil(t *testing.T, conn net.Conn, want uint16) {
	t.Helper()
	for i := 0; i < 10; i++ {
		msgType, _, err := wire.Recv(conn)
		if err != nil {
			t.Fatalf("Recv while draining for %d: %v", want, err)
		}
		if msgType == want {
			return
		}
	}
	t.Fatalf("did not see msgType %d within 10 messages", want)
}

func drainUntilOneOf(t *testing.T, conn net.Conn, wantA, wantB uint16) (uint16, wire.Payload) {
	t.Helper()
	for i := 0; i < 10; i++ {
		msgType, payload, err := wire.Recv(conn)
		if err != nil {
			t.Fatalf("Recv while draining: %v", err)
		}
		if msgType == wantA || msgType == wantB {
			return msgType, payload
		}
	}
	t.Fatalf("did not see msgType %d or %d within 10 messages", wantA, wantB)
	return 0, nil
}
