// Package server implements the connection listener, lobby worker and
// per-game worker of the Battleship service (spec components C3, C4, C5),
// built on the framed codec in pkg/wire, the paged registries in
// pkg/registry, and the pure board rules in pkg/board.
package server

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/saltmarsh-games/battleship-server/pkg/registry"
)

// Config holds server configuration.
type Config struct {
	// Address is the interface to bind. Empty means all interfaces.
	Address string
	// Port is the TCP port to listen on.
	Port int
}

// DefaultConfig returns a default server configuration.
func DefaultConfig() Config {
	return Config{Address: "", Port: 7714}
}

func (c Config) listenAddr() string {
	return net.JoinHostPort(c.Address, strconv.Itoa(c.Port))
}

// Server accepts connections and runs the lobby and every active game
// worker.
type Server struct {
	config Config
	logger *zap.SugaredLogger

	listener net.Listener
	lobbyCh  chan net.Conn
	events   chan registry.ConnEvent

	ctx    context.Context
	cancel context.CancelFunc
	stopCh chan struct{}
	once   sync.Once

	mu         sync.Mutex
	games      map[uint32]*gameWorker
	lobbyConns map[uint32]net.Conn
	wg         sync.WaitGroup
}

// New creates a server with the given configuration. logger must not be
// nil; pass zap.NewNop().Sugar() in tests that don't care about log output.
func New(config Config, logger *zap.SugaredLogger) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		config:     config,
		logger:     logger,
		lobbyCh:    make(chan net.Conn, 64),
		events:     make(chan registry.ConnEvent, 256),
		ctx:        ctx,
		cancel:     cancel,
		stopCh:     make(chan struct{}),
		games:      make(map[uint32]*gameWorker),
		lobbyConns: make(map[uint32]net.Conn),
	}
}

// Start binds the listening socket and spawns the accept loop and the
// lobby worker.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.config.listenAddr())
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.config.listenAddr(), err)
	}
	s.listener = ln
	s.logger.Infow("server listening", "address", ln.Addr().String())

	s.wg.Add(2)
	go s.acceptLoop()
	go s.runLobby()
	return nil
}

// Addr returns the listener's bound address. It is nil before Start.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// StopChan returns a channel that Stop closes. Nothing inside the server
// calls Stop on its own, so the channel closes only after an outside call
// to Stop.
func (s *Server) StopChan() <-chan struct{} {
	return s.stopCh
}

// Stop cancels every running worker and closes the listener. It is safe to
// call more than once.
func (s *Server) Stop() {
	s.once.Do(func() {
		s.cancel()
		if s.listener != nil {
			s.listener.Close()
		}
		s.mu.Lock()
		for _, conn := range s.lobbyConns {
			conn.Close()
		}
		s.lobbyConns = nil
		s.mu.Unlock()
		close(s.stopCh)
	})
	s.wg.Wait()
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.ctx.Done():
				return
			default:
				s.logger.Warnw("accept error", "error", err)
				continue
			}
		}

		connID := uuid.New()
		s.logger.Infow("connection accepted", "conn_id", connID, "remote", conn.RemoteAddr())

		select {
		case s.lobbyCh <- conn:
		case <-s.ctx.Done():
			conn.Close()
			return
		}
	}
}

func (s *Server) trackGame(id uint32, gw *gameWorker) {
	s.mu.Lock()
	s.games[id] = gw
	s.mu.Unlock()
}

func (s *Server) untrackGame(id uint32) {
	s.mu.Lock()
	delete(s.games, id)
	s.mu.Unlock()
}

func (s *Server) trackLobbyConn(userID uint32, conn net.Conn) {
	s.mu.Lock()
	if s.lobbyConns != nil {
		s.lobbyConns[userID] = conn
	}
	s.mu.Unlock()
}

func (s *Server) untrackLobbyConn(userID uint32) {
	s.mu.Lock()
	delete(s.lobbyConns, userID)
	s.mu.Unlock()
}
