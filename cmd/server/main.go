package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/saltmarsh-games/battleship-server/pkg/server"
)

func main() {
	address := flag.String("address", "", "Interface to bind (empty = all interfaces)")
	port := flag.Int("port", 0, "TCP port to listen on (required)")
	dev := flag.Bool("dev", false, "Use a human-readable development logger instead of JSON")
	flag.Parse()

	if *port == 0 {
		fmt.Fprintln(os.Stderr, "battleship-server: -port is required")
		os.Exit(1)
	}

	zl, err := newLogger(*dev)
	if err != nil {
		fmt.Fprintf(os.Stderr, "battleship-server: failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer zl.Sync()
	logger := zl.Sugar()

	config := server.Config{Address: *address, Port: *port}
	srv := server.New(config, logger)
	if err := srv.Start(); err != nil {
		logger.Fatalw("failed to start server", "error", err)
	}

	logger.Infow("battleship server started", "address", srv.Addr().String())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Infow("shutting down server", "signal", sig.String())
	case <-srv.StopChan():
		logger.Infow("shutting down server (internal)")
	}

	srv.Stop()
	logger.Infow("server stopped")
}

func newLogger(dev bool) (*zap.Logger, error) {
	if dev {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
