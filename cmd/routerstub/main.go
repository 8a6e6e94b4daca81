// routerstub is a development Media Router. It accepts one provider link
// at a time, prints every route_messages batch it receives and sends route
// commands typed on stdin:
//
//	listen <route_id>
//	stop <route_id>
//	remove <route_id>
//
// Usage: go run ./cmd/routerstub --addr :9300 [--public-key provider.pub.pem]
package main

import (
	"bufio"
	"context"
	"crypto/rsa"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rickgao/mediaroute/internal/auth"
	"github.com/rickgao/mediaroute/internal/connection"
)

type stub struct {
	pubKey  *rsa.PublicKey
	verbose bool
	logger  *slog.Logger

	upgrader websocket.Upgrader

	mu      sync.Mutex
	conn    *websocket.Conn
	writeMu sync.Mutex
}

func main() {
	addr := flag.String("addr", ":9300", "listen address")
	path := flag.String("path", "/v1/provider", "websocket path")
	pubKeyPath := flag.String("public-key", "", "provider public key PEM; empty accepts unsigned links")
	verbose := flag.Bool("verbose", false, "print full frame JSON")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))

	s := &stub{verbose: *verbose, logger: logger}
	if *pubKeyPath != "" {
		key, err := auth.LoadPublicKey(*pubKeyPath)
		if err != nil {
			logger.Error("failed to load public key", "error", err)
			os.Exit(1)
		}
		s.pubKey = key
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("received shutdown signal")
		cancel()
	}()

	mux := http.NewServeMux()
	mux.HandleFunc(*path, s.serveWS)
	server := &http.Server{Addr: *addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		logger.Info("router stub listening", "addr", *addr, "path", *path, "signed", s.pubKey != nil)
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			cancel()
		}
	}()

	go s.readCommands(ctx, os.Stdin)

	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	s.closeConn()
	server.Shutdown(shutdownCtx)
	logger.Info("router stub stopped")
}

func (s *stub) serveWS(w http.ResponseWriter, r *http.Request) {
	if s.pubKey != nil {
		keyID, err := auth.Verify(s.pubKey, r.Header, r.Method, r.URL.Path, auth.DefaultMaxSkew, time.Now())
		if err != nil {
			s.logger.Warn("rejected provider", "error", err, "remote", r.RemoteAddr)
			http.Error(w, err.Error(), http.StatusUnauthorized)
			return
		}
		s.logger.Info("provider authenticated", "key_id", keyID)
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("upgrade failed", "error", err)
		return
	}

	s.mu.Lock()
	if s.conn != nil {
		s.conn.Close()
	}
	s.conn = conn
	s.mu.Unlock()

	s.logger.Info("provider connected", "remote", r.RemoteAddr)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			s.logger.Info("provider disconnected", "error", err)
			break
		}
		s.printFrame(data)
	}

	s.mu.Lock()
	if s.conn == conn {
		s.conn = nil
	}
	s.mu.Unlock()
	conn.Close()
}

func (s *stub) printFrame(data []byte) {
	var frame connection.RouteMessagesFrame
	if err := json.Unmarshal(data, &frame); err != nil || frame.Type != connection.TypeRouteMessages {
		s.logger.Warn("unexpected frame", "data", string(data))
		return
	}

	if s.verbose {
		pretty, _ := json.MarshalIndent(frame, "", "  ")
		fmt.Printf("[BATCH] %s\n", pretty)
		return
	}

	fmt.Printf("[BATCH] route=%s messages=%d\n", frame.RouteID, len(frame.Messages))
	for _, m := range frame.Messages {
		switch {
		case m.Text != nil:
			fmt.Printf("  %s text %q\n", m.ID, *m.Text)
		case m.Binary != nil:
			fmt.Printf("  %s binary %d bytes\n", m.ID, len(*m.Binary))
		}
	}
}

func (s *stub) readCommands(ctx context.Context, f *os.File) {
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		if len(fields) != 2 {
			fmt.Println("usage: listen|stop|remove <route_id>")
			continue
		}

		var cmdType string
		switch fields[0] {
		case "listen":
			cmdType = connection.TypeListen
		case "stop":
			cmdType = connection.TypeStopListening
		case "remove":
			cmdType = connection.TypeRouteRemoved
		default:
			fmt.Printf("unknown command %q\n", fields[0])
			continue
		}

		if err := s.send(connection.Command{Type: cmdType, RouteID: fields[1]}); err != nil {
			s.logger.Warn("send command failed", "error", err)
		}
	}
}

func (s *stub) send(cmd connection.Command) error {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return connection.ErrNotConnected
	}

	data, err := json.Marshal(cmd)
	if err != nil {
		return err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, data)
}

func (s *stub) closeConn() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn != nil {
		s.conn.Close()
		s.conn = nil
	}
}
