package ipc

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"sync"
)

// Lines longer than this are rejected by the scanner.
const maxLineSize = 4 << 20

// Server speaks NDJSON over a Unix socket. Each connection is handled
// on its own goroutine; requests on one connection run sequentially,
// and a server-wide semaphore bounds in-flight requests across all
// connections.
type Server struct {
	socketPath string
	handlers   *Handlers
	sem        chan struct{}
}

func NewServer(socketPath string, handlers *Handlers, maxConcurrent int) *Server {
	if maxConcurrent <= 0 {
		maxConcurrent = 4
	}
	return &Server{
		socketPath: socketPath,
		handlers:   handlers,
		sem:        make(chan struct{}, maxConcurrent),
	}
}

// Run listens until ctx is cancelled. The socket file is removed on
// shutdown and any stale socket from a previous run is removed first.
func (s *Server) Run(ctx context.Context) error {
	if err := os.MkdirAll(filepath.Dir(s.socketPath), 0o755); err != nil {
		return fmt.Errorf("failed to create socket directory: %w", err)
	}
	if err := os.Remove(s.socketPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove stale socket: %w", err)
	}

	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.socketPath, err)
	}
	defer os.Remove(s.socketPath)

	go func() {
		<-ctx.Done()
		listener.Close()
	}()

	slog.Info("IPC server listening", "socket", s.socketPath)

	var wg sync.WaitGroup
	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				wg.Wait()
				return nil
			}
			slog.Warn("Failed to accept connection", "error", err)
			continue
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			s.serveConn(ctx, conn)
		}()
	}
}

func (s *Server) serveConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	encoder := json.NewEncoder(conn)
	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var req Request
		if err := json.Unmarshal(line, &req); err != nil {
			// Parse failures cannot echo an id back; null stands in.
			s.write(encoder, &Response{
				ID:    json.RawMessage("null"),
				Error: newError(CodeParseError, "malformed request: %v", err),
			})
			continue
		}

		select {
		case s.sem <- struct{}{}:
		case <-ctx.Done():
			return
		}
		resp := s.handlers.Handle(ctx, &req)
		<-s.sem

		if !s.write(encoder, resp) {
			return
		}
	}
	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		slog.Debug("Connection read failed", "error", err)
	}
}

func (s *Server) write(encoder *json.Encoder, resp *Response) bool {
	if err := encoder.Encode(resp); err != nil {
		slog.Debug("Failed to write response", "error", err)
		return false
	}
	return true
}
