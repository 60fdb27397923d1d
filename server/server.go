// Package server implements the line-oriented command protocol and the
// listeners that accept client connections.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Handler serves one accepted connection. It returns when the connection is
// done.
type Handler interface {
	ServeConn(ctx context.Context, conn net.Conn)
}

// Server accepts connections and runs one Handler goroutine per connection.
type Server struct {
	name    string
	handler Handler
	grace   time.Duration
	log     *zap.Logger

	mu    sync.Mutex
	conns map[net.Conn]struct{}
	wg    sync.WaitGroup
}

// New creates a Server. name labels log entries; grace bounds how long
// sessions may finish their current work after shutdown begins.
func New(name string, handler Handler, grace time.Duration, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{
		name:    name,
		handler: handler,
		grace:   grace,
		log:     log.With(zap.String("listener", name)),
		conns:   make(map[net.Conn]struct{}),
	}
}

// ListenAndServe binds addr and serves until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections from ln until ctx is cancelled, then shuts down:
// idle reads are interrupted, sessions get the grace period to finish, and
// whatever remains is closed.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.log.Info("listening", zap.String("addr", ln.Addr().String()))

	stop := context.AfterFunc(ctx, func() { _ = ln.Close() })
	defer stop()

	var acceptErr error
	var delay time.Duration
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				delay = backoff(delay)
				s.log.Warn("accept failed, retrying", zap.Error(err), zap.Duration("delay", delay))
				time.Sleep(delay)
				continue
			}
			acceptErr = fmt.Errorf("accept: %w", err)
			break
		}
		delay = 0

		s.track(conn)
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer s.untrack(conn)
			s.handler.ServeConn(ctx, conn)
		}()
	}

	_ = ln.Close()
	s.shutdown()
	return acceptErr
}

func backoff(d time.Duration) time.Duration {
	if d == 0 {
		return 5 * time.Millisecond
	}
	if d *= 2; d > time.Second {
		d = time.Second
	}
	return d
}

func (s *Server) track(conn net.Conn) {
	s.mu.Lock()
	s.conns[conn] = struct{}{}
	s.mu.Unlock()
}

func (s *Server) untrack(conn net.Conn) {
	s.mu.Lock()
	delete(s.conns, conn)
	s.mu.Unlock()
}

// ActiveConns returns the number of open connections.
func (s *Server) ActiveConns() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

func (s *Server) shutdown() {
	s.mu.Lock()
	for conn := range s.conns {
		// Wake sessions blocked in Read; writes in progress are unaffected.
		_ = conn.SetReadDeadline(time.Now())
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.log.Info("all sessions finished")
		return
	case <-time.After(s.grace):
	}

	s.mu.Lock()
	n := len(s.conns)
	for conn := range s.conns {
		_ = conn.Close()
	}
	s.mu.Unlock()
	s.log.Warn("grace period expired, closed remaining connections", zap.Int("count", n))
	<-done
}
