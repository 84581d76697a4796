// Package daemon serves a store.KV to Remote clients over a socket.
package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"sync"

	"github.com/dustin/go-humanize"

	"github.com/leonardcser/kv-handlers/internal/store"
)

type Server struct {
	kv  store.KV
	log *slog.Logger

	mu     sync.Mutex
	conns  map[net.Conn]struct{}
	closed bool
	wg     sync.WaitGroup
}

func New(kv store.KV, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{kv: kv, log: log, conns: make(map[net.Conn]struct{})}
}

// Serve accepts connections on l until ctx is cancelled or l is closed. It
// closes l and every open connection before returning.
func (s *Server) Serve(ctx context.Context, l net.Listener) error {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			s.shutdown(l)
		case <-done:
		}
	}()

	s.log.Info("Store daemon listening", "addr", l.Addr().String())
	for {
		conn, err := l.Accept()
		if err != nil {
			if ctx.Err() != nil {
				s.wg.Wait()
				return nil
			}
			if errors.Is(err, net.ErrClosed) {
				s.shutdown(l)
				s.wg.Wait()
				return err
			}
			s.log.Warn("Accept failed", "error", err)
			continue
		}
		s.track(conn, true)
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer s.track(conn, false)
			s.handleConn(ctx, conn)
		}()
	}
}

// shutdown stops accepting and closes every tracked connection. Connections
// accepted afterwards are closed on arrival.
func (s *Server) shutdown(l net.Listener) {
	_ = l.Close()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	for c := range s.conns {
		_ = c.Close()
	}
}

func (s *Server) track(c net.Conn, add bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if add {
		if s.closed {
			_ = c.Close()
			return
		}
		s.conns[c] = struct{}{}
		return
	}
	delete(s.conns, c)
	_ = c.Close()
}

func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	dec := json.NewDecoder(conn)
	enc := json.NewEncoder(conn)
	for {
		var req store.Request
		if err := dec.Decode(&req); err != nil {
			return
		}
		if err := enc.Encode(s.apply(ctx, req)); err != nil {
			return
		}
	}
}

func (s *Server) apply(ctx context.Context, req store.Request) store.Response {
	switch req.Op {
	case store.OpGet:
		res, err := s.kv.Get(ctx, req.Key)
		if err != nil {
			return s.failed(req, err)
		}
		return store.Response{OK: true, Found: res.Found, Value: res.Value}
	case store.OpPut:
		if err := s.kv.Put(ctx, req.Key, req.Value); err != nil {
			return s.failed(req, err)
		}
		s.log.Debug("Stored record", "key", req.Key,
			"size", humanize.Bytes(uint64(len(req.Value))))
		return store.Response{OK: true}
	case store.OpDelete:
		if err := s.kv.Delete(ctx, req.Key); err != nil {
			return s.failed(req, err)
		}
		return store.Response{OK: true}
	default:
		return store.Response{OK: false, Error: "unknown op"}
	}
}

func (s *Server) failed(req store.Request, err error) store.Response {
	s.log.Error("Store operation failed", "op", req.Op, "key", req.Key, "error", err)
	return store.Response{OK: false, Error: err.Error()}
}
