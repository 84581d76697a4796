package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leonardcser/kv-handlers/internal/envelope"
	"github.com/leonardcser/kv-handlers/internal/handler"
	"github.com/leonardcser/kv-handlers/internal/store"
)

func startDaemon(t *testing.T, kv store.KV) (addr string, stop func()) {
	t.Helper()

	sock := filepath.Join(t.TempDir(), "kvh.sock")
	l, err := net.Listen("unix", sock)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	srv := New(kv, slog.New(slog.NewTextHandler(io.Discard, nil)))
	go func() { done <- srv.Serve(ctx, l) }()

	return sock, func() {
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Fatal("daemon did not stop")
		}
	}
}

func TestRemoteRoundTrip(t *testing.T) {
	sock, stop := startDaemon(t, store.NewMemory())
	defer stop()

	ctx := context.Background()
	client := store.NewRemote("unix", sock, store.WithRetries(0))
	require.NoError(t, client.Ping(ctx))

	got, err := client.Get(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, got.Found)

	require.NoError(t, client.Put(ctx, "u1", "hello"))
	got, err = client.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, store.Found("hello"), got)

	require.NoError(t, client.Put(ctx, "u1", "bye"))
	got, err = client.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "bye", got.Value)

	require.NoError(t, client.Delete(ctx, "u1"))
	require.NoError(t, client.Delete(ctx, "u1"))
	got, err = client.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, store.Absent, got)
}

func TestRemoteEmptyKey(t *testing.T) {
	client := store.NewRemote("unix", "/nonexistent.sock")
	_, err := client.Get(context.Background(), "")
	assert.ErrorIs(t, err, store.ErrEmptyKey)
}

func TestRemoteUnreachable(t *testing.T) {
	sock := filepath.Join(t.TempDir(), "missing.sock")
	client := store.NewRemote("unix", sock,
		store.WithRetries(1),
		store.WithTimeout(100*time.Millisecond),
	)
	_, err := client.Get(context.Background(), "k")
	assert.Error(t, err)
	assert.Error(t, client.Put(context.Background(), "k", "v"))
}

func TestUnknownOpKeepsConnectionOpen(t *testing.T) {
	sock, stop := startDaemon(t, store.NewMemory())
	defer stop()

	conn, err := net.Dial("unix", sock)
	require.NoError(t, err)
	defer conn.Close()

	enc := json.NewEncoder(conn)
	dec := json.NewDecoder(conn)

	require.NoError(t, enc.Encode(store.Request{Op: "scan"}))
	var resp store.Response
	require.NoError(t, dec.Decode(&resp))
	assert.False(t, resp.OK)
	assert.Equal(t, "unknown op", resp.Error)

	require.NoError(t, enc.Encode(store.Request{Op: store.OpPut, Key: "a", Value: "1"}))
	resp = store.Response{}
	require.NoError(t, dec.Decode(&resp))
	assert.True(t, resp.OK)

	require.NoError(t, enc.Encode(store.Request{Op: store.OpGet, Key: "a"}))
	resp = store.Response{}
	require.NoError(t, dec.Decode(&resp))
	assert.Equal(t, store.Response{OK: true, Found: true, Value: "1"}, resp)
}

func TestDaemonReportsStoreErrors(t *testing.T) {
	sock, stop := startDaemon(t, store.NewMemory())
	defer stop()

	conn, err := net.Dial("unix", sock)
	require.NoError(t, err)
	defer conn.Close()

	// an empty key is rejected by the backing store, not the transport
	require.NoError(t, json.NewEncoder(conn).Encode(store.Request{Op: store.OpGet}))
	var resp store.Response
	require.NoError(t, json.NewDecoder(conn).Decode(&resp))
	assert.False(t, resp.OK)
	assert.Contains(t, resp.Error, "empty key")
}

// scripted serves a unix socket, handing the n-th accepted connection
// (starting at 1) to handle. It returns the socket path and the accept count.
func scripted(t *testing.T, handle func(n int32, conn net.Conn)) (string, *atomic.Int32) {
	t.Helper()

	sock := filepath.Join(t.TempDir(), "kvh.sock")
	l, err := net.Listen("unix", sock)
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })

	var accepts atomic.Int32
	go func() {
		for {
			conn, err := l.Accept()
			if err != nil {
				return
			}
			n := accepts.Add(1)
			go func() {
				defer conn.Close()
				handle(n, conn)
			}()
		}
	}()
	return sock, &accepts
}

// answer replies to one request with a found value.
func answer(conn net.Conn, value string) {
	var req store.Request
	if err := json.NewDecoder(conn).Decode(&req); err != nil {
		return
	}
	_ = json.NewEncoder(conn).Encode(store.Response{OK: true, Found: true, Value: value})
}

// hang reads until the peer gives up.
func hang(conn net.Conn) { _, _ = io.Copy(io.Discard, conn) }

func TestRemoteRetriesDroppedConnection(t *testing.T) {
	sock, accepts := scripted(t, func(n int32, conn net.Conn) {
		if n == 1 {
			return
		}
		answer(conn, "v")
	})

	client := store.NewRemote("unix", sock, store.WithRetries(2))
	got, err := client.Get(context.Background(), "k")
	require.NoError(t, err)
	assert.Equal(t, store.Found("v"), got)
	assert.Equal(t, int32(2), accepts.Load())
}

type failingKV struct{ *store.Memory }

func (failingKV) Get(context.Context, string) (store.Lookup, error) {
	return store.Absent, errors.New("disk full")
}

type countingListener struct {
	net.Listener
	accepts atomic.Int32
}

func (l *countingListener) Accept() (net.Conn, error) {
	conn, err := l.Listener.Accept()
	if err == nil {
		l.accepts.Add(1)
	}
	return conn, err
}

func TestRemoteDoesNotRetryStoreErrors(t *testing.T) {
	sock := filepath.Join(t.TempDir(), "kvh.sock")
	inner, err := net.Listen("unix", sock)
	require.NoError(t, err)
	l := &countingListener{Listener: inner}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	srv := New(failingKV{store.NewMemory()}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	go func() { _ = srv.Serve(ctx, l) }()

	client := store.NewRemote("unix", sock, store.WithRetries(3))
	_, err = client.Get(context.Background(), "k")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.Equal(t, int32(1), l.accepts.Load())
}

func TestRemoteRetriesHungAttemptWithinDeadline(t *testing.T) {
	sock, accepts := scripted(t, func(n int32, conn net.Conn) {
		if n == 1 {
			hang(conn)
			return
		}
		answer(conn, "v")
	})

	client := store.NewRemote("unix", sock,
		store.WithRetries(2),
		store.WithTimeout(5*time.Second),
	)
	h := handler.NewKeyValue(client, slog.New(slog.NewTextHandler(io.Discard, nil)),
		handler.WithStoreTimeout(900*time.Millisecond))

	start := time.Now()
	resp := h.Handle(context.Background(),
		envelope.NewRequest("GET", map[string]string{"key": "k"}, nil))
	elapsed := time.Since(start)

	var body handler.KVBody
	require.NoError(t, json.Unmarshal(resp.Body, &body))
	assert.Equal(t, 200, body.Status)
	assert.Equal(t, "v", body.Body)
	assert.Equal(t, int32(2), accepts.Load())
	assert.Less(t, elapsed, 900*time.Millisecond)
}

func TestServeReturnsWhenListenerClosed(t *testing.T) {
	sock := filepath.Join(t.TempDir(), "kvh.sock")
	l, err := net.Listen("unix", sock)
	require.NoError(t, err)

	done := make(chan error, 1)
	srv := New(store.NewMemory(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	go func() { done <- srv.Serve(context.Background(), l) }()

	// keep a connection open across the listener close
	conn, err := net.Dial("unix", sock)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, json.NewEncoder(conn).Encode(store.Request{Op: store.OpPut, Key: "k", Value: "v"}))
	var resp store.Response
	require.NoError(t, json.NewDecoder(conn).Decode(&resp))
	require.True(t, resp.OK)

	require.NoError(t, l.Close())
	select {
	case err := <-done:
		assert.ErrorIs(t, err, net.ErrClosed)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after the listener was closed")
	}
}
