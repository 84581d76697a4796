package store

import (
	"context"
	"encoding/json"
	"net"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/pkg/errors"
)

// Remote implements KV by talking to a store daemon over a socket.
// Transport failures are retried; errors reported by the daemon are not.
type Remote struct {
	network string
	address string
	dialer  net.Dialer
	retries uint64
	timeout time.Duration
}

// RemoteOption customizes a Remote.
type RemoteOption func(*Remote)

// WithRetries sets how many times a failed round trip is retried.
func WithRetries(n int) RemoteOption {
	return func(r *Remote) {
		if n >= 0 {
			r.retries = uint64(n)
		}
	}
}

// WithTimeout bounds a single round trip, dial included. A caller deadline
// shorter than the remaining attempts would need shrinks it further.
func WithTimeout(d time.Duration) RemoteOption {
	return func(r *Remote) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// NewRemote returns a client for the daemon listening on network/address,
// e.g. ("unix", "/tmp/kvh.sock") or ("tcp", "127.0.0.1:7070").
func NewRemote(network, address string, opts ...RemoteOption) *Remote {
	r := &Remote{
		network: network,
		address: address,
		retries: 2,
		timeout: 2 * time.Second,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.dialer.Timeout = r.timeout
	return r
}

// Ping checks that the daemon accepts connections.
func (r *Remote) Ping(ctx context.Context) error {
	conn, err := r.dialer.DialContext(ctx, r.network, r.address)
	if err != nil {
		return errors.Wrapf(err, "remote: dial %s", r.address)
	}
	return conn.Close()
}

func (r *Remote) Put(ctx context.Context, key, value string) error {
	if err := checkKey(key); err != nil {
		return err
	}
	_, err := r.do(ctx, Request{Op: OpPut, Key: key, Value: value})
	return err
}

func (r *Remote) Get(ctx context.Context, key string) (Lookup, error) {
	if err := checkKey(key); err != nil {
		return Absent, err
	}
	resp, err := r.do(ctx, Request{Op: OpGet, Key: key})
	if err != nil {
		return Absent, err
	}
	if !resp.Found {
		return Absent, nil
	}
	return Found(resp.Value), nil
}

func (r *Remote) Delete(ctx context.Context, key string) error {
	if err := checkKey(key); err != nil {
		return err
	}
	_, err := r.do(ctx, Request{Op: OpDelete, Key: key})
	return err
}

// Close is a no-op; connections are opened per round trip.
func (r *Remote) Close() error { return nil }

func (r *Remote) do(ctx context.Context, req Request) (Response, error) {
	var (
		resp    Response
		attempt uint64
	)
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 50 * time.Millisecond
	policy.MaxInterval = time.Second
	b := backoff.WithContext(backoff.WithMaxRetries(policy, r.retries), ctx)

	err := backoff.Retry(func() error {
		attemptsLeft := r.retries + 1 - attempt
		attempt++

		var err error
		resp, err = r.roundTrip(ctx, req, r.budget(ctx, attemptsLeft))
		if err != nil {
			return err
		}
		if !resp.OK {
			return backoff.Permanent(errors.Errorf("remote: %s %s: %s", req.Op, req.Key, resp.Error))
		}
		return nil
	}, b)
	if err != nil {
		return Response{}, err
	}
	return resp, nil
}

// budget is the time one round trip may take: the configured timeout, or
// an even share of what is left of the caller's deadline if that is
// shorter, so a hung attempt cannot starve the retries behind it.
func (r *Remote) budget(ctx context.Context, attemptsLeft uint64) time.Duration {
	deadline, ok := ctx.Deadline()
	if !ok || attemptsLeft == 0 {
		return r.timeout
	}
	share := time.Until(deadline) / time.Duration(attemptsLeft)
	if share > 0 && share < r.timeout {
		return share
	}
	return r.timeout
}

func (r *Remote) roundTrip(ctx context.Context, req Request, timeout time.Duration) (Response, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	conn, err := r.dialer.DialContext(ctx, r.network, r.address)
	if err != nil {
		return Response{}, errors.Wrapf(err, "remote: dial %s", r.address)
	}
	defer conn.Close()
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	if err := json.NewEncoder(conn).Encode(&req); err != nil {
		return Response{}, errors.Wrap(err, "remote: send")
	}
	var resp Response
	if err := json.NewDecoder(conn).Decode(&resp); err != nil {
		return Response{}, errors.Wrap(err, "remote: receive")
	}
	return resp, nil
}
