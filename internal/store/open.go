package store

import (
	"time"

	"github.com/pkg/errors"
)

// Backend names accepted by Open.
const (
	BackendBolt   = "bolt"
	BackendBadger = "badger"
	BackendMemory = "memory"
	BackendRemote = "remote"
)

// Options selects and configures a backend.
type Options struct {
	Backend   string
	BoltPath  string
	BadgerDir string
	Network   string
	Address   string
	// Timeout bounds waiting for the bolt file lock.
	Timeout time.Duration
	// RoundTripTimeout bounds one remote round trip.
	RoundTripTimeout time.Duration
	Retries          int
}

// Open returns the backend named by opts.Backend. The caller owns the
// returned KV and must Close it.
func Open(opts Options) (KV, error) {
	switch opts.Backend {
	case BackendBolt:
		if opts.BoltPath == "" {
			return nil, errors.New("store: bolt backend needs a path")
		}
		return OpenBolt(opts.BoltPath, BoltOptions{Timeout: opts.Timeout})
	case BackendBadger:
		return OpenBadger(opts.BadgerDir)
	case BackendMemory, "":
		return NewMemory(), nil
	case BackendRemote:
		if opts.Address == "" {
			return nil, errors.New("store: remote backend needs an address")
		}
		network := opts.Network
		if network == "" {
			network = "unix"
		}
		return NewRemote(network, opts.Address,
			WithTimeout(opts.RoundTripTimeout),
			WithRetries(opts.Retries),
		), nil
	default:
		return nil, errors.Errorf("store: unknown backend %q", opts.Backend)
	}
}
