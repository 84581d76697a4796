// Package store holds the narrow key-value contract the handlers persist
// records through, and its backends.
package store

import (
	"context"

	"github.com/pkg/errors"
)

// KV defines the minimal record store contract. There is deliberately no
// listing operation. Implementations must be safe for concurrent use by
// multiple goroutines.
type KV interface {
	// Put upserts key with value.
	Put(ctx context.Context, key, value string) error
	// Get returns the stored value. A missing key is reported through
	// Lookup.Found, never as an error.
	Get(ctx context.Context, key string) (Lookup, error)
	// Delete removes key. Deleting a missing key is a no-op.
	Delete(ctx context.Context, key string) error
	Close() error
}

// Lookup is the outcome of a successful Get.
type Lookup struct {
	Value string
	Found bool
}

// Found returns a lookup for an existing record.
func Found(v string) Lookup { return Lookup{Value: v, Found: true} }

// Absent is the lookup for a missing record.
var Absent = Lookup{}

var (
	ErrEmptyKey = errors.New("store: empty key")
	ErrClosed   = errors.New("store: closed")
)

func checkKey(key string) error {
	if key == "" {
		return ErrEmptyKey
	}
	return nil
}
