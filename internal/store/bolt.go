package store

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/pkg/errors"
	bolt "go.etcd.io/bbolt"
)

// Bolt is a KV persisted in a single bbolt file.
type Bolt struct {
	db     *bolt.DB
	bucket []byte
	mu     sync.RWMutex
}

// BoltOptions configures OpenBolt.
type BoltOptions struct {
	// Bucket is the name of the Bolt bucket to use.
	Bucket string
	// Timeout bounds how long Open waits for the file lock.
	Timeout time.Duration
}

// OpenBolt initializes or opens a Bolt store at the given path.
func OpenBolt(path string, opts BoltOptions) (*Bolt, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errors.Wrap(err, "bolt: create directory")
		}
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = time.Second
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: timeout})
	if err != nil {
		return nil, errors.Wrapf(err, "bolt: open %s", path)
	}
	bucket := []byte("records")
	if opts.Bucket != "" {
		bucket = []byte(opts.Bucket)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucket)
		return err
	}); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "bolt: create bucket")
	}
	return &Bolt{db: db, bucket: bucket}, nil
}

func (s *Bolt) Put(ctx context.Context, key, value string) error {
	if err := checkKey(key); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return ErrClosed
	}
	err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(s.bucket).Put([]byte(key), []byte(value))
	})
	return errors.Wrap(err, "bolt: put")
}

func (s *Bolt) Get(ctx context.Context, key string) (Lookup, error) {
	if err := checkKey(key); err != nil {
		return Absent, err
	}
	if err := ctx.Err(); err != nil {
		return Absent, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.db == nil {
		return Absent, ErrClosed
	}
	out := Absent
	if err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(s.bucket).Get([]byte(key))
		if v == nil {
			return nil
		}
		// v is only valid for the life of the transaction
		out = Found(string(v))
		return nil
	}); err != nil {
		return Absent, errors.Wrap(err, "bolt: get")
	}
	return out, nil
}

func (s *Bolt) Delete(ctx context.Context, key string) error {
	if err := checkKey(key); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return ErrClosed
	}
	err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(s.bucket).Delete([]byte(key))
	})
	return errors.Wrap(err, "bolt: delete")
}

// Close closes the underlying database.
func (s *Bolt) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}
