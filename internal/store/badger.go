package store

import (
	"context"
	"os"
	"sync"

	"github.com/dgraph-io/badger/v2"
	"github.com/pkg/errors"
)

// Badger is a KV backed by a badger database directory.
type Badger struct {
	db *badger.DB
	mu sync.RWMutex
}

// OpenBadger opens (or creates) a badger store in dir. An empty dir keeps
// the whole database in memory.
func OpenBadger(dir string) (*Badger, error) {
	var options badger.Options
	if dir == "" {
		options = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errors.Wrap(err, "badger: create directory")
		}
		options = badger.DefaultOptions(dir)
	}
	options.Logger = nil

	bdb, err := badger.Open(options)
	if err != nil {
		return nil, errors.Wrap(err, "badger: open")
	}
	return &Badger{db: bdb}, nil
}

func (s *Badger) Put(ctx context.Context, key, value string) error {
	if err := checkKey(key); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.db == nil {
		return ErrClosed
	}
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), []byte(value))
	})
	return errors.Wrap(err, "badger: put")
}

func (s *Badger) Get(ctx context.Context, key string) (Lookup, error) {
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
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err == badger.ErrKeyNotFound {
			return nil
		} else if err != nil {
			return err
		}
		val, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		out = Found(string(val))
		return nil
	})
	if err != nil {
		return Absent, errors.Wrap(err, "badger: get")
	}
	return out, nil
}

func (s *Badger) Delete(ctx context.Context, key string) error {
	if err := checkKey(key); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.db == nil {
		return ErrClosed
	}
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
	return errors.Wrap(err, "badger: delete")
}

func (s *Badger) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}
