// Package app wires configuration, logging and the store for the binaries.
package app

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/spf13/viper"

	"github.com/leonardcser/kv-handlers/internal/config"
	"github.com/leonardcser/kv-handlers/internal/logger"
	"github.com/leonardcser/kv-handlers/internal/store"
)

var (
	Version = "0.1.0"
	Build   = "n/a"
)

// App holds the process-wide dependencies. It is built once at startup and
// shared by every request.
type App struct {
	Config config.Config
	Log    *slog.Logger

	// configDir is where the config file was read from, if any. An
	// auto-started daemon is pointed at the same directory.
	configDir string
	release   func() error
}

// New loads the configuration from v and sets up logging.
func New(v *viper.Viper) (*App, error) {
	opts, err := config.Load(v)
	if err != nil {
		return nil, err
	}
	cfg := config.New(opts...)

	log, release, err := logger.New(cfg.Logger())
	if err != nil {
		return nil, err
	}
	slog.SetDefault(log)

	a := &App{Config: cfg, Log: log, release: release}
	if f := v.ConfigFileUsed(); f != "" {
		a.configDir = filepath.Dir(f)
	}
	return a, nil
}

// OpenStore opens the configured backend. For the remote backend it makes
// sure a daemon is reachable, starting one if needed.
func (a *App) OpenStore(ctx context.Context) (store.KV, error) {
	opts := a.Config.Store()
	kv, err := store.Open(opts)
	if err != nil {
		return nil, err
	}
	a.Log.Info("Opened store", "backend", opts.Backend)

	remote, ok := kv.(*store.Remote)
	if !ok {
		return kv, nil
	}
	a.Log.Info("Attempting to connect to store daemon", "addr", opts.Address)
	err = remote.Ping(ctx)
	if err == nil {
		return kv, nil
	}
	if opts.Network != "unix" {
		return nil, err
	}
	a.Log.Warn("Failed to connect to store daemon, attempting to start it", "error", err)
	if err := startDaemon(a.configDir); err != nil {
		a.Log.Error("Failed to start store daemon", "error", err)
	}
	if err := waitFor(ctx, remote, 5*time.Second); err != nil {
		return nil, err
	}
	a.Log.Info("Successfully connected to store daemon")
	return kv, nil
}

// Close releases the log output.
func (a *App) Close() error {
	if a.release == nil {
		return nil
	}
	return a.release()
}
