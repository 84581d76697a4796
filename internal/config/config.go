// Package config holds the settings shared by the server and the store
// daemon.
package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"

	"github.com/leonardcser/kv-handlers/internal/logger"
	"github.com/leonardcser/kv-handlers/internal/store"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "KVH"

// Config is a struct that holds configuration parameters for the binaries.
type Config struct {
	// Backend is one of bolt, badger, memory or remote.
	Backend string

	// BoltPath is the bbolt file used by the bolt backend.
	BoltPath string

	// BadgerDir is the directory of the badger backend. Empty keeps the
	// badger database in memory.
	BadgerDir string

	// Network is unix or tcp, for the store daemon and the remote backend.
	Network string

	// Socket is the daemon address: a socket path for unix, host:port for tcp.
	Socket string

	// HTTPAddr is the listen address of the HTTP adapter.
	HTTPAddr string

	// StoreTimeout bounds the store work of one request, retries included.
	StoreTimeout time.Duration

	// StoreRoundTripTimeout bounds one round trip of the remote backend. It
	// should leave room for StoreRetries retries within StoreTimeout.
	StoreRoundTripTimeout time.Duration

	// StoreRetries is how often the remote backend retries a failed
	// round trip.
	StoreRetries int

	LogLevel  string
	LogFormat string
	LogFile   string
}

// Option type allows to change settings for Config.
type Option func(*Config)

func OptBackend(s string) Option { return func(c *Config) { c.Backend = s } }

func OptBoltPath(s string) Option { return func(c *Config) { c.BoltPath = s } }

func OptBadgerDir(s string) Option { return func(c *Config) { c.BadgerDir = s } }

func OptNetwork(s string) Option { return func(c *Config) { c.Network = s } }

func OptSocket(s string) Option { return func(c *Config) { c.Socket = s } }

func OptHTTPAddr(s string) Option { return func(c *Config) { c.HTTPAddr = s } }

// OptStoreTimeout ignores non-positive durations.
func OptStoreTimeout(d time.Duration) Option {
	return func(c *Config) {
		if d > 0 {
			c.StoreTimeout = d
		}
	}
}

// OptStoreRoundTripTimeout ignores non-positive durations.
func OptStoreRoundTripTimeout(d time.Duration) Option {
	return func(c *Config) {
		if d > 0 {
			c.StoreRoundTripTimeout = d
		}
	}
}

// OptStoreRetries ignores negative counts.
func OptStoreRetries(n int) Option {
	return func(c *Config) {
		if n >= 0 {
			c.StoreRetries = n
		}
	}
}

func OptLogLevel(s string) Option { return func(c *Config) { c.LogLevel = s } }

func OptLogFormat(s string) Option { return func(c *Config) { c.LogFormat = s } }

func OptLogFile(s string) Option { return func(c *Config) { c.LogFile = s } }

// New returns the default configuration with opts applied.
func New(opts ...Option) Config {
	dir := cacheDir()
	cfg := Config{
		Backend:      store.BackendBolt,
		BoltPath:     filepath.Join(dir, "kvh.bolt"),
		BadgerDir:    filepath.Join(dir, "badger"),
		Network:      "unix",
		Socket:       filepath.Join(dir, "store.sock"),
		HTTPAddr:     "localhost:8080",
		StoreTimeout: 5 * time.Second,
		StoreRetries: 2,
		LogLevel:     "info",
		LogFormat:    logger.FormatText,

		StoreRoundTripTimeout: 1500 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// Store returns the store options described by the config.
func (c Config) Store() store.Options {
	return store.Options{
		Backend:   c.Backend,
		BoltPath:  c.BoltPath,
		BadgerDir: c.BadgerDir,
		Network:   c.Network,
		Address:   c.Socket,
		Timeout:   c.StoreTimeout,
		Retries:   c.StoreRetries,

		RoundTripTimeout: c.StoreRoundTripTimeout,
	}
}

// Logger returns the logger options described by the config.
func (c Config) Logger() logger.Config {
	return logger.Config{Level: c.LogLevel, Format: c.LogFormat, File: c.LogFile}
}

type cfgData struct {
	Backend      string        `mapstructure:"backend"`
	BoltPath     string        `mapstructure:"bolt_path"`
	BadgerDir    string        `mapstructure:"badger_dir"`
	Network      string        `mapstructure:"network"`
	Socket       string        `mapstructure:"socket"`
	HTTPAddr     string        `mapstructure:"http_addr"`
	StoreTimeout time.Duration `mapstructure:"store_timeout"`
	RoundTrip    time.Duration `mapstructure:"store_round_trip_timeout"`
	StoreRetries *int          `mapstructure:"store_retries"`
	LogLevel     string        `mapstructure:"log_level"`
	LogFormat    string        `mapstructure:"log_format"`
	LogFile      string        `mapstructure:"log_file"`
}

// Keys lists every setting Load understands.
var Keys = []string{
	"backend", "bolt_path", "badger_dir", "network", "socket", "http_addr",
	"store_timeout", "store_round_trip_timeout", "store_retries", "log_level", "log_format", "log_file",
}

// Load converts settings found in v (config file, KVH_* environment
// variables, bound flags) into options. Unset settings keep their defaults.
func Load(v *viper.Viper) ([]Option, error) {
	v.SetEnvPrefix(EnvPrefix)
	for _, k := range Keys {
		if err := v.BindEnv(k); err != nil {
			return nil, err
		}
	}

	var cfg cfgData
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	var opts []Option
	if cfg.Backend != "" {
		opts = append(opts, OptBackend(cfg.Backend))
	}
	if cfg.BoltPath != "" {
		opts = append(opts, OptBoltPath(cfg.BoltPath))
	}
	if v.IsSet("badger_dir") {
		opts = append(opts, OptBadgerDir(cfg.BadgerDir))
	}
	if cfg.Network != "" {
		opts = append(opts, OptNetwork(cfg.Network))
	}
	if cfg.Socket != "" {
		opts = append(opts, OptSocket(cfg.Socket))
	}
	if cfg.HTTPAddr != "" {
		opts = append(opts, OptHTTPAddr(cfg.HTTPAddr))
	}
	if cfg.StoreTimeout != 0 {
		opts = append(opts, OptStoreTimeout(cfg.StoreTimeout))
	}
	if cfg.RoundTrip != 0 {
		opts = append(opts, OptStoreRoundTripTimeout(cfg.RoundTrip))
	}
	if cfg.StoreRetries != nil {
		opts = append(opts, OptStoreRetries(*cfg.StoreRetries))
	}
	if cfg.LogLevel != "" {
		opts = append(opts, OptLogLevel(cfg.LogLevel))
	}
	if cfg.LogFormat != "" {
		opts = append(opts, OptLogFormat(cfg.LogFormat))
	}
	if cfg.LogFile != "" {
		opts = append(opts, OptLogFile(cfg.LogFile))
	}
	return opts, nil
}

func cacheDir() string {
	home, _ := os.UserHomeDir()
	if home == "" {
		home = "."
	}
	return filepath.Join(home, ".cache", "kv-handlers")
}
