package main

import (
	"context"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/leonardcser/kv-handlers/internal/app"
	"github.com/leonardcser/kv-handlers/internal/config"
	"github.com/leonardcser/kv-handlers/internal/store"
	"github.com/leonardcser/kv-handlers/internal/store/daemon"
)

var (
	cfgDir string
	v      = viper.New()
)

var rootCmd = &cobra.Command{
	Use:          "kvh-store",
	Short:        "Serves a local key-value store to kvh over a socket",
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, _ []string) error {
		dir := cfgDir
		if dir == "" {
			var err error
			if dir, err = config.DefaultDir(); err != nil {
				return err
			}
		}
		if _, err := config.ReadFile(v, dir); err != nil {
			return err
		}

		a, err := app.New(v)
		if err != nil {
			return err
		}
		defer a.Close()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return run(ctx, a)
	},
}

func run(ctx context.Context, a *app.App) error {
	opts := a.Config.Store()
	if opts.Backend == store.BackendRemote {
		// the daemon is the remote end; it needs a local backend
		opts.Backend = store.BackendBolt
	}
	kv, err := store.Open(opts)
	if err != nil {
		a.Log.Error("Cannot open store", "backend", opts.Backend, "error", err)
		return err
	}
	defer kv.Close()

	network, addr := a.Config.Network, a.Config.Socket
	if network == "unix" {
		// Ensure socket dir exists and remove stale socket
		_ = os.MkdirAll(filepath.Dir(addr), 0o755)
		_ = os.Remove(addr)
	}
	l, err := net.Listen(network, addr)
	if err != nil {
		a.Log.Error("Cannot listen", "network", network, "addr", addr, "error", err)
		return err
	}
	if network == "unix" {
		_ = os.Chmod(addr, 0o600)
	}

	a.Log.Info("Serving store", "backend", opts.Backend, "network", network, "addr", addr)
	return daemon.New(kv, a.Log).Serve(ctx, l)
}

func init() {
	rootCmd.Flags().StringVar(&cfgDir, "config-dir", "", "directory holding kvh.yaml (default ~/.config)")
	rootCmd.Flags().String("backend", "", "local store backend: bolt, badger or memory")
	rootCmd.Flags().String("socket", "", "listen address")
	_ = v.BindPFlag("backend", rootCmd.Flags().Lookup("backend"))
	_ = v.BindPFlag("socket", rootCmd.Flags().Lookup("socket"))
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
