package main

import (
	"context"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/leonardcser/kv-handlers/internal/app"
	"github.com/leonardcser/kv-handlers/internal/handler"
	"github.com/leonardcser/kv-handlers/internal/httpapi"
	"github.com/leonardcser/kv-handlers/internal/store"
	"github.com/leonardcser/kv-handlers/internal/store/daemon"
)

var shareStore bool

var httpCmd = &cobra.Command{
	Use:   "http",
	Short: "Serves the handlers over HTTP",
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := app.New(v)
		if err != nil {
			return err
		}
		defer a.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		kv, err := a.OpenStore(ctx)
		if err != nil {
			a.Log.Error("Cannot open store", "error", err)
			return err
		}
		defer kv.Close()

		router := httpapi.NewRouter(a.Log, httpapi.Config{
			Version:   app.Version,
			AccessLog: os.Stderr,
			Routes: []httpapi.Route{
				{
					Name: "kv",
					Path: "/kv",
					Handler: handler.NewKeyValue(kv, a.Log,
						handler.WithStoreTimeout(a.Config.StoreTimeout)),
				},
				{Name: "countries", Path: "/countries", Handler: handler.Countries()},
			},
		})

		g, ctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			return httpapi.Serve(ctx, a.Log, a.Config.HTTPAddr, router)
		})
		if shareStore {
			if _, remote := kv.(*store.Remote); remote {
				a.Log.Warn("Ignoring --share-store: backend is already remote")
			} else {
				g.Go(func() error { return serveStore(ctx, a, kv) })
			}
		}
		return g.Wait()
	},
}

func init() {
	httpCmd.Flags().String("addr", "", "HTTP listen address")
	httpCmd.Flags().BoolVar(&shareStore, "share-store", false,
		"also serve the opened store to kvh-store clients on the configured socket")
	_ = v.BindPFlag("http_addr", httpCmd.Flags().Lookup("addr"))
}

// serveStore exposes kv on the configured socket until ctx is done.
func serveStore(ctx context.Context, a *app.App, kv store.KV) error {
	if a.Config.Network == "unix" {
		_ = os.Remove(a.Config.Socket)
	}
	l, err := net.Listen(a.Config.Network, a.Config.Socket)
	if err != nil {
		return err
	}
	return daemon.New(kv, a.Log).Serve(ctx, l)
}
