package main

import (
	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/leonardcser/kv-handlers/internal/app"
	"github.com/leonardcser/kv-handlers/internal/handler"
	"github.com/leonardcser/kv-handlers/internal/tools"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serves the handlers as MCP tools over stdio",
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := app.New(v)
		if err != nil {
			return err
		}
		defer a.Close()

		a.Log.Info("Starting MCP server")
		kv, err := a.OpenStore(cmd.Context())
		if err != nil {
			a.Log.Error("Cannot open store", "error", err)
			return err
		}
		defer kv.Close()

		s := server.NewMCPServer(
			"kvh",
			app.Version,
			server.WithRecovery(),
			server.WithToolCapabilities(false),
		)
		tools.Register(s,
			handler.NewKeyValue(kv, a.Log, handler.WithStoreTimeout(a.Config.StoreTimeout)),
			handler.Countries(),
		)
		a.Log.Info("Registered tools, serving on stdio")

		if err := server.ServeStdio(s); err != nil {
			a.Log.Error("server error", "error", err)
			return err
		}
		return nil
	},
}
