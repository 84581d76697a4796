package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/leonardcser/kv-handlers/internal/app"
	"github.com/leonardcser/kv-handlers/internal/config"
)

var (
	cfgDir string
	v      = viper.New()
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "kvh",
	Short: "Serves the key-value and countries handlers",
	Long: `kvh serves a key-value CRUD handler and a static countries handler.

Both handlers answer with a JSON envelope carrying a status, a body and the
execution time of the invocation. They can be reached over HTTP (kvh http)
or as MCP tools over stdio (kvh mcp).`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		if cmd.Name() == "version" {
			return nil
		}
		return initConfig()
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Prints version and build date",
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Printf("\nversion: %s\nbuild: %s\n\n", app.Version, app.Build)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgDir, "config-dir", "", "directory holding kvh.yaml (default ~/.config)")
	rootCmd.PersistentFlags().String("backend", "", "store backend: bolt, badger, memory or remote")
	rootCmd.PersistentFlags().String("log-level", "", "logging level: debug, info, warn or error")
	_ = v.BindPFlag("backend", rootCmd.PersistentFlags().Lookup("backend"))
	_ = v.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))

	rootCmd.AddCommand(versionCmd, httpCmd, mcpCmd)
}

// initConfig reads in config file and ENV variables if set.
func initConfig() error {
	dir := cfgDir
	if dir == "" {
		var err error
		if dir, err = config.DefaultDir(); err != nil {
			slog.Error("Cannot find home dir", "error", err)
			return err
		}
	}
	if _, err := config.ReadFile(v, dir); err != nil {
		slog.Error("Cannot read config file", "dir", dir, "error", err)
		return err
	}
	return nil
}
