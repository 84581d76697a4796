package app

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/leonardcser/kv-handlers/internal/store"
)

// DaemonBinary is the name of the store daemon executable.
const DaemonBinary = "kvh-store"

// startDaemon launches the store daemon in the background, looking next to
// this executable first, then on PATH, then in the working directory.
func startDaemon(configDir string) error {
	var candidates []string
	if exePath, err := os.Executable(); err == nil {
		candidates = append(candidates, filepath.Join(filepath.Dir(exePath), DaemonBinary))
	}
	if path, err := exec.LookPath(DaemonBinary); err == nil {
		candidates = append(candidates, path)
	}
	candidates = append(candidates, "./"+DaemonBinary)

	for _, c := range candidates {
		if _, err := os.Stat(c); err != nil {
			continue
		}
		return daemonCommand(c, configDir).Start()
	}
	return exec.ErrNotFound
}

// daemonCommand builds the daemon invocation. configDir, when set, makes the
// daemon read the same config file as this process.
func daemonCommand(path, configDir string) *exec.Cmd {
	var args []string
	if configDir != "" {
		args = append(args, "--config-dir", configDir)
	}
	cmd := exec.Command(path, args...)
	cmd.Stdout = nil
	cmd.Stderr = nil
	cmd.Env = os.Environ()
	return cmd
}

// waitFor polls r until it accepts connections or timeout elapses.
func waitFor(ctx context.Context, r *store.Remote, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	tick := time.NewTicker(200 * time.Millisecond)
	defer tick.Stop()
	for {
		err := r.Ping(ctx)
		if err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return err
		case <-tick.C:
		}
	}
}
