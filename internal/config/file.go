package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

//go:embed kvh.yaml
var defaultYAML []byte

// ConfigName is the base name of the config file, without extension.
const ConfigName = "kvh"

// ReadFile points v at dir/kvh.yaml, creating it from the bundled default
// when it does not exist, and reads it.
func ReadFile(v *viper.Viper, dir string) (string, error) {
	path := filepath.Join(dir, fmt.Sprintf("%s.yaml", ConfigName))
	if err := touch(path); err != nil {
		return "", err
	}
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return "", err
	}
	return path, nil
}

// DefaultDir is ~/.config.
func DefaultDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config"), nil
}

func touch(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, defaultYAML, 0o644)
}
