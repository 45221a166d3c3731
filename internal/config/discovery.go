package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// Discover finds the configuration file to use.
// Priority order: the explicit flag value, $SAUCER_CONFIG, then saucer.yaml
// in the working directory or any parent up to the filesystem root.
func Discover(flagValue string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	if p := os.Getenv(EnvConfig); p != "" {
		if _, err := os.Stat(p); err != nil {
			return "", fmt.Errorf("%s points to %s: %w", EnvConfig, p, err)
		}
		return p, nil
	}

	dir, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to get working directory: %w", err)
	}
	for {
		candidate := filepath.Join(dir, FileName)
		if fileExists(candidate) {
			return candidate, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", fmt.Errorf("no %s found (searched from working directory to root)\n"+
		"Hint: pass --config or set %s", FileName, EnvConfig)
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
