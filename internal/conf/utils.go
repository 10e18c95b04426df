package conf

import (
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"runtime"
)

// GetDefaultConfigPaths returns the directories searched for config.yaml.
// If one of them already holds a config.yaml, only that directory is returned.
func GetDefaultConfigPaths() ([]string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("error fetching user home directory: %w", err)
	}

	var configPaths []string
	switch runtime.GOOS {
	case "windows":
		exePath, err := os.Executable()
		if err != nil {
			return nil, fmt.Errorf("error fetching executable path: %w", err)
		}
		configPaths = []string{
			filepath.Dir(exePath),
			filepath.Join(homeDir, "AppData", "Local", "freshness"),
		}
	default:
		configPaths = []string{
			filepath.Join(homeDir, ".config", "freshness"),
			"/etc/freshness",
		}
	}

	for _, path := range configPaths {
		if _, err := os.Stat(filepath.Join(path, "config.yaml")); err == nil {
			return []string{path}, nil
		}
	}

	return configPaths, nil
}

// LedgerLifespans returns a copy of the configured lifespan table.
func (s *Settings) LedgerLifespans() map[string]int {
	return maps.Clone(s.Ledger.Lifespans)
}
