package paths

import (
	"os"
	"path/filepath"
)

const envHome = "CRS_HOME_DIR"

// Home returns the base directory for crous-sync configuration, logs and pid files.
// Defaults to ~/.crous-sync, can be overridden via CRS_HOME_DIR.
func Home() string {
	if v := os.Getenv(envHome); v != "" {
		return v
	}
	hd, err := os.UserHomeDir()
	if err != nil || hd == "" {
		return ".crous-sync"
	}
	return filepath.Join(hd, ".crous-sync")
}

func EnsureHome() (string, error) {
	h := Home()
	if err := os.MkdirAll(h, 0o755); err != nil {
		return "", err
	}
	return h, nil
}

// LogDir is where rotated log files are written.
func LogDir() string {
	return filepath.Join(Home(), "logs")
}
