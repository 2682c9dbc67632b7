package logging

import (
	"os"
	"path/filepath"
)

// DefaultLogDir returns ~/.docsmcp/logs, or a temp-dir equivalent when the
// home directory cannot be resolved.
func DefaultLogDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".docsmcp", "logs")
	}
	return filepath.Join(home, ".docsmcp", "logs")
}

// DefaultLogPath returns the server log path.
func DefaultLogPath() string {
	return filepath.Join(DefaultLogDir(), "server.log")
}
