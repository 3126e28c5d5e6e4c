package store

import (
	"os"
	"path/filepath"
)

// DataDir returns the path to the regalert data directory.
// Uses XDG_DATA_HOME or defaults to ~/.local/share/regalert.
func DataDir() (string, error) {
	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		dataHome = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dataHome, "regalert"), nil
}

// JournalPath returns the default journal file path.
func JournalPath() (string, error) {
	dataDir, err := DataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dataDir, "journal.jsonl"), nil
}
