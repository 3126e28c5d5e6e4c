package store

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/jmylchreest/regalert/internal/model"
)

// SchemaVersion is the current journal schema version.
const SchemaVersion = 1

// Journal records relevant inbound alerts, one JSON object per line.
type Journal interface {
	// Load reads all entries in arrival order.
	Load() ([]model.Entry, error)

	// Append adds an entry.
	Append(e model.Entry) error

	// Rewrite replaces the journal contents (used by prune).
	Rewrite(entries []model.Entry) error

	// Close releases file handles.
	Close() error
}

// schemaHeader is the first line of the JSONL file.
type schemaHeader struct {
	SchemaVersion int   `json:"regalert_schema_version"`
	CreatedAt     int64 `json:"created_at"`
}

// ErrJournalClosed is returned when operations are attempted on a closed journal.
var ErrJournalClosed = errors.New("journal is closed")

// JSONLJournal implements Journal using a JSONL file.
type JSONLJournal struct {
	mu     sync.Mutex
	path   string
	file   *os.File
	closed bool
}

// NewJSONLJournal opens or creates the journal at path.
func NewJSONLJournal(path string) (*JSONLJournal, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to open file %s: %w", path, err)
	}

	j := &JSONLJournal{
		path: path,
		file: file,
	}

	info, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return nil, err
	}

	if info.Size() == 0 {
		if err := j.writeHeader(); err != nil {
			_ = file.Close()
			return nil, err
		}
	}

	return j, nil
}

// Path returns the journal file path.
func (j *JSONLJournal) Path() string {
	return j.path
}

func (j *JSONLJournal) writeHeader() error {
	data, err := json.Marshal(schemaHeader{
		SchemaVersion: SchemaVersion,
		CreatedAt:     time.Now().Unix(),
	})
	if err != nil {
		return err
	}
	_, err = j.file.Write(append(data, '\n'))
	return err
}

// Load reads all entries from the journal.
// Malformed lines are skipped.
func (j *JSONLJournal) Load() ([]model.Entry, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.closed || j.file == nil {
		return nil, ErrJournalClosed
	}

	if _, err := j.file.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("seek %s: %w", j.path, err)
	}

	var entries []model.Entry
	scanner := bufio.NewScanner(j.file)
	const maxLineSize = 1024 * 1024
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)

	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		if lineNum == 1 {
			var header schemaHeader
			if err := json.Unmarshal(line, &header); err == nil && header.SchemaVersion > 0 {
				if header.SchemaVersion > SchemaVersion {
					return nil, fmt.Errorf("unsupported schema version %d (max: %d)",
						header.SchemaVersion, SchemaVersion)
				}
				continue
			}
		}

		var e model.Entry
		if err := json.Unmarshal(line, &e); err != nil {
			slog.Debug("skipping malformed journal line", "path", j.path, "line", lineNum, "error", err)
			continue
		}
		if e.ID != "" {
			entries = append(entries, e)
		}
	}

	if err := scanner.Err(); err != nil {
		return entries, fmt.Errorf("error reading file: %w", err)
	}

	if _, err := j.file.Seek(0, io.SeekEnd); err != nil {
		return entries, err
	}

	return entries, nil
}

// Append adds an entry and syncs it to disk.
func (j *JSONLJournal) Append(e model.Entry) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.closed || j.file == nil {
		return ErrJournalClosed
	}

	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	if _, err := j.file.Write(append(data, '\n')); err != nil {
		return err
	}
	return j.file.Sync()
}

// Rewrite replaces the journal with entries, keeping a backup until done.
func (j *JSONLJournal) Rewrite(entries []model.Entry) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.closed {
		return ErrJournalClosed
	}

	if j.file != nil {
		if err := j.file.Close(); err != nil {
			return err
		}
		j.file = nil
	}

	backupPath := j.path + ".bak"
	if err := os.Rename(j.path, backupPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to create backup: %w", err)
	}

	file, err := os.OpenFile(j.path, os.O_RDWR|os.O_CREATE|os.O_TRUNC|os.O_APPEND, 0600)
	if err != nil {
		_ = os.Rename(backupPath, j.path)
		return fmt.Errorf("failed to create new file: %w", err)
	}
	j.file = file

	if err := j.writeHeader(); err != nil {
		return err
	}
	for _, e := range entries {
		data, err := json.Marshal(e)
		if err != nil {
			return err
		}
		if _, err := j.file.Write(append(data, '\n')); err != nil {
			return err
		}
	}
	if err := j.file.Sync(); err != nil {
		return err
	}

	_ = os.Remove(backupPath)
	return nil
}

// Close releases the file handle.
func (j *JSONLJournal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.closed {
		return nil
	}
	j.closed = true

	if j.file != nil {
		err := j.file.Close()
		j.file = nil
		return err
	}
	return nil
}

// Prune drops entries logged before cutoff and keeps at most keep entries
// (0 = unlimited). It returns the number of entries removed.
func Prune(j Journal, cutoff time.Time, keep int) (int, error) {
	entries, err := j.Load()
	if err != nil {
		return 0, err
	}

	kept := make([]model.Entry, 0, len(entries))
	for _, e := range entries {
		if !cutoff.IsZero() && e.LoggedTime().Before(cutoff) {
			continue
		}
		kept = append(kept, e)
	}
	if keep > 0 && len(kept) > keep {
		kept = kept[len(kept)-keep:]
	}

	removed := len(entries) - len(kept)
	if removed == 0 {
		return 0, nil
	}
	return removed, j.Rewrite(kept)
}

// Alerts extracts the alerts from entries, in order. Session markers are
// skipped.
func Alerts(entries []model.Entry) []model.Alert {
	alerts := make([]model.Alert, 0, len(entries))
	for _, e := range entries {
		if e.IsSessionStart() {
			continue
		}
		alerts = append(alerts, e.Alert)
	}
	return alerts
}

// CurrentSession returns the entries journaled since the last session
// marker. Without a marker every entry is returned.
func CurrentSession(entries []model.Entry) []model.Entry {
	for i := len(entries) - 1; i >= 0; i-- {
		if entries[i].IsSessionStart() {
			return entries[i+1:]
		}
	}
	return entries
}
