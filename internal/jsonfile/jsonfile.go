// ABOUTME: JSON file persistence for the event collection.
// ABOUTME: Reads and atomically rewrites a pretty-printed array of events.

package jsonfile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/2389/monthcal/internal/event"
	"github.com/2389/monthcal/internal/schedule"
)

// Persister stores events as a JSON array at Path.
type Persister struct {
	Path string
}

// New returns a Persister for path.
func New(path string) *Persister {
	return &Persister{Path: path}
}

// Load reads the stored events. A missing file is an empty collection.
func (p *Persister) Load(_ context.Context) ([]event.Event, error) {
	if p.Path == "" {
		return nil, errors.New("events path is empty")
	}
	data, err := os.ReadFile(p.Path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}

	var events []event.Event
	if err := json.Unmarshal(data, &events); err != nil {
		return nil, fmt.Errorf("decode %s: %w", p.Path, err)
	}
	return events, nil
}

// Save replaces the file contents with events.
func (p *Persister) Save(ctx context.Context, events []event.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := schedule.MarshalExport(events)
	if err != nil {
		return err
	}
	return WriteFileAtomic(p.Path, data)
}

// WriteExport writes an export artifact into dir under its own file name and
// returns the full path.
func WriteExport(dir string, exp schedule.Export) (string, error) {
	path := filepath.Join(dir, exp.FileName)
	if err := WriteFileAtomic(path, exp.Data); err != nil {
		return "", err
	}
	return path, nil
}

// WriteFileAtomic writes data to a temp file next to path, then renames it
// into place with 0600 permissions. The parent directory is created 0700.
func WriteFileAtomic(path string, data []byte) error {
	if path == "" {
		return errors.New("path is empty")
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".monthcal-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
