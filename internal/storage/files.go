package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"squadbot/internal/model"
)

const cursorFile = "github.json"

// Files implements Storage with one plain-text MOTD file and one JSON opt-out
// list per server, plus a shared JSON cursor file.
type Files struct {
	dir string
}

// NewFiles returns a Files store rooted at dir, creating it if needed.
func NewFiles(dir string) (*Files, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}
	return &Files{dir: dir}, nil
}

// MotdPath returns the path of the MOTD text file for server.
func (f *Files) MotdPath(server string) string {
	return filepath.Join(f.dir, server+".motd")
}

// OptOutPath returns the path of the MOTD opt-out list for server.
func (f *Files) OptOutPath(server string) string {
	return filepath.Join(f.dir, server+".nomotd.json")
}

// CursorPath returns the path of the activity cursor file.
func (f *Files) CursorPath() string {
	return filepath.Join(f.dir, cursorFile)
}

// Close is a no-op.
func (f *Files) Close() error { return nil }

// LoadMotd reads the MOTD text for server.
func (f *Files) LoadMotd(_ context.Context, server string) (string, error) {
	data, err := readFile(f.MotdPath(server))
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// SaveMotd replaces the MOTD text for server.
func (f *Files) SaveMotd(_ context.Context, server, text string) error {
	return writeFile(f.MotdPath(server), []byte(text))
}

// LoadOptOuts reads the opt-out list for server.
func (f *Files) LoadOptOuts(_ context.Context, server string) ([]string, error) {
	data, err := readFile(f.OptOutPath(server))
	if err != nil {
		return nil, err
	}
	var users []string
	if err := json.Unmarshal(data, &users); err != nil {
		return nil, fmt.Errorf("decode opt-out list: %w", err)
	}
	return users, nil
}

// SaveOptOuts replaces the opt-out list for server.
func (f *Files) SaveOptOuts(_ context.Context, server string, users []string) error {
	if users == nil {
		users = []string{}
	}
	data, err := json.Marshal(users)
	if err != nil {
		return fmt.Errorf("encode opt-out list: %w", err)
	}
	return writeFile(f.OptOutPath(server), data)
}

// LoadCursor reads the activity cursor.
func (f *Files) LoadCursor(_ context.Context) (model.Cursor, error) {
	data, err := readFile(f.CursorPath())
	if err != nil {
		return model.Cursor{}, err
	}
	var c model.Cursor
	if err := json.Unmarshal(data, &c); err != nil {
		return model.Cursor{}, fmt.Errorf("decode cursor: %w", err)
	}
	return c, nil
}

// SaveCursor replaces the activity cursor.
func (f *Files) SaveCursor(_ context.Context, c model.Cursor) error {
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode cursor: %w", err)
	}
	return writeFile(f.CursorPath(), data)
}

func readFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	return data, nil
}

// writeFile replaces path through a temp file and rename.
func writeFile(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", filepath.Base(path), err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename %s: %w", filepath.Base(path), err)
	}
	return nil
}
