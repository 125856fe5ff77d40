package storage

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Archive keeps generated report files on local disk. Files are
// addressed by the relative name recorded on the report job; names
// resolving outside the root directory are rejected.
type Archive struct {
	root string
}

// NewArchive creates the archive root if it does not exist yet.
func NewArchive(root string) (*Archive, error) {
	if root == "" {
		root = "./reports"
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create report archive: %w", err)
	}
	return &Archive{root: root}, nil
}

// Save writes one rendered report under the given name.
func (a *Archive) Save(name string, data []byte) error {
	path, err := a.resolve(name)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("prepare report directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write report %s: %w", name, err)
	}
	return nil
}

// Open returns a read-only handle on a stored report.
func (a *Archive) Open(name string) (*os.File, error) {
	path, err := a.resolve(name)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open report %s: %w", name, err)
	}
	return file, nil
}

// Delete removes a stored report. A file that is already gone is not
// an error.
func (a *Archive) Delete(name string) error {
	path, err := a.resolve(name)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete report %s: %w", name, err)
	}
	return nil
}

// RemoveOlderThan deletes files whose modification time passed the
// retention window and returns how many were removed. It catches files
// whose job rows were already cleaned up.
func (a *Archive) RemoveOlderThan(ttl time.Duration) (int, error) {
	cutoff := time.Now().Add(-ttl)
	removed := 0
	err := filepath.WalkDir(a.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		if info.ModTime().After(cutoff) {
			return nil
		}
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return err
		}
		removed++
		return nil
	})
	if err != nil {
		return removed, fmt.Errorf("sweep report archive: %w", err)
	}
	return removed, nil
}

func (a *Archive) resolve(name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("empty report name")
	}
	path := filepath.Join(a.root, name)
	rel, err := filepath.Rel(a.root, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("report name %q escapes the archive", name)
	}
	return path, nil
}
