package codegen

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// Write stores every file under dir. Each file is written to a temporary
// sibling and renamed into place so readers never see a partial file.
func Write(dir string, out *Output) error {
	for _, f := range out.Files {
		target := filepath.Join(dir, filepath.FromSlash(f.Path))
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return fmt.Errorf("create %s: %w", filepath.Dir(target), err)
		}
		if current, err := os.ReadFile(target); err == nil && bytes.Equal(current, f.Content) {
			continue
		}
		tmp, err := os.CreateTemp(filepath.Dir(target), ".saucer-*")
		if err != nil {
			return fmt.Errorf("write %s: %w", f.Path, err)
		}
		if _, err := tmp.Write(f.Content); err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
			return fmt.Errorf("write %s: %w", f.Path, err)
		}
		if err := tmp.Close(); err != nil {
			_ = os.Remove(tmp.Name())
			return fmt.Errorf("write %s: %w", f.Path, err)
		}
		if err := os.Chmod(tmp.Name(), 0o644); err != nil {
			_ = os.Remove(tmp.Name())
			return fmt.Errorf("write %s: %w", f.Path, err)
		}
		if err := os.Rename(tmp.Name(), target); err != nil {
			_ = os.Remove(tmp.Name())
			return fmt.Errorf("write %s: %w", f.Path, err)
		}
	}
	return nil
}

// Check compares out with what is on disk under dir and returns the paths
// that are missing or differ.
func Check(dir string, out *Output) ([]string, error) {
	var stale []string
	for _, f := range out.Files {
		current, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(f.Path)))
		if errors.Is(err, fs.ErrNotExist) {
			stale = append(stale, f.Path)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", f.Path, err)
		}
		if !bytes.Equal(current, f.Content) {
			stale = append(stale, f.Path)
		}
	}
	return stale, nil
}
