package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrNetworkFilesystem is returned for a database path on a network mount,
// where SQLite file locking cannot be trusted.
var ErrNetworkFilesystem = errors.New("sqlite requires a local filesystem")

// fsTypeFunc names the filesystem holding an existing path.
type fsTypeFunc func(path string) (string, error)

var remoteFS = []string{"afpfs", "cifs", "nfs", "smb2", "smbfs", "webdav"}

func isRemote(fsType string) bool {
	fsType = strings.ToLower(strings.TrimSpace(fsType))
	for _, r := range remoteFS {
		if fsType == r {
			return true
		}
	}
	return false
}

// requireLocal fails when the database at path would live on a network
// filesystem. A path that does not exist yet is judged by its nearest
// existing ancestor.
func requireLocal(path string, fsType fsTypeFunc) error {
	dir, err := existingAncestor(path)
	if err != nil {
		return fmt.Errorf("resolve database path %q: %w", path, err)
	}
	kind, err := fsType(dir)
	if err != nil {
		return fmt.Errorf("detect filesystem for %q: %w", dir, err)
	}
	if isRemote(kind) {
		return fmt.Errorf("trace database %q is on %s: %w; pass a local path with --db", path, kind, ErrNetworkFilesystem)
	}
	return nil
}

func existingAncestor(path string) (string, error) {
	p, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	for {
		_, err := os.Stat(p)
		switch {
		case err == nil:
			return p, nil
		case !errors.Is(err, os.ErrNotExist):
			return "", err
		}
		parent := filepath.Dir(p)
		if parent == p {
			return "", fmt.Errorf("no existing ancestor")
		}
		p = parent
	}
}
