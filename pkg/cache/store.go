// Package cache manages the per-device directories of the local cache.
//
// Each device gets its own directory named after the UID it reports:
//
//	<cache root>/<UID>/fs/           mirror of the device's fs/
//	<cache root>/<UID>/_bak/<time>/  backups of the mirror
//	<cache root>/<UID>/version.json  last version info reported by the device
package cache

import (
	"context"
	"path"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"github.com/sidkik/cpsync/pkg/backup"
	"github.com/sidkik/cpsync/pkg/device"
	"github.com/sidkik/cpsync/pkg/errors"
)

// VersionFile is the name of the sidecar that records the device's version
// info.
const VersionFile = "version.json"

// VersionGetter identifies the device.
type VersionGetter interface {
	Version(ctx context.Context) (device.VersionInfo, error)
	URL() string
}

// Store is the cache directory for a single device.
type Store struct {
	fs      afero.Fs
	root    string
	version device.VersionInfo
}

// Bind asks the device for its identity, and returns the Store for it. The
// device's directory is created if it doesn't exist yet, and the version info
// is written into it.
func Bind(ctx context.Context, client VersionGetter, cacheRoot string, fs afero.Fs) (*Store, error) {
	version, err := client.Version(ctx)
	if err != nil {
		return nil, errors.WithContext(err, "get version info")
	}

	if !validUID(version.UID) {
		return nil, errors.UnknownDevice{URL: client.URL()}
	}

	store := &Store{
		fs:      fs,
		root:    filepath.Join(cacheRoot, version.UID),
		version: version,
	}

	if err := fs.MkdirAll(store.root, 0755); err != nil {
		return nil, errors.WithContext(err, "create cache directory")
	}

	if err := afero.WriteFile(fs, filepath.Join(store.root, VersionFile), version.Raw, 0644); err != nil {
		return nil, errors.WithContext(err, "write version info")
	}
	return store, nil
}

// validUID returns whether uid can safely be used as a directory name.
func validUID(uid string) bool {
	return uid != "" && uid != "." && uid != ".." &&
		!strings.ContainsAny(uid, `/\`)
}

// UID returns the identity of the bound device.
func (s *Store) UID() string {
	return s.version.UID
}

// Version returns the version info the device reported when it was bound.
func (s *Store) Version() device.VersionInfo {
	return s.version
}

// Root returns the device's cache directory.
func (s *Store) Root() string {
	return s.root
}

// FSDir returns the local mirror of the device's `fs/`.
func (s *Store) FSDir() string {
	return filepath.Join(s.root, backup.MirrorDir)
}

// BackupDir returns the directory that holds the mirror's backups.
func (s *Store) BackupDir() string {
	return filepath.Join(s.root, backup.Dir)
}

// LocalPath maps a remote path such as `fs/lib/code.py` to its location in
// the cache.
func (s *Store) LocalPath(remote string) string {
	remote = strings.TrimPrefix(path.Clean("/"+remote), "/")
	return filepath.Join(s.root, filepath.FromSlash(remote))
}

// RemotePath maps a path within the cache to the corresponding remote path.
func (s *Store) RemotePath(local string) (string, error) {
	rel, err := filepath.Rel(s.root, local)
	if err != nil {
		return "", errors.WithContext(err, "get relative path")
	}

	rel = filepath.ToSlash(rel)
	if rel == ".." || strings.HasPrefix(rel, "../") {
		return "", errors.New("path is outside the cache")
	}
	return rel, nil
}
