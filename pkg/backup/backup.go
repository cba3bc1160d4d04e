// Package backup takes timestamped copies of a device's local mirror, and
// restores them when a pull fails part way through.
package backup

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/sidkik/cpsync/pkg/errors"
)

const (
	// MirrorDir is the directory under the cache root that mirrors the
	// device's `fs/`.
	MirrorDir = "fs"

	// Dir is the directory under the cache root that holds the backups.
	Dir = "_bak"

	// TimeFormat is the layout of backup names.
	TimeFormat = "2006-01-02_15-04-05"
)

// Snapshot is one backup of the mirror.
type Snapshot struct {
	// Name is the directory name within Dir, e.g. `2023-04-01_12-30-00`.
	Name string

	// Path is the full path of the backup directory.
	Path string

	// Time is when the backup was taken.
	Time time.Time
}

// Manager creates and restores backups. Backups are never modified or
// removed once they've been written.
type Manager struct {
	fs    afero.Fs
	clock clockwork.Clock
	log   logrus.FieldLogger
}

// New returns a Manager that stores backups on fs.
func New(fs afero.Fs, clock clockwork.Clock, log logrus.FieldLogger) *Manager {
	return &Manager{fs: fs, clock: clock, log: log}
}

// AutoBackup copies `<cacheRoot>/fs` into a new directory under
// `<cacheRoot>/_bak`. It returns false if there was nothing to back up, or if
// the copy failed. Failures aren't fatal because the backup only exists to
// make the following pull safer.
func (m *Manager) AutoBackup(cacheRoot string) (Snapshot, bool) {
	src := filepath.Join(cacheRoot, MirrorDir)
	exists, err := afero.DirExists(m.fs, src)
	if err != nil {
		m.log.WithError(err).WithField("path", src).Warn("Backup skipped. Failed to check for local files")
		return Snapshot{}, false
	}
	if !exists {
		m.log.WithField("path", src).Debug("No local files to back up")
		return Snapshot{}, false
	}

	snapshot, err := m.reserve(cacheRoot)
	if err != nil {
		m.log.WithError(err).Warn("Backup skipped")
		return Snapshot{}, false
	}

	if err := copyTree(m.fs, src, snapshot.Path); err != nil {
		m.log.WithError(err).WithField("backup", snapshot.Path).Warn("Backup skipped")
		if err := m.fs.RemoveAll(snapshot.Path); err != nil {
			m.log.WithError(err).WithField("backup", snapshot.Path).Warn(
				"Failed to remove partial backup")
		}
		return Snapshot{}, false
	}

	m.log.WithField("backup", snapshot.Path).Info("Backed up local files")
	return snapshot, true
}

// reserve creates an empty directory for a backup taken now. If a backup was
// already taken within the same second, a numeric suffix is added so that
// existing backups are never overwritten.
func (m *Manager) reserve(cacheRoot string) (Snapshot, error) {
	now := m.clock.Now()
	base := now.Format(TimeFormat)
	bakDir := filepath.Join(cacheRoot, Dir)

	if err := m.fs.MkdirAll(bakDir, 0755); err != nil {
		return Snapshot{}, errors.WithContext(err, "create backup directory")
	}

	name := base
	for i := 1; ; i++ {
		exists, err := afero.Exists(m.fs, filepath.Join(bakDir, name))
		if err != nil {
			return Snapshot{}, errors.WithContext(err, "check backup name")
		}
		if !exists {
			break
		}
		name = fmt.Sprintf("%s_%d", base, i)
	}

	snapshot := Snapshot{Name: name, Path: filepath.Join(bakDir, name), Time: now}
	if err := m.fs.Mkdir(snapshot.Path, 0755); err != nil {
		return Snapshot{}, errors.WithContext(err, "create backup")
	}
	return snapshot, nil
}

// Restore copies backupPath over `<cacheRoot>/fs`. Files that exist in the
// mirror but not in the backup are left alone.
func (m *Manager) Restore(cacheRoot, backupPath string) error {
	fi, err := m.fs.Stat(backupPath)
	if err != nil || !fi.IsDir() {
		return errors.FileNotFound{Path: backupPath}
	}

	dst := filepath.Join(cacheRoot, MirrorDir)
	if err := copyTree(m.fs, backupPath, dst); err != nil {
		return errors.WithContext(err, "restore")
	}

	m.log.WithField("backup", backupPath).Info("Restored local files from backup")
	return nil
}

// List returns the backups for cacheRoot, oldest first.
func (m *Manager) List(cacheRoot string) ([]Snapshot, error) {
	bakDir := filepath.Join(cacheRoot, Dir)
	exists, err := afero.DirExists(m.fs, bakDir)
	if err != nil {
		return nil, errors.WithContext(err, "stat backup directory")
	}
	if !exists {
		return nil, nil
	}

	infos, err := afero.ReadDir(m.fs, bakDir)
	if err != nil {
		return nil, errors.WithContext(err, "read backup directory")
	}

	var snapshots []Snapshot
	for _, fi := range infos {
		if !fi.IsDir() {
			continue
		}

		snapshot := Snapshot{Name: fi.Name(), Path: filepath.Join(bakDir, fi.Name())}
		if len(fi.Name()) >= len(TimeFormat) {
			// Ignore the error. Directories with unexpected names are still
			// listed, they just sort first.
			snapshot.Time, _ = time.ParseInLocation(TimeFormat, fi.Name()[:len(TimeFormat)], time.Local)
		}
		snapshots = append(snapshots, snapshot)
	}

	sort.SliceStable(snapshots, func(i, j int) bool {
		if !snapshots[i].Time.Equal(snapshots[j].Time) {
			return snapshots[i].Time.Before(snapshots[j].Time)
		}
		return lessName(snapshots[i].Name, snapshots[j].Name)
	})
	return snapshots, nil
}

// lessName orders backups taken within the same second by their suffix, so
// that `x_10` comes after `x_9`.
func lessName(a, b string) bool {
	if len(a) != len(b) {
		return len(a) < len(b)
	}
	return a < b
}

// copyTree recursively copies src into dst, merging with anything that's
// already in dst.
func copyTree(fs afero.Fs, src, dst string) error {
	return afero.Walk(fs, src, func(path string, fi os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		relPath, err := filepath.Rel(src, path)
		if err != nil {
			return errors.WithContext(err, "get relative path")
		}
		target := filepath.Join(dst, relPath)

		if fi.IsDir() {
			if err := fs.MkdirAll(target, 0755); err != nil {
				return errors.WithContext(err, "make directory")
			}
			return nil
		}
		return copyFile(fs, path, target, fi)
	})
}

func copyFile(fs afero.Fs, src, dst string, fileInfo os.FileInfo) error {
	srcFile, err := fs.Open(src)
	if err != nil {
		return errors.WithContext(err, "open source")
	}
	defer srcFile.Close()

	dstFile, err := fs.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, fileInfo.Mode())
	if err != nil {
		return errors.WithContext(err, "open destination")
	}

	if _, err := io.Copy(dstFile, srcFile); err != nil {
		dstFile.Close()
		return errors.WithContext(err, fmt.Sprintf("copy %s", src))
	}
	if err := dstFile.Close(); err != nil {
		return errors.WithContext(err, "close destination")
	}

	if err := fs.Chmod(dst, fileInfo.Mode()); err != nil {
		return errors.WithContext(err, "set file mode")
	}

	// Change the modification time as the last step so that it doesn't get
	// reset by other file operations.
	if err := fs.Chtimes(dst, fileInfo.ModTime(), fileInfo.ModTime()); err != nil {
		return errors.WithContext(err, "set file modtime")
	}
	return nil
}
