package sync

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/sidkik/cpsync/pkg/backup"
	"github.com/sidkik/cpsync/pkg/cache"
	"github.com/sidkik/cpsync/pkg/device"
	"github.com/sidkik/cpsync/pkg/errors"
	"github.com/sidkik/cpsync/pkg/remotefs"
)

// RemoteRoot is the directory on the device that's mirrored.
const RemoteRoot = "fs/"

// Rollback is what happened to the local mirror after a failed pull.
type Rollback int

const (
	// RollbackNone means that no rollback was attempted, either because the
	// pull succeeded or because there was no backup to restore from.
	RollbackNone Rollback = iota

	// RollbackRestored means that the mirror was restored from the backup.
	RollbackRestored

	// RollbackFailed means that restoring from the backup failed too.
	RollbackFailed
)

func (r Rollback) String() string {
	switch r {
	case RollbackRestored:
		return "restored"
	case RollbackFailed:
		return "failed"
	default:
		return "none"
	}
}

// PullResult summarizes a pull, even when it failed.
type PullResult struct {
	Dirs  int
	Files int

	// Backup is the snapshot taken before the pull modified anything. It's
	// nil if there was nothing to back up, or the backup failed.
	Backup *backup.Snapshot

	Rollback Rollback
}

// PushResult summarizes a push.
type PushResult struct {
	Dirs  int
	Files int
}

// Engine moves files between a device and its local mirror. Operations run
// sequentially, one request at a time.
type Engine struct {
	client  device.Client
	store   *cache.Store
	backups *backup.Manager
	fs      afero.Fs
	log     logrus.FieldLogger
}

// NewEngine returns an Engine that mirrors the device behind client into
// store.
func NewEngine(client device.Client, store *cache.Store, backups *backup.Manager,
	fs afero.Fs, log logrus.FieldLogger) *Engine {
	return &Engine{
		client:  client,
		store:   store,
		backups: backups,
		fs:      fs,
		log:     log,
	}
}

// Pull downloads the device's files into the local mirror. If it fails part
// way through, the mirror is restored from the backup taken at the start, and
// the error that caused the failure is returned. If the restore fails as
// well, the error is an errors.RestoreFailed.
func (e *Engine) Pull(ctx context.Context) (PullResult, error) {
	var result PullResult
	if snapshot, ok := e.backups.AutoBackup(e.store.Root()); ok {
		result.Backup = &snapshot
	}

	err := e.pull(ctx, &result)
	if err == nil {
		return result, nil
	}

	if result.Backup == nil {
		e.log.WithError(err).Warn("Pull failed. There's no backup to restore from, " +
			"so the local files may be partially updated")
		return result, err
	}

	if restoreErr := e.backups.Restore(e.store.Root(), result.Backup.Path); restoreErr != nil {
		result.Rollback = RollbackFailed
		return result, errors.RestoreFailed{
			Cause:  err,
			Backup: result.Backup.Path,
			Err:    restoreErr,
		}
	}
	result.Rollback = RollbackRestored
	return result, err
}

func (e *Engine) pull(ctx context.Context, result *PullResult) error {
	paths, err := remotefs.Glob(ctx, e.client, RemoteRoot, "")
	if err != nil {
		return errors.WithContext(err, "enumerate files")
	}

	for paths.Next() {
		remote := paths.Path()
		local := e.store.LocalPath(remote)

		if remotefs.IsDir(remote) {
			// Glob silently skips directories that can't be listed, so list
			// again to surface the error.
			if _, err := e.client.List(ctx, remote); err != nil {
				return errors.WithContext(err, fmt.Sprintf("list %s", remote))
			}
			if err := e.fs.MkdirAll(local, 0755); err != nil {
				return errors.WithContext(err, fmt.Sprintf("create %s", local))
			}
			result.Dirs++
			continue
		}

		if err := e.download(ctx, remote, local); err != nil {
			return errors.WithContext(err, fmt.Sprintf("download %s", remote))
		}
		result.Files++
		e.log.WithField("path", remote).Debug("Downloaded file")
	}

	if err := paths.Err(); err != nil {
		return errors.WithContext(err, "enumerate files")
	}
	return nil
}

// download writes remote to local. Nothing is written locally unless the
// whole file was received, so a failed download leaves no partial file
// behind for the restore to miss.
func (e *Engine) download(ctx context.Context, remote, local string) error {
	var contents bytes.Buffer
	if err := e.client.Download(ctx, remote, &contents); err != nil {
		return err
	}

	if err := e.fs.MkdirAll(filepath.Dir(local), 0755); err != nil {
		return errors.WithContext(err, "create parent")
	}
	if err := afero.WriteFile(e.fs, local, contents.Bytes(), 0644); err != nil {
		return errors.WithContext(err, "write")
	}
	return nil
}

// Push uploads the local mirror to the device. It stops at the first error,
// and doesn't undo what was already uploaded.
func (e *Engine) Push(ctx context.Context) (PushResult, error) {
	var result PushResult

	root := e.store.FSDir()
	exists, err := afero.DirExists(e.fs, root)
	if err != nil {
		return result, errors.WithContext(err, "stat local files")
	}
	if !exists {
		return result, errors.FileNotFound{Path: root}
	}

	// afero.Walk visits parents before their children, and siblings in
	// lexical order.
	err = afero.Walk(e.fs, root, func(local string, fi os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		remote, err := e.store.RemotePath(local)
		if err != nil {
			return err
		}

		if fi.IsDir() {
			// The device always has a root directory.
			if local == root {
				return nil
			}
			remote += "/"
			if err := e.client.Mkdir(ctx, remote); err != nil {
				return errors.WithContext(err, fmt.Sprintf("create %s", remote))
			}
			result.Dirs++
			return nil
		}

		contents, err := afero.ReadFile(e.fs, local)
		if err != nil {
			return errors.WithContext(err, fmt.Sprintf("read %s", local))
		}
		if err := e.client.Upload(ctx, remote, bytes.NewReader(contents)); err != nil {
			return errors.WithContext(err, fmt.Sprintf("upload %s", remote))
		}
		result.Files++
		e.log.WithField("path", remote).Debug("Uploaded file")
		return nil
	})
	return result, err
}
