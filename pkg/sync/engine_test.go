package sync

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sidkik/cpsync/pkg/backup"
	"github.com/sidkik/cpsync/pkg/cache"
	"github.com/sidkik/cpsync/pkg/errors"
)

const cacheRoot = "/cache/DEADBEEF"

type testEnv struct {
	fs     afero.Fs
	clock  clockwork.FakeClock
	device *fakeDevice
	engine *Engine
}

func newTestEnv(t *testing.T, dev *fakeDevice) testEnv {
	fs := afero.NewMemMapFs()
	clock := clockwork.NewFakeClockAt(time.Date(2023, 4, 1, 12, 30, 0, 0, time.Local))
	logger, _ := logtest.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)

	store, err := cache.Bind(context.Background(), dev, "/cache", fs)
	require.NoError(t, err)

	return testEnv{
		fs:     fs,
		clock:  clock,
		device: dev,
		engine: NewEngine(dev, store, backup.New(fs, clock, logger), fs, logger),
	}
}

// localFiles returns the contents of the mirror keyed by remote path, in the
// same format as fakeDevice.files.
func (env testEnv) localFiles(t *testing.T) map[string]string {
	return env.treeFiles(t, cacheRoot+"/fs")
}

// treeFiles returns the contents of dir in the same format as localFiles, as
// if dir were the mirror.
func (env testEnv) treeFiles(t *testing.T, dir string) map[string]string {
	files := map[string]string{}
	err := afero.Walk(env.fs, dir, func(p string, fi os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		rel, err := filepath.Rel(dir, p)
		require.NoError(t, err)
		remote := path.Join(RemoteRoot, filepath.ToSlash(rel))

		if fi.IsDir() {
			files[remote+"/"] = ""
			return nil
		}

		contents, err := afero.ReadFile(env.fs, p)
		require.NoError(t, err)
		files[remote] = string(contents)
		return nil
	})
	require.NoError(t, err)
	return files
}

func (env testEnv) writeLocal(t *testing.T, remote, contents string) {
	p := filepath.Join(cacheRoot, remote)
	require.NoError(t, env.fs.MkdirAll(filepath.Dir(p), 0755))
	require.NoError(t, afero.WriteFile(env.fs, p, []byte(contents), 0644))
}

func boardDevice() *fakeDevice {
	dev := newFakeDevice()
	dev.addFile("fs/code.py", "import neopixel\n")
	dev.addFile("fs/boot_out.txt", "Adafruit CircuitPython 9.2.1\n")
	dev.addFile("fs/lib/neopixel.mpy", "\x43\x05")
	dev.addFile("fs/lib/adafruit_bus_device/i2c_device.mpy", "\x43\x06")
	dev.addDir("fs/sd")
	return dev
}

func TestPull(t *testing.T) {
	env := newTestEnv(t, boardDevice())

	result, err := env.engine.Pull(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, result.Dirs)
	assert.Equal(t, 4, result.Files)
	assert.Nil(t, result.Backup, "there's nothing to back up on the first pull")
	assert.Equal(t, RollbackNone, result.Rollback)

	assert.Equal(t, env.device.files(), env.localFiles(t))
}

func TestPullEmptyDevice(t *testing.T) {
	env := newTestEnv(t, newFakeDevice())

	result, err := env.engine.Pull(context.Background())
	require.NoError(t, err)
	assert.Equal(t, PullResult{Dirs: 1}, result)
	assert.Equal(t, map[string]string{"fs/": ""}, env.localFiles(t))
}

func TestPullIsIdempotent(t *testing.T) {
	env := newTestEnv(t, boardDevice())

	_, err := env.engine.Pull(context.Background())
	require.NoError(t, err)

	var backups []string
	for i := 0; i < 2; i++ {
		env.clock.Advance(time.Second)
		env.writeLocal(t, fmt.Sprintf("fs/notes%d.txt", i), "local only")
		before := env.localFiles(t)

		result, err := env.engine.Pull(context.Background())
		require.NoError(t, err)
		require.NotNil(t, result.Backup)
		backups = append(backups, result.Backup.Name)

		assert.Equal(t, before, env.localFiles(t))
		assert.Equal(t, before, env.treeFiles(t, result.Backup.Path),
			"the backup should hold the files from before the pull")
	}
	assert.Equal(t, []string{"2023-04-01_12-30-01", "2023-04-01_12-30-02"}, backups)
}

func TestPullKeepsLocalOnlyFiles(t *testing.T) {
	env := newTestEnv(t, boardDevice())
	env.writeLocal(t, "fs/notes.txt", "local only")

	_, err := env.engine.Pull(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "local only", env.localFiles(t)["fs/notes.txt"])
}

func TestPullRollback(t *testing.T) {
	dev := newFakeDevice()
	dev.addFile("fs/a.py", "new a")
	dev.addFile("fs/b/c.py", "new c")
	downloadErr := errors.DeviceError{Method: "GET", Path: "fs/b/c.py", StatusCode: 500}
	dev.fail["GET fs/b/c.py"] = downloadErr

	env := newTestEnv(t, dev)
	env.writeLocal(t, "fs/a.py", "old a")
	env.writeLocal(t, "fs/b/c.py", "old c")
	before := env.localFiles(t)

	result, err := env.engine.Pull(context.Background())
	assert.Equal(t, downloadErr, errors.RootCause(err))
	assert.Equal(t, RollbackRestored, result.Rollback)
	require.NotNil(t, result.Backup)
	assert.Equal(t, 1, result.Files)

	assert.Equal(t, before, env.localFiles(t))
}

func TestPullRollbackNewFile(t *testing.T) {
	dev := newFakeDevice()
	dev.addFile("fs/a.py", "new a")
	dev.addFile("fs/b/c.py", "new c")
	downloadErr := errors.DeviceError{Method: "GET", Path: "fs/b/c.py", StatusCode: 500}
	dev.fail["GET fs/b/c.py"] = downloadErr

	env := newTestEnv(t, dev)
	env.writeLocal(t, "fs/old.py", "old")

	result, err := env.engine.Pull(context.Background())
	assert.Equal(t, downloadErr, errors.RootCause(err))
	assert.Equal(t, RollbackRestored, result.Rollback)

	// The restore merges the backup over the mirror, so files that were
	// pulled before the failure stay. The file that failed must not be
	// created at all.
	assert.Equal(t, map[string]string{
		"fs/":       "",
		"fs/a.py":   "new a",
		"fs/b/":     "",
		"fs/old.py": "old",
	}, env.localFiles(t))

	exists, err := afero.Exists(env.fs, cacheRoot+"/fs/b/c.py")
	assert.NoError(t, err)
	assert.False(t, exists)
}

func TestPullFailsOnUnlistableDirectory(t *testing.T) {
	dev := boardDevice()
	listErr := errors.DeviceError{Method: "GET", Path: "fs/sd/", StatusCode: 500}
	dev.fail["GET fs/sd/"] = listErr

	env := newTestEnv(t, dev)
	env.writeLocal(t, "fs/code.py", "old code")

	result, err := env.engine.Pull(context.Background())
	assert.Equal(t, listErr, errors.RootCause(err))
	assert.Equal(t, RollbackRestored, result.Rollback)
	assert.Equal(t, "old code", env.localFiles(t)["fs/code.py"])
}

func TestPullWithoutBackup(t *testing.T) {
	dev := newFakeDevice()
	dev.addFile("fs/a.py", "new a")
	dev.addFile("fs/b.py", "new b")
	dev.fail["GET fs/b.py"] = errors.New("connection reset")

	env := newTestEnv(t, dev)

	result, err := env.engine.Pull(context.Background())
	assert.Error(t, err)
	assert.Nil(t, result.Backup)
	assert.Equal(t, RollbackNone, result.Rollback)

	// There's nothing to roll back to, so the partial pull is left in place.
	assert.Equal(t, "new a", env.localFiles(t)["fs/a.py"])
}

func TestPullRestoreFailed(t *testing.T) {
	dev := newFakeDevice()
	dev.addFile("fs/a.py", "new a")
	downloadErr := errors.DeviceError{Method: "GET", Path: "fs/a.py", StatusCode: 500}
	dev.fail["GET fs/a.py"] = downloadErr

	env := newTestEnv(t, dev)
	env.writeLocal(t, "fs/a.py", "old a")

	dev.onRequest = func(request string) {
		if request == "GET fs/a.py" {
			require.NoError(t, env.fs.RemoveAll(cacheRoot+"/_bak"))
		}
	}

	result, err := env.engine.Pull(context.Background())
	assert.Equal(t, RollbackFailed, result.Rollback)

	restoreErr, ok := err.(errors.RestoreFailed)
	require.True(t, ok)
	assert.Equal(t, result.Backup.Path, restoreErr.Backup)
	assert.Equal(t, errors.FileNotFound{Path: result.Backup.Path}, restoreErr.Err)
	assert.Equal(t, downloadErr, errors.RootCause(err))
}

func TestPullCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	dev := boardDevice()
	dev.onRequest = func(request string) {
		if request == "GET fs/code.py" {
			cancel()
		}
	}

	env := newTestEnv(t, dev)
	env.writeLocal(t, "fs/code.py", "old code")

	result, err := env.engine.Pull(ctx)
	assert.Equal(t, context.Canceled, errors.RootCause(err))
	assert.Equal(t, RollbackRestored, result.Rollback)
	assert.Equal(t, "old code", env.localFiles(t)["fs/code.py"])
}

func TestPush(t *testing.T) {
	dev := newFakeDevice()
	env := newTestEnv(t, dev)
	env.writeLocal(t, "fs/code.py", "print('hi')")
	env.writeLocal(t, "fs/lib/neopixel.mpy", "\x43\x05")
	env.writeLocal(t, "fs/lib/sub/helpers.py", "def help(): pass")
	require.NoError(t, env.fs.MkdirAll(cacheRoot+"/fs/empty", 0755))

	result, err := env.engine.Push(context.Background())
	require.NoError(t, err)
	assert.Equal(t, PushResult{Dirs: 3, Files: 3}, result)

	// Parents are created before their children.
	assert.Equal(t, []string{
		"PUT fs/code.py",
		"PUT fs/empty/",
		"PUT fs/lib/",
		"PUT fs/lib/neopixel.mpy",
		"PUT fs/lib/sub/",
		"PUT fs/lib/sub/helpers.py",
	}, dev.requests)
	assert.Equal(t, env.localFiles(t), dev.files())
}

func TestPushAbortsOnFirstError(t *testing.T) {
	dev := newFakeDevice()
	uploadErr := errors.DeviceError{Method: "PUT", Path: "fs/lib/a.mpy", StatusCode: 409}
	dev.fail["PUT fs/lib/a.mpy"] = uploadErr

	env := newTestEnv(t, dev)
	env.writeLocal(t, "fs/lib/a.mpy", "a")
	env.writeLocal(t, "fs/lib/b.mpy", "b")
	env.writeLocal(t, "fs/z.py", "z")

	result, err := env.engine.Push(context.Background())
	assert.Equal(t, uploadErr, errors.RootCause(err))
	assert.Equal(t, PushResult{Dirs: 1}, result)
	assert.Equal(t, []string{"PUT fs/lib/", "PUT fs/lib/a.mpy"}, dev.requests)

	// Nothing is undone.
	assert.True(t, dev.exists("fs/lib/"))
}

func TestPushWithoutMirror(t *testing.T) {
	env := newTestEnv(t, newFakeDevice())

	_, err := env.engine.Push(context.Background())
	assert.Equal(t, errors.FileNotFound{Path: cacheRoot + "/fs"}, err)
	assert.Empty(t, env.device.requests)
}

func TestPullThenPush(t *testing.T) {
	source := boardDevice()
	env := newTestEnv(t, source)
	_, err := env.engine.Pull(context.Background())
	require.NoError(t, err)

	target := newFakeDevice()
	pushEnv := env
	pushEnv.engine = NewEngine(target, env.engine.store, env.engine.backups, env.fs, env.engine.log)
	_, err = pushEnv.engine.Push(context.Background())
	require.NoError(t, err)

	assert.Equal(t, source.files(), target.files())
	for _, request := range target.requests {
		assert.True(t, strings.HasPrefix(request, "PUT "), request)
	}
}
