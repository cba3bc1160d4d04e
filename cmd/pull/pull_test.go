package pull

import (
	"bytes"
	"context"
	"io"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sidkik/cpsync/cmd/util"
	"github.com/sidkik/cpsync/pkg/backup"
	"github.com/sidkik/cpsync/pkg/config"
	"github.com/sidkik/cpsync/pkg/device"
	"github.com/sidkik/cpsync/pkg/device/mocks"
	"github.com/sidkik/cpsync/pkg/errors"
	"github.com/sidkik/cpsync/pkg/sync"
)

func TestPrintResult(t *testing.T) {
	snapshot := &backup.Snapshot{
		Name: "2023-04-01_12-30-00",
		Path: "/cache/DEADBEEF/_bak/2023-04-01_12-30-00",
		Time: time.Date(2023, 4, 1, 12, 30, 0, 0, time.Local),
	}

	tests := []struct {
		name      string
		result    sync.PullResult
		expOutput string
	}{
		{
			name:      "FirstPull",
			result:    sync.PullResult{Dirs: 2, Files: 5},
			expOutput: "Pulled 5 files and 2 directories into /cache/DEADBEEF/fs\n",
		},
		{
			name:   "WithBackup",
			result: sync.PullResult{Dirs: 1, Files: 1, Backup: snapshot},
			expOutput: "Backed up the previous local files to /cache/DEADBEEF/_bak/2023-04-01_12-30-00\n" +
				"Pulled 1 files and 1 directories into /cache/DEADBEEF/fs\n",
		},
		{
			name:   "Restored",
			result: sync.PullResult{Backup: snapshot, Rollback: sync.RollbackRestored},
			expOutput: "Backed up the previous local files to /cache/DEADBEEF/_bak/2023-04-01_12-30-00\n" +
				"The pull failed, so the local files were restored from " +
				"/cache/DEADBEEF/_bak/2023-04-01_12-30-00\n",
		},
		{
			name:   "RestoreFailed",
			result: sync.PullResult{Backup: snapshot, Rollback: sync.RollbackFailed},
			expOutput: "Backed up the previous local files to /cache/DEADBEEF/_bak/2023-04-01_12-30-00\n" +
				"The pull failed, and restoring /cache/DEADBEEF/_bak/2023-04-01_12-30-00 failed too. " +
				"The local files in /cache/DEADBEEF/fs may be incomplete.\n",
		},
	}

	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			var out bytes.Buffer
			printResult(&out, "/cache/DEADBEEF/fs", test.result)
			assert.Equal(t, test.expOutput, out.String())
		})
	}
}

func mockDevice() *mocks.Client {
	info, _ := device.ParseVersionInfo([]byte(`{"UID": "DEADBEEF", "version": "8.2.0"}`))

	client := new(mocks.Client)
	client.On("URL").Return("http://circuitpython.local/")
	client.On("Version", mock.Anything).Return(info, nil)
	client.On("List", mock.Anything, "fs/").Return([]device.Entry{{Name: "code.py"}}, nil)
	return client
}

func TestRun(t *testing.T) {
	util.Fs = afero.NewMemMapFs()
	var out bytes.Buffer
	stdout = &out

	client := mockDevice()
	client.On("Download", mock.Anything, "fs/code.py", mock.Anything).
		Run(func(args mock.Arguments) {
			io.WriteString(args.Get(2).(io.Writer), "print('hello')\n")
		}).
		Return(nil)
	getClient = func() (device.Client, config.User, error) {
		return client, config.User{CachePath: "/cache"}, nil
	}

	require.NoError(t, run(context.Background()))
	assert.Contains(t, out.String(), "Pulled 1 files and 1 directories into /cache/DEADBEEF/fs\n")

	contents, err := afero.ReadFile(util.Fs, "/cache/DEADBEEF/fs/code.py")
	require.NoError(t, err)
	assert.Equal(t, "print('hello')\n", string(contents))
}

func TestRunBadPassword(t *testing.T) {
	util.Fs = afero.NewMemMapFs()
	stdout = &bytes.Buffer{}

	client := mockDevice()
	client.On("Download", mock.Anything, "fs/code.py", mock.Anything).
		Return(errors.DeviceError{Method: "GET", Path: "fs/code.py", StatusCode: 401})
	getClient = func() (device.Client, config.User, error) {
		return client, config.User{CachePath: "/cache"}, nil
	}

	err := run(context.Background())
	require.Error(t, err)
	friendlyErr, ok := err.(errors.FriendlyError)
	require.True(t, ok)
	assert.Contains(t, friendlyErr.FriendlyMessage(), "rejected the password")
}
