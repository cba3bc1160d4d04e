package delete

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/sidkik/cpsync/pkg/config"
	"github.com/sidkik/cpsync/pkg/device"
	"github.com/sidkik/cpsync/pkg/device/mocks"
	"github.com/sidkik/cpsync/pkg/errors"
)

func TestRun(t *testing.T) {
	tests := []struct {
		name       string
		force      bool
		confirmed  bool
		deleteErr  error
		expDeleted bool
		expOutput  string
		expError   string
	}{
		{
			name:       "Confirmed",
			confirmed:  true,
			expDeleted: true,
			expOutput:  "Deleted fs/old.py\n",
		},
		{
			name:      "Declined",
			expOutput: "Nothing deleted.\n",
		},
		{
			name:       "Forced",
			force:      true,
			expDeleted: true,
			expOutput:  "Deleted fs/old.py\n",
		},
		{
			name:       "NotFound",
			force:      true,
			deleteErr:  errors.DeviceError{Method: "DELETE", Path: "fs/old.py", StatusCode: 404},
			expDeleted: true,
			expError:   "fs/old.py doesn't exist on the device.",
		},
		{
			name:       "ReadOnly",
			force:      true,
			deleteErr:  errors.DeviceError{Method: "DELETE", Path: "fs/old.py", StatusCode: 409},
			expDeleted: true,
			expError:   "delete fs/old.py: DELETE fs/old.py: 409 Conflict",
		},
	}

	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			var out bytes.Buffer
			stdout = &out

			var prompted bool
			confirm = func(string) (bool, error) {
				prompted = true
				return test.confirmed, nil
			}

			client := new(mocks.Client)
			client.On("Delete", mock.Anything, "fs/old.py").Return(test.deleteErr)
			getClient = func() (device.Client, config.User, error) {
				return client, config.User{}, nil
			}

			err := run(context.Background(), "fs/old.py", test.force)
			if test.expError != "" {
				assert.EqualError(t, err, test.expError)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, test.expOutput, out.String())
			assert.Equal(t, !test.force, prompted)
			if test.expDeleted {
				client.AssertCalled(t, "Delete", mock.Anything, "fs/old.py")
			} else {
				client.AssertNotCalled(t, "Delete", mock.Anything, "fs/old.py")
			}
		})
	}
}
