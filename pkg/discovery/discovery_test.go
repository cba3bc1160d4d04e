package discovery

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/grandcat/zeroconf"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sidkik/cpsync/pkg/errors"
)

func newEntry(instance, host string, port int, ip net.IP) *zeroconf.ServiceEntry {
	entry := zeroconf.NewServiceEntry(instance, ServiceType, Domain)
	entry.HostName = host
	entry.Port = port
	if ip != nil {
		if ip.To4() != nil {
			entry.AddrIPv4 = append(entry.AddrIPv4, ip)
		} else {
			entry.AddrIPv6 = append(entry.AddrIPv6, ip)
		}
	}
	return entry
}

func TestEntryToDevice(t *testing.T) {
	tests := []struct {
		name  string
		entry *zeroconf.ServiceEntry
		exp   Device
	}{
		{
			name:  "DefaultPort",
			entry: newEntry("Feather ESP32-S3", "cpy-f0e1d2.local.", 80, net.ParseIP("192.168.1.20")),
			exp: Device{
				Instance: "Feather ESP32-S3",
				Hostname: "cpy-f0e1d2.local",
				IP:       "192.168.1.20",
				Port:     80,
				URL:      "http://cpy-f0e1d2.local/",
			},
		},
		{
			name:  "CustomPort",
			entry: newEntry("Pico W", "cpy-pico.local.", 8080, net.ParseIP("192.168.1.21")),
			exp: Device{
				Instance: "Pico W",
				Hostname: "cpy-pico.local",
				IP:       "192.168.1.21",
				Port:     8080,
				URL:      "http://cpy-pico.local:8080/",
			},
		},
		{
			name:  "NoHostname",
			entry: newEntry("Pico W", "", 80, net.ParseIP("fe80::1")),
			exp: Device{
				Instance: "Pico W",
				IP:       "fe80::1",
				Port:     80,
				URL:      "http://[fe80::1]/",
			},
		},
	}

	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			assert.Equal(t, test.exp, entryToDevice(test.entry))
		})
	}
}

func TestScan(t *testing.T) {
	browse = func(ctx context.Context, entries chan *zeroconf.ServiceEntry) error {
		entries <- newEntry("Pico W", "cpy-pico.local.", 80, net.ParseIP("192.168.1.21"))
		entries <- newEntry("Feather ESP32-S3", "cpy-f0e1d2.local.", 80, net.ParseIP("192.168.1.20"))
		// The same device answering on a second interface.
		entries <- newEntry("Pico W", "cpy-pico.local.", 80, net.ParseIP("fe80::2"))
		return nil
	}

	logger, _ := logtest.NewNullLogger()
	devices, err := Scan(context.Background(), 200*time.Millisecond, logger)
	require.NoError(t, err)

	var urls []string
	for _, device := range devices {
		urls = append(urls, device.URL)
	}
	assert.Equal(t, []string{"http://cpy-f0e1d2.local/", "http://cpy-pico.local/"}, urls)
}

func TestScanBrowseError(t *testing.T) {
	browse = func(context.Context, chan *zeroconf.ServiceEntry) error {
		return errors.New("no multicast interfaces")
	}

	logger, _ := logtest.NewNullLogger()
	_, err := Scan(context.Background(), time.Second, logger)
	assert.EqualError(t, err, "browse: no multicast interfaces")
}
