// Package discovery finds web workflow devices on the local network. Devices
// advertise themselves over mDNS as `_circuitpython._tcp`.
package discovery

import (
	"context"
	"fmt"
	"net"
	"sort"
	"strings"
	"time"

	"github.com/grandcat/zeroconf"
	"github.com/sirupsen/logrus"

	"github.com/sidkik/cpsync/pkg/errors"
)

const (
	// ServiceType is the DNS-SD service the web workflow advertises.
	ServiceType = "_circuitpython._tcp"

	// Domain is the mDNS domain.
	Domain = "local."

	// DefaultTimeout is how long Scan listens for answers.
	DefaultTimeout = 3 * time.Second
)

// Device is a web workflow device that answered a scan.
type Device struct {
	// Instance is the advertised service name, which defaults to the board
	// name.
	Instance string `json:"instance"`
	Hostname string `json:"hostname"`
	IP       string `json:"ip,omitempty"`
	Port     int    `json:"port"`

	// URL is the base address to use with the device client.
	URL string `json:"url"`
}

// Mocked for unit testing.
var browse = browseImpl

// Scan listens for devices until timeout passes or ctx is cancelled. Devices
// that answer more than once, e.g. on several interfaces, are only returned
// once. The result is sorted by hostname.
func Scan(ctx context.Context, timeout time.Duration, log logrus.FieldLogger) ([]Device, error) {
	scanCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	entries := make(chan *zeroconf.ServiceEntry)
	results := make(chan []Device)
	go func() {
		seen := map[string]Device{}
		collect := func() {
			for {
				select {
				case entry, ok := <-entries:
					if !ok {
						return
					}
					device := entryToDevice(entry)
					log.WithField("url", device.URL).Debug("Discovered device")
					seen[device.URL] = device
				case <-scanCtx.Done():
					return
				}
			}
		}
		collect()

		var devices []Device
		for _, device := range seen {
			devices = append(devices, device)
		}
		sort.Slice(devices, func(i, j int) bool {
			return devices[i].Hostname < devices[j].Hostname
		})
		results <- devices
	}()

	if err := browse(scanCtx, entries); err != nil {
		cancel()
		<-results
		return nil, errors.WithContext(err, "browse")
	}
	return <-results, nil
}

// browseImpl starts sending answers to entries until ctx is done.
func browseImpl(ctx context.Context, entries chan *zeroconf.ServiceEntry) error {
	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return errors.WithContext(err, "create resolver")
	}
	return resolver.Browse(ctx, ServiceType, Domain, entries)
}

func entryToDevice(entry *zeroconf.ServiceEntry) Device {
	device := Device{
		Instance: entry.Instance,
		Hostname: strings.TrimSuffix(entry.HostName, "."),
		Port:     entry.Port,
	}

	var ip net.IP
	if len(entry.AddrIPv4) > 0 {
		ip = entry.AddrIPv4[0]
	} else if len(entry.AddrIPv6) > 0 {
		ip = entry.AddrIPv6[0]
	}
	if ip != nil {
		device.IP = ip.String()
	}

	host := device.Hostname
	if host == "" {
		host = device.IP
	}
	if strings.Contains(host, ":") {
		host = "[" + host + "]"
	}
	if device.Port == 0 || device.Port == 80 {
		device.URL = fmt.Sprintf("http://%s/", host)
	} else {
		device.URL = fmt.Sprintf("http://%s:%d/", host, device.Port)
	}
	return device
}
