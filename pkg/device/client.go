package device

//go:generate mockery -name Client

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"io/ioutil"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sidkik/cpsync/pkg/errors"
	"github.com/sidkik/cpsync/pkg/version"
)

const (
	// DefaultURL is where the web workflow is advertised over mDNS.
	DefaultURL = "http://circuitpython.local/"

	// DefaultPassword is the password used by the CircuitPython docs.
	DefaultPassword = "passw0rd"

	// DefaultTimeout bounds each request to the device.
	DefaultTimeout = 5 * time.Second

	// maxErrorBody caps how much of an error response is kept for the error
	// message.
	maxErrorBody = 4096
)

// Client is the interface to the device's filesystem API. Paths are posix
// style and relative to the device root, e.g. `fs/lib/` or `fs/code.py`.
type Client interface {
	List(ctx context.Context, dir string) ([]Entry, error)
	Download(ctx context.Context, path string, w io.Writer) error
	Upload(ctx context.Context, path string, r io.Reader) error
	Mkdir(ctx context.Context, dir string) error
	Delete(ctx context.Context, path string) error
	Move(ctx context.Context, src, dst string) error
	Options(ctx context.Context) error
	Version(ctx context.Context) (VersionInfo, error)
	DiskInfo(ctx context.Context) ([]DiskInfo, error)
	Devices(ctx context.Context) (Devices, error)

	// URL is the base address of the device.
	URL() string
}

// Config holds the connection settings for a device.
type Config struct {
	URL      string
	Password string
	Timeout  time.Duration
}

type client struct {
	baseURL    *url.URL
	password   string
	httpClient *http.Client
}

// New returns a Client that talks to the device at cfg.URL.
func New(cfg Config) (Client, error) {
	if cfg.URL == "" {
		cfg.URL = DefaultURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if !strings.HasSuffix(cfg.URL, "/") {
		cfg.URL += "/"
	}

	baseURL, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, errors.WithContext(err, "parse url")
	}
	if baseURL.Scheme != "http" && baseURL.Scheme != "https" {
		return nil, errors.NewFriendlyError("Device URL %q must start with http:// or https://.", cfg.URL)
	}

	return &client{
		baseURL:    baseURL,
		password:   cfg.Password,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

func (c *client) URL() string {
	return c.baseURL.String()
}

func (c *client) List(ctx context.Context, dir string) ([]Entry, error) {
	var listing Listing
	if err := c.getJSON(ctx, dirPath(dir), &listing); err != nil {
		return nil, err
	}
	return listing.Files, nil
}

func (c *client) Download(ctx context.Context, path string, w io.Writer) error {
	resp, err := c.do(ctx, http.MethodGet, path, nil, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if _, err := io.Copy(w, resp.Body); err != nil {
		return errors.DeviceError{Method: http.MethodGet, Path: path, Err: err}
	}
	return nil
}

func (c *client) Upload(ctx context.Context, path string, r io.Reader) error {
	return c.discard(c.do(ctx, http.MethodPut, path, r, nil))
}

func (c *client) Mkdir(ctx context.Context, dir string) error {
	return c.discard(c.do(ctx, http.MethodPut, dirPath(dir), nil, nil))
}

func (c *client) Delete(ctx context.Context, path string) error {
	return c.discard(c.do(ctx, http.MethodDelete, path, nil, nil))
}

func (c *client) Move(ctx context.Context, src, dst string) error {
	header := http.Header{}
	header.Set("X-Destination", "/"+strings.TrimPrefix(dst, "/"))
	return c.discard(c.do(ctx, "MOVE", src, nil, header))
}

func (c *client) Options(ctx context.Context) error {
	return c.discard(c.do(ctx, http.MethodOptions, "fs/", nil, nil))
}

func (c *client) Version(ctx context.Context) (VersionInfo, error) {
	raw, err := c.getRaw(ctx, "cp/version.json")
	if err != nil {
		return VersionInfo{}, err
	}
	return ParseVersionInfo(raw)
}

func (c *client) DiskInfo(ctx context.Context) ([]DiskInfo, error) {
	var info []DiskInfo
	err := c.getJSON(ctx, "cp/diskinfo.json", &info)
	return info, err
}

func (c *client) Devices(ctx context.Context) (Devices, error) {
	var devices Devices
	err := c.getJSON(ctx, "cp/devices.json", &devices)
	return devices, err
}

func (c *client) getRaw(ctx context.Context, path string) ([]byte, error) {
	resp, err := c.do(ctx, http.MethodGet, path, nil, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.DeviceError{Method: http.MethodGet, Path: path, Err: err}
	}
	return body, nil
}

func (c *client) getJSON(ctx context.Context, path string, out interface{}) error {
	body, err := c.getRaw(ctx, path)
	if err != nil {
		return err
	}

	if err := json.Unmarshal(body, out); err != nil {
		return errors.DeviceError{Method: http.MethodGet, Path: path,
			Err: errors.WithContext(err, "decode response")}
	}
	return nil
}

// do sends the request and returns the response if the device answered with
// a 2xx status. Any other outcome is returned as an errors.DeviceError.
func (c *client) do(ctx context.Context, method, path string, body io.Reader,
	header http.Header) (*http.Response, error) {

	target := c.baseURL.ResolveReference(&url.URL{Path: strings.TrimPrefix(path, "/")})
	req, err := http.NewRequestWithContext(ctx, method, target.String(), body)
	if err != nil {
		return nil, errors.DeviceError{Method: method, Path: path, Err: err}
	}

	for key, values := range header {
		req.Header[key] = values
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())
	req.SetBasicAuth("", c.password)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.DeviceError{Method: method, Path: path, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		errBody, _ := ioutil.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, errors.DeviceError{
			Method:     method,
			Path:       path,
			StatusCode: resp.StatusCode,
			Body:       string(bytes.TrimSpace(errBody)),
		}
	}
	return resp, nil
}

func (c *client) discard(resp *http.Response, err error) error {
	if err != nil {
		return err
	}
	_, _ = io.Copy(ioutil.Discard, resp.Body)
	return resp.Body.Close()
}

func dirPath(dir string) string {
	return strings.TrimSuffix(dir, "/") + "/"
}
