package sync

import (
	"context"
	"fmt"
	"io"
	"io/ioutil"
	"net/http"
	"path"
	"strings"

	"github.com/sidkik/cpsync/pkg/device"
	"github.com/sidkik/cpsync/pkg/errors"
)

// fakeDevice is an in-memory device filesystem. Paths are stored in creation
// order, which is the order listings return them in. Directories end with a
// trailing slash.
type fakeDevice struct {
	paths    []string
	contents map[string]string

	// fail maps requests such as `GET fs/code.py` to the error they should
	// fail with.
	fail map[string]error

	// onRequest is called before every request is handled.
	onRequest func(request string)

	requests []string
}

func newFakeDevice() *fakeDevice {
	return &fakeDevice{
		paths:    []string{"fs/"},
		contents: map[string]string{},
		fail:     map[string]error{},
	}
}

func (d *fakeDevice) addDir(dir string) {
	dir = strings.TrimSuffix(dir, "/") + "/"
	if d.exists(dir) {
		return
	}
	d.addDir(parent(dir))
	d.paths = append(d.paths, dir)
}

func (d *fakeDevice) addFile(p, contents string) {
	d.addDir(parent(p))
	if !d.exists(p) {
		d.paths = append(d.paths, p)
	}
	d.contents[p] = contents
}

func (d *fakeDevice) exists(p string) bool {
	for _, existing := range d.paths {
		if existing == p {
			return true
		}
	}
	return false
}

// files returns the contents of every file, and an empty string for every
// directory.
func (d *fakeDevice) files() map[string]string {
	files := map[string]string{}
	for _, p := range d.paths {
		files[p] = d.contents[p]
	}
	return files
}

func parent(p string) string {
	return path.Dir(strings.TrimSuffix(p, "/")) + "/"
}

func (d *fakeDevice) handle(method, p string) error {
	request := fmt.Sprintf("%s %s", method, p)
	d.requests = append(d.requests, request)
	if d.onRequest != nil {
		d.onRequest(request)
	}
	return d.fail[request]
}

func notFound(method, p string) error {
	return errors.DeviceError{Method: method, Path: p, StatusCode: http.StatusNotFound}
}

func (d *fakeDevice) List(ctx context.Context, dir string) ([]device.Entry, error) {
	dir = strings.TrimSuffix(dir, "/") + "/"
	if err := d.handle(http.MethodGet, dir); err != nil {
		return nil, err
	}
	if !d.exists(dir) {
		return nil, notFound(http.MethodGet, dir)
	}

	entries := []device.Entry{}
	for _, p := range d.paths {
		if p == dir || parent(p) != dir {
			continue
		}
		entries = append(entries, device.Entry{
			Name:      path.Base(strings.TrimSuffix(p, "/")),
			Directory: strings.HasSuffix(p, "/"),
			FileSize:  int64(len(d.contents[p])),
		})
	}
	return entries, nil
}

func (d *fakeDevice) Download(ctx context.Context, p string, w io.Writer) error {
	if err := d.handle(http.MethodGet, p); err != nil {
		return err
	}
	contents, ok := d.contents[p]
	if !ok {
		return notFound(http.MethodGet, p)
	}
	_, err := io.WriteString(w, contents)
	return err
}

func (d *fakeDevice) Upload(ctx context.Context, p string, r io.Reader) error {
	if err := d.handle(http.MethodPut, p); err != nil {
		return err
	}
	contents, err := ioutil.ReadAll(r)
	if err != nil {
		return err
	}
	if !d.exists(parent(p)) {
		return errors.DeviceError{Method: http.MethodPut, Path: p, StatusCode: http.StatusConflict}
	}
	d.addFile(p, string(contents))
	return nil
}

func (d *fakeDevice) Mkdir(ctx context.Context, dir string) error {
	dir = strings.TrimSuffix(dir, "/") + "/"
	if err := d.handle(http.MethodPut, dir); err != nil {
		return err
	}
	if !d.exists(parent(dir)) {
		return errors.DeviceError{Method: http.MethodPut, Path: dir, StatusCode: http.StatusConflict}
	}
	d.addDir(dir)
	return nil
}

func (d *fakeDevice) Delete(ctx context.Context, p string) error {
	return errors.New("not implemented")
}

func (d *fakeDevice) Move(ctx context.Context, src, dst string) error {
	return errors.New("not implemented")
}

func (d *fakeDevice) Options(ctx context.Context) error {
	return nil
}

func (d *fakeDevice) Version(ctx context.Context) (device.VersionInfo, error) {
	return device.ParseVersionInfo([]byte(`{"UID": "DEADBEEF", "version": "9.2.1"}`))
}

func (d *fakeDevice) DiskInfo(ctx context.Context) ([]device.DiskInfo, error) {
	return nil, nil
}

func (d *fakeDevice) Devices(ctx context.Context) (device.Devices, error) {
	return device.Devices{}, nil
}

func (d *fakeDevice) URL() string {
	return "http://fake.local/"
}
