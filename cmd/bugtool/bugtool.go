package bugtool

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/ghodss/yaml"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/sidkik/cpsync/cmd/util"
	"github.com/sidkik/cpsync/pkg/cache"
	"github.com/sidkik/cpsync/pkg/config"
	"github.com/sidkik/cpsync/pkg/device"
	"github.com/sidkik/cpsync/pkg/errors"
	"github.com/sidkik/cpsync/pkg/remotefs"
	"github.com/sidkik/cpsync/pkg/sync"
	"github.com/sidkik/cpsync/pkg/version"
)

const redacted = "<redacted>"

// Mocked for unit testing.
var (
	fs               = afero.NewOsFs()
	stdout io.Writer = os.Stdout
)

// New creates a new `bug-tool` command.
func New() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "bug-tool",
		Short: "Generate an archive for debugging cpsync",
		Args:  cobra.NoArgs,
		Run: func(_ *cobra.Command, _ []string) {
			ctx, cancel := util.SignalContext()
			defer cancel()
			main(ctx, out)
		},
	}
	cmd.Flags().StringVar(&out, "out", "", "path for archive")
	return cmd
}

func main(ctx context.Context, out string) {
	tmpdir, err := afero.TempDir(fs, "", "cpsync-bug-tool")
	if err != nil {
		err = errors.NewFriendlyError("Failed to create out directory:\n%s", err)
		util.HandleFatalError(err)
	}

	// Wrap defer in a function to handle errors from fs.RemoveAll().
	defer func() {
		err := fs.RemoveAll(tmpdir)
		if err != nil {
			util.HandleFatalError(err)
		}
	}()

	setupInfo(ctx, tmpdir)

	if out == "" {
		out = fmt.Sprintf("cpsync-bug-info-%s.tar.gz",
			time.Now().Format("Jan_02_2006-15-04-05"))
	}
	if err := tarDirectory(tmpdir, out); err != nil {
		err = errors.NewFriendlyError("Failed to tar:\n%s", err)
		util.HandleFatalError(err)
	}

	msg := `Created bug information archive at '%s'.
You may want to edit the archive if the device holds sensitive files.
The archive contains:
 * The version of cpsync and the device's firmware.
 * The device's disk usage and the other devices it has seen.
 * The tree of files on the device.
 * The user config, with the password removed.
 * The list of files and backups in the local cache.
`
	fmt.Fprintf(stdout, msg, out)
}

func setupInfo(ctx context.Context, root string) {
	client, userConfig, err := util.GetClient()
	if err != nil {
		log.WithError(err).Error("Failed to read user config")
		return
	}

	if err := setupConfig(filepath.Join(root, "config"), userConfig); err != nil {
		log.WithError(err).Warn("Failed to setup user config")
	}

	if err := setupVersion(ctx, filepath.Join(root, "version"), client); err != nil {
		log.WithError(err).Warn("Failed to setup version info")
	}

	if err := setupDeviceInfo(ctx, filepath.Join(root, "device"), client); err != nil {
		log.WithError(err).Warn("Failed to setup device info")
	}

	if err := setupTree(ctx, filepath.Join(root, "tree"), client); err != nil {
		log.WithError(err).Warn("Failed to setup file tree")
	}

	store, err := util.GetStore(ctx, client, userConfig)
	if err != nil {
		log.WithError(err).Warn("Failed to find the local cache")
		return
	}

	if err := setupCache(filepath.Join(root, "cache"), store); err != nil {
		log.WithError(err).Warn("Failed to setup cache listing")
	}
}

func setupConfig(path string, userConfig config.User) error {
	if userConfig.Password != "" {
		userConfig.Password = redacted
	}
	return writeYAML(path, userConfig)
}

func setupVersion(ctx context.Context, path string, client device.Client) error {
	out, err := fs.Create(path)
	if err != nil {
		return errors.WithContext(err, "create")
	}
	defer out.Close()

	fmt.Fprintf(out, "local version:  %s\n", version.Version)

	info, err := client.Version(ctx)
	if err != nil {
		return errors.WithContext(err, "get firmware version")
	}
	fmt.Fprintf(out, "device version: %s\n", info.Raw)
	return nil
}

func setupDeviceInfo(ctx context.Context, outdir string, client device.Client) error {
	if err := fs.Mkdir(outdir, 0755); err != nil {
		return errors.WithContext(err, "mkdir")
	}

	disks, err := client.DiskInfo(ctx)
	if err != nil {
		return errors.WithContext(err, "get disk info")
	}
	if err := writeYAML(filepath.Join(outdir, "disks"), disks); err != nil {
		return err
	}

	peers, err := client.Devices(ctx)
	if err != nil {
		return errors.WithContext(err, "get peer devices")
	}
	return writeYAML(filepath.Join(outdir, "peers"), peers)
}

func setupTree(ctx context.Context, path string, client device.Client) error {
	out, err := fs.Create(path)
	if err != nil {
		return errors.WithContext(err, "create")
	}
	defer out.Close()

	remotefs.Render(out, remotefs.BuildTree(ctx, client, sync.RemoteRoot), false)
	return nil
}

// setupCache lists the files in the device's local cache, without their
// contents.
func setupCache(path string, store *cache.Store) error {
	out, err := fs.Create(path)
	if err != nil {
		return errors.WithContext(err, "create")
	}
	defer out.Close()

	return afero.Walk(util.Fs, store.Root(), func(file string, fi os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		relPath, err := filepath.Rel(store.Root(), file)
		if err != nil {
			return errors.WithContext(err, fmt.Sprintf("get relative path of %s", file))
		}
		fmt.Fprintf(out, "%s %10d %s %s\n", fi.Mode(), fi.Size(),
			fi.ModTime().Format(time.RFC3339), filepath.ToSlash(relPath))
		return nil
	})
}

func writeYAML(path string, obj interface{}) error {
	objBytes, err := yaml.Marshal(obj)
	if err != nil {
		log.WithError(err).WithField("path", path).Warn("Failed to marshal")
		objBytes = []byte(fmt.Sprintf("%+v\n", obj))
	}

	if err := afero.WriteFile(fs, path, objBytes, 0644); err != nil {
		return errors.WithContext(err, "write")
	}
	return nil
}

func tarDirectory(src, outPath string) error {
	out, err := fs.Create(outPath)
	if err != nil {
		return errors.WithContext(err, "open destination")
	}
	defer out.Close()

	gzw := gzip.NewWriter(out)
	defer gzw.Close()

	tw := tar.NewWriter(gzw)
	defer tw.Close()

	return afero.Walk(fs, src, func(file string, fi os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		header, err := tar.FileInfoHeader(fi, fi.Name())
		if err != nil {
			return errors.WithContext(err, fmt.Sprintf("make header %s", file))
		}

		relPath, err := filepath.Rel(src, file)
		if err != nil {
			return errors.WithContext(err, fmt.Sprintf("get relative path of %s to %s", file, src))
		}

		header.Name = filepath.ToSlash(filepath.Join("cpsync-bug-info", relPath))
		if err := tw.WriteHeader(header); err != nil {
			return errors.WithContext(err, fmt.Sprintf("write %s header", file))
		}

		// Only write contents if it's a file (i.e. not a directory).
		if !fi.Mode().IsRegular() {
			return nil
		}

		f, err := fs.Open(file)
		if err != nil {
			return errors.WithContext(err, fmt.Sprintf("open %s", file))
		}
		defer f.Close()

		if _, err := io.Copy(tw, f); err != nil {
			return errors.WithContext(err, fmt.Sprintf("copy %s", file))
		}
		return nil
	})
}
