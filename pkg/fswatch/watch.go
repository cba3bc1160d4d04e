package fswatch

import (
	"fmt"
	"os"

	"github.com/fsnotify/fsnotify"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/sidkik/cpsync/pkg/errors"
)

var fs = afero.NewOsFs()

// Watcher reports changes to the files under a directory.
type Watcher struct {
	watcher *fsnotify.Watcher

	// Updates receives a value after something under the directory changes.
	// Bursts of changes are combined, so there may be fewer updates than
	// changes.
	Updates <-chan struct{}
}

// Watch watches dir and all of its subdirectories. Directories created after
// the watch starts are watched as well.
func Watch(dir string) (*Watcher, error) {
	pathsToWatch, err := getPathsToWatch(dir)
	if err != nil {
		return nil, errors.WithContext(err, "get paths")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.WithContext(err, "create watcher")
	}

	for _, path := range pathsToWatch {
		if err := watcher.Add(path); err != nil {
			// Close the watcher so that we release the file handlers for the
			// previously added paths.
			if err := watcher.Close(); err != nil {
				log.WithError(err).Warn("Failed to close file watcher")
			}

			return nil, errors.WithContext(err, fmt.Sprintf("watch %q", path))
		}
	}

	go logErrors(watcher.Errors)
	return &Watcher{
		watcher: watcher,
		Updates: combineUpdates(watcher.Events, watchNewDirs(watcher)),
	}, nil
}

// Close stops the watch.
func (w *Watcher) Close() error {
	if w.watcher == nil {
		return nil
	}
	return w.watcher.Close()
}

// watchNewDirs returns a callback that adds newly created directories to the
// watch, since fsnotify doesn't watch recursively.
func watchNewDirs(watcher *fsnotify.Watcher) func(fsnotify.Event) {
	return func(event fsnotify.Event) {
		if event.Op&fsnotify.Create == 0 {
			return
		}

		paths, err := getPathsToWatch(event.Name)
		if err != nil {
			// Plain files and directories that were removed right away.
			return
		}

		for _, path := range paths {
			if err := watcher.Add(path); err != nil {
				log.WithError(err).WithField("path", path).Warn("Failed to watch new directory")
			}
		}
	}
}

func combineUpdates(updates <-chan fsnotify.Event, onEvent func(fsnotify.Event)) chan struct{} {
	combined := make(chan struct{}, 1)
	go func() {
		defer close(combined)
		for event := range updates {
			if onEvent != nil {
				onEvent(event)
			}

			select {
			case combined <- struct{}{}:
			default:
			}
		}
	}()
	return combined
}

func logErrors(errs <-chan error) {
	for err := range errs {
		log.WithError(err).Warn("File watcher error")
	}
}

// getPathsToWatch returns dir and every directory below it. Files don't
// need their own watch, since the watch on a directory reports changes to
// its entries.
func getPathsToWatch(dir string) (paths []string, err error) {
	fi, err := fs.Stat(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.FileNotFound{Path: dir}
		}
		return nil, errors.WithContext(err, "stat")
	}
	if !fi.IsDir() {
		return nil, errors.New("not a directory")
	}

	err = afero.Walk(fs, dir, func(path string, fi os.FileInfo, err error) error {
		if err != nil {
			return errors.WithContext(err, "walk error")
		}

		if fi.IsDir() {
			paths = append(paths, path)
		}
		return nil
	})
	return paths, err
}
