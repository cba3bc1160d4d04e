// Package remotefs enumerates the device's filesystem through its
// directory-listing API.
//
// There are two views of the same walk. BuildTree captures the whole tree,
// recording failed listings inline as error nodes, and is meant for display.
// Glob lazily yields matching paths and silently skips directories whose
// listing failed, and is meant for transfers where partial visibility beats
// stopping early.
package remotefs

import (
	"context"
	"path"
	"strings"

	"github.com/sidkik/cpsync/pkg/device"
)

// Lister lists the immediate children of a remote directory.
type Lister interface {
	List(ctx context.Context, dir string) ([]device.Entry, error)
}

// listingErrorPolicy decides what the walk does when a directory can't be
// listed.
type listingErrorPolicy int

const (
	// markErrors reports the failure to the visitor and continues with the
	// directory's siblings.
	markErrors listingErrorPolicy = iota

	// pruneErrors drops the directory's subtree and continues with its
	// siblings.
	pruneErrors
)

// visitKind is the kind of event emitted by the walker.
type visitKind int

const (
	visitDir visitKind = iota
	visitFile
	visitListingError
)

type visit struct {
	kind visitKind

	// path is the clean posix path, without a trailing separator.
	path string

	// parent is the path of the directory that listed this entry. It's empty
	// for the root.
	parent string

	// err is only set for visitListingError.
	err error
}

// frame is a pending unit of work on the walker's stack.
type frame struct {
	path   string
	parent string
	isDir  bool
}

// walker is a depth-first, pre-order traversal driven by an explicit stack
// rather than recursion, so callers can pull one visit at a time.
type walker struct {
	lister Lister
	policy listingErrorPolicy
	stack  []frame

	// pending holds visits that have been produced but not yet consumed.
	pending []visit
}

func newWalker(lister Lister, root string, policy listingErrorPolicy) *walker {
	return &walker{
		lister: lister,
		policy: policy,
		stack:  []frame{{path: cleanPath(root), isDir: true}},
	}
}

// next returns the next visit. It returns false once the walk is done, or
// when ctx is cancelled, in which case the context's error is returned.
func (w *walker) next(ctx context.Context) (visit, bool, error) {
	for len(w.pending) == 0 {
		if len(w.stack) == 0 {
			return visit{}, false, nil
		}
		if err := ctx.Err(); err != nil {
			return visit{}, false, err
		}

		top := w.stack[len(w.stack)-1]
		w.stack = w.stack[:len(w.stack)-1]
		if !top.isDir {
			w.pending = append(w.pending, visit{kind: visitFile, path: top.path, parent: top.parent})
			continue
		}

		w.pending = append(w.pending, visit{kind: visitDir, path: top.path, parent: top.parent})

		entries, err := w.lister.List(ctx, top.path+"/")
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return visit{}, false, ctxErr
			}
			if w.policy == markErrors {
				w.pending = append(w.pending, visit{
					kind:   visitListingError,
					path:   top.path,
					parent: top.parent,
					err:    err,
				})
			}
			continue
		}

		// Push in reverse so that the first entry is popped first.
		for i := len(entries) - 1; i >= 0; i-- {
			entry := entries[i]
			if !validName(entry.Name) {
				continue
			}
			w.stack = append(w.stack, frame{
				path:   path.Join(top.path, entry.Name),
				parent: top.path,
				isDir:  entry.Directory,
			})
		}
	}

	v := w.pending[0]
	w.pending = w.pending[1:]
	return v, true, nil
}

// validName returns whether name can be joined to its directory without
// leaving it. Entries like `.`, `..` or `a/b` would re-list the directory or
// reach outside the walked subtree, so they're skipped.
func validName(name string) bool {
	return name != "" && name != "." && name != ".." && !strings.ContainsAny(name, "/\\")
}

// cleanPath normalizes a remote path to posix form without leading or
// trailing separators. The device root is the empty string.
func cleanPath(p string) string {
	p = path.Clean("/" + strings.TrimSpace(p))
	return strings.TrimPrefix(p, "/")
}

// IsDir returns whether a path yielded by Glob refers to a directory.
func IsDir(p string) bool {
	return strings.HasSuffix(p, "/")
}
