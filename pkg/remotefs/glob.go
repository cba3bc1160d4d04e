package remotefs

import (
	"context"
	"path"

	"github.com/gobwas/glob"

	"github.com/sidkik/cpsync/pkg/errors"
)

// Iterator lazily yields the paths found by Glob. Directories end with a
// trailing "/". An Iterator can only be consumed once.
//
//	it, err := remotefs.Glob(ctx, client, "fs/", "*.py")
//	for it.Next() {
//		fmt.Println(it.Path())
//	}
//	if err := it.Err(); err != nil { ... }
type Iterator struct {
	ctx     context.Context
	walker  *walker
	pattern glob.Glob

	// yieldRoot is whether the root directory itself is part of the output.
	yieldRoot bool
	started   bool

	current string
	err     error
}

// Glob walks root depth-first and yields every path whose last element
// matches pattern, parents before children and siblings in the order the
// device listed them. An empty pattern matches everything, and the root
// itself is yielded first.
//
// Directories that can't be listed are skipped silently along with
// everything beneath them. The only error Glob returns itself is an invalid
// pattern; a cancelled ctx is reported by Iterator.Err.
func Glob(ctx context.Context, lister Lister, root, pattern string) (*Iterator, error) {
	it := &Iterator{
		ctx:       ctx,
		walker:    newWalker(lister, root, pruneErrors),
		yieldRoot: pattern == "",
	}

	if pattern != "" {
		compiled, err := glob.Compile(pattern)
		if err != nil {
			return nil, errors.WithContext(err, "compile pattern")
		}
		it.pattern = compiled
	}
	return it, nil
}

// Next advances to the next matching path. It returns false when the walk is
// done or failed.
func (it *Iterator) Next() bool {
	if it.err != nil {
		return false
	}

	for {
		v, ok, err := it.walker.next(it.ctx)
		if err != nil {
			it.err = err
			return false
		}
		if !ok {
			return false
		}

		// The walk always starts with the root.
		isRoot := !it.started
		it.started = true

		if isRoot {
			if !it.yieldRoot {
				continue
			}
		} else if it.pattern != nil && !it.pattern.Match(path.Base(v.path)) {
			continue
		}

		it.current = v.path
		if v.kind == visitDir {
			it.current += "/"
		}
		return true
	}
}

// Path returns the path found by the last call to Next.
func (it *Iterator) Path() string {
	return it.current
}

// Err returns the error that stopped the iteration early, if any.
func (it *Iterator) Err() error {
	return it.err
}

// Collect drains the iterator into a slice.
func (it *Iterator) Collect() ([]string, error) {
	var paths []string
	for it.Next() {
		paths = append(paths, it.Path())
	}
	return paths, it.Err()
}
