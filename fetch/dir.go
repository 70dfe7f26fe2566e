package fetch

import (
	"context"
	"io/fs"
	"os"
	"path"

	"github.com/wippyai/qtwasm-loader/errors"
)

// Dir fetches paths below a local directory. Locations are interpreted the
// way a web server would: "/a/b" and "a/b" both name Root/a/b.
type Dir struct {
	fsys fs.FS
	Root string
}

// NewDir returns a Dir rooted at root. An empty root means ".".
func NewDir(root string) *Dir {
	if root == "" {
		root = "."
	}
	return &Dir{Root: root, fsys: os.DirFS(root)}
}

// Fetch implements Fetcher.
func (d *Dir) Fetch(ctx context.Context, location string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	name := path.Clean("/" + location)[1:]
	if name == "" {
		return nil, errors.InvalidData(errors.PhaseFetch, []string{location}, "location names a directory")
	}
	data, err := fs.ReadFile(d.fsys, name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, errors.Fetch(errors.PhaseFetch, location, errors.BadStatus(location, 404))
		}
		return nil, errors.Fetch(errors.PhaseFetch, location, err)
	}
	return data, nil
}
