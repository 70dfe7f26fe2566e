package host

import (
	"context"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/wippyai/qtwasm-loader/errors"
	"github.com/wippyai/qtwasm-loader/fetch"
)

// dirFS is the module's virtual filesystem, backed by a host directory
// mounted at "/".
type dirFS struct {
	root    string
	mu      sync.Mutex
	pending []pendingFile
}

// pendingFile is a run dependency: a file fetched before main runs.
type pendingFile struct {
	path     string
	source   string
	canRead  bool
	canWrite bool
}

func newDirFS() (*dirFS, error) {
	root, err := os.MkdirTemp("", "qtwasm-*")
	if err != nil {
		return nil, errors.New(errors.PhaseInstantiate, errors.KindInstantiation).
			Detail("create filesystem root").
			Cause(err).
			Build()
	}
	return &dirFS{root: root}, nil
}

// hostPath maps a guest path to its location below root.
func (d *dirFS) hostPath(guest string) string {
	return filepath.Join(d.root, filepath.FromSlash(path.Clean("/"+guest)))
}

// Mkdir implements qtwasm.FileSystem.
func (d *dirFS) Mkdir(guest string) error {
	return os.Mkdir(d.hostPath(guest), 0o755)
}

// CreatePreloadedFile implements qtwasm.FileSystem. The file is written
// when run dependencies are resolved.
func (d *dirFS) CreatePreloadedFile(parent, name, source string, canRead, canWrite bool) error {
	if name == "" {
		return errors.InvalidData(errors.PhasePreRun, []string{parent}, "preloaded file has no name")
	}
	d.mu.Lock()
	d.pending = append(d.pending, pendingFile{
		path:     path.Join("/", parent, name),
		source:   source,
		canRead:  canRead,
		canWrite: canWrite,
	})
	d.mu.Unlock()
	return nil
}

// resolve fetches every pending file concurrently and writes it.
func (d *dirFS) resolve(ctx context.Context, f fetch.Fetcher) error {
	d.mu.Lock()
	pending := d.pending
	d.pending = nil
	d.mu.Unlock()

	if len(pending) == 0 {
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, p := range pending {
		g.Go(func() error {
			data, err := f.Fetch(gctx, p.source)
			if err != nil {
				return errors.New(errors.PhasePreRun, errors.KindFetch).
					Path(p.path).
					Detail("could not fetch preloaded file: %s", p.source).
					Cause(err).
					Build()
			}
			return d.write(p, data)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	Logger().Debug("run dependencies resolved", zap.Int("files", len(pending)))
	return nil
}

func (d *dirFS) write(p pendingFile, data []byte) error {
	target := d.hostPath(p.path)
	if err := os.WriteFile(target, data, 0o600); err != nil {
		return err
	}
	return os.Chmod(target, p.mode())
}

func (p pendingFile) mode() fs.FileMode {
	var m fs.FileMode
	if p.canRead {
		m |= 0o444
	}
	if p.canWrite {
		m |= 0o200
	}
	return m
}

func (d *dirFS) remove() error {
	return os.RemoveAll(d.root)
}
