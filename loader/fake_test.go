package loader

import (
	"context"
	"fmt"
	"io/fs"
	"sync"

	"github.com/tetratelabs/wazero"

	qtwasm "github.com/wippyai/qtwasm-loader"
)

type preloaded struct {
	parent, name, source string
}

type fakeFS struct {
	mkdirErr error
	dirs     map[string]bool
	files    []preloaded
	mkdirs   []string
}

func newFakeFS() *fakeFS {
	return &fakeFS{dirs: map[string]bool{"/": true}}
}

func (f *fakeFS) Mkdir(path string) error {
	f.mkdirs = append(f.mkdirs, path)
	if f.mkdirErr != nil {
		return f.mkdirErr
	}
	if f.dirs[path] {
		return &fs.PathError{Op: "mkdir", Path: path, Err: fs.ErrExist}
	}
	f.dirs[path] = true
	return nil
}

func (f *fakeFS) CreatePreloadedFile(parent, name, source string, canRead, canWrite bool) error {
	if !canRead || !canWrite {
		return fmt.Errorf("unexpected permissions for %s", name)
	}
	f.files = append(f.files, preloaded{parent: parent, name: name, source: source})
	return nil
}

// fakeInstance stands in for a host instance. A nil env or fs means the
// capability is not exported.
type fakeInstance struct {
	env  map[string]string
	fs   *fakeFS
	rc   *qtwasm.RuntimeConfig
	main func(rc *qtwasm.RuntimeConfig, args []string) error

	mu       sync.Mutex
	mainArgs [][]string
	closed   bool
}

func (i *fakeInstance) Env() map[string]string { return i.env }

func (i *fakeInstance) FS() qtwasm.FileSystem {
	if i.fs == nil {
		return nil
	}
	return i.fs
}

func (i *fakeInstance) CallMain(_ context.Context, args []string) error {
	i.mu.Lock()
	i.mainArgs = append(i.mainArgs, args)
	i.mu.Unlock()
	if i.main == nil {
		for _, fn := range i.rc.OnExit {
			fn(0)
		}
		return nil
	}
	return i.main(i.rc, args)
}

func (i *fakeInstance) Close(context.Context) error {
	i.mu.Lock()
	i.closed = true
	i.mu.Unlock()
	return nil
}

func (i *fakeInstance) mainCalls() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return len(i.mainArgs)
}

// fakeEntry behaves like a host: optional InstantiateWasm, preRun,
// runtime initialized, then resolve.
func fakeEntry(inst *fakeInstance) qtwasm.EntryFunc {
	return func(ctx context.Context, rc *qtwasm.RuntimeConfig) (qtwasm.Instance, error) {
		inst.rc = rc
		if rc.InstantiateWasm != nil {
			got := make(chan struct{})
			rc.InstantiateWasm(ctx, func(wazero.CompiledModule) error {
				close(got)
				return nil
			})
			select {
			case <-got:
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
		for _, fn := range rc.PreRun {
			if err := fn(ctx, inst); err != nil {
				return nil, err
			}
		}
		for _, fn := range rc.OnRuntimeInitialized {
			fn()
		}
		return inst, nil
	}
}

// reports collects exit reports.
type reports struct {
	mu   sync.Mutex
	list []ExitReport
}

func (r *reports) add(rep ExitReport) {
	r.mu.Lock()
	r.list = append(r.list, rep)
	r.mu.Unlock()
}

func (r *reports) all() []ExitReport {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]ExitReport(nil), r.list...)
}
