package host

import (
	"context"
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/sys"
	"go.uber.org/zap"

	qtwasm "github.com/wippyai/qtwasm-loader"
	"github.com/wippyai/qtwasm-loader/errors"
)

// trapPrefix starts the message of every wasm runtime trap.
const trapPrefix = "wasm error: "

// Instance is a constructed application module. It implements
// qtwasm.Instance, qtwasm.EnvExporter and qtwasm.FSExporter.
type Instance struct {
	runtime     wazero.Runtime
	compiled    wazero.CompiledModule
	rc          *qtwasm.RuntimeConfig
	env         map[string]string
	fs          *dirFS
	mod         api.Module
	program     string
	ownsRuntime bool
	exportFS    bool

	mu     sync.Mutex
	called bool
	closed bool
}

// Env returns the environment variable store, or nil when ENV is not
// exported.
func (i *Instance) Env() map[string]string {
	return i.env
}

// FS returns the virtual filesystem, or nil when FS is not exported.
func (i *Instance) FS() qtwasm.FileSystem {
	if !i.exportFS {
		return nil
	}
	return i.fs
}

// Root returns the host directory mounted at "/".
func (i *Instance) Root() string {
	return i.fs.root
}

// Module returns the running module, or nil before CallMain.
func (i *Instance) Module() api.Module {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.mod
}

// ContainerElements returns the screen elements requested by the config.
func (i *Instance) ContainerElements() []string {
	return slices.Clone(i.rc.QtContainerElements)
}

// FontDPI returns the requested font DPI, zero for the default.
func (i *Instance) FontDPI() float64 {
	return i.rc.QtFontDPI
}

// CallMain instantiates the module and runs _start with args. It can be
// called once.
func (i *Instance) CallMain(ctx context.Context, args []string) error {
	i.mu.Lock()
	if i.closed {
		i.mu.Unlock()
		return errors.Unsupported(errors.PhaseMain, "instance is closed")
	}
	if i.called {
		i.mu.Unlock()
		return errors.Unsupported(errors.PhaseMain, "main already called")
	}
	i.called = true
	i.mu.Unlock()

	mod, err := i.runtime.InstantiateModule(ctx, i.compiled, i.moduleConfig(args))
	if err != nil {
		return errors.Instantiation(err)
	}
	i.mu.Lock()
	i.mod = mod
	i.mu.Unlock()

	Logger().Debug("calling main", zap.Strings("args", args))
	_, err = mod.ExportedFunction("_start").Call(ctx)
	return i.settle(err)
}

func (i *Instance) moduleConfig(args []string) wazero.ModuleConfig {
	cfg := wazero.NewModuleConfig().
		WithName("").
		WithStartFunctions().
		WithArgs(append([]string{i.program}, args...)...).
		WithFSConfig(wazero.NewFSConfig().WithDirMount(i.fs.root, "/")).
		WithSysWalltime().
		WithSysNanotime().
		WithSysNanosleep()

	for _, k := range slices.Sorted(maps.Keys(i.env)) {
		cfg = cfg.WithEnv(k, i.env[k])
	}
	if i.rc.Stdout != nil {
		cfg = cfg.WithStdout(i.rc.Stdout)
	}
	if i.rc.Stderr != nil {
		cfg = cfg.WithStderr(i.rc.Stderr)
	}
	return cfg
}

// settle maps the outcome of _start onto the exit and abort hooks.
func (i *Instance) settle(err error) error {
	if err == nil {
		i.exit(0)
		return nil
	}

	var exitErr *sys.ExitError
	if errors.As(err, &exitErr) {
		switch exitErr.ExitCode() {
		case sys.ExitCodeContextCanceled, sys.ExitCodeDeadlineExceeded:
			return err
		}
		i.exit(int(exitErr.ExitCode()))
		return nil
	}

	if errors.Is(err, qtwasm.ErrUnwind) {
		return err
	}

	var qerr *errors.Error
	if errors.As(err, &qerr) && qerr.Kind == errors.KindAbort {
		i.abort(qerr.Detail)
		return errors.Abort(qerr.Detail, err)
	}
	if strings.HasPrefix(err.Error(), trapPrefix) {
		text := abortText(err)
		i.abort(text)
		return errors.Abort(text, err)
	}
	return err
}

func (i *Instance) exit(code int) {
	for _, fn := range i.rc.OnExit {
		fn(code)
	}
}

func (i *Instance) abort(text string) {
	for _, fn := range i.rc.OnAbort {
		fn(text)
	}
}

// abortText is the first line of a trap message.
func abortText(err error) string {
	text, _, _ := strings.Cut(err.Error(), "\n")
	return text
}

// Close releases the module, the filesystem root and an owned runtime.
func (i *Instance) Close(ctx context.Context) error {
	i.mu.Lock()
	if i.closed {
		i.mu.Unlock()
		return nil
	}
	i.closed = true
	mod := i.mod
	i.mu.Unlock()

	var firstErr error
	if mod != nil {
		if err := mod.Close(ctx); err != nil {
			firstErr = err
		}
	}
	if i.ownsRuntime {
		if err := i.runtime.Close(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if i.fs != nil {
		if err := i.fs.remove(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
