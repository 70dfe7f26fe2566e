package qtwasm

import (
	"context"
	"errors"
	"io"

	"github.com/tetratelabs/wazero"
)

// ErrUnwind is raised when the application's event loop unwinds the main
// call stack on purpose. It marks an expected early return from main.
var ErrUnwind = errors.New("unwind")

// Instance is a live application module.
type Instance interface {
	// CallMain runs the module's entry point with the given arguments.
	CallMain(ctx context.Context, args []string) error
	Close(ctx context.Context) error
}

// EnvExporter is implemented by instances that expose their environment
// variable store. A nil map means the store is not exported.
type EnvExporter interface {
	Env() map[string]string
}

// FSExporter is implemented by instances that expose their virtual filesystem.
type FSExporter interface {
	FS() FileSystem
}

// FileSystem is the module's virtual file namespace.
type FileSystem interface {
	// Mkdir creates a single directory. It returns an error wrapping
	// fs.ErrExist if the directory already exists.
	Mkdir(path string) error

	// CreatePreloadedFile registers a file that is fetched from source and
	// placed at parent/name before main runs.
	CreatePreloadedFile(parent, name, source string, canRead, canWrite bool) error
}

// PreRunFunc runs after the module is constructed and before main.
type PreRunFunc func(ctx context.Context, inst Instance) error

// InstantiateWasmFunc supplies the compiled module in place of the host's
// own fetch-and-compile. The host waits until success is called; an error
// returned by success is not seen by the host.
type InstantiateWasmFunc func(ctx context.Context, success func(wazero.CompiledModule) error)

// Hooks holds ordered lifecycle listeners. Listeners run in slice order.
type Hooks struct {
	PreRun               []PreRunFunc
	OnRuntimeInitialized []func()
	OnExit               []func(code int)
	OnAbort              []func(text string)
}

// RuntimeConfig is the host-facing configuration handed to an EntryFunc.
type RuntimeConfig struct {
	Hooks

	// LocateFile maps a file name requested by the host to the location it
	// is fetched from. Nil means identity.
	LocateFile func(name string) string

	InstantiateWasm InstantiateWasmFunc

	Stdout io.Writer
	Stderr io.Writer

	WasmBinaryFile   string
	Arguments        []string
	DynamicLibraries []string

	QtContainerElements []string
	QtFontDPI           float64

	NoInitialRun bool
}

// Locate applies LocateFile to name.
func (c *RuntimeConfig) Locate(name string) string {
	if c.LocateFile == nil {
		return name
	}
	return c.LocateFile(name)
}

// EntryFunc constructs a module instance from a runtime configuration.
type EntryFunc func(ctx context.Context, cfg *RuntimeConfig) (Instance, error)
