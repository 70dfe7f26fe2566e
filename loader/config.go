package loader

import (
	"context"
	"io"
	"slices"

	"github.com/tetratelabs/wazero"

	qtwasm "github.com/wippyai/qtwasm-loader"
	"github.com/wippyai/qtwasm-loader/errors"
	"github.com/wippyai/qtwasm-loader/fetch"
)

// DefaultQtDir is the Qt root used when QtConfig.QtDir is empty.
const DefaultQtDir = "qt"

// Config is the declarative load request. Qt carries the loader's own
// options; the remaining fields are passed through to the host runtime.
type Config struct {
	Qt *QtConfig

	qtwasm.Hooks

	// LocateFile is the caller's path rewriter. The loader wraps it.
	LocateFile func(name string) string

	// InstantiateWasm is replaced when Qt.Module is set.
	InstantiateWasm qtwasm.InstantiateWasmFunc

	Stdout io.Writer
	Stderr io.Writer

	WasmBinaryFile   string
	Arguments        []string
	DynamicLibraries []string

	// NoInitialRun set by the caller means main is never called.
	NoInitialRun bool
}

// QtConfig holds the loader options.
type QtConfig struct {
	// EntryFunction constructs the module instance. Required.
	EntryFunction qtwasm.EntryFunc

	// Module yields a precompiled module for reuse across loads. It must be
	// compiled by the runtime the entry function instantiates into.
	Module func(ctx context.Context) (wazero.CompiledModule, error)

	// Fetcher reads preload manifests. When nil and Preload is not empty,
	// a fetch.New("") router is used for the fetch and closed afterwards.
	Fetcher fetch.Fetcher

	// IsUnwind reports whether a failure is the application's event loop
	// unwinding main. Defaults to matching qtwasm.ErrUnwind.
	IsUnwind func(err error) bool

	OnLoaded func()
	OnExit   func(ExitReport)

	Environment map[string]string

	QtDir             string
	Preload           []string
	ContainerElements []string
	FontDPI           float64
}

// ExitReport describes how a load attempt terminated. Code is set only for
// a runtime exit. Text is set only when Crashed is true.
type ExitReport struct {
	Code    *int
	Text    string
	Crashed bool
}

// ExitCode returns the reported exit code and whether there is one.
func (r ExitReport) ExitCode() (int, bool) {
	if r.Code == nil {
		return 0, false
	}
	return *r.Code, true
}

// mainIntent records what the caller asked for before automatic main was
// disabled.
type mainIntent struct {
	args    []string
	runMain bool
}

// normalized is the output of Normalize.
type normalized struct {
	runtime *qtwasm.RuntimeConfig
	qt      QtConfig
	intent  mainIntent
}

// Normalize validates cfg and builds the host-facing runtime configuration.
// cfg is not modified. The loader's own listeners are not yet attached.
func Normalize(cfg *Config) (*qtwasm.RuntimeConfig, error) {
	n, err := normalize(cfg)
	if err != nil {
		return nil, err
	}
	return n.runtime, nil
}

func normalize(cfg *Config) (*normalized, error) {
	if cfg == nil {
		return nil, errors.Configuration("config is required, expected an object")
	}
	if cfg.Qt == nil {
		return nil, errors.Configuration("config.qt is required, expected an object")
	}
	if cfg.Qt.EntryFunction == nil {
		return nil, errors.Configuration("config.qt.entryFunction is required, expected a function")
	}

	qt := *cfg.Qt
	if qt.QtDir == "" {
		qt.QtDir = DefaultQtDir
	}
	if qt.Preload == nil {
		qt.Preload = []string{}
	}
	if qt.IsUnwind == nil {
		qt.IsUnwind = isUnwind
	}
	// Relocated to the runtime record below.
	qt.ContainerElements = nil
	qt.FontDPI = 0

	rc := &qtwasm.RuntimeConfig{
		Hooks: qtwasm.Hooks{
			PreRun:               slices.Clone(cfg.PreRun),
			OnRuntimeInitialized: slices.Clone(cfg.OnRuntimeInitialized),
			OnExit:               slices.Clone(cfg.OnExit),
			OnAbort:              slices.Clone(cfg.OnAbort),
		},
		LocateFile:          cfg.LocateFile,
		InstantiateWasm:     cfg.InstantiateWasm,
		Stdout:              cfg.Stdout,
		Stderr:              cfg.Stderr,
		WasmBinaryFile:      cfg.WasmBinaryFile,
		Arguments:           slices.Clone(cfg.Arguments),
		DynamicLibraries:    slices.Clone(cfg.DynamicLibraries),
		QtContainerElements: slices.Clone(cfg.Qt.ContainerElements),
		QtFontDPI:           cfg.Qt.FontDPI,
		NoInitialRun:        true,
	}

	return &normalized{
		runtime: rc,
		qt:      qt,
		intent: mainIntent{
			runMain: !cfg.NoInitialRun,
			args:    slices.Clone(cfg.Arguments),
		},
	}, nil
}

func isUnwind(err error) bool {
	return errors.Is(err, qtwasm.ErrUnwind)
}
