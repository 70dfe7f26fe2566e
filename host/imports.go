package host

import (
	"context"
	"path"
	"strings"
	"sync"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
	"github.com/tetratelabs/wazero/sys"

	qtwasm "github.com/wippyai/qtwasm-loader"
	"github.com/wippyai/qtwasm-loader/errors"
)

const (
	envModule = "env"

	importEnviron  = "environ_get"
	importPathOpen = "path_open"
)

// errAborted is raised by the guest's abort import.
var errAborted = errors.Abort("Aborted()", nil)

// envFunctions lists the functions of the env host module.
var envFunctions = map[string]bool{
	"emscripten_unwind_to_js_event_loop": true,
	"emscripten_force_exit":              true,
	"abort":                              true,
}

// hostInitMu serializes host module registration across instances sharing
// a runtime.
var hostInitMu sync.Mutex

// registerHostModules instantiates WASI and the env module once per runtime.
func registerHostModules(ctx context.Context, r wazero.Runtime) error {
	hostInitMu.Lock()
	defer hostInitMu.Unlock()

	if r.Module(wasi_snapshot_preview1.ModuleName) == nil {
		builder := r.NewHostModuleBuilder(wasi_snapshot_preview1.ModuleName)
		wasi_snapshot_preview1.NewFunctionExporter().ExportFunctions(builder)
		if _, err := builder.Instantiate(ctx); err != nil {
			return errors.Registration(wasi_snapshot_preview1.ModuleName, err)
		}
	}

	if r.Module(envModule) == nil {
		if _, err := instantiateEnv(ctx, r); err != nil {
			return errors.Registration(envModule, err)
		}
	}
	return nil
}

func instantiateEnv(ctx context.Context, r wazero.Runtime) (api.Module, error) {
	builder := r.NewHostModuleBuilder(envModule)

	builder = builder.NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(func(context.Context, api.Module, []uint64) {
			panic(qtwasm.ErrUnwind)
		}), nil, nil).
		Export("emscripten_unwind_to_js_event_loop")

	builder = builder.NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(func(_ context.Context, _ api.Module, stack []uint64) {
			panic(sys.NewExitError(api.DecodeU32(stack[0])))
		}), []api.ValueType{api.ValueTypeI32}, nil).
		Export("emscripten_force_exit")

	builder = builder.NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(func(context.Context, api.Module, []uint64) {
			panic(errAborted)
		}), nil, nil).
		Export("abort")

	return builder.Instantiate(ctx)
}

// capabilities records what the module's imports call for.
type capabilities struct {
	env bool
	fs  bool
}

func detectCapabilities(compiled wazero.CompiledModule) capabilities {
	var caps capabilities
	for _, def := range compiled.ImportedFunctions() {
		mod, name, _ := def.Import()
		if mod != wasi_snapshot_preview1.ModuleName {
			continue
		}
		switch name {
		case importEnviron:
			caps.env = true
		case importPathOpen:
			caps.fs = true
		}
	}
	return caps
}

// sideModuleName is the module name a side module is linked under:
// its base name without extension.
func sideModuleName(lib string) string {
	base := path.Base(lib)
	if ext := path.Ext(base); ext != "" {
		base = strings.TrimSuffix(base, ext)
	}
	return base
}

// validate checks the module has an entry point and every import resolves
// to a host module, a configured side module or a module already linked
// into r.
func validate(r wazero.Runtime, compiled wazero.CompiledModule, sideModules []string) error {
	if _, ok := compiled.ExportedFunctions()["_start"]; !ok {
		return errors.NotFound(errors.PhaseInstantiate, "export", "_start")
	}

	sides := make(map[string]bool, len(sideModules))
	for _, lib := range sideModules {
		sides[sideModuleName(lib)] = true
	}

	var missing []string
	for _, def := range compiled.ImportedFunctions() {
		mod, name, _ := def.Import()
		switch {
		case mod == wasi_snapshot_preview1.ModuleName:
		case mod == envModule:
			if !envFunctions[name] {
				missing = append(missing, mod+"#"+name)
			}
		case sides[mod], r.Module(mod) != nil:
		default:
			missing = append(missing, mod+"#"+name)
		}
	}
	if len(missing) > 0 {
		return errors.NewMissingImportsError(missing)
	}
	return nil
}
