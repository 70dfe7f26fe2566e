package host

import (
	"context"
	"sync"

	"github.com/tetratelabs/wazero"
	"go.uber.org/zap"

	qtwasm "github.com/wippyai/qtwasm-loader"
	"github.com/wippyai/qtwasm-loader/errors"
	"github.com/wippyai/qtwasm-loader/fetch"
)

// Entry returns an EntryFunc constructing instances with opts.
func Entry(opts ...Option) qtwasm.EntryFunc {
	o := newOptions(opts)
	return func(ctx context.Context, rc *qtwasm.RuntimeConfig) (qtwasm.Instance, error) {
		inst, err := construct(ctx, o, rc)
		if err != nil {
			return nil, err
		}
		return inst, nil
	}
}

func construct(ctx context.Context, o *options, rc *qtwasm.RuntimeConfig) (*Instance, error) {
	log := Logger()

	r, owned := o.runtime, false
	if r == nil {
		r = wazero.NewRuntimeWithConfig(ctx, wazero.NewRuntimeConfig().WithCloseOnContextDone(true))
		owned = true
	}

	inst := &Instance{runtime: r, rc: rc, program: o.program, ownsRuntime: owned}
	ok := false
	defer func() {
		if !ok {
			if err := inst.Close(context.WithoutCancel(ctx)); err != nil {
				log.Warn("release failed instance", zap.Error(err))
			}
		}
	}()

	if err := registerHostModules(ctx, r); err != nil {
		return nil, err
	}

	compiled, err := resolveModule(ctx, r, o.fetcher, rc)
	if err != nil {
		return nil, err
	}
	inst.compiled = compiled

	caps := detectCapabilities(compiled)
	if o.exportAll {
		caps = capabilities{env: true, fs: true}
	}
	if caps.env {
		inst.env = map[string]string{}
	}
	inst.exportFS = caps.fs
	if inst.fs, err = newDirFS(); err != nil {
		return nil, err
	}
	log.Debug("module compiled",
		zap.Bool("env", caps.env),
		zap.Bool("fs", caps.fs),
		zap.String("root", inst.fs.root))

	for _, fn := range rc.PreRun {
		if err := fn(ctx, inst); err != nil {
			return nil, err
		}
	}
	if err := inst.fs.resolve(ctx, o.fetcher); err != nil {
		return nil, err
	}
	if err := linkSideModules(ctx, r, o.fetcher, rc); err != nil {
		return nil, err
	}

	for _, fn := range rc.OnRuntimeInitialized {
		fn()
	}
	ok = true

	if !rc.NoInitialRun {
		if err := inst.CallMain(ctx, rc.Arguments); err != nil && !errors.Is(err, qtwasm.ErrUnwind) {
			ok = false
			return nil, err
		}
	}
	return inst, nil
}

// resolveModule obtains the compiled application module, either from the
// config's InstantiateWasm or by fetching and compiling the binary.
func resolveModule(ctx context.Context, r wazero.Runtime, f fetch.Fetcher, rc *qtwasm.RuntimeConfig) (wazero.CompiledModule, error) {
	if rc.InstantiateWasm != nil {
		return awaitModule(ctx, r, rc)
	}

	name := rc.WasmBinaryFile
	if name == "" {
		name = DefaultBinaryFile
	}
	location := rc.Locate(name)
	data, err := f.Fetch(ctx, location)
	if err != nil {
		return nil, errors.Fetch(errors.PhaseInstantiate, location, err)
	}
	compiled, err := r.CompileModule(ctx, data)
	if err != nil {
		return nil, errors.Instantiation(err)
	}
	if err := validate(r, compiled, rc.DynamicLibraries); err != nil {
		return nil, err
	}
	return compiled, nil
}

// awaitModule waits for InstantiateWasm to deliver a module that passes
// validation. A rejected module is reported to the provider only.
func awaitModule(ctx context.Context, r wazero.Runtime, rc *qtwasm.RuntimeConfig) (wazero.CompiledModule, error) {
	got := make(chan wazero.CompiledModule, 1)
	var once sync.Once

	go rc.InstantiateWasm(ctx, func(compiled wazero.CompiledModule) error {
		if compiled == nil {
			return errors.InvalidData(errors.PhaseInstantiate, nil, "no module delivered")
		}
		if err := validate(r, compiled, rc.DynamicLibraries); err != nil {
			return err
		}
		once.Do(func() { got <- compiled })
		return nil
	})

	select {
	case compiled := <-got:
		return compiled, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// linkSideModules instantiates the configured dynamic libraries under their
// base names. Libraries already linked into the runtime are reused.
func linkSideModules(ctx context.Context, r wazero.Runtime, f fetch.Fetcher, rc *qtwasm.RuntimeConfig) error {
	for _, lib := range rc.DynamicLibraries {
		name := sideModuleName(lib)
		if r.Module(name) != nil {
			continue
		}

		location := rc.Locate(lib)
		data, err := f.Fetch(ctx, location)
		if err != nil {
			return errors.Fetch(errors.PhaseInstantiate, location, err)
		}
		cfg := wazero.NewModuleConfig().WithName(name).WithStartFunctions()
		if _, err := r.InstantiateWithConfig(ctx, data, cfg); err != nil {
			return errors.Registration(name, err)
		}
		Logger().Debug("side module linked",
			zap.String("name", name),
			zap.String("location", location))
	}
	return nil
}
