// Package host is an Emscripten-shaped module runtime built on wazero.
//
// Entry returns a qtwasm.EntryFunc that compiles the application module,
// exposes the capabilities the module's imports call for, runs the
// configured preRun listeners, resolves preloaded files, links side modules
// and fires the runtime-initialized listeners:
//
//	entry := host.Entry(host.WithFetcher(fetch.New("./dist")))
//	inst, err := entry(ctx, &qtwasm.RuntimeConfig{NoInitialRun: true})
//	...
//	err = inst.CallMain(ctx, []string{"-platform", "wasm"})
//
// # Capabilities
//
// ENV is exported when the module imports wasi_snapshot_preview1
// environ_get, FS when it imports path_open. WithExportAll exports both.
//
// # Main
//
// CallMain instantiates the module and calls _start. The outcome is mapped
// onto the runtime config hooks:
//
//	_start returns         OnExit(0)
//	proc_exit(code)        OnExit(code)
//	trap or abort()        OnAbort(text), returns an errors.ErrAbort error
//	event loop unwind      returns qtwasm.ErrUnwind
//
// # Runtimes
//
// Each instance owns a wazero runtime unless WithRuntime supplies a shared
// one. A module handed over through RuntimeConfig.InstantiateWasm must be
// compiled by the runtime the instance uses.
package host
