// Package qtwasm loads WebAssembly application modules the way the Qt for
// WebAssembly loader does, on top of a wazero host runtime.
//
// The library is organized into several packages with distinct responsibilities:
//
//	qtwasm/          Root package with the capability surface shared by the loader and hosts
//	├── loader/      Load sequencer: config normalization, preload, env, instantiation, lifecycle
//	├── host/        wazero-backed host runtime implementing EntryFunc
//	├── fetch/       Data sources for manifests, binaries and preloaded files
//	├── manifest/    Preload manifest decoding
//	├── legacy/      Deprecated QtLoader option-bag API
//	├── errors/      Structured error types
//	└── cmd/qtrun/   Command-line runner with an optional loader screen
//
// # Quick Start
//
//	inst, err := loader.Load(ctx, &loader.Config{
//	    WasmBinaryFile: "app.wasm",
//	    Qt: &loader.QtConfig{
//	        EntryFunction: host.Entry(host.WithFetcher(fetch.New("./dist"))),
//	        Environment:   map[string]string{"QT_QPA_PLATFORM": "offscreen"},
//	        Preload:       []string{"preload.json"},
//	        OnExit: func(r loader.ExitReport) {
//	            log.Printf("exited: %+v", r)
//	        },
//	    },
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer inst.Close(ctx)
//
// # Exit Reports
//
// Every load attempt delivers at most one ExitReport: from the exit hook, the
// abort hook, or a failure escaping instantiation or main. An unwind raised by
// the application's own event loop (ErrUnwind) is not a failure and produces
// no report.
package qtwasm
