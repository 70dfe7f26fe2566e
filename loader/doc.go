// Package loader sequences the startup of a WebAssembly application module.
//
// Load runs a fixed protocol:
//
//  1. Normalize validates the Config before any I/O, applies defaults and
//     produces the host-facing qtwasm.RuntimeConfig. Automatic main is
//     always disabled; the caller's intent is replayed manually.
//  2. Preload manifests are fetched concurrently and flattened in
//     declaration order.
//  3. The entry function is called once, raced against a circuit breaker
//     that turns instantiation failures the host cannot report into errors.
//  4. A pre-run listener copies Environment into the instance's ENV and
//     materializes preloaded files into its virtual filesystem.
//  5. Main is called with the recorded arguments.
//
// Termination is normalized into exactly one ExitReport per load: the exit
// hook, the abort hook, or a failure escaping instantiation or main. A failure
// matching the unwind predicate is the application's event loop taking over
// and is neither reported nor returned.
//
// Caller-supplied hooks are kept and run before the loader's own listeners.
package loader
