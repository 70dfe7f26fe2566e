// Package errors provides structured error types for the module loader.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error category).
// The Error type carries a detail message, an optional path and a cause chain.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhasePreload, errors.KindFetch).
//		Path("manifests", "qt.json").
//		Detail("status %d", 404).
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.Configuration("config.qt is required, expected an object")
//	err := errors.CapabilityMissing("FS", "FS must be exported if preload is used")
//
// The Err* sentinels match any error of the same Kind:
//
//	if errors.Is(err, errors.ErrConfiguration) { ... }
package errors
