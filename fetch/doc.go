// Package fetch provides the data sources the loader and host read from:
// preload manifests, module binaries, side modules and preloaded files.
//
// A location is either an absolute http(s) URL or a path. Paths are resolved
// against the base given to New: a URL base fetches over HTTP, any other base
// reads from the local directory it names.
//
//	f := fetch.New("https://example.com/app/")
//	data, err := f.Fetch(ctx, "qt/preload.json")
//
// Unsuccessful responses and missing files are reported as errors matching
// errors.ErrFetch.
package fetch
