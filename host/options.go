package host

import (
	"github.com/tetratelabs/wazero"

	"github.com/wippyai/qtwasm-loader/fetch"
)

// DefaultBinaryFile is fetched when RuntimeConfig.WasmBinaryFile is empty.
const DefaultBinaryFile = "app.wasm"

// Option configures Entry.
type Option func(*options)

type options struct {
	runtime   wazero.Runtime
	fetcher   fetch.Fetcher
	program   string
	exportAll bool
}

// WithRuntime shares r between instances. Instances do not close it.
func WithRuntime(r wazero.Runtime) Option {
	return func(o *options) {
		o.runtime = r
	}
}

// WithFetcher sets the fetcher for the module binary, side modules and
// preloaded files. Defaults to fetch.New("").
func WithFetcher(f fetch.Fetcher) Option {
	return func(o *options) {
		o.fetcher = f
	}
}

// WithExportAll exports ENV and FS regardless of the module's imports.
func WithExportAll() Option {
	return func(o *options) {
		o.exportAll = true
	}
}

// WithProgramName sets argv[0]. Defaults to "./this.program".
func WithProgramName(name string) Option {
	return func(o *options) {
		o.program = name
	}
}

func newOptions(opts []Option) *options {
	o := &options{program: "./this.program"}
	for _, opt := range opts {
		opt(o)
	}
	if o.fetcher == nil {
		o.fetcher = fetch.New("")
	}
	return o
}
