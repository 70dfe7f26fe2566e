package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path"

	"github.com/tetratelabs/wazero"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/term"

	qtwasm "github.com/wippyai/qtwasm-loader"
	"github.com/wippyai/qtwasm-loader/fetch"
	"github.com/wippyai/qtwasm-loader/host"
	"github.com/wippyai/qtwasm-loader/legacy"
	"github.com/wippyai/qtwasm-loader/loader"
)

func main() {
	opts, err := parseOptions(os.Args[1:], nil, os.Stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}

	log, err := newLogger(opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}
	defer log.Sync()
	loader.SetLogger(log.Named("loader"))
	host.SetLogger(log.Named("host"))
	legacy.SetLogger(log.Named("legacy"))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var code int
	if opts.Interactive && term.IsTerminal(int(os.Stdout.Fd())) {
		code, err = runInteractive(ctx, opts, log)
	} else {
		code, err = run(ctx, opts, log, os.Stdout, os.Stderr)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if code == 0 {
			code = 1
		}
	}
	log.Sync()
	os.Exit(code)
}

func newLogger(opts *options) (*zap.Logger, error) {
	if opts.Verbose {
		return zap.NewDevelopment()
	}
	level, err := zapcore.ParseLevel(opts.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(level)
	return cfg.Build()
}

// session is one load of the application described by opts.
type session struct {
	runtime wazero.Runtime
	fetcher *fetch.Router
	binary  string
}

func newSession(ctx context.Context, opts *options, log *zap.Logger) *session {
	binary := opts.Wasm
	if binary == "" {
		binary = host.DefaultBinaryFile
	}
	return &session{
		runtime: wazero.NewRuntimeWithConfig(ctx, wazero.NewRuntimeConfig().WithCloseOnContextDone(true)),
		fetcher: fetch.New(opts.Base, fetch.WithLogger(log.Named("fetch"))),
		binary:  binary,
	}
}

// compile fetches and compiles the application module into the session
// runtime.
func (s *session) compile(ctx context.Context) (wazero.CompiledModule, error) {
	data, err := s.fetcher.Fetch(ctx, s.binary)
	if err != nil {
		return nil, err
	}
	return s.runtime.CompileModule(ctx, data)
}

func (s *session) entry() qtwasm.EntryFunc {
	return host.Entry(
		host.WithRuntime(s.runtime),
		host.WithFetcher(s.fetcher),
		host.WithProgramName(path.Base(s.binary)),
	)
}

func (s *session) close(ctx context.Context) {
	s.fetcher.Close()
	s.runtime.Close(ctx)
}

func run(ctx context.Context, opts *options, log *zap.Logger, stdout, stderr io.Writer) (int, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s := newSession(ctx, opts, log)
	defer s.close(context.WithoutCancel(ctx))

	var report *loader.ExitReport
	inst, err := loader.Load(ctx, &loader.Config{
		Stdout:           stdout,
		Stderr:           stderr,
		WasmBinaryFile:   s.binary,
		Arguments:        opts.Arguments,
		DynamicLibraries: opts.DynamicLibraries,
		NoInitialRun:     opts.NoInitialRun,
		Qt: &loader.QtConfig{
			EntryFunction:     s.entry(),
			Module:            s.compile,
			Fetcher:           s.fetcher,
			Environment:       opts.Environment,
			QtDir:             opts.QtDir,
			Preload:           opts.Preload,
			ContainerElements: opts.ContainerElements,
			FontDPI:           opts.FontDPI,
			OnLoaded: func() {
				log.Info("application loaded", zap.String("wasm", s.binary))
			},
			OnExit: func(r loader.ExitReport) {
				report = &r
			},
		},
	})
	if err != nil {
		return 1, err
	}
	if inst != nil {
		defer inst.Close(context.WithoutCancel(ctx))
	}

	if report != nil && report.Crashed {
		fmt.Fprintf(stderr, "crashed: %s\n", report.Text)
	}
	return exitStatus(report), nil
}

// exitStatus maps an exit report to a process exit status. No report
// means main unwound or was never called.
func exitStatus(r *loader.ExitReport) int {
	switch {
	case r == nil:
		return 0
	case r.Crashed:
		return 1
	}
	code, _ := r.ExitCode()
	return code
}
