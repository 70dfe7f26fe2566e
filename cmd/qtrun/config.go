package main

import (
	"flag"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"

	"github.com/wippyai/qtwasm-loader/fetch"
)

// fileConfig is the declarative config file.
type fileConfig struct {
	Wasm              string            `hcl:"wasm,optional"`
	QtDir             string            `hcl:"qtdir,optional"`
	Base              string            `hcl:"base,optional"`
	Preload           []string          `hcl:"preload,optional"`
	Environment       map[string]string `hcl:"environment,optional"`
	Arguments         []string          `hcl:"arguments,optional"`
	DynamicLibraries  []string          `hcl:"dynamic_libraries,optional"`
	ContainerElements []string          `hcl:"container_elements,optional"`
	FontDPI           float64           `hcl:"font_dpi,optional"`
	NoInitialRun      bool              `hcl:"no_initial_run,optional"`
}

// envConfig holds environment overrides.
type envConfig struct {
	QtDir    string `env:"QTRUN_QTDIR"`
	Base     string `env:"QTRUN_BASE"`
	LogLevel string `env:"QTRUN_LOG_LEVEL" envDefault:"info"`
}

// options is the merged run configuration.
type options struct {
	fileConfig
	ConfigFile  string
	LogLevel    string
	Interactive bool
	Verbose     bool
}

// loadFile decodes an HCL config file. A missing or relative directory base
// is resolved against the directory holding the file, so the locations it
// lists do not depend on the working directory.
func loadFile(path string) (fileConfig, error) {
	var cfg fileConfig

	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return cfg, fmt.Errorf("parse config %s: %w", path, diags)
	}
	if diags := gohcl.DecodeBody(file.Body, nil, &cfg); diags.HasErrors() {
		return cfg, fmt.Errorf("decode config %s: %w", path, diags)
	}

	dir := filepath.Dir(path)
	switch {
	case cfg.Base == "":
		cfg.Base = dir
	case !fetch.IsURL(cfg.Base) && !filepath.IsAbs(cfg.Base):
		cfg.Base = filepath.Join(dir, cfg.Base)
	}
	return cfg, nil
}

// parseOptions merges the config file, environment overrides and flags,
// later sources winning. A nil environ reads the process environment.
func parseOptions(args []string, environ map[string]string, stderr io.Writer) (*options, error) {
	fs := flag.NewFlagSet("qtrun", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var (
		configFile  = fs.String("config", "", "HCL config file")
		wasmFile    = fs.String("wasm", "", "Application module (default app.wasm)")
		qtDir       = fs.String("qtdir", "", "Qt root directory (default qt)")
		preload     = fs.String("preload", "", "Preload manifests (comma-separated)")
		envVars     = fs.String("env", "", "Environment variables (KEY=VAL,KEY2=VAL2)")
		cliArgs     = fs.String("argv", "", "Arguments passed to main (comma-separated)")
		base        = fs.String("base", "", "Directory or URL locations are resolved against")
		interactive = fs.Bool("i", false, "Interactive mode with TUI")
		verbose     = fs.Bool("v", false, "Verbose development logging")
	)
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	opts := &options{ConfigFile: *configFile}
	if *configFile != "" {
		cfg, err := loadFile(*configFile)
		if err != nil {
			return nil, err
		}
		opts.fileConfig = cfg
	}

	var ec envConfig
	if err := env.ParseWithOptions(&ec, env.Options{Environment: environ}); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	if ec.QtDir != "" {
		opts.QtDir = ec.QtDir
	}
	if ec.Base != "" {
		opts.Base = ec.Base
	}
	opts.LogLevel = ec.LogLevel

	var parseErr error
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "wasm":
			opts.Wasm = *wasmFile
		case "qtdir":
			opts.QtDir = *qtDir
		case "preload":
			opts.Preload = splitList(*preload)
		case "env":
			vars, err := parseVars(*envVars)
			if err != nil {
				parseErr = err
				return
			}
			if opts.Environment == nil {
				opts.Environment = map[string]string{}
			}
			for k, v := range vars {
				opts.Environment[k] = v
			}
		case "argv":
			opts.Arguments = splitList(*cliArgs)
		case "base":
			opts.Base = *base
		}
	})
	if parseErr != nil {
		return nil, parseErr
	}
	opts.Interactive = *interactive
	opts.Verbose = *verbose

	return opts, nil
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}

func parseVars(s string) (map[string]string, error) {
	vars := make(map[string]string)
	for _, kv := range splitList(s) {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid environment variable %q, expected KEY=VAL", kv)
		}
		vars[k] = v
	}
	return vars, nil
}
