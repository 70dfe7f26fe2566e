package main

import (
	"io"
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "app.hcl")
	if err := os.WriteFile(p, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestParseOptions_Precedence(t *testing.T) {
	cfg := writeConfig(t, `
wasm        = "app.wasm"
qtdir       = "file-qt"
base        = "file-base"
preload     = ["a.json", "b.json"]
environment = { LANG = "C" }
arguments   = ["-platform", "wasm"]
font_dpi    = 96
`)

	opts, err := parseOptions(
		[]string{"-config", cfg, "-base", "flag-base", "-env", "A=1,B=x=y"},
		map[string]string{"QTRUN_QTDIR": "env-qt", "QTRUN_BASE": "env-base"},
		io.Discard,
	)
	if err != nil {
		t.Fatalf("parseOptions failed: %v", err)
	}

	if opts.Wasm != "app.wasm" {
		t.Errorf("Wasm = %q", opts.Wasm)
	}
	if opts.QtDir != "env-qt" {
		t.Errorf("QtDir = %q, want env override", opts.QtDir)
	}
	if opts.Base != "flag-base" {
		t.Errorf("Base = %q, want flag override", opts.Base)
	}
	if len(opts.Preload) != 2 || opts.Preload[1] != "b.json" {
		t.Errorf("Preload = %v", opts.Preload)
	}
	want := map[string]string{"LANG": "C", "A": "1", "B": "x=y"}
	if len(opts.Environment) != len(want) {
		t.Errorf("Environment = %v, want %v", opts.Environment, want)
	}
	for k, v := range want {
		if opts.Environment[k] != v {
			t.Errorf("Environment[%s] = %q, want %q", k, opts.Environment[k], v)
		}
	}
	if len(opts.Arguments) != 2 || opts.FontDPI != 96 {
		t.Errorf("Arguments = %v, FontDPI = %v", opts.Arguments, opts.FontDPI)
	}
	if opts.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want default", opts.LogLevel)
	}
}

func TestParseOptions_ConfigRelativeBase(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    func(dir string) string
	}{
		{"unset", `wasm = "app.wasm"`, func(dir string) string { return dir }},
		{"relative", `base = "web"`, func(dir string) string { return filepath.Join(dir, "web") }},
		{"absolute", `base = "/srv/app"`, func(string) string { return "/srv/app" }},
		{"url", `base = "https://example.com/app"`, func(string) string { return "https://example.com/app" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := writeConfig(t, tt.content)
			opts, err := parseOptions([]string{"-config", cfg}, map[string]string{}, io.Discard)
			if err != nil {
				t.Fatalf("parseOptions failed: %v", err)
			}
			if want := tt.want(filepath.Dir(cfg)); opts.Base != want {
				t.Errorf("Base = %q, want %q", opts.Base, want)
			}
		})
	}
}

func TestParseOptions_FlagsOnly(t *testing.T) {
	opts, err := parseOptions(
		[]string{"-wasm", "demo.wasm", "-preload", "m.json", "-argv", "a,b", "-i", "-v"},
		map[string]string{"QTRUN_LOG_LEVEL": "debug"},
		io.Discard,
	)
	if err != nil {
		t.Fatal(err)
	}
	if opts.Wasm != "demo.wasm" || len(opts.Preload) != 1 || len(opts.Arguments) != 2 {
		t.Errorf("opts = %+v", opts)
	}
	if !opts.Interactive || !opts.Verbose || opts.LogLevel != "debug" {
		t.Errorf("opts = %+v", opts)
	}
}

func TestParseOptions_Errors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"bad env var", []string{"-env", "NOVALUE"}},
		{"missing config", []string{"-config", filepath.Join(t.TempDir(), "none.hcl")}},
		{"unknown flag", []string{"-nope"}},
		{"bad config", []string{"-config", writeConfig(t, `qtdir = [`)}},
		{"unknown attribute", []string{"-config", writeConfig(t, `canvas = "x"`)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := parseOptions(tt.args, map[string]string{}, io.Discard); err == nil {
				t.Error("expected error")
			}
		})
	}
}
