package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/wippyai/qtwasm-loader/internal/wasmbin"
	"github.com/wippyai/qtwasm-loader/loader"
)

func TestRun_ExitStatus(t *testing.T) {
	tests := []struct {
		mod        *wasmbin.Module
		name       string
		wantStderr string
		want       int
	}{
		{wasmbin.Exit(5), "exit code", "", 5},
		{wasmbin.Noop(), "clean return", "", 0},
		{wasmbin.Trap(), "trap", "crashed: wasm error: unreachable", 1},
		{wasmbin.Unwind(), "unwind", "", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			if err := os.WriteFile(filepath.Join(dir, "app.wasm"), tt.mod.Encode(), 0o600); err != nil {
				t.Fatal(err)
			}

			var stdout, stderr bytes.Buffer
			opts := &options{fileConfig: fileConfig{Base: dir}}
			code, err := run(context.Background(), opts, zap.NewNop(), &stdout, &stderr)
			if err != nil {
				t.Fatalf("run failed: %v", err)
			}
			if code != tt.want {
				t.Errorf("code = %d, want %d", code, tt.want)
			}
			if tt.wantStderr != "" && !strings.Contains(stderr.String(), tt.wantStderr) {
				t.Errorf("stderr = %q, want %q", stderr.String(), tt.wantStderr)
			}
		})
	}
}

func TestRun_MissingBinary(t *testing.T) {
	opts := &options{fileConfig: fileConfig{Base: t.TempDir()}}
	code, err := run(context.Background(), opts, zap.NewNop(), &bytes.Buffer{}, &bytes.Buffer{})
	if err == nil {
		t.Fatal("expected error")
	}
	if code != 1 {
		t.Errorf("code = %d, want 1", code)
	}
}

func intp(v int) *int { return &v }

func TestExitStatus(t *testing.T) {
	tests := []struct {
		r    *loader.ExitReport
		name string
		want int
	}{
		{nil, "no report", 0},
		{&loader.ExitReport{Code: intp(3)}, "exit", 3},
		{&loader.ExitReport{}, "no code", 0},
		{&loader.ExitReport{Text: "boom", Crashed: true}, "crash", 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := exitStatus(tt.r); got != tt.want {
				t.Errorf("exitStatus() = %d, want %d", got, tt.want)
			}
		})
	}
}
