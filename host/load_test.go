package host_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/wippyai/qtwasm-loader/fetch"
	"github.com/wippyai/qtwasm-loader/host"
	"github.com/wippyai/qtwasm-loader/internal/wasmbin"
	"github.com/wippyai/qtwasm-loader/loader"
)

func TestLoad_EndToEnd(t *testing.T) {
	static := &fetch.Static{Files: map[string][]byte{
		host.DefaultBinaryFile: wasmbin.EnvCount().Import(wasmbin.PathOpen).Encode(),
		"preload.json":         []byte(`[{"source":"$QTDIR/data/x.bin","destination":"/home/web_user/x.bin"}]`),
		"assets/data/x.bin":    []byte("payload"),
	}}

	var reports []loader.ExitReport
	inst, err := loader.Load(context.Background(), &loader.Config{
		Qt: &loader.QtConfig{
			EntryFunction: host.Entry(host.WithFetcher(static)),
			Fetcher:       static,
			Preload:       []string{"preload.json"},
			QtDir:         "assets",
			Environment:   map[string]string{"QT_QPA_PLATFORM": "wasm", "LANG": "C", "HOME": "/home/web_user"},
			OnExit:        func(r loader.ExitReport) { reports = append(reports, r) },
		},
	})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	defer inst.Close(context.Background())

	if len(reports) != 1 || reports[0].Crashed {
		t.Fatalf("reports = %+v", reports)
	}
	if code, ok := reports[0].ExitCode(); !ok || code != 3 {
		t.Errorf("reports = %+v, want one exit with code 3", reports)
	}

	root := inst.(*host.Instance).Root()
	data, err := os.ReadFile(filepath.Join(root, "home", "web_user", "x.bin"))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "payload" {
		t.Errorf("preloaded content = %q", data)
	}
}

func TestLoad_TrapReported(t *testing.T) {
	static := &fetch.Static{Files: map[string][]byte{
		host.DefaultBinaryFile: wasmbin.Trap().Encode(),
	}}

	var reports []loader.ExitReport
	inst, err := loader.Load(context.Background(), &loader.Config{
		Qt: &loader.QtConfig{
			EntryFunction: host.Entry(host.WithFetcher(static)),
			OnExit:        func(r loader.ExitReport) { reports = append(reports, r) },
		},
	})
	if err != nil {
		t.Fatalf("abort should not fail the load: %v", err)
	}
	defer inst.Close(context.Background())

	want := loader.ExitReport{Text: "wasm error: unreachable", Crashed: true}
	if len(reports) != 1 || reports[0] != want {
		t.Errorf("reports = %+v, want [%+v]", reports, want)
	}
}

func TestLoad_QtLibrariesLocated(t *testing.T) {
	mod := wasmbin.Noop().Import(wasmbin.Import{
		Module:  "libQt6Core",
		Name:    "answer",
		Results: []byte{wasmbin.I32},
	})
	static := &fetch.Static{Files: map[string][]byte{
		host.DefaultBinaryFile:   mod.Encode(),
		"qt/lib/libQt6Core.wasm": wasmbin.Library("answer", 6).Encode(),
	}}

	var reports []loader.ExitReport
	inst, err := loader.Load(context.Background(), &loader.Config{
		DynamicLibraries: []string{"libQt6Core.wasm"},
		Qt: &loader.QtConfig{
			EntryFunction: host.Entry(host.WithFetcher(static)),
			OnExit:        func(r loader.ExitReport) { reports = append(reports, r) },
		},
	})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	defer inst.Close(context.Background())

	if len(reports) != 1 || reports[0].Crashed {
		t.Errorf("reports = %+v", reports)
	}
}
