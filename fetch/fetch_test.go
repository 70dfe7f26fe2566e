package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/wippyai/qtwasm-loader/errors"
)

func TestHTTP_Fetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/manifest.json" {
			w.Write([]byte(`[]`))
			return
		}
		http.NotFound(w, r)
	}))
	defer srv.Close()

	ctx := context.Background()
	h := NewHTTP(nil, nil)
	defer h.Close()

	data, err := h.Fetch(ctx, srv.URL+"/manifest.json")
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if string(data) != "[]" {
		t.Errorf("got %q, want []", data)
	}

	_, err = h.Fetch(ctx, srv.URL+"/missing.json")
	if !errors.Is(err, errors.ErrFetch) {
		t.Fatalf("expected fetch error, got %v", err)
	}
	var qerr *errors.Error
	if !errors.As(err, &qerr) || qerr.Value != 404 {
		t.Errorf("expected status 404 in error, got %v", err)
	}
}

func TestDir_Fetch(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "qt", "data"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "qt", "data", "x.bin"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	d := NewDir(root)
	ctx := context.Background()

	for _, loc := range []string{"qt/data/x.bin", "/qt/data/x.bin", "../qt/data/x.bin"} {
		t.Run(loc, func(t *testing.T) {
			data, err := d.Fetch(ctx, loc)
			if err != nil {
				t.Fatalf("Fetch(%q) failed: %v", loc, err)
			}
			if string(data) != "x" {
				t.Errorf("got %q", data)
			}
		})
	}

	if _, err := d.Fetch(ctx, "nope.bin"); !errors.Is(err, errors.ErrFetch) {
		t.Errorf("expected fetch error for missing file, got %v", err)
	}
	if _, err := d.Fetch(ctx, "/"); err == nil {
		t.Error("expected error for directory location")
	}
}

func TestRouter(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(r.URL.Path))
	}))
	defer srv.Close()

	ctx := context.Background()

	t.Run("url base", func(t *testing.T) {
		r := New(srv.URL + "/app/")
		defer r.Close()

		data, err := r.Fetch(ctx, "/qt/preload.json")
		if err != nil {
			t.Fatal(err)
		}
		if string(data) != "/app/qt/preload.json" {
			t.Errorf("got %q", data)
		}
	})

	t.Run("absolute url overrides dir base", func(t *testing.T) {
		r := New(t.TempDir())
		defer r.Close()

		data, err := r.Fetch(ctx, srv.URL+"/x")
		if err != nil {
			t.Fatal(err)
		}
		if string(data) != "/x" {
			t.Errorf("got %q", data)
		}
	})

	t.Run("dir base", func(t *testing.T) {
		root := t.TempDir()
		os.WriteFile(filepath.Join(root, "a.json"), []byte("{}"), 0o644)
		r := New(root)
		defer r.Close()

		data, err := r.Fetch(ctx, "a.json")
		if err != nil {
			t.Fatal(err)
		}
		if string(data) != "{}" {
			t.Errorf("got %q", data)
		}
	})
}

func TestJoin(t *testing.T) {
	tests := []struct {
		base, loc, want string
	}{
		{"", "a", "a"},
		{"http://h/", "/a", "http://h/a"},
		{"http://h", "a/b", "http://h/a/b"},
	}
	for _, tt := range tests {
		if got := Join(tt.base, tt.loc); got != tt.want {
			t.Errorf("Join(%q, %q) = %q, want %q", tt.base, tt.loc, got, tt.want)
		}
	}
}

func TestStatic(t *testing.T) {
	s := &Static{
		Files: map[string][]byte{"slow": []byte("1"), "fast": []byte("2")},
		Delay: map[string]time.Duration{"slow": 20 * time.Millisecond},
	}
	ctx := context.Background()

	done := make(chan struct{})
	go func() {
		s.Fetch(ctx, "slow")
		close(done)
	}()
	if _, err := s.Fetch(ctx, "fast"); err != nil {
		t.Fatal(err)
	}
	<-done

	got := s.Fetched()
	if len(got) != 2 || got[0] != "fast" || got[1] != "slow" {
		t.Errorf("completion order = %v, want [fast slow]", got)
	}

	if _, err := s.Fetch(ctx, "missing"); !errors.Is(err, errors.ErrFetch) {
		t.Errorf("expected fetch error, got %v", err)
	}
}
