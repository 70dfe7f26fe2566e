package legacy

import (
	"context"
	"sync"

	qtwasm "github.com/wippyai/qtwasm-loader"
	"github.com/wippyai/qtwasm-loader/loader"
)

const deprecationWarning = "The QtLoader API is deprecated and will be removed in " +
	"a future version. Port to loader.Load."

// Options is the legacy option bag.
type Options struct {
	// ModuleConfig carries the host-runtime fields. Its Qt field is
	// replaced by one built from these options.
	ModuleConfig loader.Config

	EntryFunction qtwasm.EntryFunc
	Environment   map[string]string
	QtDir         string
	Preload       []string
	FontDPI       float64

	// CanvasElements is preferred over ContainerElements when both are set.
	CanvasElements    []string
	ContainerElements []string

	ShowLoader func(status string)
	ShowError  func(text string)
	ShowExit   func()
	ShowCanvas func()
}

// QtLoader is the legacy load handle.
type QtLoader struct {
	cfg       loader.Config
	showError func(string)

	mu   sync.Mutex
	exit *loader.ExitReport
	inst qtwasm.Instance
}

// New adapts opts onto a loader config and returns the handle.
//
// Deprecated: use loader.Load.
func New(opts Options) *QtLoader {
	Logger().Warn(deprecationWarning)

	containers := opts.CanvasElements
	if containers == nil {
		containers = opts.ContainerElements
	}

	l := &QtLoader{showError: opts.ShowError}
	l.cfg = opts.ModuleConfig
	l.cfg.Qt = &loader.QtConfig{
		EntryFunction:     opts.EntryFunction,
		Environment:       opts.Environment,
		QtDir:             opts.QtDir,
		Preload:           opts.Preload,
		ContainerElements: containers,
		FontDPI:           opts.FontDPI,
		OnLoaded: func() {
			if opts.ShowCanvas != nil {
				opts.ShowCanvas()
			}
		},
		OnExit: func(r loader.ExitReport) {
			l.mu.Lock()
			l.exit = &r
			l.mu.Unlock()
			if opts.ShowExit != nil {
				opts.ShowExit()
			}
		},
	}
	if base := opts.ModuleConfig.Qt; base != nil {
		l.cfg.Qt.Module = base.Module
		l.cfg.Qt.Fetcher = base.Fetcher
		l.cfg.Qt.IsUnwind = base.IsUnwind
	}

	if opts.ShowLoader != nil {
		opts.ShowLoader("Loading")
	}
	return l
}

// ExitCode returns the reported exit code. ok is false until the module
// exits, and stays false when it crashed instead.
func (l *QtLoader) ExitCode() (code int, ok bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.exit == nil {
		return 0, false
	}
	return l.exit.ExitCode()
}

// ExitText returns the reported crash text.
func (l *QtLoader) ExitText() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.exit == nil {
		return ""
	}
	return l.exit.Text
}

// Crashed reports whether the module aborted or failed.
func (l *QtLoader) Crashed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.exit != nil && l.exit.Crashed
}

// Instance returns the loaded instance, or nil while loading or after a
// failed load.
func (l *QtLoader) Instance() qtwasm.Instance {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.inst
}

// LoadEmscriptenModule starts the load. The module name is ignored. The
// returned channel is closed once the load settles.
func (l *QtLoader) LoadEmscriptenModule(ctx context.Context, _ string) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		inst, err := loader.Load(ctx, &l.cfg)
		if err != nil {
			if l.showError != nil {
				l.showError(err.Error())
			}
			return
		}
		l.mu.Lock()
		l.inst = inst
		l.mu.Unlock()
	}()
	return done
}

// Close releases the loaded instance.
func (l *QtLoader) Close(ctx context.Context) error {
	l.mu.Lock()
	inst := l.inst
	l.inst = nil
	l.mu.Unlock()
	if inst == nil {
		return nil
	}
	return inst.Close(ctx)
}
