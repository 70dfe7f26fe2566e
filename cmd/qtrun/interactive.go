package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"github.com/wippyai/qtwasm-loader/legacy"
	"github.com/wippyai/qtwasm-loader/loader"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	resultStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#90EE90"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

type screenState int

const (
	stateLoading screenState = iota
	stateRunning
	stateExited
	stateFailed
)

// Messages sent by the legacy loader callbacks.
type (
	statusMsg string
	canvasMsg struct{}
	exitMsg   struct {
		text    string
		code    int
		crashed bool
	}
	errorMsg   string
	settledMsg struct{}
)

type loadModel struct {
	cancel  context.CancelFunc
	spinner spinner.Model
	name    string
	status  string
	text    string
	state   screenState
	code    int
	crashed bool
}

func newLoadModel(name string, cancel context.CancelFunc) *loadModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = statusStyle
	return &loadModel{
		cancel:  cancel,
		spinner: s,
		name:    name,
		status:  "Starting",
	}
}

func (m *loadModel) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m *loadModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			m.cancel()
			return m, tea.Quit
		}

	case statusMsg:
		m.status = string(msg)

	case canvasMsg:
		m.state = stateRunning
		m.status = "Running"

	case exitMsg:
		m.code = msg.code
		m.text = msg.text
		m.crashed = msg.crashed
		m.state = stateExited

	case errorMsg:
		m.text = string(msg)
		m.state = stateFailed

	case settledMsg:
		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m *loadModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Qt Loader"))
	b.WriteString(" ")
	b.WriteString(m.name)
	b.WriteString("\n\n")

	switch m.state {
	case stateLoading, stateRunning:
		b.WriteString(m.spinner.View())
		b.WriteString(" ")
		b.WriteString(statusStyle.Render(m.status + "..."))
	case stateExited:
		if m.crashed {
			b.WriteString(errorStyle.Render("Application crashed: " + m.text))
		} else {
			b.WriteString(resultStyle.Render(fmt.Sprintf("Application exited with code %d", m.code)))
		}
	case stateFailed:
		b.WriteString(errorStyle.Render("Error: " + m.text))
	}

	b.WriteString("\n\n")
	b.WriteString(helpStyle.Render("q quit"))
	b.WriteString("\n")
	return b.String()
}

// syncBuffer collects module output while the TUI owns the terminal.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (s *syncBuffer) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.Write(p)
}

func (s *syncBuffer) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.String()
}

// runInteractive drives a loader screen from the legacy callbacks.
func runInteractive(ctx context.Context, opts *options, log *zap.Logger) (int, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s := newSession(ctx, opts, log)
	defer s.close(context.WithoutCancel(ctx))

	var output syncBuffer
	p := tea.NewProgram(newLoadModel(s.binary, cancel), tea.WithAltScreen())

	var ql *legacy.QtLoader
	var status atomic.Int32
	ql = legacy.New(legacy.Options{
		ModuleConfig: loader.Config{
			Stdout:           &output,
			Stderr:           &output,
			WasmBinaryFile:   s.binary,
			Arguments:        opts.Arguments,
			DynamicLibraries: opts.DynamicLibraries,
			NoInitialRun:     opts.NoInitialRun,
			Qt: &loader.QtConfig{
				Module:  s.compile,
				Fetcher: s.fetcher,
			},
		},
		EntryFunction:  s.entry(),
		Environment:    opts.Environment,
		QtDir:          opts.QtDir,
		Preload:        opts.Preload,
		CanvasElements: opts.ContainerElements,
		FontDPI:        opts.FontDPI,
		ShowLoader:     func(text string) { go p.Send(statusMsg(text)) },
		ShowCanvas:     func() { p.Send(canvasMsg{}) },
		ShowError:      func(text string) { status.Store(1); p.Send(errorMsg(text)) },
		ShowExit: func() {
			code, _ := ql.ExitCode()
			crashed := ql.Crashed()
			if crashed {
				code = 1
			}
			status.Store(int32(code))
			p.Send(exitMsg{code: code, text: ql.ExitText(), crashed: crashed})
		},
	})
	defer ql.Close(context.WithoutCancel(ctx))

	go func() {
		<-ql.LoadEmscriptenModule(ctx, s.binary)
		p.Send(settledMsg{})
	}()

	if _, err := p.Run(); err != nil {
		return 1, err
	}
	if out := output.String(); out != "" {
		fmt.Fprint(os.Stdout, out)
	}
	return int(status.Load()), nil
}
