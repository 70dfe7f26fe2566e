package loader

import (
	"strings"
	"sync/atomic"

	"go.uber.org/zap"
)

// qtLibPrefix marks Qt shared libraries, which live under {qtdir}/lib.
const qtLibPrefix = "libQt6"

// State is the lifecycle state of a load attempt.
type State int32

const (
	StatePending State = iota
	StateRunning
	StateExited
	StateAborted
	StateFailed
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateRunning:
		return "running"
	case StateExited:
		return "exited"
	case StateAborted:
		return "aborted"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether s is a final state.
func (s State) Terminal() bool {
	return s >= StateExited
}

// lifecycle latches the first terminal transition and delivers its report.
type lifecycle struct {
	onExit func(ExitReport)
	log    *zap.Logger
	state  atomic.Int32
}

func newLifecycle(onExit func(ExitReport), log *zap.Logger) *lifecycle {
	return &lifecycle{onExit: onExit, log: log}
}

func (l *lifecycle) State() State {
	return State(l.state.Load())
}

// running marks the instance as constructed.
func (l *lifecycle) running() {
	l.state.CompareAndSwap(int32(StatePending), int32(StateRunning))
}

// finish moves to the terminal state to and delivers r. Only the first
// call succeeds; later calls return false and deliver nothing.
func (l *lifecycle) finish(to State, r ExitReport) bool {
	for {
		cur := State(l.state.Load())
		if cur.Terminal() {
			l.log.Debug("exit already reported",
				zap.Stringer("state", cur),
				zap.Stringer("ignored", to))
			return false
		}
		if l.state.CompareAndSwap(int32(cur), int32(to)) {
			break
		}
	}

	l.log.Info("module terminated",
		zap.Stringer("state", to),
		zap.Intp("code", r.Code),
		zap.String("text", r.Text),
		zap.Bool("crashed", r.Crashed))
	if l.onExit != nil {
		l.onExit(r)
	}
	return true
}

func (l *lifecycle) exit(code int) {
	l.finish(StateExited, ExitReport{Code: &code})
}

func (l *lifecycle) abort(text string) {
	l.finish(StateAborted, ExitReport{Text: text, Crashed: true})
}

func (l *lifecycle) fail(err error) {
	l.finish(StateFailed, ExitReport{Text: err.Error(), Crashed: true})
}

// locateFile wraps the caller's rewriter so Qt libraries resolve below qtdir.
func locateFile(upstream func(string) string, qtdir string) func(string) string {
	return func(name string) string {
		located := name
		if upstream != nil {
			located = upstream(name)
		}
		if strings.HasPrefix(located, qtLibPrefix) {
			return qtdir + "/lib/" + located
		}
		return located
	}
}
