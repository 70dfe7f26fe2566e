package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// Phase indicates where in the load sequence the error occurred
type Phase string

const (
	PhaseConfig      Phase = "config"      // config normalization
	PhasePreload     Phase = "preload"     // manifest fetch and decode
	PhasePreRun      Phase = "prerun"      // environment and filesystem setup
	PhaseInstantiate Phase = "instantiate" // module construction
	PhaseMain        Phase = "main"        // entry point execution
	PhaseFetch       Phase = "fetch"       // data source access
	PhaseHost        Phase = "host"        // host module registration
)

// Kind categorizes the error
type Kind string

const (
	KindInvalidConfig     Kind = "invalid_config"
	KindCapabilityMissing Kind = "capability_missing"
	KindFetch             Kind = "fetch"
	KindInstantiation     Kind = "instantiation"
	KindAbort             Kind = "abort"
	KindUncaught          Kind = "uncaught"
	KindInvalidData       Kind = "invalid_data"
	KindNotFound          Kind = "not_found"
	KindUnsupported       Kind = "unsupported"
	KindMissingImport     Kind = "missing_import"
	KindRegistration      Kind = "registration"
)

// Sentinels for errors.Is. They match any error of the same Kind.
var (
	ErrConfiguration     = &Error{Kind: KindInvalidConfig}
	ErrCapabilityMissing = &Error{Kind: KindCapabilityMissing}
	ErrFetch             = &Error{Kind: KindFetch}
	ErrInstantiation     = &Error{Kind: KindInstantiation}
	ErrAbort             = &Error{Kind: KindAbort}
	ErrUncaught          = &Error{Kind: KindUncaught}
)

// Is forwards to the standard library errors.Is.
func Is(err, target error) bool {
	return stderrors.Is(err, target)
}

// As forwards to the standard library errors.As.
func As(err error, target any) bool {
	return stderrors.As(err, target)
}

// Error is the structured error type used throughout the loader
type Error struct {
	Value  any
	Cause  error
	Phase  Phase
	Kind   Kind
	Detail string
	Path   []string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	if e.Phase != "" {
		b.WriteByte('[')
		b.WriteString(string(e.Phase))
		b.WriteString("] ")
	}
	b.WriteString(string(e.Kind))

	if len(e.Path) > 0 {
		b.WriteString(" at ")
		b.WriteString(strings.Join(e.Path, "/"))
	}

	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error. A target without a Phase
// matches on Kind alone.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Phase == "" {
		return e.Kind == t.Kind
	}
	return e.Phase == t.Phase && e.Kind == t.Kind
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Path sets the path the error refers to
func (b *Builder) Path(path ...string) *Builder {
	b.err.Path = path
	return b
}

// Value sets the offending value
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Convenience constructors for common error patterns

// Configuration creates a configuration error
func Configuration(detail string) *Error {
	return &Error{
		Phase:  PhaseConfig,
		Kind:   KindInvalidConfig,
		Detail: detail,
	}
}

// CapabilityMissing creates an error for a capability the module does not export
func CapabilityMissing(capability, detail string) *Error {
	return &Error{
		Phase:  PhasePreRun,
		Kind:   KindCapabilityMissing,
		Path:   []string{capability},
		Detail: detail,
	}
}

// Fetch creates a fetch error for location
func Fetch(phase Phase, location string, cause error) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindFetch,
		Detail: fmt.Sprintf("could not fetch %s", location),
		Value:  location,
		Cause:  cause,
	}
}

// BadStatus creates a fetch error for an unsuccessful response
func BadStatus(location string, status int) *Error {
	return &Error{
		Phase:  PhaseFetch,
		Kind:   KindFetch,
		Detail: fmt.Sprintf("%s: status %d", location, status),
		Value:  status,
	}
}

// Instantiation creates an instantiation error
func Instantiation(cause error) *Error {
	return &Error{
		Phase:  PhaseInstantiate,
		Kind:   KindInstantiation,
		Detail: "instantiate module",
		Cause:  cause,
	}
}

// Abort creates a runtime abort error
func Abort(text string, cause error) *Error {
	return &Error{
		Phase:  PhaseMain,
		Kind:   KindAbort,
		Detail: text,
		Cause:  cause,
	}
}

// Uncaught wraps a failure escaping instantiation or main
func Uncaught(phase Phase, cause error) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindUncaught,
		Detail: "uncaught failure",
		Cause:  cause,
	}
}

// InvalidData creates an invalid data error
func InvalidData(phase Phase, path []string, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidData,
		Path:   path,
		Detail: detail,
	}
}

// NotFound creates a not-found error
func NotFound(phase Phase, what, name string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotFound,
		Detail: fmt.Sprintf("%s %q not found", what, name),
	}
}

// Unsupported creates an unsupported operation error
func Unsupported(phase Phase, what string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindUnsupported,
		Detail: what,
	}
}

// Registration creates a host module registration error
func Registration(module string, cause error) *Error {
	return &Error{
		Phase:  PhaseHost,
		Kind:   KindRegistration,
		Detail: fmt.Sprintf("register %s", module),
		Cause:  cause,
	}
}

// MissingImport represents a single unresolved import
type MissingImport struct {
	Module   string // e.g., "env"
	Function string // e.g., "emscripten_asm_const_int"
}

// MissingImportsError is returned when a compiled module imports functions
// no host or side module provides
type MissingImportsError struct {
	Imports []MissingImport
}

// NewMissingImportsError creates an error from a list of "module#function" strings
func NewMissingImportsError(imports []string) *MissingImportsError {
	result := &MissingImportsError{
		Imports: make([]MissingImport, 0, len(imports)),
	}
	for _, imp := range imports {
		mod, fn := parseImportKey(imp)
		result.Imports = append(result.Imports, MissingImport{
			Module:   mod,
			Function: fn,
		})
	}
	return result
}

func parseImportKey(key string) (module, function string) {
	mod, fn, found := strings.Cut(key, "#")
	if found {
		return mod, fn
	}
	return key, ""
}

func (e *MissingImportsError) Error() string {
	if len(e.Imports) == 0 {
		return "[instantiate] missing_import: no imports specified"
	}

	var b strings.Builder
	b.WriteString(fmt.Sprintf("missing %d import(s):\n", len(e.Imports)))

	// Group by module for cleaner output
	byMod := make(map[string][]string)
	var modOrder []string
	for _, imp := range e.Imports {
		if _, exists := byMod[imp.Module]; !exists {
			modOrder = append(modOrder, imp.Module)
		}
		byMod[imp.Module] = append(byMod[imp.Module], imp.Function)
	}

	for _, mod := range modOrder {
		b.WriteString("\n  ")
		b.WriteString(mod)
		b.WriteString(":\n")
		for _, fn := range byMod[mod] {
			b.WriteString("    - ")
			b.WriteString(fn)
			b.WriteByte('\n')
		}
	}

	return strings.TrimSuffix(b.String(), "\n")
}

// Is reports whether target matches this error type. MissingImportsError
// also matches ErrInstantiation.
func (e *MissingImportsError) Is(target error) bool {
	switch t := target.(type) {
	case *MissingImportsError:
		return true
	case *Error:
		return t.Kind == KindInstantiation || t.Kind == KindMissingImport
	}
	return false
}
