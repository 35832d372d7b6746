package diag

import (
	"errors"
	"fmt"
)

// Level is the severity reported to the driver.
type Level string

const (
	LevelError Level = "error"
	LevelWarn  Level = "warn"
)

var (
	ErrParse                = errors.New("parse failure")
	ErrNotModule            = errors.New("not a module declaration")
	ErrUnresolvedDependency = errors.New("unresolved dependency")
	ErrCyclicDependency     = errors.New("cyclic dependency")
	ErrOutputGeneration     = errors.New("output generation failure")
	ErrDuplicateModuleID    = errors.New("duplicate module id")
	ErrCompile              = errors.New("compile failure")
)

// Diagnostic is the structured payload surfaced for a failed file.
// Line and Col are only set for syntax errors.
type Diagnostic struct {
	Level   Level  `json:"level"`
	Message string `json:"message"`
	Source  string `json:"source,omitempty"`
	Line    int    `json:"line,omitempty"`
	Col     int    `json:"col,omitempty"`

	kind  error
	cause error
}

func (d *Diagnostic) Error() string {
	if d.cause != nil && d.cause.Error() != d.Message {
		return d.Message + ": " + d.cause.Error()
	}
	return d.Message
}

// Unwrap exposes both the taxonomy kind and the underlying cause.
func (d *Diagnostic) Unwrap() []error {
	out := make([]error, 0, 2)
	if d.kind != nil {
		out = append(out, d.kind)
	}
	if d.cause != nil {
		out = append(out, d.cause)
	}
	return out
}

// Kind returns the sentinel this diagnostic was classified as.
func (d *Diagnostic) Kind() error {
	return d.kind
}

// Wrap attaches an underlying cause and returns the same diagnostic.
func (d *Diagnostic) Wrap(cause error) *Diagnostic {
	d.cause = cause
	return d
}

func New(level Level, kind error, source string, format string, args ...any) *Diagnostic {
	return &Diagnostic{
		Level:   level,
		Message: fmt.Sprintf(format, args...),
		Source:  source,
		kind:    kind,
	}
}

// ParseFailed reports that no syntax tree could be produced at all.
func ParseFailed(source string) *Diagnostic {
	return New(LevelError, ErrParse, source, "parse %s failed", source)
}

// SyntaxError reports a syntax error at line/col.
func SyntaxError(source string, line, col int) *Diagnostic {
	d := New(LevelError, ErrParse, source, "parse %s ast failed: %d,%d", source, line, col)
	d.Line = line
	d.Col = col
	return d
}

// NotModule is a warning: plain scripts are legitimate input.
func NotModule(source string) *Diagnostic {
	return New(LevelWarn, ErrNotModule, source, "%s is not CMD format", source)
}

func OutputFailed(source string, cause error) *Diagnostic {
	return New(LevelError, ErrOutputGeneration, source, "generate output for %s failed", source).Wrap(cause)
}

// As extracts a *Diagnostic from err, converting foreign errors into an
// error-level diagnostic so drivers can always render {level, message}.
func As(err error) *Diagnostic {
	if err == nil {
		return nil
	}
	var d *Diagnostic
	if errors.As(err, &d) {
		return d
	}
	return &Diagnostic{Level: LevelError, Message: err.Error(), cause: err}
}
