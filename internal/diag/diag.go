// Package diag carries the preprocessor's error taxonomy and formats
// diagnostics as "[display:line]: message". Fatal conditions are returned
// as *Error values; warnings are written to the reporter's writer and
// processing continues.
package diag

import (
	"errors"
	"fmt"
	"io"
	"os"
)

// Code identifies a diagnostic condition.
type Code int

const (
	MacroNotFound Code = iota
	MacroRecursionLimit
	InvalidIncludePath
	UnterminatedConditional
	InvalidDirective
	MismatchedParens
	TooFewArgs
	TooManyArgs
	UnknownPragma
	DivisionByZero
	DuplicateMacroParam
	IllegalPastedToken
	InvalidPPNumber
	EmptyConstExpr
	UnterminatedString
	InvalidEscapeSequence
	InvalidLineDirective
	UserErrorDirective
)

var defaultMessages = map[Code]string{
	MacroNotFound:           "macro not defined",
	MacroRecursionLimit:     "macro expansion depth exceeds limit",
	InvalidIncludePath:      "invalid include path or file not found",
	UnterminatedConditional: "unterminated conditional directive (missing #endif)",
	InvalidDirective:        "invalid preprocessor directive",
	MismatchedParens:        "mismatched parentheses",
	TooFewArgs:              "too few arguments for function macro",
	TooManyArgs:             "too many arguments for function macro",
	UnknownPragma:           "unknown #pragma directive",
	DivisionByZero:          "division by zero in constant expression",
	DuplicateMacroParam:     "duplicate parameter in function macro definition",
	IllegalPastedToken:      "pasted token is not a legal token",
	InvalidPPNumber:         "invalid preprocessor number",
	EmptyConstExpr:          "empty constant expression in #if/#elif",
	UnterminatedString:      "unterminated string literal",
	InvalidEscapeSequence:   "invalid escape sequence in string literal",
	InvalidLineDirective:    "invalid #line directive (expected line number)",
	UserErrorDirective:      "#error directive triggered",
}

// Registry maps codes to messages. Custom messages may be registered per
// code, replacing the default text.
type Registry struct {
	msgs map[Code]string
}

func NewRegistry() *Registry {
	msgs := make(map[Code]string, len(defaultMessages))
	for c, m := range defaultMessages {
		msgs[c] = m
	}
	return &Registry{msgs: msgs}
}

func (r *Registry) Register(code Code, msg string) {
	r.msgs[code] = msg
}

func (r *Registry) Message(code Code) string {
	if m, ok := r.msgs[code]; ok {
		return m
	}
	return fmt.Sprintf("unknown error (code %d)", int(code))
}

// Error is a fatal diagnostic with source location baked into the message.
type Error struct {
	Code Code
	msg  string
}

func (e *Error) Error() string { return e.msg }

// Newf builds an *Error without location context.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, msg: fmt.Sprintf(format, args...)}
}

// CodeOf extracts the diagnostic code from an error chain.
func CodeOf(err error) (Code, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Code, true
	}
	return 0, false
}

// Pos is the location surface a token exposes for diagnostics.
type Pos interface {
	Display() string
	ReportedLine() int
}

// Reporter formats diagnostics against a registry.
type Reporter struct {
	registry *Registry
	warnings io.Writer
}

func NewReporter(registry *Registry, warnings io.Writer) *Reporter {
	if registry == nil {
		registry = NewRegistry()
	}
	if warnings == nil {
		warnings = os.Stderr
	}
	return &Reporter{registry: registry, warnings: warnings}
}

func (r *Reporter) Registry() *Registry { return r.registry }

// Errorf returns a fatal diagnostic located at the given position. A
// non-empty detail is appended in parentheses after the registry message.
func (r *Reporter) Errorf(at Pos, code Code, format string, args ...any) *Error {
	msg := r.registry.Message(code)
	if format != "" {
		msg += " (" + fmt.Sprintf(format, args...) + ")"
	}
	return &Error{Code: code, msg: locPrefix(at) + msg}
}

// Warnf prints a located warning and continues.
func (r *Reporter) Warnf(at Pos, format string, args ...any) {
	fmt.Fprintf(r.warnings, "warning: %s%s\n", locPrefix(at), fmt.Sprintf(format, args...))
}

func locPrefix(at Pos) string {
	if at == nil {
		return "[<unknown>:0]: "
	}
	return fmt.Sprintf("[%s:%d]: ", at.Display(), at.ReportedLine())
}
