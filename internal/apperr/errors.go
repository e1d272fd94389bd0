// Package apperr classifies the error kinds spec.md §7 distinguishes and
// maps them to process exit codes. Everything else in the program returns
// plain errors; main.go is the only place that needs to tell a startup
// failure from a broken pipe.
package apperr

import (
	"errors"
	"fmt"
)

// Kind is the error category that decides how main.go reports and exits.
type Kind int

const (
	// KindStartup covers conditions that prevent the program from ever
	// reaching steady state: no enumerable interfaces, every candidate
	// interface failed to open, or DNS resolver initialization failed while
	// resolution was requested.
	KindStartup Kind = iota
	// KindInternal covers a broken command channel — a send with no
	// receiver or a receive with no sender — which spec.md treats as fatal
	// rather than recoverable.
	KindInternal
	// KindOutput covers a broken pipe on raw stdout: the consumer hung up,
	// which is an expected, successful way to stop.
	KindOutput
)

// Error wraps an underlying cause with the Kind that decides its exit code
// and, for startup failures, a platform-specific remediation hint.
type Error struct {
	Kind Kind
	Hint string
	Err  error
}

func (e *Error) Error() string {
	if e.Hint != "" {
		return fmt.Sprintf("%s (%s)", e.Err, e.Hint)
	}
	return e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// Startup wraps err as a startup-fatal condition with an optional
// remediation hint (sudo / setcap / administrator).
func Startup(err error, hint string) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: KindStartup, Hint: hint, Err: err}
}

// Internal wraps err as an internal-fatal condition: a broken command
// channel, never expected in correct operation.
func Internal(err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: KindInternal, Err: err}
}

// Output wraps err as an output-fatal condition: a broken pipe on raw
// stdout, which exits cleanly rather than as a failure.
func Output(err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: KindOutput, Err: err}
}

// ExitCode maps err to a process exit code: 0 for a nil error or an
// output-fatal broken pipe (the consumer hung up, which is expected), 1 for
// every other kind including plain, unwrapped errors.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var ae *Error
	if errors.As(err, &ae) && ae.Kind == KindOutput {
		return 0
	}
	return 1
}
