package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // successful execution
	ExitFailure      = 1 // verification or scenario failure
	ExitCommandError = 2 // command error (missing file, bad flags)
)

// ExitError is an error carrying a specific exit code.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewExitError creates an ExitError with the given code and message.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError wraps an existing error with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error. Errors without a code
// map to ExitFailure.
func GetExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// Formatter handles JSON vs text output for CLI commands.
type Formatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer
	Verbose   bool
}

// Response is the JSON envelope for command output.
type Response struct {
	Status string `json:"status"` // "ok" or "error"
	Data   any    `json:"data,omitempty"`
	Error  string `json:"error,omitempty"`
}

// JSON writes data inside the standard envelope; the text form is produced
// by the caller, so JSON reports whether the caller should fall through.
func (f *Formatter) JSON(data any) (handled bool, err error) {
	if f.Format != "json" {
		return false, nil
	}
	return true, json.NewEncoder(f.Writer).Encode(Response{Status: "ok", Data: data})
}

// Errorf writes an error in the configured format.
func (f *Formatter) Errorf(format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(Response{Status: "error", Error: msg})
	}
	_, err := fmt.Fprintf(f.Writer, "error: %s\n", msg)
	return err
}

// VerboseLog writes a diagnostic line when verbose mode is on. Diagnostics
// go to ErrWriter so they never corrupt JSON output.
func (f *Formatter) VerboseLog(format string, args ...any) {
	if !f.Verbose {
		return
	}
	w := f.ErrWriter
	if w == nil {
		w = f.Writer
	}
	fmt.Fprintf(w, format+"\n", args...)
}
