package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/goccy/go-json"

	"github.com/roach88/docwire/internal/collection"
	"github.com/roach88/docwire/internal/command"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // The server refused or partially applied the command
	ExitCommandError = 2 // Bad flags, unreadable input, unusable config
)

// ExitError carries the process exit code for an error returned by a command.
type ExitError struct {
	Code    int
	Message string
	Err     error

	// Reported is set once the error has been written through an
	// OutputFormatter.
	Reported bool
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

// NewExitError creates a new ExitError with the given code and message.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError wraps an existing error with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error.
// Returns ExitFailure (1) if the error is not an ExitError.
func GetExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// OutputFormatter handles JSON vs text output for CLI commands.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer // diagnostics; defaults to Writer
	Verbose   bool
}

// CLIResponse is the JSON envelope of every command's output.
type CLIResponse struct {
	Status string    `json:"status"` // "ok" or "error"
	Data   any       `json:"data,omitempty"`
	Error  *CLIError `json:"error,omitempty"`
}

// CLIError is the error structure for CLI responses.
type CLIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// Error codes reported in CLIError.Code.
const (
	CodeAPIError       = "API_ERROR"
	CodeTimeout        = "TIMEOUT"
	CodeTransport      = "TRANSPORT_ERROR"
	CodeFaultyResponse = "FAULTY_RESPONSE"
	CodePartialWrite   = "PARTIAL_WRITE"
	CodeTooMany        = "TOO_MANY_DOCUMENTS"
	CodeInvalidInput   = "INVALID_INPUT"
	CodeInternal       = "INTERNAL"
)

// Success outputs a successful result in the configured format. Text output
// prints data with fmt; callers pass a pre-rendered string when the default
// formatting is not readable.
func (f *OutputFormatter) Success(data any) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "ok",
			Data:   data,
		})
	}

	fmt.Fprintln(f.Writer, data)
	return nil
}

// Error outputs an error in the configured format.
func (f *OutputFormatter) Error(code, message string, details any) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "error",
			Error: &CLIError{
				Code:    code,
				Message: message,
				Details: details,
			},
		})
	}

	fmt.Fprintf(f.Writer, "Error [%s]: %s\n", code, message)
	if f.Verbose && details != nil {
		fmt.Fprintf(f.Writer, "Details: %v\n", details)
	}
	return nil
}

// VerboseLog outputs a message only if verbose mode is enabled. It writes
// to ErrWriter so JSON output stays parseable.
func (f *OutputFormatter) VerboseLog(format string, args ...any) {
	if !f.Verbose {
		return
	}
	fmt.Fprintf(f.GetErrWriter(), format+"\n", args...)
}

// GetErrWriter returns ErrWriter if set, otherwise Writer.
func (f *OutputFormatter) GetErrWriter() io.Writer {
	if f.ErrWriter != nil {
		return f.ErrWriter
	}
	return f.Writer
}

// Fail reports err through the formatter and returns the ExitError the
// command should return. Server-side failures exit with ExitFailure;
// everything else is a command error.
func (f *OutputFormatter) Fail(message string, err error) error {
	code, details := classify(err)
	exit := ExitCommandError
	switch code {
	case CodeAPIError, CodePartialWrite, CodeTooMany:
		exit = ExitFailure
	}
	_ = f.Error(code, fmt.Sprintf("%s: %v", message, err), details)
	exitErr := WrapExitError(exit, message, err)
	exitErr.Reported = true
	return exitErr
}

func classify(err error) (string, any) {
	var (
		respErr *command.ResponseError
		insErr  *collection.InsertManyError
		updErr  *collection.UpdateManyError
		delErr  *collection.DeleteManyError
		tooMany *collection.TooManyDocumentsError
	)
	switch {
	case errors.As(err, &insErr):
		return CodePartialWrite, map[string]any{"inserted": len(insErr.Partial.InsertedIDs)}
	case errors.As(err, &updErr):
		return CodePartialWrite, map[string]any{"matched": updErr.Partial.Info.N, "modified": updErr.Partial.Info.NModified}
	case errors.As(err, &delErr):
		return CodePartialWrite, map[string]any{"deleted": delErr.Partial.DeletedCount}
	case errors.As(err, &tooMany):
		return CodeTooMany, map[string]any{"count": tooMany.Count, "upper_bound": tooMany.UpperBound}
	case errors.As(err, &respErr):
		return CodeAPIError, descriptorDetails(respErr.Descriptors)
	case command.IsTimeoutError(err):
		return CodeTimeout, nil
	case command.IsTransportError(err):
		return CodeTransport, nil
	case command.IsFaultyResponseError(err):
		return CodeFaultyResponse, nil
	}
	return CodeInternal, nil
}

func descriptorDetails(ds []command.ErrorDescriptor) []map[string]any {
	out := make([]map[string]any, len(ds))
	for i, d := range ds {
		out[i] = map[string]any{"errorCode": d.ErrorCode, "message": d.Message}
	}
	return out
}
