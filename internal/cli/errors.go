package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/zalando/go-keyring"

	"github.com/bilalbayram/adlens/internal/graph"
)

const (
	ExitCodeUnknown = 1
	ExitCodeConfig  = 2
	ExitCodeAuth    = 3
	ExitCodeInput   = 4
	ExitCodeAPI     = 5
)

type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e == nil {
		return ""
	}
	if e.Err == nil {
		return fmt.Sprintf("command failed with exit code %d", e.Code)
	}
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func WrapExit(code int, err error) error {
	if err == nil {
		return nil
	}
	return &ExitError{Code: code, Err: err}
}

type inputError interface {
	InputError() bool
}

// ExitCode maps a command failure to a process exit code. An explicit
// ExitError wins; otherwise the error chain is classified.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	var input inputError
	if errors.As(err, &input) && input.InputError() {
		return ExitCodeInput
	}
	var apiErr *graph.APIError
	if errors.As(err, &apiErr) {
		if apiErr.IsAuth() {
			return ExitCodeAuth
		}
		return ExitCodeAPI
	}
	var transient *graph.TransientError
	if errors.As(err, &transient) {
		return ExitCodeAPI
	}
	if errors.Is(err, keyring.ErrNotFound) {
		return ExitCodeAuth
	}
	if errors.Is(err, os.ErrNotExist) {
		return ExitCodeConfig
	}
	return ExitCodeUnknown
}
