package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bilalbayram/adlens/internal/graph"
	"github.com/bilalbayram/adlens/internal/output"
)

func writeSuccess(cmd *cobra.Command, runtime Runtime, commandName string, data any, summary any) error {
	envelope := output.NewEnvelope(commandName, true, data, summary, nil)
	return output.Write(cmd.OutOrStdout(), selectedOutputFormat(runtime), envelope)
}

// writeCommandError prints a failure envelope to stderr and returns err
// unchanged so the caller still maps it to an exit code.
func writeCommandError(cmd *cobra.Command, runtime Runtime, commandName string, err error) error {
	if err == nil {
		return nil
	}
	errorInfo := &output.ErrorInfo{
		Type:    "error",
		Message: err.Error(),
	}
	var apiErr *graph.APIError
	if errors.As(err, &apiErr) {
		errorInfo.Type = apiErr.Type
		errorInfo.Code = apiErr.Code
		errorInfo.Message = apiErr.Message
		errorInfo.FBTraceID = apiErr.FBTraceID
		errorInfo.Retryable = apiErr.Retryable
	}
	var transient *graph.TransientError
	if errors.As(err, &transient) {
		errorInfo.Type = "transient"
		errorInfo.Retryable = true
	}

	// Table and CSV cannot carry an envelope, so failures fall back to JSON.
	format := selectedOutputFormat(runtime)
	if format == "table" || format == "csv" {
		format = "json"
	}
	envelope := output.NewEnvelope(commandName, false, nil, nil, errorInfo)
	if writeErr := output.Write(cmd.ErrOrStderr(), format, envelope); writeErr != nil {
		return fmt.Errorf("%w (secondary output error: %v)", err, writeErr)
	}
	return &printedError{err: err}
}

func selectedOutputFormat(runtime Runtime) string {
	if runtime.Output == nil || *runtime.Output == "" {
		return "table"
	}
	return *runtime.Output
}

// printedError marks an error whose envelope already reached stderr.
type printedError struct {
	err error
}

func (e *printedError) Error() string {
	return e.err.Error()
}

func (e *printedError) Unwrap() error {
	return e.err
}

func (e *printedError) AlreadyPrinted() bool {
	return true
}

// invalidInput marks a flag or argument problem.
type invalidInput struct {
	err error
}

func (e *invalidInput) Error() string {
	return e.err.Error()
}

func (e *invalidInput) Unwrap() error {
	return e.err
}

func (e *invalidInput) InputError() bool {
	return true
}

func inputErrorf(format string, args ...any) error {
	return &invalidInput{err: fmt.Errorf(format, args...)}
}
