package orchestrator

import (
	"errors"
	"fmt"

	"github.com/webdienst24/shopsave/internal/types"
)

// ErrUserCancelled signals that the operator backed out of a workflow. It is
// not a failure; the process exits 0.
var ErrUserCancelled = errors.New("cancelled by user")

// ErrTooManyInvalidInputs signals that a menu re-prompted past its attempt
// bound without receiving a usable answer.
var ErrTooManyInvalidInputs = errors.New("too many invalid inputs")

// StepError couples a workflow failure with the exit code it maps to.
type StepError struct {
	Code types.ExitCode
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s: %v", e.Code, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

func stepError(code types.ExitCode, format string, args ...interface{}) *StepError {
	return &StepError{Code: code, Err: fmt.Errorf(format, args...)}
}

// ExitCodeForError maps a workflow result to the process exit code.
// User cancellation is deliberately a success.
func ExitCodeForError(err error) types.ExitCode {
	if err == nil || errors.Is(err, ErrUserCancelled) {
		return types.ExitSuccess
	}
	var stepErr *StepError
	if errors.As(err, &stepErr) {
		return stepErr.Code
	}
	return types.ExitSetupError
}
