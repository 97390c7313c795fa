// Package invoker runs external host utilities and reports their exit status
// and captured output.
package invoker

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os/exec"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/espitsyna/ext-security-advisor/internal/config"
	"github.com/espitsyna/ext-security-advisor/internal/telemetry"
)

// DefaultTimeout bounds an invocation whose context has no deadline.
const DefaultTimeout = 60 * time.Second

var (
	// ErrUtilityMissing means the program does not exist or is not executable.
	ErrUtilityMissing = errors.New("utility missing")
	// ErrTimeout means the invocation deadline expired before the program exited.
	ErrTimeout = errors.New("utility timed out")
	// ErrCanceled means the caller cancelled the invocation before the program exited.
	ErrCanceled = errors.New("utility canceled")
)

// Result is the outcome of a program that ran to completion.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// OK reports whether the program exited with status 0.
func (r Result) OK() bool {
	return r.ExitCode == 0
}

// Output returns stdout followed by stderr.
func (r Result) Output() string {
	return r.Stdout + r.Stderr
}

// Err returns an *ExitError for a non-zero exit and nil otherwise.
func (r Result) Err() error {
	if r.OK() {
		return nil
	}
	return &ExitError{Code: r.ExitCode, Output: r.Output()}
}

// ExitError describes a program that ran but exited non-zero.
type ExitError struct {
	Code   int
	Output string
}

func (e *ExitError) Error() string {
	if e.Output == "" {
		return fmt.Sprintf("exit status %d", e.Code)
	}
	return fmt.Sprintf("exit status %d: %s", e.Code, e.Output)
}

// InvocationError describes a program that could not be run to completion.
type InvocationError struct {
	Program string
	Err     error
}

func (e *InvocationError) Error() string {
	return fmt.Sprintf("failed to run %s: %v", e.Program, e.Err)
}

func (e *InvocationError) Unwrap() error {
	return e.Err
}

// Invoker runs a program with positional arguments. A non-nil error is always
// a transport failure; a non-zero exit is reported through Result.
type Invoker interface {
	Run(ctx context.Context, name string, args ...string) (Result, error)
}

// Exec runs programs on the local host.
type Exec struct {
	timeout time.Duration
	log     *zap.Logger
}

// NewExec creates an Exec invoker using the configured timeout.
func NewExec(cfg *config.Config, log *zap.Logger) *Exec {
	timeout := time.Duration(cfg.Invoker.Timeout) * time.Second
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Exec{timeout: timeout, log: log}
}

// Run executes name with args and captures stdout and stderr.
func (e *Exec) Run(ctx context.Context, name string, args ...string) (Result, error) {
	ctx, span := telemetry.StartSpan(ctx, "invoker.run", attribute.String("program", name))

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	e.log.Debug("Running utility", zap.String("program", name), zap.Strings("args", args))

	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec // G204: program and args come from config and sanitized target IDs

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	// Children that inherit the pipes must not hold Run open past cancellation.
	cmd.WaitDelay = time.Second

	err := cmd.Run()
	res := Result{Stdout: stdout.String(), Stderr: stderr.String()}

	if err != nil {
		var exitErr *exec.ExitError
		switch {
		case errors.Is(ctx.Err(), context.DeadlineExceeded):
			err = &InvocationError{Program: name, Err: ErrTimeout}
		case ctx.Err() != nil:
			err = &InvocationError{Program: name, Err: fmt.Errorf("%w: %v", ErrCanceled, ctx.Err())}
		case errors.As(err, &exitErr):
			res.ExitCode = exitErr.ExitCode()
			err = nil
		case errors.Is(err, exec.ErrNotFound), errors.Is(err, fs.ErrNotExist), errors.Is(err, fs.ErrPermission):
			err = &InvocationError{Program: name, Err: fmt.Errorf("%w: %v", ErrUtilityMissing, err)}
		default:
			err = &InvocationError{Program: name, Err: err}
		}
	}

	if err != nil {
		telemetry.EndSpan(span, err)
		e.log.Debug("Utility invocation failed", zap.String("program", name), zap.Error(err))
		return Result{}, err
	}

	span.SetAttributes(attribute.Int("exit_code", res.ExitCode))
	telemetry.EndSpan(span, nil)
	e.log.Debug("Utility finished",
		zap.String("program", name),
		zap.Int("exit_code", res.ExitCode),
	)
	return res, nil
}
