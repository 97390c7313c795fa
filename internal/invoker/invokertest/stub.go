// Package invokertest provides a scripted Invoker for tests that must not
// spawn real processes.
package invokertest

import (
	"context"
	"strings"
	"sync"

	"github.com/espitsyna/ext-security-advisor/internal/invoker"
)

// Call records one invocation.
type Call struct {
	Name string
	Args []string
}

// Line returns the program and its arguments joined by spaces.
func (c Call) Line() string {
	return strings.TrimSpace(c.Name + " " + strings.Join(c.Args, " "))
}

// Response is what the stub returns for a matching invocation.
type Response struct {
	Result invoker.Result
	Err    error
}

// Stub answers invocations from a handler function and records every call.
type Stub struct {
	mu      sync.Mutex
	calls   []Call
	Handler func(name string, args []string) Response
}

// New returns a Stub that answers with handler. A nil handler succeeds with
// empty output.
func New(handler func(name string, args []string) Response) *Stub {
	return &Stub{Handler: handler}
}

// Run implements invoker.Invoker.
func (s *Stub) Run(_ context.Context, name string, args ...string) (invoker.Result, error) {
	s.mu.Lock()
	s.calls = append(s.calls, Call{Name: name, Args: append([]string(nil), args...)})
	s.mu.Unlock()

	if s.Handler == nil {
		return invoker.Result{}, nil
	}
	resp := s.Handler(name, args)
	return resp.Result, resp.Err
}

// Calls returns a copy of the recorded invocations.
func (s *Stub) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Call(nil), s.calls...)
}

// Exit is shorthand for a program that ran and exited with code.
func Exit(code int, stdout, stderr string) Response {
	return Response{Result: invoker.Result{ExitCode: code, Stdout: stdout, Stderr: stderr}}
}

// Fail is shorthand for a transport failure.
func Fail(program string, err error) Response {
	return Response{Err: &invoker.InvocationError{Program: program, Err: err}}
}
