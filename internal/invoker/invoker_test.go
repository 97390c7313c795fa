package invoker

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/espitsyna/ext-security-advisor/internal/config"
)

func newTestExec(t *testing.T) *Exec {
	t.Helper()
	return NewExec(config.DefaultConfig(), zap.NewNop())
}

// writeScript creates an executable shell script in a temp dir.
func writeScript(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "util.sh")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestResult(t *testing.T) {
	ok := Result{Stdout: "done\n"}
	if !ok.OK() || ok.Err() != nil {
		t.Errorf("zero exit should be OK with nil Err, got %v", ok.Err())
	}

	failed := Result{ExitCode: 3, Stdout: "out ", Stderr: "err"}
	if failed.OK() {
		t.Error("non-zero exit should not be OK")
	}
	if got := failed.Output(); got != "out err" {
		t.Errorf("Output() = %q, want stdout then stderr", got)
	}
	var exitErr *ExitError
	if !errors.As(failed.Err(), &exitErr) || exitErr.Code != 3 {
		t.Errorf("Err() = %v, want *ExitError with code 3", failed.Err())
	}
}

func TestExec_Success(t *testing.T) {
	script := writeScript(t, `echo "state=$1"`)

	res, err := newTestExec(t).Run(context.Background(), script, "enable")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.ExitCode != 0 {
		t.Errorf("ExitCode = %d, want 0", res.ExitCode)
	}
	if strings.TrimSpace(res.Stdout) != "state=enable" {
		t.Errorf("Stdout = %q", res.Stdout)
	}
}

func TestExec_NonZeroExitIsNotAnError(t *testing.T) {
	script := writeScript(t, `echo denied >&2; exit 1`)

	res, err := newTestExec(t).Run(context.Background(), script)
	if err != nil {
		t.Fatalf("non-zero exit must be reported in Result, got error %v", err)
	}
	if res.ExitCode != 1 {
		t.Errorf("ExitCode = %d, want 1", res.ExitCode)
	}
	if !strings.Contains(res.Stderr, "denied") {
		t.Errorf("Stderr = %q, want denied", res.Stderr)
	}
}

func TestExec_MissingProgram(t *testing.T) {
	_, err := newTestExec(t).Run(context.Background(), filepath.Join(t.TempDir(), "absent"))
	if !errors.Is(err, ErrUtilityMissing) {
		t.Fatalf("err = %v, want ErrUtilityMissing", err)
	}
	var invErr *InvocationError
	if !errors.As(err, &invErr) {
		t.Errorf("err = %T, want *InvocationError", err)
	}
}

func TestExec_NotExecutable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plain")
	if err := os.WriteFile(path, []byte("data"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := newTestExec(t).Run(context.Background(), path)
	if !errors.Is(err, ErrUtilityMissing) {
		t.Fatalf("err = %v, want ErrUtilityMissing", err)
	}
}

func TestExec_Timeout(t *testing.T) {
	script := writeScript(t, `exec sleep 5`)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_, err := newTestExec(t).Run(ctx, script)
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("err = %v, want ErrTimeout", err)
	}
}

func TestExec_Canceled(t *testing.T) {
	script := writeScript(t, `exec sleep 5`)

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(200*time.Millisecond, cancel)
	defer cancel()

	res, err := newTestExec(t).Run(ctx, script)
	if !errors.Is(err, ErrCanceled) {
		t.Fatalf("err = %v, res = %+v, want ErrCanceled", err, res)
	}
	var invErr *InvocationError
	if !errors.As(err, &invErr) {
		t.Errorf("err = %T, want *InvocationError", err)
	}
	if errors.Is(err, ErrTimeout) {
		t.Error("cancellation must not be reported as a timeout")
	}
}

func TestNewExec_DefaultTimeout(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Invoker.Timeout = 0
	e := NewExec(cfg, zap.NewNop())
	if e.timeout != DefaultTimeout {
		t.Errorf("timeout = %s, want %s", e.timeout, DefaultTimeout)
	}
}
