package remediation

import (
	"context"
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/espitsyna/ext-security-advisor/internal/capability"
)

type recorder struct {
	calls []string
	err   error
}

func (r *recorder) IssueCertificate(_ context.Context, domain string) error {
	r.calls = append(r.calls, "issue "+domain)
	return r.err
}

func (r *recorder) SwitchToHTTPS(_ context.Context, id string) error {
	r.calls = append(r.calls, "https "+id)
	return r.err
}

func (r *recorder) SecurePanel(_ context.Context, host string, opts PanelOptions) error {
	www := ""
	if opts.IncludeWWW {
		www = " www"
	}
	r.calls = append(r.calls, "panel "+host+" "+opts.Email+www)
	return r.err
}

func (r *recorder) InstallExtension(_ context.Context, id string) error {
	r.calls = append(r.calls, "install "+id)
	return r.err
}

type toggler struct {
	res     capability.ToggleResult
	desired []capability.DesiredState
}

func (t *toggler) ToggleHTTP2(_ context.Context, d capability.DesiredState) capability.ToggleResult {
	t.desired = append(t.desired, d)
	return t.res
}

func fullDeps(r *recorder, tg *toggler) Deps {
	return Deps{Issuer: r, Switcher: r, Securer: r, Installer: r, Toggler: tg}
}

func TestApply_Dispatch(t *testing.T) {
	tests := []struct {
		action Action
		target Target
		want   string
	}{
		{IssueCertificate, Target{ID: "12", Name: "example.com"}, "issue example.com"},
		{SwitchToHTTPS, Target{ID: "wp-3", Name: "http://blog.example.com"}, "https wp-3"},
		{SecurePanel, Target{ID: "server", Name: "panel.example.com"}, "panel panel.example.com admin@example.com www"},
		{InstallScanner, Target{ID: "dgri", Name: "Datagrid"}, "install dgri"},
	}
	for _, tt := range tests {
		t.Run(string(tt.action), func(t *testing.T) {
			r := &recorder{}
			e := NewExecutor(fullDeps(r, &toggler{}), zap.NewNop())

			display, err := e.Apply(context.Background(), tt.target, tt.action, PanelOptions{Email: "admin@example.com", IncludeWWW: true})
			if err != nil {
				t.Fatalf("Apply: %v", err)
			}
			if display != tt.target.Name {
				t.Errorf("display = %q, want %q", display, tt.target.Name)
			}
			if len(r.calls) != 1 || r.calls[0] != tt.want {
				t.Errorf("calls = %v, want [%s]", r.calls, tt.want)
			}
		})
	}
}

func TestApply_WrapsCollaboratorErrors(t *testing.T) {
	cause := errors.New("order rejected")
	r := &recorder{err: cause}
	e := NewExecutor(fullDeps(r, &toggler{}), zap.NewNop())
	target := Target{ID: "12", Name: "example.com", Kind: KindDomain}

	_, err := e.Apply(context.Background(), target, IssueCertificate, PanelOptions{})

	var re *RemediationError
	if !errors.As(err, &re) {
		t.Fatalf("err = %T, want *RemediationError", err)
	}
	if re.Target != target {
		t.Errorf("Target = %+v", re.Target)
	}
	if !errors.Is(err, cause) {
		t.Error("cause should be reachable through Unwrap")
	}
	if err.Error() != "example.com: order rejected" {
		t.Errorf("Error() = %q", err.Error())
	}
}

func TestApply_DoesNotDoubleWrap(t *testing.T) {
	inner := &RemediationError{Target: Target{ID: "other"}, Reason: errors.New("boom")}
	e := NewExecutor(fullDeps(&recorder{err: inner}, &toggler{}), zap.NewNop())

	_, err := e.Apply(context.Background(), Target{ID: "5", Name: "a.example.com"}, IssueCertificate, PanelOptions{})
	if err.Error() != "a.example.com: boom" {
		t.Errorf("Error() = %q", err.Error())
	}
}

func TestApply_HTTP2(t *testing.T) {
	host := Target{ID: "server", Name: "host.example.com", Kind: KindHost}

	t.Run("enable and disable", func(t *testing.T) {
		tg := &toggler{}
		e := NewExecutor(fullDeps(&recorder{}, tg), zap.NewNop())

		for _, a := range []Action{EnableHTTP2, DisableHTTP2} {
			if _, err := e.Apply(context.Background(), host, a, PanelOptions{}); err != nil {
				t.Fatalf("%s: %v", a, err)
			}
		}
		if len(tg.desired) != 2 || tg.desired[0] != capability.Enable || tg.desired[1] != capability.Disable {
			t.Errorf("desired = %v", tg.desired)
		}
	})

	t.Run("toggle failure", func(t *testing.T) {
		tg := &toggler{res: capability.ToggleResult{Code: 1, Messages: []string{"The http2_pref utility is not installed"}}}
		e := NewExecutor(fullDeps(&recorder{}, tg), zap.NewNop())

		_, err := e.Apply(context.Background(), host, EnableHTTP2, PanelOptions{})
		var re *RemediationError
		if !errors.As(err, &re) {
			t.Fatalf("err = %v, want *RemediationError", err)
		}
		if !strings.Contains(err.Error(), "not installed") {
			t.Errorf("Error() = %q", err.Error())
		}
	})

	t.Run("failure without messages", func(t *testing.T) {
		tg := &toggler{res: capability.ToggleResult{Code: 4, Messages: []string{"  "}}}
		e := NewExecutor(fullDeps(&recorder{}, tg), zap.NewNop())

		_, err := e.Apply(context.Background(), host, DisableHTTP2, PanelOptions{})
		if err == nil || !strings.Contains(err.Error(), "code 4") {
			t.Errorf("err = %v", err)
		}
	})
}

func TestApply_MissingCollaborator(t *testing.T) {
	e := NewExecutor(Deps{}, zap.NewNop())
	for _, a := range Actions {
		_, err := e.Apply(context.Background(), Target{ID: "x"}, a, PanelOptions{})
		if !errors.Is(err, ErrUnsupportedAction) {
			t.Errorf("%s: err = %v, want ErrUnsupportedAction", a, err)
		}
		var re *RemediationError
		if !errors.As(err, &re) {
			t.Errorf("%s: err = %T, want *RemediationError", a, err)
		}
	}
}

func TestParseAction(t *testing.T) {
	for _, a := range Actions {
		got, err := ParseAction(string(a))
		if err != nil || got != a {
			t.Errorf("ParseAction(%q) = %q, %v", a, got, err)
		}
	}
	if _, err := ParseAction("reboot"); !errors.Is(err, ErrUnsupportedAction) {
		t.Errorf("ParseAction(reboot) err = %v", err)
	}
}

func TestActionTargetKind(t *testing.T) {
	tests := map[Action]TargetKind{
		IssueCertificate: KindDomain,
		SwitchToHTTPS:    KindWordPress,
		EnableHTTP2:      KindHost,
		DisableHTTP2:     KindHost,
		SecurePanel:      KindHost,
		InstallScanner:   KindExtension,
	}
	for a, want := range tests {
		if got := a.TargetKind(); got != want {
			t.Errorf("%s.TargetKind() = %q, want %q", a, got, want)
		}
	}
}
