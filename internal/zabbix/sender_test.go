package zabbix

import (
	"context"
	"encoding/json"
	"os"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/espitsyna/ext-security-advisor/internal/config"
	"github.com/espitsyna/ext-security-advisor/internal/invoker"
	"github.com/espitsyna/ext-security-advisor/internal/invoker/invokertest"
	"github.com/espitsyna/ext-security-advisor/internal/remediation"
)

// capture records the sender input file contents at invocation time.
type capture struct {
	args  []string
	input string
}

func captureStub(t *testing.T, c *capture, resp invokertest.Response) *invokertest.Stub {
	t.Helper()
	return invokertest.New(func(_ string, args []string) invokertest.Response {
		c.args = args
		for i, a := range args {
			if a == "-i" && i+1 < len(args) {
				data, err := os.ReadFile(args[i+1])
				if err != nil {
					t.Errorf("read input: %v", err)
				}
				c.input = string(data)
			}
		}
		return resp
	})
}

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Zabbix.Enabled = true
	cfg.Zabbix.Host = "web01"
	cfg.Zabbix.ServerFQDN = "zabbix.example.com"
	return cfg
}

func TestQuote(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"plain", `"plain"`},
		{`{"a":"b c"}`, `"{\"a\":\"b c\"}"`},
		{"line1\nline2", `"line1\nline2"`},
		{`C:\path`, `"C:\\path"`},
	}
	for _, tt := range tests {
		if got := quote(tt.in); got != tt.want {
			t.Errorf("quote(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestSend(t *testing.T) {
	var c capture
	stub := captureStub(t, &c, invokertest.Exit(0, "processed: 1; failed: 0", ""))
	s := NewSender(testConfig(), zap.NewNop(), stub)

	err := s.Send(context.Background(), []SenderData{{Host: "web01", Key: KeyHTTP2, Value: "1"}})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if got := strings.Join(c.args[:4], " "); got != "-z zabbix.example.com -p 10051" {
		t.Errorf("args = %v", c.args)
	}
	if c.input != "\"web01\" \"secw.http2\" \"1\"\n" {
		t.Errorf("input = %q", c.input)
	}
	if _, err := os.Stat(c.args[5]); !os.IsNotExist(err) {
		t.Error("input file should be removed after sending")
	}
}

func TestSend_Empty(t *testing.T) {
	stub := invokertest.New(nil)
	s := NewSender(testConfig(), zap.NewNop(), stub)
	if err := s.Send(context.Background(), nil); err != nil {
		t.Fatal(err)
	}
	if len(stub.Calls()) != 0 {
		t.Error("zabbix_sender should not run for empty data")
	}
}

func TestSend_Failures(t *testing.T) {
	tests := []struct {
		name string
		resp invokertest.Response
	}{
		{"non-zero exit", invokertest.Exit(2, "processed: 0; failed: 1", "")},
		{"missing binary", invokertest.Fail("zabbix_sender", invoker.ErrUtilityMissing)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stub := invokertest.New(func(string, []string) invokertest.Response { return tt.resp })
			s := NewSender(testConfig(), zap.NewNop(), stub)
			if err := s.Send(context.Background(), []SenderData{{Host: "h", Key: "k", Value: "v"}}); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestReporter_ReportBatch(t *testing.T) {
	var c capture
	stub := captureStub(t, &c, invokertest.Exit(0, "", ""))
	cfg := testConfig()
	r := NewReporter(cfg, zap.NewNop(), NewSender(cfg, zap.NewNop(), stub))

	out := remediation.BatchOutcome{
		Status:    remediation.StatusSuccess,
		Succeeded: []string{"a.example.com"},
		Results: []remediation.TargetResult{
			{TargetID: "a.example.com", Display: "a.example.com"},
			{TargetID: "x"},
		},
		Messages: []remediation.StatusMessage{{Status: remediation.MessageError, Content: "unknown domain: x"}},
	}
	r.ReportBatch(context.Background(), remediation.IssueCertificate, out)

	fields := strings.SplitN(strings.TrimSpace(c.input), " ", 3)
	if len(fields) != 3 || fields[1] != `"secw.batch.outcome"` {
		t.Fatalf("input = %q", c.input)
	}
	value := strings.ReplaceAll(strings.Trim(fields[2], `"`), `\"`, `"`)
	var report batchReport
	if err := json.Unmarshal([]byte(value), &report); err != nil {
		t.Fatalf("payload %q: %v", value, err)
	}
	if report.Action != "letsencrypt" || report.Succeeded != 1 || report.Failed != 1 {
		t.Errorf("report = %+v", report)
	}
}

func TestReporter_Disabled(t *testing.T) {
	stub := invokertest.New(nil)
	cfg := config.DefaultConfig()
	r := NewReporter(cfg, zap.NewNop(), NewSender(cfg, zap.NewNop(), stub))

	r.ReportBatch(context.Background(), remediation.EnableHTTP2, remediation.BatchOutcome{})
	r.ReportHTTP2(context.Background(), true)

	if len(stub.Calls()) != 0 {
		t.Errorf("calls = %+v, want none when disabled", stub.Calls())
	}
}

func TestReporter_SwallowsErrors(t *testing.T) {
	stub := invokertest.New(func(string, []string) invokertest.Response {
		return invokertest.Exit(1, "", "connection refused")
	})
	cfg := testConfig()
	r := NewReporter(cfg, zap.NewNop(), NewSender(cfg, zap.NewNop(), stub))

	r.ReportHTTP2(context.Background(), false)
	if len(stub.Calls()) != 1 {
		t.Errorf("calls = %d, want 1", len(stub.Calls()))
	}
}
