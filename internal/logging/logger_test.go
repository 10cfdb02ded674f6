package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestLogger(t *testing.T) {
	var buf bytes.Buffer
	cfg := Config{
		Level:  LevelDebug,
		Output: &buf,
		JSON:   true,
	}

	logger := New(cfg)
	if logger == nil {
		t.Fatal("New logger should not be nil")
	}

	t.Run("Levels", func(t *testing.T) {
		for _, tc := range []struct {
			log func(string, ...any)
			msg string
		}{
			{logger.Debug, "debug msg"},
			{logger.Info, "info msg"},
			{logger.Warn, "warn msg"},
			{logger.Error, "error msg"},
		} {
			buf.Reset()
			tc.log(tc.msg)
			if !strings.Contains(buf.String(), tc.msg) {
				t.Errorf("%q not logged", tc.msg)
			}
		}
	})

	t.Run("DynamicLevel", func(t *testing.T) {
		logger.SetLevel(LevelError)
		if logger.GetLevel() != LevelError {
			t.Error("SetLevel failed")
		}

		buf.Reset()
		logger.Info("should not appear")
		if buf.Len() > 0 {
			t.Error("Logged info message when level was Error")
		}

		logger.SetLevel(LevelDebug)
	})

	t.Run("WithComponent", func(t *testing.T) {
		buf.Reset()
		logger.WithComponent("rulemanager").Info("msg")

		var entry map[string]any
		if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
			t.Fatalf("invalid JSON log line: %v", err)
		}
		if entry["component"] != "rulemanager" {
			t.Errorf("component = %v, want rulemanager", entry["component"])
		}
	})

	t.Run("WithFields", func(t *testing.T) {
		buf.Reset()
		logger.WithFields(map[string]any{"owner": "router/r1"}).Info("msg")
		if !strings.Contains(buf.String(), "router/r1") {
			t.Error("WithFields missing fields")
		}
	})

	t.Run("AuditIgnoresLevel", func(t *testing.T) {
		logger.SetLevel(LevelError)
		defer logger.SetLevel(LevelDebug)

		buf.Reset()
		logger.Audit("replace_rules", "router/r1", map[string]any{"added": 1})
		logStr := buf.String()
		if !strings.Contains(logStr, "AUDIT") {
			t.Error("Audit log missing AUDIT message")
		}
		if !strings.Contains(logStr, "router/r1") {
			t.Error("Audit log missing resource")
		}
	})
}

func TestConsoleHandler(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: LevelInfo, Output: &buf})

	logger.WithComponent("Client").Info("request failed", "status", 503, "body", "service unavailable")
	line := buf.String()

	for _, want := range []string{"policyctl[", "[info]", "client: request failed", "status=503", `body="service unavailable"`} {
		if !strings.Contains(line, want) {
			t.Errorf("console line %q missing %q", line, want)
		}
	}
	if strings.Contains(line, "component=") {
		t.Error("component should be promoted to the header, not repeated as an attribute")
	}

	buf.Reset()
	logger.Debug("hidden")
	if buf.Len() != 0 {
		t.Error("debug line written at info level")
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]Level{
		"debug":   LevelDebug,
		"INFO":    LevelInfo,
		"warning": LevelWarn,
		"warn":    LevelWarn,
		"error":   LevelError,
		"bogus":   LevelInfo,
		"":        LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestDefaultLogger(t *testing.T) {
	if Default() == nil {
		t.Fatal("Default logger is nil")
	}

	var buf bytes.Buffer
	cfg := DefaultConfig()
	cfg.Output = &buf
	prev := Default()
	SetDefault(New(cfg))
	defer SetDefault(prev)

	Warn("warn")
	WithComponent("comp").Info("comp msg")

	if buf.Len() == 0 {
		t.Error("Default logger captured no output")
	}
}

func TestNop(t *testing.T) {
	l := Nop()
	l.Error("dropped")
	l.Audit("a", "b", nil)
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestAudit_ReportsWriteFailure(t *testing.T) {
	var errBuf bytes.Buffer
	prev := errOutput
	errOutput = &errBuf
	defer func() { errOutput = prev }()

	New(Config{Level: LevelInfo, Output: failingWriter{}}).Audit("apply", "router/r1", nil)

	if !strings.Contains(errBuf.String(), "disk full") || !strings.Contains(errBuf.String(), "router/r1") {
		t.Errorf("audit failure not reported: %q", errBuf.String())
	}
}
