package logging

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

func TestLogger_Levels(t *testing.T) {
	var buf bytes.Buffer
	logger := New()
	logger.SetOutput(&buf)
	logger.SetLevel(LevelInfo)

	// Debug should be filtered
	logger.Debug("debug message")
	if buf.Len() > 0 {
		t.Error("debug message should be filtered at INFO level")
	}

	// Info should pass
	logger.Info("info message")
	if buf.Len() == 0 {
		t.Error("info message should be logged")
	}

	line := buf.String()
	if !strings.HasPrefix(line, "INFO ") {
		t.Errorf("expected INFO prefix, got %q", line)
	}
	if !strings.Contains(line, "info message") {
		t.Errorf("expected message in output, got %q", line)
	}
}

func TestLogger_WithComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := New().WithComponent("agent")
	logger.SetOutput(&buf)

	logger.Info("test message")

	if !strings.Contains(buf.String(), "[agent]") {
		t.Errorf("expected component tag, got %q", buf.String())
	}
}

func TestLogger_WithRunID(t *testing.T) {
	var buf bytes.Buffer
	logger := New().WithRunID("run-123")
	logger.SetOutput(&buf)

	logger.Info("test message")

	if !strings.Contains(buf.String(), "run=run-123") {
		t.Errorf("expected run id field, got %q", buf.String())
	}
}

func TestLogger_Fields(t *testing.T) {
	var buf bytes.Buffer
	logger := New()
	logger.SetOutput(&buf)

	logger.Info("device command", map[string]interface{}{
		"command": "tap",
	})

	if !strings.Contains(buf.String(), "command=tap") {
		t.Errorf("expected key=value field, got %q", buf.String())
	}
}

func TestLogger_SecurityWarning(t *testing.T) {
	var buf bytes.Buffer
	logger := New()
	logger.SetOutput(&buf)

	logger.SecurityWarning("confirmation callback missing", nil)

	line := buf.String()
	if !strings.HasPrefix(line, "WARN ") {
		t.Error("security warning should be WARN level")
	}
	if !strings.Contains(line, "security=true") {
		t.Error("security warning should have security=true field")
	}
}

func TestLogger_DeviceResult(t *testing.T) {
	var buf bytes.Buffer
	logger := New()
	logger.SetOutput(&buf)
	logger.SetLevel(LevelDebug)

	logger.DeviceResult("swipe", 10*time.Millisecond, nil)
	if !strings.Contains(buf.String(), "device_result") {
		t.Errorf("expected device_result entry, got %q", buf.String())
	}

	buf.Reset()
	logger.DeviceResult("swipe", 10*time.Millisecond, errTest)
	if !strings.Contains(buf.String(), "device_error") {
		t.Errorf("expected device_error entry, got %q", buf.String())
	}
}

var errTest = &testError{}

type testError struct{}

func (e *testError) Error() string { return "boom" }
