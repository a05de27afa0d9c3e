// Package logging provides structured, standards-compliant logging.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// Level represents log severity.
type Level string

const (
	LevelDebug Level = "DEBUG"
	LevelInfo  Level = "INFO"
	LevelWarn  Level = "WARN"
	LevelError Level = "ERROR"
)

// Logger provides structured logging to stdout.
type Logger struct {
	mu        sync.Mutex
	output    io.Writer
	minLevel  Level
	component string
	runID     string
}

// levelPriority maps levels to numeric priority for filtering.
var levelPriority = map[Level]int{
	LevelDebug: 0,
	LevelInfo:  1,
	LevelWarn:  2,
	LevelError: 3,
}

// New creates a new Logger.
func New() *Logger {
	return &Logger{
		output:   os.Stdout,
		minLevel: LevelInfo,
	}
}

// WithComponent returns a new logger with the given component name.
func (l *Logger) WithComponent(component string) *Logger {
	return &Logger{
		output:    l.output,
		minLevel:  l.minLevel,
		component: component,
		runID:     l.runID,
	}
}

// WithRunID returns a new logger tagged with the given run ID.
func (l *Logger) WithRunID(runID string) *Logger {
	return &Logger{
		output:    l.output,
		minLevel:  l.minLevel,
		component: l.component,
		runID:     runID,
	}
}

// SetLevel sets the minimum log level.
func (l *Logger) SetLevel(level Level) {
	l.minLevel = level
}

// SetOutput sets the output writer (default: stdout).
func (l *Logger) SetOutput(w io.Writer) {
	l.output = w
}

// Debug logs a debug message.
func (l *Logger) Debug(msg string, fields ...map[string]interface{}) {
	l.log(LevelDebug, msg, fields...)
}

// Info logs an info message.
func (l *Logger) Info(msg string, fields ...map[string]interface{}) {
	l.log(LevelInfo, msg, fields...)
}

// Warn logs a warning message.
func (l *Logger) Warn(msg string, fields ...map[string]interface{}) {
	l.log(LevelWarn, msg, fields...)
}

// Error logs an error message.
func (l *Logger) Error(msg string, fields ...map[string]interface{}) {
	l.log(LevelError, msg, fields...)
}

// formatFields formats a map of fields as key=value pairs.
func formatFields(fields map[string]interface{}) string {
	if len(fields) == 0 {
		return ""
	}
	var parts []string
	for k, v := range fields {
		parts = append(parts, fmt.Sprintf("%s=%v", k, v))
	}
	return " " + strings.Join(parts, " ")
}

// log writes a log entry in traditional format: LEVEL TIMESTAMP [component] message key=value ...
func (l *Logger) log(level Level, msg string, fields ...map[string]interface{}) {
	if levelPriority[level] < levelPriority[l.minLevel] {
		return
	}

	timestamp := time.Now().UTC().Format("2006-01-02T15:04:05.000Z")

	var fieldStr string
	if len(fields) > 0 && fields[0] != nil {
		fieldStr = formatFields(fields[0])
	}
	if l.runID != "" {
		fieldStr += " run=" + l.runID
	}

	var line string
	if l.component != "" {
		line = fmt.Sprintf("%-5s %s [%s] %s%s\n", level, timestamp, l.component, msg, fieldStr)
	} else {
		line = fmt.Sprintf("%-5s %s %s%s\n", level, timestamp, msg, fieldStr)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.output.Write([]byte(line))
}

// RunStart logs the start of an agent run.
func (l *Logger) RunStart(goal string, maxSteps int) {
	l.Info("run_start", map[string]interface{}{
		"goal":      goal,
		"max_steps": maxSteps,
	})
}

// RunComplete logs the completion of an agent run.
func (l *Logger) RunComplete(status string, steps int, duration time.Duration) {
	l.Info("run_complete", map[string]interface{}{
		"status":   status,
		"steps":    steps,
		"duration": duration.String(),
	})
}

// StepStart logs the start of a loop step.
func (l *Logger) StepStart(index int) {
	l.Debug("step_start", map[string]interface{}{
		"step": index,
	})
}

// StepComplete logs the outcome of a loop step.
func (l *Logger) StepComplete(index int, action string, ok bool, duration time.Duration) {
	fields := map[string]interface{}{
		"step":     index,
		"action":   action,
		"ok":       ok,
		"duration": duration.String(),
	}
	if ok {
		l.Info("step_complete", fields)
	} else {
		l.Warn("step_failed", fields)
	}
}

// DeviceCommand logs a device command invocation.
// Arguments are not logged to avoid leaking typed text.
func (l *Logger) DeviceCommand(name string, attempt int) {
	l.Debug("device_command", map[string]interface{}{
		"command": name,
		"attempt": attempt,
	})
}

// DeviceResult logs a device command result.
func (l *Logger) DeviceResult(name string, duration time.Duration, err error) {
	fields := map[string]interface{}{
		"command":  name,
		"duration": duration.String(),
	}
	if err != nil {
		fields["error"] = err.Error()
		l.Error("device_error", fields)
	} else {
		l.Debug("device_result", fields)
	}
}

// ModelRequest logs a model invocation.
func (l *Logger) ModelRequest(step int, contextLen int) {
	l.Debug("model_request", map[string]interface{}{
		"step":        step,
		"context_len": contextLen,
	})
}

// ModelResponse logs a model reply (size only; raw replies go to the session store).
func (l *Logger) ModelResponse(step int, duration time.Duration, chars int) {
	l.Debug("model_response", map[string]interface{}{
		"step":     step,
		"duration": duration.String(),
		"chars":    chars,
	})
}

// SecurityWarning logs a security-related warning.
func (l *Logger) SecurityWarning(msg string, fields map[string]interface{}) {
	if fields == nil {
		fields = make(map[string]interface{})
	}
	fields["security"] = true
	l.Warn(msg, fields)
}

// ValidationRejected logs a command that failed validation.
func (l *Logger) ValidationRejected(reason string, badCount int) {
	l.Warn("validation_rejected", map[string]interface{}{
		"reason":    reason,
		"bad_count": badCount,
	})
}

// ConfirmationRequested logs that a sensitive command awaits confirmation.
func (l *Logger) ConfirmationRequested(action string) {
	l.Info("confirmation_requested", map[string]interface{}{
		"action":   action,
		"security": true,
	})
}

// ConfirmationResult logs the outcome of a confirmation request.
func (l *Logger) ConfirmationResult(action string, approved bool) {
	l.Info("confirmation_result", map[string]interface{}{
		"action":   action,
		"approved": approved,
		"security": true,
	})
}

// PreflightResult logs the device readiness check outcome.
func (l *Logger) PreflightResult(ready bool, issues []string) {
	fields := map[string]interface{}{
		"ready": ready,
	}
	if len(issues) > 0 {
		fields["issues"] = strings.Join(issues, ",")
	}
	if ready {
		l.Info("preflight", fields)
	} else {
		l.Warn("preflight", fields)
	}
}
