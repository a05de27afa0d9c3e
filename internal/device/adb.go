// Package device talks to an Android device over adb: transport, action
// primitives with retry, state diagnostics and the app catalog.
package device

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"regexp"
	"time"
)

// deviceIDRe is the accepted serial syntax. Anything outside it is refused
// before the id ever becomes a process argument.
var deviceIDRe = regexp.MustCompile(`^[A-Za-z0-9._:-]+$`)

// ValidateDeviceID checks an adb serial against the accepted syntax.
// An empty id is allowed and means the only connected device.
func ValidateDeviceID(id string) error {
	if id == "" {
		return nil
	}
	if !deviceIDRe.MatchString(id) {
		return fmt.Errorf("device id %q contains characters outside [A-Za-z0-9._:-]", id)
	}
	return nil
}

// Result is the outcome of one transport invocation.
type Result struct {
	Stdout   []byte
	Stderr   string
	ExitCode int
}

// Runner executes one adb command as a discrete argument vector. Arguments
// are never joined into a shell string on the host; implementations must
// hand them to the process verbatim.
type Runner interface {
	Run(ctx context.Context, args ...string) (Result, error)
}

// ADBRunner invokes the adb binary directly.
type ADBRunner struct {
	path     string
	deviceID string
	timeout  time.Duration
}

// NewADBRunner builds a runner for one device. The id is validated here so
// nothing downstream has to re-check it.
func NewADBRunner(path, deviceID string, timeout time.Duration) (*ADBRunner, error) {
	if path == "" {
		path = "adb"
	}
	if err := ValidateDeviceID(deviceID); err != nil {
		return nil, err
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ADBRunner{path: path, deviceID: deviceID, timeout: timeout}, nil
}

// DeviceID returns the serial this runner is bound to, or "" for the
// default device.
func (r *ADBRunner) DeviceID() string {
	return r.deviceID
}

// Run executes adb with the given arguments via the process argument vector.
func (r *ADBRunner) Run(ctx context.Context, args ...string) (Result, error) {
	full := make([]string, 0, len(args)+2)
	if r.deviceID != "" {
		full = append(full, "-s", r.deviceID)
	}
	full = append(full, args...)

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, r.path, full...)
	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := Result{Stdout: stdout.Bytes(), Stderr: stderr.String()}

	var exitErr *exec.ExitError
	switch {
	case err == nil:
	case errors.As(err, &exitErr):
		res.ExitCode = exitErr.ExitCode()
		err = nil
	case ctx.Err() != nil:
		return res, fmt.Errorf("adb command timed out: %w", ctx.Err())
	default:
		return res, fmt.Errorf("adb invocation failed: %w", err)
	}
	return res, nil
}
