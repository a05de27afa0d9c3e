package device

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/openclaw/phonepilot/internal/action"
	"github.com/openclaw/phonepilot/internal/config"
	"github.com/openclaw/phonepilot/internal/logging"
)

// FailureKind classifies why a device operation did not succeed.
type FailureKind string

const (
	// TransientFailure covers timeouts and transport hiccups worth retrying.
	TransientFailure FailureKind = "transient"
	// DeviceRejected means the device ran the command and refused it.
	// Retrying an explicitly rejected command is pointless.
	DeviceRejected FailureKind = "rejected"
	// ConnectionLost means the device went away mid-run.
	ConnectionLost FailureKind = "connection_lost"
)

// Outcome is the result of one executor primitive, after retries.
type Outcome struct {
	OK       bool        `json:"ok"`
	Output   string      `json:"output,omitempty"`
	Kind     FailureKind `json:"kind,omitempty"`
	Attempts int         `json:"attempts"`
	Err      error       `json:"-"`
}

func (o Outcome) String() string {
	if o.OK {
		return fmt.Sprintf("ok after %d attempt(s)", o.Attempts)
	}
	return fmt.Sprintf("%s after %d attempt(s)", o.Kind, o.Attempts)
}

// longPressDuration is the touch hold time Android reads as a long press.
const longPressDuration = 600 * time.Millisecond

// doubleTapGap separates the two taps of a double tap.
const doubleTapGap = 100 * time.Millisecond

// Executor applies validated commands to a device. It holds no state across
// calls beyond its wiring; the caller owns the run.
type Executor struct {
	runner Runner
	screen config.ScreenSize
	retry  config.RetryConfig
	apps   *Catalog
	log    *logging.Logger
}

// NewExecutor wires an executor to a transport runner.
func NewExecutor(runner Runner, screen config.ScreenSize, retry config.RetryConfig, apps *Catalog, log *logging.Logger) *Executor {
	if apps == nil {
		apps = DefaultCatalog()
	}
	if log == nil {
		log = logging.New()
	}
	if retry.Attempts <= 0 {
		retry.Attempts = 3
	}
	if retry.BackoffFactor < 1 {
		retry.BackoffFactor = 2.0
	}
	return &Executor{runner: runner, screen: screen, retry: retry, apps: apps, log: log.WithComponent("device")}
}

// pixel maps one normalized coordinate onto the configured screen.
func (e *Executor) pixel(c action.Coordinate) (x, y int) {
	x = c.X * e.screen.Width / (action.CoordMax + 1)
	y = c.Y * e.screen.Height / (action.CoordMax + 1)
	return x, y
}

// Apply maps a validated command onto the device primitives. Commands that
// never touch the device (Wait, Take_over, Finish) are the loop's business
// and are rejected here.
func (e *Executor) Apply(ctx context.Context, cmd *action.Command) Outcome {
	switch cmd.Kind {
	case action.KindLaunch:
		return e.LaunchApp(ctx, cmd.App)
	case action.KindTap:
		return e.Tap(ctx, cmd.Element)
	case action.KindDoubleTap:
		return e.DoubleTap(ctx, cmd.Element)
	case action.KindLongPress:
		return e.LongPress(ctx, cmd.Element)
	case action.KindSwipe:
		return e.Swipe(ctx, cmd.Start, cmd.End, cmd.Duration)
	case action.KindType:
		return e.TypeText(ctx, cmd.Text)
	case action.KindBack:
		return e.PressBack(ctx)
	case action.KindHome:
		return e.PressHome(ctx)
	default:
		return Outcome{OK: false, Kind: DeviceRejected,
			Err: fmt.Errorf("command %s is not a device action", cmd.Kind)}
	}
}

// Tap touches one point.
func (e *Executor) Tap(ctx context.Context, c action.Coordinate) Outcome {
	x, y := e.pixel(c)
	return e.run(ctx, "tap", "shell", "input", "tap", itoa(x), itoa(y))
}

// DoubleTap issues two taps separated by a short gap.
func (e *Executor) DoubleTap(ctx context.Context, c action.Coordinate) Outcome {
	first := e.Tap(ctx, c)
	if !first.OK {
		return first
	}
	select {
	case <-ctx.Done():
		return Outcome{OK: false, Kind: TransientFailure, Attempts: first.Attempts, Err: ctx.Err()}
	case <-time.After(doubleTapGap):
	}
	second := e.Tap(ctx, c)
	second.Attempts += first.Attempts
	return second
}

// LongPress holds a point. Implemented as a zero-distance swipe, which is
// how adb expresses a timed touch.
func (e *Executor) LongPress(ctx context.Context, c action.Coordinate) Outcome {
	x, y := e.pixel(c)
	ms := itoa(int(longPressDuration.Milliseconds()))
	return e.run(ctx, "long_press", "shell", "input", "swipe", itoa(x), itoa(y), itoa(x), itoa(y), ms)
}

// Swipe drags from start to end over the given duration (300ms when zero).
func (e *Executor) Swipe(ctx context.Context, start, end action.Coordinate, d time.Duration) Outcome {
	if d <= 0 {
		d = 300 * time.Millisecond
	}
	x1, y1 := e.pixel(start)
	x2, y2 := e.pixel(end)
	return e.run(ctx, "swipe", "shell", "input", "swipe",
		itoa(x1), itoa(y1), itoa(x2), itoa(y2), itoa(int(d.Milliseconds())))
}

// TypeText enters text into the focused field. The text is escaped for the
// device-side shell because adb joins its arguments into one remote command
// line; without this an attacker-chosen string could grow into a device
// shell command.
func (e *Executor) TypeText(ctx context.Context, text string) Outcome {
	return e.run(ctx, "type", "shell", "input", "text", escapeText(text))
}

// PressBack sends the hardware back key.
func (e *Executor) PressBack(ctx context.Context) Outcome {
	return e.run(ctx, "back", "shell", "input", "keyevent", "KEYCODE_BACK")
}

// PressHome sends the home key.
func (e *Executor) PressHome(ctx context.Context) Outcome {
	return e.run(ctx, "home", "shell", "input", "keyevent", "KEYCODE_HOME")
}

// LaunchApp starts an app by catalog name or package id.
func (e *Executor) LaunchApp(ctx context.Context, app string) Outcome {
	pkg, err := e.apps.Resolve(app)
	if err != nil {
		return Outcome{OK: false, Kind: DeviceRejected, Err: err}
	}
	return e.run(ctx, "launch", "shell", "monkey", "-p", pkg,
		"-c", "android.intent.category.LAUNCHER", "1")
}

// CaptureScreenshot grabs the current screen as PNG bytes.
func (e *Executor) CaptureScreenshot(ctx context.Context) ([]byte, Outcome) {
	var png []byte
	out := e.runCapture(ctx, "screenshot", &png, "exec-out", "screencap", "-p")
	return png, out
}

func (e *Executor) run(ctx context.Context, name string, args ...string) Outcome {
	return e.runCapture(ctx, name, nil, args...)
}

// runCapture is the shared retry loop. Transient failures back off
// exponentially up to the configured attempt budget; explicit rejections
// and lost connections fail fast.
func (e *Executor) runCapture(ctx context.Context, name string, raw *[]byte, args ...string) Outcome {
	backoff := e.retry.RetryBaseDelay()
	out := Outcome{}

	for attempt := 1; attempt <= e.retry.Attempts; attempt++ {
		out.Attempts = attempt
		e.log.DeviceCommand(name, attempt)

		start := time.Now()
		res, err := e.runner.Run(ctx, args...)
		e.log.DeviceResult(name, time.Since(start), err)

		if err == nil && res.ExitCode == 0 {
			out.OK = true
			out.Kind = ""
			out.Err = nil
			if raw != nil {
				*raw = res.Stdout
			} else {
				out.Output = strings.TrimSpace(string(res.Stdout))
			}
			return out
		}

		out.Kind, out.Err = classify(res, err)
		if out.Kind != TransientFailure {
			out.Output = strings.TrimSpace(res.Stderr)
			return out
		}
		if attempt == e.retry.Attempts {
			break
		}

		select {
		case <-ctx.Done():
			out.Err = ctx.Err()
			return out
		case <-time.After(backoff):
		}
		backoff = time.Duration(float64(backoff) * e.retry.BackoffFactor)
		if max := e.retry.RetryMaxDelay(); max > 0 && backoff > max {
			backoff = max
		}
	}
	return out
}

// classify sorts a failed invocation into a retry class. Anything naming a
// missing or offline device is a lost connection; other nonzero exits are
// explicit rejections; transport errors and timeouts are transient.
func classify(res Result, err error) (FailureKind, error) {
	text := strings.ToLower(res.Stderr + " " + string(res.Stdout))
	lost := strings.Contains(text, "device offline") ||
		strings.Contains(text, "device not found") ||
		strings.Contains(text, "no devices") ||
		strings.Contains(text, "device unauthorized")
	switch {
	case lost:
		if err == nil {
			err = fmt.Errorf("device unavailable: %s", strings.TrimSpace(res.Stderr))
		}
		return ConnectionLost, err
	case err != nil:
		return TransientFailure, err
	default:
		return DeviceRejected, fmt.Errorf("device rejected command: %s", strings.TrimSpace(res.Stderr))
	}
}

func itoa(n int) string { return strconv.Itoa(n) }

// escapeText prepares text for `input text` on the device shell. Spaces
// become %s per the input tool's convention; every other character outside
// a safe set is backslash-escaped so the remote shell treats it as data.
func escapeText(text string) string {
	var b strings.Builder
	b.Grow(len(text) + 8)
	for _, r := range text {
		switch {
		case r == ' ':
			b.WriteString("%s")
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.' || r == ',' || r == ':' || r == '/' || r == '@' ||
			r == '-' || r == '_' || r == '+' || r == '=':
			b.WriteRune(r)
		default:
			b.WriteRune('\\')
			b.WriteRune(r)
		}
	}
	return b.String()
}
