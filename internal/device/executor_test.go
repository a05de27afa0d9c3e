package device

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/openclaw/phonepilot/internal/action"
	"github.com/openclaw/phonepilot/internal/config"
)

// fakeRunner records every invocation and replays scripted results.
type fakeRunner struct {
	calls   [][]string
	results []fakeResult
}

type fakeResult struct {
	res Result
	err error
}

func (f *fakeRunner) Run(ctx context.Context, args ...string) (Result, error) {
	f.calls = append(f.calls, args)
	if len(f.results) == 0 {
		return Result{Stdout: []byte("ok")}, nil
	}
	next := f.results[0]
	f.results = f.results[1:]
	return next.res, next.err
}

func fastRetry() config.RetryConfig {
	return config.RetryConfig{Attempts: 3, BaseDelayMS: 1, BackoffFactor: 2.0, MaxDelayMS: 5}
}

func newTestExecutor(runner Runner) *Executor {
	screen := config.ScreenSize{Width: 1080, Height: 1920}
	return NewExecutor(runner, screen, fastRetry(), DefaultCatalog(), nil)
}

func TestExecutor_TapScalesCoordinates(t *testing.T) {
	runner := &fakeRunner{}
	ex := newTestExecutor(runner)

	out := ex.Tap(context.Background(), action.Coordinate{X: 500, Y: 500})
	if !out.OK {
		t.Fatalf("expected success, got %v", out)
	}
	want := []string{"shell", "input", "tap", "540", "960"}
	got := runner.calls[0]
	if strings.Join(got, " ") != strings.Join(want, " ") {
		t.Errorf("expected args %v, got %v", want, got)
	}
}

func TestExecutor_RetryRecovery(t *testing.T) {
	// Two transient failures then a success must yield OK with 3 attempts.
	runner := &fakeRunner{results: []fakeResult{
		{err: errors.New("adb command timed out")},
		{err: errors.New("adb command timed out")},
		{res: Result{Stdout: []byte("done")}},
	}}
	ex := newTestExecutor(runner)

	out := ex.PressHome(context.Background())
	if !out.OK {
		t.Fatalf("expected success, got %v", out)
	}
	if out.Attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", out.Attempts)
	}
	if len(runner.calls) != 3 {
		t.Errorf("expected 3 invocations, got %d", len(runner.calls))
	}
}

func TestExecutor_RetryExhaustion(t *testing.T) {
	runner := &fakeRunner{results: []fakeResult{
		{err: errors.New("timeout")},
		{err: errors.New("timeout")},
		{err: errors.New("timeout")},
	}}
	ex := newTestExecutor(runner)

	out := ex.PressBack(context.Background())
	if out.OK {
		t.Fatal("expected failure")
	}
	if out.Kind != TransientFailure {
		t.Errorf("expected TransientFailure, got %s", out.Kind)
	}
	if out.Attempts != 3 || len(runner.calls) != 3 {
		t.Errorf("expected exactly 3 attempts, got %d (%d invocations)", out.Attempts, len(runner.calls))
	}
}

func TestExecutor_RejectionIsNotRetried(t *testing.T) {
	runner := &fakeRunner{results: []fakeResult{
		{res: Result{ExitCode: 1, Stderr: "Error: invalid arguments"}},
	}}
	ex := newTestExecutor(runner)

	out := ex.Tap(context.Background(), action.Coordinate{X: 10, Y: 10})
	if out.OK || out.Kind != DeviceRejected {
		t.Fatalf("expected DeviceRejected, got %v", out)
	}
	if len(runner.calls) != 1 {
		t.Errorf("a rejected command was retried: %d invocations", len(runner.calls))
	}
}

func TestExecutor_ConnectionLost(t *testing.T) {
	runner := &fakeRunner{results: []fakeResult{
		{res: Result{ExitCode: 1, Stderr: "error: device offline"}},
	}}
	ex := newTestExecutor(runner)

	out := ex.PressHome(context.Background())
	if out.Kind != ConnectionLost {
		t.Errorf("expected ConnectionLost, got %s", out.Kind)
	}
	if len(runner.calls) != 1 {
		t.Errorf("a lost connection was retried: %d invocations", len(runner.calls))
	}
}

func TestExecutor_CancelledBackoffStops(t *testing.T) {
	runner := &fakeRunner{results: []fakeResult{
		{err: errors.New("timeout")},
		{err: errors.New("timeout")},
		{res: Result{}},
	}}
	screen := config.ScreenSize{Width: 1080, Height: 1920}
	retry := config.RetryConfig{Attempts: 3, BaseDelayMS: 5000, BackoffFactor: 2.0, MaxDelayMS: 10000}
	ex := NewExecutor(runner, screen, retry, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	out := ex.PressHome(ctx)
	if out.OK {
		t.Fatal("expected cancellation to fail the operation")
	}
	if !errors.Is(out.Err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", out.Err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("backoff ignored cancellation, took %v", elapsed)
	}
}

func TestExecutor_TypeTextEscaping(t *testing.T) {
	runner := &fakeRunner{}
	ex := newTestExecutor(runner)

	out := ex.TypeText(context.Background(), `hello world; $(reboot) "x"`)
	if !out.OK {
		t.Fatalf("expected success, got %v", out)
	}
	arg := runner.calls[0][len(runner.calls[0])-1]
	if strings.Contains(arg, " ") {
		t.Errorf("unescaped space in %q", arg)
	}
	for _, bad := range []string{`$(`, `";`, "`"} {
		if strings.Contains(arg, bad) {
			t.Errorf("unescaped metacharacter %q in %q", bad, arg)
		}
	}
	if !strings.Contains(arg, "hello%sworld") {
		t.Errorf("expected %%s spaces, got %q", arg)
	}
}

func TestExecutor_LaunchResolvesApp(t *testing.T) {
	runner := &fakeRunner{}
	ex := newTestExecutor(runner)

	out := ex.LaunchApp(context.Background(), "Settings")
	if !out.OK {
		t.Fatalf("expected success, got %v", out)
	}
	joined := strings.Join(runner.calls[0], " ")
	if !strings.Contains(joined, "com.android.settings") {
		t.Errorf("expected resolved package in %q", joined)
	}

	out = ex.LaunchApp(context.Background(), "definitely not an app!!")
	if out.OK || out.Kind != DeviceRejected {
		t.Errorf("expected rejection of unknown app, got %v", out)
	}
	if len(runner.calls) != 1 {
		t.Error("an unresolvable app name reached the transport")
	}
}

func TestExecutor_DoubleTapIssuesTwoTaps(t *testing.T) {
	runner := &fakeRunner{}
	ex := newTestExecutor(runner)

	out := ex.DoubleTap(context.Background(), action.Coordinate{X: 100, Y: 100})
	if !out.OK {
		t.Fatalf("expected success, got %v", out)
	}
	if len(runner.calls) != 2 {
		t.Errorf("expected 2 tap invocations, got %d", len(runner.calls))
	}
}

func TestExecutor_ApplyRejectsLoopCommands(t *testing.T) {
	runner := &fakeRunner{}
	ex := newTestExecutor(runner)

	for _, kind := range []action.Kind{action.KindWait, action.KindTakeOver, action.KindFinish} {
		out := ex.Apply(context.Background(), &action.Command{Kind: kind})
		if out.OK {
			t.Errorf("%s should not execute on the device", kind)
		}
	}
	if len(runner.calls) != 0 {
		t.Errorf("loop commands reached the transport: %v", runner.calls)
	}
}
