package device

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// ScreenState is the display power state.
type ScreenState string

const (
	ScreenOn      ScreenState = "on"
	ScreenOff     ScreenState = "off"
	ScreenUnknown ScreenState = "unknown"
)

// LockState is the keyguard state.
type LockState string

const (
	Unlocked    LockState = "unlocked"
	Locked      LockState = "locked"
	LockUnknown LockState = "unknown"
)

// lowBatteryLevel is where automation becomes risky: the device may die
// mid-gesture and leave an app half-configured.
const lowBatteryLevel = 10

// State is a snapshot of the device taken before a run starts.
type State struct {
	Connected     bool        `json:"connected"`
	Screen        ScreenState `json:"screen"`
	Lock          LockState   `json:"lock"`
	BatteryLevel  int         `json:"battery_level"` // -1 when unknown
	ForegroundApp string      `json:"foreground_app,omitempty"`
}

// Ready reports whether automation can start.
func (s State) Ready() bool {
	return s.Connected && s.Screen == ScreenOn && s.Lock == Unlocked
}

// Issues lists everything preventing automation, for preflight diagnostics.
func (s State) Issues() []string {
	var issues []string
	if !s.Connected {
		issues = append(issues, "device not connected")
	}
	if s.Screen == ScreenOff {
		issues = append(issues, "screen is off")
	}
	if s.Lock == Locked {
		issues = append(issues, "device is locked")
	}
	if s.BatteryLevel >= 0 && s.BatteryLevel < lowBatteryLevel {
		issues = append(issues, fmt.Sprintf("low battery: %d%%", s.BatteryLevel))
	}
	return issues
}

// Checker reads device state over the transport.
type Checker struct {
	runner Runner
}

// NewChecker builds a state checker on a transport runner.
func NewChecker(runner Runner) *Checker {
	return &Checker{runner: runner}
}

// Check gathers a full state snapshot. A disconnected device short-circuits
// the remaining probes.
func (c *Checker) Check(ctx context.Context) State {
	state := State{Screen: ScreenUnknown, Lock: LockUnknown, BatteryLevel: -1}

	res, err := c.runner.Run(ctx, "get-state")
	if err != nil || !strings.Contains(string(res.Stdout), "device") {
		return state
	}
	state.Connected = true
	state.Screen = c.screenState(ctx)
	state.Lock = c.lockState(ctx)
	state.BatteryLevel = c.batteryLevel(ctx)
	state.ForegroundApp = c.foregroundApp(ctx)
	return state
}

func (c *Checker) screenState(ctx context.Context) ScreenState {
	res, err := c.runner.Run(ctx, "shell", "dumpsys", "power")
	if err == nil {
		out := strings.ToLower(string(res.Stdout))
		switch {
		case strings.Contains(out, "mscreenon=true"), strings.Contains(out, "display power: state=on"):
			return ScreenOn
		case strings.Contains(out, "mscreenon=false"), strings.Contains(out, "display power: state=off"):
			return ScreenOff
		}
	}
	res, err = c.runner.Run(ctx, "shell", "dumpsys", "display")
	if err == nil {
		for _, line := range strings.Split(string(res.Stdout), "\n") {
			if !strings.Contains(line, "mScreenState") {
				continue
			}
			if strings.Contains(line, "ON") {
				return ScreenOn
			}
			if strings.Contains(line, "OFF") {
				return ScreenOff
			}
		}
	}
	return ScreenUnknown
}

func (c *Checker) lockState(ctx context.Context) LockState {
	res, err := c.runner.Run(ctx, "shell", "dumpsys", "window")
	if err != nil {
		return LockUnknown
	}
	out := string(res.Stdout)
	switch {
	case strings.Contains(out, "mDreamingLockscreen=true"), strings.Contains(out, "mShowingLockscreen=true"):
		return Locked
	case strings.Contains(out, "mDreamingLockscreen=false"), strings.Contains(out, "mShowingLockscreen=false"):
		return Unlocked
	}
	return LockUnknown
}

func (c *Checker) batteryLevel(ctx context.Context) int {
	res, err := c.runner.Run(ctx, "shell", "dumpsys", "battery")
	if err != nil {
		return -1
	}
	for _, line := range strings.Split(string(res.Stdout), "\n") {
		line = strings.TrimSpace(strings.ToLower(line))
		if rest, ok := strings.CutPrefix(line, "level:"); ok {
			if level, err := strconv.Atoi(strings.TrimSpace(rest)); err == nil {
				return level
			}
		}
	}
	return -1
}

// foregroundApp extracts the focused package from the window dump, where it
// appears as Window{... com.example.app/com.example.Activity}.
func (c *Checker) foregroundApp(ctx context.Context) string {
	res, err := c.runner.Run(ctx, "shell", "dumpsys", "window")
	if err != nil {
		return ""
	}
	for _, line := range strings.Split(string(res.Stdout), "\n") {
		if !strings.Contains(line, "mCurrentFocus") {
			continue
		}
		slash := strings.Index(line, "/")
		if slash < 0 {
			return ""
		}
		fields := strings.Fields(line[:slash])
		if len(fields) == 0 {
			return ""
		}
		return fields[len(fields)-1]
	}
	return ""
}

// WakeScreen sends the wake keyevent.
func (c *Checker) WakeScreen(ctx context.Context) error {
	_, err := c.runner.Run(ctx, "shell", "input", "keyevent", "KEYCODE_WAKEUP")
	return err
}

// UnlockScreen swipes up to dismiss a swipe-to-unlock keyguard. PIN and
// pattern locks still need a human.
func (c *Checker) UnlockScreen(ctx context.Context) error {
	_, err := c.runner.Run(ctx, "shell", "input", "swipe", "500", "1800", "500", "500", "300")
	return err
}
