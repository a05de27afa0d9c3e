// Package action defines the device action vocabulary and turns untrusted
// model output into validated, typed commands.
package action

import "time"

// Kind identifies one action in the fixed vocabulary. The string values are
// the action names the model emits.
type Kind string

const (
	KindLaunch    Kind = "Launch"
	KindTap       Kind = "Tap"
	KindDoubleTap Kind = "Double Tap"
	KindLongPress Kind = "Long Press"
	KindSwipe     Kind = "Swipe"
	KindType      Kind = "Type"
	KindBack      Kind = "Back"
	KindHome      Kind = "Home"
	KindWait      Kind = "Wait"
	KindTakeOver  Kind = "Take_over"
	KindFinish    Kind = "Finish"
)

// Kinds returns the full whitelist of valid action kinds.
func Kinds() []Kind {
	return []Kind{
		KindLaunch, KindTap, KindDoubleTap, KindLongPress, KindSwipe,
		KindType, KindBack, KindHome, KindWait, KindTakeOver, KindFinish,
	}
}

// CoordMax is the upper bound of the normalized coordinate space.
// Coordinates are device-resolution independent; the executor scales them.
const CoordMax = 999

// Coordinate is a screen position normalized to [0, CoordMax] on both axes.
type Coordinate struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Valid reports whether both components are within the normalized range.
func (c Coordinate) Valid() bool {
	return c.X >= 0 && c.X <= CoordMax && c.Y >= 0 && c.Y <= CoordMax
}

// Command is one validated device action. Exactly one variant is populated,
// identified by Kind; the remaining fields are zero.
type Command struct {
	Kind Kind `json:"kind"`

	// App is the target for Launch: a catalog display name or a package id.
	App string `json:"app,omitempty"`

	// Element is the target for Tap, Double Tap and Long Press.
	Element Coordinate `json:"element,omitempty"`

	// Start and End bound a Swipe gesture.
	Start Coordinate `json:"start,omitempty"`
	End   Coordinate `json:"end,omitempty"`

	// Text is the input for Type.
	Text string `json:"text,omitempty"`

	// Duration is the pause for Wait, or an optional gesture time for Swipe.
	Duration time.Duration `json:"duration,omitempty"`

	// Message carries the Take_over reason or the Finish summary.
	Message string `json:"message,omitempty"`
}

// ValidationResult is the outcome of projecting parsed fields into a Command.
type ValidationResult struct {
	Valid  bool   `json:"valid"`
	Reason string `json:"reason,omitempty"`
}

func invalid(reason string) ValidationResult {
	return ValidationResult{Valid: false, Reason: reason}
}
