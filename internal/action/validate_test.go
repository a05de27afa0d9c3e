package action

import (
	"testing"
	"time"
)

func do(kv map[string]interface{}) map[string]interface{} {
	fields := map[string]interface{}{MetadataKey: "do"}
	for k, v := range kv {
		fields[k] = v
	}
	return fields
}

func TestValidate_Tap(t *testing.T) {
	cmd, res := Validate(do(map[string]interface{}{
		"action":  "Tap",
		"element": []float64{500, 700},
	}))
	if !res.Valid {
		t.Fatalf("expected valid, got %q", res.Reason)
	}
	if cmd.Kind != KindTap || cmd.Element != (Coordinate{X: 500, Y: 700}) {
		t.Errorf("unexpected command: %+v", cmd)
	}
}

func TestValidate_CoordinateBounds(t *testing.T) {
	cases := []struct {
		name  string
		el    []float64
		valid bool
	}{
		{"origin", []float64{0, 0}, true},
		{"max", []float64{999, 999}, true},
		{"negative x", []float64{-1, 500}, false},
		{"x too large", []float64{1000, 500}, false},
		{"y too large", []float64{500, 1000}, false},
		{"fractional", []float64{10.5, 20}, false},
		{"one component", []float64{500}, false},
		{"three components", []float64{1, 2, 3}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, res := Validate(do(map[string]interface{}{
				"action":  "Tap",
				"element": tc.el,
			}))
			if res.Valid != tc.valid {
				t.Errorf("element %v: valid=%v (reason %q), want %v", tc.el, res.Valid, res.Reason, tc.valid)
			}
		})
	}
}

func TestValidate_UnknownAction(t *testing.T) {
	_, res := Validate(do(map[string]interface{}{"action": "Reboot"}))
	if res.Valid {
		t.Fatal("expected rejection of an action outside the vocabulary")
	}
}

func TestValidate_MissingRequiredField(t *testing.T) {
	cases := []map[string]interface{}{
		{"action": "Tap"},
		{"action": "Launch"},
		{"action": "Type"},
		{"action": "Swipe", "start": []float64{1, 2}},
		{"action": "Wait"},
	}
	for _, kv := range cases {
		if _, res := Validate(do(kv)); res.Valid {
			t.Errorf("expected rejection for %v", kv)
		}
	}
}

func TestValidate_KindNormalization(t *testing.T) {
	cases := map[string]Kind{
		"tap":        KindTap,
		"Long_Press": KindLongPress,
		"double_tap": KindDoubleTap,
		"TAKEOVER":   KindTakeOver,
		"take_over":  KindTakeOver,
		"press back": KindBack,
		"scroll":     KindSwipe,
		"Reboot":     "",
	}
	for raw, want := range cases {
		if got := NormalizeKind(raw); got != want {
			t.Errorf("NormalizeKind(%q) = %q, want %q", raw, got, want)
		}
	}
}

func TestValidate_Swipe(t *testing.T) {
	cmd, res := Validate(do(map[string]interface{}{
		"action":   "Swipe",
		"start":    []float64{100, 800},
		"end":      []float64{100, 200},
		"duration": float64(1),
	}))
	if !res.Valid {
		t.Fatalf("expected valid, got %q", res.Reason)
	}
	if cmd.Start.Y != 800 || cmd.End.Y != 200 || cmd.Duration != time.Second {
		t.Errorf("unexpected command: %+v", cmd)
	}
}

func TestValidate_WaitDurations(t *testing.T) {
	cases := []struct {
		raw   interface{}
		want  time.Duration
		valid bool
	}{
		{float64(5), 5 * time.Second, true},
		{"5", 5 * time.Second, true},
		{"5s", 5 * time.Second, true},
		{"5 seconds", 5 * time.Second, true},
		{"2.5", 2500 * time.Millisecond, true},
		{float64(600), MaxWait, true},
		{float64(1e300), MaxWait, true}, // must not overflow past the cap
		{float64(0), 0, false},
		{float64(-3), 0, false},
		{"soon", 0, false},
		{"nan", 0, false},
	}
	for _, tc := range cases {
		cmd, res := Validate(do(map[string]interface{}{"action": "Wait", "duration": tc.raw}))
		if res.Valid != tc.valid {
			t.Errorf("duration %v: valid=%v (reason %q), want %v", tc.raw, res.Valid, res.Reason, tc.valid)
			continue
		}
		if tc.valid && cmd.Duration != tc.want {
			t.Errorf("duration %v: got %v, want %v", tc.raw, cmd.Duration, tc.want)
		}
	}
}

func TestValidate_Finish(t *testing.T) {
	cmd, res := Validate(map[string]interface{}{
		MetadataKey: "finish",
		"message":   "alarm set for 7am",
	})
	if !res.Valid {
		t.Fatalf("expected valid, got %q", res.Reason)
	}
	if cmd.Kind != KindFinish || cmd.Message != "alarm set for 7am" {
		t.Errorf("unexpected command: %+v", cmd)
	}
}

func TestValidate_BackHomeNoParams(t *testing.T) {
	for _, name := range []string{"Back", "Home"} {
		cmd, res := Validate(do(map[string]interface{}{"action": name}))
		if !res.Valid {
			t.Fatalf("%s: expected valid, got %q", name, res.Reason)
		}
		if string(cmd.Kind) != name {
			t.Errorf("unexpected kind %q", cmd.Kind)
		}
	}
}

func TestValidate_FieldAliases(t *testing.T) {
	cmd, res := Validate(do(map[string]interface{}{
		"action":  "Launch",
		"package": "com.android.settings",
	}))
	if !res.Valid {
		t.Fatalf("expected valid, got %q", res.Reason)
	}
	if cmd.App != "com.android.settings" {
		t.Errorf("expected package alias to fill App, got %q", cmd.App)
	}

	cmd, res = Validate(do(map[string]interface{}{
		"action":  "Finish",
		"summary": "done",
	}))
	if !res.Valid {
		t.Fatalf("expected valid, got %q", res.Reason)
	}
	if cmd.Kind != KindFinish || cmd.Message != "done" {
		t.Errorf("unexpected command: %+v", cmd)
	}

	cmd, res = Validate(do(map[string]interface{}{
		"action":  "Wait",
		"seconds": float64(3),
	}))
	if !res.Valid {
		t.Fatalf("expected valid, got %q", res.Reason)
	}
	if cmd.Duration != 3*time.Second {
		t.Errorf("expected 3s, got %v", cmd.Duration)
	}
}

func TestValidate_LaunchEmptyApp(t *testing.T) {
	if _, res := Validate(do(map[string]interface{}{"action": "Launch", "app": "  "})); res.Valid {
		t.Fatal("expected rejection of a blank app name")
	}
}
