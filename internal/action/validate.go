package action

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// MaxWait caps how long a single Wait action may pause the loop.
const MaxWait = 60 * time.Second

// kindAliases maps normalized spellings the model produces to canonical
// kinds. Lookup keys are lowercased with underscores folded to spaces.
var kindAliases = map[string]Kind{
	"launch":     KindLaunch,
	"open":       KindLaunch,
	"tap":        KindTap,
	"click":      KindTap,
	"double tap": KindDoubleTap,
	"doubletap":  KindDoubleTap,
	"long press": KindLongPress,
	"longpress":  KindLongPress,
	"swipe":      KindSwipe,
	"scroll":     KindSwipe,
	"type":       KindType,
	"input":      KindType,
	"back":       KindBack,
	"press back": KindBack,
	"home":       KindHome,
	"press home": KindHome,
	"wait":       KindWait,
	"take over":  KindTakeOver,
	"takeover":   KindTakeOver,
	"finish":     KindFinish,
}

// NormalizeKind maps a raw action name to its canonical Kind, fixing the
// capitalization and underscore variants the model is known to produce.
// It returns "" when the name is not in the vocabulary.
func NormalizeKind(raw string) Kind {
	key := strings.ToLower(strings.TrimSpace(raw))
	key = strings.ReplaceAll(key, "_", " ")
	key = strings.Join(strings.Fields(key), " ")
	return kindAliases[key]
}

// requiredFields lists the parameter slots each kind must fill. Each slot
// names the accepted aliases for the same parameter; a command whose slot
// has no present alias is rejected, extra fields are ignored.
var requiredFields = map[Kind][][]string{
	KindLaunch:    {{"app", "package"}},
	KindTap:       {{"element"}},
	KindDoubleTap: {{"element"}},
	KindLongPress: {{"element"}},
	KindSwipe:     {{"start"}, {"end"}},
	KindType:      {{"text"}},
	KindWait:      {{"duration", "seconds"}},
}

// firstPresent returns the first alias that exists in the fields, or "".
func firstPresent(fields map[string]interface{}, aliases ...string) string {
	for _, a := range aliases {
		if _, ok := fields[a]; ok {
			return a
		}
	}
	return ""
}

// Validate projects parsed fields into a typed Command. Every value is
// checked against the vocabulary whitelist, the per-kind required fields
// and the coordinate range before anything reaches the device layer.
func Validate(fields map[string]interface{}) (*Command, ValidationResult) {
	meta, _ := fields[MetadataKey].(string)
	if meta == "finish" {
		return &Command{Kind: KindFinish, Message: stringField(fields, "message")}, ValidationResult{Valid: true}
	}
	if meta != "do" {
		return nil, invalid(fmt.Sprintf("unknown call form %q", meta))
	}

	rawKind, ok := fields["action"].(string)
	if !ok {
		return nil, invalid("missing action name")
	}
	kind := NormalizeKind(rawKind)
	if kind == "" {
		return nil, invalid(fmt.Sprintf("action %q is not in the vocabulary", rawKind))
	}

	for _, slot := range requiredFields[kind] {
		if firstPresent(fields, slot...) == "" {
			return nil, invalid(fmt.Sprintf("%s requires field %q", kind, slot[0]))
		}
	}

	cmd := &Command{Kind: kind}
	switch kind {
	case KindLaunch:
		app, ok := fields[firstPresent(fields, "app", "package")].(string)
		if !ok || strings.TrimSpace(app) == "" {
			return nil, invalid("Launch requires a non-empty app name")
		}
		cmd.App = strings.TrimSpace(app)

	case KindTap, KindDoubleTap, KindLongPress:
		el, res := coordField(fields, "element")
		if !res.Valid {
			return nil, res
		}
		cmd.Element = el

	case KindSwipe:
		start, res := coordField(fields, "start")
		if !res.Valid {
			return nil, res
		}
		end, res := coordField(fields, "end")
		if !res.Valid {
			return nil, res
		}
		cmd.Start, cmd.End = start, end
		if _, present := fields["duration"]; present {
			d, res := durationField(fields, "duration")
			if !res.Valid {
				return nil, res
			}
			cmd.Duration = d
		}

	case KindType:
		text, ok := fields["text"].(string)
		if !ok {
			return nil, invalid("Type requires a string text field")
		}
		cmd.Text = text

	case KindWait:
		d, res := durationField(fields, firstPresent(fields, "duration", "seconds"))
		if !res.Valid {
			return nil, res
		}
		cmd.Duration = d

	case KindTakeOver:
		cmd.Message = firstString(fields, "message", "reason", "instruction")

	case KindFinish:
		cmd.Message = firstString(fields, "message", "summary")

	case KindBack, KindHome:
		// no parameters
	}
	return cmd, ValidationResult{Valid: true}
}

func stringField(fields map[string]interface{}, key string) string {
	s, _ := fields[key].(string)
	return s
}

// firstString returns the first alias that holds a non-empty string.
func firstString(fields map[string]interface{}, aliases ...string) string {
	for _, a := range aliases {
		if s, ok := fields[a].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

// coordField reads a two-element numeric list into a Coordinate and enforces
// the normalized range. Out-of-range points are rejected, not clamped, so a
// hallucinated location never turns into a gesture somewhere else on screen.
func coordField(fields map[string]interface{}, key string) (Coordinate, ValidationResult) {
	list, ok := fields[key].([]float64)
	if !ok {
		return Coordinate{}, invalid(fmt.Sprintf("field %q must be a coordinate pair", key))
	}
	if len(list) != 2 {
		return Coordinate{}, invalid(fmt.Sprintf("field %q must have exactly two components, got %d", key, len(list)))
	}
	for _, v := range list {
		if v != math.Trunc(v) {
			return Coordinate{}, invalid(fmt.Sprintf("field %q must hold integers", key))
		}
	}
	c := Coordinate{X: int(list[0]), Y: int(list[1])}
	if !c.Valid() {
		return Coordinate{}, invalid(fmt.Sprintf("field %q is outside the 0-%d range: [%d, %d]", key, CoordMax, c.X, c.Y))
	}
	return c, ValidationResult{Valid: true}
}

// durationField accepts a bare number of seconds or the loose string forms
// the model emits: "5", "5s", "5 seconds". The result is capped at MaxWait.
func durationField(fields map[string]interface{}, key string) (time.Duration, ValidationResult) {
	var secs float64
	switch v := fields[key].(type) {
	case float64:
		secs = v
	case string:
		s := strings.ToLower(strings.TrimSpace(v))
		s = strings.TrimSuffix(s, "seconds")
		s = strings.TrimSuffix(s, "second")
		s = strings.TrimSuffix(s, "sec")
		s = strings.TrimSuffix(s, "s")
		s = strings.TrimSpace(s)
		n, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, invalid(fmt.Sprintf("cannot read duration %q", v))
		}
		secs = n
	default:
		return 0, invalid(fmt.Sprintf("field %q must be a duration", key))
	}
	if math.IsNaN(secs) || secs <= 0 {
		return 0, invalid("duration must be positive")
	}
	// Cap before converting; a huge float would overflow time.Duration.
	if secs > MaxWait.Seconds() {
		secs = MaxWait.Seconds()
	}
	return time.Duration(secs * float64(time.Second)), ValidationResult{Valid: true}
}
