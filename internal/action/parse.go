package action

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
)

// MetadataKey holds the call form the parser recognized: "do" or "finish".
const MetadataKey = "_metadata"

// ErrUnparsable is returned when no recognizable action call can be
// extracted from the model reply.
var ErrUnparsable = errors.New("no recognizable action call in model reply")

var (
	doCallRe     = regexp.MustCompile(`\bdo\s*\(`)
	finishCallRe = regexp.MustCompile(`\bfinish\s*\(`)

	// One key=value pair. Values are double- or single-quoted strings,
	// bracketed lists, or bare numbers. Nothing else is recognized, so
	// arbitrary expressions in the reply are inert text.
	pairRe = regexp.MustCompile(`([A-Za-z_][A-Za-z0-9_]*)\s*=\s*("(?:[^"\\]|\\.)*"|'(?:[^'\\]|\\.)*'|\[[^\]\n]*\]|-?\d+(?:\.\d+)?)`)
)

// Parse extracts an action call from free-form model text without evaluating
// any of it. The reply may wrap the call in prose, markdown fences or
// reasoning; Parse scans for a do(...) or finish(...) form and lifts its
// key=value pairs into a map. String values become string, numbers float64,
// and bracketed lists []float64. The returned map always carries MetadataKey.
func Parse(raw string) (map[string]interface{}, error) {
	text := strings.TrimSpace(raw)
	if text == "" {
		return nil, ErrUnparsable
	}

	meta, start := callSite(text)
	if meta == "" {
		return nil, ErrUnparsable
	}

	fields := map[string]interface{}{MetadataKey: meta}
	for _, m := range pairRe.FindAllStringSubmatch(text[start:], -1) {
		key, rawVal := m[1], m[2]
		val, err := parseValue(rawVal)
		if err != nil {
			continue
		}
		if _, dup := fields[key]; !dup {
			fields[key] = val
		}
	}
	// A call with no usable pairs at all is noise, not an action.
	if len(fields) == 1 {
		return nil, ErrUnparsable
	}
	return fields, nil
}

// callSite finds the first do( or finish( occurrence and returns the call
// form with the offset where pair scanning should begin. A finish call wins
// only when it appears before any do call.
func callSite(text string) (string, int) {
	do := doCallRe.FindStringIndex(text)
	fin := finishCallRe.FindStringIndex(text)
	switch {
	case do == nil && fin == nil:
		return "", 0
	case do == nil:
		return "finish", fin[1]
	case fin == nil:
		return "do", do[1]
	case fin[0] < do[0]:
		return "finish", fin[1]
	default:
		return "do", do[1]
	}
}

func parseValue(raw string) (interface{}, error) {
	switch {
	case strings.HasPrefix(raw, `"`), strings.HasPrefix(raw, `'`):
		return unquote(raw), nil
	case strings.HasPrefix(raw, "["):
		return parseList(raw)
	default:
		return strconv.ParseFloat(raw, 64)
	}
}

// unquote strips the surrounding quotes and resolves the escape sequences
// the model uses inside string literals.
func unquote(raw string) string {
	body := raw[1 : len(raw)-1]
	if !strings.Contains(body, `\`) {
		return body
	}
	var b strings.Builder
	b.Grow(len(body))
	for i := 0; i < len(body); i++ {
		if body[i] != '\\' || i+1 == len(body) {
			b.WriteByte(body[i])
			continue
		}
		i++
		switch body[i] {
		case 'n':
			b.WriteByte('\n')
		case 't':
			b.WriteByte('\t')
		case 'r':
			b.WriteByte('\r')
		default:
			b.WriteByte(body[i])
		}
	}
	return b.String()
}

func parseList(raw string) ([]float64, error) {
	body := strings.TrimSpace(raw[1 : len(raw)-1])
	if body == "" {
		return nil, errors.New("empty list")
	}
	parts := strings.Split(body, ",")
	out := make([]float64, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}
