package harmony

import (
	"fmt"
	"strings"
)

// Hold action statuses.
const (
	StatusPress   = "press"
	StatusRelease = "release"
)

// EncodeHoldAction builds the "action=<action>:status=<status>" argument
// accepted by Client.Send. Colons inside action are doubled so they are
// not read as field separators.
func EncodeHoldAction(action, status string) string {
	return "action=" + strings.ReplaceAll(action, ":", "::") + ":status=" + status
}

// ParseHoldAction reverses EncodeHoldAction.
func ParseHoldAction(payload string) (action, status string, err error) {
	fields := splitEscaped(payload)
	var haveAction bool
	for _, f := range fields {
		key, value, ok := strings.Cut(f, "=")
		if !ok {
			return "", "", fmt.Errorf("%w: field %q", ErrInvalidHoldAction, f)
		}
		switch key {
		case "action":
			action, haveAction = value, true
		case "status":
			status = value
		}
	}
	if !haveAction || status == "" {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidHoldAction, payload)
	}
	return action, status, nil
}

// splitEscaped splits on ':' while turning "::" into a literal colon.
func splitEscaped(s string) []string {
	var (
		fields []string
		cur    strings.Builder
	)
	for i := 0; i < len(s); i++ {
		if s[i] != ':' {
			cur.WriteByte(s[i])
			continue
		}
		if i+1 < len(s) && s[i+1] == ':' {
			cur.WriteByte(':')
			i++
			continue
		}
		fields = append(fields, cur.String())
		cur.Reset()
	}
	return append(fields, cur.String())
}
