package harmony

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// OffActivityID is the id the hub reports when no activity is running.
const OffActivityID = "-1"

// HubInfo describes a hub as announced during discovery.
type HubInfo struct {
	IP              string
	FriendlyName    string
	UUID            string
	RemoteID        string
	FirmwareVersion string
	ProductID       string

	// Raw holds every announced key, including the ones above.
	Raw map[string]string
}

// Key identifies a hub across announcements. The uuid is preferred; hubs
// that do not announce one are keyed by address.
func (h HubInfo) Key() string {
	if h.UUID != "" {
		return h.UUID
	}
	return h.IP
}

// ParseHubInfo parses a "key:value;key:value" discovery announcement.
// Values may themselves contain colons; only the first one separates.
func ParseHubInfo(data string) (HubInfo, error) {
	raw := make(map[string]string)
	for _, pair := range strings.Split(strings.TrimSpace(data), ";") {
		key, value, ok := strings.Cut(pair, ":")
		if !ok || key == "" {
			continue
		}
		raw[key] = value
	}

	info := HubInfo{
		IP:              raw["ip"],
		FriendlyName:    raw["friendlyName"],
		UUID:            raw["uuid"],
		RemoteID:        raw["remoteId"],
		FirmwareVersion: raw["current_fw_version"],
		ProductID:       raw["productId"],
		Raw:             raw,
	}
	if info.IP == "" {
		return HubInfo{}, fmt.Errorf("%w: missing ip in %q", ErrInvalidAnnouncement, data)
	}
	return info, nil
}

// Function is one invocable button of a control group.
// Action is the JSON blob the hub expects back verbatim in holdAction.
type Function struct {
	Name   string `json:"name"`
	Label  string `json:"label"`
	Action string `json:"action"`
}

// ControlGroup groups related functions ("Volume", "NavigationBasic", ...).
type ControlGroup struct {
	Name     string     `json:"name"`
	Function []Function `json:"function"`
}

// Activity is an activity entry of the hub configuration.
type Activity struct {
	ID           string         `json:"id"`
	Label        string         `json:"label"`
	IsAVActivity bool           `json:"isAVActivity"`
	ControlGroup []ControlGroup `json:"controlGroup"`
}

// Functions flattens every control group into one list.
func (a Activity) Functions() []Function {
	return flatten(a.ControlGroup)
}

// Device is a device entry of the hub configuration.
type Device struct {
	ID           string         `json:"id"`
	Label        string         `json:"label"`
	Type         string         `json:"type"`
	Manufacturer string         `json:"manufacturer"`
	Model        string         `json:"model"`
	ControlGroup []ControlGroup `json:"controlGroup"`
}

// Functions flattens every control group into one list.
func (d Device) Functions() []Function {
	return flatten(d.ControlGroup)
}

func flatten(groups []ControlGroup) []Function {
	var out []Function
	for _, g := range groups {
		out = append(out, g.Function...)
	}
	return out
}

// Config is the subset of the hub configuration the gateway uses.
type Config struct {
	Activity []Activity `json:"activity"`
	Device   []Device   `json:"device"`
}

// flexString accepts a JSON string or number. The hub is inconsistent
// about quoting ids and status codes.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = flexString(n.String())
	return nil
}

func (f flexString) int() int {
	n, err := strconv.Atoi(string(f))
	if err != nil {
		return 0
	}
	return n
}
